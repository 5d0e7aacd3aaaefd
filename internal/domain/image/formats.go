package image

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
)

var extensionTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"heic": "image/heic",
	"heif": "image/heif",
}

var formatTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"tiff": "image/tiff",
	"heic": "image/heic",
	"heif": "image/heif",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
}

var imageSignatures = []struct {
	format string
	magic  []byte
}{
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"tiff", []byte{0x49, 0x49, 0x2A, 0x00}},
	{"tiff", []byte{0x4D, 0x4D, 0x00, 0x2A}},
	{"gif", []byte{0x47, 0x49, 0x46, 0x38}},
	{"bmp", []byte{0x42, 0x4D}},
}

var heicBrands = map[string]string{
	"heic": "heic",
	"heix": "heic",
	"hevc": "heic",
	"hevx": "heic",
	"heim": "heic",
	"heis": "heic",
	"mif1": "heif",
	"msf1": "heif",
	"heif": "heif",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeContentType strips parameters and folds common aliases.
func NormalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.SplitN(contentType, ";", 2)[0])
	}
	switch mediaType {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/tif", "image/x-tiff":
		return "image/tiff"
	case "image/heic-sequence":
		return "image/heic"
	case "image/heif-sequence":
		return "image/heif"
	}
	return mediaType
}

// ContentTypeFromFilename maps an upload's extension to its media type, or "".
func ContentTypeFromFilename(filename string) string {
	return extensionTypes[NormalizeExt(filepath.Ext(filename))]
}

// DeclaredContentType prefers the client's header and falls back to the extension
// when the header is missing or generic.
func DeclaredContentType(header, filename string) string {
	ct := NormalizeContentType(header)
	if ct == "" || ct == "application/octet-stream" {
		return ContentTypeFromFilename(filename)
	}
	return ct
}

// SniffFormat identifies the container from magic bytes. HEIF family files are
// recognised by their ftyp brand.
func SniffFormat(data []byte) string {
	for _, sig := range imageSignatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.format
		}
	}
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "webp"
	}
	if len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")) {
		if family, ok := heicBrands[string(data[8:12])]; ok {
			return family
		}
	}
	return ""
}

// FormatContentType returns the media type for a sniffed format.
func FormatContentType(format string) string {
	return formatTypes[format]
}
