package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"roadscan-server-go/internal/platform/config"
	"roadscan-server-go/internal/utils"
)

// SecurityValidator performs layered checks against uploaded image payloads.
type SecurityValidator struct {
	config  *config.IngestConfig
	allowed map[string]struct{}
	logger  *utils.Logger
}

func NewSecurityValidator(cfg *config.IngestConfig, logger *utils.Logger) *SecurityValidator {
	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, ct := range cfg.AllowedTypes {
		allowed[NormalizeContentType(ct)] = struct{}{}
	}
	return &SecurityValidator{
		config:  cfg,
		allowed: allowed,
		logger:  logger,
	}
}

// IsContentTypeAllowed reports whether a declared media type may be uploaded.
func (v *SecurityValidator) IsContentTypeAllowed(contentType string) bool {
	ct := NormalizeContentType(contentType)
	if ct == "" {
		return false
	}
	_, ok := v.allowed[ct]
	return ok
}

// CheckDeclared is the cheap gate applied before any bytes are read.
func (v *SecurityValidator) CheckDeclared(contentType string) ValidationResult {
	result := ValidationResult{ContentType: NormalizeContentType(contentType)}
	if !v.IsContentTypeAllowed(contentType) {
		result.Error = ErrUnsupportedMediaType
		result.SecurityRisk = "unapproved media type"
		return result
	}
	result.IsValid = true
	return result
}

// ValidateBytes runs the full check on a fully buffered upload.
func (v *SecurityValidator) ValidateBytes(raw []byte, declaredType string) ValidationResult {
	result := v.CheckDeclared(declaredType)
	if !result.IsValid {
		return result
	}
	result.IsValid = false
	result.FileSize = int64(len(raw))

	if len(raw) == 0 {
		result.Error = fmt.Errorf("%w: empty payload", ErrInvalidImage)
		return result
	}
	if int64(len(raw)) > v.config.MaxFileSize {
		result.Error = ErrTooLarge
		result.SecurityRisk = "file too large"
		v.logger.WarnTag("Ingest", "oversized upload: size=%d max_size=%d type=%s",
			len(raw), v.config.MaxFileSize, result.ContentType)
		return result
	}

	if !v.config.EnableDeepScan {
		result.IsValid = true
		return result
	}

	if v.scanForMaliciousContent(raw) {
		result.Error = fmt.Errorf("%w: suspicious content", ErrUnsupportedMediaType)
		result.SecurityRisk = "suspicious content"
		return result
	}

	sniffed := SniffFormat(raw)
	result.Format = sniffed
	if sniffed == "" || !v.IsContentTypeAllowed(FormatContentType(sniffed)) {
		actualHeader := fmt.Sprintf("%x", raw[:min(len(raw), 16)])
		v.logger.WarnTag("Ingest", "file signature mismatch: declared=%s header=%s",
			result.ContentType, actualHeader)
		result.Error = ErrUnsupportedMediaType
		result.SecurityRisk = "signature mismatch"
		return result
	}

	// no HEIF decoder is registered; the brand check above is all we can do
	if sniffed == "heic" || sniffed == "heif" {
		result.IsValid = true
		return result
	}

	return v.validateImageDecoding(raw, result)
}

func (v *SecurityValidator) scanForMaliciousContent(data []byte) bool {
	suspicious := [][]byte{
		{0x4D, 0x5A},
		{0x25, 0x50, 0x44, 0x46},
		{0x50, 0x4B, 0x03, 0x04},
		{0x1F, 0x8B, 0x08},
		{0x7F, 0x45, 0x4C, 0x46},
	}
	for _, signature := range suspicious {
		if bytes.HasPrefix(data, signature) {
			v.logger.WarnTag("Ingest", "detected non-image signature: %x", signature)
			return true
		}
	}

	head := data[:min(len(data), 1024)]
	if bytes.Contains(bytes.ToLower(head), []byte("<svg")) || bytes.Contains(bytes.ToLower(head), []byte("<script")) {
		v.logger.WarnTag("Ingest", "detected markup in image payload")
		return true
	}
	return false
}

func (v *SecurityValidator) validateImageDecoding(data []byte, result ValidationResult) ValidationResult {
	cfg, actualFormat, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("%w: decode image config: %v", ErrInvalidImage, err)
		result.SecurityRisk = "corrupted image data"
		return result
	}
	if actualFormat != "" {
		result.Format = strings.ToLower(actualFormat)
	}

	if (v.config.MaxWidth > 0 && cfg.Width > v.config.MaxWidth) ||
		(v.config.MaxHeight > 0 && cfg.Height > v.config.MaxHeight) {
		result.Error = fmt.Errorf("%w: dimensions %dx%d exceed %dx%d", ErrInvalidImage,
			cfg.Width, cfg.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "dimensions too large"
		return result
	}

	totalPixels := int64(cfg.Width) * int64(cfg.Height)
	if v.config.MaxPixels > 0 && totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("%w: pixel count %d exceeds %d", ErrInvalidImage, totalPixels, v.config.MaxPixels)
		result.SecurityRisk = "pixel count too high"
		return result
	}

	result.IsValid = true
	result.Width = cfg.Width
	result.Height = cfg.Height

	v.logger.DebugTag("Ingest", "image validation success: format=%s width=%d height=%d size=%d",
		result.Format, result.Width, result.Height, result.FileSize)
	return result
}
