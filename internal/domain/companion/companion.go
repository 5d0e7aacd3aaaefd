// Package companion maps an uploaded file name to its pre-rendered overlay PNG.
package companion

import (
	"errors"
	"strings"
)

// ArtifactNotFoundMessage is the user-visible text for a missing companion.
const ArtifactNotFoundMessage = "Processing failed, no valid segments found."

// ErrArtifactNotFound reports that no companion file exists for an upload.
var ErrArtifactNotFound = errors.New(ArtifactNotFoundMessage)

// Ref links an upload's original name to the companion name derived from it.
type Ref struct {
	OriginalName string `json:"original_name"`
	DerivedName  string `json:"derived_name"`
}

// Derive replaces a trailing .jpg or .jpeg (any case) with .png. Every other
// name, including one already ending in .png or without an extension, is
// returned unchanged.
func Derive(originalName string) Ref {
	derived := originalName
	lower := strings.ToLower(originalName)
	for _, ext := range []string{".jpeg", ".jpg"} {
		if strings.HasSuffix(lower, ext) {
			derived = originalName[:len(originalName)-len(ext)] + ".png"
			break
		}
	}
	return Ref{OriginalName: originalName, DerivedName: derived}
}
