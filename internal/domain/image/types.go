package image

import "errors"

var (
	// ErrUnsupportedMediaType rejects uploads outside the accepted image types.
	ErrUnsupportedMediaType = errors.New("Invalid file format. Please upload a JPEG, JPG, PNG, HEIC, HEIF, or TIFF image.")
	// ErrTooLarge rejects uploads over the configured byte cap.
	ErrTooLarge = errors.New("file exceeds the maximum upload size")
	// ErrInvalidImage rejects payloads that claim an allowed type but are corrupt or oversized in pixels.
	ErrInvalidImage = errors.New("image payload failed validation")
)

// ValidationResult captures the outcome of security validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	ContentType  string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}

// Metrics aggregates pipeline statistics for the health endpoint.
type Metrics struct {
	TotalProcessed    int64 `json:"total_processed"`
	Accepted          int64 `json:"accepted"`
	Oversized         int64 `json:"oversized"`
	FailedValidations int64 `json:"failed_validations"`
	SecurityIncidents int64 `json:"security_incidents"`
}
