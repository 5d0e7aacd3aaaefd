// Package records holds the upload, analysis and road-condition records that
// the analysis flow persists best-effort.
package records

import (
	"strings"
	"time"
)

// Upload statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Severity levels for a road condition.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Surface conditions.
const (
	SurfaceGood = "Good"
	SurfaceFair = "Fair"
	SurfacePoor = "Poor"
)

const (
	RecommendImmediateRepair   = "Immediate repair needed"
	RecommendRegularMonitoring = "Regular monitoring recommended"
)

// Identifier prefixes for records that were fabricated rather than stored.
const (
	LocalUploadPrefix  = "local-"
	MockAnalysisPrefix = "mock-"
	ConditionPrefix    = "cond-"
	ResultPrefix       = "result-"
	AnonymousUser      = "anonymous"
)

type Upload struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	ImageURL         string    `json:"image_url"`
	Status           string    `json:"status"`
	DamagePercentage *float64  `json:"damage_percentage,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type AnalysisResult struct {
	ID                        string    `json:"id"`
	UploadID                  string    `json:"upload_id"`
	SurfaceCondition          string    `json:"surface_condition"`
	DefectCount               int       `json:"defect_count"`
	MaintenanceRecommendation *string   `json:"maintenance_recommendation"`
	CreatedAt                 time.Time `json:"created_at"`
}

type RoadCondition struct {
	ID            string     `json:"id"`
	AnalysisID    string     `json:"analysis_id"`
	Location      string     `json:"location"`
	ConditionType string     `json:"condition_type"`
	Severity      string     `json:"severity"`
	Coordinates   [2]float64 `json:"coordinates"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsPlaceholder reports whether id marks a record that was never persisted.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, LocalUploadPrefix) || strings.HasPrefix(id, MockAnalysisPrefix)
}

// IsLocalUpload reports whether id was issued while the store was unavailable.
func IsLocalUpload(id string) bool {
	return strings.HasPrefix(id, LocalUploadPrefix)
}

// Float is a helper for the optional damage percentage.
func Float(v float64) *float64 {
	return &v
}

func String(v string) *string {
	return &v
}
