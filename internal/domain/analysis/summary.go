package analysis

import (
	"fmt"

	"roadscan-server-go/internal/domain/estimator"
	"roadscan-server-go/internal/domain/records"
	"roadscan-server-go/internal/platform/config"
)

// SummaryLine formats the headline for an estimate. Quality mode reports the
// complement of the damage percentage.
func SummaryLine(mode string, est estimator.Estimate) string {
	if mode == config.SummaryQuality {
		return fmt.Sprintf("Road Quality: %.2f%%", est.Quality())
	}
	return fmt.Sprintf("Road Damage: %.2f%%", est.Percentage)
}

// CracksLine is the secondary readout.
func CracksLine(cracks int) string {
	return fmt.Sprintf("Cracks Detected: %d", cracks)
}

// QualityLine formats a whole-number quality readout.
func QualityLine(quality int) string {
	return fmt.Sprintf("Road Quality: %d%%", quality)
}

func validSummaryMode(mode string) bool {
	return mode == "" || mode == config.SummaryDamage || mode == config.SummaryQuality
}

func analysisFor(uploadID string, est estimator.Estimate) records.AnalysisResult {
	surface := records.SurfaceFor(est.Percentage)
	return records.AnalysisResult{
		UploadID:                  uploadID,
		SurfaceCondition:          surface,
		DefectCount:               records.CrackCount(est.Exact()),
		MaintenanceRecommendation: records.String(records.RecommendationFor(surface)),
	}
}
