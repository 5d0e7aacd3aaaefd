package records

import "math"

// CrackCount is the displayed crack estimate for a damage percentage.
func CrackCount(percentage float64) int {
	return int(math.Round(percentage / 5))
}

// SurfaceFor grades a damage percentage.
func SurfaceFor(percentage float64) string {
	switch {
	case percentage < 5:
		return SurfaceGood
	case percentage < 20:
		return SurfaceFair
	default:
		return SurfacePoor
	}
}

// RecommendationFor returns the maintenance advice for a surface grade.
func RecommendationFor(surface string) string {
	if surface == SurfacePoor {
		return RecommendImmediateRepair
	}
	return RecommendRegularMonitoring
}
