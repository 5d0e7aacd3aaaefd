// Package estimator turns a companion overlay image into a damage percentage.
// Every function here is pure: the same raster and rule always give the same Estimate.
package estimator

import (
	"errors"
	"math"
)

// Estimate is the result of one scan. Percentage == round(Matched/Total*100, 2).
type Estimate struct {
	Matched    int     `json:"matched_pixel_count"`
	Total      int     `json:"total_pixel_count"`
	Percentage float64 `json:"percentage"`
	Rule       string  `json:"rule"`
}

// Quality is the complement of the damage percentage, also rounded to 2 decimals.
func (e Estimate) Quality() float64 {
	return Round2(100 - e.Percentage)
}

// Exact is Matched/Total*100 before display rounding.
func (e Estimate) Exact() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Matched) / float64(e.Total) * 100
}

// Run scans every pixel once in row-major order.
func Run(r *Raster, rule Rule) (Estimate, error) {
	if rule == nil {
		return Estimate{}, errors.New("pixel rule is required")
	}
	total := r.Pixels()
	if total == 0 {
		return Estimate{}, ErrEmptyImage
	}

	matched := 0
	for i := 0; i < total; i++ {
		if rule.Match(r.RGB(i)) {
			matched++
		}
	}

	return Estimate{
		Matched:    matched,
		Total:      total,
		Percentage: Round2(float64(matched) / float64(total) * 100),
		Rule:       rule.Name(),
	}, nil
}

// RunBytes decodes data and scans it.
func RunBytes(data []byte, rule Rule) (Estimate, error) {
	raster, _, err := Decode(data)
	if err != nil {
		return Estimate{}, err
	}
	return Run(raster, rule)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
