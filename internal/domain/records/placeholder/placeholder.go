// Package placeholder fabricates clearly-marked records for when the record
// store cannot be reached. Nothing it returns is ever persisted.
package placeholder

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"roadscan-server-go/internal/domain/records"
)

type conditionTemplate struct {
	location      string
	conditionType string
	severity      string
	coordinates   [2]float64
}

var templates = []conditionTemplate{
	{"Northeast section", "Surface cracks", records.SeverityMedium, [2]float64{40.7128, -74.0060}},
	{"Southern boundary", "Edge deterioration", records.SeverityLow, [2]float64{40.7129, -74.0061}},
	{"Intersection", "Pothole formation", records.SeverityHigh, [2]float64{40.7130, -74.0062}},
}

// MaxConditions is the number of distinct condition templates.
var MaxConditions = len(templates)

// Summary is a fabricated result readout.
type Summary struct {
	Quality int
	Cracks  int
}

// Generator produces placeholder records. It is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	now    func() time.Time
	lastMS int64
}

// New returns a generator seeded from the runtime source.
func New() *Generator {
	return NewSeeded(rand.Uint64(), rand.Uint64())
}

// NewSeeded returns a deterministic generator.
func NewSeeded(seed1, seed2 uint64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed1, seed2)),
		now: time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

func (g *Generator) float() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

func (g *Generator) intN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

// Now is the generator's clock.
func (g *Generator) Now() time.Time {
	return g.now()
}

// stamp returns the current unix millisecond, bumped past the previous
// value so ids minted in the same millisecond stay distinct.
func (g *Generator) stamp() int64 {
	ms := g.now().UnixMilli()
	g.mu.Lock()
	defer g.mu.Unlock()
	if ms <= g.lastMS {
		ms = g.lastMS + 1
	}
	g.lastMS = ms
	return ms
}

// UploadID returns a local-<unix-ms> identifier.
func (g *Generator) UploadID() string {
	return fmt.Sprintf("%s%d", records.LocalUploadPrefix, g.stamp())
}

// ResultID returns a result-<unix-ms> identifier.
func (g *Generator) ResultID() string {
	return fmt.Sprintf("%s%d", records.ResultPrefix, g.stamp())
}

// Upload fabricates a completed upload owned by the anonymous user.
func (g *Generator) Upload(imageURL string, damage float64) records.Upload {
	return records.Upload{
		ID:               g.UploadID(),
		UserID:           records.AnonymousUser,
		ImageURL:         imageURL,
		Status:           records.StatusCompleted,
		DamagePercentage: records.Float(damage),
		CreatedAt:        g.now(),
	}
}

// Analysis fabricates an analysis with random grading.
func (g *Generator) Analysis(id, uploadID string) records.AnalysisResult {
	surface := records.SurfacePoor
	switch {
	case g.float() > 0.5:
		surface = records.SurfaceGood
	case g.float() > 0.5:
		surface = records.SurfaceFair
	}
	recommendation := records.RecommendRegularMonitoring
	if g.float() > 0.7 {
		recommendation = records.RecommendImmediateRepair
	}
	return records.AnalysisResult{
		ID:                        id,
		UploadID:                  uploadID,
		SurfaceCondition:          surface,
		DefectCount:               g.intN(10),
		MaintenanceRecommendation: records.String(recommendation),
		CreatedAt:                 g.now(),
	}
}

// MockAnalysisID is the identifier used for an analysis the store could not return.
func MockAnalysisID(uploadID string) string {
	return records.MockAnalysisPrefix + uploadID
}

// Conditions fabricates up to MaxConditions road conditions for analysisID.
// Condition ids are cond-<n>-<suffix>.
func (g *Generator) Conditions(analysisID, suffix string, n int) []records.RoadCondition {
	n = max(0, min(n, len(templates)))
	out := make([]records.RoadCondition, 0, n)
	now := g.now()
	for i := 0; i < n; i++ {
		tpl := templates[i]
		out = append(out, records.RoadCondition{
			ID:            fmt.Sprintf("%s%d-%s", records.ConditionPrefix, i+1, suffix),
			AnalysisID:    analysisID,
			Location:      tpl.location,
			ConditionType: tpl.conditionType,
			Severity:      tpl.severity,
			Coordinates:   tpl.coordinates,
			CreatedAt:     now,
		})
	}
	return out
}

// Graded returns the condition templates that match a surface grade, without
// ids, for storing alongside a real analysis: none for Good, the first for
// Fair and all of them for Poor.
func (g *Generator) Graded(analysisID, surface string) []records.RoadCondition {
	n := 0
	switch surface {
	case records.SurfaceFair:
		n = 1
	case records.SurfacePoor:
		n = len(templates)
	}
	out := g.Conditions(analysisID, "", n)
	for i := range out {
		out[i].ID = ""
	}
	return out
}

// Summary fabricates a readout for a result id nobody computed.
func (g *Generator) Summary() Summary {
	return Summary{Quality: g.intN(100), Cracks: g.intN(15)}
}
