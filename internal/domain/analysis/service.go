// Package analysis runs the upload flow: cosmetic delay, companion lookup,
// pixel estimation, best-effort persistence and the per-visitor state machine.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/semaphore"

	"roadscan-server-go/internal/domain/companion"
	"roadscan-server-go/internal/domain/estimator"
	"roadscan-server-go/internal/domain/eventbus"
	"roadscan-server-go/internal/domain/records"
	"roadscan-server-go/internal/domain/records/placeholder"
	"roadscan-server-go/internal/domain/records/store"
	platformerrors "roadscan-server-go/internal/platform/errors"
	"roadscan-server-go/internal/platform/observability"
	"roadscan-server-go/internal/utils"
)

// Publisher is the slice of the event bus the service needs.
type Publisher interface {
	PublishAsync(topic string, args ...interface{})
}

type Options struct {
	DelayMin           time.Duration
	DelayMax           time.Duration
	MaxConcurrentScans int
	Summary            string
	Rule               estimator.Rule
	ResultCacheSize    int
}

type Dependencies struct {
	Locator      *companion.Locator
	Store        store.RecordStore
	Placeholders *placeholder.Generator
	Events       Publisher
	Logger       *utils.Logger
	// Sleep replaces the cosmetic delay, for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Request asks for one analysis. Zero fields take the service defaults.
type Request struct {
	SessionID string
	FileName  string
	Rule      estimator.Rule
	Summary   string
}

// Result is what a Complete transition exposes to the caller.
type Result struct {
	ResultID      string                  `json:"result_id"`
	TextField1    string                  `json:"text_field1"`
	TextField2    string                  `json:"text_field2"`
	ModifiedImage string                  `json:"modified_image"`
	Companion     companion.Ref           `json:"companion"`
	Estimate      estimator.Estimate      `json:"estimate"`
	Upload        records.Upload          `json:"upload"`
	Analysis      records.AnalysisResult  `json:"analysis"`
	Conditions    []records.RoadCondition `json:"conditions"`
	Persisted     bool                    `json:"persisted"`
	CreatedAt     time.Time               `json:"created_at"`
}

// Summary is the short readout served by result id.
type Summary struct {
	ResultID      string `json:"result_id"`
	TextField1    string `json:"text_field1"`
	TextField2    string `json:"text_field2"`
	ModifiedImage string `json:"modified_image"`
	Placeholder   bool   `json:"placeholder"`
}

// Lookup is an analysis with its road conditions.
type Lookup struct {
	Analysis    records.AnalysisResult  `json:"analysis"`
	Conditions  []records.RoadCondition `json:"conditions"`
	Placeholder bool                    `json:"placeholder"`
}

type Service struct {
	opts         Options
	locator      *companion.Locator
	store        store.RecordStore
	placeholders *placeholder.Generator
	events       Publisher
	logger       *utils.Logger
	sleep        func(ctx context.Context, d time.Duration) error
	scans        *semaphore.Weighted
	cache        *resultCache
}

func NewService(opts Options, deps Dependencies) (*Service, error) {
	if deps.Locator == nil {
		return nil, errors.New("companion locator is required")
	}
	if opts.DelayMin < 0 || opts.DelayMax < opts.DelayMin {
		return nil, fmt.Errorf("invalid delay range %s..%s", opts.DelayMin, opts.DelayMax)
	}
	if !validSummaryMode(opts.Summary) {
		return nil, fmt.Errorf("unknown summary mode %q", opts.Summary)
	}
	if opts.Rule == nil {
		opts.Rule = estimator.DamageHighlight
	}
	if opts.MaxConcurrentScans <= 0 {
		opts.MaxConcurrentScans = 1
	}
	if deps.Store == nil {
		deps.Store = store.NewNull("")
	}
	if deps.Placeholders == nil {
		deps.Placeholders = placeholder.New()
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepCtx
	}

	return &Service{
		opts:         opts,
		locator:      deps.Locator,
		store:        deps.Store,
		placeholders: deps.Placeholders,
		events:       deps.Events,
		logger:       deps.Logger,
		sleep:        deps.Sleep,
		scans:        semaphore.NewWeighted(int64(opts.MaxConcurrentScans)),
		cache:        newResultCache(opts.ResultCacheSize),
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) publish(topic string, data interface{}) {
	if s.events != nil {
		s.events.PublishAsync(topic, data)
	}
}

// delay picks a duration uniformly in [DelayMin, DelayMax].
func (s *Service) delay() time.Duration {
	span := s.opts.DelayMax - s.opts.DelayMin
	if span <= 0 {
		return s.opts.DelayMin
	}
	return s.opts.DelayMin + rand.N(span+1)
}

// Analyze runs the full flow for one upload. Only store failures are absorbed;
// a missing companion, undecodable image or empty raster is returned.
func (s *Service) Analyze(ctx context.Context, req Request) (result Result, err error) {
	start := time.Now()
	ctx, finish := observability.StartSpan(ctx, "analysis", "analyze")
	defer func() { finish(err) }()

	event := eventbus.AnalysisEventData{SessionID: req.SessionID, FileName: req.FileName}
	s.publish(eventbus.EventAnalysisStarted, event)
	defer func() {
		event.DurationMS = time.Since(start).Milliseconds()
		if err != nil {
			event.Error = err.Error()
			s.publish(eventbus.EventAnalysisFailed, event)
			return
		}
		event.ResultID = result.ResultID
		event.UploadID = result.Upload.ID
		event.DamagePercentage = result.Estimate.Percentage
		s.publish(eventbus.EventAnalysisCompleted, event)
	}()

	rule := req.Rule
	if rule == nil {
		rule = s.opts.Rule
	}
	event.Rule = rule.Name()
	mode := req.Summary
	if mode == "" {
		mode = s.opts.Summary
	}
	if !validSummaryMode(mode) {
		return Result{}, platformerrors.New(platformerrors.KindAnalysis, "analysis.summary", fmt.Sprintf("unknown summary mode %q", mode))
	}

	if err := s.sleep(ctx, s.delay()); err != nil {
		return Result{}, err
	}

	ref, est, err := s.scan(ctx, req.FileName, rule)
	if err != nil {
		return Result{}, err
	}
	event.CompanionName = ref.DerivedName

	imageURL := s.locator.URL(ref)
	result = Result{
		ResultID:      s.placeholders.ResultID(),
		TextField1:    SummaryLine(mode, est),
		TextField2:    CracksLine(records.CrackCount(est.Exact())),
		ModifiedImage: imageURL,
		Companion:     ref,
		Estimate:      est,
		CreatedAt:     time.Now(),
	}
	result.Upload, result.Analysis, result.Conditions, result.Persisted = s.persist(ctx, imageURL, est)

	s.cache.put(result)
	observability.RecordDuration(ctx, "analysis.duration_ms", start, map[string]string{"rule": rule.Name()})
	s.logger.InfoTag("Analysis", "%s -> %s: %d/%d pixels, %.2f%% (%s)",
		req.FileName, ref.DerivedName, est.Matched, est.Total, est.Percentage, result.ResultID)
	return result, nil
}

// scan holds one semaphore slot while the companion is read and decoded.
func (s *Service) scan(ctx context.Context, fileName string, rule estimator.Rule) (companion.Ref, estimator.Estimate, error) {
	if err := s.scans.Acquire(ctx, 1); err != nil {
		return companion.Ref{}, estimator.Estimate{}, err
	}
	defer s.scans.Release(1)

	ref, data, err := s.locator.Locate(ctx, fileName)
	if err != nil {
		if errors.Is(err, companion.ErrArtifactNotFound) {
			return ref, estimator.Estimate{}, platformerrors.Wrap(platformerrors.KindAnalysis, "analysis.locate", companion.ArtifactNotFoundMessage, err)
		}
		return ref, estimator.Estimate{}, platformerrors.Wrap(platformerrors.KindAnalysis, "analysis.locate", "failed to read companion", err)
	}

	est, err := estimator.RunBytes(data, rule)
	if err != nil {
		return ref, estimator.Estimate{}, platformerrors.Wrap(platformerrors.KindAnalysis, "analysis.estimate", "failed to estimate damage", err)
	}
	return ref, est, nil
}

// persist writes the upload, analysis and conditions. Any store error swaps in
// placeholders from that point on; persisted reports whether the upload and
// analysis both reached the store.
func (s *Service) persist(ctx context.Context, imageURL string, est estimator.Estimate) (records.Upload, records.AnalysisResult, []records.RoadCondition, bool) {
	upload, err := s.store.InsertUpload(ctx, records.Upload{
		UserID:           records.AnonymousUser,
		ImageURL:         imageURL,
		Status:           records.StatusCompleted,
		DamagePercentage: records.Float(est.Percentage),
	})
	if err != nil {
		upload = s.placeholders.Upload(imageURL, est.Percentage)
		s.fallback("insert upload", upload.ID, err)
		analysis, conditions := s.placeholderAnalysis(upload.ID, est)
		return upload, analysis, conditions, false
	}

	analysis, err := s.store.InsertAnalysis(ctx, analysisFor(upload.ID, est))
	if err != nil {
		analysis, conditions := s.placeholderAnalysis(upload.ID, est)
		s.fallback("insert analysis", analysis.ID, err)
		return upload, analysis, conditions, false
	}

	conditions, err := s.store.InsertConditions(ctx, s.placeholders.Graded(analysis.ID, analysis.SurfaceCondition))
	if err != nil {
		s.logger.WarnTag("Store", "insert conditions for %s: %v", analysis.ID, err)
		conditions = nil
	}
	return upload, analysis, conditions, true
}

// placeholderAnalysis grades est like a stored analysis but under a mock id,
// with fabricated conditions attached.
func (s *Service) placeholderAnalysis(uploadID string, est estimator.Estimate) (records.AnalysisResult, []records.RoadCondition) {
	analysis := analysisFor(uploadID, est)
	analysis.ID = placeholder.MockAnalysisID(uploadID)
	analysis.CreatedAt = s.placeholders.Now()
	return analysis, s.placeholders.Conditions(analysis.ID, uploadID, placeholder.MaxConditions)
}

func (s *Service) fallback(op, placeholderID string, err error) {
	s.logger.WarnTag("Store", "%s failed, using placeholder %s: %v", op, placeholderID, err)
	s.publish(eventbus.EventRecordFallback, eventbus.RecordFallbackEventData{
		Operation:     op,
		PlaceholderID: placeholderID,
		Reason:        err.Error(),
	})
}

// Lookup returns the analysis for uploadID. Placeholder upload ids and every
// store failure are answered with fabricated data marked Placeholder.
func (s *Service) Lookup(ctx context.Context, uploadID string) (Lookup, error) {
	if uploadID == "" {
		return Lookup{}, errors.New("upload id is required")
	}

	if records.IsLocalUpload(uploadID) {
		return Lookup{
			Analysis:    s.placeholders.Analysis(uploadID, uploadID),
			Conditions:  s.placeholders.Conditions(uploadID, uploadID, placeholder.MaxConditions),
			Placeholder: true,
		}, nil
	}

	analysis, err := s.store.FindAnalysisByUpload(ctx, uploadID)
	if err != nil {
		mockID := placeholder.MockAnalysisID(uploadID)
		s.fallback("find analysis", mockID, err)
		return Lookup{
			Analysis:    s.placeholders.Analysis(mockID, uploadID),
			Conditions:  s.placeholders.Conditions(mockID, uploadID, 2),
			Placeholder: true,
		}, nil
	}

	conditions, err := s.store.FindConditions(ctx, analysis.ID)
	if err != nil {
		s.fallback("find conditions", analysis.ID, err)
		return Lookup{
			Analysis:    analysis,
			Conditions:  s.placeholders.Conditions(analysis.ID, analysis.ID, 2),
			Placeholder: true,
		}, nil
	}
	return Lookup{Analysis: analysis, Conditions: conditions}, nil
}

// Result returns the summary for a recent result id, or a random placeholder
// readout when the id is unknown.
func (s *Service) Result(resultID string) Summary {
	if r, ok := s.cache.get(resultID); ok {
		return Summary{
			ResultID:      r.ResultID,
			TextField1:    r.TextField1,
			TextField2:    r.TextField2,
			ModifiedImage: r.ModifiedImage,
		}
	}
	fake := s.placeholders.Summary()
	return Summary{
		ResultID:    resultID,
		TextField1:  QualityLine(fake.Quality),
		TextField2:  CracksLine(fake.Cracks),
		Placeholder: true,
	}
}

// CachedResults is the number of results held for Result lookups.
func (s *Service) CachedResults() int {
	return s.cache.len()
}

// Store exposes the record store for health reporting.
func (s *Service) Store() store.RecordStore {
	return s.store
}
