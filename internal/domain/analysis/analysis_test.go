package analysis

import (
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadscan-server-go/internal/domain/companion"
	"roadscan-server-go/internal/domain/estimator"
	"roadscan-server-go/internal/domain/eventbus"
	"roadscan-server-go/internal/domain/image"
	"roadscan-server-go/internal/domain/records"
	"roadscan-server-go/internal/domain/records/placeholder"
	"roadscan-server-go/internal/domain/records/store"
	"roadscan-server-go/internal/platform/config"
	platformerrors "roadscan-server-go/internal/platform/errors"
)

type recordedEvent struct {
	topic string
	data  interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) PublishAsync(topic string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var data interface{}
	if len(args) > 0 {
		data = args[0]
	}
	r.events = append(r.events, recordedEvent{topic: topic, data: data})
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.topic)
	}
	return out
}

// overlayPNG draws a w*h white image with the first n pixels in the highlight colour.
func overlayPNG(t *testing.T, w, h, n int) []byte {
	t.Helper()
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		if i < n {
			c = color.NRGBA{R: 254, G: 201, B: 201, A: 255}
		}
		img.SetNRGBA(i%w, i/w, c)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	dir     string
	store   store.RecordStore
	events  *recorder
	service *Service
	delays  []time.Duration
}

func newFixture(t *testing.T, st store.RecordStore, opts Options) *fixture {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "im-r")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	loc, err := companion.NewLocator(companion.Options{Root: root, Subdir: "im-r", URLPrefix: "/config-folder"})
	require.NoError(t, err)

	f := &fixture{dir: dir, store: st, events: &recorder{}}
	var mu sync.Mutex
	svc, err := NewService(opts, Dependencies{
		Locator:      loc,
		Store:        st,
		Placeholders: placeholder.NewSeeded(1, 2),
		Events:       f.events,
		Sleep: func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			f.delays = append(f.delays, d)
			mu.Unlock()
			return ctx.Err()
		},
	})
	require.NoError(t, err)
	f.service = svc
	return f
}

func (f *fixture) writeCompanion(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), data, 0o644))
}

func TestSession_Transitions(t *testing.T) {
	s := NewSession("s1", time.Now())
	var moves []string
	s.onChange = func(_ string, from, to State) { moves = append(moves, string(from)+">"+string(to)) }

	_, err := s.Begin()
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	require.NoError(t, s.Select(SelectedFile{Name: "a.jpg"}))
	require.NoError(t, s.Select(SelectedFile{Name: "b.jpg"}))
	file, err := s.Begin()
	require.NoError(t, err)
	assert.Equal(t, "b.jpg", file.Name)

	assert.True(t, errors.Is(s.Select(SelectedFile{Name: "c.jpg"}), ErrInvalidTransition))
	assert.True(t, errors.Is(s.Retry(), ErrInvalidTransition))

	require.NoError(t, s.Fail(errors.New("boom")))
	assert.Equal(t, "boom", s.View().Error)
	assert.True(t, errors.Is(s.Complete(Result{}), ErrInvalidTransition))

	require.NoError(t, s.Retry())
	assert.Equal(t, "b.jpg", s.View().File.Name)
	assert.Empty(t, s.View().Error)

	_, err = s.Begin()
	require.NoError(t, err)
	require.NoError(t, s.Complete(Result{ResultID: "result-1"}))
	assert.Equal(t, "result-1", s.View().Result.ResultID)
	assert.True(t, errors.Is(s.Select(SelectedFile{Name: "d.jpg"}), ErrInvalidTransition))

	s.Reset()
	v := s.View()
	assert.Equal(t, StateIdle, v.State)
	assert.Nil(t, v.File)
	assert.Nil(t, v.Result)

	assert.Equal(t, []string{
		"Idle>FileSelected",
		"FileSelected>Processing",
		"Processing>Failed",
		"Failed>FileSelected",
		"FileSelected>Processing",
		"Processing>Complete",
		"Complete>Idle",
	}, moves)
}

func TestSession_OnChangeMayReadSession(t *testing.T) {
	s := NewSession("s1", time.Now())
	var seen []State
	s.onChange = func(_ string, _, to State) {
		v := s.View()
		seen = append(seen, v.State)
		assert.Equal(t, to, s.State())
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Select(SelectedFile{Name: "road.jpg"})
		_, _ = s.Begin()
		_ = s.Fail(errors.New("boom"))
		s.Reset()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange blocked on the session lock")
	}
	assert.Equal(t, []State{StateFileSelected, StateProcessing, StateFailed, StateIdle}, seen)
}

func TestSummaryLines(t *testing.T) {
	est := estimator.Estimate{Percentage: 12.5}
	assert.Equal(t, "Road Damage: 12.50%", SummaryLine(config.SummaryDamage, est))
	assert.Equal(t, "Road Damage: 12.50%", SummaryLine("", est))
	assert.Equal(t, "Road Quality: 87.50%", SummaryLine(config.SummaryQuality, est))
	assert.Equal(t, "Cracks Detected: 3", CracksLine(3))
	assert.Equal(t, "Road Quality: 42%", QualityLine(42))
}

func TestNewService_Validation(t *testing.T) {
	loc, err := companion.NewLocator(companion.Options{Root: t.TempDir()})
	require.NoError(t, err)

	_, err = NewService(Options{}, Dependencies{})
	assert.Error(t, err)
	_, err = NewService(Options{DelayMin: 2 * time.Second, DelayMax: time.Second}, Dependencies{Locator: loc})
	assert.Error(t, err)
	_, err = NewService(Options{Summary: "both"}, Dependencies{Locator: loc})
	assert.Error(t, err)
	_, err = NewService(Options{}, Dependencies{Locator: loc})
	assert.NoError(t, err)
}

func TestAnalyze_ThreePercent(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{DelayMin: 5 * time.Second, DelayMax: 7 * time.Second})
	f.writeCompanion(t, "street1.png", overlayPNG(t, 10, 10, 3))

	res, err := f.service.Analyze(context.Background(), Request{SessionID: "s1", FileName: "street1.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Estimate.Matched)
	assert.Equal(t, 100, res.Estimate.Total)
	assert.Equal(t, 3.0, res.Estimate.Percentage)
	assert.Equal(t, "Road Damage: 3.00%", res.TextField1)
	assert.Equal(t, "Cracks Detected: 1", res.TextField2)
	assert.Equal(t, "/config-folder/im-r/street1.png", res.ModifiedImage)
	assert.Equal(t, "street1.png", res.Companion.DerivedName)
	assert.True(t, strings.HasPrefix(res.ResultID, records.ResultPrefix))

	assert.True(t, res.Persisted)
	assert.False(t, records.IsPlaceholder(res.Upload.ID))
	assert.Equal(t, records.AnonymousUser, res.Upload.UserID)
	require.NotNil(t, res.Upload.DamagePercentage)
	assert.Equal(t, 3.0, *res.Upload.DamagePercentage)
	assert.Equal(t, res.Upload.ID, res.Analysis.UploadID)
	assert.Equal(t, records.SurfaceGood, res.Analysis.SurfaceCondition)
	assert.Equal(t, 1, res.Analysis.DefectCount)
	assert.Empty(t, res.Conditions)

	require.Len(t, f.delays, 1)
	assert.GreaterOrEqual(t, f.delays[0], 5*time.Second)
	assert.LessOrEqual(t, f.delays[0], 7*time.Second)

	stored, err := f.store.FindAnalysisByUpload(context.Background(), res.Upload.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Analysis.ID, stored.ID)

	assert.Equal(t, []string{eventbus.EventAnalysisStarted, eventbus.EventAnalysisCompleted}, f.events.topics())
}

func TestAnalyze_QualityModeAndPoorSurface(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{Summary: config.SummaryQuality})
	f.writeCompanion(t, "street2.png", overlayPNG(t, 10, 10, 25))

	res, err := f.service.Analyze(context.Background(), Request{FileName: "street2.JPEG"})
	require.NoError(t, err)
	assert.Equal(t, "Road Quality: 75.00%", res.TextField1)
	assert.Equal(t, "Cracks Detected: 5", res.TextField2)
	assert.Equal(t, records.SurfacePoor, res.Analysis.SurfaceCondition)
	require.NotNil(t, res.Analysis.MaintenanceRecommendation)
	assert.Equal(t, records.RecommendImmediateRepair, *res.Analysis.MaintenanceRecommendation)
	assert.Len(t, res.Conditions, placeholder.MaxConditions)

	damage, err := f.service.Analyze(context.Background(), Request{FileName: "street2.jpg", Summary: config.SummaryDamage})
	require.NoError(t, err)
	assert.Equal(t, "Road Damage: 25.00%", damage.TextField1)
}

func TestAnalyze_RuleOverride(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 254, G: 201, B: 201, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	f.writeCompanion(t, "mixed.png", buf.Bytes())

	exact, err := f.service.Analyze(context.Background(), Request{FileName: "mixed.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 25.0, exact.Estimate.Percentage)

	loose, err := f.service.Analyze(context.Background(), Request{FileName: "mixed.jpg", Rule: estimator.NonBackground{}})
	require.NoError(t, err)
	assert.Equal(t, 50.0, loose.Estimate.Percentage)
}

func TestAnalyze_MissingCompanion(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})

	_, err := f.service.Analyze(context.Background(), Request{FileName: "missing.jpg"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrArtifactNotFound))
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindAnalysis))
	assert.Contains(t, err.Error(), companion.ArtifactNotFoundMessage)
	assert.Equal(t, []string{eventbus.EventAnalysisStarted, eventbus.EventAnalysisFailed}, f.events.topics())

	stats, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats["uploads"])
}

func TestAnalyze_BracketedNameFindsItsCompanion(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	f.writeCompanion(t, "road.png", overlayPNG(t, 10, 10, 50))
	f.writeCompanion(t, "road<1>.png", overlayPNG(t, 10, 10, 3))

	res, err := f.service.Analyze(context.Background(), Request{FileName: "road<1>.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "road<1>.png", res.Companion.DerivedName)
	assert.Equal(t, 3.0, res.Estimate.Percentage)
}

func TestAnalyze_CracksUseUnroundedPercentage(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	f.writeCompanion(t, "edge.png", overlayPNG(t, 250, 100, 624))

	res, err := f.service.Analyze(context.Background(), Request{FileName: "edge.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 2.5, res.Estimate.Percentage)
	assert.Equal(t, "Road Damage: 2.50%", res.TextField1)
	assert.Equal(t, "Cracks Detected: 0", res.TextField2)
	assert.Equal(t, 0, res.Analysis.DefectCount)
}

func TestAnalyze_DecodeAndEmpty(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	f.writeCompanion(t, "broken.png", []byte("not a png"))

	_, err := f.service.Analyze(context.Background(), Request{FileName: "broken.jpg"})
	assert.True(t, errors.Is(err, estimator.ErrDecode))
}

func TestAnalyze_StoreUnavailable(t *testing.T) {
	f := newFixture(t, store.NewNull("offline"), Options{})
	f.writeCompanion(t, "street1.png", overlayPNG(t, 10, 10, 3))

	res, err := f.service.Analyze(context.Background(), Request{FileName: "street1.jpg"})
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.True(t, records.IsLocalUpload(res.Upload.ID))
	assert.Equal(t, placeholder.MockAnalysisID(res.Upload.ID), res.Analysis.ID)
	assert.Equal(t, res.Upload.ID, res.Analysis.UploadID)
	assert.Len(t, res.Conditions, placeholder.MaxConditions)
	assert.Equal(t, "Road Damage: 3.00%", res.TextField1)

	assert.Contains(t, f.events.topics(), eventbus.EventRecordFallback)
}

func TestAnalyze_CancelledDuringDelay(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	f.writeCompanion(t, "street1.png", overlayPNG(t, 10, 10, 3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.Analyze(ctx, Request{FileName: "street1.jpg"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLookup(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	f.writeCompanion(t, "street1.png", overlayPNG(t, 10, 10, 30))
	ctx := context.Background()

	res, err := f.service.Analyze(ctx, Request{FileName: "street1.jpg"})
	require.NoError(t, err)

	found, err := f.service.Lookup(ctx, res.Upload.ID)
	require.NoError(t, err)
	assert.False(t, found.Placeholder)
	assert.Equal(t, res.Analysis.ID, found.Analysis.ID)
	assert.Len(t, found.Conditions, placeholder.MaxConditions)

	local, err := f.service.Lookup(ctx, "local-1700000000000")
	require.NoError(t, err)
	assert.True(t, local.Placeholder)
	assert.Equal(t, "local-1700000000000", local.Analysis.ID)
	assert.Len(t, local.Conditions, placeholder.MaxConditions)

	unknown, err := f.service.Lookup(ctx, "no-such-upload")
	require.NoError(t, err)
	assert.True(t, unknown.Placeholder)
	assert.Equal(t, "mock-no-such-upload", unknown.Analysis.ID)
	assert.Equal(t, "no-such-upload", unknown.Analysis.UploadID)
	assert.Len(t, unknown.Conditions, 2)

	_, err = f.service.Lookup(ctx, "")
	assert.Error(t, err)
}

func TestResult_CachedAndPlaceholder(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	f.writeCompanion(t, "street1.png", overlayPNG(t, 10, 10, 3))

	res, err := f.service.Analyze(context.Background(), Request{FileName: "street1.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.service.CachedResults())

	got := f.service.Result(res.ResultID)
	assert.False(t, got.Placeholder)
	assert.Equal(t, res.TextField1, got.TextField1)
	assert.Equal(t, res.ModifiedImage, got.ModifiedImage)

	fake := f.service.Result("result-1")
	assert.True(t, fake.Placeholder)
	assert.Equal(t, "result-1", fake.ResultID)
	assert.True(t, strings.HasPrefix(fake.TextField1, "Road Quality: "))
	assert.True(t, strings.HasPrefix(fake.TextField2, "Cracks Detected: "))
	assert.Empty(t, fake.ModifiedImage)
}

func newManager(t *testing.T, f *fixture) *Manager {
	t.Helper()
	ingest := config.DefaultConfig().Ingest
	pipeline, err := image.NewPipeline(image.Options{Ingest: &ingest})
	require.NoError(t, err)
	return NewManager(ManagerOptions{TTL: time.Minute}, f.service, pipeline, f.events, nil)
}

func upload(t *testing.T, name string, data []byte) image.Input {
	t.Helper()
	return image.Input{Reader: bytes.NewReader(data), Filename: name}
}

func TestManager_HappyPath(t *testing.T) {
	f := newFixture(t, store.NewNull("offline"), Options{})
	overlay := overlayPNG(t, 10, 10, 3)
	f.writeCompanion(t, "street1.png", overlay)
	m := newManager(t, f)
	ctx := context.Background()

	v := m.Create()
	assert.Equal(t, StateIdle, v.State)

	v, err := m.SelectFile(ctx, v.ID, upload(t, "street1.jpg", overlay))
	require.NoError(t, err)
	assert.Equal(t, StateFileSelected, v.State)
	assert.Equal(t, "street1.jpg", v.File.Name)
	assert.Len(t, v.File.Checksum, 64)

	v, err = m.Analyze(ctx, v.ID, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, StateComplete, v.State)
	require.NotNil(t, v.Result)
	assert.Equal(t, "Road Damage: 3.00%", v.Result.TextField1)
	assert.True(t, records.IsLocalUpload(v.Result.Upload.ID))

	assert.Contains(t, f.events.topics(), eventbus.EventSessionTransition)
}

func TestManager_MissingCompanionThenRetry(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	m := newManager(t, f)
	ctx := context.Background()

	v := m.Create()
	_, err := m.SelectFile(ctx, v.ID, upload(t, "missing.jpg", overlayPNG(t, 2, 2, 0)))
	require.NoError(t, err)

	v, err = m.Analyze(ctx, v.ID, AnalyzeOptions{})
	assert.True(t, errors.Is(err, companion.ErrArtifactNotFound))
	assert.Equal(t, StateFailed, v.State)
	assert.Contains(t, v.Error, companion.ArtifactNotFoundMessage)

	f.writeCompanion(t, "missing.png", overlayPNG(t, 10, 10, 3))
	v, err = m.Retry(v.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFileSelected, v.State)

	v, err = m.Analyze(ctx, v.ID, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, StateComplete, v.State)

	v, err = m.Reset(v.ID)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, v.State)
}

func TestManager_RejectedFileKeepsState(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	m := newManager(t, f)
	ctx := context.Background()
	v := m.Create()

	v, err := m.SelectFile(ctx, v.ID, upload(t, "anim.gif", []byte("GIF89a")))
	assert.True(t, errors.Is(err, image.ErrUnsupportedMediaType))
	assert.Equal(t, StateIdle, v.State)

	_, err = m.Analyze(ctx, v.ID, AnalyzeOptions{})
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = m.Get("nope")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestManager_Sweep(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	m := newManager(t, f)
	m.Create()
	m.Create()
	require.Equal(t, 2, m.Len())

	assert.Equal(t, 0, m.Sweep(time.Now()))
	assert.Equal(t, 2, m.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, m.Len())
}

func TestManager_Delete(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Options{})
	m := newManager(t, f)
	v := m.Create()
	require.NoError(t, m.Delete(v.ID))
	assert.True(t, errors.Is(m.Delete(v.ID), ErrSessionNotFound))
}
