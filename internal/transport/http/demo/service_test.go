package demo_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	stdimage "image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadscan-server-go/internal/domain/analysis"
	"roadscan-server-go/internal/domain/companion"
	"roadscan-server-go/internal/domain/eventbus"
	"roadscan-server-go/internal/domain/eventbus/infrastructure"
	"roadscan-server-go/internal/domain/eventbus/repository"
	"roadscan-server-go/internal/domain/image"
	"roadscan-server-go/internal/domain/modelstatus"
	"roadscan-server-go/internal/domain/records/store"
	"roadscan-server-go/internal/platform/config"
	"roadscan-server-go/internal/platform/storage"
	platformtesting "roadscan-server-go/internal/platform/testing"
	httptransport "roadscan-server-go/internal/transport/http"
	"roadscan-server-go/internal/transport/http/demo"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

type server struct {
	engine *gin.Engine
	dir    string
	bus    *eventbus.AsyncEventBus
}

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

func newServer(t *testing.T, tweak func(*config.Config)) *server {
	t.Helper()
	return buildServer(t, tweak, false)
}

// newJournalServer wires an event bus whose handlers journal into sqlite.
func newJournalServer(t *testing.T) *server {
	t.Helper()
	return buildServer(t, nil, true)
}

func buildServer(t *testing.T, tweak func(*config.Config), withJournal bool) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := platformtesting.SetupTestConfig(t)
	cfg.Log.Level = "INFO"
	if tweak != nil {
		tweak(cfg)
	}
	logger := platformtesting.SetupTaggedLogger(t)

	dir := filepath.Join(cfg.Companion.Root, cfg.Companion.Subdir)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	loc, err := companion.NewLocator(companion.Options{
		Root:      cfg.Companion.Root,
		Subdir:    cfg.Companion.Subdir,
		URLPrefix: cfg.Companion.URLPrefix,
	})
	require.NoError(t, err)

	deps := analysis.Dependencies{
		Locator: loc,
		Store:   store.NewMemory(),
		Logger:  logger,
		Sleep:   func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}
	var (
		bus     *eventbus.AsyncEventBus
		journal *eventbus.Journal
	)
	if withJournal {
		db, err := storage.Open(storage.Options{DSN: fmt.Sprintf("file:demo-%d?mode=memory&cache=shared", time.Now().UnixNano())})
		require.NoError(t, err)
		t.Cleanup(func() { _ = storage.Close(db) })
		repo := infrastructure.NewEventRepository(db)
		journal = eventbus.NewJournal(repo, time.Hour, logger)

		bus = eventbus.New(2, logger)
		t.Cleanup(bus.Stop)
		require.NoError(t, eventbus.SetupEventHandlers(bus, eventbus.NewDefaultEventHandler(logger, repo)))
		deps.Events = bus
	}

	svc, err := analysis.NewService(analysis.Options{}, deps)
	require.NoError(t, err)

	pipeline, err := image.NewPipeline(image.Options{Ingest: &cfg.Ingest, Logger: logger})
	require.NoError(t, err)
	manager := analysis.NewManager(analysis.ManagerOptions{TTL: time.Minute}, svc, pipeline, deps.Events, logger)

	router, err := httptransport.Build(httptransport.Options{Config: cfg, Logger: logger})
	require.NoError(t, err)
	httptransport.MountDocs(router.Engine, logger)

	d, err := demo.NewService(demo.Options{
		Analysis:  svc,
		Sessions:  manager,
		Pipeline:  pipeline,
		Model:     modelstatus.New(filepath.Join(t.TempDir(), "model.pth"), false, logger),
		Journal:   journal,
		MaxUpload: cfg.Ingest.MaxFileSize,
		Logger:    logger,
	})
	require.NoError(t, err)
	require.NoError(t, d.Register(context.Background(), router.API))

	return &server{engine: router.Engine, dir: dir, bus: bus}
}

func (s *server) companion(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, name), data, 0o644))
}

func (s *server) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func multipartRequest(t *testing.T, method, target, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload_Success(t *testing.T) {
	s := newServer(t, nil)
	overlay := overlayPNG(t, 10, 10, 3)
	s.companion(t, "street1.png", overlay)

	rec, env := s.do(t, multipartRequest(t, http.MethodPost, "/api/upload", "street1.jpg", overlay, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	var got demo.UploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Road Damage: 3.00%", got.TextField1)
	assert.Equal(t, "Cracks Detected: 1", got.TextField2)
	assert.Equal(t, "/config-folder/im-r/street1.png", got.ModifiedImage)
	assert.Equal(t, 3.0, got.Estimate.Percentage)
	assert.True(t, got.Persisted)
	assert.NotEmpty(t, got.ResultID)

	// the overlay URL resolves through the static mount
	rec, _ = s.do(t, httptest.NewRequest(http.MethodGet, got.ModifiedImage, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/results/"+got.ResultID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary analysis.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.False(t, summary.Placeholder)
	assert.Equal(t, got.TextField1, summary.TextField1)

	rec, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/analysis/"+got.Upload.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var lookup analysis.Lookup
	require.NoError(t, json.Unmarshal(env.Data, &lookup))
	assert.False(t, lookup.Placeholder)
	assert.Equal(t, got.Analysis.ID, lookup.Analysis.ID)
}

func TestUpload_QualitySummary(t *testing.T) {
	s := newServer(t, nil)
	overlay := overlayPNG(t, 10, 10, 3)
	s.companion(t, "street1.png", overlay)

	rec, env := s.do(t, multipartRequest(t, http.MethodPost, "/api/upload", "street1.jpg", overlay,
		map[string]string{"summary": "quality"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got demo.UploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Road Quality: 97.00%", got.TextField1)
}

func TestUpload_Errors(t *testing.T) {
	s := newServer(t, nil)
	overlay := overlayPNG(t, 4, 4, 1)

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		message string
	}{
		{
			name:    "unsupported type",
			req:     multipartRequest(t, http.MethodPost, "/api/upload", "anim.gif", []byte("GIF89a"), nil),
			status:  http.StatusUnsupportedMediaType,
			message: image.ErrUnsupportedMediaType.Error(),
		},
		{
			name:    "missing companion",
			req:     multipartRequest(t, http.MethodPost, "/api/upload", "missing.jpg", overlay, nil),
			status:  http.StatusNotFound,
			message: companion.ArtifactNotFoundMessage,
		},
		{
			name:   "no file",
			req:    multipartRequest(t, http.MethodPost, "/api/upload", "", nil, nil),
			status: http.StatusBadRequest,
		},
		{
			name:   "bad rule",
			req:    multipartRequest(t, http.MethodPost, "/api/upload", "road.png", overlay, map[string]string{"rule": "fuzzy"}),
			status: http.StatusBadRequest,
		},
		{
			name:   "bad summary",
			req:    multipartRequest(t, http.MethodPost, "/api/upload", "road.png", overlay, map[string]string{"summary": "both"}),
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Message)
			}
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	s := newServer(t, func(cfg *config.Config) { cfg.Ingest.MaxFileSize = 256 })
	big := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 1024)...)

	rec, env := s.do(t, multipartRequest(t, http.MethodPost, "/api/upload", "road.png", big, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.False(t, env.Success)
}

func TestUpload_UndecodableCompanion(t *testing.T) {
	s := newServer(t, nil)
	s.companion(t, "road.png", []byte("not an image"))

	rec, _ := s.do(t, multipartRequest(t, http.MethodPost, "/api/upload", "road.jpg", overlayPNG(t, 2, 2, 0), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestModelStatus(t *testing.T) {
	s := newServer(t, nil)
	rec, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/model-status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status modelstatus.Status
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.ModelAvailable)
	assert.Contains(t, string(env.Data), `"modelAvailable":false`)
}

func TestPlaceholderLookups(t *testing.T) {
	s := newServer(t, nil)

	rec, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/results/result-42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary analysis.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.True(t, summary.Placeholder)
	assert.True(t, strings.HasPrefix(summary.TextField1, "Road Quality: "))

	rec, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/analysis/local-1700000000000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var lookup analysis.Lookup
	require.NoError(t, json.Unmarshal(env.Data, &lookup))
	assert.True(t, lookup.Placeholder)
	assert.Len(t, lookup.Conditions, 3)
}

func TestSessionFlow(t *testing.T) {
	s := newServer(t, nil)
	overlay := overlayPNG(t, 10, 10, 3)

	rec, env := s.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var view analysis.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, analysis.StateIdle, view.State)
	base := "/api/sessions/" + view.ID

	rec, _ = s.do(t, httptest.NewRequest(http.MethodPost, base+"/analyze", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = s.do(t, multipartRequest(t, http.MethodPut, base+"/file", "street1.jpg", overlay, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, analysis.StateFileSelected, view.State)

	// companion not there yet
	rec, env = s.do(t, httptest.NewRequest(http.MethodPost, base+"/analyze", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, analysis.StateFailed, view.State)

	s.companion(t, "street1.png", overlay)
	rec, _ = s.do(t, httptest.NewRequest(http.MethodPost, base+"/retry", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, httptest.NewRequest(http.MethodPost, base+"/analyze?summary=quality", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, analysis.StateComplete, view.State)
	require.NotNil(t, view.Result)
	assert.Equal(t, "Road Quality: 97.00%", view.Result.TextField1)

	rec, _ = s.do(t, httptest.NewRequest(http.MethodPost, base+"/retry", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = s.do(t, httptest.NewRequest(http.MethodPost, base+"/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, analysis.StateIdle, view.State)

	rec, _ = s.do(t, httptest.NewRequest(http.MethodDelete, base, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, httptest.NewRequest(http.MethodGet, base, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionEvents(t *testing.T) {
	s := newJournalServer(t)
	overlay := overlayPNG(t, 10, 10, 3)
	s.companion(t, "lane.png", overlay)

	_, env := s.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	var view analysis.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	base := "/api/sessions/" + view.ID

	rec, _ := s.do(t, multipartRequest(t, http.MethodPut, base+"/file", "lane.jpg", overlay, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = s.do(t, httptest.NewRequest(http.MethodPost, base+"/analyze", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.bus.WaitAsync()

	rec, env = s.do(t, httptest.NewRequest(http.MethodGet, base+"/events", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var events []repository.Event
	require.NoError(t, json.Unmarshal(env.Data, &events))

	var topics []string
	for _, e := range events {
		assert.Equal(t, view.ID, e.SessionID)
		topics = append(topics, e.EventType)
	}
	assert.Contains(t, topics, eventbus.EventSessionTransition)
	assert.Contains(t, topics, eventbus.EventAnalysisStarted)
	assert.Contains(t, topics, eventbus.EventAnalysisCompleted)

	rec, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/unknown/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestSessionEvents_JournalDisabled(t *testing.T) {
	s := newServer(t, nil)
	rec, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/any/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionRejectsBadFile(t *testing.T) {
	s := newServer(t, nil)
	_, env := s.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	var view analysis.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))

	rec, _ := s.do(t, multipartRequest(t, http.MethodPut, "/api/sessions/"+view.ID+"/file", "notes.txt", []byte("hi"), nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+view.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, analysis.StateIdle, view.State)
}

func TestOpenAPIDocument(t *testing.T) {
	s := newServer(t, nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/upload")

	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewService_Requirements(t *testing.T) {
	_, err := demo.NewService(demo.Options{})
	assert.Error(t, err)
}
