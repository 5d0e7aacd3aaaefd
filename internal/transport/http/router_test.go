package httptransport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadscan-server-go/internal/domain/analysis"
	"roadscan-server-go/internal/domain/companion"
	"roadscan-server-go/internal/domain/estimator"
	"roadscan-server-go/internal/domain/image"
	platformerrors "roadscan-server-go/internal/platform/errors"
	platformtesting "roadscan-server-go/internal/platform/testing"
)

func TestStatusFor(t *testing.T) {
	wrapped := platformerrors.Wrap(platformerrors.KindAnalysis, "analysis.locate", companion.ArtifactNotFoundMessage, companion.ErrArtifactNotFound)

	tests := []struct {
		err     error
		status  int
		message string
	}{
		{image.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, image.ErrUnsupportedMediaType.Error()},
		{fmt.Errorf("%w: limit", image.ErrTooLarge), http.StatusRequestEntityTooLarge, image.ErrTooLarge.Error()},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, image.ErrTooLarge.Error()},
		{wrapped, http.StatusNotFound, companion.ArtifactNotFoundMessage},
		{fmt.Errorf("%w: bad", estimator.ErrDecode), http.StatusUnprocessableEntity, estimator.ErrDecode.Error()},
		{estimator.ErrEmptyImage, http.StatusUnprocessableEntity, estimator.ErrEmptyImage.Error()},
		{analysis.ErrSessionNotFound, http.StatusNotFound, analysis.ErrSessionNotFound.Error()},
		{analysis.ErrInvalidTransition, http.StatusConflict, analysis.ErrInvalidTransition.Error()},
		{context.DeadlineExceeded, http.StatusRequestTimeout, context.DeadlineExceeded.Error()},
		{errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		status, message := StatusFor(tt.err)
		assert.Equal(t, tt.status, status, "%v", tt.err)
		assert.Equal(t, tt.message, message, "%v", tt.err)
	}

	status, _ := StatusFor(nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestBuild_RequiresConfig(t *testing.T) {
	_, err := Build(Options{})
	assert.Error(t, err)
}

func TestBuild_RoutesAndMounts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := platformtesting.SetupTestConfig(t)
	cfg.Web.StaticDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Web.StaticDir, "index.html"), []byte("<html>demo</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Companion.Root, "im-r"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Companion.Root, "im-r", "a.png"), []byte("png"), 0o644))

	router, err := Build(Options{Config: cfg, Logger: platformtesting.SetupTaggedLogger(t)})
	require.NoError(t, err)
	router.API.GET("/ping", func(c *gin.Context) { RespondSuccess(c, http.StatusOK, gin.H{"pong": true}, "") })

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"pong":true},"message":"ok","code":200}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config-folder/im-r/a.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "demo")

	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestBuild_CORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := platformtesting.SetupTestConfig(t)
	cfg.Web.CORSOrigins = []string{"https://demo.example"}

	router, err := Build(Options{Config: cfg})
	require.NoError(t, err)
	router.API.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Origin", "https://demo.example")
	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)
	assert.Equal(t, "https://demo.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRespondFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondFailure(c, image.ErrUnsupportedMediaType)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid file format")
	assert.Len(t, c.Errors, 1)
}

func TestMountDocs_ListsJournalRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	MountDocs(engine, nil)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Paths       map[string]map[string]any `json:"paths"`
		Definitions map[string]any            `json:"definitions"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &doc))
	for _, path := range []string{"/api/upload", "/api/system/health", "/api/system/events", "/api/sessions/{id}/events"} {
		assert.Contains(t, doc.Paths, path)
	}
	assert.Contains(t, doc.Paths["/api/system/events"], "get")
	assert.Contains(t, doc.Definitions, "repository.Event")
	assert.Contains(t, doc.Definitions, "storage.SchemaStatus")
}
