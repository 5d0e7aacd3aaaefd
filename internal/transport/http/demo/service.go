// Package demo serves the upload flow: one-shot uploads, result and analysis
// lookups, the model status check and the per-visitor session endpoints.
package demo

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roadscan-server-go/internal/domain/analysis"
	"roadscan-server-go/internal/domain/estimator"
	"roadscan-server-go/internal/domain/eventbus"
	"roadscan-server-go/internal/domain/image"
	"roadscan-server-go/internal/domain/modelstatus"
	"roadscan-server-go/internal/domain/records"
	"roadscan-server-go/internal/platform/config"
	platformerrors "roadscan-server-go/internal/platform/errors"
	httptransport "roadscan-server-go/internal/transport/http"
	"roadscan-server-go/internal/utils"
)

// multipartOverhead is allowed on top of the file cap for headers and fields.
const multipartOverhead = 512 * 1024

type Options struct {
	Analysis  *analysis.Service
	Sessions  *analysis.Manager
	Pipeline  *image.Pipeline
	Model     *modelstatus.Checker
	Journal   *eventbus.Journal
	Highlight estimator.ExactMatch
	MaxUpload int64
	Logger    *utils.Logger
}

type Service struct {
	analysis  *analysis.Service
	sessions  *analysis.Manager
	pipeline  *image.Pipeline
	model     *modelstatus.Checker
	journal   *eventbus.Journal
	highlight estimator.ExactMatch
	maxUpload int64
	logger    *utils.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.Analysis == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "demo.new", "analysis service is required")
	}
	if opts.Sessions == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "demo.new", "session manager is required")
	}
	if opts.Pipeline == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "demo.new", "image pipeline is required")
	}
	if opts.Model == nil {
		opts.Model = modelstatus.New("", false, opts.Logger)
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = config.DefaultMaxFileSize
	}
	if opts.Highlight == (estimator.ExactMatch{}) {
		opts.Highlight = estimator.DamageHighlight
	}
	return &Service{
		analysis:  opts.Analysis,
		sessions:  opts.Sessions,
		pipeline:  opts.Pipeline,
		model:     opts.Model,
		journal:   opts.Journal,
		highlight: opts.Highlight,
		maxUpload: opts.MaxUpload,
		logger:    opts.Logger,
	}, nil
}

// Register mounts the demo routes on router, normally the /api group.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.POST("/upload", s.handleUpload)
	router.GET("/model-status", s.handleModelStatus)
	router.GET("/results/:id", s.handleResult)
	router.GET("/analysis/:uploadId", s.handleAnalysis)

	sessions := router.Group("/sessions")
	sessions.POST("", s.handleCreateSession)
	sessions.GET("/:id", s.handleGetSession)
	sessions.DELETE("/:id", s.handleDeleteSession)
	sessions.GET("/:id/events", s.handleSessionEvents)
	sessions.PUT("/:id/file", s.handleSelectFile)
	sessions.POST("/:id/analyze", s.handleAnalyzeSession)
	sessions.POST("/:id/retry", s.handleRetrySession)
	sessions.POST("/:id/reset", s.handleResetSession)

	s.logger.InfoTag("HTTP", "demo routes registered")
	return nil
}

// UploadResponse is the payload of a finished one-shot upload.
type UploadResponse struct {
	ResultID      string                  `json:"result_id"`
	TextField1    string                  `json:"text_field1"`
	TextField2    string                  `json:"text_field2"`
	ModifiedImage string                  `json:"modified_image"`
	Upload        records.Upload          `json:"upload"`
	Estimate      estimator.Estimate      `json:"estimate"`
	Analysis      records.AnalysisResult  `json:"analysis"`
	Conditions    []records.RoadCondition `json:"conditions"`
	Persisted     bool                    `json:"persisted"`
}

func newUploadResponse(r analysis.Result) UploadResponse {
	return UploadResponse{
		ResultID:      r.ResultID,
		TextField1:    r.TextField1,
		TextField2:    r.TextField2,
		ModifiedImage: r.ModifiedImage,
		Upload:        r.Upload,
		Estimate:      r.Estimate,
		Analysis:      r.Analysis,
		Conditions:    r.Conditions,
		Persisted:     r.Persisted,
	}
}

var (
	errNoFile      = errors.New("No file uploaded")
	errBadSummary  = errors.New("summary must be damage or quality")
	errMissingPath = errors.New("id is required")
)

// fieldValue reads an optional parameter from the form body or the query string.
func fieldValue(c *gin.Context, key string) string {
	if v, ok := c.GetPostForm(key); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(c.Query(key))
}

func (s *Service) options(c *gin.Context) (estimator.Rule, string, error) {
	var rule estimator.Rule
	if name := fieldValue(c, "rule"); name != "" {
		r, err := estimator.ParseRuleWithColor(name, s.highlight)
		if err != nil {
			return nil, "", err
		}
		rule = r
	}
	summary := strings.ToLower(fieldValue(c, "summary"))
	switch summary {
	case "", config.SummaryDamage, config.SummaryQuality:
	default:
		return nil, "", errBadSummary
	}
	return rule, summary, nil
}

// readUpload opens the multipart "file" field under the upload cap.
func (s *Service) readUpload(c *gin.Context) (*multipart.FileHeader, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+multipartOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
			return nil, image.ErrTooLarge
		}
		return nil, errNoFile
	}
	if fh.Size > s.maxUpload {
		return nil, image.ErrTooLarge
	}
	return fh, nil
}

func (s *Service) validate(c *gin.Context, fh *multipart.FileHeader) (*image.Output, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.pipeline.Process(c.Request.Context(), image.Input{
		Reader:      f,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	})
}

func badRequest(c *gin.Context, err error) {
	httptransport.RespondError(c, http.StatusBadRequest, err.Error(), gin.H{})
}

// handleUpload runs the whole flow for one file.
// @Summary Analyse a road image
// @Description Validates the upload, waits the cosmetic delay, scans the companion overlay and stores the records.
// @Tags Demo
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "JPEG, PNG, TIFF, HEIC or HEIF image, at most 10 MB"
// @Param rule formData string false "exact or non-background"
// @Param summary formData string false "damage or quality"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} httptransport.APIResponse
// @Failure 404 {object} httptransport.APIResponse
// @Failure 413 {object} httptransport.APIResponse
// @Failure 415 {object} httptransport.APIResponse
// @Failure 422 {object} httptransport.APIResponse
// @Router /api/upload [post]
func (s *Service) handleUpload(c *gin.Context) {
	fh, err := s.readUpload(c)
	if errors.Is(err, errNoFile) {
		badRequest(c, err)
		return
	}
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	rule, summary, err := s.options(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	out, err := s.validate(c, fh)
	if err != nil {
		s.logger.InfoTag("HTTP", "upload %q rejected: %v", fh.Filename, err)
		httptransport.RespondFailure(c, err)
		return
	}

	result, err := s.analysis.Analyze(c.Request.Context(), analysis.Request{
		FileName: out.Filename,
		Rule:     rule,
		Summary:  summary,
	})
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, newUploadResponse(result), "analysis complete")
}

// handleModelStatus reports whether the segmentation weights are installed.
// @Summary Model availability
// @Tags Demo
// @Produce json
// @Success 200 {object} modelstatus.Status
// @Router /api/model-status [get]
func (s *Service) handleModelStatus(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, s.model.Status(), "")
}

// handleResult returns a recent result by id.
// @Summary Result summary
// @Description Unknown ids get a random placeholder readout marked placeholder=true.
// @Tags Demo
// @Produce json
// @Param id path string true "result id"
// @Success 200 {object} analysis.Summary
// @Router /api/results/{id} [get]
func (s *Service) handleResult(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		badRequest(c, errMissingPath)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.analysis.Result(id), "")
}

// handleAnalysis returns the analysis and road conditions for an upload.
// @Summary Analysis by upload
// @Tags Demo
// @Produce json
// @Param uploadId path string true "upload id"
// @Success 200 {object} analysis.Lookup
// @Router /api/analysis/{uploadId} [get]
func (s *Service) handleAnalysis(c *gin.Context) {
	lookup, err := s.analysis.Lookup(c.Request.Context(), strings.TrimSpace(c.Param("uploadId")))
	if err != nil {
		badRequest(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, lookup, "")
}

// @Summary Start a session
// @Tags Sessions
// @Produce json
// @Success 201 {object} analysis.SessionView
// @Router /api/sessions [post]
func (s *Service) handleCreateSession(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusCreated, s.sessions.Create(), "session created")
}

// @Summary Get a session
// @Tags Sessions
// @Produce json
// @Param id path string true "session id"
// @Success 200 {object} analysis.SessionView
// @Failure 404 {object} httptransport.APIResponse
// @Router /api/sessions/{id} [get]
func (s *Service) handleGetSession(c *gin.Context) {
	view, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, view, "")
}

// @Summary Delete a session
// @Tags Sessions
// @Param id path string true "session id"
// @Success 200 {object} httptransport.APIResponse
// @Router /api/sessions/{id} [delete]
func (s *Service) handleDeleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Param("id")); err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{}, "session deleted")
}

// handleSessionEvents returns the journalled history of a session, oldest
// first. History outlives the in-memory session.
// @Summary Session event history
// @Tags Sessions
// @Produce json
// @Param id path string true "session id"
// @Success 200 {array} repository.Event
// @Failure 503 {object} httptransport.APIResponse
// @Router /api/sessions/{id}/events [get]
func (s *Service) handleSessionEvents(c *gin.Context) {
	if s.journal == nil {
		httptransport.RespondError(c, http.StatusServiceUnavailable, "event journal is not enabled", nil)
		return
	}
	events, err := s.journal.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, events, "")
}

// handleSelectFile attaches a validated upload. A rejected file leaves the
// session unchanged.
// @Summary Select a file
// @Tags Sessions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "session id"
// @Param file formData file true "image"
// @Success 200 {object} analysis.SessionView
// @Failure 409 {object} httptransport.APIResponse
// @Failure 415 {object} httptransport.APIResponse
// @Router /api/sessions/{id}/file [put]
func (s *Service) handleSelectFile(c *gin.Context) {
	fh, err := s.readUpload(c)
	if errors.Is(err, errNoFile) {
		badRequest(c, err)
		return
	}
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	defer f.Close()

	view, err := s.sessions.SelectFile(c.Request.Context(), c.Param("id"), image.Input{
		Reader:      f,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	})
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, view, "file selected")
}

// handleAnalyzeSession processes the selected file. On failure the session
// is Failed and its view is returned with the error status.
// @Summary Analyse the selected file
// @Tags Sessions
// @Produce json
// @Param id path string true "session id"
// @Param rule query string false "exact or non-background"
// @Param summary query string false "damage or quality"
// @Success 200 {object} analysis.SessionView
// @Failure 404 {object} httptransport.APIResponse
// @Failure 409 {object} httptransport.APIResponse
// @Router /api/sessions/{id}/analyze [post]
func (s *Service) handleAnalyzeSession(c *gin.Context) {
	rule, summary, err := s.options(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	view, err := s.sessions.Analyze(c.Request.Context(), c.Param("id"), analysis.AnalyzeOptions{
		Rule:    rule,
		Summary: summary,
	})
	if err != nil {
		status, message := httptransport.StatusFor(err)
		_ = c.Error(err)
		if view.ID == "" {
			httptransport.RespondError(c, status, message, gin.H{})
			return
		}
		httptransport.RespondError(c, status, message, view)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, view, "analysis complete")
}

// @Summary Retry a failed session
// @Tags Sessions
// @Param id path string true "session id"
// @Success 200 {object} analysis.SessionView
// @Router /api/sessions/{id}/retry [post]
func (s *Service) handleRetrySession(c *gin.Context) {
	view, err := s.sessions.Retry(c.Param("id"))
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, view, "")
}

// @Summary Reset a session
// @Tags Sessions
// @Param id path string true "session id"
// @Success 200 {object} analysis.SessionView
// @Router /api/sessions/{id}/reset [post]
func (s *Service) handleResetSession(c *gin.Context) {
	view, err := s.sessions.Reset(c.Param("id"))
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, view, "")
}
