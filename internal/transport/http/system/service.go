// Package system exposes the health and event journal endpoints.
package system

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"
	"gorm.io/gorm"

	"roadscan-server-go/internal/domain/analysis"
	"roadscan-server-go/internal/domain/eventbus"
	"roadscan-server-go/internal/domain/image"
	"roadscan-server-go/internal/domain/modelstatus"
	"roadscan-server-go/internal/domain/records/store"
	platformerrors "roadscan-server-go/internal/platform/errors"
	"roadscan-server-go/internal/platform/storage"
	httptransport "roadscan-server-go/internal/transport/http"
	"roadscan-server-go/internal/utils"
)

type Options struct {
	Store    store.RecordStore
	Model    *modelstatus.Checker
	Pipeline *image.Pipeline
	Analysis *analysis.Service
	Sessions *analysis.Manager
	Events   *eventbus.AsyncEventBus
	// Journal and DB are nil unless a SQL record store is configured.
	Journal *eventbus.Journal
	DB      *gorm.DB
	Logger  *utils.Logger
	// Memory replaces the host memory reading, for tests.
	Memory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

type Service struct {
	opts    Options
	started time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "system.new", "record store is required")
	}
	if opts.Memory == nil {
		opts.Memory = mem.VirtualMemoryWithContext
	}
	return &Service{opts: opts, started: time.Now()}, nil
}

func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/system/health", s.handleHealth)
	router.GET("/system/events", s.handleEvents)
	return nil
}

// Health is the /system/health payload.
type Health struct {
	Status        string                `json:"status"`
	Uptime        string                `json:"uptime"`
	Store         map[string]any        `json:"store"`
	Model         modelstatus.Status    `json:"model"`
	Ingest        *image.Metrics        `json:"ingest,omitempty"`
	Sessions      int                   `json:"sessions"`
	CachedResults int                   `json:"cached_results"`
	Schema        *storage.SchemaStatus `json:"schema,omitempty"`
	Events        *EventStats           `json:"events,omitempty"`
	Memory        *MemoryStats          `json:"memory,omitempty"`
	Runtime       RuntimeStats          `json:"runtime"`
}

// EventStats counts dropped bus events and, with a journal, stored events per topic.
type EventStats struct {
	Dropped   int64            `json:"dropped"`
	Journaled map[string]int64 `json:"journaled,omitempty"`
}

type MemoryStats struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

type RuntimeStats struct {
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
}

// Check assembles the health report. A store that reports itself unavailable
// makes the status "degraded"; uploads still work against placeholders.
func (s *Service) Check(ctx context.Context) Health {
	h := Health{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}

	stats, err := s.opts.Store.Stats(ctx)
	if err != nil {
		stats = map[string]any{"available": false, "error": err.Error()}
	}
	h.Store = stats
	if available, ok := stats["available"].(bool); ok && !available {
		h.Status = "degraded"
	}

	if s.opts.Model != nil {
		h.Model = s.opts.Model.Status()
	}
	if s.opts.Pipeline != nil {
		m := s.opts.Pipeline.Metrics()
		h.Ingest = &m
	}
	if s.opts.Sessions != nil {
		h.Sessions = s.opts.Sessions.Len()
	}
	if s.opts.Analysis != nil {
		h.CachedResults = s.opts.Analysis.CachedResults()
	}

	if s.opts.DB != nil {
		if status, err := storage.SchemaVersion(s.opts.DB); err == nil {
			h.Schema = &status
			if len(status.Pending) > 0 {
				h.Status = "degraded"
			}
		} else {
			s.opts.Logger.WarnTag("HTTP", "schema status unavailable: %v", err)
		}
	}
	if s.opts.Events != nil || s.opts.Journal != nil {
		h.Events = &EventStats{}
		if s.opts.Events != nil {
			h.Events.Dropped = s.opts.Events.Dropped()
		}
		if s.opts.Journal != nil {
			if counts, err := s.opts.Journal.Stats(ctx); err == nil {
				h.Events.Journaled = counts
			} else {
				s.opts.Logger.WarnTag("HTTP", "event journal stats unavailable: %v", err)
			}
		}
	}

	if vm, err := s.opts.Memory(ctx); err == nil && vm != nil {
		h.Memory = &MemoryStats{
			Total:       vm.Total,
			Available:   vm.Available,
			Used:        vm.Used,
			UsedPercent: vm.UsedPercent,
		}
	} else if err != nil {
		s.opts.Logger.DebugTag("HTTP", "host memory unavailable: %v", err)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	h.Runtime = RuntimeStats{Goroutines: runtime.NumGoroutine(), HeapAlloc: ms.HeapAlloc}
	return h
}

// handleHealth reports store, model and host status.
// @Summary Service health
// @Tags System
// @Produce json
// @Success 200 {object} Health
// @Router /api/system/health [get]
func (s *Service) handleHealth(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, s.Check(c.Request.Context()), "")
}

// handleEvents lists the newest journalled events of one topic.
// @Summary Recent events
// @Tags System
// @Produce json
// @Param type query string true "event topic, e.g. analysis:completed"
// @Param limit query int false "max entries (default 20, max 200)"
// @Success 200 {array} repository.Event
// @Failure 400 {object} httptransport.APIResponse
// @Failure 503 {object} httptransport.APIResponse
// @Router /api/system/events [get]
func (s *Service) handleEvents(c *gin.Context) {
	if s.opts.Journal == nil {
		httptransport.RespondError(c, http.StatusServiceUnavailable, "event journal is not enabled", nil)
		return
	}
	topic := strings.TrimSpace(c.Query("type"))
	if topic == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "query parameter type is required", nil)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httptransport.RespondError(c, http.StatusBadRequest, "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}

	events, err := s.opts.Journal.Recent(c.Request.Context(), topic, limit)
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, events, "")
}
