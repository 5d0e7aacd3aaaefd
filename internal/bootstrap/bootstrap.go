// Package bootstrap wires configuration, logging, storage, events and the
// HTTP server, and runs them until a shutdown signal arrives.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"roadscan-server-go/internal/domain/analysis"
	"roadscan-server-go/internal/domain/companion"
	"roadscan-server-go/internal/domain/estimator"
	"roadscan-server-go/internal/domain/eventbus"
	eventinfra "roadscan-server-go/internal/domain/eventbus/infrastructure"
	"roadscan-server-go/internal/domain/eventbus/repository"
	"roadscan-server-go/internal/domain/image"
	"roadscan-server-go/internal/domain/modelstatus"
	"roadscan-server-go/internal/domain/records/store"
	platformconfig "roadscan-server-go/internal/platform/config"
	platformerrors "roadscan-server-go/internal/platform/errors"
	platformlogging "roadscan-server-go/internal/platform/logging"
	platformobservability "roadscan-server-go/internal/platform/observability"
	platformstorage "roadscan-server-go/internal/platform/storage"
	httptransport "roadscan-server-go/internal/transport/http"
	httpdemo "roadscan-server-go/internal/transport/http/demo"
	httpsystem "roadscan-server-go/internal/transport/http/system"
	"roadscan-server-go/internal/utils"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

// Options lets callers pin the config file and skip .env loading.
type Options struct {
	ConfigPath string
	NoDotEnv   bool
}

type appState struct {
	opts                  Options
	config                *platformconfig.Config
	configPath            string
	logProvider           *platformlogging.Logger
	logger                *utils.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	db                    *gorm.DB
	recordStore           store.RecordStore
	events                *eventbus.AsyncEventBus
	journal               *eventbus.Journal
	model                 *modelstatus.Checker
	pipeline              *image.Pipeline
	analysis              *analysis.Service
	sessions              *analysis.Manager
}

// Run starts the service lifecycle: load config, initialise dependencies,
// serve, and shut down gracefully on SIGINT or SIGTERM.
func Run(ctx context.Context, opts Options) error {
	state := &appState{opts: opts}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close()
		return err
	}
	defer state.close()

	logger := state.logger
	logBootstrapGraph(logger, steps)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(groupCtx, cancel, logger, group, state.config.Server.ShutdownTimeout); err != nil {
		return err
	}
	logger.InfoTag("Bootstrap", "shutdown complete")
	return nil
}

func logBootstrapGraph(logger *utils.Logger, steps []initStep) {
	if logger == nil {
		return
	}
	logger.InfoTag("Bootstrap", "initialisation graph")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("Bootstrap", "  %s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("Bootstrap", "  %s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "execute init steps", "nil bootstrap state")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(platformerrors.KindBootstrap, step.ID, "missing execute function")
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the startup steps in execution order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Open database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "store:init-records",
			Title:     "Initialise record store",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initRecordStoreStep,
		},
		{
			ID:        "events:init-bus",
			Title:     "Initialise event bus",
			DependsOn: []string{"storage:init-database"},
			Execute:   initEventsStep,
		},
		{
			ID:        "model:check",
			Title:     "Model segmentation model",
			DependsOn: []string{"logging:init-provider"},
			Execute:   checkModelStep,
		},
		{
			ID:        "analysis:init-service",
			Title:     "Initialise analysis service",
			DependsOn: []string{"store:init-records", "events:init-bus", "observability:setup-hooks"},
			Kind:      platformerrors.KindAnalysis,
			Execute:   initAnalysisStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	res, err := platformconfig.NewLoader().
		WithDotEnv(!state.opts.NoDotEnv).
		WithPath(state.opts.ConfigPath).
		Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
	}
	state.config = res.Config
	state.configPath = res.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "config not loaded")
	}

	logProvider, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialise logging provider", err)
	}

	state.logProvider = logProvider
	state.logger = logProvider.Legacy()
	state.slogger = logProvider.Slog()
	utils.DefaultLogger = state.logger

	state.logger.InfoTag("Bootstrap", "logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
		Service: "roadscan",
	}
	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func sqlOptions(cfg platformconfig.StoreConfig) (platformstorage.Options, bool) {
	switch cfg.Driver {
	case platformconfig.DriverSQLite:
		return platformstorage.Options{Dialect: platformstorage.DialectSQLite, DSN: cfg.SQLite.DSN}, true
	case platformconfig.DriverPostgres:
		return platformstorage.Options{Dialect: platformstorage.DialectPostgres, DSN: cfg.Postgres.DSN}, true
	default:
		return platformstorage.Options{}, false
	}
}

// initDatabaseStep opens the SQL database when the record store needs one.
// A database that cannot be opened is not fatal: the record store falls back
// to null in the next step.
func initDatabaseStep(_ context.Context, state *appState) error {
	opts, ok := sqlOptions(state.config.Store)
	if !ok {
		return nil
	}
	opts.Logger = state.logger
	db, err := platformstorage.Open(opts)
	if err != nil {
		state.logger.WarnTag("Store", "database unavailable (%s): %v", opts.Dialect, err)
		return nil
	}
	state.db = db
	if status, err := platformstorage.SchemaVersion(db); err == nil {
		state.logger.InfoTag("Store", "database ready (%s) schema=%s", opts.Dialect, status.Version)
	} else {
		state.logger.WarnTag("Store", "database ready (%s), schema status unavailable: %v", opts.Dialect, err)
	}
	return nil
}

func initRecordStoreStep(_ context.Context, state *appState) error {
	cfg := state.config.Store
	if _, needsDB := sqlOptions(cfg); needsDB && state.db == nil {
		state.recordStore = store.NewNull(cfg.Driver + " database unavailable")
		state.logger.WarnTag("Store", "record store %s unavailable, using placeholders", cfg.Driver)
		return nil
	}

	recordStore, err := store.New(cfg, store.Dependencies{DB: state.db})
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			state.recordStore = store.NewNull(err.Error())
			state.logger.WarnTag("Store", "record store %s unavailable, using placeholders: %v", cfg.Driver, err)
			return nil
		}
		return platformerrors.Wrap(platformerrors.KindStorage, "store:init-records", "failed to create record store", err)
	}
	state.recordStore = recordStore
	state.logger.InfoTag("Store", "record store ready (%s)", cfg.Driver)
	return nil
}

func initEventsStep(_ context.Context, state *appState) error {
	bus := eventbus.New(state.config.Events.Workers, state.logger)

	var repo repository.EventRepository
	if state.db != nil {
		repo = eventinfra.NewEventRepository(state.db)
		state.journal = eventbus.NewJournal(repo, state.config.Events.Retention, state.logger)
	}
	handler := eventbus.NewDefaultEventHandler(state.logger, repo)
	if err := eventbus.SetupEventHandlers(bus, handler); err != nil {
		bus.Stop()
		return platformerrors.Wrap(platformerrors.KindBootstrap, "events:init-bus", "failed to subscribe event handlers", err)
	}
	state.events = bus
	if state.journal != nil {
		state.logger.InfoTag("Events", "event journal enabled, retention %s", state.config.Events.Retention)
	}
	return nil
}

func checkModelStep(_ context.Context, state *appState) error {
	state.model = modelstatus.New(state.config.Model.WeightsPath, state.config.Model.CreateDir, state.logger)
	state.model.LogStatus()
	return nil
}

func initAnalysisStep(_ context.Context, state *appState) error {
	cfg := state.config

	locator, err := companion.NewLocator(companion.Options{
		Root:      cfg.Companion.Root,
		Subdir:    cfg.Companion.Subdir,
		URLPrefix: cfg.Companion.URLPrefix,
		Logger:    state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "analysis:init-service", "invalid companion settings", err)
	}

	highlight := highlightColor(cfg.Estimator)
	rule, err := estimator.ParseRuleWithColor(cfg.Estimator.Rule, highlight)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "analysis:init-service", "invalid pixel rule", err)
	}

	svc, err := analysis.NewService(analysis.Options{
		DelayMin:           cfg.Processing.DelayMin,
		DelayMax:           cfg.Processing.DelayMax,
		MaxConcurrentScans: cfg.Processing.MaxConcurrentScans,
		Summary:            strings.ToLower(cfg.Processing.Summary),
		Rule:               rule,
		ResultCacheSize:    cfg.Processing.ResultCacheSize,
	}, analysis.Dependencies{
		Locator: locator,
		Store:   state.recordStore,
		Events:  state.events,
		Logger:  state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindAnalysis, "analysis:init-service", "failed to create analysis service", err)
	}

	pipeline, err := image.NewPipeline(image.Options{Ingest: &cfg.Ingest, Logger: state.logger})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindIngest, "analysis:init-service", "failed to create image pipeline", err)
	}

	state.analysis = svc
	state.pipeline = pipeline
	state.sessions = analysis.NewManager(analysis.ManagerOptions{TTL: cfg.Processing.SessionTTL}, svc, pipeline, state.events, state.logger)
	state.logger.InfoTag("Analysis", "companions served from %s, rule=%s, delay=%s..%s",
		locator.Dir(), rule.Name(), cfg.Processing.DelayMin, cfg.Processing.DelayMax)
	return nil
}

func highlightColor(cfg platformconfig.EstimatorConfig) estimator.ExactMatch {
	c := estimator.ExactMatch{R: cfg.Color.R, G: cfg.Color.G, B: cfg.Color.B}
	if c == (estimator.ExactMatch{}) {
		return estimator.DamageHighlight
	}
	return c
}

// buildHTTPServer assembles the router and registers every route group.
func buildHTTPServer(ctx context.Context, state *appState) (*http.Server, error) {
	cfg := state.config
	router, err := httptransport.Build(httptransport.Options{Config: cfg, Logger: state.logger})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}
	if cfg.Web.Docs {
		httptransport.MountDocs(router.Engine, state.logger)
	}

	demoService, err := httpdemo.NewService(httpdemo.Options{
		Analysis:  state.analysis,
		Sessions:  state.sessions,
		Pipeline:  state.pipeline,
		Model:     state.model,
		Journal:   state.journal,
		Highlight: highlightColor(cfg.Estimator),
		MaxUpload: cfg.Ingest.MaxFileSize,
		Logger:    state.logger,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "demo:new-service", "failed to create demo service", err)
	}
	systemService, err := httpsystem.NewService(httpsystem.Options{
		Store:    state.recordStore,
		Model:    state.model,
		Pipeline: state.pipeline,
		Analysis: state.analysis,
		Sessions: state.sessions,
		Events:   state.events,
		Journal:  state.journal,
		DB:       state.db,
		Logger:   state.logger,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "system:new-service", "failed to create system service", err)
	}

	if err := demoService.Register(ctx, router.API); err != nil {
		return nil, err
	}
	if err := systemService.Register(ctx, router.API); err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.IP, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	logger := state.logger

	httpServer, err := buildHTTPServer(groupCtx, state)
	if err != nil {
		return err
	}

	g.Go(func() error {
		return state.sessions.Run(groupCtx)
	})
	if state.journal != nil {
		g.Go(func() error {
			return state.journal.Run(groupCtx, state.config.Events.PruneInterval)
		})
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", httpServer.Addr)
		if state.config.Web.Docs {
			logger.InfoTag("HTTP", "API reference at http://%s/docs", httpServer.Addr)
		}

		go func() {
			<-groupCtx.Done()
			timeout := state.config.Server.ShutdownTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP server failed: %v", err)
			return err
		}
		return nil
	})
	return nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *utils.Logger,
	g *errgroup.Group,
	timeout time.Duration,
) error {
	<-ctx.Done()
	logger.InfoTag("Bootstrap", "shutting down: %v", context.Cause(ctx))

	cancel()

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Bootstrap", "error during shutdown: %v", err)
			return err
		}
	case <-time.After(timeout + 5*time.Second):
		logger.ErrorTag("Bootstrap", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}

// close releases what the init steps opened, in reverse order.
func (s *appState) close() {
	if s.events != nil {
		s.events.Stop()
	}
	if s.recordStore != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.recordStore.Close(closeCtx); err != nil {
			s.logger.WarnTag("Store", "record store close: %v", err)
		}
		cancel()
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil {
			s.logger.WarnTag("Store", "database close: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.observabilityShutdown(shutdownCtx); err != nil {
			s.logger.WarnTag("Bootstrap", "observability shutdown: %v", err)
		}
		cancel()
	}
	if s.logProvider != nil {
		_ = s.logProvider.Close()
	}
}
