package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"ContentOrchestrator/internal/api"
	"ContentOrchestrator/internal/cache"
	"ContentOrchestrator/internal/config"
	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/generator"
	"ContentOrchestrator/internal/infrastructure/llm"
	"ContentOrchestrator/internal/infrastructure/memory"
	"ContentOrchestrator/internal/infrastructure/ml"
	"ContentOrchestrator/internal/infrastructure/scheduler"
	"ContentOrchestrator/internal/infrastructure/storage"
	"ContentOrchestrator/internal/infrastructure/telegram"
	"ContentOrchestrator/internal/infrastructure/wordpress"
	"ContentOrchestrator/internal/logging"
	"ContentOrchestrator/internal/ports"
	"ContentOrchestrator/internal/strategy"
	"ContentOrchestrator/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	orchestrator *usecase.Orchestrator
	scheduler    *usecase.Scheduler
	checks       []usecase.HealthCheck
	providers    int
	closers      []func() error
}

// New builds the application. Invalid workflow settings, an unknown strategy or a missing
// content provider fail fast.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Workflow.Validate(); err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	strat, err := strategy.NewRegistry().Resolve(cfg.Generator.Strategy)
	if err != nil {
		return nil, err
	}

	var (
		providers []ports.ContentProvider
		images    usecase.ImageGenerator
	)
	if cfg.Providers.OpenAI.APIKey != "" {
		openai := llm.NewChatGPTClient(cfg.Providers.OpenAI)
		providers = append(providers, openai)
		images = generator.NewImageGenerator(openai, baseLogger.With("component", "images"))
	}
	if cfg.Providers.Inference.URL != "" {
		providers = append(providers, ml.NewClient(cfg.Providers.Inference))
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("configure an openai api key or inference url: %w", domain.ErrNoProviderAvailable)
	}
	a.providers = len(providers)

	gen, err := generator.New(generator.Deps{
		Providers:  providers,
		Strategy:   strat,
		Cache:      a.contentCache(),
		MinQuality: cfg.Workflow.QualityThreshold,
		Preferred:  cfg.Generator.PreferredProvider,
		Logger:     baseLogger.With("component", "generator"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	source, err := a.taskSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.addCheck("task_source", source)

	var publisher ports.Publisher
	if cfg.Publisher.URL != "" {
		wp := wordpress.NewPublisher(cfg.Publisher, baseLogger.With("component", "publisher"))
		a.addCheck("publisher", wp)
		publisher = wp
	} else {
		baseLogger.Warn("publisher not configured, running without publishing")
	}

	a.orchestrator = usecase.NewOrchestrator(usecase.Deps{
		Source:    source,
		Generator: gen,
		Images:    images,
		Publisher: publisher,
		Workflow:  cfg.Workflow,
		Defaults: usecase.RequestDefaults{
			Language:    cfg.Generator.Language,
			Tone:        cfg.Generator.Tone,
			TargetWords: cfg.Generator.TargetWords,
			ImageStyle:  cfg.Generator.ImageStyle,
		},
		Logger: baseLogger.With("component", "orchestrator"),
	})

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg)
	}

	var driver ports.Scheduler
	if cfg.Scheduler.Interval > 0 {
		driver = scheduler.NewIntervalScheduler(cfg.Scheduler.Interval)
	}
	a.scheduler = usecase.NewScheduler(driver, a.orchestrator, notifier, usecase.BatchOptions{}, baseLogger.With("component", "scheduler"))

	a.logHealth(ctx)
	return a, nil
}

// Health pings every configured dependency.
func (a *Application) Health(ctx context.Context) usecase.HealthReport {
	return usecase.CheckHealth(ctx, a.checks, a.providers)
}

func (a *Application) logHealth(ctx context.Context) {
	report := a.Health(ctx)
	a.logger.Info("health check", "status", report.Status, "providers", report.Providers)
	for name, c := range report.Components {
		if c.Status != usecase.HealthOK {
			a.logger.Warn("dependency unhealthy", "component", name, "error", c.Error)
			continue
		}
		a.logger.Info("dependency healthy", "component", name)
	}
}

func (a *Application) addCheck(name string, dep any) {
	if hc, ok := dep.(ports.HealthChecker); ok {
		a.checks = append(a.checks, usecase.HealthCheck{Name: name, Checker: hc})
	}
}

// Run serves the HTTP surface and recurring batches until ctx ends. With neither
// configured it processes one batch and returns.
func (a *Application) Run(ctx context.Context) error {
	if a.cfg.Server.Addr == "" && a.cfg.Scheduler.Interval <= 0 {
		report := a.orchestrator.ProcessBatch(ctx, usecase.BatchOptions{})
		a.scheduler.Notify(ctx, report)
		if report.SourceError != "" {
			return fmt.Errorf("batch %s: %s", report.RunID, report.SourceError)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Addr != "" {
		handler := api.NewHandler(api.Deps{
			Base:   gctx,
			Runner: a.orchestrator,
			Notify: a.scheduler.Notify,
			Health: a.Health,
			Logger: a.logger,
		})
		srv := &http.Server{Addr: a.cfg.Server.Addr, Handler: api.NewRouter(handler), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			a.logger.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			err := srv.Shutdown(shutdownCtx)
			handler.Wait()
			return err
		})
	}

	if a.cfg.Scheduler.Interval > 0 {
		g.Go(func() error {
			if err := a.scheduler.Start(gctx); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return a.scheduler.Stop(stopCtx)
		})
	}

	return g.Wait()
}

// Orchestrator exposes the wired orchestrator.
func (a *Application) Orchestrator() *usecase.Orchestrator {
	return a.orchestrator
}

// Close releases connections opened by New.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) contentCache() ports.ContentCache {
	if addr := a.cfg.Redis.Addr; addr != "" {
		rc, err := cache.NewRedis(addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.cfg.Cache.TTL, a.logger.With("component", "cache"))
		if err == nil {
			a.closers = append(a.closers, rc.Close)
			a.addCheck("cache", rc)
			return rc
		}
		a.logger.Warn("redis cache unavailable, using in-process cache", "error", err)
	}
	return cache.NewMemory(a.cfg.Cache.Size, a.cfg.Cache.TTL)
}

func (a *Application) taskSource(ctx context.Context) (ports.TaskSource, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("database not configured, using in-memory task source")
		return memory.NewTaskSource(), nil
	}
	db, err := storage.Open(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return storage.NewPostgresTaskSource(db, a.cfg.Database.Table), nil
}
