package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"NewsDigest/internal/approval"
	"NewsDigest/internal/config"
	"NewsDigest/internal/corroborator"
	"NewsDigest/internal/dedup"
	"NewsDigest/internal/digest"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/httpapi"
	"NewsDigest/internal/infrastructure/llm"
	"NewsDigest/internal/infrastructure/newssearch"
	"NewsDigest/internal/infrastructure/parser"
	"NewsDigest/internal/infrastructure/runlock"
	"NewsDigest/internal/infrastructure/scheduler"
	"NewsDigest/internal/infrastructure/storage"
	"NewsDigest/internal/infrastructure/telegram"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/scanner"
	"NewsDigest/internal/usecase"
	"NewsDigest/internal/validator"
)

const (
	shutdownTimeout = 10 * time.Second
	webhookPath     = "/api/telegram/webhook"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     ports.Store
	telegram  *telegram.Notifier
	runner    *usecase.Runner
	scheduler *usecase.Scheduler
	server    *httpapi.Server
	cancel    context.CancelFunc
	closers   []func() error
}

// New builds the application graph. Postgres and Redis are used when
// configured; otherwise the in-process store and guard stand in.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	guard, err := a.openGuard(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	times, err := scheduler.ParseTimes(cfg.Scheduler.RunTimes)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	client := parser.NewHTTPClient()
	registry := scanner.NewRegistry(
		parser.NewRSSScanner(client),
		parser.NewHackerNewsScanner(client),
	)
	source := parser.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))

	var classifier ports.Classifier
	if cfg.Classifier.Enabled() {
		classifier = llm.NewChatClassifier(cfg.Classifier)
	} else {
		baseLogger.Warn("classifier not configured, rule-based validation only")
	}

	var notifier ports.Notifier
	tg := cfg.Notifications.Telegram
	if tg.Configured() {
		a.telegram = telegram.NewNotifier(tg.BotToken, "")
		notifier = a.telegram
	} else {
		baseLogger.Warn("telegram not configured, digests will be skipped")
	}

	loc := cfg.Scheduler.Location()
	pc := cfg.Pipeline

	workflow := approval.New(store, notifier, nil, approval.Options{
		ChatID:       tg.ChatID,
		MessageLimit: pc.MessageLimit,
		Location:     loc,
		Logger:       baseLogger.With("component", "approval"),
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source: source,
		Dedup:  dedup.New(store, pc.LookbackWindow, pc.MaxBatch),
		Validator: validator.New(classifier, validator.Options{
			Profile:     cfg.Profile.Description,
			Concurrency: pc.ValidationConcurrency,
			Timeout:     cfg.Classifier.Timeout,
			Logger:      baseLogger.With("component", "validator"),
		}),
		Corroborator: corroborator.New(newssearch.NewGoogleNews(cfg.Search), corroborator.Options{
			Concurrency: pc.CorroborationConcurrency,
			MaxResults:  pc.CorroborationResults,
			Threshold:   pc.VerificationThreshold,
			Bonus:       pc.CorroborationBonus,
			Logger:      baseLogger.With("component", "corroborator"),
		}),
		Store:    store,
		Workflow: workflow,
		Digest:   digest.Options{MaxItems: pc.MaxDigestItems, Location: loc},
		Logger:   baseLogger.With("component", "pipeline"),
	})

	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.runner = usecase.NewRunner(pipeline, store, guard, usecase.RunnerOptions{
		BaseContext: base,
		RunTimeout:  pc.RunTimeout,
		Notifier:    notifier,
		ChatID:      tg.ChatID,
		Logger:      baseLogger.With("component", "runner"),
	})
	workflow.SetTrigger(a.runner)

	driver := scheduler.NewDailyScheduler(times, loc, baseLogger.With("component", "scheduler"))
	a.scheduler = usecase.NewScheduler(driver, a.runner, baseLogger.With("component", "scheduler"))

	a.server = httpapi.New(httpapi.Deps{
		Store:    store,
		Trigger:  a.runner,
		Workflow: workflow,
		Cooldown: approval.NewCooldown(pc.CommandCooldown),
		Secret:   cfg.Server.AgentSecret,
		Logger:   baseLogger.With("component", "http"),
	})
	return a, nil
}

func (a *Application) openStore(ctx context.Context) (ports.Store, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("database not configured, using in-memory store")
		return storage.NewMemoryStore(), nil
	}
	db, err := storage.OpenPostgres(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	repo := storage.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return repo, nil
}

func (a *Application) openGuard(ctx context.Context) (ports.RunGuard, error) {
	rc := a.cfg.Redis
	if rc.Addr == "" {
		return runlock.NewLocalGuard(), nil
	}
	guard := runlock.NewRedisGuard(rc.Addr, rc.LockKey, rc.LockTTL)
	if err := guard.Ping(ctx); err != nil {
		_ = guard.Close()
		return nil, err
	}
	a.closers = append(a.closers, guard.Close)
	return guard, nil
}

// Handler exposes the HTTP surface.
func (a *Application) Handler() http.Handler {
	return a.server.Handler()
}

// Serve runs the HTTP server and the daily scheduler until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", a.cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler shutdown", "error", err)
	}
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// RunOnce executes one pipeline run in the foreground.
func (a *Application) RunOnce(ctx context.Context) (domain.RunRecord, error) {
	return a.runner.RunNow(ctx, domain.OriginCLI)
}

// RegisterWebhook points the bot at the public webhook URL and publishes
// the command menu.
func (a *Application) RegisterWebhook(ctx context.Context) (string, error) {
	if a.telegram == nil {
		return "", errors.New("telegram is not configured")
	}
	base := strings.TrimRight(strings.TrimSpace(a.cfg.Server.PublicURL), "/")
	if base == "" {
		return "", errors.New("public url is not configured")
	}
	url := base + webhookPath
	if err := a.telegram.SetWebhook(ctx, url); err != nil {
		return "", err
	}
	if err := a.telegram.SetCommands(ctx, telegram.DefaultCommands); err != nil {
		return "", err
	}
	return url, nil
}

// Close cancels background runs, waits for them and releases connections.
func (a *Application) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.runner != nil {
		a.runner.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
