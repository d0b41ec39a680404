package reunio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/reunio/reunio/pkg/events"
	"github.com/reunio/reunio/pkg/finalize"
	"github.com/reunio/reunio/pkg/live"
	"github.com/reunio/reunio/pkg/logging"
	"github.com/reunio/reunio/pkg/metrics"
	"github.com/reunio/reunio/pkg/quota"
	"github.com/reunio/reunio/pkg/redact"
	"github.com/reunio/reunio/pkg/rolling"
	"github.com/reunio/reunio/pkg/runner"
	"github.com/reunio/reunio/pkg/session"
	"github.com/reunio/reunio/pkg/storage"
	"github.com/reunio/reunio/pkg/store"
	"github.com/reunio/reunio/pkg/suggest"
)

// Engine wires the recorder stack from config: providers, persistence,
// quota, storage, observability, and the live event hub. One engine
// serves many sessions; each NewSession builds an isolated controller.
type Engine struct {
	cfg       Config
	providers *ProviderRegistry
	store     store.Store
	pgStore   *store.PG
	objects   storage.ObjectStore
	spool     *storage.Spool
	checker   *quota.Checker
	usage     quota.Recorder
	hub       *live.Hub
	obs       metrics.Observer
	asyncObs  *metrics.AsyncObserver
	finalizer *finalize.Finalizer
	runner    *runner.LifecycleRunner
	ctx       context.Context
	cancel    context.CancelFunc
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Store overrides the config-driven store (used by tests and
	// embedders with their own persistence).
	Store store.Store
	// QuotaSource overrides the config-driven plan source.
	QuotaSource quota.Source
	// ObjectStore overrides the config-driven recording storage.
	ObjectStore storage.ObjectStore
}

func NewEngine(ctx context.Context, opts EngineOptions) (*Engine, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	slog.Info("reunio_init",
		"environment", cfg.Environment,
		"capture_provider", cfg.Vendors.Capture.Provider,
		"transcribe_provider", cfg.Vendors.Transcribe.Provider,
		"assist_provider", cfg.Vendors.Assist.Provider,
		"database", cfg.Database.Driver,
		"storage", cfg.Storage.Provider,
	)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}
	e := &Engine{cfg: cfg, providers: providers}
	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := e.buildObservers(); err != nil {
		return nil, err
	}
	if err := e.buildStore(ctx, opts.Store); err != nil {
		return nil, err
	}
	e.buildQuota(opts.QuotaSource)
	if err := e.buildStorage(opts.ObjectStore); err != nil {
		return nil, err
	}

	summarizer, _, err := providers.BuildAssist(cfg.Vendors.Assist.Provider, cfg)
	if err != nil {
		return nil, err
	}
	e.finalizer = finalize.New(e.store, summarizer, finalize.Config{
		Window:              time.Duration(cfg.Recording.WindowSeconds) * time.Second,
		SimilarityThreshold: cfg.Recording.SimilarityThreshold,
	})
	if e.objects != nil {
		e.finalizer.SetObjectStore(e.objects)
	}
	if transcriber, terr := providers.BuildTranscriber(cfg.Vendors.Transcribe.Provider, cfg); terr == nil {
		e.finalizer.SetTranscriber(transcriber)
	}
	e.finalizer.SetObserver(e.obs)

	if cfg.Live.Enabled {
		e.hub = live.NewHub(cfg.Live.hubConfig())
		e.finalizer.SetEmitter(e.hub)
	}

	e.runner = runner.NewLifecycleRunner(e, runner.Hooks{
		OnStart: func() {
			slog.Info("engine_ready", "message", "Reunio Recorder Ready")
		},
		OnStop: func() {
			if e.asyncObs != nil {
				e.asyncObs.Close()
			}
			slog.Info("shutdown", "goroutines", runtime.NumGoroutine())
		},
	}, 30*time.Second)
	return e, nil
}

func (e *Engine) buildObservers() error {
	obsCfg := e.cfg.Observability
	var inner []metrics.Observer
	if obsCfg.Prometheus {
		prom, err := metrics.NewPrometheusObserver(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("prometheus observer: %w", err)
		}
		inner = append(inner, prom)
	}
	if dir := strings.TrimSpace(obsCfg.EventsFile); dir != "" {
		f, err := os.OpenFile(dir, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open events file: %w", err)
		}
		inner = append(inner, metrics.NewJSONLObserver(f))
	}
	if len(inner) == 0 {
		e.obs = metrics.NoopObserver{}
		return nil
	}
	var combined metrics.Observer = inner[0]
	if len(inner) > 1 {
		combined = multiObserver(inner)
	}
	if obsCfg.SampleRate > 0 && obsCfg.SampleRate < 1 {
		combined = metrics.NewSamplingObserver(combined, obsCfg.SampleRate)
	}
	e.asyncObs = metrics.NewAsyncObserver(combined, 2048)
	e.obs = e.asyncObs
	return nil
}

type multiObserver []metrics.Observer

func (m multiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, o := range m {
		o.RecordEvent(ev)
	}
}

func (e *Engine) buildStore(ctx context.Context, override store.Store) error {
	if override != nil {
		e.store = override
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(e.cfg.Database.Driver)) {
	case "postgres":
		pg, err := store.NewPG(ctx, e.cfg.Database.DSN)
		if err != nil {
			return err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return err
		}
		e.pgStore = pg
		e.store = pg
	default:
		e.store = store.NewMemory()
	}
	return nil
}

func (e *Engine) buildQuota(override quota.Source) {
	var source quota.Source
	switch {
	case override != nil:
		source = override
	case e.pgStore != nil:
		pgSource := quota.NewPGSource(e.pgStore.Pool())
		e.usage = pgSource
		source = pgSource
	default:
		mem := quota.NewMemorySource()
		e.usage = mem
		source = mem
	}
	if rec, ok := override.(quota.Recorder); ok {
		e.usage = rec
	}
	if e.cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     e.cfg.Redis.Addr,
			Password: e.cfg.Redis.Password,
			DB:       e.cfg.Redis.DB,
		})
		source = quota.NewCache(source, client, time.Duration(e.cfg.Redis.TTLSeconds)*time.Second)
	}
	e.checker = quota.NewChecker(source)
}

func (e *Engine) buildStorage(override storage.ObjectStore) error {
	if override != nil {
		e.objects = override
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(e.cfg.Storage.Provider)) {
	case "supabase":
		e.objects = storage.NewSupabase(e.cfg.Storage.SupabaseURL, e.cfg.Storage.SupabaseKey, e.cfg.Storage.Bucket)
	case "spool":
		spool := storage.NewSpool(e.cfg.Storage.SpoolDir)
		if e.cfg.Storage.RetentionDays > 0 {
			if n, err := spool.Purge(time.Duration(e.cfg.Storage.RetentionDays) * 24 * time.Hour); err != nil {
				slog.Warn("spool_purge_failed", "error", err.Error())
			} else if n > 0 {
				slog.Info("spool_purged", "removed", n)
			}
		}
		e.spool = spool
		e.objects = spool
	}
	return nil
}

// NewSession builds a controller for one recording session.
func (e *Engine) NewSession(userID, title string) (*session.Controller, error) {
	cfg := e.cfg
	source, err := e.providers.BuildCapture(cfg.Vendors.Capture.Provider, cfg)
	if err != nil {
		return nil, err
	}
	transcriber, err := e.providers.BuildTranscriber(cfg.Vendors.Transcribe.Provider, cfg)
	if err != nil {
		return nil, err
	}
	_, analyzer, err := e.providers.BuildAssist(cfg.Vendors.Assist.Provider, cfg)
	if err != nil {
		return nil, err
	}

	collector := suggest.NewCollector(analyzer, suggest.CollectorConfig{
		Timeout: time.Duration(cfg.Recording.SuggestTimeoutSec) * time.Second,
	})
	collector.SetObserver(e.obs)

	sessionID := uuid.NewString()
	sessionCfg := session.Config{
		SessionID:    sessionID,
		UserID:       userID,
		Title:        title,
		MinDuration:  time.Duration(cfg.Recording.MinDurationSeconds) * time.Second,
		SoftLimit:    time.Duration(cfg.Recording.SoftLimitMinutes) * time.Minute,
		HardLimit:    time.Duration(cfg.Recording.HardLimitMinutes) * time.Minute,
		PollInterval: time.Duration(cfg.Recording.QuotaPollSeconds) * time.Second,
	}
	driver := rolling.NewDriver(source, transcriber, collector, rolling.DriverConfig{
		Interval:     time.Duration(cfg.Recording.WindowSeconds) * time.Second,
		MinClipBytes: cfg.Recording.MinClipBytes,
		SessionID:    sessionID,
	})
	driver.SetObserver(e.obs)

	ctrl := session.NewController(source, driver, collector, e.finalizer, sessionCfg)
	ctrl.SetQuota(e.checker, e.usage)
	ctrl.SetObserver(e.obs)
	if e.hub != nil {
		ctrl.SetEmitter(e.hub)
		driver.SetEmitter(e.hub)
		collector.SetEmitter(e.hub)
	}
	return ctrl, nil
}

// Emitter returns the live hub, or a no-op emitter when disabled.
func (e *Engine) Emitter() events.Emitter {
	if e.hub != nil {
		return e.hub
	}
	return events.NopEmitter{}
}

func (e *Engine) Store() store.Store { return e.store }

func (e *Engine) Finalizer() *finalize.Finalizer { return e.finalizer }

func (e *Engine) Config() Config { return e.cfg }

// Start brings up the hub and the lifecycle runner.
func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = e.ctx
	}
	if e.hub != nil {
		if err := e.hub.Start(ctx); err != nil {
			return err
		}
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.runner.Stop()
}

// Drain implements runner.Drainer: waits for background uploads, then
// releases transports and connections.
func (e *Engine) Drain() error {
	e.finalizer.Wait()
	if e.hub != nil {
		_ = e.hub.Stop()
	}
	if e.pgStore != nil {
		e.pgStore.Close()
	}
	return nil
}
