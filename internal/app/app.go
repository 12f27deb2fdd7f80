// Package app builds the long-lived services of a crawl run from
// configuration and holds them until Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/youtube-graph-crawler/internal/classifier"
	"github.com/JakeFAU/youtube-graph-crawler/internal/clock/system"
	"github.com/JakeFAU/youtube-graph-crawler/internal/config"
	"github.com/JakeFAU/youtube-graph-crawler/internal/crawl"
	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
	"github.com/JakeFAU/youtube-graph-crawler/internal/fetcher/youtube"
	"github.com/JakeFAU/youtube-graph-crawler/internal/id/uuid"
	"github.com/JakeFAU/youtube-graph-crawler/internal/logging"
	"github.com/JakeFAU/youtube-graph-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/youtube-graph-crawler/internal/progress"
	"github.com/JakeFAU/youtube-graph-crawler/internal/progress/sinks"
	"github.com/JakeFAU/youtube-graph-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/youtube-graph-crawler/internal/seed"
	"github.com/JakeFAU/youtube-graph-crawler/internal/snapshot"
	"github.com/JakeFAU/youtube-graph-crawler/internal/storage/gcs"
	"github.com/JakeFAU/youtube-graph-crawler/internal/storage/local"
	"github.com/JakeFAU/youtube-graph-crawler/internal/storage/memory"
	"github.com/JakeFAU/youtube-graph-crawler/internal/storage/postgres"
)

const closeTimeout = 10 * time.Second

// Option overrides a dependency App would otherwise build from config.
type Option func(*App)

// WithLogger supplies the logger instead of building one from config.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithFetcher replaces the YouTube client.
func WithFetcher(f crawler.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithBlobStore replaces the configured output backend.
func WithBlobStore(b crawler.BlobStore) Option {
	return func(a *App) { a.blobs = b }
}

// WithTableSink replaces the Postgres sink.
func WithTableSink(s crawler.TableSink) Option {
	return func(a *App) { a.sink = s }
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(p crawler.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithClock overrides the crawl-start clock.
func WithClock(c crawler.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(g crawler.IDGenerator) Option {
	return func(a *App) { a.ids = g }
}

// WithRegisterer sets where progress collectors are registered.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(a *App) { a.registerer = r }
}

// App holds every service a crawl run needs.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	fetcher    crawler.Fetcher
	blobs      crawler.BlobStore
	sink       crawler.TableSink
	publisher  crawler.Publisher
	clock      crawler.Clock
	ids        crawler.IDGenerator
	registerer prometheus.Registerer
	hub        *progress.Hub
	runID      string

	closers []func() error
}

// New builds the services described by cfg. It fails fast when a configured
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config, opts ...Option) (_ *App, err error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			_ = a.closeAll()
		}
	}()

	if a.logger == nil {
		if a.logger, err = newLogger(cfg); err != nil {
			return nil, err
		}
	}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.ids == nil {
		a.ids = uuid.New()
	}
	if a.registerer == nil {
		a.registerer = prometheus.DefaultRegisterer
	}
	if a.runID, err = a.ids.NewID(); err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	a.logger = a.logger.With(zap.String("run_id", a.runID))

	if a.blobs == nil {
		if a.blobs, err = a.openBlobStore(ctx); err != nil {
			return nil, err
		}
	}
	if a.sink == nil && cfg.DB.DSN != "" {
		if a.sink, err = a.openTableSink(ctx); err != nil {
			return nil, err
		}
	}
	if a.publisher == nil && cfg.PubSub.Enabled() {
		pub, perr := pubsub.Open(ctx, cfg.PubSub.ProjectID)
		if perr != nil {
			return nil, fmt.Errorf("init pubsub: %w", perr)
		}
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
	}
	if a.fetcher == nil {
		if a.fetcher, err = a.openFetcher(ctx); err != nil {
			return nil, err
		}
	}

	promSink, err := sinks.NewPrometheusSink(a.registerer)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.Progress.MaxBatchWait(),
		Logger:         a.logger,
	}, sinks.NewLogSink(a.logger), promSink)

	a.logger.Info("application services initialized",
		zap.String("output_backend", cfg.Output.Backend),
		zap.Bool("table_sink", a.sink != nil),
		zap.Bool("notifications", a.publisher != nil),
	)
	return a, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return logging.New(cfg.Logging)
}

func (a *App) openBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Output.Backend {
	case config.BackendLocal, "":
		store, err := local.New(a.cfg.Output.Local)
		if err != nil {
			return nil, fmt.Errorf("init local output: %w", err)
		}
		return store, nil
	case config.BackendGCS:
		store, err := gcs.Open(ctx, a.cfg.Output.GCS, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init gcs output: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown output backend %q", a.cfg.Output.Backend)
	}
}

func (a *App) openTableSink(ctx context.Context) (crawler.TableSink, error) {
	store, err := postgres.NewSnapshotStore(ctx, postgres.SnapshotStoreConfig{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres sink: %w", err)
	}
	a.closers = append(a.closers, func() error { store.Close(); return nil })
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("init postgres sink: %w", err)
	}
	return store, nil
}

func (a *App) openFetcher(ctx context.Context) (crawler.Fetcher, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	yc := a.cfg.YouTube
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: a.cfg.RateLimit.RequestsPerSecond,
		Burst:             a.cfg.RateLimit.Burst,
	})
	client, err := youtube.NewClient(ctx, youtube.ClientConfig{
		APIKey:   yc.APIKey,
		Endpoint: yc.Endpoint,
		Timeout:  yc.Timeout(),
		Retry: youtube.RetryConfig{
			MaxAttempts:    yc.MaxAttempts,
			InitialBackoff: yc.BackoffInitial(),
			MaxBackoff:     yc.BackoffMax(),
		},
	}, limiter, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init youtube client: %w", err)
	}
	return youtube.NewAdapter(client, a.logger), nil
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// RunID returns the identifier stamped on events, rows and notifications.
func (a *App) RunID() string { return a.runID }

// Run loads the seed file and performs one crawl.
func (a *App) Run(ctx context.Context) (crawl.Summary, error) {
	seeds, err := seed.Load(a.cfg.Crawl.SeedFile)
	if err != nil {
		return crawl.Summary{}, fmt.Errorf("load seeds: %w", err)
	}
	if len(seeds) == 0 {
		return crawl.Summary{}, fmt.Errorf("load seeds: %s has no seeds", a.cfg.Crawl.SeedFile)
	}

	start := a.clock.Now()
	cc := a.cfg.Classifier
	cls := classifier.New(classifier.Config{
		RecencyYears:        cc.RecencyYears,
		MinVideos:           cc.MinVideos,
		MajorSubscribers:    cc.MajorSubscribers,
		ConnectorMinTargets: cc.ConnectorMinTargets,
	}, start)

	writerOpts := []snapshot.Option{snapshot.WithClock(a.clock), snapshot.WithLogger(a.logger)}
	if a.sink != nil {
		writerOpts = append(writerOpts, snapshot.WithTableSink(a.sink))
	}
	writer := snapshot.NewWriter(a.blobs, snapshot.Config{Prefix: a.cfg.Output.Prefix, RunID: a.runID}, writerOpts...)

	scheduler, err := crawl.New(crawl.Config{
		RunID:              a.runID,
		MaxDepth:           a.cfg.Crawl.MaxDepth,
		CheckpointInterval: a.cfg.Crawl.CheckpointInterval,
		CheckpointCount:    a.cfg.Crawl.CheckpointCount,
		FinalWriteTimeout:  a.cfg.Crawl.FinalWriteTimeout(),
	}, a.fetcher, cls, writer,
		crawl.WithLogger(a.logger),
		crawl.WithEmitter(a.hub),
		crawl.WithClock(a.clock),
	)
	if err != nil {
		return crawl.Summary{}, fmt.Errorf("init scheduler: %w", err)
	}

	summary, runErr := scheduler.Run(ctx, seeds)
	if runErr == nil {
		a.notify(ctx, summary)
	}
	return summary, runErr
}

// notify publishes the run notification. Failures are logged, not returned:
// the snapshot is already durable.
func (a *App) notify(ctx context.Context, summary crawl.Summary) {
	if a.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	notice := NewRunNotice(summary, a.clock.Now())
	msgID, err := a.publisher.Publish(pubCtx, a.cfg.PubSub.TopicName, notice)
	if err != nil {
		a.logger.Warn("run notification failed", zap.Error(err))
		return
	}
	a.logger.Info("run notification published", zap.String("message_id", msgID))
}

// Close flushes progress sinks and releases backend clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
		errs = append(errs, a.hub.Close(closeCtx))
		cancel()
	}
	errs = append(errs, a.closeAll())
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RunNotice is the JSON document announcing a finished crawl.
type RunNotice struct {
	RunID       string    `json:"run_id"`
	NodesURI    string    `json:"nodes_uri"`
	EdgesURI    string    `json:"edges_uri"`
	NodeCount   int       `json:"node_count"`
	EdgeCount   int       `json:"edge_count"`
	NodesSHA256 string    `json:"nodes_sha256"`
	EdgesSHA256 string    `json:"edges_sha256"`
	Checkpoints int       `json:"checkpoints"`
	Promoted    int       `json:"promoted"`
	Interrupted bool      `json:"interrupted"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRunNotice summarizes a finished run.
func NewRunNotice(s crawl.Summary, at time.Time) RunNotice {
	return RunNotice{
		RunID:       s.RunID,
		NodesURI:    s.Final.NodesURI,
		EdgesURI:    s.Final.EdgesURI,
		NodeCount:   s.Final.NodeCount,
		EdgeCount:   s.Final.EdgeCount,
		NodesSHA256: s.Final.NodesSHA256,
		EdgesSHA256: s.Final.EdgesSHA256,
		Checkpoints: len(s.Checkpoints),
		Promoted:    s.Promoted,
		Interrupted: s.Interrupted,
		Timestamp:   at.UTC(),
	}
}

// Attributes tags the Pub/Sub message so subscribers can filter.
func (n RunNotice) Attributes() map[string]string {
	return map[string]string{
		"run_id":      n.RunID,
		"interrupted": strconv.FormatBool(n.Interrupted),
	}
}
