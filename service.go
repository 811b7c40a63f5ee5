package ragquota

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/ragquota/ai"
	"github.com/poiesic/ragquota/ai/openai"
	"github.com/poiesic/ragquota/core"
	"github.com/poiesic/ragquota/ingestion"
	"github.com/poiesic/ragquota/lifecycle"
	"github.com/poiesic/ragquota/metrics"
	"github.com/poiesic/ragquota/quota"
	"github.com/poiesic/ragquota/reconcile"
	"github.com/poiesic/ragquota/search"
	"github.com/poiesic/ragquota/server"
	"github.com/poiesic/ragquota/storage"
	"github.com/poiesic/ragquota/storage/badger"
	"github.com/poiesic/ragquota/storage/qdrant"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metricsDrainTimeout bounds how long Close waits for queued metric records.
const metricsDrainTimeout = 5 * time.Second

// Service owns the stores, the quota tracker and the pipelines built on them.
type Service struct {
	config    *Config
	backend   *badger.Backend
	kv        storage.KeyValueStore
	vectors   storage.VectorStore
	documents *storage.DocumentRepository
	provider  ai.AIProvider
	registry  *prometheus.Registry
	async     *metrics.Async
	tracker   *quota.Tracker
	pipeline  *ingestion.Pipeline
	searcher  *search.Searcher
	manager   *lifecycle.Manager
	health    func(context.Context) error
	logger    *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
	now      func() time.Time
}

// WithProvider supplies the AI provider instead of building an OpenAI one
// from the config.
func WithProvider(provider ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithClock sets the time source of every component.
func WithClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) {
		o.now = now
	}
}

// Open validates config, opens the stores and wires the pipelines.
func Open(config *Config, opts ...ServiceOption) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := &serviceOptions{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	s := &Service{
		config: config,
		logger: options.logger.With("component", "ragquota"),
	}
	if err := s.open(options); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) open(options *serviceOptions) error {
	config := s.config

	backend, err := badger.OpenBackend(config.DataDir, config.InMemory)
	if err != nil {
		return fmt.Errorf("open badger: %w", err)
	}
	s.backend = backend
	s.kv = badger.NewKeyValueStore(backend)
	s.documents = storage.NewDocumentRepository(s.kv)

	switch config.VectorBackend {
	case BackendQdrant:
		store, err := qdrant.NewStore(config.QdrantEndpoint,
			qdrant.WithCollection(config.QdrantCollection),
			qdrant.WithDimension(config.QdrantDimension),
			qdrant.WithLogger(options.logger))
		if err != nil {
			return fmt.Errorf("open qdrant: %w", err)
		}
		s.vectors = store
		s.health = store.Health
	default:
		s.vectors = badger.NewVectorStore(backend)
	}

	s.provider = options.provider
	if s.provider == nil {
		provider, err := openai.NewProvider(config.AI)
		if err != nil {
			return fmt.Errorf("create ai provider: %w", err)
		}
		s.provider = provider
	}

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := metrics.NewPrometheusEmitter(s.registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	s.async, err = metrics.NewAsync(metrics.NewLogEmitter(options.logger), config.MetricWorkers, options.logger)
	if err != nil {
		return fmt.Errorf("create metrics pool: %w", err)
	}

	s.tracker, err = quota.NewTracker(s.kv,
		quota.WithLimit(config.CapacityLimit),
		quota.WithEmitter(metrics.Multi{prom, s.async}),
		quota.WithClock(options.now),
		quota.WithLogger(options.logger))
	if err != nil {
		return fmt.Errorf("create quota tracker: %w", err)
	}

	embedder := s.provider.Embedder()
	s.pipeline, err = ingestion.NewPipeline(s.vectors, s.documents, s.tracker, embedder,
		ingestion.WithChunkSize(config.ChunkSize),
		ingestion.WithClock(options.now),
		ingestion.WithLogger(options.logger))
	if err != nil {
		return fmt.Errorf("create ingestion pipeline: %w", err)
	}

	s.searcher, err = search.NewSearcher(s.vectors, embedder,
		search.WithCapacity(config.CapacityLimit),
		search.WithContextTopK(config.ContextTopK),
		search.WithLogger(options.logger))
	if err != nil {
		return fmt.Errorf("create searcher: %w", err)
	}

	s.manager, err = lifecycle.NewManager(s.vectors, s.documents, s.tracker,
		lifecycle.WithRetentionDays(config.RetentionDays),
		lifecycle.WithClock(options.now),
		lifecycle.WithLogger(options.logger))
	if err != nil {
		return fmt.Errorf("create lifecycle manager: %w", err)
	}

	return nil
}

// Config returns the validated configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Tracker returns the quota tracker.
func (s *Service) Tracker() *quota.Tracker {
	return s.tracker
}

// Pipeline returns the ingestion pipeline.
func (s *Service) Pipeline() *ingestion.Pipeline {
	return s.pipeline
}

// Searcher returns the query pipeline.
func (s *Service) Searcher() *search.Searcher {
	return s.searcher
}

// Manager returns the deletion and cleanup manager.
func (s *Service) Manager() *lifecycle.Manager {
	return s.manager
}

// Registry returns the Prometheus registry holding the quota metrics.
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

// Ingest stores texts as one document.
func (s *Service) Ingest(ctx context.Context, texts []string, meta core.DocumentMetadata) *ingestion.Result {
	return s.pipeline.Ingest(ctx, texts, meta)
}

// BuildContext assembles retrieval context for query from the configured number of chunks.
func (s *Service) BuildContext(ctx context.Context, query string) (string, error) {
	return s.searcher.BuildContext(ctx, query, 0)
}

// Usage returns a snapshot of the quota.
func (s *Service) Usage(ctx context.Context) (quota.Usage, error) {
	return s.tracker.UsageStatus(ctx)
}

// Handler builds the HTTP surface.
func (s *Service) Handler(opts ...server.Option) (*server.Handler, error) {
	opts = append([]server.Option{
		server.WithGatherer(s.registry),
		server.WithHealthCheck(s.Health),
		server.WithLogger(s.logger),
	}, opts...)
	return server.NewHandler(s.pipeline, s.searcher, s.manager, s.tracker, opts...)
}

// Scheduler builds a cleanup scheduler ticking at the configured interval.
func (s *Service) Scheduler(opts ...lifecycle.SchedulerOption) (*lifecycle.Scheduler, error) {
	opts = append([]lifecycle.SchedulerOption{
		lifecycle.WithInterval(s.config.SweepInterval),
		lifecycle.WithSchedulerLogger(s.logger),
	}, opts...)
	return lifecycle.NewScheduler(s.manager, opts...)
}

// Reconciler builds a drift reconciler writing progress to progress.
func (s *Service) Reconciler(config *reconcile.Config, progress io.Writer) (*reconcile.Reconciler, error) {
	return reconcile.NewReconciler(s.vectors, s.documents, s.tracker, config, progress)
}

// Health reports whether the stores are reachable.
func (s *Service) Health(ctx context.Context) error {
	if s.backend == nil || s.backend.IsClosed() {
		return ErrServiceClosed
	}
	if s.health != nil {
		return s.health(ctx)
	}
	return nil
}

// Close stops the tracker, drains metrics and closes the stores.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.tracker != nil {
			errs = append(errs, s.tracker.Close())
		}
		if s.async != nil {
			if err := s.async.Close(metricsDrainTimeout); err != nil {
				s.logger.Warn("metric records not drained", "err", err)
			}
		}
		if s.provider != nil {
			if err := s.provider.Close(); err != nil {
				s.logger.Error("error closing AI provider", "err", err)
			}
		}
		if s.vectors != nil {
			errs = append(errs, s.vectors.Close())
		}
		if s.backend != nil {
			if err := s.backend.Close(); err != nil {
				s.logger.Error("error closing backend storage", "err", err)
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
