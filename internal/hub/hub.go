// Package hub wires configuration into the ingestion and query services.
package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"hackathonhub.shikanime.studio/internal/agent"
	"hackathonhub.shikanime.studio/internal/agent/gemini"
	"hackathonhub.shikanime.studio/internal/agent/openai"
	"hackathonhub.shikanime.studio/internal/agent/page"
	"hackathonhub.shikanime.studio/internal/config"
	"hackathonhub.shikanime.studio/internal/database"
	"hackathonhub.shikanime.studio/internal/hub/core"
	"hackathonhub.shikanime.studio/internal/ingest"
	"hackathonhub.shikanime.studio/internal/metrics"
)

// Hub aggregates the clients used by the server and the CLI.
type Hub struct {
	db       *database.Database
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	fetcher  *ingest.HTTPFetcher
	enricher agent.Enricher
	emb      *agent.Embeddings
	closers  []func() error

	orchestrator *ingest.Orchestrator
	sources      *ingest.Sources
	core         *core.Core
}

// Options holds configuration for initializing a Hub.
type Options struct {
	enricher agent.Enricher
	fetcher  *ingest.HTTPFetcher
	registry *prometheus.Registry
}

type Option func(*Options)

// WithEnricher overrides the enrichment backend selected by the config.
func WithEnricher(e agent.Enricher) Option { return func(o *Options) { o.enricher = e } }

func WithFetcher(f *ingest.HTTPFetcher) Option { return func(o *Options) { o.fetcher = f } }

// WithRegistry collects metrics into reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option { return func(o *Options) { o.registry = reg } }

// NewForConfig opens the database described by cfg and builds a Hub on it.
func NewForConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Hub, error) {
	db, err := database.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	h, err := New(ctx, db, cfg, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

// New constructs a Hub with the given database and options.
func New(ctx context.Context, db *database.Database, cfg *config.Config, opts ...Option) (*Hub, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	h := &Hub{db: db, cfg: cfg, registry: o.registry, fetcher: o.fetcher}
	if h.registry == nil {
		h.registry = prometheus.NewRegistry()
		h.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	h.metrics = metrics.New("hackathonhub", h.registry)
	if h.fetcher == nil {
		h.fetcher = ingest.NewHTTPFetcherForConfig(cfg)
	}

	h.enricher = o.enricher
	if h.enricher == nil {
		e, err := h.newEnricher(ctx)
		if err != nil {
			return nil, err
		}
		h.enricher = e
	}

	var coreOpts []core.Option
	if cfg.GetOpenAIAPIKey() != "" && cfg.GetEmbeddingModel() != "" {
		h.emb = agent.NewEmbeddingsForConfig(
			cfg,
			agent.WithEmbeddingsLimiter(openai.NewLimiter(cfg.GetEnrichmentRPM())),
		)
		coreOpts = append(coreOpts, core.WithEmbedder(h.emb))
	}

	h.orchestrator = ingest.NewOrchestrator(
		h.fetcher,
		ingest.NewDatabaseStore(db),
		ingest.WithEnricher(h.enricher),
		ingest.WithEnrichmentConcurrency(cfg.GetEnrichmentConcurrency()),
		ingest.WithMetrics(h.metrics),
	)
	h.core = core.NewCoreClient(db, coreOpts...)
	srcOpts := []ingest.SourcesOption{
		ingest.WithSourceConcurrency(cfg.GetSourceConcurrency()),
		ingest.WithProviders(h.orchestrator.Providers()),
	}
	if h.emb != nil {
		srcOpts = append(srcOpts, ingest.WithRefresher(h.core, cfg.GetEmbeddingsTTL()))
	}
	h.sources = ingest.NewSources(db, h.orchestrator, srcOpts...)
	return h, nil
}

func (h *Hub) newEnricher(ctx context.Context) (agent.Enricher, error) {
	var c agent.Completer
	switch backend := h.cfg.GetEnrichmentBackend(); backend {
	case "openai":
		c = openai.NewCompleterForConfig(h.cfg)
	case "gemini":
		gc, err := gemini.NewCompleterForConfig(ctx, h.cfg)
		if err != nil {
			return nil, fmt.Errorf("create gemini client failed: %w", err)
		}
		h.closers = append(h.closers, gc.Close)
		c = gc
	case "none":
		return agent.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown enrichment backend: %s", backend)
	}
	return agent.New(
		c,
		agent.WithPageReader(page.NewReader(h.fetcher.Client())),
		agent.WithLimiter(openai.NewLimiter(h.cfg.GetEnrichmentRPM())),
		agent.WithTimeout(h.cfg.GetEnrichmentTimeout()),
		agent.WithMetrics(h.metrics),
	), nil
}

// Core returns the query API.
func (h *Hub) Core() *core.Core { return h.core }

// Orchestrator returns the ingestion pipeline.
func (h *Hub) Orchestrator() *ingest.Orchestrator { return h.orchestrator }

// Sources returns the source descriptor manager.
func (h *Hub) Sources() *ingest.Sources { return h.sources }

// Registry returns the Prometheus registry the hub's metrics live in.
func (h *Hub) Registry() *prometheus.Registry { return h.registry }

func (h *Hub) Close() error {
	var errs []error
	for _, c := range h.closers {
		errs = append(errs, c())
	}
	if h.db != nil {
		errs = append(errs, h.db.Close())
	}
	return errors.Join(errs...)
}

// Ping verifies that the database is reachable.
func (h *Hub) Ping(ctx context.Context) error {
	if h.db == nil {
		return fmt.Errorf("database not configured")
	}
	if err := h.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
