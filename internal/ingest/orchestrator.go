package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"hackathonhub.shikanime.studio/internal/agent"
	"hackathonhub.shikanime.studio/internal/hackathon"
	"hackathonhub.shikanime.studio/internal/metrics"
	"hackathonhub.shikanime.studio/internal/provider"
)

// Report describes one ingestion run.
type Report struct {
	RunID    string             `json:"runId"`
	Provider hackathon.Provider `json:"provider"`
	Parsed   int                `json:"parsed"`
	Inserted int                `json:"inserted"`
	Skipped  int                `json:"skipped"`
	// FetchErr and ParseErr are recovered diagnostics; the run still
	// completes with whatever records were available.
	FetchErr error         `json:"-"`
	ParseErr error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

type Orchestrator struct {
	fetcher  Fetcher
	registry provider.Registry
	store    TxStore
	env      provider.Env
	m        *metrics.Metrics

	mu    sync.Mutex
	locks map[hackathon.Provider]*sync.Mutex
}

type Options struct {
	registry    provider.Registry
	enricher    agent.Enricher
	concurrency int
	metrics     *metrics.Metrics
}

type Option func(*Options)

// WithRegistry replaces the built-in provider parsers.
func WithRegistry(r provider.Registry) Option { return func(o *Options) { o.registry = r } }

func WithEnricher(e agent.Enricher) Option { return func(o *Options) { o.enricher = e } }

// WithEnrichmentConcurrency caps concurrent enrichment calls per parse.
func WithEnrichmentConcurrency(n int) Option { return func(o *Options) { o.concurrency = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *Options) { o.metrics = m } }

func NewOrchestrator(f Fetcher, store TxStore, opts ...Option) *Orchestrator {
	o := Options{registry: provider.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Orchestrator{
		fetcher:  f,
		registry: o.registry,
		store:    store,
		env:      provider.Env{Enricher: o.enricher, Concurrency: o.concurrency},
		m:        o.metrics,
		locks:    make(map[hackathon.Provider]*sync.Mutex),
	}
}

// Ingest fetches url, parses it as providerName and stores the records not
// already present. It returns the number of records inserted. Only storage
// failures are returned as errors.
func (o *Orchestrator) Ingest(ctx context.Context, url, providerName string) (int, error) {
	r, err := o.Run(ctx, url, hackathon.ParseProvider(providerName))
	return r.Inserted, err
}

// Run is Ingest with the full report.
func (o *Orchestrator) Run(ctx context.Context, url string, p hackathon.Provider) (report Report, err error) {
	tracer := otel.Tracer("hackathonhub/ingest")
	ctx, span := tracer.Start(ctx, "Orchestrator.Run")
	span.SetAttributes(attribute.String("provider", string(p)), attribute.String("url", url))
	defer span.End()

	start := time.Now()
	report = Report{RunID: uuid.NewString(), Provider: p}
	logger := slog.With("run_id", report.RunID, "provider", p)
	defer func() {
		report.Duration = time.Since(start)
		o.m.ObserveIngest(string(p), report.Duration)
	}()

	if !o.registry.Has(p) {
		report.ParseErr = fmt.Errorf("%w: %q", provider.ErrUnknownProvider, p)
		logger.WarnContext(ctx, "no parser registered for provider")
		o.m.ObserveFetch(string(p), "unknown_provider")
		return report, nil
	}

	payload, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		report.FetchErr = err
		o.m.ObserveFetch(string(p), "failed")
		var fe *FetchError
		if errors.As(err, &fe) {
			logger.WarnContext(ctx, "source fetch failed", "url", fe.URL, "status", fe.StatusCode, "error", fe.Err)
		} else {
			logger.WarnContext(ctx, "source fetch failed", "url", url, "error", err)
		}
		return report, nil
	}
	o.m.ObserveFetch(string(p), "ok")

	records, err := o.registry.Parse(ctx, p, payload, o.env)
	if err != nil {
		report.ParseErr = err
		logger.WarnContext(ctx, "source payload not understood", "error", err, "payload_len", len(payload))
	}
	report.Parsed = len(records)
	logger.DebugContext(ctx, "source parsed", "records", len(records))
	if len(records) == 0 {
		return report, nil
	}

	lock := o.lock(p)
	lock.Lock()
	defer lock.Unlock()

	var inserted, skipped int
	err = o.store.InTx(ctx, func(s Store) error {
		inserted, skipped = 0, 0
		for _, rec := range records {
			exists, err := s.HackathonExists(ctx, rec.ID, p)
			if err != nil {
				return err
			}
			if exists {
				skipped++
				logger.DebugContext(ctx, "record already stored", "external_id", rec.ID)
				continue
			}
			ok, err := s.InsertHackathon(ctx, p, rec)
			if err != nil {
				return err
			}
			if !ok {
				skipped++
				continue
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.m.AddRecords(string(p), "failed", len(records))
		return report, fmt.Errorf("store %s records failed: %w", p, err)
	}
	report.Inserted, report.Skipped = inserted, skipped
	o.m.AddRecords(string(p), "inserted", inserted)
	o.m.AddRecords(string(p), "skipped", skipped)
	logger.InfoContext(ctx, "ingestion done", "parsed", report.Parsed, "inserted", inserted, "skipped", skipped)
	return report, nil
}

func (o *Orchestrator) lock(p hackathon.Provider) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[p]
	if !ok {
		l = &sync.Mutex{}
		o.locks[p] = l
	}
	return l
}

// Providers lists the providers this orchestrator can ingest.
func (o *Orchestrator) Providers() []hackathon.Provider { return o.registry.Providers() }
