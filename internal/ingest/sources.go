package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"hackathonhub.shikanime.studio/internal/database"
	"hackathonhub.shikanime.studio/internal/hackathon"
	"hackathonhub.shikanime.studio/internal/provider"
	"k8s.io/utils/ptr"
)

// ErrInvalidSource reports a descriptor missing required fields.
var ErrInvalidSource = errors.New("invalid source")

// Runner runs one ingestion. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, url string, p hackathon.Provider) (Report, error)
}

// Refresher embeds newly stored records. *core.Core implements it.
type Refresher interface {
	RefreshEmbeddings(ctx context.Context, ttl time.Duration) (int, error)
}

// Outcome is what the serving layer reports for a fetch.
type Outcome struct {
	Provider hackathon.Provider `json:"provider,omitempty"`
	Success  bool               `json:"success"`
	Count    int                `json:"count"`
	Message  string             `json:"message"`
}

// Sources manages source descriptors and fetches from them.
type Sources struct {
	store       SourceStore
	runner      Runner
	concurrency int
	now         func() time.Time
	providers   []hackathon.Provider
	refresher   Refresher
	ttl         time.Duration
}

type SourcesOption func(*Sources)

// WithSourceConcurrency caps how many sources FetchAll runs at once.
func WithSourceConcurrency(n int) SourcesOption {
	return func(s *Sources) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) SourcesOption { return func(s *Sources) { s.now = now } }

// WithProviders restricts new descriptors to providers with a parser.
func WithProviders(ps []hackathon.Provider) SourcesOption {
	return func(s *Sources) { s.providers = ps }
}

// WithRefresher refreshes embeddings older than ttl after scheduled
// fetches that stored new records.
func WithRefresher(r Refresher, ttl time.Duration) SourcesOption {
	return func(s *Sources) { s.refresher, s.ttl = r, ttl }
}

func NewSources(store SourceStore, runner Runner, opts ...SourcesOption) *Sources {
	s := &Sources{store: store, runner: runner, concurrency: 3, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sources) List(ctx context.Context) ([]hackathon.Source, error) {
	return s.store.ListSources(ctx, database.ListSourcesArgs{})
}

func (s *Sources) Get(ctx context.Context, p hackathon.Provider) (hackathon.Source, error) {
	return s.store.GetSource(ctx, p)
}

// Create stores a new descriptor. Name, URL and provider are required.
func (s *Sources) Create(ctx context.Context, src hackathon.Source) (hackathon.Source, error) {
	src.Provider = hackathon.ParseProvider(string(src.Provider))
	src.Name = strings.TrimSpace(src.Name)
	src.URL = strings.TrimSpace(src.URL)
	if src.Name == "" || src.URL == "" || src.Provider == "" {
		return hackathon.Source{}, fmt.Errorf("%w: name, url and provider are required", ErrInvalidSource)
	}
	if s.providers != nil && !slices.Contains(s.providers, src.Provider) {
		return hackathon.Source{}, fmt.Errorf("%w: no parser for provider %q", ErrInvalidSource, src.Provider)
	}
	if src.CreatedBy == "" {
		src.CreatedBy = "admin"
	}
	return s.store.CreateSource(ctx, src)
}

func (s *Sources) Update(ctx context.Context, p hackathon.Provider, patch hackathon.SourcePatch) (hackathon.Source, error) {
	return s.store.UpdateSource(ctx, p, patch)
}

func (s *Sources) Delete(ctx context.Context, p hackathon.Provider) error {
	return s.store.DeleteSource(ctx, p)
}

// FetchFromSource ingests the descriptor of p and records the inserted
// count on it, replacing the previous count. The returned error is set
// when the descriptor is missing or storage failed; the Outcome is always
// usable.
func (s *Sources) FetchFromSource(ctx context.Context, p hackathon.Provider) (Outcome, error) {
	tracer := otel.Tracer("hackathonhub/ingest")
	ctx, span := tracer.Start(ctx, "Sources.FetchFromSource")
	span.SetAttributes(attribute.String("provider", string(p)))
	defer span.End()

	src, err := s.store.GetSource(ctx, p)
	if err != nil {
		return failed(p, err), err
	}
	return s.fetch(ctx, src)
}

func (s *Sources) fetch(ctx context.Context, src hackathon.Source) (Outcome, error) {
	report, err := s.runner.Run(ctx, src.URL, src.Provider)
	if err != nil {
		return failed(src.Provider, err), err
	}
	if errors.Is(report.ParseErr, provider.ErrUnknownProvider) {
		return failed(src.Provider, report.ParseErr), nil
	}
	if err := s.store.MarkSourceFetched(ctx, database.MarkSourceFetchedArgs{
		Provider: src.Provider,
		Count:    report.Inserted,
		At:       s.now(),
	}); err != nil {
		return failed(src.Provider, err), err
	}
	if report.FetchErr != nil {
		return failed(src.Provider, report.FetchErr), nil
	}
	return Outcome{
		Provider: src.Provider,
		Success:  true,
		Count:    report.Inserted,
		Message:  fmt.Sprintf("Successfully fetched %d hackathons from %s", report.Inserted, src.Name),
	}, nil
}

// FetchAll fetches every active source concurrently. A failing source does
// not stop the others; its error is reported in its Outcome.
func (s *Sources) FetchAll(ctx context.Context) ([]Outcome, error) {
	tracer := otel.Tracer("hackathonhub/ingest")
	ctx, span := tracer.Start(ctx, "Sources.FetchAll")
	defer span.End()

	srcs, err := s.store.ListSources(ctx, database.ListSourcesArgs{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list active sources failed: %w", err)
	}
	span.SetAttributes(attribute.Int("sources_len", len(srcs)))
	out := make([]Outcome, len(srcs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, src := range srcs {
		g.Go(func() error {
			o, err := s.fetch(ctx, src)
			if err != nil {
				slog.ErrorContext(ctx, "source fetch failed", "provider", src.Provider, "error", err)
			}
			out[i] = o
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// Schedule runs FetchAll immediately and then every interval until ctx is
// done. Overlapping ticks are dropped.
func (s *Sources) Schedule(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("schedule interval must be positive, got %s", every)
	}
	var running sync.Mutex
	tick := func() {
		if !running.TryLock() {
			slog.WarnContext(ctx, "previous scheduled fetch still running, skipping")
			return
		}
		defer running.Unlock()
		outcomes, err := s.FetchAll(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "scheduled fetch failed", "error", err)
			return
		}
		total := 0
		for _, o := range outcomes {
			total += o.Count
		}
		slog.InfoContext(ctx, "scheduled fetch done", "sources", len(outcomes), "inserted", total)
		if s.refresher == nil || total == 0 {
			return
		}
		n, err := s.refresher.RefreshEmbeddings(ctx, s.ttl)
		if err != nil {
			slog.ErrorContext(ctx, "embeddings refresh failed", "error", err)
			return
		}
		slog.InfoContext(ctx, "embeddings refreshed", "count", n)
	}
	tick()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			tick()
		}
	}
}

// SeedFile is the YAML document accepted by Import.
type SeedFile struct {
	Sources []SeedSource `yaml:"sources"`
}

type SeedSource struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Provider string `yaml:"provider"`
	IsActive *bool  `yaml:"isActive"`
}

// Import creates the sources listed in a YAML seed file, updating those
// whose provider already has a descriptor.
func (s *Sources) Import(ctx context.Context, r io.Reader) ([]hackathon.Source, error) {
	var seed SeedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed file failed: %w", err)
	}
	out := make([]hackathon.Source, 0, len(seed.Sources))
	for _, ss := range seed.Sources {
		src := hackathon.Source{Name: ss.Name, URL: ss.URL, Provider: hackathon.Provider(ss.Provider), IsActive: true}
		if ss.IsActive != nil {
			src.IsActive = *ss.IsActive
		}
		created, err := s.Create(ctx, src)
		if errors.Is(err, database.ErrAlreadyExists) {
			created, err = s.Update(ctx, hackathon.ParseProvider(ss.Provider), hackathon.SourcePatch{
				Name:     ptr.To(src.Name),
				URL:      ptr.To(src.URL),
				IsActive: ss.IsActive,
			})
		}
		if err != nil {
			return out, fmt.Errorf("import source %q failed: %w", ss.Provider, err)
		}
		out = append(out, created)
	}
	return out, nil
}

func failed(p hackathon.Provider, err error) Outcome {
	return Outcome{Provider: p, Message: "Failed to fetch from source: " + err.Error()}
}
