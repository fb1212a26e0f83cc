// Package provider maps raw listing payloads of each external source into
// canonical hackathon records.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
	"hackathonhub.shikanime.studio/internal/agent"
	"hackathonhub.shikanime.studio/internal/hackathon"
)

var (
	// ErrMalformedSourceData reports a payload whose overall shape is not the
	// one the provider publishes. It is a diagnostic: the parse result is
	// simply empty.
	ErrMalformedSourceData = errors.New("malformed source data")
	// ErrUnknownProvider reports a provider without a registered parser.
	ErrUnknownProvider = errors.New("unknown provider")
)

const defaultConcurrency = 4

// Env carries what parsers need besides the payload.
type Env struct {
	Enricher agent.Enricher
	// Concurrency caps simultaneous enrichment calls within one parse.
	Concurrency int
}

func (e Env) enricher() agent.Enricher {
	if e.Enricher == nil {
		return agent.Noop{}
	}
	return e.Enricher
}

// ParseFunc converts one provider payload into records. It never panics on
// bad input; a payload of the wrong shape yields no records and an error
// wrapping ErrMalformedSourceData.
type ParseFunc func(ctx context.Context, payload []byte, env Env) ([]hackathon.Record, error)

// Registry maps provider names to their parser.
type Registry map[hackathon.Provider]ParseFunc

// Default returns a registry with every built-in provider.
func Default() Registry {
	return Registry{
		hackathon.ProviderTopcoder: ParseTopcoder,
		hackathon.ProviderDevpost:  ParseDevpost,
		hackathon.ProviderQuira:    ParseQuira,
	}
}

// Parse dispatches payload to the parser registered for p. Unknown
// providers yield no records and an error wrapping ErrUnknownProvider.
func (r Registry) Parse(ctx context.Context, p hackathon.Provider, payload []byte, env Env) ([]hackathon.Record, error) {
	fn, ok := r[p]
	if !ok {
		return []hackathon.Record{}, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	env.Enricher = env.enricher()
	return fn(ctx, payload, env)
}

// Has reports whether p has a parser.
func (r Registry) Has(p hackathon.Provider) bool {
	_, ok := r[p]
	return ok
}

// Providers lists registered providers in name order.
func (r Registry) Providers() []hackathon.Provider {
	out := make([]hackathon.Provider, 0, len(r))
	for p := range r {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// listAt returns the array at path of a JSON document, or a malformed
// source error. An empty path expects the document itself to be an array.
func listAt(payload []byte, provider hackathon.Provider, path string) ([]gjson.Result, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: %s payload is not valid JSON", ErrMalformedSourceData, provider)
	}
	list := gjson.ParseBytes(payload)
	if path != "" {
		list = list.Get(path)
	}
	if !list.IsArray() {
		where := "payload"
		if path != "" {
			where = path
		}
		return nil, fmt.Errorf("%w: %s %s is not an array", ErrMalformedSourceData, provider, where)
	}
	return list.Array(), nil
}

// nativeID returns the provider's id for item, or "" when item has none.
func nativeID(ctx context.Context, provider hackathon.Provider, item gjson.Result, path string) string {
	id := strings.TrimSpace(item.Get(path).String())
	if id == "" {
		slog.DebugContext(ctx, "skipping item without id", "provider", provider, "path", path)
	}
	return id
}

// stringOr returns the string form of r, or def when r is absent, null,
// false, zero or empty.
func stringOr(r gjson.Result, def string) string {
	switch r.Type {
	case gjson.Null, gjson.False:
		return def
	case gjson.Number:
		if r.Num == 0 {
			return def
		}
	}
	if s := strings.TrimSpace(r.String()); s != "" {
		return s
	}
	return def
}

// stringList returns the non-empty strings of a JSON array, read at path
// within each member when path is set.
func stringList(r gjson.Result, path string) []string {
	out := []string{}
	for _, v := range r.Array() {
		if path != "" {
			v = v.Get(path)
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// enrichEach runs fn for every record on a bounded errgroup. fn must only
// touch the record it is given.
func enrichEach(ctx context.Context, env Env, records []hackathon.Record, fn func(context.Context, agent.Enricher, *hackathon.Record)) {
	limit := env.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	enr := env.enricher()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range records {
		g.Go(func() error {
			fn(gctx, enr, &records[i])
			return nil
		})
	}
	_ = g.Wait()
}
