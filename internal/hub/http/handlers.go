package http

import (
	"context"
	"errors"
	"log/slog"
	stdhttp "net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"hackathonhub.shikanime.studio/internal/database"
	"hackathonhub.shikanime.studio/internal/hackathon"
	"hackathonhub.shikanime.studio/internal/hub/core"
	"hackathonhub.shikanime.studio/internal/ingest"
)

// Catalog is the query side. *core.Core implements it.
type Catalog interface {
	ListHackathons(ctx context.Context, f hackathon.Filters) ([]hackathon.Record, int, error)
	GetHackathon(ctx context.Context, id string) (hackathon.Record, error)
	GetStats(ctx context.Context) (hackathon.Stats, error)
	SearchContext(ctx context.Context, question string, metadata map[string]any, limit int) ([]hackathon.Record, error)
}

// Ingestor runs ad-hoc ingestions. *ingest.Orchestrator implements it.
type Ingestor interface {
	Run(ctx context.Context, url string, p hackathon.Provider) (ingest.Report, error)
	Providers() []hackathon.Provider
}

// SourceManager is the admin side. *ingest.Sources implements it.
type SourceManager interface {
	List(ctx context.Context) ([]hackathon.Source, error)
	Create(ctx context.Context, src hackathon.Source) (hackathon.Source, error)
	Update(ctx context.Context, p hackathon.Provider, patch hackathon.SourcePatch) (hackathon.Source, error)
	Delete(ctx context.Context, p hackathon.Provider) error
	FetchFromSource(ctx context.Context, p hackathon.Provider) (ingest.Outcome, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type handlers struct {
	Deps
	now func() time.Time
}

func abort(c *gin.Context, status int, msg string, err error) {
	if err != nil && status >= stdhttp.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), msg, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (h *handlers) listHackathons(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		abort(c, stdhttp.StatusBadRequest, "limit must be a non-negative integer", nil)
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		abort(c, stdhttp.StatusBadRequest, "offset must be a non-negative integer", nil)
		return
	}
	f := hackathon.Filters{
		Search: strings.TrimSpace(c.Query("search")),
		Status: hackathon.Status(strings.ToLower(c.Query("status"))),
		Type:   hackathon.Type(strings.ToLower(c.Query("type"))),
		Limit:  limit,
		Offset: offset,
	}
	records, total, err := h.Catalog.ListHackathons(c.Request.Context(), f)
	if err != nil {
		abort(c, stdhttp.StatusInternalServerError, "Failed to fetch hackathons", err)
		return
	}
	if records == nil {
		records = []hackathon.Record{}
	}
	c.JSON(stdhttp.StatusOK, gin.H{"hackathons": records, "total": total})
}

func (h *handlers) getStats(c *gin.Context) {
	s, err := h.Catalog.GetStats(c.Request.Context())
	if err != nil {
		abort(c, stdhttp.StatusInternalServerError, "Failed to fetch hackathon statistics", err)
		return
	}
	c.JSON(stdhttp.StatusOK, gin.H{
		"total":             s.Total,
		"upcoming":          s.Upcoming,
		"ongoing":           s.Ongoing,
		"ended":             s.Ended,
		"totalPrize":        s.TotalPrize,
		"totalPrizeDisplay": core.FormatPrize(s.TotalPrize),
	})
}

func (h *handlers) getHackathon(c *gin.Context) {
	rec, err := h.Catalog.GetHackathon(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, database.ErrNotFound):
		abort(c, stdhttp.StatusNotFound, "Hackathon not found", nil)
	case err != nil:
		abort(c, stdhttp.StatusInternalServerError, "Failed to fetch hackathon", err)
	default:
		c.JSON(stdhttp.StatusOK, rec)
	}
}

type fetchRequest struct {
	URL        string `json:"url"`
	SourceName string `json:"sourceName"`
}

func (h *handlers) fetchHackathons(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" || req.SourceName == "" {
		abort(c, stdhttp.StatusBadRequest, "URL and sourceName are required", nil)
		return
	}
	p := hackathon.ParseProvider(req.SourceName)
	if !slices.Contains(h.Ingestor.Providers(), p) {
		c.JSON(stdhttp.StatusBadRequest, ingest.Outcome{Provider: p, Message: "Unknown source: " + req.SourceName})
		return
	}
	report, err := h.Ingestor.Run(c.Request.Context(), req.URL, p)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "ingestion failed", "provider", p, "error", err)
		c.JSON(stdhttp.StatusInternalServerError, ingest.Outcome{Provider: p, Message: "Failed to fetch and store hackathons: " + err.Error()})
		return
	}
	if report.FetchErr != nil {
		c.JSON(stdhttp.StatusOK, ingest.Outcome{Provider: p, Message: "Failed to fetch hackathons: " + report.FetchErr.Error()})
		return
	}
	c.JSON(stdhttp.StatusOK, ingest.Outcome{
		Provider: p,
		Success:  true,
		Count:    report.Inserted,
		Message:  "Hackathons fetched and stored successfully",
	})
}

func (h *handlers) listSources(c *gin.Context) {
	srcs, err := h.Sources.List(c.Request.Context())
	if err != nil {
		abort(c, stdhttp.StatusInternalServerError, "Failed to fetch sources", err)
		return
	}
	if srcs == nil {
		srcs = []hackathon.Source{}
	}
	c.JSON(stdhttp.StatusOK, srcs)
}

type createSourceRequest struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Provider string `json:"provider"`
	IsActive *bool  `json:"isActive"`
}

func (h *handlers) createSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, stdhttp.StatusBadRequest, "invalid request body", nil)
		return
	}
	src := hackathon.Source{Name: req.Name, URL: req.URL, Provider: hackathon.Provider(req.Provider), IsActive: true}
	if req.IsActive != nil {
		src.IsActive = *req.IsActive
	}
	created, err := h.Sources.Create(c.Request.Context(), src)
	switch {
	case errors.Is(err, ingest.ErrInvalidSource):
		abort(c, stdhttp.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, database.ErrAlreadyExists):
		abort(c, stdhttp.StatusConflict, "Source already exists for this provider", nil)
	case err != nil:
		abort(c, stdhttp.StatusInternalServerError, "Failed to create source", err)
	default:
		c.JSON(stdhttp.StatusCreated, created)
	}
}

func (h *handlers) updateSource(c *gin.Context) {
	var patch hackathon.SourcePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abort(c, stdhttp.StatusBadRequest, "invalid request body", nil)
		return
	}
	updated, err := h.Sources.Update(c.Request.Context(), hackathon.ParseProvider(c.Param("provider")), patch)
	switch {
	case errors.Is(err, database.ErrNotFound):
		abort(c, stdhttp.StatusNotFound, "Source not found", nil)
	case err != nil:
		abort(c, stdhttp.StatusInternalServerError, "Failed to update source", err)
	default:
		c.JSON(stdhttp.StatusOK, updated)
	}
}

func (h *handlers) deleteSource(c *gin.Context) {
	err := h.Sources.Delete(c.Request.Context(), hackathon.ParseProvider(c.Param("provider")))
	switch {
	case errors.Is(err, database.ErrNotFound):
		abort(c, stdhttp.StatusNotFound, "Source not found", nil)
	case err != nil:
		abort(c, stdhttp.StatusInternalServerError, "Failed to delete source", err)
	default:
		c.Status(stdhttp.StatusNoContent)
	}
}

func (h *handlers) fetchFromSource(c *gin.Context) {
	out, err := h.Sources.FetchFromSource(c.Request.Context(), hackathon.ParseProvider(c.Param("provider")))
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(stdhttp.StatusNotFound, out)
	case err != nil:
		slog.ErrorContext(c.Request.Context(), "source fetch failed", "provider", out.Provider, "error", err)
		c.JSON(stdhttp.StatusInternalServerError, out)
	default:
		c.JSON(stdhttp.StatusOK, out)
	}
}

type chatContextRequest struct {
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata"`
	Limit    int            `json:"limit"`
}

func (h *handlers) chatContext(c *gin.Context) {
	var req chatContextRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		abort(c, stdhttp.StatusBadRequest, "Message is required", nil)
		return
	}
	records, err := h.Catalog.SearchContext(c.Request.Context(), req.Message, req.Metadata, req.Limit)
	if err != nil {
		abort(c, stdhttp.StatusInternalServerError, "Failed to build chat context", err)
		return
	}
	if records == nil {
		records = []hackathon.Record{}
	}
	c.JSON(stdhttp.StatusOK, gin.H{"hackathons": records})
}

func (h *handlers) health(c *gin.Context) {
	ts := h.now().UTC().Format(time.RFC3339)
	if h.Pinger == nil {
		c.JSON(stdhttp.StatusOK, gin.H{"status": "OK", "timestamp": ts})
		return
	}
	if err := h.Pinger.Ping(c.Request.Context()); err != nil {
		slog.WarnContext(c.Request.Context(), "health check failed", "error", err)
		c.JSON(stdhttp.StatusServiceUnavailable, gin.H{"status": "UNAVAILABLE", "timestamp": ts})
		return
	}
	c.JSON(stdhttp.StatusOK, gin.H{"status": "OK", "timestamp": ts})
}
