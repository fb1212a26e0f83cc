package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	stdhttp "net/http"
	"time"

	"connectrpc.com/connect"
	grpchealth "connectrpc.com/grpchealth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"hackathonhub.shikanime.studio/internal/config"
	"hackathonhub.shikanime.studio/internal/hub"
)

// ServiceName is the service reported by the gRPC health endpoint.
const ServiceName = "hackathonhub"

// Deps are the services the HTTP surface dispatches to.
type Deps struct {
	Catalog     Catalog
	Ingestor    Ingestor
	Sources     SourceManager
	Pinger      Pinger
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// Server holds the router and the hub it serves.
type Server struct {
	hub    *hub.Hub
	router *gin.Engine
	srv    *stdhttp.Server
}

// NewServer mounts the REST API, metrics and gRPC health handler for h.
func NewServer(h *hub.Hub, cfg *config.Config) *Server {
	router := NewRouter(Deps{
		Catalog:     h.Core(),
		Ingestor:    h.Orchestrator(),
		Sources:     h.Sources(),
		Pinger:      h,
		Gatherer:    h.Registry(),
		CORSOrigins: cfg.GetCORSOrigins(),
	})
	return &Server{
		hub:    h,
		router: router,
		srv: &stdhttp.Server{
			Handler:           otelhttp.NewHandler(router, "http.server"),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewServerForConfig builds a hub from cfg and returns a configured Server.
func NewServerForConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	h, err := hub.NewForConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewServer(h, cfg), nil
}

// NewRouter builds the gin engine serving every route.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logRequests())
	cc := cors.DefaultConfig()
	cc.AllowOrigins = d.CORSOrigins
	cc.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cc.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(cc))

	h := &handlers{Deps: d, now: time.Now}
	api := r.Group("/api")
	api.GET("/hackathons", h.listHackathons)
	api.GET("/hackathons/stats", h.getStats)
	api.GET("/hackathons/:id", h.getHackathon)
	api.POST("/hackathons/fetch", h.fetchHackathons)
	api.GET("/sources", h.listSources)
	api.POST("/sources", h.createSource)
	api.PUT("/sources/:provider", h.updateSource)
	api.DELETE("/sources/:provider", h.deleteSource)
	api.POST("/sources/:provider/fetch", h.fetchFromSource)
	api.POST("/chat/context", h.chatContext)
	api.GET("/health", h.health)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	hpath, hhandler := grpchealth.NewHandler(HealthChecker{pinger: d.Pinger})
	r.Any(hpath+"*method", gin.WrapH(hhandler))
	return r
}

func logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.DebugContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	slog.Info("server starting", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Close closes the hub's clients and database connections.
func (s *Server) Close() error {
	if s.hub != nil {
		return s.hub.Close()
	}
	return nil
}

// HealthChecker reports health based on database connectivity.
type HealthChecker struct{ pinger Pinger }

// Check implements grpchealth.Checker.
func (c HealthChecker) Check(
	ctx context.Context,
	req *grpchealth.CheckRequest,
) (*grpchealth.CheckResponse, error) {
	tracer := otel.Tracer("hackathonhub/http")
	ctx, span := tracer.Start(ctx, "HealthChecker.Check")
	defer span.End()
	switch req.Service {
	case "", ServiceName:
		if c.pinger == nil || c.pinger.Ping(ctx) != nil {
			return &grpchealth.CheckResponse{Status: grpchealth.StatusNotServing}, nil
		}
		return &grpchealth.CheckResponse{Status: grpchealth.StatusServing}, nil
	default:
		return nil, connect.NewError(
			connect.CodeNotFound,
			fmt.Errorf("unknown service: %s", req.Service),
		)
	}
}
