package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudnote/internal/metrics"
	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/desertthunder/cloudnote/internal/tasks"
	"github.com/desertthunder/cloudnote/internal/web"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// DetailSource looks up NetEase playlists, songs and albums.
type DetailSource interface {
	Detail(ctx context.Context, kind, id string) (json.RawMessage, error)
}

// Deps are the collaborators of a [Server]. Notion and Netease are required.
type Deps struct {
	Config  *shared.Config
	Notion  *services.NotionService
	Netease DetailSource
	Source  tasks.Source // history source for imports; Netease is used when it is a [tasks.Source]

	Engine   *tasks.ImportEngine // built from Source and Notion when nil
	Recorder tasks.RunRecorder
	Metrics  *metrics.Metrics
	Pages    *web.Pages
	Logger   *log.Logger
}

// Server is the relay HTTP server.
type Server struct {
	config    *shared.Config
	notion    *services.NotionService
	netease   DetailSource
	source    tasks.Source
	engine    *tasks.ImportEngine
	metrics   *metrics.Metrics
	pages     *web.Pages
	validator *shared.Validator
	logger    *log.Logger
	router    chi.Router
}

// New wires the routes and middleware.
func New(deps Deps) (*Server, error) {
	if deps.Notion == nil || deps.Netease == nil {
		return nil, fmt.Errorf("%w: notion and netease services are required", shared.ErrInvalidArgument)
	}

	s := &Server{
		config:    deps.Config,
		notion:    deps.Notion,
		netease:   deps.Netease,
		source:    deps.Source,
		engine:    deps.Engine,
		metrics:   deps.Metrics,
		pages:     deps.Pages,
		validator: shared.NewValidator(),
		logger:    deps.Logger,
	}

	if s.config == nil {
		s.config = shared.DefaultConfig()
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.pages == nil {
		pages, err := web.New()
		if err != nil {
			return nil, err
		}
		s.pages = pages
	}
	if s.source == nil {
		if src, ok := deps.Netease.(tasks.Source); ok {
			s.source = src
		}
	}
	if s.engine == nil {
		s.engine = tasks.NewImportEngine(s.source, s.notion, shared.WithLogger(s.logger, "component", "import")).
			WithObserver(s.metrics)
		if deps.Recorder != nil {
			s.engine.WithRecorder(deps.Recorder)
		}
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.instrument)
	r.Use(s.cors())

	r.Get("/", s.handleIndex)
	r.Get("/auth-result", s.handleAuthResult)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit())

		r.Route("/notion", func(r chi.Router) {
			r.Get("/authorize", s.handleAuthorize)
			r.Get("/callback", s.handleCallback)
			r.Post("/exchange", s.handleExchange)
			r.Options("/exchange", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
			r.Post("/upload", s.handleSnapshot)
		})
		r.Get("/netease/data", s.handleNeteaseData)
		r.Post("/import", s.handleImport)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("relay server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down relay server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := web.IndexData{Configured: s.notion.HasClient(), AuthorizePath: "/api/notion/authorize"}
	s.render(w, http.StatusOK, web.PageIndex, data)
}

func (s *Server) handleAuthResult(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := web.AuthResultData{AccessToken: q.Get("access_token"), WorkspaceName: q.Get("workspace_name")}
	s.render(w, http.StatusOK, web.PageAuthResult, data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]string{"status": "ok"}
	if b, ok := s.source.(interface{ State() string }); ok {
		health["netease_breaker"] = b.State()
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data any) {
	if err := s.pages.Write(w, status, page, data); err != nil {
		s.logger.Error("failed to render page", "page", page, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
