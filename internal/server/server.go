// Package server exposes the unified inbox over a REST API and an embedded
// live dashboard.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/emirlan/inboxlm/internal/digest"
	"github.com/emirlan/inboxlm/internal/pipeline"
	"github.com/emirlan/inboxlm/internal/store"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

// Server serves the REST API and the HTMX dashboard.
type Server struct {
	store     *store.Store
	pipeline  *pipeline.Pipeline
	digest    *digest.Aggregator
	srv       *http.Server
	startedAt time.Time

	tmpl         *template.Template
	messagesTmpl *template.Template
	statsTmpl    *template.Template
}

// New creates a server. If port is 0, it defaults to 8080.
func New(st *store.Store, pl *pipeline.Pipeline, dg *digest.Aggregator, port int) *Server {
	if port == 0 {
		port = 8080
	}

	s := &Server{
		store:     st,
		pipeline:  pl,
		digest:    dg,
		startedAt: time.Now(),
	}

	s.tmpl = template.Must(
		template.New("dashboard.html").Funcs(funcMap).ParseFS(templateFS, "templates/dashboard.html"),
	)
	s.messagesTmpl = template.Must(template.New("messages").Funcs(funcMap).Parse(messagesPartial))
	s.statsTmpl = template.Must(template.New("stats").Funcs(funcMap).Parse(statsPartial))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/{platform}/messages", s.handleIngest)
		r.Post("/slack/messages", s.handleCompose)
		r.Get("/digest", s.handleDigest)

		r.Route("/ai/models", func(r chi.Router) {
			r.Get("/", s.handleListAiModels)
			r.Post("/", s.handleCreateAiModel)
			r.Patch("/{id}", s.handleUpdateAiModel)
		})
	})

	r.Get("/", s.handleDashboard)
	r.Get("/partials/messages", s.handleMessagesPartial)
	r.Get("/partials/stats", s.handleStatsPartial)
	r.Get("/sse", s.handleSSE)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start starts the HTTP server in a background goroutine.
func (s *Server) Start() error {
	slog.Info("Starting server", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down server")
	return s.srv.Shutdown(ctx)
}

// requestLogger logs each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}
