// Package server wires the execution sessions, exam rooms, and signaling
// relay to clients over a WebSocket endpoint.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coderoom/internal/artifact"
	"coderoom/internal/config"
	"coderoom/internal/room"
	"coderoom/internal/runspec"
	"coderoom/internal/session"
)

// Server is the coderoom HTTP/WebSocket server.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	sessions *session.Registry
	rooms    *room.Coordinator
	relay    *room.Relay
	router   chi.Router
	http     *http.Server
}

// New assembles a server from config.
func New(cfg *config.Config) (*Server, error) {
	resolver := runspec.NewResolver()
	if cfg.Session.LanguagesFile != "" {
		if err := resolver.LoadLanguages(cfg.Session.LanguagesFile); err != nil {
			return nil, fmt.Errorf("loading languages: %w", err)
		}
	}

	hub := NewHub()
	scanner := &artifact.Scanner{Emitter: hub, MaxDimension: cfg.Artifact.MaxDimension}
	sessions := session.NewRegistry(hub, resolver, scanner, session.Options{
		WorkspaceRoot: cfg.Session.WorkspaceRoot,
		SeedSQL:       cfg.Session.SeedSQL,
		PollInterval:  cfg.PollInterval(),
	})
	rooms := room.NewCoordinator(hub)

	s := &Server{
		cfg:      cfg,
		hub:      hub,
		sessions: sessions,
		rooms:    rooms,
		relay:    room.NewRelay(rooms, hub),
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "Multi-language runner + Enhanced exam logic")
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("coderoom server starting on http://localhost%s", addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and tears down every live session so
// no user process or workspace outlives the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	s.sessions.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(shutdownCtx)
}
