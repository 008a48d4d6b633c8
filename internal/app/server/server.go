package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"supportdesk/internal/app/server/handlers"
	"supportdesk/internal/core/contracts"
	"supportdesk/internal/core/services"
	"supportdesk/pkg/middleware"
)

type Server struct {
	mux           *http.ServeMux
	http          *http.Server
	wsHandler     *handlers.WSHandler
	healthHandler *handlers.HealthHandler
	log           *slog.Logger
}

func NewServer(
	log *slog.Logger,
	name string,
	addr string,
	rooms *services.RoomManager,
	validator contracts.CredentialValidator,
	sendBuffer int,
) *Server {
	s := &Server{
		mux:           http.NewServeMux(),
		wsHandler:     handlers.NewWSHandler(rooms, validator, sendBuffer),
		healthHandler: handlers.NewHealthHandler(rooms),
		log:           log,
	}
	s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(name),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.healthHandler.Handler)
	s.mux.HandleFunc("GET "+handlers.RoutePrefix, s.wsHandler.Handler)
}

// Handler is the mux wrapped in tracing and request logging.
func (s *Server) Handler(name string) http.Handler {
	return middleware.TracerMiddleware(name)(middleware.RequestLogger(s.log)(s.mux))
}

func (s *Server) Start() error {
	s.log.Info("server - start - listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
