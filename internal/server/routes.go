package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/config"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/roomid"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/signaling"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Server wires the signaling gateway to HTTP.
type Server struct {
	cfg      *config.ServerConfig
	gateway  *signaling.Gateway
	rooms    *roomid.Generator
	upgrader websocket.Upgrader
}

// New creates a Server with a fresh registry, router and gateway.
func New(cfg *config.ServerConfig) *Server {
	router := signaling.NewRouter(signaling.NewRegistry())
	gateway := signaling.NewGateway(router, signaling.WithSendBuffer(cfg.SendBuffer))

	s := &Server{
		cfg:     cfg,
		gateway: gateway,
		rooms:   roomid.New(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Gateway returns the underlying signaling gateway.
func (s *Server) Gateway() *signaling.Gateway {
	return s.gateway
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthCheckHandler)
	r.Get("/ws", s.ServeWs)

	r.Get("/api/stats", s.stats)
	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", s.createRoom)
		r.Get("/{roomID}", s.roomStatus)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("Starting signaling server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := s.gateway.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Connections did not drain in time")
	}

	log.Info().Msg("Server exited")
	return nil
}

// ServeWs upgrades the request and hands the connection to the gateway.
func (s *Server) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to upgrade connection")
		return
	}
	s.gateway.Serve(conn)
}

type roomStatusResponse struct {
	RoomID  string `json:"roomId"`
	Exists  bool   `json:"exists"`
	Members int    `json:"members"`
}

func (s *Server) roomStatus(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	registry := s.gateway.Router().Registry()

	writeJSON(w, http.StatusOK, roomStatusResponse{
		RoomID:  roomID,
		Exists:  registry.Exists(roomID),
		Members: len(registry.MembersOf(roomID)),
	})
}

type createRoomResponse struct {
	RoomID string `json:"roomId"`
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	registry := s.gateway.Router().Registry()
	id := s.rooms.Generate(registry.Exists)

	log.Info().Str("room_id", id).Msg("Room id issued")
	writeJSON(w, http.StatusCreated, createRoomResponse{RoomID: id})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gateway.Router().Registry().Stats())
}

// Health Check endpoint
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// checkOrigin allows every origin when no allow-list is configured.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
