// Package server exposes the REST and WebSocket surfaces over the room
// registry and auth service.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tontyoutoure/xianqi/internal/auth"
	"github.com/tontyoutoure/xianqi/internal/room"
)

// Server routes HTTP and WebSocket traffic.
type Server struct {
	registry *room.Registry
	auth     *auth.Service
	log      *logrus.Logger
	hub      *hub
	mux      *http.ServeMux
}

// New wires the routes and hooks the registry's broadcast callbacks
// into the WebSocket hub.
func New(registry *room.Registry, authService *auth.Service, log *logrus.Logger) *Server {
	s := &Server{
		registry: registry,
		auth:     authService,
		log:      log,
		hub:      newHub(log),
		mux:      http.NewServeMux(),
	}

	registry.OnRoomChanged = s.broadcastRoomChanged
	registry.OnGameProgress = s.broadcastGameProgress

	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /api/rooms", s.withUser(s.handleListRooms))
	s.mux.HandleFunc("GET /api/rooms/{id}", s.withUser(s.handleGetRoom))
	s.mux.HandleFunc("POST /api/rooms/{id}/join", s.withUser(s.handleJoinRoom))
	s.mux.HandleFunc("POST /api/rooms/{id}/leave", s.withUser(s.handleLeaveRoom))
	s.mux.HandleFunc("POST /api/rooms/{id}/ready", s.withUser(s.handleReady))

	s.mux.HandleFunc("GET /api/games/{id}/state", s.withUser(s.handleGameState))
	s.mux.HandleFunc("POST /api/games/{id}/actions", s.withUser(s.handleGameAction))
	s.mux.HandleFunc("GET /api/games/{id}/settlement", s.withUser(s.handleGameSettlement))

	s.mux.HandleFunc("GET /ws/lobby", s.handleLobbyWS)
	s.mux.HandleFunc("GET /ws/rooms/{id}", s.handleRoomWS)

	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.WithField("addr", addr).Info("listening")
	return http.ListenAndServe(addr, s.mux)
}

type userHandler func(w http.ResponseWriter, r *http.Request, claims auth.Claims)

// withUser enforces a Bearer access token.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "AUTH_INVALID_TOKEN", "missing or invalid access token")
			return
		}
		next(w, r, claims)
	}
}

func (s *Server) authenticate(r *http.Request) (auth.Claims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		// WebSocket clients cannot set headers from the browser.
		token = r.URL.Query().Get("token")
	}
	return s.auth.VerifyAccess(token)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return false
	}
	return true
}
