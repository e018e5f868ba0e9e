package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/tontyoutoure/xianqi/engine"
)

const wsWriteTimeout = 5 * time.Second

// event is one WebSocket frame.
type event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// hub tracks live lobby and room subscriptions.
type hub struct {
	mu    sync.Mutex
	lobby map[*websocket.Conn]struct{}
	rooms map[int]map[*websocket.Conn]int64
	log   *logrus.Logger
}

func newHub(log *logrus.Logger) *hub {
	return &hub{
		lobby: make(map[*websocket.Conn]struct{}),
		rooms: make(map[int]map[*websocket.Conn]int64),
		log:   log,
	}
}

func (h *hub) addLobby(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lobby[conn] = struct{}{}
}

func (h *hub) removeLobby(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lobby, conn)
}

func (h *hub) addRoom(roomID int, conn *websocket.Conn, userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	listeners, ok := h.rooms[roomID]
	if !ok {
		listeners = make(map[*websocket.Conn]int64)
		h.rooms[roomID] = listeners
	}
	listeners[conn] = userID
}

func (h *hub) removeRoom(roomID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	listeners := h.rooms[roomID]
	delete(listeners, conn)
	if len(listeners) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *hub) lobbyConns() []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*websocket.Conn, 0, len(h.lobby))
	for conn := range h.lobby {
		out = append(out, conn)
	}
	return out
}

func (h *hub) roomConns(roomID int) map[*websocket.Conn]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[*websocket.Conn]int64, len(h.rooms[roomID]))
	for conn, userID := range h.rooms[roomID] {
		out[conn] = userID
	}
	return out
}

func (h *hub) send(conn *websocket.Conn, frame event) {
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		h.log.WithError(err).Debug("ws write failed")
	}
}

// handleLobbyWS streams the room list to a lobby viewer.
func (s *Server) handleLobbyWS(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH_INVALID_TOKEN", "missing or invalid access token")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("lobby ws accept failed")
		return
	}
	s.hub.addLobby(conn)
	defer s.hub.removeLobby(conn)

	s.hub.send(conn, event{Type: "ROOM_LIST", Payload: map[string]any{"rooms": s.registry.ListRooms()}})
	s.readUntilClose(r.Context(), conn)
}

// handleRoomWS streams room updates and game frames to a seated user.
func (s *Server) handleRoomWS(w http.ResponseWriter, r *http.Request) {
	claims, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH_INVALID_TOKEN", "missing or invalid access token")
		return
	}
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	view, err := s.registry.GetRoom(roomID)
	if err != nil {
		s.writeRoomError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("room ws accept failed")
		return
	}
	s.hub.addRoom(roomID, conn, claims.UserID)
	defer s.hub.removeRoom(roomID, conn)

	s.hub.send(conn, event{Type: "ROOM_UPDATE", Payload: map[string]any{"room": view}})
	if view.CurrentGameID != "" {
		s.sendGameFrames(conn, claims.UserID, view.CurrentGameID)
	}
	s.readUntilClose(r.Context(), conn)
}

// readUntilClose drains incoming frames; the protocol is push-only.
func (s *Server) readUntilClose(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func (s *Server) broadcastRoomChanged(roomID int) {
	view, err := s.registry.GetRoom(roomID)
	if err != nil {
		return
	}
	frame := event{Type: "ROOM_UPDATE", Payload: map[string]any{"room": view}}
	for conn := range s.hub.roomConns(roomID) {
		s.hub.send(conn, frame)
	}

	list := event{Type: "ROOM_LIST", Payload: map[string]any{"rooms": s.registry.ListRooms()}}
	for _, conn := range s.hub.lobbyConns() {
		s.hub.send(conn, list)
	}
}

func (s *Server) broadcastGameProgress(roomID int, gameID string) {
	finished := false
	for conn, userID := range s.hub.roomConns(roomID) {
		if phase := s.sendGameFrames(conn, userID, gameID); phase == engine.PhaseFinished {
			finished = true
		}
	}
	if finished {
		s.broadcastRoomChanged(roomID)
		for conn, userID := range s.hub.roomConns(roomID) {
			settlement, err := s.registry.GameSettlementForUser(gameID, userID)
			if err != nil {
				continue
			}
			s.hub.send(conn, event{Type: "SETTLEMENT", Payload: settlement})
		}
	}
}

// sendGameFrames pushes the public frame plus, for game members, the
// private frame. Returns the game phase for settlement fan-out.
func (s *Server) sendGameFrames(conn *websocket.Conn, userID int64, gameID string) engine.Phase {
	view, err := s.registry.GameStateForUser(gameID, userID)
	if err != nil {
		// Room viewers who are not game members get no frames.
		return ""
	}
	s.hub.send(conn, event{Type: "GAME_PUBLIC_STATE", Payload: map[string]any{
		"game_id":      gameID,
		"public_state": view.PublicState,
	}})
	s.hub.send(conn, event{Type: "GAME_PRIVATE_STATE", Payload: map[string]any{
		"game_id":       gameID,
		"self_seat":     view.SelfSeat,
		"private_state": view.PrivateState,
		"legal_actions": view.LegalActions,
	}})
	return view.PublicState.Phase
}
