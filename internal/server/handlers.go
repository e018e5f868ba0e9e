package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tontyoutoure/xianqi/engine"
	"github.com/tontyoutoure/xianqi/internal/auth"
	"github.com/tontyoutoure/xianqi/internal/database"
	"github.com/tontyoutoure/xianqi/internal/room"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.auth.Register(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "AUTH_INVALID_CREDENTIALS", "username and password are required")
	case errors.Is(err, database.ErrDuplicate):
		writeError(w, http.StatusConflict, "USER_EXISTS", "username is taken")
	case err != nil:
		s.internalError(w, err)
	default:
		writeJSON(w, http.StatusCreated, map[string]any{
			"user_id":  user.ID,
			"username": user.Username,
		})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := s.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS", "wrong username or password")
	case err != nil:
		s.internalError(w, err)
	default:
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "AUTH_INVALID_TOKEN", "refresh token is invalid or expired")
	case err != nil:
		s.internalError(w, err)
	default:
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request, _ auth.Claims) {
	writeJSON(w, http.StatusOK, s.registry.ListRooms())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request, _ auth.Claims) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	view, err := s.registry.GetRoom(roomID)
	if err != nil {
		s.writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	view, err := s.registry.Join(roomID, claims.UserID, claims.Username)
	if err != nil {
		s.writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	if _, err := s.registry.Leave(roomID, claims.UserID); err != nil {
		s.writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	roomID, ok := pathRoomID(w, r)
	if !ok {
		return
	}
	var req struct {
		Ready bool `json:"ready"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := s.registry.SetReady(roomID, claims.UserID, req.Ready)
	if err != nil {
		s.writeRoomError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	view, err := s.registry.GameStateForUser(r.PathValue("id"), claims.UserID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type gameActionRequest struct {
	ActionIdx     int               `json:"action_idx"`
	ClientVersion int               `json:"client_version"`
	CoverList     engine.CardCounts `json:"cover_list,omitempty"`
}

func (s *Server) handleGameAction(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	var req gameActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.registry.ApplyGameAction(r.PathValue("id"), claims.UserID, req.ActionIdx, req.CoverList, req.ClientVersion)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGameSettlement(w http.ResponseWriter, r *http.Request, claims auth.Claims) {
	view, err := s.registry.GameSettlementForUser(r.PathValue("id"), claims.UserID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) writeRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "ROOM_NOT_FOUND", "room not found")
	case errors.Is(err, room.ErrRoomFull):
		writeError(w, http.StatusConflict, "ROOM_FULL", "room is full")
	case errors.Is(err, room.ErrNotMember):
		writeError(w, http.StatusForbidden, "ROOM_NOT_MEMBER", "user is not a room member")
	case errors.Is(err, room.ErrNotWaiting):
		writeError(w, http.StatusConflict, "ROOM_NOT_WAITING", "room is not in waiting status")
	default:
		s.internalError(w, err)
	}
}

func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrGameNotFound):
		writeError(w, http.StatusNotFound, "GAME_NOT_FOUND", "game not found")
	case errors.Is(err, room.ErrGameForbidden):
		writeError(w, http.StatusForbidden, "GAME_FORBIDDEN", "user is not a game member")
	case errors.Is(err, room.ErrGameStateConflict):
		writeError(w, http.StatusConflict, "GAME_STATE_CONFLICT", "game has not settled")
	case errors.Is(err, engine.ErrVersionConflict):
		writeError(w, http.StatusConflict, "GAME_VERSION_CONFLICT", "game version conflict")
	case errors.Is(err, engine.ErrInvalidPhase),
		errors.Is(err, engine.ErrInvalidActionIndex),
		errors.Is(err, engine.ErrInvalidCoverList),
		errors.Is(err, engine.ErrInvalidAction):
		writeError(w, http.StatusConflict, "GAME_INVALID_ACTION", err.Error())
	default:
		s.internalError(w, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("request failed")
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func pathRoomID(w http.ResponseWriter, r *http.Request) (int, bool) {
	roomID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "ROOM_NOT_FOUND", "room not found")
		return 0, false
	}
	return roomID, true
}
