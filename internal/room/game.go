package room

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tontyoutoure/xianqi/engine"
	"github.com/tontyoutoure/xianqi/gamelog"
	"github.com/tontyoutoure/xianqi/internal/database"
	"github.com/tontyoutoure/xianqi/internal/history"
)

// Game binds one engine state to a room and its seated users.
type Game struct {
	ID        string
	RoomID    int
	Seed      int64
	state     engine.GameState
	seatUsers [engine.NumSeats]int64
	logger    *gamelog.Logger

	// settlement is set once the game finishes and stays retrievable
	// after the room has gone back to waiting.
	settlement *engine.Settlement
}

// GameStateView is one member's view of a running game.
type GameStateView struct {
	GameID       string              `json:"game_id"`
	RoomID       int                 `json:"room_id"`
	SelfSeat     engine.Seat         `json:"self_seat"`
	PublicState  engine.PublicState  `json:"public_state"`
	PrivateState engine.PrivateState `json:"private_state"`
	LegalActions engine.LegalActions `json:"legal_actions"`
}

// SettlementView is the finished game's result for a member.
type SettlementView struct {
	GameID     string            `json:"game_id"`
	RoomID     int               `json:"room_id"`
	Settlement engine.Settlement `json:"settlement"`
}

// startGame deals a fresh game for the room. Must be called with the
// registry lock held and all three seats ready.
func (r *Registry) startGame(room *Room) *Game {
	seed := r.now().UnixNano()
	game := &Game{
		ID:     uuid.NewString(),
		RoomID: room.ID,
		Seed:   seed,
		state:  engine.NewGame(seed),
	}
	for _, member := range room.Members {
		game.seatUsers[member.Seat] = member.UserID
	}

	if r.gameLogDir != "" {
		game.logger = gamelog.New(filepath.Join(r.gameLogDir, game.ID))
		if err := game.logger.Reset(); err != nil {
			r.log.WithError(err).WithField("game_id", game.ID).Warn("failed to reset game log")
			game.logger = nil
		}
	}
	r.logGameState(game)

	r.games[game.ID] = game
	room.Status = StatusPlaying
	room.CurrentGameID = game.ID

	r.log.WithFields(logrus.Fields{
		"room_id": room.ID,
		"game_id": game.ID,
		"seed":    seed,
	}).Info("game started")
	return game
}

// ApplyGameAction applies one member action. Engine errors pass
// through wrapped so the server layer can map them to response codes.
func (r *Registry) ApplyGameAction(gameID string, userID int64, actionIdx int, coverList engine.CardCounts, clientVersion int) error {
	roomID, err := r.applyGameActionLocked(gameID, userID, actionIdx, coverList, clientVersion)
	if err != nil {
		return err
	}
	r.gameProgress(roomID, gameID)
	return nil
}

func (r *Registry) applyGameActionLocked(gameID string, userID int64, actionIdx int, coverList engine.CardCounts, clientVersion int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	game, seat, err := r.gameSeat(gameID, userID)
	if err != nil {
		return 0, err
	}

	legal := engine.LegalActionsFor(&game.state, seat)
	if len(legal.Actions) == 0 {
		return 0, fmt.Errorf("%w: seat %d is not acting", engine.ErrInvalidAction, seat)
	}

	preVersion := game.state.Version
	if err := game.state.ApplyAction(actionIdx, coverList, clientVersion); err != nil {
		return 0, err
	}

	r.logGameState(game)
	r.logGameAction(game, preVersion, seat, legal, actionIdx, coverList)
	r.publishAction(game, preVersion, seat, legal, actionIdx, coverList)

	if game.state.Phase == engine.PhaseSettlement {
		r.settleGame(game)
	}
	return game.RoomID, nil
}

// settleGame runs the terminal settlement: chips move between the
// room members, the result is persisted and the room goes back to
// waiting. Must be called with the registry lock held.
func (r *Registry) settleGame(game *Game) {
	preVersion := game.state.Version
	settlement, err := game.state.Settle()
	if err != nil {
		// Unreachable: settleGame only runs in settlement phase.
		r.log.WithError(err).WithField("game_id", game.ID).Error("settle failed")
		return
	}
	game.settlement = &settlement

	room := r.rooms[game.RoomID]
	for _, delta := range settlement.ChipDeltaBySeat {
		userID := game.seatUsers[delta.Seat]
		if idx := memberIndex(room, userID); idx >= 0 {
			room.Members[idx].Chips += delta.Delta
		}
	}
	room.Status = StatusWaiting
	room.CurrentGameID = ""
	for i := range room.Members {
		room.Members[i].Ready = false
	}

	r.logGameState(game)
	if game.logger != nil {
		err := game.logger.WriteSettlement(gamelog.SettleRecord{
			FromVersion: preVersion,
			ToVersion:   game.state.Version,
			Settlement:  settlement,
		})
		if err != nil {
			r.log.WithError(err).WithField("game_id", game.ID).Warn("failed to write settle record")
		}
	}
	r.storeGameResult(game, settlement)

	r.log.WithFields(logrus.Fields{
		"room_id": game.RoomID,
		"game_id": game.ID,
	}).Info("game settled")
}

// GameStateForUser returns the member's public+private snapshot of one
// game.
func (r *Registry) GameStateForUser(gameID string, userID int64) (GameStateView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	game, seat, err := r.gameSeat(gameID, userID)
	if err != nil {
		return GameStateView{}, err
	}
	return GameStateView{
		GameID:       game.ID,
		RoomID:       game.RoomID,
		SelfSeat:     seat,
		PublicState:  engine.PublicStateOf(&game.state),
		PrivateState: engine.PrivateStateOf(&game.state, seat),
		LegalActions: engine.LegalActionsFor(&game.state, seat),
	}, nil
}

// GameSettlementForUser returns the finished game's settlement. A game
// that has not settled yet yields ErrGameStateConflict.
func (r *Registry) GameSettlementForUser(gameID string, userID int64) (SettlementView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	game, _, err := r.gameSeat(gameID, userID)
	if err != nil {
		return SettlementView{}, err
	}
	if game.settlement == nil {
		return SettlementView{}, fmt.Errorf("%w: game %s has not settled", ErrGameStateConflict, gameID)
	}
	return SettlementView{
		GameID:     game.ID,
		RoomID:     game.RoomID,
		Settlement: *game.settlement,
	}, nil
}

// GameRoomID maps a game id to its room.
func (r *Registry) GameRoomID(gameID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	game, ok := r.games[gameID]
	if !ok {
		return 0, fmt.Errorf("%w: game %s", ErrGameNotFound, gameID)
	}
	return game.RoomID, nil
}

// gameSeat resolves a game and the seat the user occupies in it. Must
// be called with the registry lock held.
func (r *Registry) gameSeat(gameID string, userID int64) (*Game, engine.Seat, error) {
	game, ok := r.games[gameID]
	if !ok {
		return nil, engine.NoSeat, fmt.Errorf("%w: game %s", ErrGameNotFound, gameID)
	}
	for seat, id := range game.seatUsers {
		if id == userID {
			return game, engine.Seat(seat), nil
		}
	}
	return nil, engine.NoSeat, fmt.Errorf("%w: user %d in game %s", ErrGameForbidden, userID, gameID)
}

func (r *Registry) logGameState(game *Game) {
	if game.logger == nil {
		return
	}
	if err := game.logger.WriteState(&game.state); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"game_id": game.ID,
			"version": game.state.Version,
		}).Warn("failed to write state snapshot")
	}
}

func (r *Registry) logGameAction(game *Game, version int, seat engine.Seat, legal engine.LegalActions, actionIdx int, coverList engine.CardCounts) {
	if game.logger == nil {
		return
	}
	record := gamelog.ActionRecord{
		Version:      version,
		Seat:         seat,
		LegalActions: legal.Actions,
		TakenAction: gamelog.TakenAction{
			ActionIdx:  actionIdx,
			ActionType: legal.Actions[actionIdx].Type,
			CoverList:  coverList,
		},
	}
	if err := game.logger.AppendAction(record); err != nil {
		r.log.WithError(err).WithField("game_id", game.ID).Warn("failed to append action record")
	}
}

func (r *Registry) publishAction(game *Game, version int, seat engine.Seat, legal engine.LegalActions, actionIdx int, coverList engine.CardCounts) {
	r.history.Publish(history.ActionRecord{
		GameID:     game.ID,
		RoomID:     game.RoomID,
		Version:    version,
		Seat:       seat,
		ActionIdx:  actionIdx,
		ActionType: legal.Actions[actionIdx].Type,
		CoverList:  coverList,
	})
}

// storeGameResult persists the finished game. Storage failures are
// logged and swallowed: the in-memory settlement already happened and
// must not be rolled back.
func (r *Registry) storeGameResult(game *Game, settlement engine.Settlement) {
	if r.db == nil {
		return
	}
	payload, err := json.Marshal(settlement)
	if err != nil {
		r.log.WithError(err).WithField("game_id", game.ID).Error("failed to encode settlement")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = r.db.InsertGameResult(ctx, database.GameResult{
		GameID:     game.ID,
		RoomID:     game.RoomID,
		Seed:       game.Seed,
		Settlement: string(payload),
	})
	if err != nil {
		r.log.WithError(err).WithField("game_id", game.ID).Error("failed to store game result")
	}
}
