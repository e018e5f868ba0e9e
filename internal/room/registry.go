// Package room keeps the in-memory room registry and the live game
// instances attached to rooms. Rooms are preset at startup; users join,
// ready up, and a game starts the moment all three seats are ready.
package room

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tontyoutoure/xianqi/engine"
	"github.com/tontyoutoure/xianqi/internal/database"
	"github.com/tontyoutoure/xianqi/internal/history"
)

const (
	// MaxMembers is the fixed seat count per room.
	MaxMembers = engine.NumSeats

	// DefaultChips is every member's starting stack on joining a room.
	DefaultChips = 20
)

var (
	ErrRoomNotFound = errors.New("room: not found")
	ErrRoomFull     = errors.New("room: full")
	ErrNotMember    = errors.New("room: user is not a member")
	ErrNotWaiting   = errors.New("room: not in waiting status")

	ErrGameNotFound      = errors.New("room: game not found")
	ErrGameForbidden     = errors.New("room: user is not a game member")
	ErrGameStateConflict = errors.New("room: game state conflict")
)

// Status is a room's lifecycle state.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
)

// Member is one seated user.
type Member struct {
	UserID    int64       `json:"user_id"`
	Username  string      `json:"username"`
	Seat      engine.Seat `json:"seat"`
	Ready     bool        `json:"ready"`
	Chips     int         `json:"chips"`
	joinedSeq int
}

// Room is the aggregate visible to the lobby and room APIs. OwnerID is
// zero while the room is empty; user ids from the database start at 1.
type Room struct {
	ID            int      `json:"room_id"`
	Status        Status   `json:"status"`
	OwnerID       int64    `json:"owner_id"`
	Members       []Member `json:"members"`
	CurrentGameID string   `json:"current_game_id,omitempty"`
}

// Options wires the registry's side channels. Every field is optional;
// a zero Options gives a registry that only manages rooms and games in
// memory.
type Options struct {
	DB        *database.DB
	History   *history.Publisher
	GameLogDir string
	Log        *logrus.Logger
	Now        func() time.Time
}

// Registry owns all rooms and games. One mutex guards everything: room
// mutations are rare and engine transitions are cheap, so finer locking
// buys nothing here.
type Registry struct {
	mu         sync.Mutex
	rooms      []*Room
	memberRoom map[int64]int
	games      map[string]*Game
	joinSeq    int

	db         *database.DB
	history    *history.Publisher
	gameLogDir string
	log        *logrus.Logger
	now        func() time.Time

	// OnRoomChanged and OnGameProgress fire after a successful
	// mutation, outside the registry lock. The server layer uses them
	// to push websocket frames.
	OnRoomChanged  func(roomID int)
	OnGameProgress func(roomID int, gameID string)
}

// NewRegistry creates roomCount empty rooms.
func NewRegistry(roomCount int, opts Options) *Registry {
	if opts.Log == nil {
		opts.Log = logrus.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rooms := make([]*Room, roomCount)
	for id := range rooms {
		rooms[id] = &Room{ID: id, Status: StatusWaiting, Members: []Member{}}
	}
	return &Registry{
		rooms:      rooms,
		memberRoom: make(map[int64]int),
		games:      make(map[string]*Game),
		db:         opts.DB,
		history:    opts.History,
		gameLogDir: opts.GameLogDir,
		log:        opts.Log,
		now:        opts.Now,
	}
}

// ListRooms returns snapshots of all rooms in id order.
func (r *Registry) ListRooms() []Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Room, len(r.rooms))
	for i, room := range r.rooms {
		out[i] = snapshotRoom(room)
	}
	return out
}

// GetRoom returns one room snapshot.
func (r *Registry) GetRoom(roomID int) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.room(roomID)
	if err != nil {
		return Room{}, err
	}
	return snapshotRoom(room), nil
}

// FindRoomByUser returns the room id the user currently occupies, or
// false if they are in no room.
func (r *Registry) FindRoomByUser(userID int64) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.memberRoom[userID]
	return roomID, ok
}

// Join seats a user in a room. Joining the current room is idempotent;
// joining a different room leaves the old one first.
func (r *Registry) Join(roomID int, userID int64, username string) (Room, error) {
	view, changed, err := r.joinLocked(roomID, userID, username)
	if err != nil {
		return Room{}, err
	}
	for _, id := range changed {
		r.roomChanged(id)
	}
	return view, nil
}

func (r *Registry) joinLocked(roomID int, userID int64, username string) (Room, []int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, err := r.room(roomID)
	if err != nil {
		return Room{}, nil, err
	}

	currentRoomID, inRoom := r.memberRoom[userID]
	if inRoom && currentRoomID == roomID {
		return snapshotRoom(target), nil, nil
	}
	if len(target.Members) >= MaxMembers {
		return Room{}, nil, fmt.Errorf("%w: room %d", ErrRoomFull, roomID)
	}

	changed := []int{roomID}
	if inRoom {
		r.removeMember(r.rooms[currentRoomID], userID)
		changed = append(changed, currentRoomID)
	}

	r.joinSeq++
	member := Member{
		UserID:    userID,
		Username:  username,
		Seat:      minAvailableSeat(target),
		Chips:     DefaultChips,
		joinedSeq: r.joinSeq,
	}
	target.Members = append(target.Members, member)
	sort.Slice(target.Members, func(i, j int) bool {
		return target.Members[i].Seat < target.Members[j].Seat
	})
	if target.OwnerID == 0 {
		target.OwnerID = userID
	}
	r.memberRoom[userID] = roomID
	return snapshotRoom(target), changed, nil
}

// Leave removes a user from a room. Leaving mid-game aborts the game
// and returns the room to waiting.
func (r *Registry) Leave(roomID int, userID int64) (Room, error) {
	view, err := r.leaveLocked(roomID, userID)
	if err != nil {
		return Room{}, err
	}
	r.roomChanged(roomID)
	return view, nil
}

func (r *Registry) leaveLocked(roomID int, userID int64) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.room(roomID)
	if err != nil {
		return Room{}, err
	}
	if !r.removeMember(room, userID) {
		return Room{}, fmt.Errorf("%w: user %d in room %d", ErrNotMember, userID, roomID)
	}
	return snapshotRoom(room), nil
}

// SetReady flips a member's ready flag. When the third ready arrives
// the room starts a game and flips to playing.
func (r *Registry) SetReady(roomID int, userID int64, ready bool) (Room, error) {
	view, startedGameID, err := r.setReadyLocked(roomID, userID, ready)
	if err != nil {
		return Room{}, err
	}
	r.roomChanged(roomID)
	if startedGameID != "" {
		r.gameProgress(roomID, startedGameID)
	}
	return view, nil
}

func (r *Registry) setReadyLocked(roomID int, userID int64, ready bool) (Room, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.room(roomID)
	if err != nil {
		return Room{}, "", err
	}
	if room.Status != StatusWaiting {
		return Room{}, "", fmt.Errorf("%w: room %d is %s", ErrNotWaiting, roomID, room.Status)
	}

	idx := memberIndex(room, userID)
	if idx < 0 {
		return Room{}, "", fmt.Errorf("%w: user %d in room %d", ErrNotMember, userID, roomID)
	}
	room.Members[idx].Ready = ready

	startedGameID := ""
	if allReady(room) {
		game := r.startGame(room)
		startedGameID = game.ID
	}
	return snapshotRoom(room), startedGameID, nil
}

// room must be called with the lock held.
func (r *Registry) room(roomID int) (*Room, error) {
	if roomID < 0 || roomID >= len(r.rooms) {
		return nil, fmt.Errorf("%w: room %d", ErrRoomNotFound, roomID)
	}
	return r.rooms[roomID], nil
}

// removeMember drops the user from the room, transfers ownership to
// the earliest-joined survivor and aborts any game in progress.
func (r *Registry) removeMember(room *Room, userID int64) bool {
	idx := memberIndex(room, userID)
	if idx < 0 {
		return false
	}
	room.Members = append(room.Members[:idx], room.Members[idx+1:]...)
	delete(r.memberRoom, userID)

	if room.OwnerID == userID {
		room.OwnerID = 0
		earliest := 0
		for _, member := range room.Members {
			if room.OwnerID == 0 || member.joinedSeq < earliest {
				room.OwnerID = member.UserID
				earliest = member.joinedSeq
			}
		}
	}

	if room.Status == StatusPlaying {
		// The aborted game must not stay addressable: a later action on
		// its id would mutate a room that has already moved on.
		delete(r.games, room.CurrentGameID)
		room.Status = StatusWaiting
		room.CurrentGameID = ""
		for i := range room.Members {
			room.Members[i].Ready = false
		}
	}
	return true
}

func (r *Registry) roomChanged(roomID int) {
	if r.OnRoomChanged != nil {
		r.OnRoomChanged(roomID)
	}
}

func (r *Registry) gameProgress(roomID int, gameID string) {
	if r.OnGameProgress != nil {
		r.OnGameProgress(roomID, gameID)
	}
}

func memberIndex(room *Room, userID int64) int {
	for i, member := range room.Members {
		if member.UserID == userID {
			return i
		}
	}
	return -1
}

func minAvailableSeat(room *Room) engine.Seat {
	used := [MaxMembers]bool{}
	for _, member := range room.Members {
		used[member.Seat] = true
	}
	for seat := engine.Seat(0); seat < MaxMembers; seat++ {
		if !used[seat] {
			return seat
		}
	}
	return engine.NoSeat
}

func allReady(room *Room) bool {
	if len(room.Members) != MaxMembers {
		return false
	}
	for _, member := range room.Members {
		if !member.Ready {
			return false
		}
	}
	return true
}

func snapshotRoom(room *Room) Room {
	out := *room
	out.Members = append([]Member(nil), room.Members...)
	return out
}
