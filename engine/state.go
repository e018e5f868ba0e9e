package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Phase is the game lifecycle phase. It is a closed set: legal-action
// generation and the reducer switch exhaustively over it.
type Phase string

const (
	PhaseBuckleFlow Phase = "buckle_flow"
	PhaseInRound    Phase = "in_round"
	PhaseSettlement Phase = "settlement"
	PhaseFinished   Phase = "finished"
)

// Seat is a player slot index (0-2), or NoSeat. Nullable seat fields
// encode NoSeat as JSON null.
type Seat int

const NoSeat Seat = -1

func (s Seat) valid() bool { return s >= 0 && s < NumSeats }

// MarshalJSON encodes NoSeat as null.
func (s Seat) MarshalJSON() ([]byte, error) {
	if s == NoSeat {
		return []byte("null"), nil
	}
	return json.Marshal(int(s))
}

// UnmarshalJSON decodes null as NoSeat.
func (s *Seat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = NoSeat
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Seat(v)
	return nil
}

// nextSeat returns the seat after s in counterclockwise order.
func nextSeat(s Seat) Seat { return (s + 1) % NumSeats }

// Player holds one seat's hand.
type Player struct {
	Seat int        `json:"seat"`
	Hand CardCounts `json:"hand"`
}

// ComboRef is a stored reference to the currently-winning play.
type ComboRef struct {
	Power     int        `json:"power"`
	Cards     CardCounts `json:"cards"`
	OwnerSeat Seat       `json:"owner_seat"`
}

// CoveredPower marks a play whose cards were discarded face-down
// without competing.
const CoveredPower = -1

// Play is one seat's contribution to a round.
type Play struct {
	Seat  Seat       `json:"seat"`
	Power int        `json:"power"`
	Cards CardCounts `json:"cards"`
}

// Turn tracks progress through the current round.
type Turn struct {
	CurrentSeat Seat      `json:"current_seat"`
	RoundIndex  int       `json:"round_index"`
	RoundKind   int       `json:"round_kind"`
	LastCombo   *ComboRef `json:"last_combo"`
	Plays       []Play    `json:"plays"`
}

// PillarGroup records one concluded round of 3 plays. A group
// contributes RoundKind pillars to its winner's captured count; the
// count is always recomputed from the groups, never cached.
type PillarGroup struct {
	RoundIndex int    `json:"round_index"`
	WinnerSeat Seat   `json:"winner_seat"`
	RoundKind  int    `json:"round_kind"`
	Plays      []Play `json:"plays"`
}

// RevealRelation is an append-only record of one completed REVEAL.
type RevealRelation struct {
	RevealerSeat         Seat `json:"revealer_seat"`
	BucklerSeat          Seat `json:"buckler_seat"`
	RevealerEnoughAtTime bool `json:"revealer_enough_at_time"`
}

// RevealState is the buckle/reveal sub-protocol state.
type RevealState struct {
	BucklerSeat        Seat             `json:"buckler_seat"`
	ActiveRevealerSeat Seat             `json:"active_revealer_seat"`
	PendingOrder       []Seat           `json:"pending_order"`
	Relations          []RevealRelation `json:"relations"`
}

// GameState is the single mutable aggregate. It is created by NewGame,
// mutated only by ApplyAction (version+1 per successful transition)
// and terminated by Settle.
type GameState struct {
	Version      int           `json:"version"`
	Phase        Phase         `json:"phase"`
	Players      [NumSeats]Player `json:"players"`
	Turn         Turn          `json:"turn"`
	PillarGroups []PillarGroup `json:"pillar_groups"`
	Reveal       RevealState   `json:"reveal"`
}

// Hand returns the hand owned by seat.
func (g *GameState) Hand(seat Seat) CardCounts {
	return g.Players[seat].Hand
}

// CapturedPillarCounts recomputes each seat's captured pillar count
// from the pillar groups. A group is worth its round kind.
func (g *GameState) CapturedPillarCounts() [NumSeats]int {
	var counts [NumSeats]int
	for _, group := range g.PillarGroups {
		if group.WinnerSeat.valid() {
			counts[group.WinnerSeat] += group.RoundKind
		}
	}
	return counts
}

// Clone returns a deep copy of the state.
func (g *GameState) Clone() GameState {
	out := *g
	for seat := range out.Players {
		out.Players[seat].Hand = g.Players[seat].Hand.Clone()
	}
	out.Turn.Plays = clonePlays(g.Turn.Plays)
	if g.Turn.LastCombo != nil {
		combo := *g.Turn.LastCombo
		combo.Cards = g.Turn.LastCombo.Cards.Clone()
		out.Turn.LastCombo = &combo
	}
	out.PillarGroups = make([]PillarGroup, len(g.PillarGroups))
	for i, group := range g.PillarGroups {
		out.PillarGroups[i] = group
		out.PillarGroups[i].Plays = clonePlays(group.Plays)
	}
	out.Reveal.PendingOrder = append([]Seat(nil), g.Reveal.PendingOrder...)
	out.Reveal.Relations = append([]RevealRelation(nil), g.Reveal.Relations...)
	return out
}

func clonePlays(plays []Play) []Play {
	out := make([]Play, len(plays))
	for i, play := range plays {
		out[i] = play
		out[i].Cards = play.Cards.Clone()
	}
	return out
}

// DumpState exports the complete internal state for persistence or
// reconnect. The output round-trips through LoadState.
func DumpState(g *GameState) ([]byte, error) {
	return json.Marshal(g)
}

// LoadState parses and validates a complete state snapshot. Any
// non-canonical shape (players not indexed by seat, negative card
// counts, legacy decision fields or cached pillar lists, malformed
// reveal sub-state) is rejected here, never deferred into gameplay.
func LoadState(data []byte) (GameState, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return GameState{}, fmt.Errorf("parse state: %w", err)
	}
	if _, ok := raw["decision"]; ok {
		return GameState{}, fmt.Errorf("state.decision is no longer supported")
	}

	var rawPlayers []json.RawMessage
	if err := json.Unmarshal(raw["players"], &rawPlayers); err != nil {
		return GameState{}, fmt.Errorf("parse state.players: %w", err)
	}
	if len(rawPlayers) != NumSeats {
		return GameState{}, fmt.Errorf("state.players must contain exactly %d players", NumSeats)
	}

	var g GameState
	if err := json.Unmarshal(data, &g); err != nil {
		return GameState{}, fmt.Errorf("parse state: %w", err)
	}

	for seat, player := range g.Players {
		if player.Seat != seat {
			return GameState{}, fmt.Errorf("state.players must be indexed by seat order")
		}
		if err := validateCardCounts(player.Hand, fmt.Sprintf("state.players[%d].hand", seat)); err != nil {
			return GameState{}, err
		}
		if g.Players[seat].Hand == nil {
			g.Players[seat].Hand = CardCounts{}
		}
	}

	if g.Turn.LastCombo != nil {
		if err := validateCardCounts(g.Turn.LastCombo.Cards, "state.turn.last_combo.cards"); err != nil {
			return GameState{}, err
		}
	}
	for i, play := range g.Turn.Plays {
		if err := validateCardCounts(play.Cards, fmt.Sprintf("state.turn.plays[%d].cards", i)); err != nil {
			return GameState{}, err
		}
	}

	if err := validatePillarGroups(raw["pillar_groups"], g.PillarGroups); err != nil {
		return GameState{}, err
	}
	if err := validateReveal(raw["reveal"], g.Reveal); err != nil {
		return GameState{}, err
	}
	return g, nil
}

func validateCardCounts(c CardCounts, path string) error {
	for t, count := range c {
		if t == "" {
			return fmt.Errorf("%s contains empty card type", path)
		}
		if count < 0 {
			return fmt.Errorf("%s contains negative card count", path)
		}
	}
	return nil
}

func validatePillarGroups(raw json.RawMessage, groups []PillarGroup) error {
	if len(raw) > 0 {
		var rawGroups []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rawGroups); err != nil {
			return fmt.Errorf("parse state.pillar_groups: %w", err)
		}
		for i, group := range rawGroups {
			if _, ok := group["pillars"]; ok {
				return fmt.Errorf("state.pillar_groups[%d].pillars is no longer supported", i)
			}
		}
	}
	for i, group := range groups {
		if !group.WinnerSeat.valid() {
			return fmt.Errorf("state.pillar_groups[%d].winner_seat must be seat index", i)
		}
		for j, play := range group.Plays {
			path := fmt.Sprintf("state.pillar_groups[%d].plays[%d].cards", i, j)
			if err := validateCardCounts(play.Cards, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateReveal(raw json.RawMessage, reveal RevealState) error {
	if len(raw) == 0 {
		return fmt.Errorf("state.reveal is required")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("parse state.reveal: %w", err)
	}
	for _, field := range []string{"buckler_seat", "active_revealer_seat", "pending_order", "relations"} {
		if _, ok := fields[field]; !ok {
			return fmt.Errorf("state.reveal.%s is required", field)
		}
	}

	if reveal.BucklerSeat != NoSeat && !reveal.BucklerSeat.valid() {
		return fmt.Errorf("state.reveal.buckler_seat must be null or seat index")
	}
	if reveal.ActiveRevealerSeat != NoSeat && !reveal.ActiveRevealerSeat.valid() {
		return fmt.Errorf("state.reveal.active_revealer_seat must be null or seat index")
	}

	if len(reveal.PendingOrder) > NumSeats-1 {
		return fmt.Errorf("state.reveal.pending_order must contain at most %d seats", NumSeats-1)
	}
	seen := map[Seat]bool{}
	for i, seat := range reveal.PendingOrder {
		if !seat.valid() {
			return fmt.Errorf("state.reveal.pending_order[%d] must be seat index", i)
		}
		if seen[seat] {
			return fmt.Errorf("state.reveal.pending_order must not contain duplicates")
		}
		seen[seat] = true
	}

	for i, relation := range reveal.Relations {
		if !relation.RevealerSeat.valid() {
			return fmt.Errorf("state.reveal.relations[%d].revealer_seat must be seat index", i)
		}
		if !relation.BucklerSeat.valid() {
			return fmt.Errorf("state.reveal.relations[%d].buckler_seat must be seat index", i)
		}
	}
	return nil
}
