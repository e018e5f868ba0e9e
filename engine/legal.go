package engine

import "encoding/json"

// ActionType discriminates legal actions.
type ActionType string

const (
	ActionPlay       ActionType = "PLAY"
	ActionCover      ActionType = "COVER"
	ActionBuckle     ActionType = "BUCKLE"
	ActionPassBuckle ActionType = "PASS_BUCKLE"
	ActionReveal     ActionType = "REVEAL"
	ActionPassReveal ActionType = "PASS_REVEAL"
)

// Action is one entry of a legal-action list. PLAY actions carry the
// combo payload and power; COVER actions carry the required card count.
type Action struct {
	Type          ActionType
	PayloadCards  CardCounts
	Power         int
	RequiredCount int
}

// MarshalJSON emits only the fields relevant to the action type, so a
// bare BUCKLE does not leak zero-valued combo fields.
func (a Action) MarshalJSON() ([]byte, error) {
	switch a.Type {
	case ActionPlay:
		return json.Marshal(struct {
			Type         ActionType `json:"type"`
			PayloadCards CardCounts `json:"payload_cards"`
			Power        int        `json:"power"`
		}{a.Type, a.PayloadCards, a.Power})
	case ActionCover:
		return json.Marshal(struct {
			Type          ActionType `json:"type"`
			RequiredCount int        `json:"required_count"`
		}{a.Type, a.RequiredCount})
	default:
		return json.Marshal(struct {
			Type ActionType `json:"type"`
		}{a.Type})
	}
}

// LegalActions is the ordered action list offered to one seat.
type LegalActions struct {
	Seat    Seat     `json:"seat"`
	Actions []Action `json:"actions"`
}

// LegalActionsFor returns the ordered legal actions for seat. Seats
// other than the acting seat always receive an empty list, as do all
// seats once the game reaches settlement.
func LegalActionsFor(g *GameState, seat Seat) LegalActions {
	out := LegalActions{Seat: seat, Actions: []Action{}}

	if g.Phase == PhaseSettlement || g.Phase == PhaseFinished {
		return out
	}
	if actingSeat(g) != seat {
		return out
	}

	switch g.Phase {
	case PhaseBuckleFlow:
		if len(g.Reveal.PendingOrder) > 0 {
			out.Actions = []Action{
				{Type: ActionReveal},
				{Type: ActionPassReveal},
			}
			return out
		}
		out.Actions = []Action{
			{Type: ActionBuckle},
			{Type: ActionPassBuckle},
		}
		return out

	case PhaseInRound:
		hand := g.Hand(seat)
		if g.Turn.RoundKind == 0 {
			for _, combo := range EnumerateCombos(hand, AnyKind) {
				out.Actions = append(out.Actions, playAction(combo))
			}
			return out
		}

		lastPower := CoveredPower
		if g.Turn.LastCombo != nil {
			lastPower = g.Turn.LastCombo.Power
		}
		for _, combo := range EnumerateCombos(hand, g.Turn.RoundKind) {
			if combo.Power > lastPower {
				out.Actions = append(out.Actions, playAction(combo))
			}
		}
		if len(out.Actions) == 0 {
			out.Actions = []Action{{Type: ActionCover, RequiredCount: g.Turn.RoundKind}}
		}
		return out
	}
	return out
}

// actingSeat returns the seat allowed to act: the head of the reveal
// queue during an unresolved buckle, otherwise the turn's current seat.
func actingSeat(g *GameState) Seat {
	if g.Phase == PhaseBuckleFlow && len(g.Reveal.PendingOrder) > 0 {
		return g.Reveal.PendingOrder[0]
	}
	return g.Turn.CurrentSeat
}

func playAction(combo Combo) Action {
	return Action{
		Type:         ActionPlay,
		PayloadCards: combo.Cards,
		Power:        combo.Power,
	}
}
