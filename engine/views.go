package engine

// PublicPlayer is one seat as everyone may see it: the hand is masked
// to a count, and the captured pillar count is derived on projection.
type PublicPlayer struct {
	Seat                int `json:"seat"`
	HandCount           int `json:"hand_count"`
	CapturedPillarCount int `json:"captured_pillar_count"`
}

// PublicPlay is a play as everyone may see it. Covered plays expose
// only how many cards went face-down.
type PublicPlay struct {
	Seat         Seat       `json:"seat"`
	Power        int        `json:"power"`
	Cards        CardCounts `json:"cards,omitempty"`
	CoveredCount int        `json:"covered_count,omitempty"`
}

// PublicTurn mirrors Turn with plays projected.
type PublicTurn struct {
	CurrentSeat Seat         `json:"current_seat"`
	RoundIndex  int          `json:"round_index"`
	RoundKind   int          `json:"round_kind"`
	LastCombo   *ComboRef    `json:"last_combo"`
	Plays       []PublicPlay `json:"plays"`
}

// PublicPillarGroup mirrors PillarGroup with plays projected.
type PublicPillarGroup struct {
	RoundIndex int          `json:"round_index"`
	WinnerSeat Seat         `json:"winner_seat"`
	RoundKind  int          `json:"round_kind"`
	Plays      []PublicPlay `json:"plays"`
}

// PublicState is the projection of the state every seat may see. It
// never contains hand contents or the cards behind a covered play.
type PublicState struct {
	Version      int                     `json:"version"`
	Phase        Phase                   `json:"phase"`
	Players      [NumSeats]PublicPlayer  `json:"players"`
	Turn         PublicTurn              `json:"turn"`
	PillarGroups []PublicPillarGroup     `json:"pillar_groups"`
	Reveal       RevealState             `json:"reveal"`
}

// PrivateState is the projection one seat may see of itself: the exact
// hand plus the aggregate of what it has covered so far. Covering is
// blind, so this is how a seat eventually discovers what it gave up.
type PrivateState struct {
	Hand    CardCounts `json:"hand"`
	Covered CardCounts `json:"covered"`
}

// PublicStateOf projects the state to its public view.
func PublicStateOf(g *GameState) PublicState {
	counts := g.CapturedPillarCounts()

	out := PublicState{
		Version: g.Version,
		Phase:   g.Phase,
		Turn: PublicTurn{
			CurrentSeat: g.Turn.CurrentSeat,
			RoundIndex:  g.Turn.RoundIndex,
			RoundKind:   g.Turn.RoundKind,
			Plays:       projectPlays(g.Turn.Plays),
		},
		PillarGroups: make([]PublicPillarGroup, 0, len(g.PillarGroups)),
		Reveal: RevealState{
			BucklerSeat:        g.Reveal.BucklerSeat,
			ActiveRevealerSeat: g.Reveal.ActiveRevealerSeat,
			PendingOrder:       append([]Seat{}, g.Reveal.PendingOrder...),
			Relations:          append([]RevealRelation{}, g.Reveal.Relations...),
		},
	}
	if g.Turn.LastCombo != nil {
		combo := *g.Turn.LastCombo
		combo.Cards = g.Turn.LastCombo.Cards.Clone()
		out.Turn.LastCombo = &combo
	}

	for seat, player := range g.Players {
		out.Players[seat] = PublicPlayer{
			Seat:                player.Seat,
			HandCount:           player.Hand.Total(),
			CapturedPillarCount: counts[seat],
		}
	}
	for _, group := range g.PillarGroups {
		out.PillarGroups = append(out.PillarGroups, PublicPillarGroup{
			RoundIndex: group.RoundIndex,
			WinnerSeat: group.WinnerSeat,
			RoundKind:  group.RoundKind,
			Plays:      projectPlays(group.Plays),
		})
	}
	return out
}

func projectPlays(plays []Play) []PublicPlay {
	out := make([]PublicPlay, 0, len(plays))
	for _, play := range plays {
		if play.Power == CoveredPower {
			out = append(out, PublicPlay{
				Seat:         play.Seat,
				Power:        play.Power,
				CoveredCount: play.Cards.Total(),
			})
			continue
		}
		out = append(out, PublicPlay{
			Seat:  play.Seat,
			Power: play.Power,
			Cards: play.Cards.Clone(),
		})
	}
	return out
}

// PrivateStateOf projects the state to seat's private view.
func PrivateStateOf(g *GameState, seat Seat) PrivateState {
	covered := CardCounts{}
	accumulateCovered(covered, g.Turn.Plays, seat)
	for _, group := range g.PillarGroups {
		accumulateCovered(covered, group.Plays, seat)
	}
	return PrivateState{
		Hand:    g.Hand(seat).Clone(),
		Covered: covered,
	}
}

func accumulateCovered(covered CardCounts, plays []Play, seat Seat) {
	for _, play := range plays {
		if play.Seat != seat || play.Power != CoveredPower {
			continue
		}
		covered.add(play.Cards)
	}
}
