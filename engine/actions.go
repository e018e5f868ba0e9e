package engine

import "fmt"

// NoVersionCheck skips the optimistic-concurrency guard in ApplyAction.
const NoVersionCheck = 0

// ApplyAction validates and applies one action by legal-action index.
// On success the state is mutated in place and its version incremented
// by exactly 1. On error the state is left byte-for-byte unchanged.
//
// clientVersion is an optimistic-concurrency guard: when not
// NoVersionCheck, the call fails unless it equals the current version.
// The engine only compares versions, it never retries.
func (g *GameState) ApplyAction(actionIdx int, coverList CardCounts, clientVersion int) error {
	if g.Phase == PhaseSettlement || g.Phase == PhaseFinished {
		return fmt.Errorf("%w: cannot act in %s phase", ErrInvalidPhase, g.Phase)
	}
	if clientVersion != NoVersionCheck && clientVersion != g.Version {
		return fmt.Errorf("%w: client has version %d, state has %d", ErrVersionConflict, clientVersion, g.Version)
	}

	seat := actingSeat(g)
	legal := LegalActionsFor(g, seat)
	if actionIdx < 0 || actionIdx >= len(legal.Actions) {
		return fmt.Errorf("%w: index %d of %d legal actions", ErrInvalidActionIndex, actionIdx, len(legal.Actions))
	}
	action := legal.Actions[actionIdx]

	if err := g.validateCoverList(seat, action, coverList); err != nil {
		return err
	}

	var err error
	switch action.Type {
	case ActionPlay:
		err = g.applyPlay(seat, action)
	case ActionCover:
		err = g.applyCover(seat, coverList)
	case ActionBuckle:
		err = g.applyBuckle(seat)
	case ActionPassBuckle:
		err = g.applyPassBuckle(seat)
	case ActionReveal:
		err = g.applyReveal(seat)
	case ActionPassReveal:
		err = g.applyPassReveal(seat)
	default:
		err = fmt.Errorf("%w: unrecognized action type %q", ErrInvalidAction, action.Type)
	}
	if err != nil {
		return err
	}

	g.Version++
	return nil
}

// validateCoverList enforces the cover payload contract before any
// mutation: non-COVER actions must not carry cards, and a COVER must
// supply exactly the required count from the actor's own hand.
func (g *GameState) validateCoverList(seat Seat, action Action, coverList CardCounts) error {
	if action.Type != ActionCover {
		if coverList.Total() != 0 || len(coverList) > 0 {
			return fmt.Errorf("%w: %s does not accept a cover list", ErrInvalidCoverList, action.Type)
		}
		return nil
	}

	for t, count := range coverList {
		if !IsValidCardType(t) || count <= 0 {
			return fmt.Errorf("%w: bad entry %s:%d", ErrInvalidCoverList, t, count)
		}
	}
	if coverList.Total() != action.RequiredCount {
		return fmt.Errorf("%w: need %d cards, got %d", ErrInvalidCoverList, action.RequiredCount, coverList.Total())
	}
	if !g.Hand(seat).Contains(coverList) {
		return fmt.Errorf("%w: cover exceeds hand", ErrInvalidCoverList)
	}
	return nil
}

func (g *GameState) applyPlay(seat Seat, action Action) error {
	kind := action.PayloadCards.Total()

	if g.Turn.RoundKind != 0 {
		if kind != g.Turn.RoundKind {
			return fmt.Errorf("%w: combo size %d does not match round kind %d", ErrInvalidAction, kind, g.Turn.RoundKind)
		}
		if g.Turn.LastCombo != nil && action.Power <= g.Turn.LastCombo.Power {
			return fmt.Errorf("%w: power %d does not beat %d", ErrInvalidAction, action.Power, g.Turn.LastCombo.Power)
		}
	}

	cards := action.PayloadCards.Clone()
	g.Hand(seat).subtract(cards)
	g.Turn.Plays = append(g.Turn.Plays, Play{Seat: seat, Power: action.Power, Cards: cards})
	g.Turn.LastCombo = &ComboRef{Power: action.Power, Cards: cards.Clone(), OwnerSeat: seat}

	if g.Turn.RoundKind == 0 {
		g.Turn.RoundKind = kind
	}
	g.advanceOrFinishRound(seat)
	return nil
}

func (g *GameState) applyCover(seat Seat, coverList CardCounts) error {
	cards := coverList.Clone()
	g.Hand(seat).subtract(cards)
	g.Turn.Plays = append(g.Turn.Plays, Play{Seat: seat, Power: CoveredPower, Cards: cards})
	g.advanceOrFinishRound(seat)
	return nil
}

func (g *GameState) advanceOrFinishRound(seat Seat) {
	if len(g.Turn.Plays) >= NumSeats {
		g.finishRound()
		return
	}
	g.Turn.CurrentSeat = nextSeat(seat)
}

// applyBuckle builds the reveal queue from the two opposing seats. A
// still-active revealer is asked first; otherwise seats are asked in
// counterclockwise order from the buckler. A buckle by the active
// revealer itself clears that status before the queue is built.
func (g *GameState) applyBuckle(seat Seat) error {
	if g.Reveal.ActiveRevealerSeat == seat {
		g.Reveal.ActiveRevealerSeat = NoSeat
	}

	first, second := nextSeat(seat), nextSeat(nextSeat(seat))
	order := []Seat{first, second}
	if active := g.Reveal.ActiveRevealerSeat; active == second {
		order = []Seat{second, first}
	}

	g.Reveal.BucklerSeat = seat
	g.Reveal.PendingOrder = order
	g.Turn.CurrentSeat = order[0]
	return nil
}

func (g *GameState) applyPassBuckle(seat Seat) error {
	g.Reveal.BucklerSeat = NoSeat
	g.Reveal.PendingOrder = []Seat{}
	g.startRound(seat)
	return nil
}

func (g *GameState) applyReveal(seat Seat) error {
	buckler := g.Reveal.BucklerSeat
	counts := g.CapturedPillarCounts()

	g.Reveal.Relations = append(g.Reveal.Relations, RevealRelation{
		RevealerSeat:         seat,
		BucklerSeat:          buckler,
		RevealerEnoughAtTime: counts[seat] >= EnoughCount,
	})
	g.Reveal.ActiveRevealerSeat = seat
	g.Reveal.BucklerSeat = NoSeat
	g.Reveal.PendingOrder = []Seat{}
	g.startRound(buckler)
	return nil
}

func (g *GameState) applyPassReveal(seat Seat) error {
	if g.Reveal.ActiveRevealerSeat == seat {
		g.Reveal.ActiveRevealerSeat = NoSeat
	}
	g.Reveal.PendingOrder = g.Reveal.PendingOrder[1:]

	if len(g.Reveal.PendingOrder) == 0 {
		g.Reveal.BucklerSeat = NoSeat
		g.Phase = PhaseSettlement
		return nil
	}
	g.Turn.CurrentSeat = g.Reveal.PendingOrder[0]
	return nil
}

// startRound enters in_round with a fresh first-hand turn led by seat.
func (g *GameState) startRound(seat Seat) {
	g.Phase = PhaseInRound
	g.Turn.CurrentSeat = seat
	g.Turn.RoundKind = 0
	g.Turn.LastCombo = nil
	g.Turn.Plays = []Play{}
}

// finishRound concludes a round of 3 plays: the pillar group is handed
// to the winning seat, reveal priority is dropped once the active
// revealer becomes enough, and the game either settles (any ceramic
// seat, a second seat turning enough, or all hands exhausted) or
// returns to buckle_flow led by the round winner.
func (g *GameState) finishRound() {
	winner := g.Turn.CurrentSeat
	if g.Turn.LastCombo != nil {
		winner = g.Turn.LastCombo.OwnerSeat
	}

	before := g.CapturedPillarCounts()
	g.PillarGroups = append(g.PillarGroups, PillarGroup{
		RoundIndex: g.Turn.RoundIndex,
		WinnerSeat: winner,
		RoundKind:  g.Turn.RoundKind,
		Plays:      g.Turn.Plays,
	})
	counts := g.CapturedPillarCounts()

	if active := g.Reveal.ActiveRevealerSeat; active != NoSeat {
		if before[active] < EnoughCount && counts[active] >= EnoughCount {
			g.Reveal.ActiveRevealerSeat = NoSeat
		}
	}

	hasCeramic := false
	enoughSeats := 0
	for _, count := range counts {
		if count >= CeramicCount {
			hasCeramic = true
		}
		if count >= EnoughCount {
			enoughSeats++
		}
	}

	handsEmpty := true
	for _, player := range g.Players {
		if player.Hand.Total() > 0 {
			handsEmpty = false
			break
		}
	}

	g.Turn.RoundIndex++
	g.Turn.RoundKind = 0
	g.Turn.LastCombo = nil
	g.Turn.Plays = []Play{}
	g.Turn.CurrentSeat = winner

	// Exhausted hands settle directly: another buckle flow could only
	// stall, there are no cards left to change the counts.
	if hasCeramic || enoughSeats == 2 || handsEmpty {
		g.Reveal.BucklerSeat = NoSeat
		g.Reveal.PendingOrder = []Seat{}
		g.Phase = PhaseSettlement
		return
	}

	g.Reveal.BucklerSeat = NoSeat
	g.Reveal.PendingOrder = []Seat{}
	g.Phase = PhaseBuckleFlow
}
