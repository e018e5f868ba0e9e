package engine

import "math/rand"

// NewGame deals a fresh game from the given seed. The shuffle and the
// first acting seat are fully determined by the seed. If any seat's
// opening hand contains no SHI or XIANG card (a "black" hand), the
// whole deal is rerolled with seed+1 until every hand has at least one.
func NewGame(seed int64) GameState {
	for {
		g, ok := tryDeal(seed)
		if ok {
			return g
		}
		seed++
	}
}

func tryDeal(seed int64) (GameState, bool) {
	rng := rand.New(rand.NewSource(seed))

	deck := make([]CardType, 0, DeckSize)
	for _, entry := range deckTemplate {
		for i := 0; i < entry.Count; i++ {
			deck = append(deck, entry.Type)
		}
	}
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	var hands [NumSeats]CardCounts
	for seat := range hands {
		hands[seat] = make(CardCounts, HandSize)
	}
	for i, card := range deck {
		hands[i%NumSeats][card]++
	}

	firstSeat := Seat(rng.Intn(NumSeats))

	for _, hand := range hands {
		if isBlackHand(hand) {
			return GameState{}, false
		}
	}

	g := GameState{
		Version: 1,
		Phase:   PhaseBuckleFlow,
		Turn: Turn{
			CurrentSeat: firstSeat,
			RoundIndex:  0,
			RoundKind:   0,
			LastCombo:   nil,
			Plays:       []Play{},
		},
		PillarGroups: []PillarGroup{},
		Reveal: RevealState{
			BucklerSeat:        NoSeat,
			ActiveRevealerSeat: NoSeat,
			PendingOrder:       []Seat{},
			Relations:          []RevealRelation{},
		},
	}
	for seat := range g.Players {
		g.Players[seat] = Player{Seat: seat, Hand: hands[seat]}
	}
	return g, true
}

func isBlackHand(hand CardCounts) bool {
	return hand[RedShi]+hand[BlackShi]+hand[RedXiang]+hand[BlackXiang] == 0
}
