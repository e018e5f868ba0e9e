package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// helper: an in_round state with one open play and one covered play.
func makeMaskingState() GameState {
	g := GameState{
		Version: 9,
		Phase:   PhaseInRound,
		Turn: Turn{
			CurrentSeat: 0,
			RoundIndex:  2,
			RoundKind:   2,
			LastCombo:   &ComboRef{Power: 19, Cards: CardCounts{RedShi: 2}, OwnerSeat: 1},
			Plays: []Play{
				{Seat: 1, Power: 19, Cards: CardCounts{RedShi: 2}},
				{Seat: 2, Power: CoveredPower, Cards: CardCounts{BlackChe: 1, RedNiu: 1}},
			},
		},
		PillarGroups: []PillarGroup{
			{
				RoundIndex: 0,
				WinnerSeat: 0,
				RoundKind:  1,
				Plays: []Play{
					{Seat: 0, Power: 9, Cards: CardCounts{RedShi: 1}},
					{Seat: 1, Power: CoveredPower, Cards: CardCounts{BlackNiu: 1}},
					{Seat: 2, Power: CoveredPower, Cards: CardCounts{RedMa: 1}},
				},
			},
		},
		Reveal: RevealState{
			BucklerSeat:        NoSeat,
			ActiveRevealerSeat: NoSeat,
			PendingOrder:       []Seat{},
			Relations:          []RevealRelation{},
		},
	}
	g.Players[0] = Player{Seat: 0, Hand: CardCounts{RedXiang: 2, BlackMa: 1}}
	g.Players[1] = Player{Seat: 1, Hand: CardCounts{BlackShi: 1}}
	g.Players[2] = Player{Seat: 2, Hand: CardCounts{RedNiu: 2}}
	return g
}

func TestPublicStateMasksHands(t *testing.T) {
	g := makeMaskingState()
	public := PublicStateOf(&g)

	wantCounts := [NumSeats]int{3, 1, 2}
	for seat, player := range public.Players {
		if player.HandCount != wantCounts[seat] {
			t.Errorf("seat %d hand_count = %d, want %d", seat, player.HandCount, wantCounts[seat])
		}
	}

	// The serialized public view must never contain a hand.
	data, err := json.Marshal(public)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `"hand"`) {
		t.Error("public view leaks a hand field")
	}
}

func TestPublicStateMasksCoveredPlays(t *testing.T) {
	g := makeMaskingState()
	public := PublicStateOf(&g)

	covered := public.Turn.Plays[1]
	if covered.Power != CoveredPower {
		t.Fatalf("expected covered play, got %+v", covered)
	}
	if covered.CoveredCount != 2 {
		t.Errorf("covered_count = %d, want 2", covered.CoveredCount)
	}
	if len(covered.Cards) != 0 {
		t.Errorf("covered play must not expose cards, got %v", covered.Cards)
	}

	open := public.Turn.Plays[0]
	if !reflect.DeepEqual(open.Cards, CardCounts{RedShi: 2}) || open.CoveredCount != 0 {
		t.Errorf("open play should keep its cards, got %+v", open)
	}

	for _, play := range public.PillarGroups[0].Plays {
		if play.Power == CoveredPower && len(play.Cards) != 0 {
			t.Errorf("covered group play leaks cards: %+v", play)
		}
	}
}

func TestPublicStateDerivesCapturedPillarCount(t *testing.T) {
	g := makeMaskingState()
	public := PublicStateOf(&g)

	if public.Players[0].CapturedPillarCount != 1 {
		t.Errorf("seat 0 captured = %d, want 1", public.Players[0].CapturedPillarCount)
	}
	if public.Players[1].CapturedPillarCount != 0 || public.Players[2].CapturedPillarCount != 0 {
		t.Errorf("seats 1/2 should have no pillars, got %+v", public.Players)
	}
}

func TestPrivateStateAggregatesOwnCoveredCards(t *testing.T) {
	g := makeMaskingState()

	private2 := PrivateStateOf(&g, 2)
	wantCovered := CardCounts{BlackChe: 1, RedNiu: 1, RedMa: 1}
	if !reflect.DeepEqual(private2.Covered, wantCovered) {
		t.Errorf("seat 2 covered = %v, want %v", private2.Covered, wantCovered)
	}
	if !reflect.DeepEqual(private2.Hand, CardCounts{RedNiu: 2}) {
		t.Errorf("seat 2 hand = %v", private2.Hand)
	}

	private0 := PrivateStateOf(&g, 0)
	if len(private0.Covered) != 0 {
		t.Errorf("seat 0 never covered, got %v", private0.Covered)
	}
}

func TestPrivateStateDoesNotAliasHand(t *testing.T) {
	g := makeMaskingState()
	private := PrivateStateOf(&g, 0)

	private.Hand[RedXiang] = 99
	if g.Players[0].Hand[RedXiang] != 2 {
		t.Error("private view must be a copy, not an alias")
	}
}
