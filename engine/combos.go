package engine

import "sort"

// Combo is an ephemeral, derived grouping of cards eligible to be
// played in a round. It is never stored in GameState.
type Combo struct {
	Kind  int        `json:"kind"`
	Power int        `json:"power"`
	Cards CardCounts `json:"cards"`
}

const (
	KindSingle = 1
	KindPair   = 2
	KindTriple = 3
)

// AnyKind disables kind filtering in EnumerateCombos.
const AnyKind = 0

// EnumerateCombos returns every playable combo in hand, optionally
// filtered to one exact kind, in a deterministic order: kind ascending,
// power descending, card signature ascending. The ordering is
// load-bearing: it defines the stable action_idx contract seen by
// callers across repeated queries on the same state.
func EnumerateCombos(hand CardCounts, roundKind int) []Combo {
	combos := make([]Combo, 0, len(hand)*2)
	combos = append(combos, singleCombos(hand)...)
	combos = append(combos, pairCombos(hand)...)
	combos = append(combos, tripleCombos(hand)...)

	if roundKind != AnyKind {
		filtered := combos[:0]
		for _, combo := range combos {
			if combo.Kind == roundKind {
				filtered = append(filtered, combo)
			}
		}
		combos = filtered
	}

	sort.SliceStable(combos, func(i, j int) bool {
		return comboLess(combos[i], combos[j])
	})
	return combos
}

func comboLess(a, b Combo) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Power != b.Power {
		return a.Power > b.Power
	}
	return compareSignatures(a.Cards.sortedEntries(), b.Cards.sortedEntries()) < 0
}

func singleCombos(hand CardCounts) []Combo {
	combos := make([]Combo, 0, len(hand))
	for t, count := range hand {
		if count <= 0 {
			continue
		}
		combos = append(combos, Combo{
			Kind:  KindSingle,
			Power: cardPower[t],
			Cards: CardCounts{t: 1},
		})
	}
	return combos
}

func pairCombos(hand CardCounts) []Combo {
	var combos []Combo
	for t, count := range hand {
		if count >= 2 {
			combos = append(combos, Combo{
				Kind:  KindPair,
				Power: pairPower(t),
				Cards: CardCounts{t: 2},
			})
		}
	}
	if hand[RedGou] >= 1 && hand[BlackGou] >= 1 {
		combos = append(combos, Combo{
			Kind:  KindPair,
			Power: pairPowerDog,
			Cards: CardCounts{RedGou: 1, BlackGou: 1},
		})
	}
	return combos
}

func tripleCombos(hand CardCounts) []Combo {
	var combos []Combo
	if hand[RedNiu] >= 3 {
		combos = append(combos, Combo{
			Kind:  KindTriple,
			Power: triplePowerRed,
			Cards: CardCounts{RedNiu: 3},
		})
	}
	if hand[BlackNiu] >= 3 {
		combos = append(combos, Combo{
			Kind:  KindTriple,
			Power: triplePowerBlack,
			Cards: CardCounts{BlackNiu: 3},
		})
	}
	return combos
}
