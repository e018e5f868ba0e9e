// Package engine implements the Xianqi card game rules.
//
// The package is a pure rules core: every operation is a synchronous
// function over an explicit GameState value with no I/O, no locks and
// no knowledge of player identity beyond seat numbers 0-2. Concurrency
// control belongs to the caller, guarded by the state's version field.
package engine

const (
	NumSeats    = 3
	HandSize    = 8
	DeckSize    = 24
	EnoughCount = 3
	CeramicCount = 6
)

// CardType identifies one of the 12 colored card symbols.
type CardType string

const (
	RedShi    CardType = "R_SHI"
	BlackShi  CardType = "B_SHI"
	RedXiang  CardType = "R_XIANG"
	BlackXiang CardType = "B_XIANG"
	RedMa     CardType = "R_MA"
	BlackMa   CardType = "B_MA"
	RedChe    CardType = "R_CHE"
	BlackChe  CardType = "B_CHE"
	RedGou    CardType = "R_GOU"
	BlackGou  CardType = "B_GOU"
	RedNiu    CardType = "R_NIU"
	BlackNiu  CardType = "B_NIU"
)

// deckTemplate is the fixed 24-card deck composition.
var deckTemplate = []struct {
	Type  CardType
	Count int
}{
	{RedShi, 2},
	{BlackShi, 2},
	{RedXiang, 2},
	{BlackXiang, 2},
	{RedMa, 2},
	{BlackMa, 2},
	{RedChe, 2},
	{BlackChe, 2},
	{RedGou, 1},
	{BlackGou, 1},
	{RedNiu, 3},
	{BlackNiu, 3},
}

// cardPower ranks singles low to high. GOU and CHE of the same color tie.
var cardPower = map[CardType]int{
	RedShi:     9,
	BlackShi:   8,
	RedXiang:   7,
	BlackXiang: 6,
	RedMa:      5,
	BlackMa:    4,
	RedChe:     3,
	BlackChe:   2,
	RedGou:     3,
	BlackGou:   2,
	RedNiu:     1,
	BlackNiu:   0,
}

const (
	pairPowerRedShi   = 19
	pairPowerBlackShi = 18
	pairPowerDog      = 19 // R_GOU + B_GOU, ties the red SHI pair
	triplePowerRed    = 11
	triplePowerBlack  = 10
)

// pairPower returns the power of a same-type pair.
func pairPower(t CardType) int {
	switch t {
	case RedShi:
		return pairPowerRedShi
	case BlackShi:
		return pairPowerBlackShi
	default:
		return cardPower[t]
	}
}

// IsValidCardType reports whether t names a card in the deck.
func IsValidCardType(t CardType) bool {
	_, ok := cardPower[t]
	return ok
}

// CardCounts maps card types to non-negative counts. It is the wire
// shape for hands, play payloads and cover lists.
type CardCounts map[CardType]int

// Total returns the number of cards in the map.
func (c CardCounts) Total() int {
	n := 0
	for _, count := range c {
		n += count
	}
	return n
}

// Clone returns a deep copy, dropping zero and negative entries.
func (c CardCounts) Clone() CardCounts {
	out := make(CardCounts, len(c))
	for t, count := range c {
		if count > 0 {
			out[t] = count
		}
	}
	return out
}

// Contains reports whether c holds at least the cards in other.
func (c CardCounts) Contains(other CardCounts) bool {
	for t, count := range other {
		if count > c[t] {
			return false
		}
	}
	return true
}

// subtract removes the cards in other from c. The caller must have
// checked Contains first.
func (c CardCounts) subtract(other CardCounts) {
	for t, count := range other {
		c[t] -= count
		if c[t] <= 0 {
			delete(c, t)
		}
	}
}

// add merges the cards in other into c.
func (c CardCounts) add(other CardCounts) {
	for t, count := range other {
		if count > 0 {
			c[t] += count
		}
	}
}

type cardEntry struct {
	Type  CardType
	Count int
}

// sortedEntries returns positive entries ordered by card type, the
// canonical signature used for deterministic combo ordering.
func (c CardCounts) sortedEntries() []cardEntry {
	entries := make([]cardEntry, 0, len(c))
	for t, count := range c {
		if count > 0 {
			entries = append(entries, cardEntry{Type: t, Count: count})
		}
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Type < entries[j-1].Type; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return entries
}

// compareSignatures orders two card signatures lexicographically by
// (type, count) pairs.
func compareSignatures(a, b []cardEntry) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].Type != b[i].Type {
			if a[i].Type < b[i].Type {
				return -1
			}
			return 1
		}
		if a[i].Count != b[i].Count {
			if a[i].Count < b[i].Count {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
