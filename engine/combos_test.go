package engine

import (
	"reflect"
	"testing"
)

func comboSignatures(combos []Combo) [][]cardEntry {
	sigs := make([][]cardEntry, len(combos))
	for i, combo := range combos {
		sigs[i] = combo.Cards.sortedEntries()
	}
	return sigs
}

func TestSinglePowersGouCheTie(t *testing.T) {
	if cardPower[RedGou] != cardPower[RedChe] {
		t.Errorf("R_GOU (%d) should tie R_CHE (%d)", cardPower[RedGou], cardPower[RedChe])
	}
	if cardPower[BlackGou] != cardPower[BlackChe] {
		t.Errorf("B_GOU (%d) should tie B_CHE (%d)", cardPower[BlackGou], cardPower[BlackChe])
	}
	if cardPower[BlackNiu] != 0 || cardPower[RedShi] != 9 {
		t.Errorf("single power range should be 0..9, got B_NIU=%d R_SHI=%d", cardPower[BlackNiu], cardPower[RedShi])
	}
}

func TestDogPairTiesRedShiPair(t *testing.T) {
	hand := CardCounts{RedGou: 1, BlackGou: 1, RedShi: 2}
	pairs := EnumerateCombos(hand, KindPair)

	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d: %v", len(pairs), pairs)
	}
	for _, combo := range pairs {
		if combo.Power != pairPowerRedShi {
			t.Errorf("pair %v should have power %d, got %d", combo.Cards, pairPowerRedShi, combo.Power)
		}
	}
}

func TestTripleOnlyNiu(t *testing.T) {
	hand := CardCounts{RedNiu: 3, BlackNiu: 3, RedShi: 2, RedMa: 2, BlackChe: 2}
	triples := EnumerateCombos(hand, KindTriple)

	if len(triples) != 2 {
		t.Fatalf("expected exactly the two NIU triples, got %v", triples)
	}
	if triples[0].Power != triplePowerRed || triples[1].Power != triplePowerBlack {
		t.Errorf("triples should be ordered R_NIU(11) then B_NIU(10), got %v", triples)
	}
}

func TestEnumerateCombosOrdering(t *testing.T) {
	hand := CardCounts{RedShi: 2, RedGou: 1, BlackGou: 1}
	combos := EnumerateCombos(hand, AnyKind)

	// Singles by power desc, then pairs by power desc with signature
	// breaking the R_SHI pair vs dog pair tie.
	want := []Combo{
		{Kind: 1, Power: 9, Cards: CardCounts{RedShi: 1}},
		{Kind: 1, Power: 3, Cards: CardCounts{RedGou: 1}},
		{Kind: 1, Power: 2, Cards: CardCounts{BlackGou: 1}},
		{Kind: 2, Power: 19, Cards: CardCounts{BlackGou: 1, RedGou: 1}},
		{Kind: 2, Power: 19, Cards: CardCounts{RedShi: 2}},
	}
	if !reflect.DeepEqual(combos, want) {
		t.Errorf("enumeration mismatch:\n got %v\nwant %v", combos, want)
	}
}

func TestEnumerateCombosStableAcrossCalls(t *testing.T) {
	hand := CardCounts{RedShi: 2, BlackShi: 1, RedXiang: 1, BlackChe: 1, RedNiu: 3}

	first := EnumerateCombos(hand, AnyKind)
	for i := 0; i < 10; i++ {
		again := EnumerateCombos(hand, AnyKind)
		if !reflect.DeepEqual(comboSignatures(first), comboSignatures(again)) {
			t.Fatalf("call %d returned a different ordering", i)
		}
	}
}

func TestEnumerateCombosKindFilter(t *testing.T) {
	hand := CardCounts{RedShi: 2, BlackMa: 2, RedNiu: 3}

	for kind := KindSingle; kind <= KindTriple; kind++ {
		for _, combo := range EnumerateCombos(hand, kind) {
			if combo.Kind != kind {
				t.Errorf("kind filter %d leaked combo %v", kind, combo)
			}
			if combo.Cards.Total() != kind {
				t.Errorf("combo %v card total should equal kind %d", combo, kind)
			}
		}
	}
}

func TestEnumerateCombosIgnoresZeroCounts(t *testing.T) {
	hand := CardCounts{RedShi: 0, BlackMa: 1}
	combos := EnumerateCombos(hand, AnyKind)

	if len(combos) != 1 {
		t.Fatalf("expected a single B_MA combo, got %v", combos)
	}
	if combos[0].Cards[BlackMa] != 1 {
		t.Errorf("expected B_MA single, got %v", combos[0])
	}
}
