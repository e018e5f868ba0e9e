package main

import (
	"strings"
	"testing"

	"github.com/tontyoutoure/xianqi/engine"
)

func TestRunEchoesSeedAndReplayHint(t *testing.T) {
	seed := int64(12345)
	var out strings.Builder

	// EOF on the first prompt ends the run cleanly.
	runner := newRunner(&seed, strings.NewReader(""), &out)
	if code := runner.run(); code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}

	text := out.String()
	if !strings.HasPrefix(text, "seed=12345\n") {
		t.Errorf("output does not start with seed echo: %q", text[:min(len(text), 40)])
	}
	if !strings.Contains(text, "replay: xianqi play --seed 12345") {
		t.Error("missing replay hint")
	}
	if !strings.Contains(text, "=== Legal Actions ===") {
		t.Error("missing legal action list")
	}
}

func TestNewRunnerNormalizesNegativeSeed(t *testing.T) {
	seed := int64(-7)
	runner := newRunner(&seed, strings.NewReader(""), &strings.Builder{})
	if runner.seed != 7 {
		t.Fatalf("seed = %d, want 7", runner.seed)
	}
}

func TestExpandHandStableOrder(t *testing.T) {
	hand := engine.CardCounts{
		engine.RedShi:   2,
		engine.BlackNiu: 1,
		engine.RedGou:   0,
	}
	cards := expandHand(hand)
	want := []engine.CardType{engine.BlackNiu, engine.RedShi, engine.RedShi}
	if len(cards) != len(want) {
		t.Fatalf("expanded %d cards, want %d", len(cards), len(want))
	}
	for i := range want {
		if cards[i] != want[i] {
			t.Errorf("cards[%d] = %s, want %s", i, cards[i], want[i])
		}
	}
}

func TestParseCoverIndexes(t *testing.T) {
	cards := []engine.CardType{engine.BlackNiu, engine.RedShi, engine.RedShi}

	coverList, err := parseCoverIndexes("12", 2, cards)
	if err != nil {
		t.Fatalf("parseCoverIndexes: %v", err)
	}
	if coverList[engine.RedShi] != 2 {
		t.Errorf("coverList = %v, want 2x R_SHI", coverList)
	}

	for _, raw := range []string{"", "1", "11", "19", "ab"} {
		if _, err := parseCoverIndexes(raw, 2, cards); err == nil {
			t.Errorf("parseCoverIndexes(%q) accepted invalid input", raw)
		}
	}
}

func TestFormatCountsSorted(t *testing.T) {
	got := formatCounts(engine.CardCounts{engine.RedShi: 2, engine.BlackGou: 1})
	if got != "{ B_GOU:1, R_SHI:2 }" {
		t.Errorf("formatCounts = %q", got)
	}
	if formatCounts(nil) != "{}" {
		t.Error("empty hand should render {}")
	}
}
