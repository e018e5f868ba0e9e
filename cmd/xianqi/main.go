// Command xianqi runs one local hot-seat game in the terminal, rotating
// the prompt between seats. Useful for engine debugging: the seed is
// echoed so any run can be replayed exactly.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tontyoutoure/xianqi/engine"
)

type playCmd struct {
	Seed *int64 `help:"Seed for a reproducible deal. Defaults to current time."`
}

type cli struct {
	Play playCmd `cmd:"" default:"1" help:"Run one local game."`
}

func main() {
	var args cli
	ctx := kong.Parse(&args,
		kong.Name("xianqi"),
		kong.Description("Local runner for the Xianqi rules engine."),
	)

	switch ctx.Command() {
	case "play":
		runner := newRunner(args.Play.Seed, os.Stdin, os.Stdout)
		ctx.Exit(runner.run())
	default:
		ctx.Exit(1)
	}
}

type runner struct {
	seed  int64
	state engine.GameState
	in    *bufio.Scanner
	out   io.Writer
}

func newRunner(seed *int64, in io.Reader, out io.Writer) *runner {
	actual := time.Now().UnixNano()
	if seed != nil {
		actual = *seed
	}
	if actual < 0 {
		actual = -actual
	}
	return &runner{
		seed: actual,
		in:   bufio.NewScanner(in),
		out:  out,
	}
}

func (r *runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *runner) prompt(message string) (string, bool) {
	fmt.Fprint(r.out, message)
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

func (r *runner) run() int {
	r.printf("seed=%d", r.seed)
	r.printf("replay: xianqi play --seed %d", r.seed)
	r.state = engine.NewGame(r.seed)

	for {
		public := engine.PublicStateOf(&r.state)

		switch public.Phase {
		case engine.PhaseFinished:
			r.printf("game over.")
			return 0
		case engine.PhaseSettlement:
			r.renderPublic(public)
			settlement, err := r.state.Settle()
			if err != nil {
				r.emitError(err)
				return 1
			}
			r.renderSettlement(settlement)
			continue
		}

		seat, legal := r.actingSeat()
		if seat == engine.NoSeat {
			r.printf("no seat can act, stopping.")
			return 0
		}

		r.renderPublic(public)
		private := engine.PrivateStateOf(&r.state, seat)
		r.printf("")
		r.printf("=== Private State (seat%d) ===", seat)
		r.printf("hand: %s", formatCounts(private.Hand))
		r.printf("acting seat: seat%d", seat)

		coverOnly := len(legal.Actions) == 1 && legal.Actions[0].Type == engine.ActionCover
		actionIdx := 0
		if coverOnly {
			r.printf("cover is the only option, skipping action_idx.")
		} else {
			r.renderActions(legal.Actions)
			raw, ok := r.prompt("enter action_idx: ")
			if !ok {
				return 0
			}
			idx, err := strconv.Atoi(raw)
			if err != nil || idx < 0 || idx >= len(legal.Actions) {
				r.emitError(engine.ErrInvalidActionIndex)
				continue
			}
			actionIdx = idx
		}

		action := legal.Actions[actionIdx]
		if action.Type == engine.ActionCover {
			if !r.applyCover(actionIdx, action.RequiredCount, private.Hand, public.Version) {
				continue
			}
			continue
		}

		if err := r.state.ApplyAction(actionIdx, nil, public.Version); err != nil {
			r.emitError(err)
		}
	}
}

// actingSeat finds the seat with a non-empty legal-action list.
func (r *runner) actingSeat() (engine.Seat, engine.LegalActions) {
	for seat := engine.Seat(0); seat < engine.NumSeats; seat++ {
		legal := engine.LegalActionsFor(&r.state, seat)
		if len(legal.Actions) > 0 {
			return seat, legal
		}
	}
	return engine.NoSeat, engine.LegalActions{}
}

// applyCover runs the cover sub-prompt: the hand is expanded to an
// indexed card list and the player types an index string like "01".
// An invalid cover list reprompts; any other engine error aborts the
// attempt so a fresh frame is rendered.
func (r *runner) applyCover(actionIdx, requiredCount int, hand engine.CardCounts, version int) bool {
	cards := expandHand(hand)
	r.printf("=== Cover Cards ===")
	for idx, card := range cards {
		r.printf("%d. %s", idx, card)
	}

	example := "0"
	if requiredCount >= 2 {
		example = "01"
	}
	for {
		raw, ok := r.prompt(fmt.Sprintf("enter cover indexes (pick %d, e.g. %s): ", requiredCount, example))
		if !ok {
			return false
		}
		coverList, err := parseCoverIndexes(raw, requiredCount, cards)
		if err != nil {
			r.emitError(err)
			continue
		}

		err = r.state.ApplyAction(actionIdx, coverList, version)
		if err == nil {
			return true
		}
		r.emitError(err)
		if errors.Is(err, engine.ErrInvalidCoverList) {
			continue
		}
		return false
	}
}

func (r *runner) renderPublic(public engine.PublicState) {
	r.printf("=== Public State ===")
	r.printf("version: %d", public.Version)
	r.printf("phase: %s", public.Phase)
	r.printf("current_seat: %d", public.Turn.CurrentSeat)
	for _, player := range public.Players {
		r.printf("seat%d: hand_count=%d, captured_pillar_count=%d",
			player.Seat, player.HandCount, player.CapturedPillarCount)
	}
}

func (r *runner) renderActions(actions []engine.Action) {
	r.printf("=== Legal Actions ===")
	for idx, action := range actions {
		switch action.Type {
		case engine.ActionPlay:
			r.printf("action_idx=%d type=PLAY payload_cards=%s power=%d",
				idx, formatCounts(action.PayloadCards), action.Power)
		case engine.ActionCover:
			r.printf("action_idx=%d type=COVER required_count=%d", idx, action.RequiredCount)
		default:
			r.printf("action_idx=%d type=%s", idx, action.Type)
		}
	}
}

func (r *runner) renderSettlement(settlement engine.Settlement) {
	total := 0
	r.printf("=== Settlement ===")
	for _, row := range settlement.ChipDeltaBySeat {
		r.printf("seat%d: delta=%d delta_enough=%d delta_reveal=%d delta_ceramic=%d",
			row.Seat, row.Delta, row.DeltaEnough, row.DeltaReveal, row.DeltaCeramic)
		total += row.Delta
	}
	r.printf("invariant: sum(delta)=%d", total)
}

// emitError prints engine error codes bare so a transcript reads the
// same as the wire protocol.
func (r *runner) emitError(err error) {
	message := err.Error()
	if strings.HasPrefix(message, "ENGINE_") {
		code, _, _ := strings.Cut(message, ":")
		r.printf("error code: %s", code)
		return
	}
	r.printf("%s", message)
}

func formatCounts(counts engine.CardCounts) string {
	if len(counts) == 0 {
		return "{}"
	}
	types := make([]string, 0, len(counts))
	for card := range counts {
		types = append(types, string(card))
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, card := range types {
		parts = append(parts, fmt.Sprintf("%s:%d", card, counts[engine.CardType(card)]))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// expandHand flattens a hand into one entry per physical card, sorted
// by card type so indexes are stable.
func expandHand(hand engine.CardCounts) []engine.CardType {
	types := make([]engine.CardType, 0, len(hand))
	for card, count := range hand {
		if count > 0 {
			types = append(types, card)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var cards []engine.CardType
	for _, card := range types {
		for i := 0; i < hand[card]; i++ {
			cards = append(cards, card)
		}
	}
	return cards
}

func parseCoverIndexes(raw string, requiredCount int, cards []engine.CardType) (engine.CardCounts, error) {
	text := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if text == "" {
		return nil, fmt.Errorf("cover indexes must not be empty")
	}
	if len(text) != requiredCount {
		return nil, fmt.Errorf("need exactly %d cover indexes", requiredCount)
	}

	seen := map[int]bool{}
	coverList := engine.CardCounts{}
	for _, ch := range text {
		if ch < '0' || ch > '9' {
			return nil, fmt.Errorf("cover indexes must be a digit string, e.g. 01")
		}
		idx := int(ch - '0')
		if seen[idx] {
			return nil, fmt.Errorf("cover indexes must not repeat")
		}
		if idx >= len(cards) {
			return nil, fmt.Errorf("cover index %d is out of range", idx)
		}
		seen[idx] = true
		coverList[cards[idx]]++
	}
	return coverList, nil
}
