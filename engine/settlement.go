package engine

import "fmt"

// SeatDelta is one seat's row of the settlement report. Delta is always
// the sum of its three components.
type SeatDelta struct {
	Seat         Seat `json:"seat"`
	Delta        int  `json:"delta"`
	DeltaEnough  int  `json:"delta_enough"`
	DeltaReveal  int  `json:"delta_reveal"`
	DeltaCeramic int  `json:"delta_ceramic"`
}

// Settlement is the zero-sum chip delta report. Each component column
// sums to zero on its own.
type Settlement struct {
	ChipDeltaBySeat [NumSeats]SeatDelta `json:"chip_delta_by_seat"`
}

// Settle computes the chip settlement and advances the state to the
// terminal phase. It is the only path to PhaseFinished and must be
// called exactly once, when the reducer has reached PhaseSettlement.
func (g *GameState) Settle() (Settlement, error) {
	if g.Phase != PhaseSettlement {
		return Settlement{}, fmt.Errorf("%w: settle requires settlement phase, state is in %s", ErrInvalidPhase, g.Phase)
	}

	counts := g.CapturedPillarCounts()

	var deltaEnough, deltaReveal, deltaCeramic [NumSeats]int

	ceramicSeat := NoSeat
	for seat, count := range counts {
		if count >= CeramicCount {
			ceramicSeat = Seat(seat)
		}
	}

	if ceramicSeat != NoSeat {
		// A ceramic seat collects 3 from every opponent; the enough and
		// reveal components are void.
		for seat := Seat(0); seat < NumSeats; seat++ {
			if seat == ceramicSeat {
				deltaCeramic[seat] = 3 * (NumSeats - 1)
			} else {
				deltaCeramic[seat] = -3
			}
		}
	} else {
		for e := Seat(0); e < NumSeats; e++ {
			if counts[e] < EnoughCount || g.revealedWhileEnough(e) {
				continue
			}
			for n := Seat(0); n < NumSeats; n++ {
				if counts[n] < EnoughCount {
					deltaEnough[e]++
					deltaEnough[n]--
				}
			}
		}

		for _, relation := range g.Reveal.Relations {
			if relation.RevealerEnoughAtTime {
				continue
			}
			if counts[relation.RevealerSeat] >= EnoughCount {
				continue
			}
			deltaReveal[relation.RevealerSeat]--
			deltaReveal[relation.BucklerSeat]++
		}
	}

	var settlement Settlement
	for seat := Seat(0); seat < NumSeats; seat++ {
		settlement.ChipDeltaBySeat[seat] = SeatDelta{
			Seat:         seat,
			Delta:        deltaEnough[seat] + deltaReveal[seat] + deltaCeramic[seat],
			DeltaEnough:  deltaEnough[seat],
			DeltaReveal:  deltaReveal[seat],
			DeltaCeramic: deltaCeramic[seat],
		}
	}

	g.Phase = PhaseFinished
	g.Version++
	return settlement, nil
}

// revealedWhileEnough reports whether seat ever revealed when its
// captured count was already enough. Such a seat forfeits its
// enough-income at settlement.
func (g *GameState) revealedWhileEnough(seat Seat) bool {
	for _, relation := range g.Reveal.Relations {
		if relation.RevealerSeat == seat && relation.RevealerEnoughAtTime {
			return true
		}
	}
	return false
}
