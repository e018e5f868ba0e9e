// Package gamelog persists per-version state snapshots and action
// traces for one game to a local directory.
//
// The logger is a side effect outside the engine's pure core: writes
// happen after a successful mutation and a write failure must never be
// allowed to corrupt engine state. Files are written to a temp path and
// renamed into place so readers never observe a partial snapshot.
package gamelog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tontyoutoure/xianqi/engine"
)

// StateRecord is one versioned snapshot: the complete internal state
// plus the derived public and per-seat private views.
type StateRecord struct {
	Global        json.RawMessage                      `json:"global"`
	Public        engine.PublicState                   `json:"public"`
	PrivateStates [engine.NumSeats]engine.PrivateState `json:"private_states"`
}

// TakenAction describes the action a seat actually submitted.
type TakenAction struct {
	ActionIdx  int               `json:"action_idx"`
	ActionType engine.ActionType `json:"action_type"`
	CoverList  engine.CardCounts `json:"cover_list,omitempty"`
}

// ActionRecord is one entry of the cumulative action trace. Version is
// the state version the action was applied against.
type ActionRecord struct {
	Version      int             `json:"version"`
	Seat         engine.Seat     `json:"seat"`
	LegalActions []engine.Action `json:"legal_actions"`
	TakenAction  TakenAction     `json:"taken_action"`
}

// SettleRecord is the final settlement written once per game.
type SettleRecord struct {
	FromVersion int               `json:"from_version"`
	ToVersion   int               `json:"to_version"`
	Settlement  engine.Settlement `json:"settlement"`
}

// Logger writes game traces under one directory.
type Logger struct {
	dir string
}

// New returns a logger rooted at dir. Call Reset before the first
// write of a new game.
func New(dir string) *Logger {
	return &Logger{dir: dir}
}

// Reset creates the log directory and removes traces of any prior game:
// all state_v*.json snapshots, action.json and settle.json.
func (l *Logger) Reset() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	stale, err := filepath.Glob(filepath.Join(l.dir, "state_v*.json"))
	if err != nil {
		return fmt.Errorf("list state snapshots: %w", err)
	}
	stale = append(stale,
		filepath.Join(l.dir, "action.json"),
		filepath.Join(l.dir, "settle.json"),
	)
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// WriteState writes one full snapshot keyed by the state's version.
func (l *Logger) WriteState(g *engine.GameState) error {
	global, err := engine.DumpState(g)
	if err != nil {
		return fmt.Errorf("dump state: %w", err)
	}

	record := StateRecord{
		Global: global,
		Public: engine.PublicStateOf(g),
	}
	for seat := engine.Seat(0); seat < engine.NumSeats; seat++ {
		record.PrivateStates[seat] = engine.PrivateStateOf(g, seat)
	}

	name := fmt.Sprintf("state_v%d.json", g.Version)
	return l.writeJSON(filepath.Join(l.dir, name), record)
}

// AppendAction appends one record to the cumulative action trace.
func (l *Logger) AppendAction(record ActionRecord) error {
	path := filepath.Join(l.dir, "action.json")

	var records []ActionRecord
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("parse action trace: %w", err)
		}
	case os.IsNotExist(err):
		// First action of the game.
	default:
		return fmt.Errorf("read action trace: %w", err)
	}

	records = append(records, record)
	return l.writeJSON(path, records)
}

// WriteSettlement writes the settlement record.
func (l *Logger) WriteSettlement(record SettleRecord) error {
	return l.writeJSON(filepath.Join(l.dir, "settle.json"), record)
}

func (l *Logger) writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
