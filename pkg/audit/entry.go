// Package audit implements the append-only, hash-chained JSONL audit trail
// that records every pipeline action.
package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GenesisHash is the previous_hash of the first entry in a log.
var GenesisHash = strings.Repeat("0", 64)

// Standard errors for audit records.
var (
	ErrInvalidAction = errors.New("audit: invalid action")
	ErrMissingStage  = errors.New("audit: stage is required")
	ErrMalformed     = errors.New("audit: malformed entry")
)

// Action is the kind of pipeline action an entry records.
type Action string

const (
	ActionIngest    Action = "ingest"
	ActionParse     Action = "parse"
	ActionExtract   Action = "extract"
	ActionFormalize Action = "formalize"
	ActionCodegen   Action = "codegen"
	ActionJudge     Action = "judge"
	ActionEvaluate  Action = "evaluate"
	ActionDiff      Action = "diff"
	ActionExport    Action = "export"
)

// Actions lists every valid action.
var Actions = []Action{
	ActionIngest, ActionParse, ActionExtract, ActionFormalize, ActionCodegen,
	ActionJudge, ActionEvaluate, ActionDiff, ActionExport,
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAction converts a string into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

// Entry is one immutable record in the chain. Its JSON form is the line
// format of the log file.
type Entry struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Action       Action         `json:"action"`
	Stage        string         `json:"stage"`
	Actor        string         `json:"actor"`
	TargetIDs    []string       `json:"target_ids"`
	InputHash    string         `json:"input_hash"`
	OutputHash   string         `json:"output_hash"`
	PreviousHash string         `json:"previous_hash"`
	EntryHash    string         `json:"entry_hash"`
	Details      map[string]any `json:"details"`
	ModelUsed    string         `json:"model_used"`
	Verdict      string         `json:"verdict"`
}

type entryWire struct {
	ID           *string        `json:"id"`
	Timestamp    string         `json:"timestamp"`
	Action       *Action        `json:"action"`
	Stage        *string        `json:"stage"`
	Actor        string         `json:"actor"`
	TargetIDs    []string       `json:"target_ids"`
	InputHash    string         `json:"input_hash"`
	OutputHash   string         `json:"output_hash"`
	PreviousHash string         `json:"previous_hash"`
	EntryHash    string         `json:"entry_hash"`
	Details      map[string]any `json:"details"`
	ModelUsed    string         `json:"model_used"`
	Verdict      string         `json:"verdict"`
}

// MarshalJSON writes the timestamp in its canonical wire form and empty
// collections as [] and {}.
func (e Entry) MarshalJSON() ([]byte, error) {
	w := struct {
		ID           string         `json:"id"`
		Timestamp    string         `json:"timestamp"`
		Action       Action         `json:"action"`
		Stage        string         `json:"stage"`
		Actor        string         `json:"actor"`
		TargetIDs    []string       `json:"target_ids"`
		InputHash    string         `json:"input_hash"`
		OutputHash   string         `json:"output_hash"`
		PreviousHash string         `json:"previous_hash"`
		EntryHash    string         `json:"entry_hash"`
		Details      map[string]any `json:"details"`
		ModelUsed    string         `json:"model_used"`
		Verdict      string         `json:"verdict"`
	}{
		ID:           e.ID,
		Timestamp:    FormatTimestamp(e.Timestamp),
		Action:       e.Action,
		Stage:        e.Stage,
		Actor:        e.Actor,
		TargetIDs:    e.TargetIDs,
		InputHash:    e.InputHash,
		OutputHash:   e.OutputHash,
		PreviousHash: e.PreviousHash,
		EntryHash:    e.EntryHash,
		Details:      e.Details,
		ModelUsed:    e.ModelUsed,
		Verdict:      e.Verdict,
	}
	if w.TargetIDs == nil {
		w.TargetIDs = []string{}
	}
	if w.Details == nil {
		w.Details = map[string]any{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON requires id, action and stage. Numbers inside details are
// kept as json.Number so their hash form survives the round trip.
func (e *Entry) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var w entryWire
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	switch {
	case w.ID == nil:
		return fmt.Errorf("%w: missing id", ErrMalformed)
	case w.Action == nil:
		return fmt.Errorf("%w: missing action", ErrMalformed)
	case !w.Action.Valid():
		return fmt.Errorf("%w: %w %q", ErrMalformed, ErrInvalidAction, *w.Action)
	case w.Stage == nil:
		return fmt.Errorf("%w: missing stage", ErrMalformed)
	}

	ts := time.Now().UTC()
	if w.Timestamp != "" {
		parsed, err := ParseTimestamp(w.Timestamp)
		if err != nil {
			return fmt.Errorf("%w: timestamp: %w", ErrMalformed, err)
		}
		ts = parsed
	}

	actor := w.Actor
	if actor == "" {
		actor = "system"
	}
	*e = Entry{
		ID:           *w.ID,
		Timestamp:    ts,
		Action:       *w.Action,
		Stage:        *w.Stage,
		Actor:        actor,
		TargetIDs:    w.TargetIDs,
		InputHash:    w.InputHash,
		OutputHash:   w.OutputHash,
		PreviousHash: w.PreviousHash,
		EntryHash:    w.EntryHash,
		Details:      w.Details,
		ModelUsed:    w.ModelUsed,
		Verdict:      w.Verdict,
	}
	if e.TargetIDs == nil {
		e.TargetIDs = []string{}
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	return nil
}

// FormatTimestamp renders t as ISO 8601 with microsecond precision, the
// fractional part omitted when zero, and "Z" for UTC offsets. This string is
// both persisted and hashed.
func FormatTimestamp(t time.Time) string {
	t = t.Truncate(time.Microsecond)
	s := t.Format("2006-01-02T15:04:05")
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	_, offset := t.Zone()
	if offset == 0 {
		return s + "Z"
	}
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return s + fmt.Sprintf("%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

// ParseTimestamp accepts RFC 3339 timestamps with or without a fractional
// part. Precision beyond microseconds is dropped.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.Truncate(time.Microsecond), nil
}
