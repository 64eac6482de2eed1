package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// maxLineSize bounds a single log line.
const maxLineSize = 16 * 1024 * 1024

// LoadAll reads every entry of the log at path in file order. A missing file
// is an empty history. Lines that fail to parse are skipped with a warning.
func LoadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	logger := slog.Default().With("component", "audit")
	entries := []Entry{}
	err = scanLines(f, func(lineNo int, line []byte) {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			logger.Warn("skipping malformed audit entry", "path", path, "line", lineNo, "error", err)
			return
		}
		entries = append(entries, e)
	})
	if err != nil {
		return nil, fmt.Errorf("audit: read log: %w", err)
	}
	return entries, nil
}

// VerifyChain checks genesis, every entry's hash and the linkage between
// neighbours. It reports every problem found; an empty slice is valid.
func VerifyChain(entries []Entry) (bool, []string) {
	errs := []string{}
	if len(entries) == 0 {
		return true, errs
	}

	if entries[0].PreviousHash != GenesisHash {
		errs = append(errs, fmt.Sprintf(
			"First entry %s does not reference genesis hash (got '%s')",
			entries[0].ID, entries[0].PreviousHash))
	}
	for i, e := range entries {
		expected, err := e.Hash()
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("Entry %s failed to recompute hash: %v", e.ID, err))
		case e.EntryHash != expected:
			errs = append(errs, fmt.Sprintf(
				"Entry %s hash mismatch: expected %s, got %s", e.ID, expected, e.EntryHash))
		}
		if i > 0 && e.PreviousHash != entries[i-1].EntryHash {
			errs = append(errs, fmt.Sprintf(
				"Entry %s chain broken: previous_hash=%s does not match prior entry hash=%s",
				e.ID, e.PreviousHash, entries[i-1].EntryHash))
		}
	}
	return len(errs) == 0, errs
}

// VerificationResult is the outcome of verifying a log file.
type VerificationResult struct {
	Path      string   `json:"path"`
	Valid     bool     `json:"valid"`
	Entries   int      `json:"entries"`
	ChainHead string   `json:"chain_head,omitempty"`
	Errors    []string `json:"errors"`
}

// VerifyFile verifies the log at path from its raw lines, hashing the
// timestamp exactly as stored. Storage problems and unparseable lines are
// reported in Errors rather than returned; when any line fails to parse the
// chain itself is not checked.
func VerifyFile(path string) VerificationResult {
	res := VerificationResult{Path: path, Errors: []string{}}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			res.Errors = append(res.Errors, "Audit log file not found: "+path)
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf("Audit log file unreadable: %v", err))
		}
		return res
	}
	defer f.Close()

	var raws []map[string]any
	err = scanLines(f, func(lineNo int, line []byte) {
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Line %d: invalid JSON: %v", lineNo, err))
			return
		}
		raws = append(raws, m)
	})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Audit log file unreadable: %v", err))
		return res
	}
	res.Entries = len(raws)
	if len(res.Errors) > 0 {
		return res
	}
	if len(raws) == 0 {
		res.Valid = true
		return res
	}

	expectedPrev := GenesisHash
	for idx, raw := range raws {
		id := fmt.Sprintf("<index %d>", idx)
		if v, ok := raw["id"]; ok {
			id = fmt.Sprint(v)
		}
		storedPrev, _ := raw["previous_hash"].(string)
		storedHash, _ := raw["entry_hash"].(string)

		if storedPrev != expectedPrev {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"Entry %s (index %d): previous_hash mismatch. Expected '%s...', got '%s...'.",
				id, idx, prefix16(expectedPrev), prefix16(storedPrev)))
		}

		computed, err := rawHash(raw, storedPrev)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf(
				"Entry %s (index %d): failed to recompute hash: %v", id, idx, err))
		case computed != storedHash:
			res.Errors = append(res.Errors, fmt.Sprintf(
				"Entry %s (index %d): entry_hash mismatch. Computed '%s...', stored '%s...'.",
				id, idx, prefix16(computed), prefix16(storedHash)))
		}
		expectedPrev = storedHash
	}
	res.ChainHead = expectedPrev
	res.Valid = len(res.Errors) == 0
	return res
}

func rawHash(raw map[string]any, previous string) (string, error) {
	ts, err := stringField(raw, "timestamp")
	if err != nil {
		return "", err
	}
	action, err := stringField(raw, "action")
	if err != nil {
		return "", err
	}

	targets := []string{}
	if v, ok := raw["target_ids"]; ok {
		list, ok := v.([]any)
		if !ok {
			return "", fmt.Errorf("target_ids is %T, not a list", v)
		}
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return "", fmt.Errorf("target_ids contains %T", item)
			}
			targets = append(targets, s)
		}
	}

	details := map[string]any{}
	if v, ok := raw["details"]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return "", fmt.Errorf("details is %T, not an object", v)
		}
		details = m
	}
	return ComputeHash(previous, ts, Action(action), targets, details)
}

func stringField(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s is %T, not a string", key, v)
	}
	return s, nil
}

func prefix16(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// scanLines calls fn for each non-blank line with its 1-based number.
func scanLines(r io.Reader, fn func(lineNo int, line []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fn(lineNo, []byte(line))
	}
	return sc.Err()
}
