package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/regcoder/pkg/canonicalize"
)

var (
	// ErrInvalidTimeRange is returned when start time is after end time.
	ErrInvalidTimeRange = errors.New("audit: start_time must be before end_time")
	// ErrLogNotConfigured is returned when export is invoked without a log path.
	ErrLogNotConfigured = errors.New("audit: log path not configured")
)

// ExportRequest selects the entries of an evidence pack. Zero times and an
// empty action list select everything.
type ExportRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Actions   []Action  `json:"actions,omitempty"`
}

// Manifest describes the contents of an evidence pack.
type Manifest struct {
	LogPath      string             `json:"log_path"`
	GeneratedAt  time.Time          `json:"generated_at"`
	EventCount   int                `json:"event_count"`
	ChainHead    string             `json:"chain_head"`
	Verification VerificationResult `json:"verification"`
	EventsHash   string             `json:"events_hash"`
	Period       struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"period"`
	Actions []Action `json:"actions,omitempty"`
}

// Exporter builds evidence packs from a log file.
type Exporter struct {
	path  string
	clock func() time.Time
}

// NewExporter creates an exporter for the log at path.
func NewExporter(path string) *Exporter {
	return &Exporter{path: path, clock: time.Now}
}

// WithClock overrides clock for testing.
func (e *Exporter) WithClock(clock func() time.Time) *Exporter {
	e.clock = clock
	return e
}

// GeneratePack creates a zip containing the selected entries, a manifest
// with the verification result of the whole log, and a README. It returns
// the archive and its SHA-256 checksum.
func (e *Exporter) GeneratePack(ctx context.Context, req ExportRequest) ([]byte, string, error) {
	if e.path == "" {
		return nil, "", ErrLogNotConfigured
	}
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && req.StartTime.After(req.EndTime) {
		return nil, "", ErrInvalidTimeRange
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	all, err := LoadAll(e.path)
	if err != nil {
		return nil, "", err
	}
	entries := filterEntries(all, req)

	// 1. Serialize events
	eventsJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: marshal events: %w", err)
	}

	// 2. Create manifest
	now := e.clock().UTC()
	verification := VerifyFile(e.path)
	m := Manifest{
		LogPath:      e.path,
		GeneratedAt:  now,
		EventCount:   len(entries),
		ChainHead:    verification.ChainHead,
		Verification: verification,
		EventsHash:   canonicalize.HashBytes(eventsJSON),
		Actions:      req.Actions,
	}
	m.Period.Start = req.StartTime
	m.Period.End = req.EndTime
	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: failed to marshal manifest: %w", err)
	}

	// 3. Create zip
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	files := []struct {
		name string
		body []byte
	}{
		{"events.json", eventsJSON},
		{"manifest.json", manifestJSON},
		{"README.txt", []byte(fmt.Sprintf(
			"Audit evidence pack\nLog: %s\nGenerated at %s\nEntries: %d\nChain valid: %t\n",
			e.path, now.Format(time.RFC3339), len(entries), verification.Valid))},
	}
	for _, file := range files {
		hdr := &zip.FileHeader{Name: file.name, Method: zip.Deflate, Modified: now}
		f, err := w.CreateHeader(hdr)
		if err != nil {
			return nil, "", err
		}
		if _, err := f.Write(file.body); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	// 4. Checksum the archive
	zipBytes := buf.Bytes()
	return zipBytes, canonicalize.HashBytes(zipBytes), nil
}

func filterEntries(all []Entry, req ExportRequest) []Entry {
	out := []Entry{}
	for _, e := range all {
		if !req.StartTime.IsZero() && e.Timestamp.Before(req.StartTime) {
			continue
		}
		if !req.EndTime.IsZero() && e.Timestamp.After(req.EndTime) {
			continue
		}
		if len(req.Actions) > 0 && !containsAction(req.Actions, e.Action) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func containsAction(list []Action, a Action) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
