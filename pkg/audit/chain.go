package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/regcoder/pkg/canonicalize"
)

// Record is the caller-supplied part of an entry. The chain fills in id,
// timestamp and hashes.
type Record struct {
	Action     Action
	Stage      string
	Actor      string
	TargetIDs  []string
	InputHash  string
	OutputHash string
	Details    map[string]any
	ModelUsed  string
	Verdict    string
}

// Chain appends entries to one JSONL log file. Appends are serialized;
// readers (LoadAll, VerifyFile) do not take the writer's lock and may miss an
// entry that is being written.
type Chain struct {
	mu       sync.Mutex
	path     string
	lastHash string

	logger   *slog.Logger
	clock    func() time.Time
	newID    func() string
	onAppend []func(Entry)
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// WithClock overrides the entry timestamp source.
func WithClock(clock func() time.Time) ChainOption {
	return func(c *Chain) { c.clock = clock }
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(gen func() string) ChainOption {
	return func(c *Chain) { c.newID = gen }
}

// OnAppend registers a hook that runs after each successful append, while
// the append lock is still held.
func OnAppend(fn func(Entry)) ChainOption {
	return func(c *Chain) { c.onAppend = append(c.onAppend, fn) }
}

// Open opens or creates the log at path and recovers the chain head from the
// last non-empty line. An empty or missing log starts at GenesisHash.
func Open(path string, opts ...ChainOption) (*Chain, error) {
	c := &Chain{
		path:   path,
		logger: slog.Default().With("component", "audit"),
		clock:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("audit: create log dir: %w", err)
	}
	head, err := c.readLastHash()
	if err != nil {
		return nil, err
	}
	c.lastHash = head
	return c, nil
}

// Path returns the log file path.
func (c *Chain) Path() string { return c.path }

// LastHash returns the entry_hash of the newest entry, or GenesisHash.
func (c *Chain) LastHash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHash
}

// Append hashes, persists and returns a new entry linked to the current
// head. The head only advances once the line is on disk.
func (c *Chain) Append(ctx context.Context, rec Record) (*Entry, error) {
	if !rec.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, rec.Action)
	}
	if rec.Stage == "" {
		return nil, ErrMissingStage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := normalizeDetails(rec.Details)
	if err != nil {
		return nil, err
	}
	targets := append([]string{}, rec.TargetIDs...)
	actor := rec.Actor
	if actor == "" {
		actor = "system"
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.clock().UTC().Truncate(time.Microsecond)
	hash, err := ComputeHash(c.lastHash, FormatTimestamp(ts), rec.Action, targets, details)
	if err != nil {
		return nil, fmt.Errorf("audit: hash entry: %w", err)
	}

	entry := Entry{
		ID:           c.newID(),
		Timestamp:    ts,
		Action:       rec.Action,
		Stage:        rec.Stage,
		Actor:        actor,
		TargetIDs:    targets,
		InputHash:    rec.InputHash,
		OutputHash:   rec.OutputHash,
		PreviousHash: c.lastHash,
		EntryHash:    hash,
		Details:      details,
		ModelUsed:    rec.ModelUsed,
		Verdict:      rec.Verdict,
	}
	if err := c.write(entry); err != nil {
		return nil, err
	}
	c.lastHash = hash

	c.logger.DebugContext(ctx, "audit entry appended",
		"id", entry.ID,
		"action", entry.Action,
		"stage", entry.Stage,
		"targets", entry.TargetIDs,
	)
	for _, fn := range c.onAppend {
		fn(entry)
	}
	return &entry, nil
}

func (c *Chain) write(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("audit: open log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audit: close log: %w", err)
	}
	return nil
}

// readLastHash falls back to GenesisHash when the last line cannot be
// parsed, logging a warning.
func (c *Chain) readLastHash() (string, error) {
	f, err := os.Open(c.path)
	if os.IsNotExist(err) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	var last string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("audit: read log: %w", err)
	}
	if last == "" {
		return GenesisHash, nil
	}

	var head struct {
		EntryHash *string `json:"entry_hash"`
	}
	if err := json.Unmarshal([]byte(last), &head); err != nil {
		c.logger.Warn("could not read last audit hash", "path", c.path, "error", err)
		return GenesisHash, nil
	}
	if head.EntryHash == nil {
		return GenesisHash, nil
	}
	return *head.EntryHash, nil
}

func normalizeDetails(details map[string]any) (map[string]any, error) {
	if len(details) == 0 {
		return map[string]any{}, nil
	}
	norm, err := canonicalize.Normalize(details)
	if err != nil {
		return nil, fmt.Errorf("audit: details: %w", err)
	}
	m, ok := norm.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("audit: details: expected object, got %T", norm)
	}
	return m, nil
}
