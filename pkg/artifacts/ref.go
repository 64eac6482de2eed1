package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNotFound   = errors.New("artifacts: not found")
	ErrInvalidRef = errors.New("artifacts: invalid reference")

	// ErrBackendUnavailable is returned for a storage type this binary was
	// built without.
	ErrBackendUnavailable = errors.New("artifacts: storage backend not compiled in")
)

// Kind groups stored artifacts. It is the first segment of every key.
type Kind string

const (
	KindReport    Kind = "reports"
	KindScorecard Kind = "scorecards"
	KindEvidence  Kind = "evidence"
	KindLog       Kind = "logs"
	KindDiff      Kind = "diffs"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindReport, KindScorecard, KindEvidence, KindLog, KindDiff:
		return true
	}
	return false
}

var extPattern = regexp.MustCompile(`^[a-z0-9]{1,8}$`)

// Ref addresses one stored artifact: <kind>/<sha256 hex>.<ext>.
type Ref struct {
	Kind Kind   `json:"kind"`
	Hash string `json:"hash"` // hex, no prefix
	Ext  string `json:"ext"`
}

// Key is the storage key relative to a backend's root or prefix.
func (r Ref) Key() string {
	return string(r.Kind) + "/" + r.Hash + "." + r.Ext
}

func (r Ref) String() string { return r.Key() }

// Digest is the hash in the "sha256:" form used by audit entries.
func (r Ref) Digest() string { return "sha256:" + r.Hash }

// Validate rejects references that could escape the store layout.
func (r Ref) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRef, r.Kind)
	}
	if len(r.Hash) != sha256.Size*2 {
		return fmt.Errorf("%w: hash must be %d hex chars", ErrInvalidRef, sha256.Size*2)
	}
	if _, err := hex.DecodeString(r.Hash); err != nil {
		return fmt.Errorf("%w: hash: %v", ErrInvalidRef, err)
	}
	if !extPattern.MatchString(r.Ext) {
		return fmt.Errorf("%w: extension %q", ErrInvalidRef, r.Ext)
	}
	return nil
}

// ParseRef parses the Key form back into a Ref.
func ParseRef(s string) (Ref, error) {
	kind, rest, ok := strings.Cut(s, "/")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	hash, ext, ok := strings.Cut(rest, ".")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	r := Ref{Kind: Kind(kind), Hash: strings.ToLower(hash), Ext: ext}
	if err := r.Validate(); err != nil {
		return Ref{}, err
	}
	return r, nil
}

// NewRef computes the reference data would be stored under.
func NewRef(kind Kind, ext string, data []byte) (Ref, error) {
	sum := sha256.Sum256(data)
	r := Ref{Kind: kind, Hash: hex.EncodeToString(sum[:]), Ext: strings.TrimPrefix(ext, ".")}
	if err := r.Validate(); err != nil {
		return Ref{}, err
	}
	return r, nil
}

func contentType(ext string) string {
	switch ext {
	case "json":
		return "application/json"
	case "jsonl":
		return "application/x-ndjson"
	case "zip":
		return "application/zip"
	case "txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
