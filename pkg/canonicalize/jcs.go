// Package canonicalize provides deterministic JSON renderings used for
// hashing: RFC 8785 (JCS) for content hashes and a Python-compatible sorted
// rendering for the audit chain.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// HashPrefix marks a content hash produced by PrefixedHash.
const HashPrefix = "sha256:"

// JCS returns the RFC 8785 canonical JSON representation of v.
// Struct tags are honoured because v is marshalled with encoding/json first.
func JCS(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return out, nil
}

// JCSString returns the JCS canonical form as a string.
func JCSString(v any) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON
// representation of v.
func CanonicalHash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// PrefixedHash is CanonicalHash with the "sha256:" prefix used by artifact
// references and report content hashes.
func PrefixedHash(v any) (string, error) {
	h, err := CanonicalHash(v)
	if err != nil {
		return "", err
	}
	return HashPrefix + h, nil
}

// HashBytes computes the SHA-256 of raw bytes and returns it hex encoded.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashString is HashBytes for strings.
func HashString(s string) string {
	return HashBytes([]byte(s))
}
