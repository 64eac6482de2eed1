package audit

import (
	"strings"

	"github.com/Mindburn-Labs/regcoder/pkg/canonicalize"
)

// ComputeHash returns
//
//	sha256_hex(previous | timestamp | action | dumps(target_ids) | dumps(details))
//
// where dumps is the sorted-key rendering of canonicalize.SortedJSON. Logs
// written by any implementation of this formula verify against each other.
func ComputeHash(previous, timestamp string, action Action, targetIDs []string, details map[string]any) (string, error) {
	if targetIDs == nil {
		targetIDs = []string{}
	}
	if details == nil {
		details = map[string]any{}
	}
	targets, err := canonicalize.SortedJSON(targetIDs)
	if err != nil {
		return "", err
	}
	body, err := canonicalize.SortedJSON(details)
	if err != nil {
		return "", err
	}
	raw := strings.Join([]string{previous, timestamp, string(action), targets, body}, "|")
	return canonicalize.HashString(raw), nil
}

// Hash recomputes the entry's hash from its persisted fields.
func (e Entry) Hash() (string, error) {
	return ComputeHash(e.PreviousHash, FormatTimestamp(e.Timestamp), e.Action, e.TargetIDs, e.Details)
}
