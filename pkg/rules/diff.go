package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ErrRegulationMismatch is returned when two catalogues of different
// regulations are compared.
var ErrRegulationMismatch = errors.New("rules: catalogues belong to different regulations")

// ChangeType classifies a clause across two catalogue versions.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeDeleted   ChangeType = "deleted"
	ChangeModified  ChangeType = "modified"
	ChangeUnchanged ChangeType = "unchanged"
)

// Impact item types.
const (
	ItemRequirement = "requirement"
	ItemRule        = "rule"
)

// Impact priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// ClauseChange is the fate of one clause id between two versions.
type ClauseChange struct {
	ClauseID   string     `json:"clause_id"`
	ChangeType ChangeType `json:"change_type"`
	OldText    string     `json:"old_text"`
	NewText    string     `json:"new_text"`
	Summary    string     `json:"diff_summary"`
}

// ImpactedItem is a requirement or rule that traces back to a changed clause.
type ImpactedItem struct {
	ItemID            string `json:"item_id"`
	ItemType          string `json:"item_type"`
	Description       string `json:"impact_description"`
	NeedsRegeneration bool   `json:"needs_regeneration"`
	Priority          string `json:"priority"`
}

// CatalogueDiff compares two versions of one regulation's catalogue.
type CatalogueDiff struct {
	RegulationID string         `json:"regulation_id"`
	OldVersion   string         `json:"old_version"`
	NewVersion   string         `json:"new_version"`
	Changes      []ClauseChange `json:"clause_changes"`
	Impacted     []ImpactedItem `json:"impacted_items"`
}

// Count returns the number of clause changes of type t.
func (d *CatalogueDiff) Count(t ChangeType) int {
	n := 0
	for _, c := range d.Changes {
		if c.ChangeType == t {
			n++
		}
	}
	return n
}

// TotalChanges counts every clause that was added, deleted or modified.
func (d *CatalogueDiff) TotalChanges() int {
	return len(d.Changes) - d.Count(ChangeUnchanged)
}

// ImpactCount returns the number of impacted items of the given type.
func (d *CatalogueDiff) ImpactCount(itemType string) int {
	n := 0
	for _, it := range d.Impacted {
		if it.ItemType == itemType {
			n++
		}
	}
	return n
}

// DiffCatalogues compares the clauses of two catalogue versions and traces
// every changed clause to the requirements and rules derived from it.
func DiffCatalogues(old, cur *Catalogue) (*CatalogueDiff, error) {
	if old.Regulation().ID != cur.Regulation().ID {
		return nil, fmt.Errorf("%w: %s vs %s", ErrRegulationMismatch, old.Regulation().ID, cur.Regulation().ID)
	}
	changes := Diff(old.Clauses(), cur.Clauses())
	reqs := mergeByID(old.Requirements(), cur.Requirements(), func(r Requirement) string { return r.ID })
	rules := mergeByID(old.Rules(), cur.Rules(), func(r Rule) string { return r.ID })
	return &CatalogueDiff{
		RegulationID: cur.Regulation().ID,
		OldVersion:   old.Version().String(),
		NewVersion:   cur.Version().String(),
		Changes:      changes,
		Impacted:     MapImpact(changes, reqs, rules),
	}, nil
}

// Diff matches clauses by id. Clauses only in old are deleted, clauses only
// in cur are added, and shared ids are modified when their trimmed text
// differs. Old clauses come first in their order, then additions in theirs.
func Diff(old, cur []Clause) []ClauseChange {
	curByID := make(map[string]Clause, len(cur))
	for _, c := range cur {
		curByID[c.ID] = c
	}
	seen := make(map[string]bool, len(old))

	changes := make([]ClauseChange, 0, len(old)+len(cur))
	for _, o := range old {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		n, ok := curByID[o.ID]
		if !ok {
			changes = append(changes, ClauseChange{
				ClauseID:   o.ID,
				ChangeType: ChangeDeleted,
				OldText:    o.Text,
				Summary:    fmt.Sprintf("Clause %s was deleted.", o.ID),
			})
			continue
		}
		changes = append(changes, compareClause(o, n))
	}
	for _, n := range cur {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		changes = append(changes, ClauseChange{
			ClauseID:   n.ID,
			ChangeType: ChangeAdded,
			NewText:    n.Text,
			Summary:    fmt.Sprintf("Clause %s was added.", n.ID),
		})
	}
	return changes
}

func compareClause(o, n Clause) ClauseChange {
	c := ClauseChange{ClauseID: o.ID, OldText: o.Text, NewText: n.Text}
	if strings.TrimSpace(o.Text) == strings.TrimSpace(n.Text) {
		c.ChangeType = ChangeUnchanged
		c.Summary = "No change."
		return c
	}
	c.ChangeType = ChangeModified
	summary, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(o.Text),
		B:        difflib.SplitLines(n.Text),
		FromFile: "old",
		ToFile:   "new",
		Context:  3,
	})
	if err != nil || summary == "" {
		summary = "Text modified."
	}
	c.Summary = strings.TrimRight(summary, "\n")
	return c
}

// MapImpact returns the requirements derived from each changed clause and
// the rules derived from those requirements, each item once. Additions and
// deletions need regeneration. An added clause with no requirements yields a
// clause:<id> item so extraction is not forgotten.
func MapImpact(changes []ClauseChange, reqs []Requirement, rules []Rule) []ImpactedItem {
	reqsByClause := make(map[string][]Requirement)
	for _, r := range reqs {
		reqsByClause[r.ClauseID] = append(reqsByClause[r.ClauseID], r)
	}
	rulesByReq := make(map[string][]Rule)
	for _, r := range rules {
		rulesByReq[r.RequirementID] = append(rulesByReq[r.RequirementID], r)
	}

	var out []ImpactedItem
	seen := make(map[string]bool)
	add := func(it ImpactedItem) {
		if seen[it.ItemID] {
			return
		}
		seen[it.ItemID] = true
		out = append(out, it)
	}

	for _, ch := range changes {
		if ch.ChangeType == ChangeUnchanged {
			continue
		}
		regen := ch.ChangeType == ChangeAdded || ch.ChangeType == ChangeDeleted

		affected := reqsByClause[ch.ClauseID]
		for _, req := range affected {
			add(ImpactedItem{
				ItemID:            req.ID,
				ItemType:          ItemRequirement,
				Description:       fmt.Sprintf("Requirement derived from clause %s which was %s.", ch.ClauseID, ch.ChangeType),
				NeedsRegeneration: regen,
				Priority:          PriorityMedium,
			})
			for _, rule := range rulesByReq[req.ID] {
				add(ImpactedItem{
					ItemID:            rule.ID,
					ItemType:          ItemRule,
					Description:       fmt.Sprintf("Rule derived from requirement %s, which traces back to clause %s (%s).", req.ID, ch.ClauseID, ch.ChangeType),
					NeedsRegeneration: regen,
					Priority:          PriorityMedium,
				})
			}
		}
		if len(affected) == 0 && ch.ChangeType == ChangeAdded {
			add(ImpactedItem{
				ItemID:            "clause:" + ch.ClauseID,
				ItemType:          ItemRequirement,
				Description:       fmt.Sprintf("New clause %s added; requirements need to be extracted.", ch.ClauseID),
				NeedsRegeneration: true,
				Priority:          PriorityHigh,
			})
		}
	}
	return out
}

// mergeByID unions two record sets, preferring cur on id collisions. The
// result is sorted by id.
func mergeByID[T any](old, cur []T, id func(T) string) []T {
	byID := make(map[string]T, len(old)+len(cur))
	for _, v := range old {
		byID[id(v)] = v
	}
	for _, v := range cur {
		byID[id(v)] = v
	}
	out := make([]T, 0, len(byID))
	for _, v := range byID {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
