package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"

	"github.com/Mindburn-Labs/regcoder/pkg/canonicalize"
)

// Standard errors for catalogue construction.
var (
	ErrInvalidCatalogue = errors.New("rules: invalid catalogue")
	ErrInvalidVersion   = errors.New("rules: invalid catalogue version")
)

var catalogueValidate *validator.Validate

var fieldPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func init() {
	catalogueValidate = validator.New()
	_ = catalogueValidate.RegisterValidation("fieldpath", func(fl validator.FieldLevel) bool {
		return fieldPathPattern.MatchString(fl.Field().String())
	})
}

// Catalogue is an immutable, versioned snapshot of one regulation's clauses,
// requirements and rules together with the native predicates registered for
// them. It is safe for concurrent readers.
type Catalogue struct {
	regulation   Regulation
	version      *semver.Version
	clauses      []Clause
	requirements []Requirement
	rules        []Rule
	predicates   map[string]Predicate
	ruleIndex    map[string]int
	byArticle    map[int][]string
	digest       string
}

// Regulation returns the regulation metadata.
func (c *Catalogue) Regulation() Regulation { return c.regulation }

// Version returns the catalogue version.
func (c *Catalogue) Version() *semver.Version { return c.version }

// Digest is the content hash of the catalogue data (predicates excluded).
func (c *Catalogue) Digest() string { return c.digest }

// Len returns the number of rules.
func (c *Catalogue) Len() int { return len(c.rules) }

// Rules returns the rules in catalogue order.
func (c *Catalogue) Rules() []Rule { return append([]Rule(nil), c.rules...) }

// Requirements returns the requirements in catalogue order.
func (c *Catalogue) Requirements() []Requirement {
	return append([]Requirement(nil), c.requirements...)
}

// Clauses returns the clauses in catalogue order.
func (c *Catalogue) Clauses() []Clause { return append([]Clause(nil), c.clauses...) }

// Rule looks up a rule by id.
func (c *Catalogue) Rule(id string) (Rule, bool) {
	i, ok := c.ruleIndex[id]
	if !ok {
		return Rule{}, false
	}
	return c.rules[i], true
}

// EvaluationFunction returns the native predicate registered for a rule.
func (c *Catalogue) EvaluationFunction(ruleID string) (Predicate, bool) {
	p, ok := c.predicates[ruleID]
	return p, ok && p != nil
}

// RulesForArticle returns the rule ids that implement an article, in
// catalogue order. Unknown articles yield an empty slice.
func (c *Catalogue) RulesForArticle(article int) []string {
	return append([]string{}, c.byArticle[article]...)
}

// Articles lists the article numbers that have at least one rule.
func (c *Catalogue) Articles() []int {
	out := make([]int, 0, len(c.byArticle))
	for a := range c.byArticle {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}

// ArticleOf returns the article number a rule implements, or 0.
func (c *Catalogue) ArticleOf(ruleID string) int {
	for a, ids := range c.byArticle {
		for _, id := range ids {
			if id == ruleID {
				return a
			}
		}
	}
	return 0
}

// Builder assembles a Catalogue. It is not safe for concurrent use.
type Builder struct {
	regulation   Regulation
	version      string
	clauses      []Clause
	requirements []Requirement
	rules        []Rule
	predicates   map[string]Predicate
}

// NewBuilder starts a catalogue for a regulation at a semantic version.
func NewBuilder(reg Regulation, version string) *Builder {
	return &Builder{
		regulation: reg,
		version:    version,
		predicates: make(map[string]Predicate),
	}
}

// AddClauses appends clauses. Empty regulation and version fields inherit
// the builder's regulation.
func (b *Builder) AddClauses(clauses ...Clause) *Builder {
	for _, cl := range clauses {
		if cl.RegulationID == "" {
			cl.RegulationID = b.regulation.ID
		}
		if cl.DocumentVersion == "" {
			cl.DocumentVersion = b.regulation.DocumentVersion
		}
		if cl.Language == "" {
			cl.Language = b.regulation.Language
		}
		b.clauses = append(b.clauses, cl)
	}
	return b
}

// AddRequirements appends requirements. An empty jurisdiction inherits the
// regulation's.
func (b *Builder) AddRequirements(reqs ...Requirement) *Builder {
	for _, r := range reqs {
		if r.Jurisdiction == "" {
			r.Jurisdiction = b.regulation.Jurisdiction
		}
		b.requirements = append(b.requirements, r)
	}
	return b
}

// AddRule appends a rule with its native predicate. A nil predicate leaves
// the rule to the fallback interpreter.
func (b *Builder) AddRule(rule Rule, p Predicate) *Builder {
	b.rules = append(b.rules, rule)
	if p != nil {
		b.predicates[rule.ID] = p
	}
	return b
}

// Build validates the accumulated records and freezes them into a Catalogue.
// All problems are reported together.
func (b *Builder) Build() (*Catalogue, error) {
	version, err := semver.NewVersion(b.version)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidVersion, b.version, err)
	}

	var issues []string
	if err := catalogueValidate.Struct(b.regulation); err != nil {
		issues = append(issues, fmt.Sprintf("regulation: %v", err))
	}

	clauseIDs := make(map[string]int, len(b.clauses))
	for _, cl := range b.clauses {
		if err := catalogueValidate.Struct(cl); err != nil {
			issues = append(issues, fmt.Sprintf("clause %s: %v", cl.ID, err))
		}
		if _, dup := clauseIDs[cl.ID]; dup {
			issues = append(issues, fmt.Sprintf("duplicate clause id %s", cl.ID))
		}
		clauseIDs[cl.ID] = cl.ArticleNumber
	}

	reqClause := make(map[string]string, len(b.requirements))
	for _, r := range b.requirements {
		if err := catalogueValidate.Struct(r); err != nil {
			issues = append(issues, fmt.Sprintf("requirement %s: %v", r.ID, err))
		}
		if _, dup := reqClause[r.ID]; dup {
			issues = append(issues, fmt.Sprintf("duplicate requirement id %s", r.ID))
		}
		if _, ok := clauseIDs[r.ClauseID]; !ok {
			issues = append(issues, fmt.Sprintf("requirement %s: unknown clause %s", r.ID, r.ClauseID))
		}
		reqClause[r.ID] = r.ClauseID
	}

	ruleIndex := make(map[string]int, len(b.rules))
	byArticle := make(map[int][]string)
	for i, r := range b.rules {
		if err := catalogueValidate.Struct(r); err != nil {
			issues = append(issues, fmt.Sprintf("rule %s: %v", r.ID, err))
		}
		if err := catalogueValidate.Var(r.InputsNeeded, "dive,fieldpath"); err != nil {
			issues = append(issues, fmt.Sprintf("rule %s: inputs_needed: %v", r.ID, err))
		}
		if _, dup := ruleIndex[r.ID]; dup {
			issues = append(issues, fmt.Sprintf("duplicate rule id %s", r.ID))
			continue
		}
		ruleIndex[r.ID] = i

		clauseID, ok := reqClause[r.RequirementID]
		if !ok && len(b.requirements) > 0 {
			issues = append(issues, fmt.Sprintf("rule %s: unknown requirement %s", r.ID, r.RequirementID))
		}
		for _, cit := range r.Citations {
			if _, ok := clauseIDs[cit.ClauseID]; !ok && len(b.clauses) > 0 {
				issues = append(issues, fmt.Sprintf("rule %s: citation to unknown clause %s", r.ID, cit.ClauseID))
			}
		}

		article := clauseIDs[clauseID]
		if article == 0 {
			article = articleFromRef(r.ArticleRef())
		}
		if article > 0 {
			byArticle[article] = append(byArticle[article], r.ID)
		}
	}
	for id := range b.predicates {
		if _, ok := ruleIndex[id]; !ok {
			issues = append(issues, fmt.Sprintf("predicate registered for unknown rule %s", id))
		}
	}

	if len(issues) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalogue, strings.Join(issues, "; "))
	}

	reg := b.regulation
	if reg.TotalClauses == 0 {
		reg.TotalClauses = len(b.clauses)
	}

	c := &Catalogue{
		regulation:   reg,
		version:      version,
		clauses:      append([]Clause(nil), b.clauses...),
		requirements: append([]Requirement(nil), b.requirements...),
		rules:        append([]Rule(nil), b.rules...),
		predicates:   make(map[string]Predicate, len(b.predicates)),
		ruleIndex:    ruleIndex,
		byArticle:    byArticle,
	}
	for id, p := range b.predicates {
		c.predicates[id] = p
	}

	c.digest, err = canonicalize.PrefixedHash(struct {
		Regulation   Regulation    `json:"regulation"`
		Version      string        `json:"version"`
		Clauses      []Clause      `json:"clauses"`
		Requirements []Requirement `json:"requirements"`
		Rules        []Rule        `json:"rules"`
	}{reg, version.String(), c.clauses, c.requirements, c.rules})
	if err != nil {
		return nil, fmt.Errorf("%w: digest: %w", ErrInvalidCatalogue, err)
	}
	return c, nil
}

// articleFromRef parses "Article 10" style references.
func articleFromRef(ref string) int {
	fields := strings.Fields(ref)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "article") {
		return 0
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return n
}
