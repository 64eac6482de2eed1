package compliance

import (
	"fmt"
	"sort"
	"time"

	"github.com/Mindburn-Labs/regcoder/pkg/canonicalize"
	"github.com/Mindburn-Labs/regcoder/pkg/rules"
)

// ArticleScore is the verdict breakdown for one article.
type ArticleScore struct {
	Article       int            `json:"article"`
	Title         string         `json:"title,omitempty"`
	Total         int            `json:"total"`
	Passed        int            `json:"passed"`
	Failed        int            `json:"failed"`
	NotApplicable int            `json:"not_applicable"`
	ManualReview  int            `json:"manual_review"`
	Score         float64        `json:"score"`
	Verdict       OverallVerdict `json:"verdict"`
	FailedRules   []string       `json:"failed_rules"`
}

// Scorecard breaks a report down by article.
type Scorecard struct {
	ScorecardID  string         `json:"scorecard_id"`
	ReportID     string         `json:"report_id"`
	RegulationID string         `json:"regulation_id"`
	SystemName   string         `json:"system_name"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Articles     []ArticleScore `json:"articles"`
	OverallScore float64        `json:"overall_score"`
	ContentHash  string         `json:"content_hash"`
}

// ScorecardBuilder constructs per-article scorecards from reports.
type ScorecardBuilder struct {
	catalogue *rules.Catalogue
	titles    map[int]string
	clock     func() time.Time
}

// NewScorecardBuilder creates a builder that maps rules to articles through
// the catalogue.
func NewScorecardBuilder(cat *rules.Catalogue) *ScorecardBuilder {
	return &ScorecardBuilder{catalogue: cat, clock: time.Now}
}

// WithClock overrides clock for testing.
func (b *ScorecardBuilder) WithClock(clock func() time.Time) *ScorecardBuilder {
	b.clock = clock
	return b
}

// WithTitles attaches article headings.
func (b *ScorecardBuilder) WithTitles(titles map[int]string) *ScorecardBuilder {
	b.titles = titles
	return b
}

// Build creates the scorecard. Each article's verdict follows the same
// thresholds as the report, counting only that article's critical gaps.
// The content hash covers the article breakdown only.
func (b *ScorecardBuilder) Build(report *Report) (*Scorecard, error) {
	byArticle := make(map[int]*ArticleScore)
	critical := make(map[int]int)

	for _, res := range report.RuleResults {
		article := b.catalogue.ArticleOf(res.RuleID)
		as, ok := byArticle[article]
		if !ok {
			as = &ArticleScore{Article: article, Title: b.titles[article], FailedRules: []string{}}
			byArticle[article] = as
		}
		as.Total++
		switch res.Verdict {
		case rules.VerdictPass:
			as.Passed++
		case rules.VerdictFail:
			as.Failed++
			as.FailedRules = append(as.FailedRules, res.RuleID)
			if res.Severity == rules.SeverityCritical {
				critical[article]++
			}
		case rules.VerdictNotApplicable:
			as.NotApplicable++
		case rules.VerdictManualReview:
			as.ManualReview++
		}
	}

	articles := make([]ArticleScore, 0, len(byArticle))
	for n, as := range byArticle {
		as.Score = Score(as.Passed, as.Failed)
		as.Verdict = Verdict(as.Score, critical[n])
		articles = append(articles, *as)
	}
	sort.Slice(articles, func(i, j int) bool { return articles[i].Article < articles[j].Article })

	hash, err := canonicalize.PrefixedHash(articles)
	if err != nil {
		return nil, fmt.Errorf("scorecard hash: %w", err)
	}

	now := b.clock().UTC()
	return &Scorecard{
		ScorecardID:  fmt.Sprintf("sc-%d", now.UnixNano()),
		ReportID:     report.ID,
		RegulationID: report.RegulationID,
		SystemName:   report.SystemName,
		GeneratedAt:  now,
		Articles:     articles,
		OverallScore: report.Summary.ComplianceScore,
		ContentHash:  hash,
	}, nil
}
