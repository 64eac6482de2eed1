// Package euaiact provides the formalized catalogue for Regulation (EU)
// 2024/1689, Articles 9 to 15: clauses, requirements and rules loaded from
// embedded YAML, paired with a native predicate for every rule.
package euaiact

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/regcoder/pkg/rules"
)

// RegulationID is the registry key of this catalogue.
const RegulationID = "eu-ai-act"

// CatalogueVersion is the semantic version of the embedded rule set.
const CatalogueVersion = "1.0.0"

//go:embed data/*.yaml
var dataFS embed.FS

// Regulation returns the metadata of the EU AI Act.
func Regulation() rules.Regulation {
	return rules.Regulation{
		ID:              RegulationID,
		Title:           "Regulation (EU) 2024/1689 -- Artificial Intelligence Act",
		ShortName:       "EU AI Act",
		DocumentVersion: "2024-1689-oj",
		Jurisdiction:    "European Union",
		Language:        "en",
		SourceURL:       "https://eur-lex.europa.eu/eli/reg/2024/1689/oj",
		TotalArticles:   113,
	}
}

type articleFile struct {
	Article      int                 `yaml:"article"`
	Title        string              `yaml:"title"`
	Clauses      []rules.Clause      `yaml:"clauses"`
	Requirements []rules.Requirement `yaml:"requirements"`
	Rules        []rules.Rule        `yaml:"rules"`
}

// Load builds the catalogue from the embedded article files.
func Load() (*rules.Catalogue, error) {
	files, err := readArticles(dataFS)
	if err != nil {
		return nil, err
	}

	b := rules.NewBuilder(Regulation(), CatalogueVersion)
	for _, f := range files {
		b.AddClauses(f.Clauses...)
		b.AddRequirements(f.Requirements...)
		for _, r := range f.Rules {
			p, ok := predicates[r.ID]
			if !ok {
				return nil, fmt.Errorf("%w: article %d: no predicate for %s", rules.ErrInvalidCatalogue, f.Article, r.ID)
			}
			b.AddRule(r, p)
		}
	}
	return b.Build()
}

// Register adds the embedded catalogue to a registry.
func Register(reg *rules.Registry) error {
	return reg.Register(RegulationID, CatalogueVersion, Load)
}

// ArticleTitles maps article numbers to their headings.
func ArticleTitles() (map[int]string, error) {
	files, err := readArticles(dataFS)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(files))
	for _, f := range files {
		out[f.Article] = f.Title
	}
	return out, nil
}

func readArticles(fsys fs.FS) ([]articleFile, error) {
	names, err := fs.Glob(fsys, "data/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list catalogue data: %w", err)
	}
	sort.Strings(names)

	files := make([]articleFile, 0, len(names))
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var f articleFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", rules.ErrInvalidCatalogue, path.Base(name), err)
		}
		files = append(files, f)
	}
	return files, nil
}
