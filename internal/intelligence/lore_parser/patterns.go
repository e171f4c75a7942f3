package lore_parser

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/LoreKit/pkg/errors"
)

// Constraints and Hints are parsed from rule files and carried on compiled
// rules.  The matcher does not evaluate them.
type Constraints struct {
	MinLen    *int     `yaml:"min_len" json:"minLen,omitempty"`
	MaxTokens *int     `yaml:"max_tokens" json:"maxTokens,omitempty"`
	Disallow  []string `yaml:"disallow" json:"disallow,omitempty"`
}

type Hints struct {
	Left  []string `yaml:"left" json:"left,omitempty"`
	Right []string `yaml:"right" json:"right,omitempty"`
}

// PatternRule is one rule as written in patterns*.yaml.
type PatternRule struct {
	ID          string       `yaml:"id"`
	Kind        string       `yaml:"kind"`
	Regex       string       `yaml:"regex"`
	Score       float64      `yaml:"score"`
	Constraints *Constraints `yaml:"constraints"`
	Hints       *Hints       `yaml:"hints"`
}

type patternsFile struct {
	Patterns []PatternRule `yaml:"patterns"`
}

// GeneratedRule is a rule produced in code, e.g. by the Calendar.
type GeneratedRule struct {
	ID    string
	Kind  Kind
	Regex string
	Score float64
}

// CompiledPatternRule is a rule ready for matching.
type CompiledPatternRule struct {
	ID          string
	Kind        Kind
	Regex       *regexp.Regexp
	Score       float64
	Constraints Constraints
	Hints       Hints

	nameGroup  int
	titleGroup int
}

func compileRule(id string, kind Kind, expr string, score float64, source string) (CompiledPatternRule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return CompiledPatternRule{}, errors.Wrap(err, errors.ErrCodeInvalidRegex, "compile pattern rule").
			WithDetail(fmt.Sprintf("rule=%s source=%s", id, source))
	}
	return CompiledPatternRule{
		ID:         id,
		Kind:       kind,
		Regex:      re,
		Score:      score,
		nameGroup:  re.SubexpIndex("name"),
		titleGroup: re.SubexpIndex("title"),
	}, nil
}

// PatternMatch is one rule match.  Start/End cover the whole match; Text is
// the "name" group, else the "title" group, else the whole match.
type PatternMatch struct {
	Start int
	End   int
	Text  string
}

// FindAll returns the rule's matches over text.
func (r CompiledPatternRule) FindAll(text string) []PatternMatch {
	var out []PatternMatch
	for _, loc := range r.Regex.FindAllStringSubmatchIndex(text, -1) {
		m := PatternMatch{Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]]}
		if g, ok := group(loc, r.nameGroup); ok {
			m.Text = text[g[0]:g[1]]
		} else if g, ok := group(loc, r.titleGroup); ok {
			m.Text = text[g[0]:g[1]]
		}
		out = append(out, m)
	}
	return out
}

func group(loc []int, idx int) ([2]int, bool) {
	if idx <= 0 || 2*idx+1 >= len(loc) || loc[2*idx] < 0 {
		return [2]int{}, false
	}
	return [2]int{loc[2*idx], loc[2*idx+1]}, true
}

// PatternSet is an ordered, append-only list of compiled rules.
type PatternSet struct {
	rules []CompiledPatternRule
}

// EmptyPatternSet returns a set without rules.
func EmptyPatternSet() *PatternSet {
	return &PatternSet{}
}

// LoadPatterns reads a single patterns file.  A missing file is an error.
func LoadPatterns(path string) (*PatternSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRuleFileUnreadable, "read patterns file").WithDetail(path)
	}
	return PatternsFromDocuments(Document{Name: path, Data: data})
}

// LoadPatternsMany reads and concatenates several patterns files, skipping
// paths that do not exist.
func LoadPatternsMany(paths ...string) (*PatternSet, error) {
	docs, err := readExisting(paths, "read patterns file")
	if err != nil {
		return nil, err
	}
	return PatternsFromDocuments(docs...)
}

// PatternsFromDocuments parses and compiles rules from docs in order.  The
// first invalid regex aborts with its rule id and document name.
func PatternsFromDocuments(docs ...Document) (*PatternSet, error) {
	ps := &PatternSet{}
	for _, doc := range docs {
		var f patternsFile
		if err := yaml.Unmarshal(doc.Data, &f); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeRuleFileMalformed, "parse patterns file").WithDetail(doc.Name)
		}
		for _, r := range f.Patterns {
			rule, err := compileRule(r.ID, ParseKind(r.Kind), r.Regex, r.Score, doc.Name)
			if err != nil {
				return nil, err
			}
			if r.Constraints != nil {
				rule.Constraints = *r.Constraints
			}
			if r.Hints != nil {
				rule.Hints = *r.Hints
			}
			ps.rules = append(ps.rules, rule)
		}
	}
	return ps, nil
}

// AddPattern compiles and appends one rule.
func (ps *PatternSet) AddPattern(id string, kind Kind, expr string, score float64) error {
	rule, err := compileRule(id, kind, expr, score, "inline")
	if err != nil {
		return err
	}
	ps.rules = append(ps.rules, rule)
	return nil
}

// WithExtra compiles and appends generated rules, returning ps.
func (ps *PatternSet) WithExtra(extra []GeneratedRule) (*PatternSet, error) {
	for _, g := range extra {
		rule, err := compileRule(g.ID, g.Kind, g.Regex, g.Score, "generated")
		if err != nil {
			return nil, err
		}
		ps.rules = append(ps.rules, rule)
	}
	return ps, nil
}

// Rules returns a copy of the compiled rules in evaluation order.
func (ps *PatternSet) Rules() []CompiledPatternRule {
	return append([]CompiledPatternRule(nil), ps.rules...)
}

// Len returns the number of rules.
func (ps *PatternSet) Len() int { return len(ps.rules) }
