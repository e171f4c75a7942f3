package lore_parser

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/LoreKit/pkg/errors"
)

// CalendarConfig is the vocabulary a Calendar generates date rules from.
// A nil list means "not configured"; an empty list is also treated as absent
// when generating.
type CalendarConfig struct {
	Months      []string `yaml:"months" json:"months,omitempty"`
	Epochs      []string `yaml:"epochs" json:"epochs,omitempty"`
	Seasons     []string `yaml:"seasons" json:"seasons,omitempty"`
	DaySuffixes []string `yaml:"day_suffixes" json:"daySuffixes,omitempty"`
}

var (
	defaultMonths = []string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	}
	defaultEpochs      = []string{"AD", "BC", "CE", "BCE"}
	defaultSeasons     = []string{"Spring", "Summer", "Autumn", "Fall", "Winter"}
	defaultDaySuffixes = []string{"st", "nd", "rd", "th"}
)

// Calendar turns a CalendarConfig into Date pattern rules.
type Calendar struct {
	cfg CalendarConfig
}

// DefaultCalendar returns the Gregorian calendar with AD/BC/CE/BCE epochs.
func DefaultCalendar() *Calendar {
	return &Calendar{cfg: CalendarConfig{
		Months:      append([]string(nil), defaultMonths...),
		Epochs:      append([]string(nil), defaultEpochs...),
		Seasons:     append([]string(nil), defaultSeasons...),
		DaySuffixes: append([]string(nil), defaultDaySuffixes...),
	}}
}

// NewCalendar wraps cfg as is, without defaults.
func NewCalendar(cfg CalendarConfig) *Calendar {
	return &Calendar{cfg: cfg}
}

// ParseCalendarConfig decodes a calendar document.
func ParseCalendarConfig(doc Document) (CalendarConfig, error) {
	var cfg CalendarConfig
	if err := yaml.Unmarshal(doc.Data, &cfg); err != nil {
		return CalendarConfig{}, errors.Wrap(err, errors.ErrCodeCalendarMalformed, "parse calendar file").WithDetail(doc.Name)
	}
	return cfg, nil
}

// LoadCalendar reads a calendar file without applying defaults.
func LoadCalendar(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRuleFileUnreadable, "read calendar file").WithDetail(path)
	}
	cfg, err := ParseCalendarConfig(Document{Name: path, Data: data})
	if err != nil {
		return nil, err
	}
	return NewCalendar(cfg), nil
}

// Merge appends every list of override onto c.  Nothing already present is
// dropped.
func (c *Calendar) Merge(override CalendarConfig) *Calendar {
	c.cfg.Months = append(c.cfg.Months, override.Months...)
	c.cfg.Epochs = append(c.cfg.Epochs, override.Epochs...)
	c.cfg.Seasons = append(c.cfg.Seasons, override.Seasons...)
	c.cfg.DaySuffixes = append(c.cfg.DaySuffixes, override.DaySuffixes...)
	return c
}

// Config returns a copy of the current vocabulary.
func (c *Calendar) Config() CalendarConfig {
	return CalendarConfig{
		Months:      append([]string(nil), c.cfg.Months...),
		Epochs:      append([]string(nil), c.cfg.Epochs...),
		Seasons:     append([]string(nil), c.cfg.Seasons...),
		DaySuffixes: append([]string(nil), c.cfg.DaySuffixes...),
	}
}

// Generated rule ids.
const (
	RuleDateMonth  = "date_month"
	RuleEpochYear  = "epoch_year"
	RuleSeasonDate = "season_date"
	RuleFullDate   = "full_date"
)

// GeneratePatterns returns up to four Date rules.  A rule is skipped when a
// vocabulary it needs is empty; full_date needs both months and epochs.
func (c *Calendar) GeneratePatterns() []GeneratedRule {
	months := alternation(c.cfg.Months)
	epochs := alternation(c.cfg.Epochs)
	seasons := alternation(c.cfg.Seasons)
	// Ordinal suffixes are always accepted; day_suffixes adds to them.
	suffixes := alternation(append(append([]string(nil), defaultDaySuffixes...), c.cfg.DaySuffixes...))
	day := `\d{1,2}(?:` + suffixes + `)?`

	var out []GeneratedRule
	if months != "" {
		out = append(out, GeneratedRule{
			ID:    RuleDateMonth,
			Kind:  Date,
			Regex: `\b(` + day + `\s+(?:of\s+)?(?:` + months + `))\b`,
			Score: 0.88,
		})
	}
	if epochs != "" {
		out = append(out, GeneratedRule{
			ID:    RuleEpochYear,
			Kind:  Date,
			Regex: `\b(?:Year\s+)?(\d{1,4}\s+(?:` + epochs + `))\b`,
			Score: 0.90,
		})
	}
	if seasons != "" {
		out = append(out, GeneratedRule{
			ID:    RuleSeasonDate,
			Kind:  Date,
			Regex: `\b((?:Early|Mid|Late)\s+(?:` + seasons + `))\b`,
			Score: 0.85,
		})
	}
	if months != "" && epochs != "" {
		out = append(out, GeneratedRule{
			ID:    RuleFullDate,
			Kind:  Date,
			Regex: `\b(` + day + `\s+(?:of\s+)?(?:` + months + `),?\s+(?:Year\s+)?\d{1,4}\s+(?:` + epochs + `))\b`,
			Score: 0.95,
		})
	}
	return out
}

// alternation quotes and joins words for use inside a regex group.  Longer
// words come first so that "BCE" is tried before "BC".
func alternation(words []string) string {
	seen := make(map[string]struct{}, len(words))
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		quoted = append(quoted, w)
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	for i, w := range quoted {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}
