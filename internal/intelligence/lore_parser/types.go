// Package lore_parser annotates narrative prose with mentions of world
// entities.  It combines an exact-string dictionary, compiled pattern rules,
// generated date rules, code/quote stop zones, overlap resolution, contextual
// rescoring and a light coreference pass into one deterministic pipeline.
//
// Everything in this package is pure once built: a Parser holds immutable
// compiled state and may be shared across goroutines.
package lore_parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Kind
// ─────────────────────────────────────────────────────────────────────────────

type kindTag uint8

const (
	tagPerson kindTag = iota + 1
	tagPlace
	tagFaction
	tagItem
	tagCreature
	tagMagic
	tagDate
	tagCustom
)

var kindNames = map[kindTag]string{
	tagPerson:   "Person",
	tagPlace:    "Place",
	tagFaction:  "Faction",
	tagItem:     "Item",
	tagCreature: "Creature",
	tagMagic:    "Magic",
	tagDate:     "Date",
}

// Kind is the entity category of a hit.  It is either one of the seven closed
// variants or Custom carrying the unrecognised label.  Kind is comparable and
// can be used as a map key.
type Kind struct {
	tag    kindTag
	custom string
}

// Closed variants.
var (
	Person   = Kind{tag: tagPerson}
	Place    = Kind{tag: tagPlace}
	Faction  = Kind{tag: tagFaction}
	Item     = Kind{tag: tagItem}
	Creature = Kind{tag: tagCreature}
	Magic    = Kind{tag: tagMagic}
	Date     = Kind{tag: tagDate}
)

// CustomKind returns the open variant carrying name.
func CustomKind(name string) Kind {
	return Kind{tag: tagCustom, custom: name}
}

// ParseKind maps a configuration label to a Kind.  The seven closed labels are
// matched exactly; anything else becomes CustomKind(label).
func ParseKind(label string) Kind {
	for tag, name := range kindNames {
		if name == label {
			return Kind{tag: tag}
		}
	}
	return CustomKind(label)
}

// IsCustom reports whether k is the open variant.
func (k Kind) IsCustom() bool { return k.tag == tagCustom }

// CustomName returns the payload of a Custom kind, or "".
func (k Kind) CustomName() string { return k.custom }

// String returns the configuration label of k.
func (k Kind) String() string {
	if k.tag == tagCustom {
		return k.custom
	}
	if name, ok := kindNames[k.tag]; ok {
		return name
	}
	return ""
}

// MarshalJSON encodes closed variants as their lower-camel name and Custom as
// {"custom": name}.
func (k Kind) MarshalJSON() ([]byte, error) {
	if k.tag == tagCustom {
		return json.Marshal(map[string]string{"custom": k.custom})
	}
	name, ok := kindNames[k.tag]
	if !ok {
		return nil, fmt.Errorf("lore_parser: cannot marshal zero Kind")
	}
	return json.Marshal(lowerFirst(name))
}

// UnmarshalJSON accepts "person", "Person", {"custom": "X"} and a bare custom
// label such as "Artifact".  Bare labels fold case for the closed kinds and
// for "Unknown", the kind of fuzzy hits; other custom labels are kept as
// written.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		for tag, name := range kindNames {
			if strings.EqualFold(name, label) {
				*k = Kind{tag: tag}
				return nil
			}
		}
		if strings.EqualFold(label, UnknownKind.custom) {
			*k = UnknownKind
			return nil
		}
		*k = CustomKind(label)
		return nil
	}
	var obj struct {
		Custom *string `json:"custom"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("lore_parser: invalid kind %s: %w", string(data), err)
	}
	if obj.Custom == nil {
		return fmt.Errorf("lore_parser: invalid kind %s", string(data))
	}
	*k = CustomKind(*obj.Custom)
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ─────────────────────────────────────────────────────────────────────────────
// HitSource
// ─────────────────────────────────────────────────────────────────────────────

// HitSource records which stage produced a hit.  It never changes after the
// hit is created.
type HitSource uint8

const (
	SourceDictionary HitSource = iota
	SourcePattern
	SourceFuzzy
)

func (s HitSource) String() string {
	switch s {
	case SourceDictionary:
		return "dictionary"
	case SourcePattern:
		return "pattern"
	case SourceFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

func (s HitSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *HitSource) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v {
	case "dictionary":
		*s = SourceDictionary
	case "pattern":
		*s = SourcePattern
	case "fuzzy":
		*s = SourceFuzzy
	default:
		return fmt.Errorf("lore_parser: unknown hit source %q", v)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Records
// ─────────────────────────────────────────────────────────────────────────────

// Span is a byte range of the source text: Text == source[Start:End].
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Len returns End-Start.
func (s Span) Len() int { return s.End - s.Start }

// Link references a record of the external entity directory.
type Link struct {
	ID   *string `json:"id"`
	Slug *string `json:"slug"`
	Name string  `json:"name"`
	Kind Kind    `json:"kind"`
}

// EntityHit is one detected mention.
type EntityHit struct {
	Kind      Kind      `json:"kind"`
	Span      Span      `json:"span"`
	Source    HitSource `json:"source"`
	PatternID *string   `json:"patternId"`
	Score     float64   `json:"score"`
	Link      *Link     `json:"link"`
}

// ParseRequest is the request-time input of the pipeline.
type ParseRequest struct {
	Text      string  `json:"text"`
	ProjectID *string `json:"projectId,omitempty"`
	Kinds     []Kind  `json:"kinds,omitempty"`
	Fuzzy     *bool   `json:"fuzzy,omitempty"`
}

// FuzzyOrDefault returns Fuzzy, defaulting to true.
func (r ParseRequest) FuzzyOrDefault() bool {
	if r.Fuzzy == nil {
		return true
	}
	return *r.Fuzzy
}

// ParseResponse is the ordered output of the pipeline.
type ParseResponse struct {
	Hits   []EntityHit `json:"hits"`
	Tokens []string    `json:"tokens"`
}

func strPtr(s string) *string { return &s }
