package client

import (
	"encoding/json"
	"fmt"
)

// Kind is an entity kind as it appears on the wire: a lower-camel label for
// the built-in kinds and {"custom": label} for project-defined ones.
type Kind struct {
	Label  string
	Custom bool
}

var (
	KindPerson   = Kind{Label: "person"}
	KindPlace    = Kind{Label: "place"}
	KindFaction  = Kind{Label: "faction"}
	KindItem     = Kind{Label: "item"}
	KindCreature = Kind{Label: "creature"}
	KindMagic    = Kind{Label: "magic"}
	KindDate     = Kind{Label: "date"}
)

// CustomKind returns the open variant with the given label.
func CustomKind(label string) Kind { return Kind{Label: label, Custom: true} }

func (k Kind) String() string { return k.Label }

func (k Kind) MarshalJSON() ([]byte, error) {
	if k.Custom {
		return json.Marshal(map[string]string{"custom": k.Label})
	}
	return json.Marshal(k.Label)
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		*k = Kind{Label: label}
		return nil
	}
	var obj struct {
		Custom *string `json:"custom"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj.Custom == nil {
		return fmt.Errorf("client: invalid kind %s", string(data))
	}
	*k = CustomKind(*obj.Custom)
	return nil
}

// Span is a half-open byte range of the parsed text.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Link is the directory record a hit resolved to.
type Link struct {
	ID   *string `json:"id"`
	Slug *string `json:"slug"`
	Name string  `json:"name"`
	Kind Kind    `json:"kind"`
}

// Hit is one detected mention.  Source is "dictionary", "pattern" or "fuzzy".
type Hit struct {
	Kind      Kind    `json:"kind"`
	Span      Span    `json:"span"`
	Source    string  `json:"source"`
	PatternID *string `json:"patternId"`
	Score     float64 `json:"score"`
	Link      *Link   `json:"link"`
}

// ParseRequest is the body of POST /api/v1/parse.  A nil Fuzzy lets the
// server apply its default.
type ParseRequest struct {
	Text      string  `json:"text"`
	ProjectID *string `json:"projectId,omitempty"`
	Kinds     []Kind  `json:"kinds,omitempty"`
	Fuzzy     *bool   `json:"fuzzy,omitempty"`
}

// ParseResponse lists hits in text order and the word tokens of the text.
type ParseResponse struct {
	Hits   []Hit    `json:"hits"`
	Tokens []string `json:"tokens"`
}

// Candidate is one rule-free extraction result.
type Candidate struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

// Liveness is the body of GET /healthz.
type Liveness struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// Readiness is the body of GET /readyz.
type Readiness struct {
	Status     string                    `json:"status"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
}

// ComponentCheck is the probe result of one dependency.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}
