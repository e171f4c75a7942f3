// Package kafka publishes annotation events and consumes rule-change
// notifications over Kafka.
package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/turtacn/LoreKit/internal/application/annotation"
)

// Topic defaults.
const (
	TopicAnnotations = "lore.annotations"
	TopicRuleChanges = "lore.rules.changed"
)

// Header keys set on every produced message.
const (
	HeaderContentType = "content-type"
	HeaderEventType   = "event-type"
)

// Event types carried in HeaderEventType.
const (
	EventTypeAnnotation = "lore.annotation.v1"
	EventTypeRuleChange = "lore.rules.changed.v1"
)

// RuleChange tells every replica that rule documents changed.  All reloads
// the base parser and drops every cached project; otherwise only Project is
// dropped.
type RuleChange struct {
	Project   string    `json:"project,omitempty"`
	All       bool      `json:"all,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

// Validate rejects a change naming neither a project nor All.
func (c RuleChange) Validate() error {
	if c.All {
		return nil
	}
	if c.Project == "" {
		return fmt.Errorf("rule change names no project")
	}
	return annotation.ValidateProjectID(c.Project)
}

// Key returns the partition key: the project, or "*" for All.
func (c RuleChange) Key() string {
	if c.All {
		return "*"
	}
	return c.Project
}

// DecodeRuleChange parses and validates a rule-change payload.
func DecodeRuleChange(data []byte) (RuleChange, error) {
	var c RuleChange
	if err := json.Unmarshal(data, &c); err != nil {
		return RuleChange{}, err
	}
	return c, c.Validate()
}
