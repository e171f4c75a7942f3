package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Sample rule documents shared by tests across packages.
const (
	EntitiesYAML = `kinds:
  Person:
    gazetteer: [Queen Amicae, Lord Rawn]
  Place:
    gazetteer: [Storm Coast]
  Creature:
    gazetteer: [Mind Reaver]
  Item:
    gazetteer: [Scorchblade]
`
	PatternsYAML = `patterns:
  - id: titled_person
    kind: Person
    regex: '(?:Lord|Lady|Queen)\s+(?P<name>[A-Z][a-z]+)'
    score: 0.9
`
	MythosEntitiesYAML = `kinds:
  Person:
    gazetteer: [Theron Blackwood]
  Place:
    gazetteer: [Crystal Spire]
`
	MythosCalendarYAML = `months: [Stormtide, Frostfall]
epochs: [AE]
`
)

// WriteRuleFiles writes files (name → content) into a fresh temp directory and
// returns it.
func WriteRuleFiles(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// BaseRuleFiles returns the base documents only.
func BaseRuleFiles() map[string]string {
	return map[string]string{
		"entities.yaml": EntitiesYAML,
		"patterns.yaml": PatternsYAML,
	}
}

// MythosRuleFiles returns the base documents plus the "mythos" overlays.
func MythosRuleFiles() map[string]string {
	files := BaseRuleFiles()
	files["entities.mythos.yaml"] = MythosEntitiesYAML
	files["calendar.mythos.yaml"] = MythosCalendarYAML
	return files
}
