package lore_parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuickExtract(t *testing.T) {
	t.Parallel()
	got := QuickExtract("Sir Aldric rode from Storm Coast to find The Scorchblade.")

	assert.Contains(t, got, EntityCandidate{Text: "Sir Aldric", Kind: "Person"})
	assert.Contains(t, got, EntityCandidate{Text: "Storm Coast", Kind: "Place"})
	assert.Contains(t, got, EntityCandidate{Text: "The Scorchblade", Kind: "Item"})
	assert.NotContains(t, got, EntityCandidate{Text: "Aldric", Kind: "Place"})
}

func TestQuickExtract_NoMatches(t *testing.T) {
	t.Parallel()
	got := QuickExtract("nothing capitalised here")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
