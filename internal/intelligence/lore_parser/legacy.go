package lore_parser

import "regexp"

// EntityCandidate is a coarse mention found by QuickExtract.
type EntityCandidate struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

var (
	quickPerson = regexp.MustCompile(`\b(?:Lord|Lady|Sir|Dame|Prince|Princess)\s+[A-Z][a-zA-Z']+\b`)
	quickPlace  = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)\b`)
	quickItem   = regexp.MustCompile(`\bThe\s+[A-Z][a-zA-Z']+\b`)
)

// QuickExtract is the rule-free extractor: honorific persons, multi-word
// capitalised places and "The <Name>" items.  It needs no configuration and
// does not dedupe across kinds.
func QuickExtract(text string) []EntityCandidate {
	out := make([]EntityCandidate, 0)
	for _, m := range quickPerson.FindAllString(text, -1) {
		out = append(out, EntityCandidate{Text: m, Kind: "Person"})
	}
	for _, m := range quickPlace.FindAllString(text, -1) {
		out = append(out, EntityCandidate{Text: m, Kind: "Place"})
	}
	for _, m := range quickItem.FindAllString(text, -1) {
		out = append(out, EntityCandidate{Text: m, Kind: "Item"})
	}
	return out
}
