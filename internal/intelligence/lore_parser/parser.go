package lore_parser

import (
	"math"
	"sort"
)

const (
	corefPatternID = "coref"
	corefDecay     = 0.9
	corefMaxScore  = 0.85
)

// Parser runs the annotation pipeline over immutable compiled state.  A Parser
// is safe for concurrent use once built.
type Parser struct {
	dict     *Dictionary
	patterns *PatternSet
}

// ParserStats summarises what a Parser was built from.
type ParserStats struct {
	DictionaryEntries int `json:"dictionaryEntries"`
	PatternRules      int `json:"patternRules"`
}

// NewParser returns a Parser over dict and patterns.  Either may be nil.
func NewParser(dict *Dictionary, patterns *PatternSet) *Parser {
	if dict == nil {
		dict = EmptyDictionary()
	}
	if patterns == nil {
		patterns = EmptyPatternSet()
	}
	return &Parser{dict: dict, patterns: patterns}
}

// Stats reports the size of the compiled state.
func (p *Parser) Stats() ParserStats {
	return ParserStats{
		DictionaryEntries: p.dict.Len(),
		PatternRules:      p.patterns.Len(),
	}
}

// ParseRequest parses req.Text and, when req.Kinds is set, keeps only hits of
// those kinds.
func (p *Parser) ParseRequest(req ParseRequest) ParseResponse {
	resp := p.Parse(req.Text, req.FuzzyOrDefault())
	if len(req.Kinds) == 0 {
		return resp
	}
	allowed := make(map[Kind]struct{}, len(req.Kinds))
	for _, k := range req.Kinds {
		allowed[k] = struct{}{}
	}
	kept := resp.Hits[:0]
	for _, h := range resp.Hits {
		if _, ok := allowed[h.Kind]; ok {
			kept = append(kept, h)
		}
	}
	resp.Hits = kept
	return resp
}

// Parse annotates text.  It never fails: empty text yields an empty response.
func (p *Parser) Parse(text string, fuzzy bool) ParseResponse {
	tokens := Tokenize(text)
	zones := FindStopZones(text)

	var hits []EntityHit
	for _, m := range p.dict.FindAll(text) {
		if InZones(zones, m.Start, m.End) {
			continue
		}
		hits = append(hits, EntityHit{
			Kind:   m.Kind,
			Span:   Span{Start: m.Start, End: m.End, Text: text[m.Start:m.End]},
			Source: SourceDictionary,
			Score:  dictionaryScore,
		})
	}

	for _, rule := range p.patterns.rules {
		for _, m := range rule.FindAll(text) {
			if InZones(zones, m.Start, m.End) {
				continue
			}
			hits = append(hits, EntityHit{
				Kind:      rule.Kind,
				Span:      Span{Start: m.Start, End: m.End, Text: m.Text},
				Source:    SourcePattern,
				PatternID: strPtr(rule.ID),
				Score:     rule.Score,
			})
		}
	}

	hits = DedupeMerge(hits)

	if fuzzy {
		hits = DedupeMerge(append(hits, FuzzyCandidates(text)...))
	}

	for i := range hits {
		hits[i].Score = ContextScore(text, hits[i])
	}

	hits = append(hits, resolveCoref(text, hits)...)

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Span.Start != hits[j].Span.Start {
			return hits[i].Span.Start < hits[j].Span.Start
		}
		return scoreKey(hits[i].Score) > scoreKey(hits[j].Score)
	})

	if hits == nil {
		hits = make([]EntityHit, 0)
	}
	return ParseResponse{Hits: hits, Tokens: tokens}
}

func scoreKey(s float64) int {
	return int(math.Trunc(s * 1000))
}

// resolveCoref links pronouns and "the <Title>" phrases to the nearest
// preceding Person hit.  Candidates overlapping an existing hit are skipped.
// The returned hits are not merged with each other or with hits.
func resolveCoref(text string, hits []EntityHit) []EntityHit {
	if len(hits) == 0 {
		return nil
	}

	var persons []EntityHit
	for _, h := range hits {
		if h.Kind == Person {
			persons = append(persons, h)
		}
	}
	if len(persons) == 0 {
		return nil
	}
	sort.SliceStable(persons, func(i, j int) bool { return persons[i].Span.Start < persons[j].Span.Start })

	var out []EntityHit
	for _, cand := range CorefCandidates(text) {
		ant, ok := antecedent(persons, cand.Start)
		if !ok || overlapsAny(hits, cand) {
			continue
		}
		out = append(out, EntityHit{
			Kind:      Person,
			Span:      cand,
			Source:    SourceFuzzy,
			PatternID: strPtr(corefPatternID),
			Score:     math.Min(ant.Score*corefDecay, corefMaxScore),
			Link:      corefLink(ant),
		})
	}
	return out
}

func antecedent(persons []EntityHit, start int) (EntityHit, bool) {
	for i := len(persons) - 1; i >= 0; i-- {
		if persons[i].Span.Start < start {
			return persons[i], true
		}
	}
	return EntityHit{}, false
}

func overlapsAny(hits []EntityHit, s Span) bool {
	for _, h := range hits {
		if overlaps(h.Span.Start, h.Span.End, s.Start, s.End) {
			return true
		}
	}
	return false
}

func corefLink(ant EntityHit) *Link {
	link := &Link{Name: ant.Span.Text, Kind: Person}
	if ant.Link != nil {
		link.ID = ant.Link.ID
		link.Slug = ant.Link.Slug
	}
	if link.Slug == nil {
		link.Slug = strPtr(Slugify(ant.Span.Text))
	}
	return link
}
