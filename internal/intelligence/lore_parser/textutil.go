package lore_parser

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// ─────────────────────────────────────────────────────────────────────────────
// Tokenizer
// ─────────────────────────────────────────────────────────────────────────────

// Tokenize splits s into UAX #29 words, keeping only segments that contain a
// letter or digit.  Punctuation and whitespace are dropped; diacritics stay.
func Tokenize(s string) []string {
	out := make([]string, 0)
	state := -1
	var word string
	for len(s) > 0 {
		word, s, state = uniseg.FirstWordInString(s, state)
		if isWordToken(word) {
			out = append(out, word)
		}
	}
	return out
}

func isWordToken(w string) bool {
	for _, r := range w {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Stop zones
// ─────────────────────────────────────────────────────────────────────────────

// Zone is an excluded byte range [Start, End).
type Zone struct {
	Start int
	End   int
}

var stopZonePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```.*?```"),
	regexp.MustCompile("`[^`]*`"),
	regexp.MustCompile(`(?s)"[^"]*"`),
	regexp.MustCompile(`(?s)'[^']*'`),
	regexp.MustCompile("(?s)“[^”]*”"),
	regexp.MustCompile("(?s)‘[^’]*’"),
}

// FindStopZones returns the code and quote ranges of text, sorted by start
// and merged so that no two zones touch or overlap.
func FindStopZones(text string) []Zone {
	var zones []Zone
	for _, re := range stopZonePatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			zones = append(zones, Zone{Start: loc[0], End: loc[1]})
		}
	}
	return mergeZones(zones)
}

func mergeZones(zones []Zone) []Zone {
	if len(zones) == 0 {
		return nil
	}
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].Start < zones[j].Start })

	out := make([]Zone, 0, len(zones))
	for _, z := range zones {
		if n := len(out); n > 0 && z.Start <= out[n-1].End {
			if z.End > out[n-1].End {
				out[n-1].End = z.End
			}
			continue
		}
		out = append(out, z)
	}
	return out
}

// InZones reports whether [start, end) intersects any zone.  zones must be the
// sorted, merged output of FindStopZones.
func InZones(zones []Zone, start, end int) bool {
	lo, hi := 0, len(zones)
	for lo < hi {
		mid := (lo + hi) / 2
		z := zones[mid]
		switch {
		case end <= z.Start:
			hi = mid
		case start >= z.End:
			lo = mid + 1
		default:
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Overlap resolution
// ─────────────────────────────────────────────────────────────────────────────

func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return !(aEnd <= bStart || aStart >= bEnd)
}

// DedupeMerge reduces hits to a pairwise non-overlapping set.  Hits are
// visited by start ascending then length descending; an overlapping hit
// replaces the kept one when it scores higher, or scores the same and is
// longer.
func DedupeMerge(hits []EntityHit) []EntityHit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Span.Start != hits[j].Span.Start {
			return hits[i].Span.Start < hits[j].Span.Start
		}
		return hits[i].Span.Len() > hits[j].Span.Len()
	})

	out := make([]EntityHit, 0, len(hits))
next:
	for _, h := range hits {
		for i := range out {
			o := &out[i]
			if !overlaps(h.Span.Start, h.Span.End, o.Span.Start, o.Span.End) {
				continue
			}
			if h.Score > o.Score || (h.Score == o.Score && h.Span.Len() > o.Span.Len()) {
				*o = h
			}
			continue next
		}
		out = append(out, h)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Context rescoring
// ─────────────────────────────────────────────────────────────────────────────

var (
	personTitleCues = []string{"Lord", "Lady", "Queen", "Captain", "Archmage"}
	placeCues       = []string{"of", "at", "near"}
)

// TitleWords returns the title vocabulary shared by rescoring and
// coreference.
func TitleWords() []string {
	return append([]string(nil), personTitleCues...)
}

// leftWord returns the whitespace-delimited word immediately before offset,
// skipping the whitespace that separates it from the hit.
func leftWord(text string, offset int) string {
	left := strings.TrimRightFunc(text[:offset], unicode.IsSpace)
	idx := strings.LastIndexFunc(left, unicode.IsSpace)
	if idx < 0 {
		return left
	}
	_, size := utf8.DecodeRuneInString(left[idx:])
	return left[idx+size:]
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// ContextScore recomputes h's score from its left context and casing, clamped
// to [0, 0.99].
func ContextScore(text string, h EntityHit) float64 {
	left := leftWord(text, h.Span.Start)
	s := h.Score

	if h.Kind == Person && hasAnySuffix(left, personTitleCues) {
		s += 0.05
	}
	if h.Kind == Place && hasAnySuffix(left, placeCues) {
		s += 0.04
	}
	if strings.HasSuffix(left, "the") {
		s += 0.02
	}
	if r, _ := utf8.DecodeRuneInString(h.Span.Text); r != utf8.RuneError && unicode.IsUpper(r) {
		s += 0.01
	}

	return clamp(s, 0, 0.99)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ─────────────────────────────────────────────────────────────────────────────
// Fuzzy candidates
// ─────────────────────────────────────────────────────────────────────────────

// RE2 word boundaries are ASCII-only, so the phrase ends where the greedy
// letter run ends and dangling apostrophes or hyphens are trimmed afterwards.
var fuzzyPhrase = regexp.MustCompile(`\b[A-Z][\p{L}'-]+(?:\s+[A-Z][\p{L}'-]+){0,2}`)

const fuzzyScore = 0.5

// UnknownKind is the kind assigned to fuzzy candidates.
var UnknownKind = CustomKind("Unknown")

// FuzzyCandidates returns every run of one to three capitalised words as a
// low-confidence hit of kind Custom("Unknown").
func FuzzyCandidates(text string) []EntityHit {
	var out []EntityHit
	for _, loc := range fuzzyPhrase.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		trimmed := strings.TrimRight(text[start:end], "'-")
		end = start + len(trimmed)
		if utf8.RuneCountInString(lastField(trimmed)) < 2 {
			continue
		}
		out = append(out, EntityHit{
			Kind:   UnknownKind,
			Span:   Span{Start: start, End: end, Text: trimmed},
			Source: SourceFuzzy,
			Score:  fuzzyScore,
		})
	}
	return out
}

func lastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// ─────────────────────────────────────────────────────────────────────────────
// Coreference candidates
// ─────────────────────────────────────────────────────────────────────────────

var (
	pronounPattern = regexp.MustCompile(`\b(?:she|her|hers|he|him|his|they|them|theirs)\b`)
	titlePhrase    = regexp.MustCompile(`(?i)\bthe\s+(?:` + strings.Join(personTitleCues, "|") + `)\b`)
)

// CorefCandidates returns lowercase pronouns followed by "the <Title>"
// phrases, each group in text order.
func CorefCandidates(text string) []Span {
	var out []Span
	for _, re := range []*regexp.Regexp{pronounPattern, titlePhrase} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			out = append(out, Span{Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]]})
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Slugs
// ─────────────────────────────────────────────────────────────────────────────

// Slugify lowercases s, turns every non-alphanumeric rune into a separator
// and joins the remaining runs with single hyphens.
func Slugify(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsNumber(r))
	})
	return strings.Join(parts, "-")
}
