package lore_parser

import "strings"

// EntityLookup resolves a (kind, text) pair or a case-folded name against an
// entity directory.
type EntityLookup interface {
	Lookup(kind Kind, text string) (Link, bool)
}

// EntityLookupFunc adapts a function to EntityLookup.
type EntityLookupFunc func(kind Kind, text string) (Link, bool)

// Lookup calls f.
func (f EntityLookupFunc) Lookup(kind Kind, text string) (Link, bool) { return f(kind, text) }

// SlugLookup resolves a slug against an entity directory.
type SlugLookup interface {
	LookupSlug(slug string) (Link, bool)
}

// SlugLookupFunc adapts a function to SlugLookup.
type SlugLookupFunc func(slug string) (Link, bool)

// LookupSlug calls f.
func (f SlugLookupFunc) LookupSlug(slug string) (Link, bool) { return f(slug) }

// LinkEntities sets Link on every hit for which lookup knows (kind, text).
// Unresolved hits are returned unchanged.
func LinkEntities(hits []EntityHit, lookup EntityLookup) []EntityHit {
	for i := range hits {
		if link, ok := lookup.Lookup(hits[i].Kind, hits[i].Span.Text); ok {
			hits[i].Link = &link
		}
	}
	return hits
}

// LinkWithSlug resolves hits by ToSlug of their surface text.
func LinkWithSlug(hits []EntityHit, lookup SlugLookup) []EntityHit {
	for i := range hits {
		if link, ok := lookup.LookupSlug(ToSlug(hits[i].Span.Text)); ok {
			hits[i].Link = &link
		}
	}
	return hits
}

// LinkByName resolves hits by their lowercased surface text.
func LinkByName(hits []EntityHit, lookup EntityLookup) []EntityHit {
	for i := range hits {
		if link, ok := lookup.Lookup(hits[i].Kind, strings.ToLower(hits[i].Span.Text)); ok {
			hits[i].Link = &link
		}
	}
	return hits
}

// ToSlug is the linker's slug form: spaces become hyphens, then lowercase.
// Unlike Slugify it keeps punctuation.
func ToSlug(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "-"))
}
