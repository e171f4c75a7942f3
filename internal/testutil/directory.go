package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
)

// StaticDirectory is an in-memory entity directory.  Err, when set, is
// returned by every lookup.
type StaticDirectory struct {
	mu      sync.Mutex
	Entries []lore_parser.Link
	Err     error
	Calls   int
}

// NewStaticDirectory builds a directory from (kind, name) pairs; ids are
// "<slug>-id" and slugs are derived with lore_parser.Slugify.
func NewStaticDirectory(entries map[string]lore_parser.Kind) *StaticDirectory {
	d := &StaticDirectory{}
	for name, kind := range entries {
		slug := lore_parser.Slugify(name)
		id := slug + "-id"
		d.Entries = append(d.Entries, lore_parser.Link{ID: &id, Slug: &slug, Name: name, Kind: kind})
	}
	return d
}

func (d *StaticDirectory) find(match func(l lore_parser.Link) bool) (*lore_parser.Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls++
	if d.Err != nil {
		return nil, d.Err
	}
	for _, l := range d.Entries {
		if match(l) {
			found := l
			return &found, nil
		}
	}
	return nil, nil
}

func (d *StaticDirectory) FindByKind(_ context.Context, kind lore_parser.Kind, text string) (*lore_parser.Link, error) {
	return d.find(func(l lore_parser.Link) bool { return l.Kind == kind && l.Name == text })
}

func (d *StaticDirectory) FindBySlug(_ context.Context, slug string) (*lore_parser.Link, error) {
	return d.find(func(l lore_parser.Link) bool { return l.Slug != nil && *l.Slug == slug })
}

func (d *StaticDirectory) FindByName(_ context.Context, kind lore_parser.Kind, name string) (*lore_parser.Link, error) {
	return d.find(func(l lore_parser.Link) bool { return l.Kind == kind && strings.ToLower(l.Name) == name })
}

// CallCount returns the number of lookups served.
func (d *StaticDirectory) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Calls
}
