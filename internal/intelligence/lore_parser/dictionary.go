package lore_parser

import (
	"os"
	"sort"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/LoreKit/pkg/errors"
)

// dictionaryScore is the fixed confidence of every dictionary hit.
const dictionaryScore = 0.93

// Document is a named rule document held in memory.  Name is used in error
// details only.
type Document struct {
	Name string
	Data []byte
}

// entitiesFile mirrors entities*.yaml:
//
//	kinds:
//	  Person:
//	    gazetteer: [Queen Amicae, Lord Rawn]
//	    titles: [Queen, Lord]
type entitiesFile struct {
	Kinds map[string]kindEntry `yaml:"kinds"`
}

type kindEntry struct {
	Gazetteer  []string `yaml:"gazetteer"`
	Titles     []string `yaml:"titles"`
	Honorifics []string `yaml:"honorifics"`
}

// DictionaryEntry is one surface string and the kind it denotes.
type DictionaryEntry struct {
	Kind    Kind
	Surface string
}

// DictionaryMatch is one exact occurrence found by FindAll.
type DictionaryMatch struct {
	Start   int
	End     int
	Kind    Kind
	Surface string
}

// Dictionary is a case-sensitive multi-pattern matcher.  It reports every
// occurrence including overlapping ones.
type Dictionary struct {
	entries []DictionaryEntry

	// automaton patterns are unique surfaces; bySurface fans a pattern index
	// back out to every entry that declared it.
	ac        *ahocorasick.AhoCorasick
	patterns  []string
	bySurface [][]int
}

// EmptyDictionary returns a dictionary that never matches.
func EmptyDictionary() *Dictionary {
	return &Dictionary{}
}

// NewDictionary builds the automaton over entries.
func NewDictionary(entries []DictionaryEntry) (*Dictionary, error) {
	d := &Dictionary{entries: append([]DictionaryEntry(nil), entries...)}
	if err := d.Rebuild(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadDictionary reads a single entities file.  A missing file is an error.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRuleFileUnreadable, "read entities file").WithDetail(path)
	}
	return DictionaryFromDocuments(Document{Name: path, Data: data})
}

// LoadDictionaryMany reads and concatenates several entities files, skipping
// paths that do not exist.
func LoadDictionaryMany(paths ...string) (*Dictionary, error) {
	docs, err := readExisting(paths, "read entities file")
	if err != nil {
		return nil, err
	}
	return DictionaryFromDocuments(docs...)
}

// DictionaryFromDocuments parses entities documents in order and builds one
// dictionary.  Within a document kinds are visited in label order.
func DictionaryFromDocuments(docs ...Document) (*Dictionary, error) {
	var entries []DictionaryEntry
	for _, doc := range docs {
		var f entitiesFile
		if err := yaml.Unmarshal(doc.Data, &f); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeRuleFileMalformed, "parse entities file").WithDetail(doc.Name)
		}
		labels := make([]string, 0, len(f.Kinds))
		for label := range f.Kinds {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			kind := ParseKind(label)
			for _, surface := range f.Kinds[label].Gazetteer {
				entries = append(entries, DictionaryEntry{Kind: kind, Surface: surface})
			}
		}
	}
	return NewDictionary(entries)
}

// AddEntry registers an entry without touching the automaton.  The entry is
// not searchable until Rebuild is called.
func (d *Dictionary) AddEntry(kind Kind, surface string) {
	d.entries = append(d.entries, DictionaryEntry{Kind: kind, Surface: surface})
}

// Rebuild recompiles the automaton from the current entries.
func (d *Dictionary) Rebuild() (err error) {
	index := make(map[string]int, len(d.entries))
	var patterns []string
	var bySurface [][]int
	for i, e := range d.entries {
		if e.Surface == "" {
			continue
		}
		idx, ok := index[e.Surface]
		if !ok {
			idx = len(patterns)
			index[e.Surface] = idx
			patterns = append(patterns, e.Surface)
			bySurface = append(bySurface, nil)
		}
		bySurface[idx] = append(bySurface[idx], i)
	}

	if len(patterns) == 0 {
		d.ac, d.patterns, d.bySurface = nil, nil, nil
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeAutomatonBuild, "build dictionary automaton: %v", r)
		}
	}()
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: false,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.StandardMatch,
	})
	ac := builder.Build(patterns)

	d.ac, d.patterns, d.bySurface = &ac, patterns, bySurface
	return nil
}

// Len returns the number of registered entries, searchable or not.
func (d *Dictionary) Len() int { return len(d.entries) }

// Entries returns a copy of the registered entries.
func (d *Dictionary) Entries() []DictionaryEntry {
	return append([]DictionaryEntry(nil), d.entries...)
}

// FindAll returns every occurrence of every searchable surface in text, in
// the automaton's reporting order.
func (d *Dictionary) FindAll(text string) []DictionaryMatch {
	if d == nil || d.ac == nil || text == "" {
		return nil
	}
	var out []DictionaryMatch
	iter := d.ac.IterOverlapping(text)
	for m := iter.Next(); m != nil; m = iter.Next() {
		for _, ei := range d.bySurface[m.Pattern()] {
			e := d.entries[ei]
			out = append(out, DictionaryMatch{
				Start:   m.Start(),
				End:     m.End(),
				Kind:    e.Kind,
				Surface: e.Surface,
			})
		}
	}
	return out
}

// readExisting reads every path that exists.  A path that exists but cannot be
// read is an error.
func readExisting(paths []string, what string) ([]Document, error) {
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrap(err, errors.ErrCodeRuleFileUnreadable, what).WithDetail(p)
		}
		docs = append(docs, Document{Name: p, Data: data})
	}
	return docs, nil
}
