// Package annotation builds lore parsers from rule documents, caches one
// parser per project and serves annotation requests on top of them.
package annotation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/turtacn/LoreKit/pkg/errors"
)

// ---------------------------------------------------------------------------
// Rule sources
// ---------------------------------------------------------------------------

// RuleSource reads rule documents by file name.  A document that does not
// exist is reported as ErrCodeRuleNotFound.
type RuleSource interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads rule documents from a local directory.
type DirSource struct {
	Dir string
}

// NewDirSource returns a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

// Read implements RuleSource.
func (s *DirSource) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.New(apperrors.ErrCodeRuleNotFound, "rule document not found").WithDetail(path)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRuleFileUnreadable, "read rule document").WithDetail(path)
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// File naming
// ---------------------------------------------------------------------------

// Rule document kinds, used as file name prefixes.
const (
	DocEntities = "entities"
	DocPatterns = "patterns"
	DocCalendar = "calendar"
)

// RuleFiles names the base documents.  Overlays are always
// "<kind>.<project>.yaml".
type RuleFiles struct {
	Entities string
	Patterns string
}

// DefaultRuleFiles returns entities.yaml and patterns.yaml.
func DefaultRuleFiles() RuleFiles {
	return RuleFiles{Entities: DocEntities + ".yaml", Patterns: DocPatterns + ".yaml"}
}

func (f RuleFiles) withDefaults() RuleFiles {
	d := DefaultRuleFiles()
	if f.Entities == "" {
		f.Entities = d.Entities
	}
	if f.Patterns == "" {
		f.Patterns = d.Patterns
	}
	return f
}

// OverlayName returns the overlay file name of kind for project.
func OverlayName(kind, project string) string {
	return fmt.Sprintf("%s.%s.yaml", kind, project)
}

// ValidateProjectID rejects ids that cannot be embedded in an overlay file
// name.
func ValidateProjectID(project string) error {
	switch {
	case strings.TrimSpace(project) == "":
		return apperrors.New(apperrors.ErrCodeInvalidProject, "project id is empty")
	case strings.ContainsAny(project, `/\`) || strings.Contains(project, ".."):
		return apperrors.New(apperrors.ErrCodeInvalidProject, "project id contains a path separator").WithDetail(project)
	case strings.ContainsAny(project, " \t\r\n"):
		return apperrors.New(apperrors.ErrCodeInvalidProject, "project id contains whitespace").WithDetail(project)
	}
	return nil
}

// classifyRuleFile maps a changed file name to what it affects.  base is true
// for the base documents; otherwise project names the overlay's project.
func classifyRuleFile(name string, files RuleFiles) (project string, base, ok bool) {
	name = filepath.Base(name)
	if name == files.Entities || name == files.Patterns {
		return "", true, true
	}
	if !strings.HasSuffix(name, ".yaml") {
		return "", false, false
	}
	stem := strings.TrimSuffix(name, ".yaml")
	for _, kind := range []string{DocEntities, DocPatterns, DocCalendar} {
		if p, found := strings.CutPrefix(stem, kind+"."); found && p != "" {
			return p, false, true
		}
	}
	return "", false, false
}
