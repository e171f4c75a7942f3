package annotation

import (
	"context"
	"time"

	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
	apperrors "github.com/turtacn/LoreKit/pkg/errors"
)

// ProjectBuilder builds the parser of one project.
type ProjectBuilder interface {
	BuildProject(ctx context.Context, project string) (*lore_parser.Parser, error)
}

// Builder assembles parsers from a RuleSource: base documents, optional
// project overlays and a calendar of generated date rules.
type Builder struct {
	source RuleSource
	files  RuleFiles
	logger logging.Logger
}

// NewBuilder returns a Builder reading from source.
func NewBuilder(source RuleSource, files RuleFiles, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Builder{source: source, files: files.withDefaults(), logger: logger.Named("builder")}
}

// BuildBase builds the parser used when a request names no project.  Both
// base documents must exist.
func (b *Builder) BuildBase(ctx context.Context) (*lore_parser.Parser, error) {
	return b.build(ctx, "")
}

// BuildProject builds the parser of project: base documents plus whatever
// overlays exist.  A missing overlay is not an error; a malformed one is.
func (b *Builder) BuildProject(ctx context.Context, project string) (*lore_parser.Parser, error) {
	if err := ValidateProjectID(project); err != nil {
		return nil, err
	}
	return b.build(ctx, project)
}

func (b *Builder) build(ctx context.Context, project string) (*lore_parser.Parser, error) {
	start := time.Now()

	entityDocs, err := b.documents(ctx, b.files.Entities, DocEntities, project)
	if err != nil {
		return nil, err
	}
	dict, err := lore_parser.DictionaryFromDocuments(entityDocs...)
	if err != nil {
		return nil, err
	}

	patternDocs, err := b.documents(ctx, b.files.Patterns, DocPatterns, project)
	if err != nil {
		return nil, err
	}
	patterns, err := lore_parser.PatternsFromDocuments(patternDocs...)
	if err != nil {
		return nil, err
	}

	cal, err := b.calendar(ctx, project)
	if err != nil {
		return nil, err
	}
	if patterns, err = patterns.WithExtra(cal.GeneratePatterns()); err != nil {
		return nil, err
	}

	parser := lore_parser.NewParser(dict, patterns)
	stats := parser.Stats()
	b.logger.Info("parser built",
		logging.String("project", projectLabel(project)),
		logging.Int("entities", stats.DictionaryEntries),
		logging.Int("rules", stats.PatternRules),
		logging.Duration("elapsed", time.Since(start)),
	)
	return parser, nil
}

// documents returns the base document followed by the project overlay when
// one exists.
func (b *Builder) documents(ctx context.Context, base, kind, project string) ([]lore_parser.Document, error) {
	data, err := b.source.Read(ctx, base)
	if err != nil {
		return nil, err
	}
	docs := []lore_parser.Document{{Name: base, Data: data}}
	if project == "" {
		return docs, nil
	}

	name := OverlayName(kind, project)
	overlay, ok, err := b.readOptional(ctx, name)
	if err != nil {
		return nil, err
	}
	if ok {
		docs = append(docs, lore_parser.Document{Name: name, Data: overlay})
	}
	return docs, nil
}

// calendar returns the project's own calendar when it has one and the
// default calendar otherwise.  The two are not combined.
func (b *Builder) calendar(ctx context.Context, project string) (*lore_parser.Calendar, error) {
	if project == "" {
		return lore_parser.DefaultCalendar(), nil
	}
	name := OverlayName(DocCalendar, project)
	data, ok, err := b.readOptional(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return lore_parser.DefaultCalendar(), nil
	}
	cfg, err := lore_parser.ParseCalendarConfig(lore_parser.Document{Name: name, Data: data})
	if err != nil {
		return nil, err
	}
	return lore_parser.NewCalendar(cfg), nil
}

func (b *Builder) readOptional(ctx context.Context, name string) ([]byte, bool, error) {
	data, err := b.source.Read(ctx, name)
	if apperrors.IsCode(err, apperrors.ErrCodeRuleNotFound) {
		b.logger.Debug("overlay absent", logging.String("file", name))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func projectLabel(project string) string {
	if project == "" {
		return "base"
	}
	return project
}
