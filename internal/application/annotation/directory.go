package annotation

import (
	"context"
	"strings"

	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
	apperrors "github.com/turtacn/LoreKit/pkg/errors"
)

// Directory is the external entity directory.  Every method returns (nil, nil)
// when nothing matches.
type Directory interface {
	FindByKind(ctx context.Context, kind lore_parser.Kind, text string) (*lore_parser.Link, error)
	FindBySlug(ctx context.Context, slug string) (*lore_parser.Link, error)
	FindByName(ctx context.Context, kind lore_parser.Kind, name string) (*lore_parser.Link, error)
}

// LinkStrategy selects one of the linker's resolution strategies.
type LinkStrategy string

const (
	LinkExact LinkStrategy = "exact"
	LinkSlug  LinkStrategy = "slug"
	LinkName  LinkStrategy = "name"
)

// ParseLinkStrategies validates configured strategy names, keeping order.
func ParseLinkStrategies(names []string) ([]LinkStrategy, error) {
	out := make([]LinkStrategy, 0, len(names))
	for _, n := range names {
		s := LinkStrategy(strings.ToLower(strings.TrimSpace(n)))
		switch s {
		case LinkExact, LinkSlug, LinkName:
			out = append(out, s)
		default:
			return nil, apperrors.Newf(apperrors.ErrCodeValidation, "unknown link strategy %q", n)
		}
	}
	return out, nil
}

// Lookups adapts a Directory to the pure linker capabilities.
type Lookups struct {
	Exact lore_parser.EntityLookup
	Slug  lore_parser.SlugLookup
	Name  lore_parser.EntityLookup
}

// Bind closes dir over ctx.  Directory errors are logged and reported to the
// linker as misses.
func Bind(ctx context.Context, dir Directory, logger logging.Logger) Lookups {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	resolve := func(strategy, key string, link *lore_parser.Link, err error) (lore_parser.Link, bool) {
		if err != nil {
			logger.Warn("directory lookup failed",
				logging.String("strategy", strategy),
				logging.String("key", key),
				logging.Err(err),
			)
			return lore_parser.Link{}, false
		}
		if link == nil {
			return lore_parser.Link{}, false
		}
		return *link, true
	}

	return Lookups{
		Exact: lore_parser.EntityLookupFunc(func(kind lore_parser.Kind, text string) (lore_parser.Link, bool) {
			link, err := dir.FindByKind(ctx, kind, text)
			return resolve(string(LinkExact), text, link, err)
		}),
		Slug: lore_parser.SlugLookupFunc(func(slug string) (lore_parser.Link, bool) {
			link, err := dir.FindBySlug(ctx, slug)
			return resolve(string(LinkSlug), slug, link, err)
		}),
		Name: lore_parser.EntityLookupFunc(func(kind lore_parser.Kind, name string) (lore_parser.Link, bool) {
			link, err := dir.FindByName(ctx, kind, name)
			return resolve(string(LinkName), name, link, err)
		}),
	}
}

// Apply runs strategy over hits.
func (l Lookups) Apply(strategy LinkStrategy, hits []lore_parser.EntityHit) []lore_parser.EntityHit {
	switch strategy {
	case LinkExact:
		return lore_parser.LinkEntities(hits, l.Exact)
	case LinkSlug:
		return lore_parser.LinkWithSlug(hits, l.Slug)
	case LinkName:
		return lore_parser.LinkByName(hits, l.Name)
	default:
		return hits
	}
}
