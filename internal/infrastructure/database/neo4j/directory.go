package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/LoreKit/internal/application/annotation"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
	"github.com/turtacn/LoreKit/pkg/errors"
)

// Entities are stored as (:Entity {id, name, slug, kind, aliases}).  kind
// holds the configuration label ("Place", "Faction", or a custom one).
const (
	cypherByKind = `MATCH (e:Entity {kind: $kind, name: $key})
RETURN e.id AS id, e.name AS name, e.slug AS slug, e.kind AS kind
ORDER BY e.created_at LIMIT 1`

	cypherBySlug = `MATCH (e:Entity {slug: $key})
RETURN e.id AS id, e.name AS name, e.slug AS slug, e.kind AS kind
ORDER BY e.created_at LIMIT 1`

	cypherByName = `MATCH (e:Entity {kind: $kind})
WHERE toLower(e.name) = $key OR $key IN [a IN coalesce(e.aliases, []) | toLower(a)]
RETURN e.id AS id, e.name AS name, e.slug AS slug, e.kind AS kind
ORDER BY e.created_at LIMIT 1`
)

// reader is the part of Driver the directory uses.
type reader interface {
	ExecuteRead(ctx context.Context, work TransactionWork) (any, error)
}

// Directory resolves hits against :Entity nodes.  Unlike the relational
// directory it covers every kind, and name lookups also match aliases.
type Directory struct {
	r      reader
	logger logging.Logger
}

var _ annotation.Directory = (*Directory)(nil)

// NewDirectory builds a Directory over d.
func NewDirectory(d *Driver, log logging.Logger) *Directory {
	return newDirectory(d, log)
}

func newDirectory(r reader, log logging.Logger) *Directory {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Directory{r: r, logger: log.Named("graph_directory")}
}

// FindByKind matches the exact display name.
func (d *Directory) FindByKind(ctx context.Context, kind lore_parser.Kind, text string) (*lore_parser.Link, error) {
	return d.queryOne(ctx, cypherByKind, map[string]any{"kind": kind.String(), "key": text})
}

// FindBySlug matches the stored slug across every kind.
func (d *Directory) FindBySlug(ctx context.Context, slug string) (*lore_parser.Link, error) {
	return d.queryOne(ctx, cypherBySlug, map[string]any{"key": slug})
}

// FindByName matches the lower-cased name or any alias.
func (d *Directory) FindByName(ctx context.Context, kind lore_parser.Kind, name string) (*lore_parser.Link, error) {
	return d.queryOne(ctx, cypherByName, map[string]any{"kind": kind.String(), "key": name})
}

func (d *Directory) queryOne(ctx context.Context, cypher string, params map[string]any) (*lore_parser.Link, error) {
	out, err := d.r.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, result.Err()
		}
		return recordToLink(result.Record())
	})
	if err != nil {
		d.logger.Debug("graph directory query failed", logging.Any("params", params), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDirectoryLookup, "entity directory lookup failed").
			WithDetail(fmt.Sprintf("key=%v", params["key"]))
	}
	link, _ := out.(*lore_parser.Link)
	return link, nil
}

func recordToLink(rec *neo4j.Record) (*lore_parser.Link, error) {
	if rec == nil {
		return nil, nil
	}
	id, err := stringValue(rec, "id")
	if err != nil {
		return nil, err
	}
	name, err := stringValue(rec, "name")
	if err != nil {
		return nil, err
	}
	kind, err := stringValue(rec, "kind")
	if err != nil {
		return nil, err
	}

	link := &lore_parser.Link{Name: name, Kind: lore_parser.ParseKind(kind)}
	if id != "" {
		link.ID = &id
	}
	slug, _ := stringValue(rec, "slug")
	if slug == "" {
		slug = lore_parser.ToSlug(name)
	}
	link.Slug = &slug
	return link, nil
}

// stringValue reads key as a string.  A missing or null value is "".
func stringValue(rec *neo4j.Record, key string) (string, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case int64:
		return fmt.Sprintf("%d", t), nil
	default:
		return "", fmt.Errorf("neo4j: field %s has unexpected type %T", key, v)
	}
}
