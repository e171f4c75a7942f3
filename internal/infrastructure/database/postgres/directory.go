package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/turtacn/LoreKit/internal/application/annotation"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
	"github.com/turtacn/LoreKit/pkg/errors"
)

// Querier is the subset of pgxpool.Pool the directory needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Tables holding directory records, keyed by the kind they resolve to.
var kindTables = []struct {
	kind  lore_parser.Kind
	table string
}{
	{lore_parser.Place, "locations"},
	{lore_parser.Faction, "factions"},
}

// slugExpr derives a slug from the name column the way lore_parser.ToSlug
// does.
const slugExpr = "lower(replace(name, ' ', '-'))"

// Directory resolves hits against the locations and factions tables.
// Kinds without a table never match.
type Directory struct {
	q      Querier
	logger logging.Logger
}

var _ annotation.Directory = (*Directory)(nil)

// NewDirectory builds a Directory over q (normally a *pgxpool.Pool).
func NewDirectory(q Querier, log logging.Logger) *Directory {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Directory{q: q, logger: log.Named("directory")}
}

func tableFor(kind lore_parser.Kind) (string, bool) {
	for _, t := range kindTables {
		if t.kind == kind {
			return t.table, true
		}
	}
	return "", false
}

// FindByKind matches the exact display name.
func (d *Directory) FindByKind(ctx context.Context, kind lore_parser.Kind, text string) (*lore_parser.Link, error) {
	table, ok := tableFor(kind)
	if !ok {
		return nil, nil
	}
	sql := fmt.Sprintf("SELECT id, name FROM %s WHERE name = $1 ORDER BY created_at LIMIT 1", table)
	return d.queryOne(ctx, kind, sql, text)
}

// FindBySlug searches every table; locations win over factions.
func (d *Directory) FindBySlug(ctx context.Context, slug string) (*lore_parser.Link, error) {
	for _, t := range kindTables {
		sql := fmt.Sprintf("SELECT id, name FROM %s WHERE %s = $1 ORDER BY created_at LIMIT 1", t.table, slugExpr)
		link, err := d.queryOne(ctx, t.kind, sql, slug)
		if err != nil || link != nil {
			return link, err
		}
	}
	return nil, nil
}

// FindByName matches the lower-cased display name.
func (d *Directory) FindByName(ctx context.Context, kind lore_parser.Kind, name string) (*lore_parser.Link, error) {
	table, ok := tableFor(kind)
	if !ok {
		return nil, nil
	}
	sql := fmt.Sprintf("SELECT id, name FROM %s WHERE lower(name) = $1 ORDER BY created_at LIMIT 1", table)
	return d.queryOne(ctx, kind, sql, name)
}

func (d *Directory) queryOne(ctx context.Context, kind lore_parser.Kind, sql string, arg string) (*lore_parser.Link, error) {
	var id, name string
	if err := d.q.QueryRow(ctx, sql, arg).Scan(&id, &name); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		d.logger.Debug("directory query failed", logging.String("kind", kind.String()), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDirectoryLookup, "entity directory lookup failed").
			WithDetail(fmt.Sprintf("kind=%s key=%s", kind, arg))
	}
	slug := lore_parser.ToSlug(name)
	return &lore_parser.Link{ID: &id, Slug: &slug, Name: name, Kind: kind}, nil
}
