//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/LoreKit/internal/config"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
)

// startPostgres launches a PostgreSQL 16 container with the world-builder
// tables and returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "lore",
				"POSTGRES_PASSWORD": "lore",
				"POSTGRES_DB":       "world_builder",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewConnectionPool(ctx, config.DatabaseConfig{
		DSN:      fmt.Sprintf("postgres://lore:lore@%s:%s/world_builder?sslmode=disable", host, port.Port()),
		MaxConns: 4,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		CREATE TABLE locations (
			id TEXT PRIMARY KEY, name TEXT NOT NULL, kind TEXT, summary TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(), updated_at TIMESTAMPTZ NOT NULL DEFAULT now());
		CREATE TABLE factions (
			id TEXT PRIMARY KEY, name TEXT NOT NULL, alignment TEXT, goal TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(), updated_at TIMESTAMPTZ NOT NULL DEFAULT now());
		INSERT INTO locations (id, name, kind, summary) VALUES
			('loc-1', 'Storm Coast', 'region', 'A wind-battered shore'),
			('loc-2', 'Ironforge', 'city', 'A dwarven stronghold');
		INSERT INTO factions (id, name, alignment, goal) VALUES
			('fac-1', 'Ember Court', 'neutral', 'Keep the flame');`)
	require.NoError(t, err)
	return pool
}

func TestDirectory_Integration(t *testing.T) {
	pool := startPostgres(t)
	d := NewDirectory(pool, logging.NewNopLogger())
	ctx := context.Background()

	link, err := d.FindByKind(ctx, lore_parser.Place, "Storm Coast")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "loc-1", *link.ID)

	link, err = d.FindBySlug(ctx, "ember-court")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, lore_parser.Faction, link.Kind)

	link, err = d.FindByName(ctx, lore_parser.Place, "ironforge")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "Ironforge", link.Name)

	link, err = d.FindByKind(ctx, lore_parser.Place, "Eryndor")
	require.NoError(t, err)
	assert.Nil(t, link)

	require.NoError(t, HealthCheck(ctx, pool, logging.NewNopLogger()))
}
