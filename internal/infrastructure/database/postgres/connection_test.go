package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LoreKit/internal/config"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/LoreKit/pkg/errors"
)

func TestBuildPoolConfig_Fields(t *testing.T) {
	t.Parallel()

	cfg := config.DatabaseConfig{
		Host:            "db.internal",
		Port:            5433,
		User:            "lore",
		Password:        "secret",
		DBName:          "world_builder",
		SSLMode:         "disable",
		MaxConns:        12,
		MinConns:        2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	poolCfg, err := buildPoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", poolCfg.ConnConfig.Host)
	assert.Equal(t, uint16(5433), poolCfg.ConnConfig.Port)
	assert.Equal(t, "lore", poolCfg.ConnConfig.User)
	assert.Equal(t, "world_builder", poolCfg.ConnConfig.Database)
	assert.Equal(t, int32(12), poolCfg.MaxConns)
	assert.Equal(t, int32(2), poolCfg.MinConns)
	assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
	assert.Equal(t, 5*time.Minute, poolCfg.MaxConnIdleTime)
}

func TestBuildPoolConfig_DSN(t *testing.T) {
	t.Parallel()

	poolCfg, err := buildPoolConfig(config.DatabaseConfig{DSN: "postgres://lore:pw@localhost:5432/saga?sslmode=disable"})
	require.NoError(t, err)
	assert.Equal(t, "saga", poolCfg.ConnConfig.Database)
}

func TestBuildPoolConfig_Invalid(t *testing.T) {
	t.Parallel()

	_, err := buildPoolConfig(config.DatabaseConfig{DSN: "postgres://lore@localhost:notaport/saga"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestNewConnectionPool_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pool, err := NewConnectionPool(ctx, config.DatabaseConfig{
		DSN: "postgres://lore@127.0.0.1:1/saga?sslmode=disable&connect_timeout=1",
	}, logging.NewNopLogger())
	require.Error(t, err)
	assert.Nil(t, pool)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestClose_Nil(t *testing.T) {
	assert.NotPanics(t, func() { Close(nil, logging.NewNopLogger()) })
}
