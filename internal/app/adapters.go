package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/LoreKit/internal/infrastructure/database/neo4j"
	"github.com/turtacn/LoreKit/internal/infrastructure/database/postgres"
	"github.com/turtacn/LoreKit/internal/infrastructure/database/redis"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
)

// Adapters for HealthHandler
type postgresHealthAdapter struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

func (a *postgresHealthAdapter) Name() string {
	return "postgres"
}

func (a *postgresHealthAdapter) Check(ctx context.Context) error {
	return postgres.HealthCheck(ctx, a.pool, a.logger)
}

type redisHealthAdapter struct {
	client *redis.Client
}

func (a *redisHealthAdapter) Name() string {
	return "redis"
}

func (a *redisHealthAdapter) Check(ctx context.Context) error {
	return a.client.Ping(ctx)
}

type neo4jHealthAdapter struct {
	driver *neo4j.Driver
}

func (a *neo4jHealthAdapter) Name() string {
	return "neo4j"
}

func (a *neo4jHealthAdapter) Check(ctx context.Context) error {
	return a.driver.Ping(ctx)
}
