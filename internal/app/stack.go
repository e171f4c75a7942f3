// Package app assembles the annotation service from configuration.  The
// CLI and the API server entry point share it.
package app

import (
	"context"

	"github.com/turtacn/LoreKit/internal/application/annotation"
	"github.com/turtacn/LoreKit/internal/config"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/infrastructure/storage/minio"
)

// Stack is the rule-driven part of the service graph.
type Stack struct {
	Source  annotation.RuleSource
	Builder *annotation.Builder
	Cache   *annotation.ProjectCache
	Service *annotation.Service
}

// RuleFiles returns the configured base document names.
func RuleFiles(cfg *config.Config) annotation.RuleFiles {
	return annotation.RuleFiles{
		Entities: cfg.Rules.EntitiesFile,
		Patterns: cfg.Rules.PatternsFile,
	}
}

// NewRuleSource opens the configured rule source.
func NewRuleSource(cfg *config.Config, logger logging.Logger) (annotation.RuleSource, error) {
	if cfg.Rules.Source == "minio" {
		api, err := minio.NewObjectAPI(cfg.MinIO, logger)
		if err != nil {
			return nil, err
		}
		return minio.NewRuleSource(api, cfg.MinIO.Bucket, cfg.MinIO.Prefix, logger), nil
	}
	return annotation.NewDirSource(cfg.Rules.Dir), nil
}

// BuildStack wires the builder, the project cache and the service over
// source, then builds the base parser.  rec may be nil.
func BuildStack(ctx context.Context, cfg *config.Config, source annotation.RuleSource, rec annotation.Recorder, logger logging.Logger, opts ...annotation.ServiceOption) (*Stack, error) {
	builder := annotation.NewBuilder(source, RuleFiles(cfg), logger)
	cache := annotation.NewProjectCache(builder, annotation.CacheOptions{
		SingleFlight: cfg.Rules.SingleFlight,
		Recorder:     rec,
	}, logger)

	svcOpts := []annotation.ServiceOption{
		annotation.WithDefaultFuzzy(cfg.Rules.DefaultFuzzy),
		annotation.WithRecorder(rec),
	}
	svc := annotation.NewService(builder, cache, logger, append(svcOpts, opts...)...)
	if err := svc.ReloadBase(ctx); err != nil {
		return nil, err
	}
	return &Stack{Source: source, Builder: builder, Cache: cache, Service: svc}, nil
}
