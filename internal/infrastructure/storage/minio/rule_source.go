package minio

import (
	"context"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/LoreKit/internal/application/annotation"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/pkg/errors"
)

// RuleSource reads rule documents stored as "<prefix>/<name>" objects.
type RuleSource struct {
	api    ObjectAPI
	bucket string
	prefix string
	logger logging.Logger
}

var _ annotation.RuleSource = (*RuleSource)(nil)

// NewRuleSource builds a RuleSource over api.
func NewRuleSource(api ObjectAPI, bucket, prefix string, log logging.Logger) *RuleSource {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RuleSource{api: api, bucket: bucket, prefix: prefix, logger: log.Named("minio_rules")}
}

// Read implements annotation.RuleSource.
func (s *RuleSource) Read(ctx context.Context, name string) ([]byte, error) {
	key := s.objectKey(name)
	data, err := s.api.GetObject(ctx, s.bucket, key)
	if err != nil {
		location := s.bucket + "/" + key
		if isNotFound(err) {
			return nil, errors.New(errors.ErrCodeRuleNotFound, "rule document not found").WithDetail(location)
		}
		s.logger.Warn("rule object read failed", logging.String("object", location), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeRuleFileUnreadable, "read rule document").WithDetail(location)
	}
	return data, nil
}

func (s *RuleSource) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return true
	}
	return false
}
