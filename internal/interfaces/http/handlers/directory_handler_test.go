package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/turtacn/LoreKit/internal/testutil"
	"github.com/turtacn/LoreKit/pkg/errors"
)

type stubPurger struct {
	n   int64
	err error
}

func (p stubPurger) Purge(context.Context) (int64, error) { return p.n, p.err }

func newDirectoryRouter(p CachePurger) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", NewDirectoryHandler(p, testutil.NewMockLogger()).RegisterRoutes)
	return r
}

func TestPurgeCache(t *testing.T) {
	rec := do(newDirectoryRouter(stubPurger{n: 7}), http.MethodDelete, "/api/v1/directory/cache", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"purged":7}`, rec.Body.String())
}

func TestPurgeCache_Failure(t *testing.T) {
	p := stubPurger{err: errors.Wrap(context.DeadlineExceeded, errors.ErrCodeCacheError, "directory cache purge failed")}
	rec := do(newDirectoryRouter(p), http.MethodDelete, "/api/v1/directory/cache", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.ErrCodeCacheError.String(), decodeError(t, rec).Code)
}
