package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveness(t *testing.T) {
	h := NewHealthHandler("v1.2.3", ReadyCheck("rules", func() bool { return false }))

	rec := do(http.HandlerFunc(h.Liveness), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "v1.2.3", resp.Version)
}

func TestReadiness_NoCheckers(t *testing.T) {
	h := NewHealthHandler("dev")

	rec := do(http.HandlerFunc(h.Readiness), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestReadiness_AllHealthy(t *testing.T) {
	h := NewHealthHandler("dev",
		ReadyCheck("rules", func() bool { return true }),
		CheckFunc{CheckName: "redis", Fn: func(context.Context) error { return nil }},
	)

	rec := do(http.HandlerFunc(h.Readiness), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "healthy", resp.Components["rules"].Status)
	assert.Equal(t, "healthy", resp.Components["redis"].Status)
}

func TestReadiness_OneUnhealthy(t *testing.T) {
	h := NewHealthHandler("dev",
		ReadyCheck("rules", func() bool { return true }),
		CheckFunc{CheckName: "postgres", Fn: func(context.Context) error { return errors.New("connection refused") }},
	)

	rec := do(http.HandlerFunc(h.Readiness), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["postgres"].Status)
	assert.Equal(t, "connection refused", resp.Components["postgres"].Error)
	assert.Equal(t, "healthy", resp.Components["rules"].Status)
}

func TestReadyCheck_NotReady(t *testing.T) {
	err := ReadyCheck("rules", func() bool { return false }).Check(context.Background())
	assert.EqualError(t, err, "rules not ready")
}

func TestHealthHandler_Names(t *testing.T) {
	h := NewHealthHandler("dev",
		ReadyCheck("rules", func() bool { return true }),
		CheckFunc{CheckName: "postgres", Fn: func(context.Context) error { return nil }},
	)
	assert.Equal(t, []string{"postgres", "rules"}, h.Names())
}
