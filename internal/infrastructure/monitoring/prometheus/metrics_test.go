package prometheus

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/LoreKit/internal/application/annotation"
)

var _ annotation.Recorder = (*LoreMetrics)(nil)

func TestLoreMetrics_Parse(t *testing.T) {
	c := newTestCollector(t)
	m := NewLoreMetrics(c)

	m.ObserveParse("mythos", 3, 2*time.Millisecond)
	m.ObserveParse("mythos", 1, time.Millisecond)
	m.ObserveHit("person", "dictionary")
	m.ObserveHit("person", "dictionary")
	m.ObserveHit("Dragon", "pattern")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_parse_total{project="mythos"} 2`)
	assert.Contains(t, out, `test_unit_parse_duration_seconds_count{project="mythos"} 2`)
	assert.Contains(t, out, `test_unit_parse_hits_sum{project="mythos"} 4`)
	assert.Contains(t, out, `test_unit_hits_total{kind="person",source="dictionary"} 2`)
	assert.Contains(t, out, `test_unit_hits_total{kind="Dragon",source="pattern"} 1`)
}

func TestLoreMetrics_CacheAndBuild(t *testing.T) {
	c := newTestCollector(t)
	m := NewLoreMetrics(c)

	m.ObserveCacheLookup(true)
	m.ObserveCacheLookup(false)
	m.ObserveCacheLookup(false)
	m.ObserveBuild("mythos", 10*time.Millisecond, nil)
	m.ObserveBuild("broken", time.Millisecond, errors.New("bad regex"))
	m.SetCachedProjects(4)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_parser_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, out, `test_unit_parser_cache_lookups_total{result="miss"} 2`)
	assert.Contains(t, out, `test_unit_parser_builds_total{project="mythos",status="success"} 1`)
	assert.Contains(t, out, `test_unit_parser_builds_total{project="broken",status="failure"} 1`)
	assert.Contains(t, out, "test_unit_parser_cache_projects 4")
}

func TestLoreMetrics_Link(t *testing.T) {
	c := newTestCollector(t)
	m := NewLoreMetrics(c)

	m.ObserveLink("exact", true)
	m.ObserveLink("slug", false)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_link_lookups_total{result="resolved",strategy="exact"} 1`)
	assert.Contains(t, out, `test_unit_link_lookups_total{result="miss",strategy="slug"} 1`)
}

func TestLoreMetrics_RecordHTTPRequest(t *testing.T) {
	c := newTestCollector(t)
	m := NewLoreMetrics(c)

	m.RecordHTTPRequest(http.MethodPost, "/api/v1/parse", http.StatusOK, 3*time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_http_requests_total{method="POST",route="/api/v1/parse",status_code="200"} 1`)
	assert.Contains(t, out, `test_unit_http_request_duration_seconds_count{method="POST",route="/api/v1/parse"} 1`)
}

func TestLoreMetrics_RecordGRPCRequest(t *testing.T) {
	c := newTestCollector(t)
	m := NewLoreMetrics(c)

	m.RecordGRPCRequest("grpc.health.v1.Health", "Check", "OK", time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_grpc_requests_total{code="OK",method="Check",service="grpc.health.v1.Health"} 1`)
	assert.Contains(t, out, `test_unit_grpc_request_duration_seconds_count{method="Check",service="grpc.health.v1.Health"} 1`)
}

func TestNewLoreMetrics_Twice(t *testing.T) {
	c := newTestCollector(t)
	NewLoreMetrics(c).ObserveCacheLookup(true)
	NewLoreMetrics(c).ObserveCacheLookup(true)

	assert.Contains(t, scrapeMetrics(t, c), `test_unit_parser_cache_lookups_total{result="hit"} 2`)
}
