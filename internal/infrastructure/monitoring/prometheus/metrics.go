package prometheus

import (
	"strconv"
	"time"
)

// LoreMetrics holds the annotation service metrics.  It satisfies
// annotation.Recorder.
type LoreMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// gRPC Layer
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Annotation
	ParseTotal    CounterVec
	ParseDuration HistogramVec
	ParseHitCount HistogramVec
	HitsTotal     CounterVec
	LinkLookups   CounterVec

	// Parser cache
	CacheLookupsTotal CounterVec
	CachedProjects    GaugeVec
	BuildTotal        CounterVec
	BuildDuration     HistogramVec
}

var (
	DefaultHTTPDurationBuckets  = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultParseDurationBuckets = []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .5}
	DefaultBuildDurationBuckets = []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultHitCountBuckets      = []float64{0, 1, 2, 5, 10, 25, 50, 100, 250}
)

// NewLoreMetrics registers every metric on collector.
func NewLoreMetrics(collector MetricsCollector) *LoreMetrics {
	m := &LoreMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method")

	m.ParseTotal = collector.RegisterCounter("parse_total", "Parse calls", "project")
	m.ParseDuration = collector.RegisterHistogram("parse_duration_seconds", "Parse duration", DefaultParseDurationBuckets, "project")
	m.ParseHitCount = collector.RegisterHistogram("parse_hits", "Hits returned per parse call", DefaultHitCountBuckets, "project")
	m.HitsTotal = collector.RegisterCounter("hits_total", "Entity hits by kind and source", "kind", "source")
	m.LinkLookups = collector.RegisterCounter("link_lookups_total", "Directory link attempts", "strategy", "result")

	m.CacheLookupsTotal = collector.RegisterCounter("parser_cache_lookups_total", "Project parser cache lookups", "result")
	m.CachedProjects = collector.RegisterGauge("parser_cache_projects", "Project parsers currently cached")
	m.BuildTotal = collector.RegisterCounter("parser_builds_total", "Parser builds", "project", "status")
	m.BuildDuration = collector.RegisterHistogram("parser_build_duration_seconds", "Parser build duration", DefaultBuildDurationBuckets, "project")

	return m
}

func (m *LoreMetrics) ObserveParse(project string, hits int, elapsed time.Duration) {
	m.ParseTotal.WithLabelValues(project).Inc()
	m.ParseDuration.WithLabelValues(project).Observe(elapsed.Seconds())
	m.ParseHitCount.WithLabelValues(project).Observe(float64(hits))
}

func (m *LoreMetrics) ObserveHit(kind, source string) {
	m.HitsTotal.WithLabelValues(kind, source).Inc()
}

func (m *LoreMetrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *LoreMetrics) ObserveBuild(project string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.BuildTotal.WithLabelValues(project, status).Inc()
	m.BuildDuration.WithLabelValues(project).Observe(elapsed.Seconds())
}

func (m *LoreMetrics) ObserveLink(strategy string, resolved bool) {
	result := "miss"
	if resolved {
		result = "resolved"
	}
	m.LinkLookups.WithLabelValues(strategy, result).Inc()
}

func (m *LoreMetrics) SetCachedProjects(n int) {
	m.CachedProjects.WithLabelValues().Set(float64(n))
}

// RecordHTTPRequest records one served request.  route is the router
// pattern, not the raw path, to keep label cardinality bounded.
func (m *LoreMetrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordGRPCRequest records one served RPC.
func (m *LoreMetrics) RecordGRPCRequest(service, method, code string, duration time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}
