package annotation

import "time"

// Recorder receives annotation measurements.  The Prometheus LoreMetrics type
// satisfies it; NopRecorder discards everything.
type Recorder interface {
	ObserveParse(project string, hits int, elapsed time.Duration)
	ObserveHit(kind, source string)
	ObserveCacheLookup(hit bool)
	ObserveBuild(project string, elapsed time.Duration, err error)
	ObserveLink(strategy string, resolved bool)
	SetCachedProjects(n int)
}

// NopRecorder implements Recorder with no-ops.
type NopRecorder struct{}

func (NopRecorder) ObserveParse(string, int, time.Duration)   {}
func (NopRecorder) ObserveHit(string, string)                 {}
func (NopRecorder) ObserveCacheLookup(bool)                   {}
func (NopRecorder) ObserveBuild(string, time.Duration, error) {}
func (NopRecorder) ObserveLink(string, bool)                  {}
func (NopRecorder) SetCachedProjects(int)                     {}
