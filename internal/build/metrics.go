package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks the passes of a development session.
type BuildMetrics struct {
	mutex sync.RWMutex
	snap  MetricsSnapshot
}

// MetricsSnapshot is a point-in-time copy of BuildMetrics.
type MetricsSnapshot struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	LastBuild        time.Time
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records a build result in the metrics
func (bm *BuildMetrics) RecordBuild(result Result) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	s := &bm.snap
	s.TotalBuilds++
	s.TotalDuration += result.Duration
	s.LastBuild = time.Now()

	if result.Failed() {
		s.FailedBuilds++
	} else {
		s.SuccessfulBuilds++
	}

	s.AverageDuration = s.TotalDuration / time.Duration(s.TotalBuilds)
}

// BuildComplete implements Observer.
func (bm *BuildMetrics) BuildComplete(result Result) {
	bm.RecordBuild(result)
}

// Snapshot returns a copy of the current metrics.
func (bm *BuildMetrics) Snapshot() MetricsSnapshot {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	return bm.snap
}

// SuccessRate returns the share of successful passes as a percentage.
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.TotalBuilds == 0 {
		return 0.0
	}
	return float64(s.SuccessfulBuilds) / float64(s.TotalBuilds) * 100.0
}
