package discovery

import (
	"math"
	"sync"
	"time"
)

const (
	detectorWindowSize = 250
	detectorMinSamples = 25

	// phi = -log10(P(interval >= elapsed)). With inter-arrival times modeled
	// as exponential around the observed mean, P = e^(-elapsed/mean), so
	// phi = elapsed / (mean * ln 10).
	phiFactor = 1.0 / math.Ln10
)

// Detector is a phi-accrual failure detector for a single peer. It observes
// the arrival times of that peer's advertisements and reports a suspicion
// score that grows with the current silence relative to the peer's historical
// inter-arrival distribution.
//
// Until minSamples inter-arrival intervals have been observed the detector is
// in its bootstrap phase and Phi reports 0; callers are expected to fall back
// to an absolute silence timeout during that phase.
type Detector struct {
	mu          sync.Mutex
	intervals   []time.Duration // ring buffer, newest at writeIdx-1
	writeIdx    int
	sum         time.Duration
	minSamples  int
	lastUpdated time.Time
	hasAnchor   bool
}

// NewDetector returns a detector with the default window. lastUpdated starts
// at the current time so a peer that never delivers a single sample can still
// trip a silence timeout.
func NewDetector() *Detector {
	return newDetector(detectorWindowSize, detectorMinSamples)
}

func newDetector(windowSize, minSamples int) *Detector {
	return &Detector{
		intervals:   make([]time.Duration, 0, windowSize),
		minSamples:  minSamples,
		lastUpdated: time.Now(),
	}
}

// Observe records a heartbeat at t. The first observation only anchors
// lastUpdated; each subsequent one contributes an inter-arrival interval to
// the sliding window.
func (d *Detector) Observe(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasAnchor && t.After(d.lastUpdated) {
		d.push(t.Sub(d.lastUpdated))
	}
	d.hasAnchor = true
	if t.After(d.lastUpdated) {
		d.lastUpdated = t
	}
}

// push must be called with d.mu held.
func (d *Detector) push(iv time.Duration) {
	if len(d.intervals) < cap(d.intervals) {
		d.intervals = append(d.intervals, iv)
	} else {
		d.sum -= d.intervals[d.writeIdx]
		d.intervals[d.writeIdx] = iv
	}
	d.sum += iv
	d.writeIdx = (d.writeIdx + 1) % cap(d.intervals)
}

// Phi returns the suspicion score at time now. Zero during the bootstrap
// phase (fewer than minSamples intervals observed).
func (d *Detector) Phi(now time.Time) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.intervals) < d.minSamples {
		return 0.0
	}
	mean := float64(d.sum) / float64(len(d.intervals))
	if mean <= 0 {
		return 0.0
	}
	elapsed := float64(now.Sub(d.lastUpdated))
	if elapsed <= 0 {
		return 0.0
	}
	return phiFactor * elapsed / mean
}

// LastUpdated returns the time of the most recent heartbeat, or the
// detector's creation time if none has been observed yet.
func (d *Detector) LastUpdated() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastUpdated
}
