package discovery

import (
	"testing"
	"time"
)

func TestDetector_BootstrapPhiIsZero(t *testing.T) {
	d := NewDetector()
	if phi := d.Phi(time.Now().Add(time.Hour)); phi != 0.0 {
		t.Fatalf("Phi with no samples = %v, want 0", phi)
	}
}

func TestDetector_LastUpdatedAnchoredAtCreation(t *testing.T) {
	before := time.Now()
	d := NewDetector()
	after := time.Now()

	last := d.LastUpdated()
	if last.Before(before) || last.After(after) {
		t.Fatalf("LastUpdated = %v, want within [%v, %v]", last, before, after)
	}
}

func TestDetector_ObserveAdvancesLastUpdated(t *testing.T) {
	d := NewDetector()
	ts := time.Now().Add(time.Minute)
	d.Observe(ts)
	if got := d.LastUpdated(); !got.Equal(ts) {
		t.Fatalf("LastUpdated = %v, want %v", got, ts)
	}
}

func TestDetector_PhiZeroUntilMinSamples(t *testing.T) {
	d := newDetector(250, 3)
	base := time.Now()

	// Two observations produce one interval; below the minimum of three.
	d.Observe(base)
	d.Observe(base.Add(100 * time.Millisecond))
	if phi := d.Phi(base.Add(time.Hour)); phi != 0.0 {
		t.Fatalf("Phi below min samples = %v, want 0", phi)
	}
}

func TestDetector_PhiGrowsWithSilence(t *testing.T) {
	d := newDetector(250, 3)
	base := time.Now()
	for i := 0; i < 10; i++ {
		d.Observe(base.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	last := base.Add(900 * time.Millisecond)

	// Fresh heartbeat: barely suspicious.
	if phi := d.Phi(last.Add(100 * time.Millisecond)); phi > 1.0 {
		t.Fatalf("Phi right after heartbeat = %v, want <= 1", phi)
	}

	// Growing silence: monotonically more suspicious.
	prev := -1.0
	for _, silence := range []time.Duration{
		500 * time.Millisecond,
		2 * time.Second,
		10 * time.Second,
	} {
		phi := d.Phi(last.Add(silence))
		if phi <= prev {
			t.Fatalf("Phi(%v) = %v, want > %v", silence, phi, prev)
		}
		prev = phi
	}

	// 10s of silence against a 100ms mean is far past any sane threshold.
	if phi := d.Phi(last.Add(10 * time.Second)); phi < DefaultFailureThreshold {
		t.Fatalf("Phi after 10s silence = %v, want >= %v", phi, DefaultFailureThreshold)
	}
}

func TestDetector_WindowSlides(t *testing.T) {
	d := newDetector(4, 3)
	base := time.Now()

	// Old slow intervals get displaced by fast ones once the window wraps.
	d.Observe(base)
	for i := 1; i <= 3; i++ {
		d.Observe(base.Add(time.Duration(i) * time.Second))
	}
	slow := d.Phi(base.Add(3*time.Second + 5*time.Second))

	at := base.Add(3 * time.Second)
	for i := 1; i <= 8; i++ {
		at = at.Add(100 * time.Millisecond)
		d.Observe(at)
	}
	fast := d.Phi(at.Add(5 * time.Second))

	if fast <= slow {
		t.Fatalf("Phi with fast window = %v, want > %v (slow window)", fast, slow)
	}
}

func TestDetector_ConcurrentObservePhi(t *testing.T) {
	d := NewDetector()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			d.Observe(time.Now())
		}
	}()
	for i := 0; i < 1000; i++ {
		_ = d.Phi(time.Now())
		_ = d.LastUpdated()
	}
	<-done
}
