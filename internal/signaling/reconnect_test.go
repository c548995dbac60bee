package signaling

import (
	"testing"
	"time"
)

// TestSchedulerSequence checks the cumulative-time sequence
// and the literal S3 scenario: attempts at t = 1..10 (1s apart), 20..110
// (10s apart), 140..410 (30s apart), then every 60s.
func TestSchedulerSequence(t *testing.T) {
	s := newScheduler()

	var elapsed time.Duration
	var got []time.Duration

	for i := 0; i < 23; i++ {
		delay, _, _ := s.next()
		elapsed += delay
		got = append(got, elapsed)
	}

	want := []time.Duration{
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10, // phase 0, seconds
		20, 30, 40, 50, 60, 70, 80, 90, 100, 110, // phase 1
		140, 170, 200, // phase 2 (first 3 of 10)
	}

	for i, w := range want {
		if got[i] != w*time.Second {
			t.Fatalf("attempt %d: elapsed = %v, want %v", i+1, got[i], w*time.Second)
		}
	}
}

func TestSchedulerPhase3Unlimited(t *testing.T) {
	s := newScheduler()
	for i := 0; i < 30; i++ {
		s.next()
	}
	// After 10+10+10 = 30 attempts we should be deep into phase 3.
	delay, phase, _ := s.next()
	if phase != 3 {
		t.Fatalf("phase = %d, want 3", phase)
	}
	if delay != 60*time.Second {
		t.Fatalf("delay = %v, want 60s", delay)
	}
	// Phase 3 never advances further and never resets on its own.
	for i := 0; i < 100; i++ {
		_, ph, _ := s.next()
		if ph != 3 {
			t.Fatalf("phase regressed/advanced to %d after %d more attempts", ph, i)
		}
	}
}

func TestSchedulerResetReturnsToPhaseZero(t *testing.T) {
	s := newScheduler()
	for i := 0; i < 15; i++ {
		s.next()
	}
	s.reset()
	delay, phase, attempt := s.next()
	if phase != 0 || attempt != 1 || delay != 1*time.Second {
		t.Fatalf("after reset: phase=%d attempt=%d delay=%v, want 0,1,1s", phase, attempt, delay)
	}
}
