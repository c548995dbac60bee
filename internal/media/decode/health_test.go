package decode

import (
	"testing"
	"time"
)

func TestHealthRequestsKeyframeAfterFiveEmptyFrames(t *testing.T) {
	requests := 0
	h := NewHealth(func() { requests++ })
	h.stopRetryTimerLocked() // the constructor doesn't arm one; keep tests deterministic

	for i := 0; i < 4; i++ {
		h.onEmpty()
	}
	if requests != 0 {
		t.Fatalf("requests = %d before the 5th empty frame, want 0", requests)
	}

	h.onEmpty()
	if requests != 1 {
		t.Fatalf("requests = %d after the 5th empty frame, want 1", requests)
	}
	h.mu.Lock()
	h.stopRetryTimerLocked()
	h.mu.Unlock()
}

func TestHealthValidFrameResetsCounters(t *testing.T) {
	h := NewHealth(func() {})
	for i := 0; i < 3; i++ {
		h.onEmpty()
	}
	h.onCorrupt()

	h.onFrame()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consecutiveEmpty != 0 || h.errorCount != 0 || h.waitingForKeyframe {
		t.Fatalf("onFrame did not reset state: empty=%d errors=%d waiting=%v", h.consecutiveEmpty, h.errorCount, h.waitingForKeyframe)
	}
	if h.fps != baseFPS {
		t.Fatalf("fps = %d, want %d", h.fps, baseFPS)
	}
}

func TestHealthStepsFPSDownOnErrorRate(t *testing.T) {
	h := NewHealth(func() {})
	for i := 0; i < errorRateThreshold; i++ {
		h.onCorrupt()
	}
	if got, want := h.interval(), time.Second/time.Duration(stepFPS1); got != want {
		t.Fatalf("interval after %d errors = %v, want %v", errorRateThreshold, got, want)
	}

	for i := 0; i < errorRateThreshold; i++ {
		h.onCorrupt()
	}
	if got, want := h.interval(), time.Second/time.Duration(stepFPS2); got != want {
		t.Fatalf("interval after %d errors = %v, want %v", 2*errorRateThreshold, got, want)
	}
}

func TestHealthWaitingForKeyframeHoldsBackUntilKeyUnit(t *testing.T) {
	h := NewHealth(func() {})
	if pass := h.FeedWaiting([]byte{0x01, 0x02}, false); pass {
		t.Fatalf("expected non-key NALU to be held back while waiting for keyframe")
	}
	if pass := h.FeedWaiting([]byte{0x67}, true); !pass {
		t.Fatalf("expected a parameter-set/IDR NALU to pass through")
	}
}
