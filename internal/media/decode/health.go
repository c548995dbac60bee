package decode

import (
	"sync"
	"time"

	"github.com/1ureka/airan/internal/util"
)

const (
	emptyFrameThreshold  = 5
	keyframeRetryTimeout = 2 * time.Second
	maxWaitingBufferSize = 5 << 20 // 5 MiB

	errorRateThreshold = 10 // decode errors before the first fps stepdown
	baseFPS            = 30
	stepFPS1           = 25
	stepFPS2           = 20
)

// Health tracks decode stream quality: empty/corrupt frame counts drive a
// keyframe request with a 2s retry timer; an elevated error rate lengthens
// the receive interval (30 -> 25 -> 20 fps) to relieve memory pressure.
// Until the first valid frame decodes, it holds back from the decoder
// everything that isn't a parameter-set/IDR NALU. Only the size of that
// held-back data is counted against a 5 MiB cap; the data itself is not
// kept, and the count resets once it exceeds the cap.
type Health struct {
	onKeyframeRequest func()

	mu sync.Mutex

	consecutiveEmpty int
	errorCount       int
	fps              int

	waitingForKeyframe bool
	bufferedBytes      int

	retryTimer *time.Timer
}

// NewHealth creates a Health tracker starting in waiting-for-keyframe state.
func NewHealth(onKeyframeRequest func()) *Health {
	return &Health{
		onKeyframeRequest:  onKeyframeRequest,
		fps:                baseFPS,
		waitingForKeyframe: true,
	}
}

// onFrame resets all error counters and disarms the retry timer.
func (h *Health) onFrame() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveEmpty = 0
	h.errorCount = 0
	h.waitingForKeyframe = false
	h.bufferedBytes = 0
	h.fps = baseFPS
	h.stopRetryTimerLocked()
}

// onEmpty counts an empty frame and requests a keyframe once the run hits
// the threshold, arming a 2s retry in case the request goes unanswered.
func (h *Health) onEmpty() {
	h.mu.Lock()
	h.consecutiveEmpty++
	fire := h.consecutiveEmpty >= emptyFrameThreshold
	if fire {
		h.consecutiveEmpty = 0
	}
	h.mu.Unlock()

	if fire {
		h.requestKeyframe()
	}
}

// onCorrupt counts a decode error and, past the threshold, steps the
// effective receive fps down a rung.
func (h *Health) onCorrupt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errorCount++
	switch {
	case h.errorCount >= errorRateThreshold*2 && h.fps > stepFPS2:
		h.fps = stepFPS2
	case h.errorCount >= errorRateThreshold && h.fps > stepFPS1:
		h.fps = stepFPS1
	}
}

// interval returns the receive wait budget for the current effective fps.
func (h *Health) interval() time.Duration {
	h.mu.Lock()
	fps := h.fps
	h.mu.Unlock()
	if fps <= 0 {
		fps = baseFPS
	}
	return time.Second / time.Duration(fps)
}

// FeedWaiting is called with every NALU while waiting_for_keyframe is set.
// It returns false for non-parameter-set/IDR data, which the caller then
// drops; it only adds that data's length to a byte count, and resets the
// count once it passes the cap. isKeyUnit reports whether this NALU is a
// parameter set or IDR.
func (h *Health) FeedWaiting(nalus []byte, isKeyUnit bool) (pass bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.waitingForKeyframe {
		return true
	}
	if isKeyUnit {
		return true
	}
	h.bufferedBytes += len(nalus)
	if h.bufferedBytes > maxWaitingBufferSize {
		util.LogWarning("decode: waiting_for_keyframe buffer exceeded %d bytes, re-arming", maxWaitingBufferSize)
		h.bufferedBytes = 0
	}
	return false
}

func (h *Health) requestKeyframe() {
	if h.onKeyframeRequest != nil {
		h.onKeyframeRequest()
	}

	h.mu.Lock()
	h.stopRetryTimerLocked()
	h.retryTimer = time.AfterFunc(keyframeRetryTimeout, h.requestKeyframe)
	h.mu.Unlock()
}

func (h *Health) stopRetryTimerLocked() {
	if h.retryTimer != nil {
		h.retryTimer.Stop()
		h.retryTimer = nil
	}
}
