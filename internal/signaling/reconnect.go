package signaling

import "time"

// phase describes one rung of the reconnect ladder.
// maxAttempts <= 0 means unlimited (phase 3).
type phase struct {
	delay       time.Duration
	maxAttempts int
}

var phases = []phase{
	{delay: 1 * time.Second, maxAttempts: 10},
	{delay: 10 * time.Second, maxAttempts: 10},
	{delay: 30 * time.Second, maxAttempts: 10},
	{delay: 60 * time.Second, maxAttempts: -1},
}

// scheduler tracks reconnect phase/attempt state. It is pure (no timers of
// its own), which keeps the schedule itself independently testable.
type scheduler struct {
	phaseIdx int
	attempts int
}

func newScheduler() *scheduler {
	return &scheduler{}
}

// next returns the delay to wait before the next reconnect attempt, along
// with the phase/attempt number that attempt will be recorded under, and
// advances the internal state: after an attempt,
// if the current phase's quota is exhausted and it isn't the last phase,
// advance to the next phase and reset the attempt counter.
func (s *scheduler) next() (delay time.Duration, reportedPhase, reportedAttempt int) {
	p := phases[s.phaseIdx]
	delay = p.delay
	s.attempts++
	reportedPhase, reportedAttempt = s.phaseIdx, s.attempts

	if p.maxAttempts > 0 && s.attempts >= p.maxAttempts && s.phaseIdx < len(phases)-1 {
		s.phaseIdx++
		s.attempts = 0
	}
	return
}

// reset returns the scheduler to phase 0 / attempt 0, as required after a
// successful reconnect.
func (s *scheduler) reset() {
	s.phaseIdx = 0
	s.attempts = 0
}
