package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide media/transfer counter.
var Stats = &stats{}

type stats struct {
	FramesEncoded atomic.Int64 // cumulative MCE frames produced
	FramesDecoded atomic.Int64 // cumulative MDD frames delivered
	KeyframeReqs  atomic.Int64 // cumulative keyframe requests sent
	FragmentsSent atomic.Int64 // cumulative fragments sent (FFR)
	FragmentsRecv atomic.Int64 // cumulative fragments received (FFR)
	BytesSent     atomic.Int64 // cumulative bytes of text frames written to the signaling socket
	BytesRecv     atomic.Int64 // cumulative bytes read from the signaling socket and data channels
}

func (s *stats) AddFrameEncoded() { s.FramesEncoded.Add(1) }
func (s *stats) AddFrameDecoded() { s.FramesDecoded.Add(1) }
func (s *stats) AddKeyframeReq()  { s.KeyframeReqs.Add(1) }
func (s *stats) AddFragmentSent() { s.FragmentsSent.Add(1) }
func (s *stats) AddFragmentRecv() { s.FragmentsRecv.Add(1) }
func (s *stats) AddSent(n int)    { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)    { s.BytesRecv.Add(int64(n)) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs session statistics every
// 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv, prevEnc, prevDec int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				enc := Stats.FramesEncoded.Load()
				dec := Stats.FramesDecoded.Load()

				inS := float64(recv-prevRecv) / 10.0
				outS := float64(sent-prevSent) / 10.0
				fpsEnc := float64(enc-prevEnc) / 10.0
				fpsDec := float64(dec-prevDec) / 10.0

				if inS > 10 || outS > 10 || fpsEnc > 0 || fpsDec > 0 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, fpsEnc, fpsDec))
				}

				prevSent, prevRecv, prevEnc, prevDec = sent, recv, enc, dec

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS, fpsEnc, fpsDec float64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Encode: %4.1f fps | Decode: %4.1f fps",
		formatBytes(inS),
		formatBytes(outS),
		fpsEnc,
		fpsDec,
	)
}
