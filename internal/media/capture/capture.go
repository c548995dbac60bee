// Package capture grabs the primary screen on a timer and converts each
// frame to the RGB buffer the encoder pipeline expects.
package capture

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"

	"github.com/1ureka/airan/internal/airerr"
)

const (
	minFPS = 1
	maxFPS = 60
)

// Capturer grabs the primary display at a configurable rate and emits
// RGB-converted frames, resized to the agreed encode size.
type Capturer struct {
	mu               sync.Mutex
	fps              int
	encodeW, encodeH int

	stopCh chan struct{}
	out    chan Frame
}

// Frame is one captured, scaled, RGB-converted frame.
type Frame struct {
	RGB           []byte
	Width, Height int
	Timestamp     time.Duration
}

// New creates a Capturer. fps is clamped to [1, 60].
func New(fps, encodeW, encodeH int) *Capturer {
	return &Capturer{
		fps:     clampFPS(fps),
		encodeW: encodeW,
		encodeH: encodeH,
		out:     make(chan Frame, 2),
	}
}

func clampFPS(fps int) int {
	if fps < minFPS {
		return minFPS
	}
	if fps > maxFPS {
		return maxFPS
	}
	return fps
}

// SetFPS adjusts the capture rate at runtime (adaptive resolution/fps).
func (c *Capturer) SetFPS(fps int) {
	c.mu.Lock()
	c.fps = clampFPS(fps)
	c.mu.Unlock()
}

// SetEncodeSize adjusts the target scale for subsequent frames.
func (c *Capturer) SetEncodeSize(w, h int) {
	c.mu.Lock()
	c.encodeW, c.encodeH = w, h
	c.mu.Unlock()
}

// Frames returns the Capturer's output stream.
func (c *Capturer) Frames() <-chan Frame { return c.out }

// Start begins the capture timer loop in a background goroutine.
func (c *Capturer) Start() {
	c.stopCh = make(chan struct{})
	go c.loop()
}

// Stop ends the capture loop.
func (c *Capturer) Stop() {
	if c.stopCh != nil {
		close(c.stopCh)
	}
}

func (c *Capturer) loop() {
	start := time.Now()
	for {
		c.mu.Lock()
		fps := c.fps
		c.mu.Unlock()

		interval := time.Second / time.Duration(fps)
		select {
		case <-time.After(interval):
		case <-c.stopCh:
			return
		}

		frame, err := c.captureOne(time.Since(start))
		if err != nil {
			continue
		}
		select {
		case c.out <- frame:
		default:
		}
	}
}

func (c *Capturer) captureOne(ts time.Duration) (Frame, error) {
	bounds := screenshot.GetDisplayBounds(0)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: capture screen: %w", airerr.ErrEncodeFailed, err)
	}

	c.mu.Lock()
	w, h := c.encodeW, c.encodeH
	c.mu.Unlock()
	if w <= 0 || h <= 0 {
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
	}

	rgb, err := toScaledRGB(img, w, h)
	if err != nil {
		return Frame{}, err
	}

	return Frame{RGB: rgb, Width: w, Height: h, Timestamp: ts}, nil
}

// toScaledRGB drops the alpha channel of a captured RGBA image via gocv's
// BGRA->BGR conversion, which removes the fourth byte of each pixel and so
// leaves the bytes in R,G,B order, and resizes it to the target dimensions.
func toScaledRGB(img *image.RGBA, w, h int) ([]byte, error) {
	src, err := gocv.NewMatFromBytes(img.Bounds().Dy(), img.Bounds().Dx(), gocv.MatTypeCV8UC4, img.Pix)
	if err != nil {
		return nil, fmt.Errorf("%w: mat from captured image: %w", airerr.ErrEncodeFailed, err)
	}
	defer src.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(src, &bgr, gocv.ColorBGRAToBGR)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(bgr, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)

	return resized.ToBytes(), nil
}
