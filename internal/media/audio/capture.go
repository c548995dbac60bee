// Package audio captures loopback/stereo-mix PCM audio, RMS-gates it, and
// encodes the surviving frames to Opus on the client side; on the
// controller side it decodes incoming Opus frames straight to the default
// output device. Both directions are built from go-gst elements, the same
// way the video encode/decode pipelines are.
package audio

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"

	"github.com/1ureka/airan/internal/airerr"
	"github.com/1ureka/airan/internal/util"
)

const (
	sampleRate = 44100
	channels   = 2
	// rmsSilenceThreshold is the short-term RMS (over int16 full scale) below
	// which a PCM chunk is considered silence and dropped before encoding.
	rmsSilenceThreshold = 0.02
)

// Frame is one gated, Opus-encoded audio frame ready for the audio track.
type Frame struct {
	Payload   []byte
	Timestamp time.Duration
}

// Capturer pulls PCM from the default loopback input, RMS-gates it, and
// encodes surviving chunks to Opus.
type Capturer struct {
	pcmPipe  *gst.Pipeline
	pcmSink  *app.Sink
	encPipe  *gst.Pipeline
	encSrc   *app.Source
	encSink  *app.Sink
	pcmChunk chan []byte
	encOut   chan []byte

	stopCh chan struct{}
	out    chan Frame
}

// Open builds the PCM capture and Opus encode pipelines. Callers gate
// whether this is invoked at all on the "audio enabled" config flag.
func Open() (*Capturer, error) {
	gst.Init(nil)

	c := &Capturer{
		pcmChunk: make(chan []byte, 4),
		encOut:   make(chan []byte, 4),
		stopCh:   make(chan struct{}),
		out:      make(chan Frame, 4),
	}

	if err := c.openPCM(); err != nil {
		return nil, err
	}
	if err := c.openEncoder(); err != nil {
		c.pcmPipe.SetState(gst.StateNull)
		return nil, err
	}
	return c, nil
}

func (c *Capturer) openPCM() error {
	pipe, err := gst.NewPipeline("airan-audio-capture")
	if err != nil {
		return fmt.Errorf("%w: new pcm pipeline: %w", airerr.ErrEncodeFailed, err)
	}

	src, err := gst.NewElement("autoaudiosrc")
	if err != nil {
		return fmt.Errorf("%w: autoaudiosrc unavailable: %w", airerr.ErrEncodeFailed, err)
	}
	convert, err := gst.NewElement("audioconvert")
	if err != nil {
		return fmt.Errorf("%w: audioconvert: %w", airerr.ErrEncodeFailed, err)
	}
	resample, err := gst.NewElement("audioresample")
	if err != nil {
		return fmt.Errorf("%w: audioresample: %w", airerr.ErrEncodeFailed, err)
	}
	caps, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("%w: capsfilter: %w", airerr.ErrEncodeFailed, err)
	}
	_ = caps.SetProperty("caps", gst.NewCapsFromString(
		fmt.Sprintf("audio/x-raw,format=S16LE,rate=%d,channels=%d", sampleRate, channels)))

	sinkElem, err := gst.NewElement("appsink")
	if err != nil {
		return fmt.Errorf("%w: appsink: %w", airerr.ErrEncodeFailed, err)
	}
	sink := app.SinkFromElement(sinkElem)

	if err := pipe.AddMany(src, convert, resample, caps, sinkElem); err != nil {
		return fmt.Errorf("%w: add pcm elements: %w", airerr.ErrEncodeFailed, err)
	}
	if err := gst.ElementLinkMany(src, convert, resample, caps, sinkElem); err != nil {
		return fmt.Errorf("%w: link pcm elements: %w", airerr.ErrEncodeFailed, err)
	}

	sink.SetCallbacks(&app.SinkCallbacks{NewSampleFunc: c.onPCMSample})

	if err := pipe.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("%w: set pcm playing: %w", airerr.ErrEncodeFailed, err)
	}

	c.pcmPipe, c.pcmSink = pipe, sink
	return nil
}

func (c *Capturer) openEncoder() error {
	pipe, err := gst.NewPipeline("airan-audio-encode")
	if err != nil {
		return fmt.Errorf("%w: new encode pipeline: %w", airerr.ErrEncodeFailed, err)
	}

	srcElem, err := gst.NewElement("appsrc")
	if err != nil {
		return fmt.Errorf("%w: appsrc: %w", airerr.ErrEncodeFailed, err)
	}
	_ = srcElem.SetProperty("caps", gst.NewCapsFromString(
		fmt.Sprintf("audio/x-raw,format=S16LE,rate=%d,channels=%d", sampleRate, channels)))
	_ = srcElem.SetProperty("format", int(gst.FormatTime))
	src := app.SrcFromElement(srcElem)

	enc, err := gst.NewElement("opusenc")
	if err != nil {
		return fmt.Errorf("%w: opusenc unavailable: %w", airerr.ErrEncodeFailed, err)
	}

	sinkElem, err := gst.NewElement("appsink")
	if err != nil {
		return fmt.Errorf("%w: appsink: %w", airerr.ErrEncodeFailed, err)
	}
	sink := app.SinkFromElement(sinkElem)

	if err := pipe.AddMany(srcElem, enc, sinkElem); err != nil {
		return fmt.Errorf("%w: add encode elements: %w", airerr.ErrEncodeFailed, err)
	}
	if err := gst.ElementLinkMany(srcElem, enc, sinkElem); err != nil {
		return fmt.Errorf("%w: link encode elements: %w", airerr.ErrEncodeFailed, err)
	}

	sink.SetCallbacks(&app.SinkCallbacks{NewSampleFunc: c.onEncodedSample})

	if err := pipe.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("%w: set encode playing: %w", airerr.ErrEncodeFailed, err)
	}

	c.encPipe, c.encSrc, c.encSink = pipe, src, sink
	return nil
}

func (c *Capturer) onPCMSample(s *app.Sink) gst.FlowReturn {
	sample := s.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	defer sample.Unref()
	buf := sample.GetBuffer()
	if buf == nil {
		return gst.FlowOK
	}
	mapping := buf.Map(gst.MapRead)
	if mapping == nil {
		return gst.FlowOK
	}
	defer buf.Unmap()

	pcm := make([]byte, len(mapping.Bytes()))
	copy(pcm, mapping.Bytes())

	select {
	case c.pcmChunk <- pcm:
	default:
	}
	return gst.FlowOK
}

func (c *Capturer) onEncodedSample(s *app.Sink) gst.FlowReturn {
	sample := s.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	defer sample.Unref()
	buf := sample.GetBuffer()
	if buf == nil {
		return gst.FlowOK
	}
	mapping := buf.Map(gst.MapRead)
	if mapping == nil {
		return gst.FlowOK
	}
	defer buf.Unmap()

	opus := make([]byte, len(mapping.Bytes()))
	copy(opus, mapping.Bytes())

	select {
	case c.encOut <- opus:
	default:
	}
	return gst.FlowOK
}

// rms computes the root-mean-square level of a block of S16LE samples,
// normalized to [0,1] against full scale.
func rms(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sumSq float64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		v := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		f := float64(v) / 32768.0
		sumSq += f * f
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}

// Frames returns the Capturer's gated, Opus-encoded output stream.
func (c *Capturer) Frames() <-chan Frame { return c.out }

// Start begins pulling PCM, RMS-gating it, and forwarding surviving chunks
// through the Opus encoder.
func (c *Capturer) Start() {
	start := time.Now()
	go func() {
		for {
			select {
			case <-c.stopCh:
				return
			case pcm := <-c.pcmChunk:
				if rms(pcm) < rmsSilenceThreshold {
					continue
				}
				buf := gst.NewBufferFromBytes(pcm)
				buf.SetPresentationTimestamp(gst.ClockTime(time.Since(start)))
				if ret := c.encSrc.PushBuffer(buf); ret != gst.FlowOK {
					util.LogDebug("audio: push pcm buffer: %s", ret.String())
				}
			}
		}
	}()
	go func() {
		for {
			select {
			case <-c.stopCh:
				return
			case opus := <-c.encOut:
				select {
				case c.out <- Frame{Payload: opus, Timestamp: time.Since(start)}:
				default:
					util.LogWarning("audio: output channel full, dropping encoded frame")
				}
			}
		}
	}()
}

// Close tears both pipelines down.
func (c *Capturer) Close() error {
	close(c.stopCh)
	if c.pcmPipe != nil {
		c.pcmPipe.SetState(gst.StateNull)
	}
	if c.encPipe != nil {
		c.encPipe.SetState(gst.StateNull)
	}
	return nil
}
