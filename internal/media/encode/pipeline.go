// Package encode drives a GStreamer pipeline that takes RGB frames in and
// produces Annex-B H.264 access units out, picking the first working
// backend off the hardware ladder and sticking with it for the session.
package encode

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"

	"github.com/1ureka/airan/internal/airerr"
	"github.com/1ureka/airan/internal/util"
)

// Config configures the encoder. Width and Height are forced even before
// the pipeline opens, since several hardware backends reject odd dimensions.
type Config struct {
	Width, Height int
	FPS           int
	BitrateKbps   uint
	GOPSize       int
}

// clampBitrate keeps the requested bitrate within [5%, 50%] of the raw
// uncompressed bandwidth at this resolution and framerate, which is the
// range every backend on the ladder accepts without renegotiating caps.
func clampBitrate(cfg Config) uint {
	raw := float64(cfg.Width) * float64(cfg.Height) * float64(cfg.FPS)
	lo := uint(raw * 0.05 / 1000)
	hi := uint(raw * 0.5 / 1000)
	switch {
	case cfg.BitrateKbps < lo:
		return lo
	case cfg.BitrateKbps > hi:
		return hi
	default:
		return cfg.BitrateKbps
	}
}

func evenDown(v int) int {
	if v%2 != 0 {
		return v - 1
	}
	return v
}

// Pipeline wraps appsrc(RGB) -> videoconvert -> h264enc -> appsink(byte-stream).
type Pipeline struct {
	cfg     Config
	backend Backend

	pipeline *gst.Pipeline
	src      *app.Source
	sink     *app.Sink
	enc      *gst.Element

	out chan []byte

	mu       sync.Mutex
	frameIdx uint64
}

// Open builds and starts the pipeline, walking the backend ladder until one
// element family opens successfully.
func Open(cfg Config) (*Pipeline, error) {
	gst.Init(nil)

	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}
	if cfg.BitrateKbps == 0 {
		cfg.BitrateKbps = 2000
	}
	if cfg.GOPSize == 0 {
		cfg.GOPSize = cfg.FPS
	}
	cfg.Width = evenDown(cfg.Width)
	cfg.Height = evenDown(cfg.Height)
	cfg.BitrateKbps = clampBitrate(cfg)

	var lastErr error
	for _, b := range ladder() {
		p, err := open(cfg, b)
		if err == nil {
			util.LogInfo("encode: opened backend %s", b)
			return p, nil
		}
		lastErr = err
		util.LogDebug("encode: backend %s unavailable: %v", b, err)
	}
	return nil, fmt.Errorf("%w: no usable H.264 encoder backend (last: %v)", airerr.ErrEncodeFailed, lastErr)
}

func open(cfg Config, backend Backend) (*Pipeline, error) {
	elemName, ok := gstElement[backend]
	if !ok {
		return nil, fmt.Errorf("encode: unknown backend %s", backend)
	}

	pipe, err := gst.NewPipeline("airan-encode")
	if err != nil {
		return nil, err
	}

	srcElem, err := gst.NewElement("appsrc")
	if err != nil {
		return nil, err
	}
	conv, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, err
	}
	enc, err := gst.NewElement(elemName)
	if err != nil {
		return nil, fmt.Errorf("encode: element %s unavailable: %w", elemName, err)
	}
	parse, err := gst.NewElement("h264parse")
	if err != nil {
		return nil, err
	}
	sinkElem, err := gst.NewElement("appsink")
	if err != nil {
		return nil, err
	}

	if err := pipe.AddMany(srcElem, conv, enc, parse, sinkElem); err != nil {
		return nil, err
	}
	if err := gst.ElementLinkMany(srcElem, conv, enc, parse, sinkElem); err != nil {
		return nil, fmt.Errorf("encode: link elements for %s: %w", elemName, err)
	}

	// -1 repeats SPS/PPS ahead of every IDR, so a decoder that joins mid-stream
	// or drops a keyframe still has what it needs to recover on the next one.
	_ = parse.SetProperty("config-interval", -1)

	configureBitrate(enc, backend, cfg)

	p := &Pipeline{
		cfg:      cfg,
		backend:  backend,
		pipeline: pipe,
		src:      app.SrcFromElement(srcElem),
		sink:     app.SinkFromElement(sinkElem),
		enc:      enc,
		out:      make(chan []byte, 4),
	}

	p.sink.SetEmitSignals(true)
	p.sink.SetProperty("max-buffers", uint(4))
	p.sink.SetProperty("drop", true)
	p.sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: p.onSample,
	})

	if err := pipe.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("encode: set playing: %w", err)
	}

	return p, nil
}

func (p *Pipeline) onSample(s *app.Sink) gst.FlowReturn {
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

	nalus := toAnnexB(mapping.Bytes())

	select {
	case p.out <- nalus:
	default:
		util.LogWarning("encode: output channel full, dropping encoded frame")
	}
	return gst.FlowOK
}

// toAnnexB copies out a sample's bytes, rewriting 4-byte big-endian length
// prefixes to Annex-B start codes if the element handed back AVCC framing
// instead of byte-stream. h264parse is configured for byte-stream output,
// but a couple of hardware encoders on the ladder ignore that caps request.
func toAnnexB(data []byte) []byte {
	if looksLikeAnnexB(data) {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}

	out := make([]byte, 0, len(data)+16)
	for len(data) >= 4 {
		n := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
		if n <= 0 || n+4 > len(data) {
			break
		}
		out = append(out, 0, 0, 0, 1)
		out = append(out, data[4:4+n]...)
		data = data[4+n:]
	}
	return out
}

func looksLikeAnnexB(data []byte) bool {
	return len(data) >= 4 && data[0] == 0 && data[1] == 0 && (data[2] == 1 || (data[2] == 0 && data[3] == 1))
}

// configureBitrate sets bitrate and a one-IDR-per-second GOP on every
// backend's encoder element, then disables B-frames: via bframes on the
// software backend, which also gets a minimum keyframe interval of half the
// GOP (keyint-min), and via max-bframes on every hardware backend. Errors
// from setting a property the element lacks are ignored.
func configureBitrate(enc *gst.Element, backend Backend, cfg Config) {
	_ = enc.SetProperty("bitrate", uint(cfg.BitrateKbps))
	_ = enc.SetProperty("key-int-max", uint(cfg.GOPSize))
	_ = enc.SetProperty("gop-size", uint(cfg.GOPSize))

	if backend == BackendSoftware {
		_ = enc.SetProperty("bframes", uint(0))
		_ = enc.SetProperty("keyint-min", uint(cfg.GOPSize/2))
	} else {
		_ = enc.SetProperty("max-bframes", uint(0))
	}
}

// Backend reports which ladder rung this pipeline opened.
func (p *Pipeline) Backend() Backend { return p.backend }

// Encode feeds one RGB frame in and returns the Annex-B access unit it
// produces. Blocking: it waits for the matching sample off onSample's
// output channel, with a generous timeout against a stuck element.
func (p *Pipeline) Encode(rgb []byte, timestamp time.Duration) ([]byte, error) {
	p.mu.Lock()
	buf := gst.NewBufferFromBytes(rgb)
	buf.SetPresentationTimestamp(gst.ClockTime(timestamp))
	p.frameIdx++

	// Belt-and-suspenders IDR every 2*fps frames, independent of
	// ForceKeyframe callers, so a stream never goes longer than ~2s without
	// one even if a request gets lost.
	period := uint64(p.cfg.GOPSize * 2)
	forceIDR := period > 0 && p.frameIdx%period == 0

	ret := p.src.PushBuffer(buf)
	p.mu.Unlock()

	if forceIDR {
		_ = p.ForceKeyframe()
	}

	if ret != gst.FlowOK {
		return nil, fmt.Errorf("%w: push buffer: %s", airerr.ErrEncodeFailed, ret.String())
	}

	select {
	case nalus := <-p.out:
		return nalus, nil
	case <-time.After(2 * time.Second):
		return nil, fmt.Errorf("%w: timed out waiting for encoded sample", airerr.ErrEncodeFailed)
	}
}

// ForceKeyframe requests the next encoded frame be an IDR/keyframe.
func (p *Pipeline) ForceKeyframe() error {
	ev := gst.NewCustomEvent(gst.EventTypeCustomUpstream, nil)
	if p.src.SendEvent(ev) {
		return nil
	}
	return errors.New("encode: force-keyframe event was not handled")
}

// Close drains and tears the pipeline down.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pipeline == nil {
		return nil
	}
	p.pipeline.SendEvent(gst.NewEOSEvent())
	err := p.pipeline.SetState(gst.StateNull)
	p.pipeline = nil
	return err
}
