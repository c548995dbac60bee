// Package decode drives a GStreamer decode pipeline that takes Annex-B
// H.264 access units in and produces RGB frames out, plus the health and
// recovery state machine that watches for empty/corrupt frames and asks
// the remote peer for a fresh keyframe when decoding stalls.
package decode

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"

	"github.com/1ureka/airan/internal/airerr"
	"github.com/1ureka/airan/internal/util"
)

// Config configures the decoder.
type Config struct {
	Width, Height int
}

// Pipeline wraps appsrc(byte-stream) -> h264parse -> h264dec -> videoconvert -> appsink(RGB).
type Pipeline struct {
	cfg     Config
	backend Backend

	pipeline *gst.Pipeline
	src      *app.Source
	sink     *app.Sink

	out chan []byte

	mu sync.Mutex

	health *Health
}

// Open builds and starts the pipeline, walking the backend ladder.
func Open(cfg Config, onKeyframeRequest func()) (*Pipeline, error) {
	gst.Init(nil)

	var lastErr error
	for _, b := range ladder() {
		p, err := open(cfg, b)
		if err == nil {
			util.LogInfo("decode: opened backend %s", b)
			p.health = NewHealth(onKeyframeRequest)
			return p, nil
		}
		lastErr = err
		util.LogDebug("decode: backend %s unavailable: %v", b, err)
	}
	return nil, fmt.Errorf("%w: no usable H.264 decoder backend (last: %v)", airerr.ErrDecodeFailed, lastErr)
}

func open(cfg Config, backend Backend) (*Pipeline, error) {
	elemName, ok := gstElement[backend]
	if !ok {
		return nil, fmt.Errorf("decode: unknown backend %s", backend)
	}

	pipe, err := gst.NewPipeline("airan-decode")
	if err != nil {
		return nil, err
	}

	srcElem, err := gst.NewElement("appsrc")
	if err != nil {
		return nil, err
	}
	parse, err := gst.NewElement("h264parse")
	if err != nil {
		return nil, err
	}
	dec, err := gst.NewElement(elemName)
	if err != nil {
		return nil, fmt.Errorf("decode: element %s unavailable: %w", elemName, err)
	}

	// Hardware surfaces come back as NV12 (or, on RKMPP, DRM_PRIME handles
	// that still need a download to system memory); nv12Caps pins the
	// intermediate format so videoconvert always has a known starting point
	// for the final NV12 -> RGB24 step, regardless of which backend produced it.
	nv12Caps, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, err
	}
	// mppvideodec (RKMPP) downloads its DRM_PRIME surfaces to NV12 itself;
	// every other hardware decoder on the ladder also settles on NV12, so
	// one capsfilter covers the whole ladder.
	_ = nv12Caps.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=NV12"))

	conv, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, err
	}
	rgbCaps, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, err
	}
	_ = rgbCaps.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=RGB"))

	sinkElem, err := gst.NewElement("appsink")
	if err != nil {
		return nil, err
	}

	if err := pipe.AddMany(srcElem, parse, dec, nv12Caps, conv, rgbCaps, sinkElem); err != nil {
		return nil, err
	}
	if err := gst.ElementLinkMany(srcElem, parse, dec, nv12Caps, conv, rgbCaps, sinkElem); err != nil {
		return nil, fmt.Errorf("decode: link elements for %s: %w", elemName, err)
	}

	p := &Pipeline{
		cfg:      cfg,
		backend:  backend,
		pipeline: pipe,
		src:      app.SrcFromElement(srcElem),
		sink:     app.SinkFromElement(sinkElem),
		out:      make(chan []byte, 4),
	}

	p.sink.SetEmitSignals(true)
	p.sink.SetProperty("max-buffers", uint(4))
	p.sink.SetProperty("drop", true)
	p.sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: p.onSample,
	})

	if err := pipe.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("decode: set playing: %w", err)
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

	rgb := make([]byte, len(mapping.Bytes()))
	copy(rgb, mapping.Bytes())

	select {
	case p.out <- rgb:
	default:
		util.LogWarning("decode: output channel full, dropping decoded frame")
	}
	return gst.FlowOK
}

// Backend reports which ladder rung this pipeline opened.
func (p *Pipeline) Backend() Backend { return p.backend }

// Feed pushes one Annex-B access unit in and returns the RGB frame it
// produces, or (nil, nil) when the access unit decoded to nothing
// (parameter sets only, or a corrupt frame the decoder swallowed) or was
// held back while waiting for a keyframe.
func (p *Pipeline) Feed(nalus []byte) ([]byte, error) {
	if !p.health.FeedWaiting(nalus, containsKeyUnit(nalus)) {
		return nil, nil
	}

	p.mu.Lock()
	buf := gst.NewBufferFromBytes(nalus)
	ret := p.src.PushBuffer(buf)
	p.mu.Unlock()

	if ret != gst.FlowOK {
		p.health.onCorrupt()
		return nil, fmt.Errorf("%w: push buffer: %s", airerr.ErrDecodeFailed, ret.String())
	}

	select {
	case rgb := <-p.out:
		p.health.onFrame()
		return rgb, nil
	case <-time.After(p.health.interval()):
		p.health.onEmpty()
		return nil, nil
	}
}

// containsKeyUnit reports whether an Annex-B access unit carries an
// SPS, PPS, or IDR NALU, scanning past each 00 00 01 / 00 00 00 01 start
// code to check the NALU type in the low 5 bits of the next byte.
func containsKeyUnit(data []byte) bool {
	for i := 0; i+1 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 {
			continue
		}
		j := i + 2
		for j < len(data) && data[j] == 0 {
			j++
		}
		if j >= len(data) || data[j] != 1 {
			continue
		}
		naluStart := j + 1
		if naluStart >= len(data) {
			continue
		}
		switch data[naluStart] & 0x1F {
		case 5, 7, 8:
			return true
		}
		i = naluStart
	}
	return false
}

// Close tears the pipeline down.
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
