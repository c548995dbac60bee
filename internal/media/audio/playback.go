package audio

import (
	"fmt"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"

	"github.com/1ureka/airan/internal/airerr"
)

// Player decodes incoming Opus frames and plays them on the default output
// device.
type Player struct {
	pipe *gst.Pipeline
	src  *app.Source
}

// OpenPlayer builds appsrc(opus) -> opusdec -> audioconvert -> audioresample
// -> autoaudiosink.
func OpenPlayer() (*Player, error) {
	gst.Init(nil)

	pipe, err := gst.NewPipeline("airan-audio-playback")
	if err != nil {
		return nil, fmt.Errorf("%w: new playback pipeline: %w", airerr.ErrDecodeFailed, err)
	}

	srcElem, err := gst.NewElement("appsrc")
	if err != nil {
		return nil, fmt.Errorf("%w: appsrc: %w", airerr.ErrDecodeFailed, err)
	}
	_ = srcElem.SetProperty("caps", gst.NewCapsFromString(
		fmt.Sprintf("audio/x-opus,rate=%d,channels=%d", sampleRate, channels)))
	_ = srcElem.SetProperty("format", int(gst.FormatTime))
	src := app.SrcFromElement(srcElem)

	dec, err := gst.NewElement("opusdec")
	if err != nil {
		return nil, fmt.Errorf("%w: opusdec unavailable: %w", airerr.ErrDecodeFailed, err)
	}
	convert, err := gst.NewElement("audioconvert")
	if err != nil {
		return nil, fmt.Errorf("%w: audioconvert: %w", airerr.ErrDecodeFailed, err)
	}
	resample, err := gst.NewElement("audioresample")
	if err != nil {
		return nil, fmt.Errorf("%w: audioresample: %w", airerr.ErrDecodeFailed, err)
	}
	sink, err := gst.NewElement("autoaudiosink")
	if err != nil {
		return nil, fmt.Errorf("%w: autoaudiosink unavailable: %w", airerr.ErrDecodeFailed, err)
	}

	if err := pipe.AddMany(srcElem, dec, convert, resample, sink); err != nil {
		return nil, fmt.Errorf("%w: add playback elements: %w", airerr.ErrDecodeFailed, err)
	}
	if err := gst.ElementLinkMany(srcElem, dec, convert, resample, sink); err != nil {
		return nil, fmt.Errorf("%w: link playback elements: %w", airerr.ErrDecodeFailed, err)
	}

	if err := pipe.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("%w: set playback playing: %w", airerr.ErrDecodeFailed, err)
	}

	return &Player{pipe: pipe, src: src}, nil
}

// Feed pushes one decoded RTP Opus frame payload into the playback pipeline.
func (p *Player) Feed(opus []byte) error {
	buf := gst.NewBufferFromBytes(opus)
	if ret := p.src.PushBuffer(buf); ret != gst.FlowOK {
		return fmt.Errorf("%w: push playback buffer: %s", airerr.ErrDecodeFailed, ret.String())
	}
	return nil
}

// Close tears the playback pipeline down.
func (p *Player) Close() error {
	if p.pipe == nil {
		return nil
	}
	p.pipe.SendEvent(gst.NewEOSEvent())
	return p.pipe.SetState(gst.StateNull)
}
