package input

import (
	"fmt"

	"github.com/1ureka/airan/internal/airerr"
	"github.com/1ureka/airan/internal/peerid"
	"github.com/1ureka/airan/internal/util"
)

// Client receives serialized Events off a session's input channel, gates
// them by identity, and synthesizes them against the local OS. One Client
// per Peer Session.
type Client struct {
	local      *peerid.Local
	remote     string
	sender     Sender
	synth      Synth
	screenW    int
	screenH    int
	pixelRatio float64

	onKeyframeRequest  func()
	onKeyframeResponse func()
}

// NewClient builds a Client bound to one remote controller. sender is used
// to send keyframe_response acknowledgements back; screenW/screenH is the
// client's primary logical screen size; pixelRatio is its device pixel
// ratio (1.0 outside Retina-class macOS displays).
func NewClient(local *peerid.Local, remote string, sender Sender, synth Synth, screenW, screenH int, pixelRatio float64) *Client {
	return &Client{
		local:      local,
		remote:     remote,
		sender:     sender,
		synth:      synth,
		screenW:    screenW,
		screenH:    screenH,
		pixelRatio: pixelRatio,
	}
}

// OnKeyframeRequest registers the callback fired when the controller asks
// for a fresh keyframe over the input channel.
func (c *Client) OnKeyframeRequest(fn func()) { c.onKeyframeRequest = fn }

// OnKeyframeResponse registers the callback fired when the client's own
// earlier request_keyframe is acknowledged.
func (c *Client) OnKeyframeResponse(fn func()) { c.onKeyframeResponse = fn }

// Handle processes one wire message off the input channel. Auth failures
// and unknown message types are logged and dropped, never returned as a
// fatal error, since one bad frame should never tear down the channel.
func (c *Client) Handle(data []byte) {
	ev, err := Decode(data)
	if err != nil {
		util.LogWarning("input: malformed event: %v", err)
		return
	}

	switch ev.MsgType {
	case MsgKeyframeResponse:
		if c.onKeyframeResponse != nil {
			c.onKeyframeResponse()
		}
		return
	case MsgRequestKeyframe:
		if err := peerid.Verify(c.local, c.remote, ev.Sender, ev.Receiver, ev.ReceiverPwd); err != nil {
			util.LogWarning("input: dropping request_keyframe: %v", err)
			return
		}
		if c.onKeyframeRequest != nil {
			c.onKeyframeRequest()
		}
		c.ackKeyframe(ev)
		return
	case MsgKeyboard, MsgMouse:
		if err := peerid.Verify(c.local, c.remote, ev.Sender, ev.Receiver, ev.ReceiverPwd); err != nil {
			util.LogWarning("input: dropping %s event: %v", ev.MsgType, err)
			return
		}
		if err := c.synthesize(ev); err != nil {
			util.LogWarning("input: synth failed: %v", err)
		}
	default:
		util.LogWarning("input: unknown msgType %q", ev.MsgType)
	}
}

func (c *Client) ackKeyframe(req Event) {
	if c.sender == nil {
		return
	}
	ack := Event{MsgType: MsgKeyframeResponse, Sender: c.local.ID, Receiver: c.remote, ReceiverPwd: c.local.PwdMD5}
	data, err := Encode(ack)
	if err != nil {
		return
	}
	if err := c.sender.SendText(string(data)); err != nil {
		util.LogWarning("input: keyframe_response send failed: %v", err)
	}
}

func (c *Client) synthesize(ev Event) error {
	switch ev.MsgType {
	case MsgKeyboard:
		return c.synth.Key(ev.Key, ev.DwFlags == FlagDown)
	case MsgMouse:
		return c.synthesizeMouse(ev)
	default:
		return fmt.Errorf("%w: %s", airerr.ErrInputUnknown, ev.MsgType)
	}
}

func (c *Client) synthesizeMouse(ev Event) error {
	if ev.X < 0 || ev.X > 1 || ev.Y < 0 || ev.Y > 1 {
		return fmt.Errorf("%w: x=%v y=%v", airerr.ErrInputOutsideFrame, ev.X, ev.Y)
	}
	px, py := Denormalize(ev.X, ev.Y, c.screenW, c.screenH, c.pixelRatio)

	switch ev.DwFlags {
	case FlagMove:
		return c.synth.Move(px, py)
	case FlagDown, FlagUp:
		if err := c.synth.Move(px, py); err != nil {
			return err
		}
		return c.synth.Button(ev.Button, ev.DwFlags == FlagDown)
	case FlagDoubleClick:
		return c.synth.DoubleClick(ev.Button, px, py)
	case FlagWheel:
		return c.synth.Wheel(ev.MouseData)
	default:
		return fmt.Errorf("%w: dwFlags=%q", airerr.ErrInputUnknown, ev.DwFlags)
	}
}
