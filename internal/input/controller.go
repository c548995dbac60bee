package input

import (
	"fmt"
	"time"
)

// Sender is the minimal surface Controller needs from a session's input
// channel: a text send, matching session.channel's SendText.
type Sender interface {
	SendText(text string) error
}

// Controller builds and sends Events toward one client, stamping every
// event with the identity trio the client's Client.Handle verifies.
type Controller struct {
	sender       Sender
	localID      string
	remoteID     string
	remotePwdMD5 string
	frame        Rect
}

// NewController builds a Controller for one remote client. frame is the
// displayed-frame rectangle (in the same pixel space as future pointer
// events) used to suppress out-of-frame input before it reaches the wire.
func NewController(sender Sender, localID, remoteID, remotePwdMD5 string, frame Rect) *Controller {
	return &Controller{sender: sender, localID: localID, remoteID: remoteID, remotePwdMD5: remotePwdMD5, frame: frame}
}

// SetFrame updates the displayed-frame rectangle, e.g. after a window resize.
func (c *Controller) SetFrame(frame Rect) { c.frame = frame }

func (c *Controller) envelope(msgType MsgType) Event {
	return Event{MsgType: msgType, Sender: c.localID, Receiver: c.remoteID, ReceiverPwd: c.remotePwdMD5}
}

// SendKeyboard sends a keyboard InputEvent.
func (c *Controller) SendKeyboard(key uint32, down bool) error {
	ev := c.envelope(MsgKeyboard)
	ev.Key = key
	if down {
		ev.DwFlags = FlagDown
	} else {
		ev.DwFlags = FlagUp
	}
	return c.send(ev)
}

// SendMouseMove sends a mouse-move InputEvent if (px,py) — in the
// Controller's frame's pixel space — falls inside the displayed frame. It
// silently suppresses the event otherwise, gating it at the source.
func (c *Controller) SendMouseMove(px, py float64) error {
	if !c.frame.Contains(px, py) {
		return nil
	}
	x, y := NormalizeInFrame(c.frame, px, py)
	ev := c.envelope(MsgMouse)
	ev.X, ev.Y, ev.DwFlags = x, y, FlagMove
	return c.send(ev)
}

// SendMouseButton sends a mouse down/up InputEvent.
func (c *Controller) SendMouseButton(button int32, px, py float64, down bool) error {
	if !c.frame.Contains(px, py) {
		return nil
	}
	x, y := NormalizeInFrame(c.frame, px, py)
	ev := c.envelope(MsgMouse)
	ev.Button, ev.X, ev.Y = button, x, y
	if down {
		ev.DwFlags = FlagDown
	} else {
		ev.DwFlags = FlagUp
	}
	return c.send(ev)
}

// SendDoubleClick sends a double-click InputEvent.
func (c *Controller) SendDoubleClick(button int32, px, py float64) error {
	if !c.frame.Contains(px, py) {
		return nil
	}
	x, y := NormalizeInFrame(c.frame, px, py)
	ev := c.envelope(MsgMouse)
	ev.Button, ev.X, ev.Y, ev.DwFlags = button, x, y, FlagDoubleClick
	return c.send(ev)
}

// SendWheel sends a mouse-wheel InputEvent. delta is the signed wheel
// delta: positive away from the user, negative toward; one notch is ±120
// on Windows and mapped to one line elsewhere.
func (c *Controller) SendWheel(px, py float64, delta int32) error {
	if !c.frame.Contains(px, py) {
		return nil
	}
	x, y := NormalizeInFrame(c.frame, px, py)
	ev := c.envelope(MsgMouse)
	ev.X, ev.Y, ev.MouseData, ev.DwFlags = x, y, delta, FlagWheel
	return c.send(ev)
}

// reasonNetworkErrorRecovery is the only Reason RequestKeyframe sends today:
// MDD's Health tracker asks for a keyframe after losing too many frames in a
// row, which in practice means the link dropped packets.
const reasonNetworkErrorRecovery = "network_error_recovery"

// RequestKeyframe sends a request_keyframe control-plane message.
func (c *Controller) RequestKeyframe() error {
	ev := c.envelope(MsgRequestKeyframe)
	ev.Timestamp = time.Now().UnixMilli()
	ev.Reason = reasonNetworkErrorRecovery
	return c.send(ev)
}

func (c *Controller) send(ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("input: encode event: %w", err)
	}
	return c.sender.SendText(string(data))
}
