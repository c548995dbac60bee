package input

import (
	"testing"

	"github.com/1ureka/airan/internal/peerid"
)

type captureSender struct {
	sent []string
}

func (c *captureSender) SendText(text string) error {
	c.sent = append(c.sent, text)
	return nil
}

type captureSynth struct {
	moved   []int
	pressed []bool
}

func (s *captureSynth) Key(vk uint32, down bool) error { return nil }
func (s *captureSynth) Move(x, y int) error {
	s.moved = append(s.moved, x, y)
	return nil
}
func (s *captureSynth) Button(button int32, down bool) error {
	s.pressed = append(s.pressed, down)
	return nil
}
func (s *captureSynth) DoubleClick(button int32, x, y int) error { return nil }
func (s *captureSynth) Wheel(delta int32) error                  { return nil }

func TestNormalizeDenormalizeRoundTrip(t *testing.T) {
	frame := Rect{X: 100, Y: 50, W: 800, H: 600}
	x, y := NormalizeInFrame(frame, 500, 350)
	if x < 0 || x > 1 || y < 0 || y > 1 {
		t.Fatalf("normalized (%v,%v) out of [0,1]", x, y)
	}
	px, py := Denormalize(x, y, 1920, 1080, 1.0)
	if px < 0 || px > 1920 || py < 0 || py > 1080 {
		t.Fatalf("denormalized (%d,%d) out of screen bounds", px, py)
	}
}

func TestRectContainsExcludesOutsidePoints(t *testing.T) {
	frame := Rect{X: 0, Y: 0, W: 100, H: 100}
	if frame.Contains(150, 50) {
		t.Fatalf("expected point outside frame to be excluded")
	}
	if !frame.Contains(50, 50) {
		t.Fatalf("expected point inside frame to be included")
	}
}

func TestControllerSuppressesOutOfFrameMouseMove(t *testing.T) {
	sender := &captureSender{}
	c := NewController(sender, "ctl", "cli", "PWD", Rect{X: 0, Y: 0, W: 100, H: 100})
	if err := c.SendMouseMove(500, 500); err != nil {
		t.Fatalf("SendMouseMove: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected out-of-frame move to be suppressed, got %d sends", len(sender.sent))
	}
}

func TestClientRejectsWrongReceiverPwd(t *testing.T) {
	local, err := peerid.LoadOrCreate(t.TempDir()+"/uuid.json", "localpwd")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	synth := &captureSynth{}
	client := NewClient(local, "ctl", nil, synth, 1920, 1080, 1.0)

	ev := Event{MsgType: MsgMouse, Sender: "ctl", Receiver: local.ID, ReceiverPwd: "wrong", X: 0.5, Y: 0.5, DwFlags: FlagMove}
	data, _ := Encode(ev)
	client.Handle(data)

	if len(synth.moved) != 0 {
		t.Fatalf("expected auth failure to suppress synthesis, got %v", synth.moved)
	}
}

func TestClientSynthesizesValidMouseMove(t *testing.T) {
	local, err := peerid.LoadOrCreate(t.TempDir()+"/uuid.json", "localpwd")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	synth := &captureSynth{}
	client := NewClient(local, "ctl", nil, synth, 1920, 1080, 1.0)

	ev := Event{MsgType: MsgMouse, Sender: "ctl", Receiver: local.ID, ReceiverPwd: local.PwdMD5, X: 0.5, Y: 0.5, DwFlags: FlagMove}
	data, _ := Encode(ev)
	client.Handle(data)

	if len(synth.moved) != 2 {
		t.Fatalf("expected one Move call, got %v", synth.moved)
	}
}
