package input

// Synth is the OS-level input-synthesis primitive a client binds to:
// SendInput on Windows, XTest on X11, CGEventCreate* on macOS. The core
// only depends on this interface; the concrete synthesizer is an external
// collaborator supplied by the entry point for the host platform.
type Synth interface {
	Key(vk uint32, down bool) error
	Move(x, y int) error
	Button(button int32, down bool) error
	DoubleClick(button int32, x, y int) error
	Wheel(delta int32) error
}

// NopSynth discards every call. Useful for headless builds or tests where
// no real input target exists.
type NopSynth struct{}

func (NopSynth) Key(vk uint32, down bool) error            { return nil }
func (NopSynth) Move(x, y int) error                       { return nil }
func (NopSynth) Button(button int32, down bool) error      { return nil }
func (NopSynth) DoubleClick(button int32, x, y int) error  { return nil }
func (NopSynth) Wheel(delta int32) error                   { return nil }
