// Package input carries serialized InputEvents over the input data channel:
// the controller normalizes pointer coordinates to the displayed frame and
// the client denormalizes and synthesizes them against the local OS, with
// auth gating on every inbound envelope.
package input

import "encoding/json"

// MsgType distinguishes the wire shapes carried on the input channel.
type MsgType string

const (
	MsgKeyboard         MsgType = "keyboard"
	MsgMouse            MsgType = "mouse"
	MsgRequestKeyframe  MsgType = "request_keyframe"
	MsgKeyframeResponse MsgType = "keyframe_response"
)

// DwFlag enumerates the button/motion states an InputEvent carries.
type DwFlag string

const (
	FlagDown        DwFlag = "down"
	FlagUp          DwFlag = "up"
	FlagMove        DwFlag = "move"
	FlagDoubleClick DwFlag = "doubleClick"
	FlagWheel       DwFlag = "wheel"
)

// Event is the wire shape sent on the input channel. Fields not relevant to
// MsgType are left zero; Sender/Receiver/ReceiverPwd carry the same auth
// trio as a signaling envelope, inlined here rather than wrapped in
// envelope.Envelope since input messages ride a data channel, not the
// signaling socket.
type Event struct {
	MsgType MsgType `json:"msgType"`

	Sender      string `json:"sender,omitempty"`
	Receiver    string `json:"receiver,omitempty"`
	ReceiverPwd string `json:"receiver_pwd,omitempty"`

	// RequestKeyframe
	Timestamp int64  `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// Keyboard
	Key     uint32 `json:"key,omitempty"`
	DwFlags DwFlag `json:"dwFlags,omitempty"`

	// Mouse
	Button    int32   `json:"button,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	MouseData int32   `json:"mouseData,omitempty"`
}

// Encode marshals an Event to its wire JSON.
func Encode(e Event) ([]byte, error) { return json.Marshal(e) }

// Decode unmarshals wire JSON into an Event.
func Decode(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
