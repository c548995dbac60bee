// Package envelope defines the signaling wire protocol:
// the JSON messages exchanged with the signaling hub.
package envelope

import "encoding/json"

// Role identifies which side sent an envelope.
type Role string

const (
	RoleClient     Role = "cli"
	RoleController Role = "ctl"
	RoleServer     Role = "server"
)

// Type enumerates the known envelope "type" values.
type Type string

const (
	TypeOffer       Type = "offer"
	TypeAnswer      Type = "answer"
	TypeCandidate   Type = "candidate"
	TypeConnect     Type = "connect"
	TypeConnected   Type = "connected"
	TypeOnlineOne   Type = "onlineOne"
	TypeOnlineList  Type = "onlineList"
	TypeOfflineOne  Type = "offlineOne"
	TypeError       Type = "error"
)

// Envelope is the generic signaling message shape. Data is left as raw JSON
// since its shape depends on Type; callers unmarshal it into the concrete
// payload they expect (an SDP string, a candidate string, a ConnectData, …).
type Envelope struct {
	Role        Role            `json:"role,omitempty"`
	Type        Type            `json:"type"`
	Sender      string          `json:"sender,omitempty"`
	Receiver    string          `json:"receiver,omitempty"`
	ReceiverPwd string          `json:"receiver_pwd,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Mid         string          `json:"mid,omitempty"`
}

// ConnectData is the payload carried by a "connect" envelope.
type ConnectData struct {
	FPS              int  `json:"fps"`
	IsOnlyFile       bool `json:"is_only_file"`
	OnlyRelay        bool `json:"only_relay"`
	ControlMaxWidth  int  `json:"control_max_width,omitempty"`
	ControlMaxHeight int  `json:"control_max_height,omitempty"`
}

// CandidateData is the payload carried by a "candidate" envelope; in the
// wire format the candidate itself travels as a string in Data and the
// m-line id travels in the top-level Mid field.
type CandidateData = string

// DataAsString decodes Data as a bare JSON string (used for "offer",
// "answer", "candidate" and "error" envelopes, whose Data is SDP text,
// a candidate line, or an error message respectively).
func (e *Envelope) DataAsString() (string, error) {
	var s string
	if len(e.Data) == 0 {
		return "", nil
	}
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", err
	}
	return s, nil
}

// DataAsConnect decodes Data as a ConnectData payload.
func (e *Envelope) DataAsConnect() (ConnectData, error) {
	var c ConnectData
	if len(e.Data) == 0 {
		return c, nil
	}
	err := json.Unmarshal(e.Data, &c)
	return c, err
}

// WithStringData returns a copy of e with Data set to the JSON encoding of s.
func WithStringData(e Envelope, s string) Envelope {
	raw, _ := json.Marshal(s)
	e.Data = raw
	return e
}

// WithConnectData returns a copy of e with Data set to the JSON encoding of c.
func WithConnectData(e Envelope, c ConnectData) Envelope {
	raw, _ := json.Marshal(c)
	e.Data = raw
	return e
}
