package session

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Role identifies which side of a Peer Session this process plays.
type Role int

const (
	RoleClient Role = iota
	RoleController
)

// ICEServer carries one STUN/TURN endpoint's credentials.
type ICEServer struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Options configures a new Peer Session.
type Options struct {
	Role               Role
	RemoteID           string
	RemotePwdMD5       string
	ICEServers         []ICEServer
	OnlyRelay          bool
	AdaptiveResolution bool
	FPS                int
	IsOnlyFile         bool
}

const (
	videoTrackID  = "video_airan"
	videoStreamID = "video_stream1_airan"
	audioTrackID  = "audio_airan"

	labelInput    = "input_airan"
	labelFileBin  = "file_airan"
	labelFileText = "file_text_airan"
)

// iceConfiguration builds the one-STUN, one-TURN-UDP, one-TURN-TCP agent
// configuration every session uses, forcing relay-only candidates when
// onlyRelay is set.
func iceConfiguration(servers []ICEServer, onlyRelay bool) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	for _, s := range servers {
		hostport := s.Host
		if s.Port != 0 {
			hostport = fmt.Sprintf("%s:%d", s.Host, s.Port)
		}
		stunURL := "stun:" + hostport
		turnUDP := "turn:" + hostport + "?transport=udp"
		turnTCP := "turn:" + hostport + "?transport=tcp"

		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{stunURL}})
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       []string{turnUDP},
			Username:   s.Username,
			Credential: s.Password,
		})
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       []string{turnTCP},
			Username:   s.Username,
			Credential: s.Password,
		})
	}

	cfg := webrtc.Configuration{ICEServers: iceServers}
	if onlyRelay {
		cfg.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}
	return cfg
}
