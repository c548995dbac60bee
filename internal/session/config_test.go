package session

import (
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestICEConfigurationBuildsStunAndTurnPair(t *testing.T) {
	servers := []ICEServer{
		{Host: "turn.example.com", Port: 3478, Username: "u", Password: "p"},
	}
	cfg := iceConfiguration(servers, false)

	if len(cfg.ICEServers) != 3 {
		t.Fatalf("len(ICEServers) = %d, want 3 (stun + turn-udp + turn-tcp)", len(cfg.ICEServers))
	}

	want := map[string]bool{
		"stun:turn.example.com:3478":                true,
		"turn:turn.example.com:3478?transport=udp": true,
		"turn:turn.example.com:3478?transport=tcp": true,
	}
	for _, s := range cfg.ICEServers {
		if len(s.URLs) != 1 || !want[s.URLs[0]] {
			t.Fatalf("unexpected ICE server URL %v", s.URLs)
		}
	}

	if cfg.ICETransportPolicy == webrtc.ICETransportPolicyRelay {
		t.Fatalf("expected default transport policy, got relay")
	}
}

func TestICEConfigurationOnlyRelay(t *testing.T) {
	cfg := iceConfiguration([]ICEServer{{Host: "h"}}, true)
	if cfg.ICETransportPolicy != webrtc.ICETransportPolicyRelay {
		t.Fatalf("ICETransportPolicy = %v, want Relay", cfg.ICETransportPolicy)
	}
}

func TestICEConfigurationCarriesCredentials(t *testing.T) {
	cfg := iceConfiguration([]ICEServer{{Host: "h", Username: "bob", Password: "secret"}}, false)
	var sawCreds bool
	for _, s := range cfg.ICEServers {
		if s.Username == "bob" {
			sawCreds = true
			if s.Credential != "secret" {
				t.Fatalf("Credential = %v, want secret", s.Credential)
			}
		}
	}
	if !sawCreds {
		t.Fatalf("no ICE server carried the configured username")
	}
}
