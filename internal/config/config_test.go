package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "airan.ini")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, `
[signal_server]
wsUrl = wss://hub.example.com/ws
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Remote.FPS != 15 {
		t.Errorf("FPS default = %d, want 15", cfg.Remote.FPS)
	}
	if cfg.Local.LogLevel != LogLevelInfo {
		t.Errorf("LogLevel default = %q, want info", cfg.Local.LogLevel)
	}
}

func TestLoadMissingWSURL(t *testing.T) {
	path := writeTempConfig(t, `[local]
local_pwd = secret
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing signal_server.wsUrl")
	}
}

func TestLoadFPSClamped(t *testing.T) {
	path := writeTempConfig(t, `
[signal_server]
wsUrl = wss://hub.example.com/ws

[remote]
fps = 999
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Remote.FPS != 60 {
		t.Errorf("FPS = %d, want clamped to 60", cfg.Remote.FPS)
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	path := writeTempConfig(t, `
[signal_server]
wsUrl = wss://hub.example.com/ws

[local]
logLevel = verbose
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid logLevel")
	}
}

func TestLoadICEServer(t *testing.T) {
	path := writeTempConfig(t, `
[signal_server]
wsUrl = wss://hub.example.com/ws

[ice_server]
host = turn.example.com
port = 3478
username = alice
password = s3cret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ICEServer.Host != "turn.example.com" || cfg.ICEServer.Port != 3478 {
		t.Errorf("unexpected ICEServer: %+v", cfg.ICEServer)
	}
}
