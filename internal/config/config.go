// Package config loads the AiRan INI configuration file and parses it
// into typed sections.
package config

import (
	"fmt"

	"github.com/go-ini/ini"
)

// LogLevel mirrors local.logLevel's allowed values.
type LogLevel string

const (
	LogLevelTrace    LogLevel = "trace"
	LogLevelDebug    LogLevel = "debug"
	LogLevelInfo     LogLevel = "info"
	LogLevelWarn     LogLevel = "warn"
	LogLevelError    LogLevel = "error"
	LogLevelCritical LogLevel = "critical"
)

// Local is the [local] section.
type Local struct {
	Pwd      string   `ini:"local_pwd"`
	ShowUI   bool     `ini:"showUI"`
	LogLevel LogLevel `ini:"logLevel"`
}

// Remote is the [remote] section.
type Remote struct {
	FPS int `ini:"fps"`
}

// SignalServer is the [signal_server] section.
type SignalServer struct {
	WSURL string `ini:"wsUrl"`
}

// ICEServer is the [ice_server] section.
type ICEServer struct {
	Host     string `ini:"host"`
	Port     int    `ini:"port"`
	Username string `ini:"username"`
	Password string `ini:"password"`
}

// Config is the fully-parsed AiRan configuration file.
type Config struct {
	Local        Local
	Remote       Remote
	SignalServer SignalServer
	ICEServer    ICEServer
}

// defaults holds the documented fallbacks: fps defaults to
// 15 (Load's validate step clamps it to [1,60]); logLevel defaults to info.
func defaults() Config {
	return Config{
		Local:  Local{LogLevel: LogLevelInfo},
		Remote: Remote{FPS: 15},
	}
}

// Load reads and validates the INI file at path.
func Load(path string) (*Config, error) {
	cfg := defaults()

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to load %s: %w", path, err)
	}

	if err := f.Section("local").MapTo(&cfg.Local); err != nil {
		return nil, fmt.Errorf("config: [local]: %w", err)
	}
	if err := f.Section("remote").MapTo(&cfg.Remote); err != nil {
		return nil, fmt.Errorf("config: [remote]: %w", err)
	}
	if err := f.Section("signal_server").MapTo(&cfg.SignalServer); err != nil {
		return nil, fmt.Errorf("config: [signal_server]: %w", err)
	}
	if err := f.Section("ice_server").MapTo(&cfg.ICEServer); err != nil {
		return nil, fmt.Errorf("config: [ice_server]: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SignalServer.WSURL == "" {
		return fmt.Errorf("config: signal_server.wsUrl is required")
	}
	if c.Remote.FPS < 1 || c.Remote.FPS > 60 {
		c.Remote.FPS = clamp(c.Remote.FPS, 1, 60)
	}
	switch c.Local.LogLevel {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelCritical:
	case "":
		c.Local.LogLevel = LogLevelInfo
	default:
		return fmt.Errorf("config: invalid local.logLevel %q", c.Local.LogLevel)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
