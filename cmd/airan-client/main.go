// Airan-client — runs the controlled-desktop side of an AiRan session: it
// connects to the signaling hub, then answers incoming connect requests by
// spawning a Peer Session and streaming its screen (and, if enabled, audio)
// to whichever controller connects.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/airan/internal/config"
	"github.com/1ureka/airan/internal/coordinator"
	"github.com/1ureka/airan/internal/peerid"
	"github.com/1ureka/airan/internal/session"
	"github.com/1ureka/airan/internal/signaling"
	"github.com/1ureka/airan/internal/singleton"
	"github.com/1ureka/airan/internal/util"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := flag.String("config", "airan.ini", "Path to the AiRan INI configuration file")
	audioFlag := flag.Bool("audio", false, "Enable optional loopback audio capture")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("AiRan Client — v%s", version))
	pterm.Println()

	lock, err := singleton.Acquire()
	if err != nil {
		util.LogError("failed to acquire process lock: %v", err)
		os.Exit(1)
	}
	if lock == nil {
		util.LogInfo("another AiRan client instance is already running")
		os.Exit(0)
	}
	defer lock.Release()

	cfg, err := config.Load(*configPath)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	util.SetLevel(string(cfg.Local.LogLevel))

	local, err := peerid.LoadOrCreate(uuidPath(), cfg.Local.Pwd)
	if err != nil {
		util.LogError("failed to load local identity: %v", err)
		os.Exit(1)
	}
	util.LogInfo("local peer id: %s", local.ID)

	hostname, _ := os.Hostname()
	sig := signaling.New(cfg.SignalServer.WSURL, local.ID, hostname, 30*time.Second)
	if err := sig.Connect(ctx); err != nil {
		util.LogError("failed to connect to signaling hub: %v", err)
		os.Exit(1)
	}
	defer sig.Close()

	iceServers := []session.ICEServer{{
		Host:     cfg.ICEServer.Host,
		Port:     cfg.ICEServer.Port,
		Username: cfg.ICEServer.Username,
		Password: cfg.ICEServer.Password,
	}}

	co := coordinator.New(local, sig, iceServers, cfg.Remote.FPS, *audioFlag)

	util.StartStatsReporter(ctx)
	util.LogSuccess("AiRan client ready, waiting for a controller to connect")

	co.Run(ctx)
	util.LogInfo("AiRan client shutting down")
}

// uuidPath is the "Global/Uuid" location: AiRan/uuid.json under the
// per-user config directory (the home directory if that is unavailable),
// independent of where the INI config lives, persisting the local peer id
// across restarts.
func uuidPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		if u, uerr := user.Current(); uerr == nil {
			dir = u.HomeDir
		}
	}
	return filepath.Join(dir, "AiRan", "uuid.json")
}
