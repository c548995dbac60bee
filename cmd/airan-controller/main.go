// Airan-controller — runs the controlling side of an AiRan session: it
// connects to the signaling hub, sends a connect request to a chosen
// remote peer, and decodes the resulting video (and audio) stream while
// forwarding local input events to the client.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"strings"
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
	remoteFlag := flag.String("remote", "", "Remote peer id to connect to")
	remotePwdFlag := flag.String("remotePwd", "", "Remote peer's access password")
	onlyFileFlag := flag.Bool("onlyFile", false, "Connect for file transfer only, skip media")
	adaptiveFlag := flag.Bool("adaptive", true, "Limit the client's encode resolution to this screen")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("AiRan Controller — v%s", version))
	pterm.Println()

	lock, err := singleton.Acquire()
	if err != nil {
		util.LogError("failed to acquire process lock: %v", err)
		os.Exit(1)
	}
	if lock == nil {
		util.LogInfo("another AiRan controller instance is already running")
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

	co := coordinator.New(local, sig, iceServers, cfg.Remote.FPS, false)

	remoteID := strings.TrimSpace(*remoteFlag)
	remotePwd := *remotePwdFlag
	if remoteID == "" {
		remoteID = askRemoteID()
		remotePwd = askRemotePwd()
	}

	frames := 0
	err = co.StartControllerSession(ctx, coordinator.ControllerOptions{
		RemoteID:           remoteID,
		RemotePwdMD5:       peerid.MD5Hex(remotePwd),
		FPS:                cfg.Remote.FPS,
		IsOnlyFile:         *onlyFileFlag,
		AdaptiveResolution: *adaptiveFlag,
		OnVideoFrame: func(rgb []byte) {
			frames++
			if frames%120 == 0 {
				util.LogDebug("controller: %d frames decoded", frames)
			}
		},
	})
	if err != nil {
		util.LogError("failed to start controller session: %v", err)
		os.Exit(1)
	}

	util.StartStatsReporter(ctx)
	util.LogSuccess("connect request sent to %s, waiting for session to establish", remoteID)

	co.Run(ctx)
	util.LogInfo("AiRan controller shutting down")
}

func askRemoteID() string {
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText("Remote peer id").
		Show()
	pterm.Println()
	return strings.TrimSpace(raw)
}

func askRemotePwd() string {
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText("Remote peer's access password").
		Show()
	pterm.Println()
	return raw
}

func uuidPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		if u, uerr := user.Current(); uerr == nil {
			dir = u.HomeDir
		}
	}
	return filepath.Join(dir, "AiRan", "uuid.json")
}
