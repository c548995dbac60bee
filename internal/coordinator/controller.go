package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/1ureka/airan/internal/envelope"
	"github.com/1ureka/airan/internal/input"
	"github.com/1ureka/airan/internal/media/audio"
	"github.com/1ureka/airan/internal/media/decode"
	"github.com/1ureka/airan/internal/session"
	"github.com/1ureka/airan/internal/util"
)

// ControllerOptions configures an operator-initiated connect.
type ControllerOptions struct {
	RemoteID           string
	RemotePwdMD5       string
	FPS                int
	IsOnlyFile         bool
	OnlyRelay          bool
	AdaptiveResolution bool

	// OnVideoFrame receives each decoded RGB frame, for display.
	OnVideoFrame func(rgb []byte)
}

// StartControllerSession sends a "connect" envelope to RemoteID, spawns a
// Peer Session, and wires MDD/FFR/IC once the remote offers and the session
// connects.
func (co *Coordinator) StartControllerSession(ctx context.Context, opts ControllerOptions) error {
	maxW, maxH := -1, -1
	if opts.AdaptiveResolution {
		maxW, maxH = primaryScreenSize()
	}

	connectEnv := envelope.WithConnectData(envelope.Envelope{
		Type: envelope.TypeConnect, Sender: co.local.ID, Receiver: opts.RemoteID, ReceiverPwd: opts.RemotePwdMD5,
	}, envelope.ConnectData{
		FPS: opts.FPS, IsOnlyFile: opts.IsOnlyFile, OnlyRelay: opts.OnlyRelay,
		ControlMaxWidth: maxW, ControlMaxHeight: maxH,
	})
	body, err := json.Marshal(connectEnv)
	if err != nil {
		return fmt.Errorf("coordinator: marshal connect envelope: %w", err)
	}
	if err := co.sig.SendText(string(body)); err != nil {
		return fmt.Errorf("coordinator: send connect: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess, err := session.New(sessCtx, session.Options{
		Role:               session.RoleController,
		RemoteID:           opts.RemoteID,
		RemotePwdMD5:       opts.RemotePwdMD5,
		ICEServers:         co.iceServers,
		OnlyRelay:          opts.OnlyRelay,
		AdaptiveResolution: opts.AdaptiveResolution,
		FPS:                opts.FPS,
		IsOnlyFile:         opts.IsOnlyFile,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("coordinator: new controller session: %w", err)
	}

	ls := newLiveSession(co, opts.RemoteID, sess, sessCtx, cancel)
	ls.ex = newExchange(co.sig, co.local.ID, opts.RemoteID, sess.PeerConnection())

	if err := co.register(opts.RemoteID, ls); err != nil {
		sess.Close()
		cancel()
		return err
	}

	ic := input.NewController(session.InputSender{S: ls.sess}, co.local.ID, opts.RemoteID, opts.RemotePwdMD5, input.Rect{})
	ls.onConnected = func() { co.startControllerMedia(ls, opts, ic) }

	go ls.run()
	return nil
}

// startControllerMedia opens MDD (and, unless is_only_file, an audio
// playback path) and pumps incoming video/audio frames through them.
func (co *Coordinator) startControllerMedia(ls *liveSession, opts ControllerOptions, ic *input.Controller) {
	if opts.IsOnlyFile {
		return
	}

	dec, err := decode.Open(decode.Config{}, func() {
		if err := ic.RequestKeyframe(); err != nil {
			util.LogDebug("coordinator: request keyframe from %s: %v", ls.remote, err)
			return
		}
		util.Stats.AddKeyframeReq()
	})
	if err != nil {
		util.LogWarning("coordinator: open decoder for %s: %v", ls.remote, err)
		return
	}

	player, err := audio.OpenPlayer()
	if err != nil {
		util.LogDebug("coordinator: open audio playback for %s: %v", ls.remote, err)
		player = nil
	}

	ls.onVideoFrame = func(payload []byte, timestampUs uint32) {
		rgb, err := dec.Feed(payload)
		if err != nil {
			util.LogDebug("coordinator: decode from %s: %v", ls.remote, err)
			return
		}
		if rgb == nil {
			return
		}
		if opts.OnVideoFrame != nil {
			opts.OnVideoFrame(rgb)
		}
	}
	if player != nil {
		ls.onAudioFrame = func(payload []byte, timestampUs uint32) {
			if err := player.Feed(payload); err != nil {
				util.LogDebug("coordinator: audio playback from %s: %v", ls.remote, err)
			}
		}
	}

	ls.onFailed = func(error) {
		dec.Close()
		if player != nil {
			player.Close()
		}
	}
}
