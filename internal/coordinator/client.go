package coordinator

import (
	"context"
	"encoding/json"

	"github.com/kbinani/screenshot"

	"github.com/1ureka/airan/internal/envelope"
	"github.com/1ureka/airan/internal/input"
	"github.com/1ureka/airan/internal/media/audio"
	"github.com/1ureka/airan/internal/media/capture"
	"github.com/1ureka/airan/internal/media/encode"
	"github.com/1ureka/airan/internal/peerid"
	"github.com/1ureka/airan/internal/session"
	"github.com/1ureka/airan/internal/util"
)

// handleConnect answers an incoming "connect" envelope: it validates the
// auth trio, spawns a Peer Session bound to the sender, offers SDP, and
// wires MCE/FFR/IC to the session once it connects.
func (co *Coordinator) handleConnect(ctx context.Context, env envelope.Envelope) {
	if err := peerid.Verify(co.local, "", env.Sender, env.Receiver, env.ReceiverPwd); err != nil {
		util.LogWarning("coordinator: rejecting connect from %s: %v", env.Sender, err)
		co.sendError(env.Sender, "auth rejected")
		return
	}

	data, err := env.DataAsConnect()
	if err != nil {
		util.LogWarning("coordinator: malformed connect data from %s: %v", env.Sender, err)
		co.sendError(env.Sender, "malformed connect payload")
		return
	}

	fps := data.FPS
	if fps == 0 {
		fps = co.fps
	}
	if data.ControlMaxWidth == 0 {
		data.ControlMaxWidth = -1
	}
	if data.ControlMaxHeight == 0 {
		data.ControlMaxHeight = -1
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess, err := session.New(sessCtx, session.Options{
		Role:               session.RoleClient,
		RemoteID:           env.Sender,
		RemotePwdMD5:       env.ReceiverPwd,
		ICEServers:         co.iceServers,
		OnlyRelay:          data.OnlyRelay,
		AdaptiveResolution: data.ControlMaxWidth > 0 && data.ControlMaxHeight > 0,
		FPS:                fps,
		IsOnlyFile:         data.IsOnlyFile,
	})
	if err != nil {
		util.LogWarning("coordinator: new client session for %s: %v", env.Sender, err)
		cancel()
		return
	}

	ls := newLiveSession(co, env.Sender, sess, sessCtx, cancel)
	ls.ex = newExchange(co.sig, co.local.ID, env.Sender, sess.PeerConnection())

	if err := co.register(env.Sender, ls); err != nil {
		util.LogWarning("coordinator: %v", err)
		sess.Close()
		cancel()
		return
	}

	if !data.IsOnlyFile {
		ls.onInput = co.clientInputHandler(ls, env.Sender)
	}
	ls.onConnected = func() { co.startClientMedia(ls, fps, data) }

	go ls.run()

	if err := ls.ex.offer(sessCtx); err != nil {
		util.LogWarning("coordinator: offer to %s: %v", env.Sender, err)
	}
}

func (co *Coordinator) sendError(remote, msg string) {
	env := envelope.WithStringData(envelope.Envelope{
		Type: envelope.TypeError, Sender: co.local.ID, Receiver: remote,
	}, msg)
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = co.sig.SendText(string(data))
}

// clientInputHandler attaches an input.Client to this session's input
// channel, synthesizing InputEvents locally and acknowledging keyframe
// requests against the running encoder once startClientMedia wires one in.
func (co *Coordinator) clientInputHandler(ls *liveSession, remote string) func([]byte) {
	screenW, screenH := primaryScreenSize()
	ic := input.NewClient(co.local, remote, session.InputSender{S: ls.sess}, input.NopSynth{}, screenW, screenH, 1.0)
	ic.OnKeyframeRequest(func() { ls.forceKeyframe() })
	return ic.Handle
}

func primaryScreenSize() (int, int) {
	b := screenshot.GetDisplayBounds(0)
	return b.Dx(), b.Dy()
}

// startClientMedia computes the adaptive encode size, opens capture+encode,
// and pumps encoded video (and, if enabled, audio) samples onto the
// session's tracks until the session tears down.
func (co *Coordinator) startClientMedia(ls *liveSession, fps int, data envelope.ConnectData) {
	if data.IsOnlyFile {
		return
	}

	localW, localH := primaryScreenSize()
	encodeW, encodeH := capture.ComputeEncodeSize(localW, localH, data.ControlMaxWidth, data.ControlMaxHeight)

	capturer := capture.New(fps, encodeW, encodeH)
	enc, err := encode.Open(encode.Config{Width: encodeW, Height: encodeH, FPS: fps})
	if err != nil {
		util.LogWarning("coordinator: open encoder for %s: %v", ls.remote, err)
		return
	}
	ls.setEncoder(enc)

	capturer.Start()
	go func() {
		defer capturer.Stop()
		defer enc.Close()
		defer ls.setEncoder(nil)
		for {
			select {
			case <-ls.ctx.Done():
				return
			case frame := <-capturer.Frames():
				nalus, err := enc.Encode(frame.RGB, frame.Timestamp)
				if err != nil {
					util.LogDebug("coordinator: encode for %s: %v", ls.remote, err)
					continue
				}
				if len(nalus) == 0 {
					continue
				}
				if err := ls.sess.SendVideoSample(nalus, uint32(frame.Timestamp.Microseconds())); err != nil {
					return
				}
			}
		}
	}()

	if co.audioEnabled {
		go co.startClientAudio(ls)
	}
}

// startClientAudio opens the loopback capture + Opus encode path and pumps
// gated frames onto the session's audio track until the session tears down.
func (co *Coordinator) startClientAudio(ls *liveSession) {
	ac, err := audio.Open()
	if err != nil {
		util.LogWarning("coordinator: open audio capture for %s: %v", ls.remote, err)
		return
	}
	defer ac.Close()
	ac.Start()

	for {
		select {
		case <-ls.ctx.Done():
			return
		case frame := <-ac.Frames():
			if err := ls.sess.SendAudioSample(frame.Payload, uint32(frame.Timestamp.Microseconds())); err != nil {
				return
			}
		}
	}
}
