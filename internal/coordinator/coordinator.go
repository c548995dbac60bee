package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/1ureka/airan/internal/airerr"
	"github.com/1ureka/airan/internal/envelope"
	"github.com/1ureka/airan/internal/peerid"
	"github.com/1ureka/airan/internal/session"
	"github.com/1ureka/airan/internal/signaling"
	"github.com/1ureka/airan/internal/util"
)

// Coordinator owns the process-wide signaling client plus one live
// Peer Session per remote, routing signaling envelopes to the matching
// session's SDP/ICE exchange and dispatching fresh "connect" envelopes to
// the client path.
type Coordinator struct {
	local        *peerid.Local
	sig          *signaling.Client
	iceServers   []session.ICEServer
	fps          int
	audioEnabled bool

	mu       sync.Mutex
	sessions map[string]*liveSession
}

// New builds a Coordinator bound to one signaling client and local
// identity. fps is the configured default capture rate; audioEnabled gates
// whether the client path starts the optional audio capture path.
func New(local *peerid.Local, sig *signaling.Client, iceServers []session.ICEServer, fps int, audioEnabled bool) *Coordinator {
	return &Coordinator{
		local:        local,
		sig:          sig,
		iceServers:   iceServers,
		fps:          fps,
		audioEnabled: audioEnabled,
		sessions:     make(map[string]*liveSession),
	}
}

// Run drains the signaling client's event stream until ctx is cancelled,
// dispatching each envelope to the client path or to an in-flight
// exchange's SDP/ICE handlers.
func (co *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-co.sig.Events():
			if !ok {
				return
			}
			co.handleSignalingEvent(ctx, ev)
		}
	}
}

func (co *Coordinator) handleSignalingEvent(ctx context.Context, ev signaling.Event) {
	text, ok := ev.(signaling.TextReceived)
	if !ok {
		return
	}
	var env envelope.Envelope
	if err := json.Unmarshal([]byte(text.Text), &env); err != nil {
		util.LogDebug("coordinator: non-envelope text frame: %v", err)
		return
	}

	switch env.Type {
	case envelope.TypeConnect:
		co.handleConnect(ctx, env)
	case envelope.TypeOffer:
		co.withLive(env.Sender, func(ls *liveSession) {
			if err := ls.ex.handleRemoteOffer(env); err != nil {
				util.LogWarning("coordinator: %v", err)
			}
		})
	case envelope.TypeAnswer:
		co.withLive(env.Sender, func(ls *liveSession) {
			if err := ls.ex.handleRemoteAnswer(env); err != nil {
				util.LogWarning("coordinator: %v", err)
			}
		})
	case envelope.TypeCandidate:
		co.withLive(env.Sender, func(ls *liveSession) { ls.ex.handleRemoteCandidate(env) })
	case envelope.TypeError:
		util.LogWarning("coordinator: server error envelope: %s", string(env.Data))
	}
}

func (co *Coordinator) withLive(remote string, fn func(*liveSession)) {
	co.mu.Lock()
	ls := co.sessions[remote]
	co.mu.Unlock()
	if ls == nil {
		util.LogWarning("coordinator: envelope from %s with no live session", remote)
		return
	}
	fn(ls)
}

func (co *Coordinator) register(remote string, ls *liveSession) error {
	co.mu.Lock()
	defer co.mu.Unlock()
	if _, exists := co.sessions[remote]; exists {
		return fmt.Errorf("%w: %s", airerr.ErrSessionExists, remote)
	}
	co.sessions[remote] = ls
	return nil
}

func (co *Coordinator) unregister(remote string) {
	co.mu.Lock()
	delete(co.sessions, remote)
	co.mu.Unlock()
}
