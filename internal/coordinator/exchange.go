// Package coordinator owns one Peer Session plus its per-role glue: the
// client path answers an incoming connect by spawning a session, offering
// SDP, and wiring MCE/FFR/IC to it; the controller path initiates a
// connect, waits for the offer, answers, and wires MDD/FFR/IC instead.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/airan/internal/envelope"
	"github.com/1ureka/airan/internal/signaling"
	"github.com/1ureka/airan/internal/util"
)

// exchange drives the SDP/ICE trickle for one Peer Session over the
// signaling client, addressed to one remote id. Both client and
// controller paths share it; only who offers and who answers differs.
type exchange struct {
	sig      *signaling.Client
	localID  string
	remoteID string
	pc       *webrtc.PeerConnection
}

func newExchange(sig *signaling.Client, localID, remoteID string, pc *webrtc.PeerConnection) *exchange {
	e := &exchange{sig: sig, localID: localID, remoteID: remoteID, pc: pc}
	pc.OnICECandidate(e.onLocalCandidate)
	return e
}

func (e *exchange) onLocalCandidate(c *webrtc.ICECandidate) {
	if c == nil {
		return
	}
	init := c.ToJSON()
	env := envelope.WithStringData(envelope.Envelope{
		Type:     envelope.TypeCandidate,
		Sender:   e.localID,
		Receiver: e.remoteID,
		Mid:      derefString(init.SDPMid),
	}, init.Candidate)
	e.sendEnvelope(env)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (e *exchange) sendEnvelope(env envelope.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		util.LogWarning("coordinator: marshal envelope: %v", err)
		return
	}
	if err := e.sig.SendText(string(data)); err != nil {
		util.LogWarning("coordinator: send envelope failed: %v", err)
	}
}

// offer creates a local offer, sets it, and sends it to the remote.
func (e *exchange) offer(ctx context.Context) error {
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("coordinator: create offer: %w", err)
	}
	if err := e.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("coordinator: set local description: %w", err)
	}
	e.sendEnvelope(envelope.WithStringData(envelope.Envelope{
		Type: envelope.TypeOffer, Sender: e.localID, Receiver: e.remoteID,
	}, offer.SDP))
	return nil
}

// handleRemoteCandidate applies a trickled ICE candidate envelope.
func (e *exchange) handleRemoteCandidate(env envelope.Envelope) {
	candidate, err := env.DataAsString()
	if err != nil {
		util.LogWarning("coordinator: malformed candidate envelope: %v", err)
		return
	}
	init := webrtc.ICECandidateInit{Candidate: candidate}
	if env.Mid != "" {
		mid := env.Mid
		init.SDPMid = &mid
	}
	if err := e.pc.AddICECandidate(init); err != nil {
		util.LogWarning("coordinator: add ice candidate: %v", err)
	}
}

// handleRemoteOffer applies a remote offer and replies with an answer.
// Used by the controller path, which waits for the client to offer.
func (e *exchange) handleRemoteOffer(env envelope.Envelope) error {
	sdp, err := env.DataAsString()
	if err != nil {
		return fmt.Errorf("coordinator: malformed offer envelope: %w", err)
	}
	if err := e.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return fmt.Errorf("coordinator: set remote description: %w", err)
	}
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("coordinator: create answer: %w", err)
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("coordinator: set local description: %w", err)
	}
	e.sendEnvelope(envelope.WithStringData(envelope.Envelope{
		Type: envelope.TypeAnswer, Sender: e.localID, Receiver: e.remoteID,
	}, answer.SDP))
	return nil
}

// handleRemoteAnswer applies a remote answer. Used by the client path,
// which offers and waits for the controller's answer.
func (e *exchange) handleRemoteAnswer(env envelope.Envelope) error {
	sdp, err := env.DataAsString()
	if err != nil {
		return fmt.Errorf("coordinator: malformed answer envelope: %w", err)
	}
	return e.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}
