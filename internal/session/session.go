// Package session wraps one WebRTC peer connection per remote party: ICE
// gathering, SDP exchange, the video/audio tracks, and the three data
// channels, surfaced as a single Event stream.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/airan/internal/transfer"
	"github.com/1ureka/airan/internal/util"
)

// ntpEpochOffset is the number of seconds between the NTP epoch (1900-01-01)
// and the Unix epoch, per RFC 5905.
const ntpEpochOffset = 2208988800

// ntpTimestamp packs t into an RTCP-style 64-bit NTP short format timestamp.
func ntpTimestamp(t time.Time) uint64 {
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) * (1 << 32) / 1e9
	return secs<<32 | frac
}

const (
	videoPT    = 96
	videoSSRC  = 1
	videoClock = 90000

	audioPT    = 111
	audioSSRC  = 2
	audioClock = 48000

	rtpMTU = 1200
)

// Session is one Peer Session: a PeerConnection plus the tracks and data
// channels a remote-desktop exchange needs.
type Session struct {
	opts Options

	pc *webrtc.PeerConnection

	videoTrack *webrtc.TrackLocalStaticRTP
	videoPktz  rtp.Packetizer
	audioTrack *webrtc.TrackLocalStaticRTP
	audioPktz  rtp.Packetizer

	input    *channel
	fileBin  *channel
	fileText *channel

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	torn bool

	// videoPackets/videoOctets/videoTimestamp feed StartSenderReports; they
	// track the same counters the RTCP SR packet format expects.
	videoPackets   atomic.Uint32
	videoOctets    atomic.Uint32
	videoTimestamp atomic.Uint32
}

// New creates the underlying PeerConnection and, for a client, its local
// tracks and data channels. It does not start signaling; the SDP/ICE
// exchange runs on the PeerConnection that PeerConnection() exposes.
func New(ctx context.Context, opts Options) (*Session, error) {
	cfg := iceConfiguration(opts.ICEServers, opts.OnlyRelay)
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("session: new peer connection: %w", err)
	}

	sCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		opts:   opts,
		pc:     pc,
		events: make(chan Event, 128),
		ctx:    sCtx,
		cancel: cancel,
	}

	pc.OnConnectionStateChange(s.onConnectionStateChange)
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		util.LogDebug("session: ice connection state %s", state.String())
	})

	if opts.Role == RoleClient {
		if err := s.startAsClient(); err != nil {
			pc.Close()
			cancel()
			return nil, err
		}
	} else {
		pc.OnTrack(s.onTrack)
		pc.OnDataChannel(s.onDataChannel)
	}

	return s, nil
}

// Events returns the Session's event stream.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		util.LogWarning("session: event channel full, dropping %T", ev)
	}
}

// startAsClient creates the video/audio tracks (unless is_only_file) and the
// three data channels, per the client-side responsibilities.
func (s *Session) startAsClient() error {
	if !s.opts.IsOnlyFile {
		if err := s.addVideoTrack(); err != nil {
			return err
		}
		if err := s.addAudioTrack(); err != nil {
			return err
		}

		input, err := s.pc.CreateDataChannel(labelInput, &webrtc.DataChannelInit{})
		if err != nil {
			return fmt.Errorf("session: create %s: %w", labelInput, err)
		}
		s.wireChannel(labelInput, input, func(c *channel) { s.input = c })
	}

	fileBinRaw, err := s.pc.CreateDataChannel(labelFileBin, &webrtc.DataChannelInit{})
	if err != nil {
		return fmt.Errorf("session: create %s: %w", labelFileBin, err)
	}
	s.wireChannel(labelFileBin, fileBinRaw, func(c *channel) { s.fileBin = c })

	fileTextRaw, err := s.pc.CreateDataChannel(labelFileText, &webrtc.DataChannelInit{})
	if err != nil {
		return fmt.Errorf("session: create %s: %w", labelFileText, err)
	}
	s.wireChannel(labelFileText, fileTextRaw, func(c *channel) { s.fileText = c })

	return nil
}

func (s *Session) addVideoTrack() error {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		videoTrackID, videoStreamID,
	)
	if err != nil {
		return fmt.Errorf("session: new video track: %w", err)
	}
	if _, err := s.pc.AddTrack(track); err != nil {
		return fmt.Errorf("session: add video track: %w", err)
	}
	s.videoTrack = track
	s.videoPktz = rtp.NewPacketizer(rtpMTU, videoPT, videoSSRC, &codecs.H264Payloader{}, rtp.NewRandomSequencer(), videoClock)
	return nil
}

func (s *Session) addAudioTrack() error {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		audioTrackID, audioTrackID,
	)
	if err != nil {
		return fmt.Errorf("session: new audio track: %w", err)
	}
	if _, err := s.pc.AddTrack(track); err != nil {
		return fmt.Errorf("session: add audio track: %w", err)
	}
	s.audioTrack = track
	s.audioPktz = rtp.NewPacketizer(rtpMTU, audioPT, audioSSRC, &opusPayloader{}, rtp.NewRandomSequencer(), audioClock)
	return nil
}

// opusPayloader implements rtp.Payloader for Opus: one frame maps to one RTP
// packet, unlike H.264's NAL-splitting payloader, so there is nothing to do
// beyond handing the frame back unchanged.
type opusPayloader struct{}

func (opusPayloader) Payload(mtu uint16, payload []byte) [][]byte {
	return [][]byte{payload}
}

// SendVideoSample packetizes an Annex-B H.264 access unit and writes it to
// the video track, used by MCE's encode output.
func (s *Session) SendVideoSample(nalus []byte, timestamp uint32) error {
	if s.videoTrack == nil {
		return fmt.Errorf("session: no video track")
	}
	for _, pkt := range s.videoPktz.Packetize(nalus, timestamp) {
		if err := s.videoTrack.WriteRTP(pkt); err != nil {
			return fmt.Errorf("session: write video rtp: %w", err)
		}
		s.videoPackets.Add(1)
		s.videoOctets.Add(uint32(len(pkt.Payload)))
		s.videoTimestamp.Store(pkt.Timestamp)
	}
	util.Stats.AddFrameEncoded()
	return nil
}

// SendAudioSample packetizes an Opus frame and writes it to the audio track.
func (s *Session) SendAudioSample(frame []byte, timestamp uint32) error {
	if s.audioTrack == nil {
		return fmt.Errorf("session: no audio track")
	}
	for _, pkt := range s.audioPktz.Packetize(frame, timestamp) {
		if err := s.audioTrack.WriteRTP(pkt); err != nil {
			return fmt.Errorf("session: write audio rtp: %w", err)
		}
	}
	return nil
}

func (s *Session) wireChannel(label string, raw *webrtc.DataChannel, assign func(*channel)) {
	c := newChannel(raw)
	assign(c)

	c.OnMessage(func(msg webrtc.DataChannelMessage) {
		util.Stats.AddRecv(len(msg.Data))
		switch label {
		case labelInput:
			s.emit(InputMessage{Data: msg.Data})
		case labelFileBin:
			s.emit(FileBinaryFragment{Data: msg.Data})
		case labelFileText:
			s.emit(FileTextMessage{Text: string(msg.Data)})
		}
	})
}

func (s *Session) onDataChannel(dc *webrtc.DataChannel) {
	switch dc.Label() {
	case labelInput:
		s.wireChannel(labelInput, dc, func(c *channel) { s.input = c })
	case labelFileBin:
		s.wireChannel(labelFileBin, dc, func(c *channel) { s.fileBin = c })
	case labelFileText:
		s.wireChannel(labelFileText, dc, func(c *channel) { s.fileText = c })
	default:
		util.LogWarning("session: unexpected data channel label %q", dc.Label())
	}
}

func (s *Session) onTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	switch track.Kind() {
	case webrtc.RTPCodecTypeVideo:
		s.wg.Add(1)
		go s.readVideoTrack(track)
	case webrtc.RTPCodecTypeAudio:
		s.wg.Add(1)
		go s.readAudioTrack(track)
	}

	s.wg.Add(1)
	go s.readRTCP(receiver)
}

func (s *Session) readVideoTrack(track *webrtc.TrackRemote) {
	defer s.wg.Done()
	depacketizer := &codecs.H264Packet{}
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		payload, err := depacketizer.Unmarshal(pkt.Payload)
		if err != nil {
			util.LogDebug("session: h264 depacketize error: %v", err)
			continue
		}
		if len(payload) == 0 {
			continue
		}
		util.Stats.AddFrameDecoded()
		s.emit(VideoFrame{Payload: payload, Timestamp: pkt.Timestamp})
	}
}

func (s *Session) readAudioTrack(track *webrtc.TrackRemote) {
	defer s.wg.Done()
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		s.emit(AudioFrame{Payload: pkt.Payload, Timestamp: pkt.Timestamp})
	}
}

func (s *Session) readRTCP(receiver *webrtc.RTPReceiver) {
	defer s.wg.Done()
	for {
		pkts, _, err := receiver.ReadRTCP()
		if err != nil {
			return
		}
		for _, p := range pkts {
			if _, ok := p.(*rtcp.TransportLayerNack); ok {
				util.LogDebug("session: received NACK, relying on upstream keyframe request")
			}
		}
	}
}

// StartSenderReports periodically emits RTCP SR packets for the video
// track's sender, until the Session's context is cancelled.
func (s *Session) StartSenderReports(sender *webrtc.RTPSender, interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sr := &rtcp.SenderReport{
					SSRC:        videoSSRC,
					NTPTime:     ntpTimestamp(time.Now()),
					RTPTime:     s.videoTimestamp.Load(),
					PacketCount: s.videoPackets.Load(),
					OctetCount:  s.videoOctets.Load(),
				}
				if err := s.pc.WriteRTCP([]rtcp.Packet{sr}); err != nil {
					util.LogDebug("session: write RTCP SR: %v", err)
				}
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *Session) onConnectionStateChange(state webrtc.PeerConnectionState) {
	util.LogDebug("session: connection state %s", state.String())
	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.emit(Connected{})
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		s.teardown(fmt.Errorf("session: peer connection %s", state.String()))
	}
}

// teardown tears down tracks and channels in the contractual order —
// input, file binary, file text, audio, video, peer — resets callbacks, and
// emits Failed exactly once.
func (s *Session) teardown(err error) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.torn = true
	s.mu.Unlock()

	s.cancel()

	if s.input != nil {
		s.input.raw.OnMessage(nil)
		s.input.raw.Close()
	}
	if s.fileBin != nil {
		s.fileBin.raw.OnMessage(nil)
		s.fileBin.raw.Close()
	}
	if s.fileText != nil {
		s.fileText.raw.OnMessage(nil)
		s.fileText.raw.Close()
	}
	s.pc.OnTrack(nil)
	s.pc.OnConnectionStateChange(nil)
	s.pc.Close()

	s.emit(Failed{Err: err})
}

// Close tears the Session down from the caller's side (a local shutdown
// rather than a remote failure).
func (s *Session) Close() error {
	s.teardown(nil)
	s.wg.Wait()
	return nil
}

// FileSender returns a transfer.ChannelSender for the given file channel
// label, for use with a transfer.Sender's SendFile/SendDirectory.
func (s *Session) FileSender(label string) transfer.ChannelSender {
	switch label {
	case labelFileBin:
		return s.fileBin
	case labelFileText:
		return s.fileText
	default:
		return nil
	}
}

// SendText sends a text message on the file_text_airan channel.
func (s *Session) SendText(text string) error {
	if s.fileText == nil {
		return fmt.Errorf("session: file text channel not open")
	}
	return s.fileText.SendText(text)
}

// SendInputText sends a text InputEvent frame on the input_airan channel;
// the InputSender adapter below wraps it to satisfy input.Sender for both
// input.Controller and input.Client's keyframe_response acknowledgements.
func (s *Session) SendInputText(text string) error {
	if s.input == nil {
		return fmt.Errorf("session: input channel not open")
	}
	return s.input.SendText(text)
}

// PeerConnection exposes the underlying pion PeerConnection for the
// signaling-driven SDP/ICE exchange.
func (s *Session) PeerConnection() *webrtc.PeerConnection { return s.pc }

// InputSender adapts Session to input.Sender, so a coordinator can hand
// an input.Controller or input.Client a value that sends text frames on
// this session's input channel without input depending on session.
type InputSender struct{ S *Session }

func (a InputSender) SendText(text string) error { return a.S.SendInputText(text) }
