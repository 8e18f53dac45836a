package mesh

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// signalPayload is the opaque content of a "signal" envelope: either a
// session description or a trickled ICE candidate.
type signalPayload struct {
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// peerLink is one point-to-point connection. The pion implementation is the
// only one used at runtime; tests substitute their own.
type peerLink interface {
	Start() error
	Signal(raw json.RawMessage) error
	SendData(b []byte) error
	Connected() bool
	ReplaceAudioTrack(track webrtc.TrackLocal) error
	Close() error
}

type linkParams struct {
	peerID        string
	logger        *slog.Logger
	localTrack    webrtc.TrackLocal
	stunURLs      []string
	sendSignal    func(raw json.RawMessage) error
	onData        func(b []byte)
	onRemoteTrack func(track *webrtc.TrackRemote)
}

type newLinkFunc func(params *linkParams) (peerLink, error)

type pionLink struct {
	peerID string
	logger *slog.Logger
	pc     *webrtc.PeerConnection

	sendSignal func(raw json.RawMessage) error
	onData     func(b []byte)

	connected atomic.Bool

	mu                sync.Mutex
	dc                *webrtc.DataChannel
	audioSender       *webrtc.RTPSender
	pendingCandidates []webrtc.ICECandidateInit
}

func newPionLink(params *linkParams) (peerLink, error) {
	config := webrtc.Configuration{}
	if len(params.stunURLs) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: params.stunURLs}}
	}

	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	l := &pionLink{
		peerID:     params.peerID,
		logger:     params.logger.With("peer", params.peerID),
		pc:         pc,
		sendSignal: params.sendSignal,
		onData:     params.onData,
	}

	// The audio transceiver always exists so the outgoing track can be
	// swapped later without renegotiation.
	transceiver, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to add audio transceiver: %w", err)
	}
	l.audioSender = transceiver.Sender()

	if params.localTrack != nil {
		if err := l.audioSender.ReplaceTrack(params.localTrack); err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to set local track: %w", err)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}

		init := c.ToJSON()
		if err := l.send(signalPayload{Candidate: &init}); err != nil {
			l.logger.Debug("mesh.pionLink.OnICECandidate", "error", err)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		params.onRemoteTrack(track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		l.logger.Debug("mesh.pionLink.OnConnectionStateChange", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			l.connected.Store(false)
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		l.bindDataChannel(dc)
	})

	return l, nil
}

// Start makes this side the initiator: it opens the data channel and sends
// the offer.
func (l *pionLink) Start() error {
	dc, err := l.pc.CreateDataChannel("sync", nil)
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	l.bindDataChannel(dc)

	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	if err := l.send(signalPayload{SDP: l.pc.LocalDescription()}); err != nil {
		return fmt.Errorf("failed to send offer: %w", err)
	}

	return nil
}

func (l *pionLink) bindDataChannel(dc *webrtc.DataChannel) {
	l.mu.Lock()
	l.dc = dc
	l.mu.Unlock()

	dc.OnOpen(func() {
		l.connected.Store(true)
	})
	dc.OnClose(func() {
		l.connected.Store(false)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		l.onData(msg.Data)
	})
}

// Signal feeds one offer/answer/candidate payload into the connection.
// Candidates arriving before the remote description are queued.
func (l *pionLink) Signal(raw json.RawMessage) error {
	var payload signalPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal signal: %w", err)
	}

	if payload.SDP != nil {
		if err := l.pc.SetRemoteDescription(*payload.SDP); err != nil {
			return fmt.Errorf("failed to set remote description: %w", err)
		}

		l.mu.Lock()
		pending := l.pendingCandidates
		l.pendingCandidates = nil
		l.mu.Unlock()
		for _, candidate := range pending {
			if err := l.pc.AddICECandidate(candidate); err != nil {
				l.logger.Debug("mesh.pionLink.Signal", "error", err)
			}
		}

		if payload.SDP.Type == webrtc.SDPTypeOffer {
			answer, err := l.pc.CreateAnswer(nil)
			if err != nil {
				return fmt.Errorf("failed to create answer: %w", err)
			}
			if err := l.pc.SetLocalDescription(answer); err != nil {
				return fmt.Errorf("failed to set local description: %w", err)
			}
			if err := l.send(signalPayload{SDP: l.pc.LocalDescription()}); err != nil {
				return fmt.Errorf("failed to send answer: %w", err)
			}
		}
	}

	if payload.Candidate != nil {
		if l.pc.RemoteDescription() == nil {
			l.mu.Lock()
			l.pendingCandidates = append(l.pendingCandidates, *payload.Candidate)
			l.mu.Unlock()
			return nil
		}

		if err := l.pc.AddICECandidate(*payload.Candidate); err != nil {
			return fmt.Errorf("failed to add ice candidate: %w", err)
		}
	}

	return nil
}

func (l *pionLink) SendData(b []byte) error {
	l.mu.Lock()
	dc := l.dc
	l.mu.Unlock()

	if dc == nil || !l.connected.Load() {
		return fmt.Errorf("data channel to %s is not open", l.peerID)
	}

	return dc.Send(b)
}

func (l *pionLink) Connected() bool {
	return l.connected.Load()
}

func (l *pionLink) ReplaceAudioTrack(track webrtc.TrackLocal) error {
	l.mu.Lock()
	sender := l.audioSender
	l.mu.Unlock()

	if sender == nil {
		return fmt.Errorf("no audio sender on link to %s", l.peerID)
	}

	return sender.ReplaceTrack(track)
}

func (l *pionLink) Close() error {
	l.connected.Store(false)
	return l.pc.Close()
}

func (l *pionLink) send(payload signalPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal signal payload: %w", err)
	}

	return l.sendSignal(raw)
}
