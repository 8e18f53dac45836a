package mesh

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type iSignalSender interface {
	SendSignal(target string, signal json.RawMessage) error
}

// RemoteStream is an inbound audio stream surfaced for the UI to attach to a
// sink. At most one entry per peer exists at a time.
type RemoteStream struct {
	PeerID string
	Track  *webrtc.TrackRemote
}

// Manager keeps a full mesh of point-to-point links matching the room roster.
// It is the only writer of link objects; broken links are garbage-collected
// on the next roster pass rather than retried, since the websocket fallback
// masks the gap.
type Manager struct {
	selfID  string
	logger  *slog.Logger
	signals iSignalSender
	newLink newLinkFunc
	onData  func(peerID string, b []byte)
	onTrack func(peerID string, track *webrtc.TrackRemote)

	mu         sync.Mutex
	links      map[string]peerLink
	remote     map[string]*webrtc.TrackRemote
	localTrack webrtc.TrackLocal
	stunURLs   []string
}

type ManagerParams struct {
	SelfID   string
	Logger   *slog.Logger
	Signals  iSignalSender
	STUNURLs []string
	// OnData receives every payload delivered over a mesh data channel.
	OnData func(peerID string, b []byte)
	// OnRemoteTrack fires when a peer's inbound audio track arrives or is
	// replaced. Optional; RemoteStreams covers polling consumers.
	OnRemoteTrack func(peerID string, track *webrtc.TrackRemote)
}

func NewManager(params *ManagerParams) *Manager {
	return &Manager{
		selfID:   params.SelfID,
		logger:   params.Logger,
		signals:  params.Signals,
		newLink:  newPionLink,
		onData:   params.OnData,
		onTrack:  params.OnRemoteTrack,
		links:    make(map[string]peerLink),
		remote:   make(map[string]*webrtc.TrackRemote),
		stunURLs: params.STUNURLs,
	}
}

// ShouldInitiate reports whether the local side dials the given peer. For
// any pair of distinct identities exactly one side initiates, decided by
// lexicographic comparison; the other side waits for the offer.
func ShouldInitiate(selfID, peerID string) bool {
	return peerID < selfID
}

// SetRoster reconciles the link set against the current participant list:
// links to departed peers are destroyed, missing links this side is
// responsible for are created, everything else is left alone.
func (m *Manager) SetRoster(identities []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roster := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		if id != m.selfID {
			roster[id] = struct{}{}
		}
	}

	for _, peerID := range maps.Keys(m.links) {
		if _, ok := roster[peerID]; !ok {
			m.destroyLinkLocked(peerID)
		}
	}

	for peerID := range roster {
		if _, ok := m.links[peerID]; ok {
			continue
		}
		if !ShouldInitiate(m.selfID, peerID) {
			continue
		}

		if err := m.createLinkLocked(peerID, true); err != nil {
			m.logger.Error("mesh.Manager.SetRoster", "peer", peerID, "error", err)
		}
	}
}

// HandleSignal feeds a signaling payload from a peer into its link, creating
// a responder link first if the offer outran the roster diff.
func (m *Manager) HandleSignal(from string, signal json.RawMessage) error {
	m.mu.Lock()
	link, ok := m.links[from]
	if !ok {
		if err := m.createLinkLocked(from, false); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("failed to create responder link: %w", err)
		}
		link = m.links[from]
	}
	m.mu.Unlock()

	if err := link.Signal(signal); err != nil {
		return fmt.Errorf("failed to signal peer %s: %w", from, err)
	}

	return nil
}

// BroadcastData sends the payload to every connected peer and returns how
// many received it. Peers without an open channel are silently skipped; the
// caller's transport arbiter covers them over the fallback transport.
func (m *Manager) BroadcastData(b []byte) int {
	m.mu.Lock()
	links := maps.Values(m.links)
	m.mu.Unlock()

	sent := 0
	for _, link := range links {
		if !link.Connected() {
			continue
		}
		if err := link.SendData(b); err != nil {
			m.logger.Debug("mesh.Manager.BroadcastData", "error", err)
			continue
		}
		sent++
	}

	return sent
}

func (m *Manager) ConnectedPeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, link := range m.links {
		if link.Connected() {
			count++
		}
	}

	return count
}

// ReplaceLocalTrack swaps the outgoing audio track on every live link
// without tearing the links down. A nil track mutes the outgoing audio.
func (m *Manager) ReplaceLocalTrack(track webrtc.TrackLocal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.localTrack = track
	for peerID, link := range m.links {
		if err := link.ReplaceAudioTrack(track); err != nil {
			m.logger.Debug("mesh.Manager.ReplaceLocalTrack", "peer", peerID, "error", err)
		}
	}
}

func (m *Manager) RemoteStreams() []RemoteStream {
	m.mu.Lock()
	defer m.mu.Unlock()

	peerIDs := maps.Keys(m.remote)
	slices.Sort(peerIDs)

	streams := make([]RemoteStream, 0, len(peerIDs))
	for _, peerID := range peerIDs {
		streams = append(streams, RemoteStream{PeerID: peerID, Track: m.remote[peerID]})
	}

	return streams
}

// Shutdown destroys every link regardless of roster. Used on socket loss
// and on session teardown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, peerID := range maps.Keys(m.links) {
		m.destroyLinkLocked(peerID)
	}
}

func (m *Manager) createLinkLocked(peerID string, initiator bool) error {
	link, err := m.newLink(&linkParams{
		peerID:     peerID,
		logger:     m.logger,
		localTrack: m.localTrack,
		stunURLs:   m.stunURLs,
		sendSignal: func(raw json.RawMessage) error {
			return m.signals.SendSignal(peerID, raw)
		},
		onData: func(b []byte) {
			m.onData(peerID, b)
		},
		onRemoteTrack: func(track *webrtc.TrackRemote) {
			m.mu.Lock()
			m.remote[peerID] = track
			m.mu.Unlock()
			if m.onTrack != nil {
				m.onTrack(peerID, track)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create link to %s: %w", peerID, err)
	}

	m.links[peerID] = link
	m.logger.Debug("mesh.Manager.createLink", "peer", peerID, "initiator", initiator)

	if initiator {
		if err := link.Start(); err != nil {
			// left for the next roster diff to collect
			return fmt.Errorf("failed to start link to %s: %w", peerID, err)
		}
	}

	return nil
}

func (m *Manager) destroyLinkLocked(peerID string) {
	link, ok := m.links[peerID]
	if !ok {
		return
	}

	if err := link.Close(); err != nil {
		m.logger.Debug("mesh.Manager.destroyLink", "peer", peerID, "error", err)
	}
	delete(m.links, peerID)
	delete(m.remote, peerID)
	m.logger.Debug("mesh.Manager.destroyLink", "peer", peerID)
}
