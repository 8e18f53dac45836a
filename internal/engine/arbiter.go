package engine

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/watchalong/syncengine/internal/domain"
)

type iMeshSender interface {
	ConnectedPeerCount() int
	BroadcastData(b []byte) int
}

type iRelaySender interface {
	Send(v any) error
}

// Arbiter chooses how an authoritative local state change is propagated:
// the mesh when peers are reachable (lowest latency), the websocket as the
// sole transport otherwise, and a delayed websocket backup when the room is
// large enough or the change is important.
type Arbiter struct {
	mesh   iMeshSender
	relay  iRelaySender
	logger *slog.Logger

	backupDelay         time.Duration
	backupPeerThreshold int

	mu     sync.Mutex
	seq    map[domain.SyncType]int64
	timers map[*time.Timer]struct{}
}

func NewArbiter(mesh iMeshSender, relay iRelaySender, cfg *Config, logger *slog.Logger) *Arbiter {
	return &Arbiter{
		mesh:                mesh,
		relay:               relay,
		logger:              logger,
		backupDelay:         cfg.BackupDelay,
		backupPeerThreshold: cfg.BackupPeerThreshold,
		seq:                 make(map[domain.SyncType]int64),
		timers:              make(map[*time.Timer]struct{}),
	}
}

// Propagate stamps the message with a fresh strictly increasing sequence for
// its sync type and sends it. The local side is the sole writer of this
// sequence, so monotonicity needs no coordination.
func (a *Arbiter) Propagate(msg domain.SyncMessage, important bool) domain.SyncMessage {
	msg.IsHost = true
	msg.FromHost = true
	msg.SyncTimestamp = a.nextSeq(msg.SyncType())
	msg.SequenceID = msg.SyncTimestamp

	peers := a.mesh.ConnectedPeerCount()
	if peers == 0 {
		if err := a.relay.Send(msg); err != nil {
			a.logger.Debug("engine.Arbiter.Propagate", "transport", "websocket", "error", err)
		}
		return msg
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		a.logger.Error("engine.Arbiter.Propagate", "error", err)
		return msg
	}
	a.mesh.BroadcastData(raw)

	if peers > a.backupPeerThreshold || important {
		a.sendBackupLater(msg)
	}

	return msg
}

// Stop cancels queued backup sends.
func (a *Arbiter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for timer := range a.timers {
		timer.Stop()
		delete(a.timers, timer)
	}
}

func (a *Arbiter) nextSeq(syncType domain.SyncType) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq := time.Now().UnixMilli()
	if seq <= a.seq[syncType] {
		seq = a.seq[syncType] + 1
	}
	a.seq[syncType] = seq

	return seq
}

// sendBackupLater queues the websocket copy after a short delay so it does
// not win the receivers' sequence race against the mesh delivery.
func (a *Arbiter) sendBackupLater(msg domain.SyncMessage) {
	backup := msg
	backup.Transport = domain.TransportBackup

	a.mu.Lock()
	defer a.mu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(a.backupDelay, func() {
		a.mu.Lock()
		delete(a.timers, timer)
		a.mu.Unlock()

		if err := a.relay.Send(backup); err != nil {
			a.logger.Debug("engine.Arbiter.sendBackup", "error", err)
		}
	})
	a.timers[timer] = struct{}{}
}
