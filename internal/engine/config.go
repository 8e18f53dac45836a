package engine

import "time"

// Config carries the empirically tuned policy knobs. They are configuration,
// not correctness properties: the sequence check in the router is what keeps
// racing transports consistent.
type Config struct {
	// DeferDelay holds back non-important websocket sync messages so a
	// faster mesh duplicate can win the sequence race.
	DeferDelay time.Duration
	// BackupDelay postpones the websocket copy of a mesh broadcast.
	BackupDelay time.Duration
	// BackupPeerThreshold is the mesh size above which every broadcast gets
	// a websocket backup, important or not.
	BackupPeerThreshold int
	// ResyncInterval is how often an authoritative participant re-announces
	// its full state.
	ResyncInterval time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		DeferDelay:          50 * time.Millisecond,
		BackupDelay:         150 * time.Millisecond,
		BackupPeerThreshold: 2,
		ResyncInterval:      10 * time.Second,
	}
}
