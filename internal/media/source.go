package media

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Capture device failures, mapped from whatever capability provider the
// embedding application injects.
var (
	ErrPermissionDenied = errors.New("media permission denied")
	ErrDeviceNotFound   = errors.New("media device not found")
	ErrDeviceBusy       = errors.New("media device busy")
)

// Source provides the outgoing voice track. Device capture itself is an
// external capability; embedders supply their own Source implementation and
// feed samples into the returned track.
type Source interface {
	AcquireTrack(ctx context.Context) (webrtc.TrackLocal, error)
	Release()
}

// staticSource hands out a sample-fed opus track and leaves writing samples
// to the embedder. It never fails acquisition, which makes it the headless
// default.
type staticSource struct {
	mu    sync.Mutex
	track *webrtc.TrackLocalStaticSample
}

func NewStaticSource() *staticSource {
	return &staticSource{}
}

func (s *staticSource) AcquireTrack(_ context.Context) (webrtc.TrackLocal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.track != nil {
		return nil, ErrDeviceBusy
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"watchalong-mic",
	)
	if err != nil {
		return nil, err
	}
	s.track = track

	return track, nil
}

// Track exposes the live track for sample writers. Nil when released.
func (s *staticSource) Track() *webrtc.TrackLocalStaticSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.track
}

func (s *staticSource) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.track = nil
}
