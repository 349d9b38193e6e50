package player

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/akarpov/sonance/internal/backend"
	"github.com/akarpov/sonance/internal/logging"
	"github.com/akarpov/sonance/internal/settings"
	"github.com/akarpov/sonance/pkg/types"
)

func testLogger() *logging.Logger {
	return logging.New("player-test", false, nil)
}

type fakeStream struct{}

func (f *fakeStream) Write(samples []float32) error { return nil }
func (f *fakeStream) Drain() error                   { return nil }
func (f *fakeStream) SampleRate() int                { return 44100 }
func (f *fakeStream) Channels() int                  { return 2 }
func (f *fakeStream) Close() error                   { return nil }

var _ backend.Stream = (*fakeStream)(nil)

func openTestSettings(t *testing.T) *settings.Store {
	t.Helper()
	s, err := settings.Open(filepath.Join(t.TempDir(), "settings.db"), false, testLogger())
	if err != nil {
		t.Fatalf("open settings store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newPausableSession(trackID uint64) *playSession {
	sess := &playSession{trackID: trackID, stream: &fakeStream{}, rate: 44100, stop: make(chan struct{})}
	sess.cond = sync.NewCond(&sess.pauseMu)
	return sess
}

func TestPlayTrackRejectsQualityAboveDeviceLimitWhenLimitingEnabled(t *testing.T) {
	store := openTestSettings(t)
	p, err := store.GetPlayback()
	if err != nil {
		t.Fatalf("GetPlayback: %v", err)
	}
	p.DeviceSampleRateLimits = map[string]int{"hw:0,0": 48000}
	if err := store.SetPlayback(p); err != nil {
		t.Fatalf("SetPlayback: %v", err)
	}

	c := &Controller{
		cfg:      Config{DeviceID: "hw:0,0", LimitQualityToDevice: true},
		settings: store,
		log:      testLogger(),
		state:    NewSharedState(),
	}

	hiRes := 96000
	track := types.Track{ID: 1, SampleRate: &hiRes}

	err = c.PlayTrack(nil, track) //nolint:staticcheck // nil context is fine, precheck never touches it
	if err == nil {
		t.Fatal("expected an error when track quality exceeds the device's configured limit")
	}
	coreErr, ok := err.(*types.CoreError)
	if !ok {
		t.Fatalf("expected a CoreError, got %T: %v", err, err)
	}
	if coreErr.Code != types.CodeQualityExceedsDevice {
		t.Fatalf("code = %s, want %s", coreErr.Code, types.CodeQualityExceedsDevice)
	}
}

func TestPauseResumeAreNoOpsWithoutActiveSession(t *testing.T) {
	c := &Controller{log: testLogger(), state: NewSharedState()}
	c.Pause()
	c.Resume()
	if c.state.IsPlaying() {
		t.Fatal("expected playing to remain false with no active session")
	}
}

func TestPauseResumeTogglePlayingStateAndSessionFlag(t *testing.T) {
	c := &Controller{log: testLogger(), state: NewSharedState()}
	sess := newPausableSession(1)
	c.session = sess
	c.state.SetPlaying(true)

	c.Pause()
	if c.state.IsPlaying() {
		t.Fatal("expected playing to be false after Pause")
	}
	if !sess.paused {
		t.Fatal("expected session to be marked paused")
	}

	c.Resume()
	if !c.state.IsPlaying() {
		t.Fatal("expected playing to be true after Resume")
	}
	if sess.paused {
		t.Fatal("expected session pause flag to be cleared after Resume")
	}
}

func TestStopClearsSessionAndResetsSharedState(t *testing.T) {
	c := &Controller{log: testLogger(), state: NewSharedState()}
	sess := newPausableSession(5)
	c.session = sess
	c.state.SetCurrentTrack(5)
	c.state.SetPosition(30)
	c.state.SetPlaying(true)

	c.Stop()

	if c.session != nil {
		t.Fatal("expected session to be cleared after Stop")
	}
	if c.state.IsPlaying() {
		t.Fatal("expected playing to be false after Stop")
	}
	if c.state.CurrentTrack() != 0 {
		t.Fatalf("current track = %d, want 0", c.state.CurrentTrack())
	}
	if c.state.Position() != 0 {
		t.Fatalf("position = %v, want 0", c.state.Position())
	}
}

func TestSetVolumeClampsToUnitRange(t *testing.T) {
	c := &Controller{log: testLogger(), state: NewSharedState()}

	c.SetVolume(-0.5)
	if got := c.state.Volume(); got != 0 {
		t.Fatalf("volume = %v, want 0 after clamping below range", got)
	}

	c.SetVolume(1.5)
	if got := c.state.Volume(); got != 1 {
		t.Fatalf("volume = %v, want 1 after clamping above range", got)
	}
}
