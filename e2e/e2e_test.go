package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/bus"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/control"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/mapping"
	"github.com/ayusman/mudra/internal/replay"
	"github.com/ayusman/mudra/internal/scene"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracker"
)

const (
	frameW = 1024
	frameH = 512
	frames = 4
)

// Index tip at pixel (320, 220) and a 100 pixel thumb-to-pinky span, which the
// default calibration maps to 180°, 180° and scale 5.
func pointingHand() detector.HandLandmarks {
	return detector.PointingLandmarks(320.0/frameW, 220.0/frameH, 100.0/frameW)
}

var want = control.Message{XAngle: 180, YAngle: 180, Scale: 5}

func newState() *scene.State {
	return scene.NewState(scene.StateConfig{
		Zoom:       mapping.DefaultZoom(),
		Projection: scene.NewProjection(45, 800, 600, 0.1, 50),
		Strict:     true,
	}, zerolog.Nop())
}

func TestE2E_TrackerToRendererAndReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st, err := store.New(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer st.Close()

	rec, err := store.NewRecorder(st, 0, zerolog.Nop())
	require.NoError(t, err)

	srv := server.New(server.Config{Store: st, Logger: zerolog.Nop()})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{pointingHand()})

	live := bus.NewLoopback()
	sub := live.Subscribe(bus.DefaultQueueSize, false)

	tr, err := tracker.New(tracker.Config{
		Camera:      capture.NewMockCamera(capture.BlankFrames(frames, frameW, frameH), false),
		Detector:    det,
		Publisher:   live,
		Recorder:    rec,
		Observers:   []tracker.ControlObserver{srv.Controls()},
		Frames:      srv.Frames(),
		Calibration: mapping.DefaultCalibration(),
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	t.Run("TrackerPublishes", func(t *testing.T) {
		require.NoError(t, tr.Run(context.Background()))
		assert.Equal(t, uint64(frames), tr.Published())
		require.NoError(t, tr.Close())
	})

	t.Run("RendererReceives", func(t *testing.T) {
		state := newState()
		received := 0
		for {
			res, err := state.Tick(sub)
			require.NoError(t, err)
			if !res.Received {
				break
			}
			received++
			assert.Equal(t, want, res.Message)
		}
		assert.Equal(t, frames, received)

		f, ok := state.Frame()
		require.True(t, ok)
		assert.InDelta(t, 6.0, f.ZoomDistance, 1e-9)
	})

	var sessionID string
	t.Run("SessionRecorded", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/sessions")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Sessions []struct {
				ID      string  `json:"id"`
				EndedAt *string `json:"ended_at"`
				Samples int     `json:"samples"`
			} `json:"sessions"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Sessions, 1)
		assert.Equal(t, frames, body.Sessions[0].Samples)
		assert.NotNil(t, body.Sessions[0].EndedAt)
		sessionID = body.Sessions[0].ID
	})

	t.Run("ReplayDrivesRenderer", func(t *testing.T) {
		require.NotEmpty(t, sessionID)
		samples, err := st.Sessions().Samples(sessionID)
		require.NoError(t, err)

		replayed := bus.NewLoopback()
		rsub := replayed.Subscribe(bus.DefaultQueueSize, false)
		n, err := replay.NewPlayer(replayed, replay.Options{Speed: 100}, zerolog.Nop()).
			Play(context.Background(), samples)
		require.NoError(t, err)
		assert.Equal(t, frames, n)

		state := newState()
		for i := 0; i < frames; i++ {
			res, err := state.Tick(rsub)
			require.NoError(t, err)
			require.True(t, res.Received)
		}
		m, ok := state.Current()
		require.True(t, ok)
		assert.Equal(t, want, m)
	})
}
