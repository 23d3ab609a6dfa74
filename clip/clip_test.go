package clip

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-motion/common"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/nvr-ai/go-motion/notify"
)

// MockWriter records WriteClip calls.
type MockWriter struct {
	mu       sync.Mutex
	calls    []int
	frames   []int
	duration time.Duration
	dir      string
	err      error
}

func (m *MockWriter) WriteClip(_ context.Context, frames []common.Frame, clipID int, _ common.Shape, duration time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, clipID)
	m.frames = append(m.frames, len(frames))
	m.duration = duration
	if m.err != nil {
		return "", &WriteError{ClipID: clipID, Err: m.err}
	}
	return filepath.Join(m.dir, Name(clipID, ".mp4")), nil
}

// MockNotifier records delivered events.
type MockNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (m *MockNotifier) Notify(_ context.Context, event notify.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

var start = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func session(t *testing.T, id, frames int) motion.Clip {
	t.Helper()
	c := motion.Clip{
		ID:        id,
		StartTime: start,
		EndTime:   start.Add(time.Duration(frames) * time.Second),
		Shape:     common.Shape{Rows: 48, Cols: 64, Channels: 3},
		Quadrant:  common.QuadrantTopRight,
	}
	for i := 0; i < frames; i++ {
		c.Frames = append(c.Frames, common.Frame{
			Mat:       gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(i*10), 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3),
			Timestamp: start.Add(time.Duration(i) * time.Second),
		})
	}
	return c
}

func TestFinalizerProcess(t *testing.T) {
	writer := &MockWriter{dir: t.TempDir()}
	notifier := &MockNotifier{}
	f := NewFinalizer(writer, notifier, zap.NewNop(), WithThumbnails(32))

	handle, err := f.Process(context.Background(), session(t, 1, 5))
	require.NoError(t, err)

	assert.Equal(t, []int{1}, writer.calls)
	assert.Equal(t, []int{5}, writer.frames)
	assert.Equal(t, 5*time.Second, writer.duration)

	assert.Equal(t, 1, handle.ClipID)
	assert.Equal(t, filepath.Join(writer.dir, "recording_1.mp4"), handle.Path)
	assert.Equal(t, filepath.Join(writer.dir, "recording_1.webp"), handle.Thumbnail)
	assert.FileExists(t, handle.Thumbnail)

	require.Len(t, notifier.events, 1)
	event := notifier.events[0]
	assert.Equal(t, 1, event.ClipID)
	assert.Equal(t, handle.Path, event.Path)
	assert.Equal(t, handle.Thumbnail, event.Thumbnail)
	assert.Equal(t, common.QuadrantTopRight, event.Quadrant)
	assert.Equal(t, 5, event.Frames)
	assert.Equal(t, start, event.StartedAt)
	assert.NotEqual(t, uuid.Nil, event.ID)

	assert.Equal(t, float64(1), f.CollectMetrics()["clips_written"])
}

func TestFinalizerWriteFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	writer := &MockWriter{err: errors.New("disk full")}
	notifier := &MockNotifier{}
	f := NewFinalizer(writer, notifier, zap.New(core))

	_, err := f.Process(context.Background(), session(t, 2, 3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrite))
	assert.Empty(t, notifier.events, "no notification for an unwritten clip")
	assert.Equal(t, 1, logs.FilterMessage("Failed to write clip").Len())
	assert.Equal(t, float64(1), f.CollectMetrics()["clip_write_failures"])
}

func TestFinalizerNotifyFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	writer := &MockWriter{dir: t.TempDir()}
	notifier := &MockNotifier{err: &notify.NotifyError{Notifier: "mqtt", ClipID: 4, Err: errors.New("down")}}
	f := NewFinalizer(writer, notifier, zap.New(core))

	handle, err := f.Process(context.Background(), session(t, 4, 2))
	assert.True(t, errors.Is(err, notify.ErrNotify))
	assert.Equal(t, 4, handle.ClipID, "the clip is still written")
	assert.Equal(t, 1, logs.FilterMessage("Failed to send notification").Len())
}

func TestFinalizerBackground(t *testing.T) {
	writer := &MockWriter{dir: t.TempDir()}
	notifier := &MockNotifier{}
	f := NewFinalizer(writer, notifier, nil)

	for id := 1; id <= 4; id++ {
		f.Finalize(session(t, id, 2))
	}
	require.NoError(t, f.Close())

	assert.ElementsMatch(t, []int{1, 2, 3, 4}, writer.calls)
	assert.Len(t, notifier.events, 4)
	assert.Equal(t, float64(0), f.CollectMetrics()["clips_in_flight"])
}

func TestPlaybackFPS(t *testing.T) {
	tests := []struct {
		name     string
		frames   int
		duration time.Duration
		want     float64
	}{
		{name: "real time", frames: 200, duration: 20 * time.Second, want: 10},
		{name: "slow source", frames: 21, duration: 20 * time.Second, want: 1.05},
		{name: "sub-frame duration", frames: 1, duration: 0, want: 1},
		{name: "below one fps", frames: 3, duration: 10 * time.Second, want: 1},
		{name: "no frames", frames: 0, duration: time.Second, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PlaybackFPS(tt.frames, tt.duration), 0.0001)
		})
	}
}

func TestFileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")
	w := NewFileWriter(WriterConfig{Dir: dir, Codec: "MJPG", Extension: ".avi"})

	c := session(t, 7, 10)
	defer c.Close()

	path, err := w.WriteClip(context.Background(), c.Frames, c.ID, c.Shape, c.Duration())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "recording_7.avi"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestFileWriterErrors(t *testing.T) {
	w := NewFileWriter(WriterConfig{Dir: t.TempDir(), Codec: "MJPG", Extension: ".avi"})

	t.Run("no frames", func(t *testing.T) {
		_, err := w.WriteClip(context.Background(), nil, 1, common.Shape{Rows: 48, Cols: 64, Channels: 3}, time.Second)
		assert.True(t, errors.Is(err, ErrWrite))
	})

	t.Run("cancelled", func(t *testing.T) {
		c := session(t, 2, 3)
		defer c.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := w.WriteClip(ctx, c.Frames, c.ID, c.Shape, c.Duration())
		assert.True(t, errors.Is(err, ErrWrite))
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
