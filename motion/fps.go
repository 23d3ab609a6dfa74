package motion

import "time"

// FrameRate measures cycles per second and motion cycles per second over a fixed window.
type FrameRate struct {
	window time.Duration

	start        time.Time
	frames       int
	motionFrames int

	// Current is the cycle rate of the last completed window.
	Current float64
	// Motion is the rate of cycles with motion in the last completed window.
	Motion float64
}

// NewFrameRate creates a tracker that recomputes its rates every window.
func NewFrameRate(window time.Duration) *FrameRate {
	if window <= 0 {
		window = time.Second
	}
	return &FrameRate{window: window}
}

// Tick records one cycle at now.
func (f *FrameRate) Tick(now time.Time, motion bool) {
	if f.start.IsZero() {
		f.start = now
	}

	f.frames++
	if motion {
		f.motionFrames++
	}

	elapsed := now.Sub(f.start)
	if elapsed < f.window {
		return
	}

	seconds := elapsed.Seconds()
	f.Current = float64(f.frames) / seconds
	f.Motion = float64(f.motionFrames) / seconds
	f.frames, f.motionFrames = 0, 0
	f.start = now
}
