// Package motion - The motion-confirmation and recording state machine.
//
// The Machine consumes one DetectionResult per cycle and decides when to start,
// continue and stop recording a clip:
//
//	         motion                   motion for >= MinMotionDuration
//	Idle ──────────────► MotionPending ───────────────────────────────► Recording
//	  ▲                       │                                             │
//	  └───── no motion ───────┘                                             │
//	  ▲                                                                     │
//	  └──── MaxRecordingDuration elapsed (MotionPending if motion persists) ┘
//
// Once started, a recording accumulates one annotated frame per cycle regardless of
// motion until MaxRecordingDuration elapses. The closed session is handed to a
// Finalizer exactly once and never touched again by the Machine.
package motion

import (
	"time"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-motion/common"
)

// State is the recording lifecycle state.
type State int

const (
	// StateIdle means no motion is being tracked.
	StateIdle State = iota
	// StatePending means motion is present but has not lasted MinMotionDuration yet.
	StatePending
	// StateRecording means a session is open and accumulating frames.
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "motion_pending"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds the timing thresholds of the state machine.
type Config struct {
	// MinMotionDuration is how long motion must persist before recording starts.
	MinMotionDuration time.Duration
	// MaxRecordingDuration is the length after which an open session is closed.
	MaxRecordingDuration time.Duration
}

// DefaultConfig returns a 2 second confirmation delay and 20 second clips.
func DefaultConfig() Config {
	return Config{
		MinMotionDuration:    2 * time.Second,
		MaxRecordingDuration: 20 * time.Second,
	}
}

// TimerState tracks continuous motion independently of the recording state.
type TimerState struct {
	Active bool
	Start  time.Time
}

// Clip is a closed recording session handed to a Finalizer. The receiver owns Frames and
// must release them with Close.
type Clip struct {
	ID        int
	StartTime time.Time
	EndTime   time.Time
	Frames    []common.Frame
	Shape     common.Shape
	// Quadrant is where motion was located when the recording was triggered.
	Quadrant common.Quadrant
	// Partial is set when the stream ended before MaxRecordingDuration elapsed.
	Partial bool
}

// Duration is the wall-clock span of the session.
func (c Clip) Duration() time.Duration {
	return c.EndTime.Sub(c.StartTime)
}

// Close releases every buffered frame.
func (c Clip) Close() {
	for _, f := range c.Frames {
		f.Close()
	}
}

// Finalizer receives closed sessions. Finalize must not block on encoding or delivery.
type Finalizer interface {
	Finalize(clip Clip)
}

// FinalizerFunc adapts a function to the Finalizer interface.
type FinalizerFunc func(clip Clip)

// Finalize calls f(clip).
func (f FinalizerFunc) Finalize(clip Clip) { f(clip) }

// Transition describes the effect of one Observe or Capture call.
type Transition struct {
	From State
	To   State
	// ClipID is the session opened (From != Recording) or closed (From == Recording) by
	// this transition, 0 when no session changed.
	ClipID int
}

// Changed reports whether the state changed.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Snapshot is a read-only copy of the machine state for status reporting.
type Snapshot struct {
	State        State           `json:"state"`
	ClipID       int             `json:"clip_id"`
	Buffered     int             `json:"buffered_frames"`
	MotionActive bool            `json:"motion"`
	MotionSince  time.Time       `json:"motion_since"`
	Quadrant     common.Quadrant `json:"quadrant"`
	Finalized    int             `json:"clips"`
}

type session struct {
	id       int
	start    time.Time
	frames   []common.Frame
	quadrant common.Quadrant
}

// Machine is the motion state machine. It is not safe for concurrent use: one pipeline
// goroutine owns it, and other goroutines read Snapshot copies published by that goroutine.
type Machine struct {
	config    Config
	finalizer Finalizer
	counter   Counter
	logger    *zap.Logger

	state     State
	timer     TimerState
	session   *session
	last      common.DetectionResult
	finalized int
}

// Option configures a Machine.
type Option func(*Machine)

// WithCounter replaces the default clip id sequence starting at 1.
func WithCounter(c Counter) Option {
	return func(m *Machine) { m.counter = c }
}

// WithLogger sets the logger used for transitions.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a state machine in the Idle state.
//
// Arguments:
//   - config: The timing thresholds.
//   - finalizer: Receives every closed session exactly once.
//   - opts: Optional counter and logger.
//
// Returns:
//   - *Machine: The state machine.
//
// @example
// m := motion.New(motion.DefaultConfig(), finalizer, motion.WithLogger(log))
// m.Observe(result, frame.Timestamp)
// m.Capture(annotated)
func New(config Config, finalizer Finalizer, opts ...Option) *Machine {
	m := &Machine{
		config:    config,
		finalizer: finalizer,
		counter:   NewSequence(1),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Timer returns the continuous-motion timer.
func (m *Machine) Timer() TimerState {
	return m.timer
}

// Recording reports whether a session is open and returns its clip id.
func (m *Machine) Recording() (int, bool) {
	if m.session == nil {
		return 0, false
	}
	return m.session.id, true
}

// Snapshot returns a copy of the machine state.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:        m.state,
		MotionActive: m.timer.Active,
		MotionSince:  m.timer.Start,
		Quadrant:     m.last.Quadrant,
		Finalized:    m.finalized,
	}
	if m.session != nil {
		s.ClipID = m.session.id
		s.Buffered = len(m.session.frames)
	}
	return s
}

// Observe applies one cycle's detection result. It updates the motion timer and performs
// the Idle, MotionPending and Recording-start transitions. Frames are added by Capture.
//
// Arguments:
//   - result: The detection result of the current frame pair.
//   - now: The capture timestamp of the current frame.
//
// Returns:
//   - Transition: The state change caused by the result, if any.
func (m *Machine) Observe(result common.DetectionResult, now time.Time) Transition {
	m.last = result
	m.track(result.MotionPresent, now)

	from := m.state
	switch m.state {
	case StateIdle:
		if m.timer.Active {
			m.state = StatePending
		}
	case StatePending:
		switch {
		case !m.timer.Active:
			m.state = StateIdle
		case now.Sub(m.timer.Start) >= m.config.MinMotionDuration:
			m.open(now, result.Quadrant)
			return Transition{From: from, To: m.state, ClipID: m.session.id}
		}
	}

	if from != m.state {
		m.logger.Debug("Motion state changed",
			zap.Stringer("from", from),
			zap.Stringer("to", m.state),
			zap.Stringer("quadrant", result.Quadrant))
	}
	return Transition{From: from, To: m.state}
}

// Capture appends the annotated frame of the current cycle to the open session, if any.
// The frame is cloned; the caller keeps ownership of its copy. When the session has reached
// MaxRecordingDuration it is closed and handed to the Finalizer, and the machine moves to
// MotionPending if motion is still active or Idle otherwise.
//
// Arguments:
//   - frame: The annotated frame. Its Timestamp is used as the current time.
//
// Returns:
//   - Transition: Recording -> Idle/MotionPending with the closed ClipID on cutoff.
func (m *Machine) Capture(frame common.Frame) Transition {
	if m.state != StateRecording {
		return Transition{From: m.state, To: m.state}
	}

	m.session.frames = append(m.session.frames, frame.Clone())
	if frame.Timestamp.Sub(m.session.start) < m.config.MaxRecordingDuration {
		return Transition{From: m.state, To: m.state}
	}

	id := m.close(frame.Timestamp, false)
	if m.timer.Active {
		m.state = StatePending
	} else {
		m.state = StateIdle
	}
	return Transition{From: StateRecording, To: m.state, ClipID: id}
}

// Step runs Observe and Capture for a frame that needs no annotation between the two.
// It returns the Observe transition when it changed state, otherwise the Capture one.
func (m *Machine) Step(result common.DetectionResult, frame common.Frame) Transition {
	observed := m.Observe(result, frame.Timestamp)
	captured := m.Capture(frame)
	if captured.Changed() {
		return captured
	}
	return observed
}

// Flush hands an open session to the Finalizer as a partial clip and resets the machine
// to Idle. It is called when the stream ends or the pipeline shuts down.
//
// Returns:
//   - bool: true if a session was flushed.
func (m *Machine) Flush(now time.Time) bool {
	m.timer = TimerState{}
	if m.session == nil {
		m.state = StateIdle
		return false
	}
	m.close(now, true)
	m.state = StateIdle
	return true
}

// track maintains the continuous-motion timer: started on the first motion cycle and
// cleared on any cycle without motion.
func (m *Machine) track(motion bool, now time.Time) {
	switch {
	case !motion:
		m.timer = TimerState{}
	case !m.timer.Active:
		m.timer = TimerState{Active: true, Start: now}
	}
}

func (m *Machine) open(now time.Time, quadrant common.Quadrant) {
	m.session = &session{
		id:       m.counter.Next(),
		start:    now,
		quadrant: quadrant,
	}
	m.state = StateRecording

	m.logger.Info("Recording started",
		zap.Int("clip_id", m.session.id),
		zap.Stringer("quadrant", quadrant),
		zap.Duration("motion", now.Sub(m.timer.Start)))
}

// close detaches the open session and transfers it to the Finalizer.
func (m *Machine) close(now time.Time, partial bool) int {
	s := m.session
	m.session = nil
	m.finalized++

	clip := Clip{
		ID:        s.id,
		StartTime: s.start,
		EndTime:   now,
		Frames:    s.frames,
		Quadrant:  s.quadrant,
		Partial:   partial,
	}
	if len(s.frames) > 0 {
		clip.Shape = s.frames[0].Shape()
	}

	m.logger.Info("Recording stopped",
		zap.Int("clip_id", clip.ID),
		zap.Int("frames", len(clip.Frames)),
		zap.Duration("duration", clip.Duration()),
		zap.Bool("partial", partial))

	if m.finalizer != nil {
		m.finalizer.Finalize(clip)
	} else {
		clip.Close()
	}
	return clip.ID
}
