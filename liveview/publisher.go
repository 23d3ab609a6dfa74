// Package liveview - Live MJPEG view of the annotated pipeline output.
//
// The Publisher sits between the pipeline and HTTP clients. It holds at most one pending
// frame: publishing never blocks the pipeline, and a frame that has not been encoded by the
// time the next one arrives is replaced and counted as dropped.
package liveview

import (
	"bytes"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/hybridgroup/mjpeg"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// EncodeFunc encodes a frame as JPEG at the given quality.
type EncodeFunc func(frame gocv.Mat, quality int) ([]byte, error)

// Stats are the live view delivery counters.
type Stats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Publisher hands annotated frames to the MJPEG stream.
type Publisher struct {
	stream  *mjpeg.Stream
	quality int
	encode  EncodeFunc
	logger  *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending gocv.Mat
	has     bool
	closed  bool
	done    chan struct{}

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithEncoder replaces the OpenCV JPEG encoder.
func WithEncoder(encode EncodeFunc) Option {
	return func(p *Publisher) { p.encode = encode }
}

// NewPublisher starts a publisher encoding at the given JPEG quality (1-100).
//
// Arguments:
//   - quality: The JPEG quality.
//   - logger: Receives encoding failures.
//   - opts: Optional encoder override.
//
// Returns:
//   - *Publisher: The running publisher. Close stops it.
//
// @example
// pub := liveview.NewPublisher(80, log)
// defer pub.Close()
// http.Handle("/stream", pub.Stream())
func NewPublisher(quality int, logger *zap.Logger, opts ...Option) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	p := &Publisher{
		stream:  mjpeg.NewStream(),
		quality: quality,
		encode:  EncodeJPEG,
		logger:  logger,
		done:    make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	go p.loop()
	return p
}

// Publish offers a frame to viewers. The frame is cloned and the caller keeps its copy. A
// frame still waiting from the previous call is dropped.
func (p *Publisher) Publish(frame gocv.Mat) {
	clone := frame.Clone()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		clone.Close()
		return
	}
	if p.has {
		p.pending.Close()
		p.dropped.Add(1)
	}
	p.pending, p.has = clone, true
	p.cond.Signal()
	p.mu.Unlock()
}

func (p *Publisher) loop() {
	defer close(p.done)

	for {
		p.mu.Lock()
		for !p.has && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		frame := p.pending
		p.pending, p.has = gocv.Mat{}, false
		p.mu.Unlock()

		data, err := p.encode(frame, p.quality)
		frame.Close()
		if err != nil {
			p.logger.Warn("Failed to encode live view frame", zap.Error(err))
			continue
		}
		p.stream.UpdateJPEG(data)
		p.published.Add(1)
	}
}

// Stream is the multipart MJPEG handler.
func (p *Publisher) Stream() http.Handler {
	return p.stream
}

// Stats returns the delivery counters.
func (p *Publisher) Stats() Stats {
	return Stats{Published: p.published.Load(), Dropped: p.dropped.Load()}
}

// CollectMetrics reports the delivery counters for the profiler.
func (p *Publisher) CollectMetrics() map[string]float64 {
	s := p.Stats()
	return map[string]float64{
		"live_published": float64(s.Published),
		"live_dropped":   float64(s.Dropped),
	}
}

// Close stops the encoder goroutine and discards a pending frame.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	<-p.done

	p.mu.Lock()
	if p.has {
		p.pending.Close()
		p.has = false
	}
	p.mu.Unlock()
}

// EncodeJPEG encodes frame with the OpenCV JPEG encoder.
func EncodeJPEG(frame gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}
