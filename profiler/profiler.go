// Package profiler - Periodic runtime and pipeline metrics reports.
package profiler

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler samples host and process resources, aggregates custom pipeline metrics
// and operation timings, and logs a summary every report interval.
//
// All methods are safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int
	logger         *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats    runtime.MemStats
	host        hostSample
	proc        *process.Process
	lastGCCount uint32

	customMetrics  map[string]*MetricTracker
	collectors     []MetricsCollector
	operationTimes map[string]*TimeTracker
}

// hostSample is the latest host and process resource usage.
type hostSample struct {
	cpuPercent float64
	memPercent float64
	processRSS uint64
	processCPU float64
	sampledAt  time.Time
}

// MetricTracker tracks statistics for a custom metric over a sliding window of samples.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	last   float64
	count  int64
}

func (t *MetricTracker) add(value float64, window int) {
	if t.count == 0 || value < t.min {
		t.min = value
	}
	if t.count == 0 || value > t.max {
		t.max = value
	}
	t.values = append(t.values, value)
	t.sum += value
	if len(t.values) > window {
		t.sum -= t.values[0]
		t.values = t.values[1:]
	}
	t.last = value
	t.count++
}

func (t *MetricTracker) avg() float64 {
	if len(t.values) == 0 {
		return 0
	}
	return t.sum / float64(len(t.values))
}

// TimeTracker tracks operation timing statistics over a sliding window of samples.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

func (t *TimeTracker) add(d time.Duration, window int) {
	if t.count == 0 || d < t.minTime {
		t.minTime = d
	}
	if t.count == 0 || d > t.maxTime {
		t.maxTime = d
	}
	t.durations = append(t.durations, d)
	t.totalTime += d
	if len(t.durations) > window {
		t.totalTime -= t.durations[0]
		t.durations = t.durations[1:]
	}
	t.count++
}

func (t *TimeTracker) avg() time.Duration {
	if len(t.durations) == 0 {
		return 0
	}
	return t.totalTime / time.Duration(len(t.durations))
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 30s)
	ReportInterval time.Duration
	// SampleInterval specifies how often to collect samples (default: 1s)
	SampleInterval time.Duration
	// MaxSamples specifies the sliding window of every metric (default: 600)
	MaxSamples int
	// Logger receives the reports (default: no-op)
	Logger *zap.Logger
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 30 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// The process handle is optional; host metrics still work without it.
	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		proc:           proc,
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins sampling and periodic reporting. Calling it on a running profiler is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}

	rp.running = true
	rp.startTime = time.Now()

	rp.wg.Add(2)
	go rp.loop(rp.sampleInterval, rp.Sample)
	go rp.loop(rp.reportInterval, rp.Report)
}

func (rp *RuntimeProfiler) loop(interval time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Stop gracefully stops the profiler and waits for all goroutines to complete.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// AddMetricsCollector registers a custom metrics collector polled on every sample.
//
// Arguments:
// - collector: An implementation of MetricsCollector interface
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.record(name, value)
}

func (rp *RuntimeProfiler) record(name string, value float64) {
	tracker, ok := rp.customMetrics[name]
	if !ok {
		tracker = &MetricTracker{values: make([]float64, 0, rp.maxSamples)}
		rp.customMetrics[name] = tracker
	}
	tracker.add(value, rp.maxSamples)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records the completion time of an operation.
func (rp *RuntimeProfiler) RecordDuration(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, ok := rp.operationTimes[name]
	if !ok {
		tracker = &TimeTracker{}
		rp.operationTimes[name] = tracker
	}
	tracker.add(d, rp.maxSamples)
}

// Sample collects one round of resource usage and custom collector metrics.
func (rp *RuntimeProfiler) Sample() {
	// gopsutil calls may block on /proc; keep them outside the lock.
	var s hostSample
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.cpuPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.memPercent = vm.UsedPercent
	}
	if rp.proc != nil {
		if info, err := rp.proc.MemoryInfo(); err == nil {
			s.processRSS = info.RSS
		}
		if pct, err := rp.proc.CPUPercent(); err == nil {
			s.processCPU = pct
		}
	}
	s.sampledAt = time.Now()

	rp.mu.Lock()
	defer rp.mu.Unlock()

	rp.host = s
	runtime.ReadMemStats(&rp.memStats)
	for _, collector := range rp.collectors {
		for name, value := range collector.CollectMetrics() {
			rp.record(name, value)
		}
	}
}

// Report logs a summary of everything collected so far.
func (rp *RuntimeProfiler) Report() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	fields := []zap.Field{
		zap.Duration("uptime", time.Since(rp.startTime).Truncate(time.Second)),
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Float64("host_cpu_percent", rp.host.cpuPercent),
		zap.Float64("host_mem_percent", rp.host.memPercent),
		zap.Float64("process_cpu_percent", rp.host.processCPU),
		zap.String("process_rss", formatBytes(rp.host.processRSS)),
		zap.String("heap_alloc", formatBytes(rp.memStats.HeapAlloc)),
		zap.Uint32("gc_cycles", rp.memStats.NumGC),
	}
	if rp.memStats.NumGC > rp.lastGCCount {
		fields = append(fields, zap.Uint32("gc_new", rp.memStats.NumGC-rp.lastGCCount))
		rp.lastGCCount = rp.memStats.NumGC
	}

	for _, name := range sortedKeys(rp.customMetrics) {
		t := rp.customMetrics[name]
		fields = append(fields, zap.String(name,
			fmt.Sprintf("avg=%.2f min=%.2f max=%.2f last=%.2f", t.avg(), t.min, t.max, t.last)))
	}
	for _, name := range sortedKeys(rp.operationTimes) {
		t := rp.operationTimes[name]
		fields = append(fields, zap.String("op_"+name,
			fmt.Sprintf("avg=%v min=%v max=%v count=%d",
				t.avg().Truncate(time.Microsecond),
				t.minTime.Truncate(time.Microsecond),
				t.maxTime.Truncate(time.Microsecond),
				t.count)))
	}

	rp.logger.Info("Runtime profile", fields...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// GetCurrentStats returns the current profiling statistics as a snapshot.
//
// Returns:
// - A map containing current statistics and metrics
func (rp *RuntimeProfiler) GetCurrentStats() map[string]interface{} {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	stats := map[string]interface{}{
		"uptime":     time.Since(rp.startTime),
		"goroutines": runtime.NumGoroutine(),
		"host": map[string]interface{}{
			"cpu_percent":         rp.host.cpuPercent,
			"mem_percent":         rp.host.memPercent,
			"process_cpu_percent": rp.host.processCPU,
			"process_rss":         rp.host.processRSS,
			"sampled_at":          rp.host.sampledAt,
		},
		"memory": map[string]interface{}{
			"heap_alloc":   rp.memStats.HeapAlloc,
			"heap_objects": rp.memStats.HeapObjects,
			"gc_cycles":    rp.memStats.NumGC,
		},
	}

	custom := make(map[string]interface{}, len(rp.customMetrics))
	for name, t := range rp.customMetrics {
		custom[name] = map[string]interface{}{
			"avg":     t.avg(),
			"min":     t.min,
			"max":     t.max,
			"last":    t.last,
			"samples": len(t.values),
		}
	}
	stats["custom_metrics"] = custom

	ops := make(map[string]interface{}, len(rp.operationTimes))
	for name, t := range rp.operationTimes {
		ops[name] = map[string]interface{}{
			"avg":   t.avg(),
			"min":   t.minTime,
			"max":   t.maxTime,
			"count": t.count,
		}
	}
	stats["operations"] = ops

	return stats
}
