package config

import (
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every value and returns all problems at once. Individual problems are
// *ConfigError values retrievable with multierr.Errors.
func (c Config) Validate() error {
	var err error
	add := func(e error) { err = multierr.Append(err, e) }

	d := c.Detection
	if d.MinContourArea < 0 {
		add(invalid("detection.min_contour_area", "must be >= 0, got %v", d.MinContourArea))
	}
	if d.BlurKernelSize <= 0 || d.BlurKernelSize%2 == 0 {
		add(invalid("detection.blur_kernel_size", "must be a positive odd number, got %d", d.BlurKernelSize))
	}
	if math32.IsNaN(d.ThresholdValue) || d.ThresholdValue < 0 || d.ThresholdValue > 255 {
		add(invalid("detection.threshold_value", "must be within 0..255, got %v", d.ThresholdValue))
	}
	if d.DilationIterations < 0 {
		add(invalid("detection.dilation_iterations", "must be >= 0, got %d", d.DilationIterations))
	}

	r := c.Recording
	if r.MinMotionDuration < 0 {
		add(invalid("recording.min_motion_duration", "must be >= 0, got %s", r.MinMotionDuration))
	}
	if r.MaxRecordingDuration <= 0 {
		add(invalid("recording.max_recording_duration", "must be > 0, got %s", r.MaxRecordingDuration))
	}
	if r.OutputDir == "" {
		add(invalid("recording.output_dir", "is required"))
	}
	if len(r.Codec) != 4 {
		add(invalid("recording.codec", "must be a four character code, got %q", r.Codec))
	}
	if !r.QuadrantPolicy.Valid() {
		add(invalid("recording.quadrant_policy", "must be %q or %q, got %q", "largest", "last", r.QuadrantPolicy))
	}
	if r.Thumbnail && r.ThumbnailWidth <= 0 {
		add(invalid("recording.thumbnail_width", "must be > 0 when thumbnails are enabled"))
	}

	if c.Source.FPS <= 0 {
		add(invalid("source.fps", "must be > 0, got %v", c.Source.FPS))
	}
	if c.Source.Device < 0 {
		add(invalid("source.device", "must be >= 0, got %d", c.Source.Device))
	}

	if c.Notify.MQTT.Broker != "" && c.Notify.MQTT.Topic == "" {
		add(invalid("notify.mqtt.topic", "is required when a broker is set"))
	}
	if c.Notify.MQTT.QoS > 2 {
		add(invalid("notify.mqtt.qos", "must be 0, 1 or 2, got %d", c.Notify.MQTT.QoS))
	}
	if c.Notify.SMTP.Host != "" && len(c.Notify.SMTP.To) == 0 {
		add(invalid("notify.smtp.to", "at least one recipient is required when a host is set"))
	}

	if c.LiveView.Enabled {
		if c.LiveView.Addr == "" {
			add(invalid("liveview.addr", "is required when the live view is enabled"))
		}
		if c.LiveView.JPEGQuality < 1 || c.LiveView.JPEGQuality > 100 {
			add(invalid("liveview.jpeg_quality", "must be within 1..100, got %d", c.LiveView.JPEGQuality))
		}
	}

	if _, e := zapcore.ParseLevel(c.Log.Level); e != nil {
		add(invalid("log.level", "unknown level %q", c.Log.Level))
	}

	if c.Profiler.Enabled && (c.Profiler.ReportInterval <= 0 || c.Profiler.SampleInterval <= 0) {
		add(invalid("profiler", "report_interval and sample_interval must be > 0"))
	}

	return err
}
