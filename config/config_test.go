package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/nvr-ai/go-motion/common"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2*time.Second, cfg.Motion().MinMotionDuration)
	assert.Equal(t, 20*time.Second, cfg.Motion().MaxRecordingDuration)
	assert.Equal(t, 8000.0, cfg.Detector().MinContourArea)
	assert.Equal(t, 5, cfg.Detector().BlurKernelSize)
	assert.Equal(t, float32(15), cfg.Detector().ThresholdValue)
	assert.Equal(t, 5, cfg.Detector().DilationIterations)
	assert.Equal(t, common.PolicyLargest, cfg.Recording.QuadrantPolicy)
	assert.Equal(t, "recordings", cfg.Writer().Dir)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  url: rtsp://camera.local/stream
detection:
  min_contour_area: 2500
recording:
  min_motion_duration: 1500ms
  max_recording_duration: 1m
  quadrant_policy: last
notify:
  mqtt:
    broker: tcp://localhost:1883
    topic: motion/clips
  smtp:
    host: mail.example.com
    to: [ops@example.com]
liveview:
  addr: 127.0.0.1:9000
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "rtsp://camera.local/stream", cfg.Source.URL)
	assert.Equal(t, 2500.0, cfg.Detection.MinContourArea)
	assert.Equal(t, 5, cfg.Detection.BlurKernelSize, "unset keys keep their default")
	assert.Equal(t, 1500*time.Millisecond, cfg.Recording.MinMotionDuration)
	assert.Equal(t, time.Minute, cfg.Recording.MaxRecordingDuration)
	assert.Equal(t, common.PolicyLast, cfg.Recording.QuadrantPolicy)
	assert.Equal(t, "avc1", cfg.Recording.Codec)
	assert.Equal(t, "motion/clips", cfg.MQTT().Topic)
	assert.Equal(t, byte(1), cfg.MQTT().QoS)
	assert.Equal(t, 587, cfg.SMTP().Port)
	assert.Equal(t, []string{"ops@example.com"}, cfg.SMTP().To)
	assert.Equal(t, "127.0.0.1:9000", cfg.LiveView.Addr)
	assert.True(t, cfg.LiveView.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "recording:\n  min_motion_duration: soon\n"))
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{name: "even blur kernel", modify: func(c *Config) { c.Detection.BlurKernelSize = 4 }, field: "detection.blur_kernel_size"},
		{name: "zero blur kernel", modify: func(c *Config) { c.Detection.BlurKernelSize = 0 }, field: "detection.blur_kernel_size"},
		{name: "threshold out of range", modify: func(c *Config) { c.Detection.ThresholdValue = 300 }, field: "detection.threshold_value"},
		{name: "threshold not a number", modify: func(c *Config) { c.Detection.ThresholdValue = math32.NaN() }, field: "detection.threshold_value"},
		{name: "negative area", modify: func(c *Config) { c.Detection.MinContourArea = -1 }, field: "detection.min_contour_area"},
		{name: "negative dilation", modify: func(c *Config) { c.Detection.DilationIterations = -1 }, field: "detection.dilation_iterations"},
		{name: "negative min duration", modify: func(c *Config) { c.Recording.MinMotionDuration = -time.Second }, field: "recording.min_motion_duration"},
		{name: "zero max duration", modify: func(c *Config) { c.Recording.MaxRecordingDuration = 0 }, field: "recording.max_recording_duration"},
		{name: "empty output dir", modify: func(c *Config) { c.Recording.OutputDir = "" }, field: "recording.output_dir"},
		{name: "bad codec", modify: func(c *Config) { c.Recording.Codec = "h264x" }, field: "recording.codec"},
		{name: "unknown policy", modify: func(c *Config) { c.Recording.QuadrantPolicy = "first" }, field: "recording.quadrant_policy"},
		{name: "mqtt without topic", modify: func(c *Config) { c.Notify.MQTT.Broker = "tcp://localhost:1883" }, field: "notify.mqtt.topic"},
		{name: "smtp without recipients", modify: func(c *Config) { c.Notify.SMTP.Host = "localhost" }, field: "notify.smtp.to"},
		{name: "jpeg quality", modify: func(c *Config) { c.LiveView.JPEGQuality = 0 }, field: "liveview.jpeg_quality"},
		{name: "log level", modify: func(c *Config) { c.Log.Level = "verbose" }, field: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			errs := multierr.Errors(err)
			require.Len(t, errs, 1)
			var cfgErr *ConfigError
			require.True(t, errors.As(errs[0], &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Detection.BlurKernelSize = 2
	cfg.Recording.OutputDir = ""
	cfg.Log.Level = "loud"

	assert.Len(t, multierr.Errors(cfg.Validate()), 3)
}

func TestMinMotionDurationMayBeZero(t *testing.T) {
	cfg := Default()
	cfg.Recording.MinMotionDuration = 0
	assert.NoError(t, cfg.Validate())
}
