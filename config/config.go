// Package config - YAML configuration of the motion pipeline.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-motion/clip"
	"github.com/nvr-ai/go-motion/common"
	"github.com/nvr-ai/go-motion/images"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/nvr-ai/go-motion/notify"
	"github.com/nvr-ai/go-motion/source"
)

// Config is the complete pipeline configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Detection DetectionConfig `yaml:"detection"`
	Recording RecordingConfig `yaml:"recording"`
	Notify    NotifyConfig    `yaml:"notify"`
	LiveView  LiveViewConfig  `yaml:"liveview"`
	Log       LogConfig       `yaml:"log"`
	Profiler  ProfilerConfig  `yaml:"profiler"`
}

// SourceConfig selects the frame source. The first non-empty of Directory, URL and Device wins.
type SourceConfig struct {
	Device    int     `yaml:"device"`
	URL       string  `yaml:"url"`       // video file or rtsp:// stream
	Directory string  `yaml:"directory"` // frame-<n>.jpg sequence
	FPS       float64 `yaml:"fps"`       // directory playback rate
	Width     int     `yaml:"width"`     // directory resize target, 0 keeps the original
	Height    int     `yaml:"height"`
}

// DetectionConfig tunes the difference detector.
type DetectionConfig struct {
	MinContourArea     float64 `yaml:"min_contour_area"`
	BlurKernelSize     int     `yaml:"blur_kernel_size"`
	ThresholdValue     float32 `yaml:"threshold_value"`
	DilationIterations int     `yaml:"dilation_iterations"`
}

// RecordingConfig controls the state machine timing and clip output.
type RecordingConfig struct {
	MinMotionDuration    time.Duration         `yaml:"min_motion_duration"`
	MaxRecordingDuration time.Duration         `yaml:"max_recording_duration"`
	OutputDir            string                `yaml:"output_dir"`
	Codec                string                `yaml:"codec"`
	Extension            string                `yaml:"extension"`
	Thumbnail            bool                  `yaml:"thumbnail"`
	ThumbnailWidth       int                   `yaml:"thumbnail_width"`
	QuadrantPolicy       common.QuadrantPolicy `yaml:"quadrant_policy"`
}

// NotifyConfig enables the notification channels.
type NotifyConfig struct {
	Log  bool       `yaml:"log"`
	MQTT MQTTConfig `yaml:"mqtt"`
	SMTP SMTPConfig `yaml:"smtp"`
}

// MQTTConfig contains MQTT broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	Topic    string        `yaml:"topic"`
	ClientID string        `yaml:"client_id"`
	QoS      byte          `yaml:"qos"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SMTPConfig contains mail server settings. An empty host disables e-mail.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// LiveViewConfig configures the MJPEG server.
type LiveViewConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Addr        string `yaml:"addr"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ProfilerConfig configures periodic runtime reports.
type ProfilerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ReportInterval time.Duration `yaml:"report_interval"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	det := images.DefaultDetectorConfig()
	mc := motion.DefaultConfig()
	return Config{
		Source: SourceConfig{FPS: 10},
		Detection: DetectionConfig{
			MinContourArea:     det.MinContourArea,
			BlurKernelSize:     det.BlurKernelSize,
			ThresholdValue:     det.ThresholdValue,
			DilationIterations: det.DilationIterations,
		},
		Recording: RecordingConfig{
			MinMotionDuration:    mc.MinMotionDuration,
			MaxRecordingDuration: mc.MaxRecordingDuration,
			OutputDir:            "recordings",
			Codec:                "avc1",
			Extension:            ".mp4",
			Thumbnail:            true,
			ThumbnailWidth:       320,
			QuadrantPolicy:       common.PolicyLargest,
		},
		Notify: NotifyConfig{
			Log:  true,
			MQTT: MQTTConfig{QoS: 1, Timeout: 5 * time.Second},
			SMTP: SMTPConfig{Port: 587},
		},
		LiveView: LiveViewConfig{Enabled: true, Addr: ":8080", JPEGQuality: 80},
		Log:      LogConfig{Level: "info"},
		Profiler: ProfilerConfig{ReportInterval: 30 * time.Second, SampleInterval: time.Second},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep their default.
//
// Arguments:
//   - path: The YAML file; empty returns Default().
//
// Returns:
//   - Config: The merged configuration. It is not validated.
//   - error: An error if the file cannot be read or parsed.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg, nil
}

// Detector returns the difference detector settings.
func (c Config) Detector() images.DetectorConfig {
	return images.DetectorConfig{
		MinContourArea:     c.Detection.MinContourArea,
		BlurKernelSize:     c.Detection.BlurKernelSize,
		ThresholdValue:     c.Detection.ThresholdValue,
		DilationIterations: c.Detection.DilationIterations,
	}
}

// Motion returns the state machine timing.
func (c Config) Motion() motion.Config {
	return motion.Config{
		MinMotionDuration:    c.Recording.MinMotionDuration,
		MaxRecordingDuration: c.Recording.MaxRecordingDuration,
	}
}

// Writer returns the clip writer settings.
func (c Config) Writer() clip.WriterConfig {
	return clip.WriterConfig{
		Dir:       c.Recording.OutputDir,
		Codec:     c.Recording.Codec,
		Extension: c.Recording.Extension,
	}
}

// Directory returns the directory source settings.
func (c Config) Directory() source.DirectoryConfig {
	return source.DirectoryConfig{
		Dir:    c.Source.Directory,
		FPS:    c.Source.FPS,
		Width:  c.Source.Width,
		Height: c.Source.Height,
	}
}

// MQTT returns the MQTT notifier settings.
func (c Config) MQTT() notify.MQTTConfig {
	m := c.Notify.MQTT
	return notify.MQTTConfig{
		Broker:   m.Broker,
		Topic:    m.Topic,
		ClientID: m.ClientID,
		QoS:      m.QoS,
		Username: m.Username,
		Password: m.Password,
		Timeout:  m.Timeout,
	}
}

// SMTP returns the e-mail notifier settings.
func (c Config) SMTP() notify.SMTPConfig {
	s := c.Notify.SMTP
	return notify.SMTPConfig{
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     s.From,
		To:       s.To,
	}
}
