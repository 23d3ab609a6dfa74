package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-motion/clip"
	"github.com/nvr-ai/go-motion/config"
	"github.com/nvr-ai/go-motion/controller"
	"github.com/nvr-ai/go-motion/images"
	"github.com/nvr-ai/go-motion/liveview"
	"github.com/nvr-ai/go-motion/logger"
	"github.com/nvr-ai/go-motion/motion"
	"github.com/nvr-ai/go-motion/notify"
	"github.com/nvr-ai/go-motion/profiler"
	"github.com/nvr-ai/go-motion/source"
)

// flags holds the command line overrides applied on top of the config file.
type flags struct {
	configPath  string
	device      int
	videoPath   string
	imageDir    string
	minDuration time.Duration
	maxDuration time.Duration
	minArea     float64
	outputDir   string
	addr        string
	logLevel    string
	showWindow  bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	flag.IntVar(&f.device, "device", 0, "Video capture device ID")
	flag.StringVar(&f.videoPath, "video", "", "Path to a video file (.mp4, .avi, .mov, .mkv) or stream URL")
	flag.StringVar(&f.imageDir, "dir", "", "Directory of frame images to replay")
	flag.DurationVar(&f.minDuration, "min-duration", 2*time.Second, "Continuous motion required before recording starts")
	flag.DurationVar(&f.maxDuration, "max-duration", 20*time.Second, "Maximum length of a single recording")
	flag.Float64Var(&f.minArea, "min-area", 8000, "Minimum contour area counted as motion")
	flag.StringVar(&f.outputDir, "output-dir", "recordings", "Output directory for recorded clips")
	flag.StringVar(&f.addr, "addr", ":8080", "Live view listen address, empty disables it")
	flag.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&f.showWindow, "show-window", false, "Show visualization window")
	flag.Parse()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input, err := selectInput(cfg.Source)
	if err != nil {
		return err
	}
	src, err := openSource(input, cfg, log)
	if err != nil {
		return err
	}

	notifier, closeNotifier := buildNotifier(ctx, cfg, log)
	defer closeNotifier()

	finalizerOpts := []clip.Option{clip.WithContext(context.WithoutCancel(ctx))}
	if cfg.Recording.Thumbnail {
		finalizerOpts = append(finalizerOpts, clip.WithThumbnails(cfg.Recording.ThumbnailWidth))
	}
	finalizer := clip.NewFinalizer(clip.NewFileWriter(cfg.Writer()), notifier, log, finalizerOpts...)

	machine := motion.New(cfg.Motion(), finalizer, motion.WithLogger(log))

	detector := images.NewDifferenceDetector(cfg.Detector())
	defer detector.Close()

	opts := []controller.Option{
		controller.WithPolicy(cfg.Recording.QuadrantPolicy),
		controller.WithLogger(log),
	}

	var rp *profiler.RuntimeProfiler
	if cfg.Profiler.Enabled {
		rp = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
			ReportInterval: cfg.Profiler.ReportInterval,
			SampleInterval: cfg.Profiler.SampleInterval,
			MaxSamples:     600,
			Logger:         log,
		})
		rp.AddMetricsCollector(finalizer)
		opts = append(opts, controller.WithProfiler(rp))
	}

	var pub *liveview.Publisher
	if cfg.LiveView.Enabled {
		pub = liveview.NewPublisher(cfg.LiveView.JPEGQuality, log)
		defer pub.Close()
		opts = append(opts, controller.WithPublisher(pub))
		if rp != nil {
			rp.AddMetricsCollector(pub)
		}
	}

	if rp != nil {
		rp.Start()
		defer rp.Stop()
	}

	ctrl := controller.New(src, detector, machine, opts...)

	log.Info("Motion detection started",
		zap.Stringer("input", input),
		zap.Duration("min_motion_duration", cfg.Recording.MinMotionDuration),
		zap.Duration("max_recording_duration", cfg.Recording.MaxRecordingDuration),
		zap.Float64("min_contour_area", cfg.Detection.MinContourArea),
		zap.String("output_dir", cfg.Recording.OutputDir),
		zap.Bool("live_view", cfg.LiveView.Enabled),
		zap.Bool("show_window", f.showWindow))

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	if pub != nil {
		server := liveview.NewServer(cfg.LiveView.Addr, pub, func() any {
			status := ctrl.Status()
			status.LiveDrops = pub.Stats().Dropped
			return status
		}, log)
		g.Go(func() error { return server.Run(serverCtx) })
	}

	// The window must be driven from the main goroutine.
	var pipelineErr error
	if f.showWindow {
		pipelineErr = display(gctx, ctrl)
	} else {
		pipelineErr = ctrl.Run(gctx)
	}

	stopServer()
	serverErr := g.Wait()

	return multierr.Combine(
		pipelineErr,
		serverErr,
		ctrl.Close(),
		finalizer.Close(),
	)
}

// applyFlags copies the explicitly set flags onto the loaded config.
func applyFlags(cfg *config.Config, f flags) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "device":
			cfg.Source.Device = f.device
		case "video":
			cfg.Source.URL = f.videoPath
		case "dir":
			cfg.Source.Directory = f.imageDir
		case "min-duration":
			cfg.Recording.MinMotionDuration = f.minDuration
		case "max-duration":
			cfg.Recording.MaxRecordingDuration = f.maxDuration
		case "min-area":
			cfg.Detection.MinContourArea = f.minArea
		case "output-dir":
			cfg.Recording.OutputDir = f.outputDir
		case "addr":
			cfg.LiveView.Addr = f.addr
			cfg.LiveView.Enabled = f.addr != ""
		case "log-level":
			cfg.Log.Level = f.logLevel
		}
	})
}

// buildNotifier combines the configured notification channels. A broker that cannot be
// reached disables MQTT notifications without stopping the pipeline.
func buildNotifier(ctx context.Context, cfg config.Config, log *zap.Logger) (notify.Notifier, func()) {
	var (
		notifiers notify.Multi
		closers   []func()
	)

	if cfg.Notify.Log {
		notifiers = append(notifiers, notify.NewLogNotifier(log))
	}
	if cfg.Notify.MQTT.Broker != "" {
		m, err := notify.NewMQTTNotifier(ctx, cfg.MQTT(), log)
		if err != nil {
			log.Warn("MQTT notifications disabled", zap.String("broker", cfg.Notify.MQTT.Broker), zap.Error(err))
		} else {
			notifiers = append(notifiers, m)
			closers = append(closers, m.Close)
		}
	}
	if cfg.Notify.SMTP.Host != "" {
		notifiers = append(notifiers, notify.NewSMTPNotifier(cfg.SMTP()))
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(notifiers) == 0 {
		return nil, closeAll
	}
	return notifiers, closeAll
}

// display drives the pipeline and shows every annotated frame. Pressing q stops it.
func display(ctx context.Context, ctrl *controller.Controller) error {
	window := gocv.NewWindow("Motion Detection")
	defer window.Close()

	for {
		frame, err := ctrl.Next(ctx)
		if err != nil {
			if errors.Is(err, source.ErrEndOfStream) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		window.IMShow(frame.Mat)
		if window.WaitKey(1) == 'q' {
			return nil
		}
	}
}
