// Package app wires the seek components together and owns their
// lifecycle: New validates, Init opens devices and models, Run drives the
// frame loop until quit or cancellation, Shutdown releases everything.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/teslashibe/go-seek/internal/config"
	"github.com/teslashibe/go-seek/pkg/announce"
	"github.com/teslashibe/go-seek/pkg/audioio"
	"github.com/teslashibe/go-seek/pkg/camera"
	"github.com/teslashibe/go-seek/pkg/command"
	"github.com/teslashibe/go-seek/pkg/guide"
	"github.com/teslashibe/go-seek/pkg/match"
	"github.com/teslashibe/go-seek/pkg/metrics"
	"github.com/teslashibe/go-seek/pkg/overlay"
	"github.com/teslashibe/go-seek/pkg/vision"
	"github.com/teslashibe/go-seek/pkg/vision/midas"
	"github.com/teslashibe/go-seek/pkg/vision/ocr"
	"github.com/teslashibe/go-seek/pkg/vision/yolo"
	"github.com/teslashibe/go-seek/pkg/voice"
	"github.com/teslashibe/go-seek/pkg/web"
)

const (
	// goodbyeTimeout bounds how long Run waits for the farewell to play.
	goodbyeTimeout = 5 * time.Second

	processSampleInterval = 5 * time.Second
)

// App is the seek application.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics  *metrics.Metrics
	capture  *camera.Capture
	commands *command.Channel
	queue    *announce.Queue
	ctrl     *guide.Controller
	loop     *guide.Loop
	window   *overlay.Window
	listener *voice.Listener
	server   *web.Server

	// closers are released in reverse order by Shutdown.
	closers []io.Closer
}

// New validates cfg and creates an uninitialized application.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:      cfg,
		logger:   logger.With("component", "app"),
		metrics:  metrics.New(),
		commands: command.NewChannel(cfg.Guide.CommandBuffer),
	}, nil
}

// Init opens the camera and loads every collaborator. Only a missing
// camera is fatal; other collaborators degrade to no-ops.
func (a *App) Init(ctx context.Context) error {
	cam, err := camera.Open(cameraConfig(a.cfg.Camera), a.logger)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	a.capture = cam
	a.closers = append(a.closers, cam)

	deps := guide.Deps{
		Detector:   a.initDetector(),
		Recognizer: a.initRecognizer(),
		Depth:      a.initDepth(),
	}

	speakers := a.initSpeakers(ctx)
	a.queue = announce.New(speakers,
		announce.WithWindow(a.cfg.Announce.Window),
		announce.WithGap(a.cfg.Announce.Gap),
		announce.WithAttemptTimeout(a.cfg.Announce.AttemptTimeout),
		announce.WithLogger(a.logger),
		announce.WithObserver(a.metrics),
	)
	a.closers = append(a.closers, a.queue)
	a.metrics.WatchQueue(a.queue.Pending)
	deps.Announcer = a.queue

	a.ctrl = guide.NewController(a.cfg.Guide.Config, deps,
		guide.WithLogger(a.logger),
		guide.WithObserver(a.metrics),
		guide.WithMatcher(match.New(a.cfg.Guide.MatchThreshold)),
		guide.WithTracking(a.cfg.Guide.Tracking),
		guide.WithGuidance(a.cfg.Guide.Guidance),
		guide.WithStatusListener(a.publishStatus),
	)
	a.closers = append(a.closers, a.ctrl)

	var renderer guide.Renderer = guide.NopRenderer{}
	if !a.cfg.Headless {
		a.window = overlay.NewWindow("seek", a.logger)
		a.closers = append(a.closers, a.window)
		renderer = a.window
	}
	a.loop = guide.NewLoop(a.cfg.Guide.Config, a.capture, a.commands, a.ctrl, renderer, a.logger)

	if a.cfg.Voice.Enabled {
		if err := a.initVoice(ctx); err != nil {
			a.logger.Warn("voice commands disabled", "error", err)
		}
	}

	if a.cfg.Web.Enabled {
		a.server = web.NewServer(web.Options{
			Addr:     a.cfg.Web.Addr,
			Status:   a.ctrl.Snapshot,
			Commands: a.commands,
			Metrics:  a.metrics.Handler(),
			Logger:   a.logger,
		})
	}

	a.logger.Info("initialized",
		"speakers", len(speakers),
		"voice", a.listener != nil,
		"web", a.server != nil,
		"headless", a.cfg.Headless)
	return nil
}

// Run announces readiness and drives the frame loop until a quit command,
// the quit key or ctx cancellation. The farewell is spoken in every case.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return errors.New("app: Run called before Init")
	}

	// The queue outlives ctx so the farewell can still be delivered.
	a.queue.Start(context.WithoutCancel(ctx))

	bg, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.metrics.WatchProcess(bg, processSampleInterval, a.logger)
	if a.server != nil {
		go func() {
			if err := a.server.Run(bg); err != nil {
				a.logger.Error("web server stopped", "error", err)
			}
		}()
	}
	if a.listener != nil {
		go func() {
			if err := a.listener.Run(bg); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("voice listener stopped", "error", err)
			}
		}()
	}

	a.queue.Mandatory(guide.MsgReady)
	err := a.loop.Run(bg)
	cancel()

	a.queue.Mandatory(guide.MsgGoodbye)
	flushCtx, done := context.WithTimeout(context.Background(), goodbyeTimeout)
	defer done()
	if ferr := a.queue.Flush(flushCtx); ferr != nil {
		a.logger.Warn("farewell not delivered", "error", ferr)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown releases all resources. It is safe to call after a failed Init.
func (a *App) Shutdown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Debug("close failed", "error", err)
		}
	}
	a.closers = nil
	a.logger.Info("shutdown complete", "commands_dropped", a.commands.Dropped())
}

// Commands exposes the command channel for embedding callers.
func (a *App) Commands() *command.Channel { return a.commands }

// Status returns the current guidance state.
func (a *App) Status() guide.Status {
	if a.ctrl == nil {
		return guide.Status{Mode: guide.Idle}
	}
	return a.ctrl.Snapshot()
}

func (a *App) publishStatus(st guide.Status) {
	if a.server != nil {
		a.server.PublishStatus(st)
	}
}

func (a *App) initDetector() vision.Detector {
	d, err := yolo.New(yolo.Config{
		ModelPath:        a.cfg.Detector.ModelPath,
		ConfidenceThresh: a.cfg.Detector.Confidence,
		NMSThresh:        a.cfg.Detector.NMS,
		InputSize:        a.cfg.Detector.InputSize,
	}, a.logger)
	if err != nil {
		a.logger.Warn("detector unavailable, nothing will be detected", "error", err)
		return vision.NopDetector{}
	}
	a.closers = append(a.closers, d)
	return d
}

func (a *App) initDepth() vision.DepthEstimator {
	if !a.cfg.Depth.Enabled {
		return vision.NopDepth{}
	}
	e, err := midas.New(midas.Config{ModelPath: a.cfg.Depth.ModelPath, InputSize: a.cfg.Depth.InputSize}, a.logger)
	if err != nil {
		a.logger.Warn("depth unavailable, using box area for distance", "error", err)
		return vision.NopDepth{}
	}
	a.closers = append(a.closers, e)
	return e
}

func (a *App) initRecognizer() vision.TextRecognizer {
	r, err := ocr.New(a.cfg.OCR, a.logger)
	if err != nil {
		a.logger.Warn("text recognition unavailable", "error", err)
		return vision.NopRecognizer{}
	}
	return r
}

func (a *App) initVoice(ctx context.Context) error {
	rate := a.cfg.Voice.SampleRate
	if rate <= 0 {
		rate = voice.DefaultSampleRate
	}

	var rec voice.Recognizer
	if url := a.cfg.Voice.ServerURL; url != "" {
		r, err := voice.DialVoskServer(ctx, url, rate)
		if err != nil {
			return err
		}
		rec = r
	} else {
		r, err := voice.NewVosk(a.cfg.Voice.ModelPath, rate)
		if err != nil {
			return err
		}
		rec = r
	}
	a.closers = append(a.closers, rec)

	src, err := audioio.NewSource(captureConfig(a.cfg.Audio), a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, src)

	a.listener = voice.NewListener(src, rec, a.commands,
		voice.WithListenerLogger(a.logger),
		voice.WithRecognizerRate(rate),
		voice.OnDropped(func(command.Command) { a.metrics.CommandDropped() }),
		voice.OnTranscript(func(string) { a.metrics.Transcript() }),
	)
	return nil
}

func cameraConfig(c config.CameraConfig) camera.Config {
	return camera.Config{
		Device:    c.Device,
		Width:     c.Width,
		Height:    c.Height,
		Framerate: c.Framerate,
		Quality:   c.Quality,
		Mirror:    c.Mirror,
	}
}

func captureConfig(c config.AudioConfig) audioio.Config {
	cfg := audioio.DefaultConfig()
	if c.Backend != "" {
		cfg.Backend = audioio.Backend(c.Backend)
	}
	if c.InputRate > 0 {
		cfg.SampleRate = c.InputRate
	}
	if c.BufferDuration > 0 {
		cfg.BufferDuration = c.BufferDuration
	}
	return cfg
}

func playbackConfig(c config.AudioConfig) audioio.Config {
	cfg := audioio.DefaultPlaybackConfig()
	if c.Backend != "" {
		cfg.Backend = audioio.Backend(c.Backend)
	}
	if c.OutputRate > 0 {
		cfg.SampleRate = c.OutputRate
	}
	return cfg
}
