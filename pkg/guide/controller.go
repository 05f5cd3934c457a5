package guide

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-seek/pkg/announce"
	"github.com/teslashibe/go-seek/pkg/command"
	"github.com/teslashibe/go-seek/pkg/guidance"
	"github.com/teslashibe/go-seek/pkg/match"
	"github.com/teslashibe/go-seek/pkg/tracking"
	"github.com/teslashibe/go-seek/pkg/vision"
)

// Observer receives controller events, typically for metrics.
type Observer interface {
	FrameProcessed(elapsed time.Duration)
	FrameSkipped()
	CommandApplied(action command.Action)
	TargetLocked()
	TargetLost()
}

type nopObserver struct{}

func (nopObserver) FrameProcessed(time.Duration)  {}
func (nopObserver) FrameSkipped()                 {}
func (nopObserver) CommandApplied(command.Action) {}
func (nopObserver) TargetLocked()                 {}
func (nopObserver) TargetLost()                   {}

// Deps are the collaborators a Controller drives. Nil vision collaborators
// are replaced by no-op implementations.
type Deps struct {
	Detector   vision.Detector
	Recognizer vision.TextRecognizer
	Depth      vision.DepthEstimator
	Announcer  announce.Announcer
}

// View is what a renderer needs to draw one frame.
type View struct {
	Mode       Mode
	Query      string
	Skipped    bool
	Detections []vision.Box
	Candidates []vision.Box
	Target     vision.Box
	Locked     bool
	Focus      vision.Box
	HasFocus   bool
	Progress   float64 // What mode wait progress in [0,1]
	Phrase     string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithMatcher replaces the default target matcher.
func WithMatcher(m match.Matcher) Option {
	return func(c *Controller) { c.matcher = m }
}

// WithTracking sets the tracker configuration.
func WithTracking(cfg tracking.Config) Option {
	return func(c *Controller) { c.tracker = tracking.New(cfg) }
}

// WithGuidance sets the guidance thresholds.
func WithGuidance(cfg guidance.Config) Option {
	return func(c *Controller) { c.guidance = cfg }
}

// WithStatusListener is called from the loop goroutine whenever the
// externally visible state changes.
func WithStatusListener(fn func(Status)) Option {
	return func(c *Controller) { c.listener = fn }
}

// Controller is the mode state machine. Apply and Process must be called
// from a single goroutine; Snapshot is safe from any goroutine.
type Controller struct {
	cfg        Config
	detector   vision.Detector
	recognizer vision.TextRecognizer
	depth      vision.DepthEstimator
	announcer  announce.Announcer
	matcher    match.Matcher
	tracker    *tracking.Tracker
	guidance   guidance.Config
	logger     *slog.Logger
	observer   Observer
	listener   func(Status)
	scanner    *scanner

	session Session
	frames  int64

	mu     sync.RWMutex
	status Status
}

// NewController creates a controller in Idle mode.
func NewController(cfg Config, deps Deps, opts ...Option) *Controller {
	c := &Controller{
		cfg:        cfg.withDefaults(),
		detector:   deps.Detector,
		recognizer: deps.Recognizer,
		depth:      deps.Depth,
		announcer:  deps.Announcer,
		matcher:    match.New(match.DefaultThreshold),
		tracker:    tracking.New(tracking.DefaultConfig()),
		guidance:   guidance.DefaultConfig(),
		logger:     slog.Default(),
		observer:   nopObserver{},
		session:    newSession(Idle, ""),
	}
	if c.detector == nil {
		c.detector = vision.NopDetector{}
	}
	if c.recognizer == nil {
		c.recognizer = vision.NopRecognizer{}
	}
	if c.depth == nil {
		c.depth = vision.NopDepth{}
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "guide")
	c.scanner = newScanner(c.recognizer, c.cfg.RecognizeTimeout, c.cfg.RecognizeBudget, c.logger)
	c.status = c.currentStatus()
	return c
}

// Close abandons any text recognition in flight and waits for it to stop.
func (c *Controller) Close() error {
	c.scanner.close()
	return nil
}

// Session returns a copy of the current session. Loop goroutine only.
func (c *Controller) Session() Session {
	return c.session
}

// Snapshot returns the latest published status.
func (c *Controller) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Apply performs the transition for cmd. It returns false for quit, which
// ends the loop; every other command returns true.
func (c *Controller) Apply(cmd command.Command) bool {
	c.observer.CommandApplied(cmd.Action)
	c.logger.Info("command", "action", cmd.Action, "argument", cmd.Argument, "from", c.session.Mode)

	switch cmd.Action {
	case command.Quit:
		return false
	case command.Stop:
		c.enter(Idle, "", MsgStopped)
	case command.Find:
		q := strings.TrimSpace(cmd.Argument)
		if q == "" {
			c.logger.Debug("find without a target ignored")
			return true
		}
		c.enter(Find, q, msgLooking(q))
	case command.What:
		c.enter(What, "", MsgAnalyzing)
	case command.Read:
		c.enter(Read, "", MsgReading)
	default:
		c.logger.Debug("unknown command ignored", "action", cmd.Action)
		return true
	}
	c.publish()
	return true
}

// enter replaces the session, clears throttle memory and announces msg.
func (c *Controller) enter(mode Mode, query, msg string) {
	c.session = newSession(mode, query)
	c.scanner.reset()
	c.announcer.ResetThrottle()
	c.announcer.Mandatory(msg)
}

// toIdle ends a one-shot or lost session without a transition message.
func (c *Controller) toIdle() {
	last := c.session.LastPhrase
	c.session = newSession(Idle, "")
	c.session.LastPhrase = last
	c.scanner.reset()
	c.announcer.ResetThrottle()
}

// Skip records a frame that was captured but not analyzed and returns the
// view for drawing it.
func (c *Controller) Skip() View {
	c.observer.FrameSkipped()
	return View{
		Mode:    c.session.Mode,
		Query:   c.session.Query,
		Skipped: true,
		Target:  c.session.Track.Box,
		Locked:  c.session.Track.Locked,
		Phrase:  c.session.LastPhrase,
	}
}

// Process analyzes one frame for the active mode. Text recognition runs in
// the background and blocks Process for at most RecognizeBudget. Collaborator
// failures are absorbed: detection errors mean no detections, recognition
// errors mean empty text and missing depth falls back to box area.
func (c *Controller) Process(ctx context.Context, frame vision.Frame) View {
	start := time.Now()
	w, h := frame.Width(), frame.Height()

	dets, err := c.detector.Detect(frame)
	if err != nil {
		c.logger.Debug("detection failed", "error", err)
		dets = nil
	}
	dets = vision.Normalize(dets, w, h)

	c.frames++
	v := View{Mode: c.session.Mode, Query: c.session.Query, Detections: dets}

	switch c.session.Mode {
	case Find:
		c.handleFind(ctx, frame, dets, &v)
	case What:
		c.handleWhat(ctx, frame, dets, &v)
	case Read:
		c.handleRead(ctx, frame, dets, &v)
	}

	v.Phrase = c.session.LastPhrase
	c.observer.FrameProcessed(time.Since(start))
	c.publish()
	return v
}

func (c *Controller) handleFind(ctx context.Context, frame vision.Frame, dets []vision.Box, v *View) {
	s := &c.session
	candidates := vision.TopK(dets, c.cfg.TopK)
	v.Candidates = candidates

	if !s.Track.Locked {
		// The scan may come from an earlier frame; Update below
		// re-associates the locked box with this frame's detections.
		r, ok := c.scanner.scan(ctx, s.ID, frame, candidates)
		if !ok {
			return
		}
		idx := c.matcher.Match(r.texts, s.Query)
		if idx == match.NoMatch {
			return
		}
		s.Track = c.tracker.Lock(r.boxes[idx])
		c.observer.TargetLocked()
		c.logger.Info("target locked", "query", s.Query, "box", s.Track.Box, "text", r.texts[idx])
		c.announcer.Throttled(msgFound(s.Query))
	}

	res := c.tracker.Update(&s.Track, dets)
	if res.Lost {
		q := s.Query
		c.observer.TargetLost()
		c.logger.Info("target lost", "query", q, "coasted", s.Track.Coasted)
		c.toIdle()
		c.announcer.Mandatory(msgLost(q))
		v.Mode = Idle
		return
	}
	if !res.Matched {
		c.logger.Debug("coasting", "query", s.Query, "iou", res.IoU, "coasted", s.Track.Coasted)
	}

	depth, ok := c.depth.SampleBoxDepth(frame, res.Box)
	g := c.guidance.Compute(res.Box, frame.Width(), frame.Height(), depth, ok)
	phrase := s.Query + ": " + g.Phrase()

	s.LastPhrase = phrase
	c.announcer.Throttled(phrase)
	c.logger.Debug("guidance", "phrase", phrase, "from_depth", g.FromDepth)

	v.Target = res.Box
	v.Locked = true
}

func (c *Controller) handleWhat(ctx context.Context, frame vision.Frame, dets []vision.Box, v *View) {
	s := &c.session
	s.WaitFrames++

	focus, ok := vision.LargestExcluding(dets, c.cfg.Exclude)
	v.Focus, v.HasFocus = focus, ok
	if c.cfg.WaitFrames > 0 {
		v.Progress = min(1, float64(s.WaitFrames)/float64(c.cfg.WaitFrames))
	} else {
		v.Progress = 1
	}

	if s.WaitFrames < c.cfg.WaitFrames {
		return
	}

	if r, done := c.scanner.scan(ctx, s.ID, frame, focusList(focus, ok)); done {
		result := r.boxes[0].Label
		if r.texts[0] != "" {
			result += ": " + r.texts[0]
		}
		v.Focus, v.HasFocus = r.boxes[0], true
		c.finish(result, v)
		return
	}
	if !ok && !c.scanner.pending(s.ID) {
		c.finish(MsgNothing, v)
	}
}

func (c *Controller) handleRead(ctx context.Context, frame vision.Frame, dets []vision.Box, v *View) {
	focus, ok := vision.LargestExcluding(dets, c.cfg.Exclude)
	v.Focus, v.HasFocus = focus, ok

	if r, done := c.scanner.scan(ctx, c.session.ID, frame, focusList(focus, ok)); done {
		result := r.texts[0]
		if result == "" {
			result = MsgNoText
		}
		v.Focus, v.HasFocus = r.boxes[0], true
		c.finish(result, v)
		return
	}
	if !ok && !c.scanner.pending(c.session.ID) {
		c.finish(MsgNothing, v)
	}
}

func focusList(b vision.Box, ok bool) []vision.Box {
	if !ok {
		return nil
	}
	return []vision.Box{b}
}

// finish announces a one-shot result and returns to Idle.
func (c *Controller) finish(result string, v *View) {
	c.logger.Info("result", "mode", c.session.Mode, "text", result)
	c.session.LastPhrase = result
	c.announcer.Mandatory(result)
	c.toIdle()
	v.Mode = Idle
}

func (c *Controller) currentStatus() Status {
	return Status{
		Mode:       c.session.Mode,
		Query:      c.session.Query,
		Locked:     c.session.Track.Locked,
		LastPhrase: c.session.LastPhrase,
		Frames:     c.frames,
		SessionID:  c.session.ID,
	}
}

// publish stores the status for Snapshot and notifies the listener when
// anything other than the frame count changed.
func (c *Controller) publish() {
	st := c.currentStatus()

	c.mu.Lock()
	changed := !c.status.sameState(st)
	c.status = st
	c.mu.Unlock()

	if changed && c.listener != nil {
		c.listener(st)
	}
}
