package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-seek/pkg/audioio"
	"github.com/teslashibe/go-seek/pkg/command"
)

// CommandSink accepts parsed commands without blocking.
type CommandSink interface {
	TryPush(cmd command.Command) error
}

// Listener reads audio, recognizes it and pushes commands.
type Listener struct {
	source     audioio.Source
	rec        Recognizer
	sink       CommandSink
	logger     *slog.Logger
	sampleRate int

	onDropped    func(command.Command)
	onTranscript func(text string)
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger.
func WithListenerLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithRecognizerRate sets the rate audio is converted to before
// recognition.
func WithRecognizerRate(rate int) ListenerOption {
	return func(l *Listener) {
		if rate > 0 {
			l.sampleRate = rate
		}
	}
}

// OnDropped is called for commands rejected by a full sink.
func OnDropped(fn func(command.Command)) ListenerOption {
	return func(l *Listener) { l.onDropped = fn }
}

// OnTranscript is called for every non-empty final transcript.
func OnTranscript(fn func(text string)) ListenerOption {
	return func(l *Listener) { l.onTranscript = fn }
}

// NewListener creates a listener.
func NewListener(source audioio.Source, rec Recognizer, sink CommandSink, opts ...ListenerOption) *Listener {
	l := &Listener{
		source:     source,
		rec:        rec,
		sink:       sink,
		logger:     slog.Default().With("component", "voice"),
		sampleRate: DefaultSampleRate,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run listens until ctx is cancelled or the source ends. A source that
// ends with io.EOF flushes the recognizer and returns nil.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.source.Start(ctx); err != nil {
		return err
	}
	defer l.source.Stop()

	l.logger.Info("listening",
		"source", l.source.Name(),
		"recognizer", l.rec.Name(),
		"sample_rate", l.sampleRate)

	for {
		chunk, err := l.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				res, ferr := l.rec.Flush()
				if ferr == nil {
					l.handle(res)
				}
				return nil
			}
			return err
		}

		pcm := chunk.Convert(l.sampleRate, 1).Bytes()
		res, err := l.rec.Accept(pcm)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			l.logger.Warn("recognition failed", "error", err)
			continue
		}
		l.handle(res)
	}
}

func (l *Listener) handle(res Result) {
	if !res.Final {
		return
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return
	}
	if l.onTranscript != nil {
		l.onTranscript(text)
	}

	cmd, err := command.Parse(text)
	if err != nil {
		l.logger.Debug("ignored utterance", "text", text, "error", err)
		return
	}

	if err := l.sink.TryPush(cmd); err != nil {
		l.logger.Warn("command dropped", "command", cmd.String(), "error", err)
		if l.onDropped != nil {
			l.onDropped(cmd)
		}
		return
	}
	l.logger.Info("heard command", "command", cmd.String(), "text", text)
}
