package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-seek/pkg/audioio"
	"github.com/teslashibe/go-seek/pkg/command"
)

// scriptRecognizer returns one scripted result per Accept call.
type scriptRecognizer struct {
	mu       sync.Mutex
	results  []Result
	errs     map[int]error
	flush    Result
	accepted [][]byte
}

func (s *scriptRecognizer) Name() string { return "script" }

func (s *scriptRecognizer) Accept(pcm []byte) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.accepted)
	s.accepted = append(s.accepted, pcm)
	if err := s.errs[i]; err != nil {
		return Result{}, err
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return Result{}, nil
}

func (s *scriptRecognizer) Flush() (Result, error) { return s.flush, nil }

func (s *scriptRecognizer) Close() error { return nil }

func chunks(n int) []audioio.Chunk {
	out := make([]audioio.Chunk, n)
	for i := range out {
		out[i] = audioio.Chunk{Samples: make([]int16, 160), SampleRate: 16000, Channels: 1}
	}
	return out
}

func drain(ch *command.Channel) []command.Command {
	var out []command.Command
	for {
		cmd, ok := ch.Poll()
		if !ok {
			return out
		}
		out = append(out, cmd)
	}
}

func TestListener_PushesFinalCommands(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithScript(chunks(4)...))
	rec := &scriptRecognizer{results: []Result{
		{Text: "find the"},
		{Text: "find the milk", Final: true},
		{Text: "hmm", Final: true},
		{Text: "stop", Final: true},
	}}
	ch := command.NewChannel(8)

	var heard []string
	l := NewListener(src, rec, ch, OnTranscript(func(text string) { heard = append(heard, text) }))
	require.NoError(t, l.Run(context.Background()))

	assert.Equal(t, []command.Command{
		{Action: command.Find, Argument: "milk"},
		{Action: command.Stop},
	}, drain(ch))
	assert.Equal(t, []string{"find the milk", "hmm", "stop"}, heard)
	assert.Len(t, rec.accepted, 4)
}

func TestListener_ConvertsToRecognizerRate(t *testing.T) {
	stereo := audioio.Chunk{Samples: make([]int16, 640), SampleRate: 32000, Channels: 2}
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithScript(stereo))
	rec := &scriptRecognizer{}

	l := NewListener(src, rec, command.NewChannel(1))
	require.NoError(t, l.Run(context.Background()))

	require.Len(t, rec.accepted, 1)
	// 320 stereo frames at 32 kHz become 160 mono samples at 16 kHz.
	assert.Len(t, rec.accepted[0], 320)
}

func TestListener_DropsWhenFull(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithScript(chunks(2)...))
	rec := &scriptRecognizer{results: []Result{
		{Text: "what is this", Final: true},
		{Text: "read this", Final: true},
	}}
	ch := command.NewChannel(1)

	var dropped []command.Command
	l := NewListener(src, rec, ch, OnDropped(func(cmd command.Command) { dropped = append(dropped, cmd) }))
	require.NoError(t, l.Run(context.Background()))

	assert.Equal(t, []command.Command{{Action: command.What}}, drain(ch))
	assert.Equal(t, []command.Command{{Action: command.Read}}, dropped)
	assert.Equal(t, int64(1), ch.Dropped())
}

func TestListener_FlushesOnEOF(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithScript(chunks(1)...))
	rec := &scriptRecognizer{flush: Result{Text: "quit", Final: true}}
	ch := command.NewChannel(4)

	require.NoError(t, NewListener(src, rec, ch).Run(context.Background()))
	assert.Equal(t, []command.Command{{Action: command.Quit}}, drain(ch))
}

func TestListener_RecognitionErrorContinues(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithScript(chunks(2)...))
	rec := &scriptRecognizer{
		errs:    map[int]error{0: errors.New("glitch")},
		results: []Result{{}, {Text: "stop", Final: true}},
	}
	ch := command.NewChannel(4)

	require.NoError(t, NewListener(src, rec, ch).Run(context.Background()))
	assert.Equal(t, []command.Command{{Action: command.Stop}}, drain(ch))
}

func TestListener_ClosedRecognizerStops(t *testing.T) {
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithScript(chunks(3)...))
	rec := &scriptRecognizer{errs: map[int]error{0: ErrClosed}}

	err := NewListener(src, rec, command.NewChannel(1)).Run(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestListener_ContextCancel(t *testing.T) {
	cfg := audioio.DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond
	src := audioio.NewMockSource(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewListener(src, &scriptRecognizer{}, command.NewChannel(1)).Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		final bool
		want  Result
	}{
		{"partial", `{"partial" : "find the"}`, false, Result{Text: "find the"}},
		{"empty partial", `{"partial" : ""}`, false, Result{}},
		{"server final", `{"result": [], "text" : "stop"}`, false, Result{Text: "stop", Final: true}},
		{"local final", `{"text" : " read this "}`, true, Result{Text: "read this", Final: true}},
		{"empty final", `{"text" : ""}`, true, Result{Final: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResult([]byte(tt.raw), tt.final)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseResult([]byte("not json"), false)
	assert.Error(t, err)
}
