package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultHandshakeTimeout bounds the WebSocket dial.
const DefaultHandshakeTimeout = 10 * time.Second

// VoskServer streams audio to a vosk-server instance.
//
// The protocol is one config message, then binary PCM frames each answered
// by a JSON partial or text result, and {"eof" : 1} to end the stream.
type VoskServer struct {
	url string

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

type voskConfig struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
	} `json:"config"`
}

// DialVoskServer connects and sends the stream configuration.
func DialVoskServer(ctx context.Context, url string, sampleRate int) (*VoskServer, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	dialer := websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("voice: dial vosk-server: %w", err)
	}

	var cfg voskConfig
	cfg.Config.SampleRate = sampleRate
	if err := ws.WriteJSON(cfg); err != nil {
		ws.Close()
		return nil, fmt.Errorf("voice: configure vosk-server: %w", err)
	}

	return &VoskServer{url: url, ws: ws}, nil
}

func (s *VoskServer) Name() string { return "vosk-server" }

// Accept sends one audio frame and waits for the reply.
func (s *VoskServer) Accept(pcm []byte) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Result{}, ErrClosed
	}
	if err := s.ws.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return Result{}, fmt.Errorf("voice: send audio: %w", err)
	}
	return s.readLocked(false)
}

// Flush signals end of stream and returns the final result. The server
// closes the session afterwards, so the recognizer is closed too.
func (s *VoskServer) Flush() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Result{}, ErrClosed
	}
	if err := s.ws.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return Result{}, fmt.Errorf("voice: send eof: %w", err)
	}
	res, err := s.readLocked(true)
	s.closeLocked()
	return res, err
}

func (s *VoskServer) readLocked(final bool) (Result, error) {
	_, data, err := s.ws.ReadMessage()
	if err != nil {
		return Result{}, fmt.Errorf("voice: read result: %w", err)
	}
	return parseResult(data, final)
}

// Close ends the session without waiting for a final result.
func (s *VoskServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *VoskServer) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.ws.Close()
}

var _ Recognizer = (*VoskServer)(nil)
