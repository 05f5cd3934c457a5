package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVoskServer answers the first audio frame with a partial, every
// later frame with a final and eof with a final "quit".
func fakeVoskServer(t *testing.T, gotRate chan<- int) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		var cfg voskConfig
		if err := ws.ReadJSON(&cfg); err != nil {
			return
		}
		gotRate <- cfg.Config.SampleRate

		frames := 0
		for {
			kind, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.TextMessage && strings.Contains(string(data), "eof") {
				_ = ws.WriteJSON(map[string]any{"text": "quit"})
				return
			}
			frames++
			if frames == 1 {
				_ = ws.WriteJSON(map[string]any{"partial": "find the"})
				continue
			}
			_ = ws.WriteJSON(map[string]any{"result": []any{}, "text": "find the keys"})
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestVoskServer_Stream(t *testing.T) {
	rate := make(chan int, 1)
	srv := fakeVoskServer(t, rate)
	defer srv.Close()

	rec, err := DialVoskServer(context.Background(), wsURL(srv), 0)
	require.NoError(t, err)
	defer rec.Close()
	assert.Equal(t, "vosk-server", rec.Name())

	res, err := rec.Accept(make([]byte, 320))
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "find the"}, res)
	assert.Equal(t, DefaultSampleRate, <-rate)

	res, err = rec.Accept(make([]byte, 320))
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "find the keys", Final: true}, res)

	res, err = rec.Flush()
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "quit", Final: true}, res)

	_, err = rec.Accept(make([]byte, 320))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestVoskServer_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := DialVoskServer(context.Background(), wsURL(srv), DefaultSampleRate)
	assert.Error(t, err)
}

func TestVoskServer_ConfigMessage(t *testing.T) {
	var cfg voskConfig
	cfg.Config.SampleRate = 16000
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"config":{"sample_rate":16000}}`, string(data))
}
