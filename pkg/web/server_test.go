package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-seek/pkg/command"
	"github.com/teslashibe/go-seek/pkg/guide"
)

func newTestServer(ch *command.Channel) *Server {
	return NewServer(Options{
		Addr: ":0",
		Status: func() guide.Status {
			return guide.Status{Mode: guide.Find, Query: "milk", Locked: true, LastPhrase: "milk: left, keep going", Frames: 42, SessionID: "s1"}
		},
		Commands: ch,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "seek_frames_processed_total 42\n")
		}),
	})
}

func TestStatus(t *testing.T) {
	s := newTestServer(command.NewChannel(1))

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "find", body["mode"])
	assert.Equal(t, "milk", body["query"])
	assert.Equal(t, true, body["locked"])
	assert.Equal(t, "milk: left, keep going", body["last_phrase"])
	assert.Equal(t, 42.0, body["frames"])
	assert.Equal(t, "s1", body["session_id"])
}

func postCommand(t *testing.T, s *Server, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/command", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	return resp
}

func TestCommand(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   command.Command
	}{
		{"action", `{"action":"find","argument":"Milk"}`, http.StatusAccepted, command.Command{Action: command.Find, Argument: "milk"}},
		{"text", `{"text":"hey seek, where is the milk?"}`, http.StatusAccepted, command.Command{Action: command.Find, Argument: "milk"}},
		{"stop", `{"action":"stop"}`, http.StatusAccepted, command.Command{Action: command.Stop}},
		{"unknown action", `{"action":"dance"}`, http.StatusBadRequest, command.Command{}},
		{"find without item", `{"action":"find"}`, http.StatusBadRequest, command.Command{}},
		{"garbage text", `{"text":"sing me a song"}`, http.StatusBadRequest, command.Command{}},
		{"bad json", `{`, http.StatusBadRequest, command.Command{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := command.NewChannel(1)
			resp := postCommand(t, newTestServer(ch), tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			got, ok := ch.Poll()
			if tt.status != http.StatusAccepted {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommand_ChannelFull(t *testing.T) {
	ch := command.NewChannel(1)
	s := newTestServer(ch)

	assert.Equal(t, http.StatusAccepted, postCommand(t, s, `{"action":"read"}`).StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, postCommand(t, s, `{"action":"what"}`).StatusCode)
	assert.Equal(t, int64(1), ch.Dropped())
}

func TestMetricsAndHealth(t *testing.T) {
	s := newTestServer(command.NewChannel(1))

	resp, err := s.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "seek_frames_processed_total 42")

	resp, err = s.App().Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
