package out_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sessionoutadapter "arena/internal/modules/session/adapter/out"
	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
	"arena/internal/platform/logging"
)

func TestHTTPAdvisorParsesRecommendation(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/sess-1/intervention", r.URL.Path)
		assert.Equal(t, "fr", r.URL.Query().Get("lang"))
		_, _ = w.Write([]byte(`{"action":"force_pick","payload":{"message":"Time to choose","signal":"careful","choice_id":"b"}}`))
	}))
	t.Cleanup(server.Close)

	advisor := sessionoutadapter.NewHTTPAdvisor(server.URL+"/", time.Second)
	rec, err := advisor.Recommend(context.Background(), "sess-1", "fr")
	require.NoError(t, err)
	assert.Equal(t, domain.Recommendation{Action: domain.ActionForcePick, Message: "Time to choose", Signal: "careful", ChoiceID: "b"}, rec)
}

func TestHTTPAdvisorNoContentMeansNone(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	rec, err := sessionoutadapter.NewHTTPAdvisor(server.URL, time.Second).Recommend(context.Background(), "sess-1", "en")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionNone, rec.Action)
}

func TestHTTPAdvisorErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		code int
		body string
	}{
		{name: "server error", code: http.StatusInternalServerError, body: "boom"},
		{name: "unknown action", code: http.StatusOK, body: `{"action":"explode"}`},
		{name: "bad json", code: http.StatusOK, body: `{"action":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(server.Close)
			_, err := sessionoutadapter.NewHTTPAdvisor(server.URL, time.Second).Recommend(context.Background(), "sess-1", "en")
			require.Error(t, err)
		})
	}
}

func TestWebSocketHubBroadcastsEvents(t *testing.T) {
	t.Parallel()
	hub := sessionoutadapter.NewWebSocketHub(logging.Discard())
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial(strings.Replace(server.URL, "http", "ws", 1), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(domain.ScreenChanged{SessionID: "sess-1", Screen: domain.ScreenForcedChoice, Round: 1, Index: 1, Time: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg struct {
		Type    string         `json:"type"`
		At      time.Time      `json:"at"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "screen_changed", msg.Type)
	assert.Equal(t, "forced_choice", msg.Payload["screen"])
	assert.Equal(t, "sess-1", msg.Payload["session_id"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type collectSink struct {
	mu     sync.Mutex
	events []string
}

func (s *collectSink) Publish(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e.EventName())
}

func TestMultiSinkFansOut(t *testing.T) {
	t.Parallel()
	a, b := &collectSink{}, &collectSink{}
	sink := sessionoutadapter.MultiSink{a, nil, b}
	var _ sessionout.EventSink = sink
	sink.Publish(domain.Tick{SessionID: "s"})
	assert.Equal(t, []string{"tick"}, a.events)
	assert.Equal(t, []string{"tick"}, b.events)
}
