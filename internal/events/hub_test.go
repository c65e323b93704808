package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu   sync.Mutex
	msgs []Message
}

func (l *recordingListener) OnEvent(msg Message) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

func TestHub_Listeners(t *testing.T) {
	h := NewHub(nil)
	l := &recordingListener{}

	h.AddListener(l)
	h.AddListener(l)
	h.Publish("clip.progress", map[string]float64{"percent": 10})
	require.Equal(t, 1, l.count())
	require.Equal(t, "clip.progress", l.msgs[0].Topic)

	h.RemoveListener(l)
	h.Publish("clip.progress", nil)
	require.Equal(t, 1, l.count())
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_WebsocketDelivery(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, nil)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.Publish(TopicKeyBindings, map[string]string{"mark_in": "a"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Topic string            `json:"topic"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, TopicKeyBindings, msg.Topic)
	require.Equal(t, "a", msg.Data["mark_in"])

	conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, nil)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoopbackOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:8797", true},
		{"http://[::1]:8797", true},
		{"https://example.com", false},
		{"http://192.168.1.5", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/events", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		require.Equal(t, tt.want, loopbackOrigin(r), tt.origin)
	}
}

func TestHub_SlowClientDropsOrDisconnects(t *testing.T) {
	h := NewHub(nil)
	h.Critical("clip.created")

	c := &client{send: make(chan []byte, 1)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.Publish("clip.progress", nil)
	h.Publish("clip.progress", nil)
	require.Equal(t, 1, h.ClientCount(), "progress overflow only drops the event")
	require.Len(t, c.send, 1)

	h.Publish("clip.created", nil)
	require.Zero(t, h.ClientCount(), "terminal overflow disconnects the client")

	<-c.send
	_, open := <-c.send
	require.False(t, open)
}
