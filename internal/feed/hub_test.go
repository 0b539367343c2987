package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_PublishDeliversToAllClients(t *testing.T) {
	hub := NewHub(nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	a := dial(t, server)
	b := dial(t, server)
	waitClients(t, hub, 2)

	hub.Publish("contract_persisted", map[string]string{"contract_id": "CDS1"})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev struct {
			Type    string            `json:"type"`
			Payload map[string]string `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, "contract_persisted", ev.Type)
		assert.Equal(t, "CDS1", ev.Payload["contract_id"])
	}
}

func TestHub_ClientDisconnectIsRemoved(t *testing.T) {
	hub := NewHub(nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	conn := dial(t, server)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)

	// Publishing with no clients is a no-op.
	hub.Publish("file_processed", nil)
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub := NewHub(nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	waitClients(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, _, err = websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
}

func TestHub_CloseDuringUpgradeRejectsClient(t *testing.T) {
	var hub *Hub
	closed := make(chan struct{})
	hub = NewHub(&Config{
		SendBuffer:   8,
		PingInterval: time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: time.Second,
		CheckOrigin: func(*http.Request) bool {
			// The hub closes after the pre-upgrade check has passed.
			hub.Close()
			close(closed)
			return true
		},
	}, nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	<-closed

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Clients())

	done := make(chan struct{})
	go func() {
		hub.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client goroutines started after Close")
	}
}
