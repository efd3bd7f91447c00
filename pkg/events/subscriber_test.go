package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/romangluhoedov/GoogleDocsAPI/pkg/db"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveHub upgrades every request and signals each time Serve returns.
func serveHub(t *testing.T, hub *Hub) (string, <-chan struct{}) {
	t.Helper()
	served := make(chan struct{}, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		NewSubscriber(hub, conn, r.URL.Query().Get("job")).Serve()
		served <- struct{}{}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), served
}

func TestSubscriber_ImmediateDisconnectLeavesHub(t *testing.T) {
	hub := startHub(t)
	url, served := serveHub(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSubscriber_ReceivesPublishedJobs(t *testing.T) {
	hub := startHub(t)
	url, served := serveHub(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?job=job-7", nil)
	require.NoError(t, err)
	defer conn.Close()
	<-served
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(&db.MergeJob{ID: "job-6", Status: db.StatusCopied})
	hub.Publish(&db.MergeJob{ID: "job-7", Status: db.StatusApplied})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event JobEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "job-7", event.Job.ID)
	assert.Equal(t, db.StatusApplied, event.Job.Status)
}

func TestSubscriber_StoppedHubClosesConnection(t *testing.T) {
	hub := NewHub()
	hub.Stop()
	url, served := serveHub(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	<-served
	assert.Equal(t, 0, hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
