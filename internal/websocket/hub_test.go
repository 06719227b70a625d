package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdash/backend/internal/domain"
)

func newHubClient(hub *Hub, id string) *Client {
	return &Client{
		ID:   id,
		send: make(chan []byte, 8),
		hub:  hub,
		log:  zap.NewNop(),
	}
}

func TestHub_BroadcastsEmailEvents(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newHubClient(hub, "c1")
	hub.register <- client

	hub.EmailUpdated(domain.EmailRecord{"id": "e1", "is_read": true})

	select {
	case data := <-client.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, MessageTypeEmailUpdated, msg.Type)
		assert.Contains(t, string(msg.Data), `"e1"`)
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}

	hub.EmailDeleted("e1")
	select {
	case data := <-client.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, MessageTypeEmailDeleted, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestHub_ShutdownUnblocksDetach(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := newHubClient(hub, "c1")
	hub.register <- client

	cancel()
	<-stopped

	// After the hub stopped, detach must return instead of blocking on
	// the unregister channel forever
	detached := make(chan struct{})
	go func() {
		client.detach()
		close(detached)
	}()

	select {
	case <-detached:
	case <-time.After(time.Second):
		t.Fatal("detach blocked after hub shutdown")
	}
}
