package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{ID: "c1", MailboxID: "m1", hub: hub, send: make(chan []byte, 1)}
	hub.register <- client

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients[client.ID]
		return ok
	}, time.Second, 10*time.Millisecond)

	client.detach()

	assert.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients) == 0 && len(hub.mailboxes) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHubShutdownReleasesClients(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// Hub 停止后注销不得永久阻塞
	client := &Client{ID: "c1", MailboxID: "m1", hub: hub, send: make(chan []byte, 1)}
	finished := make(chan struct{})
	go func() {
		client.detach()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("unregister blocked after hub shutdown")
	}
}
