package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBroadcastReachesOnlyOwner(t *testing.T) {
	hub := NewHub(zap.NewNop())

	aliceCh := hub.Subscribe("alice", 4)
	bobCh := hub.Subscribe("bob", 4)
	defer hub.Unsubscribe("alice", aliceCh)
	defer hub.Unsubscribe("bob", bobCh)

	payload := map[string]any{"taskId": "t-1", "userId": "alice"}
	if err := hub.Broadcast(context.Background(), EventTaskDeleted, payload, "alice"); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	select {
	case evt := <-aliceCh:
		if evt.Type != EventTaskDeleted {
			t.Errorf("type = %q, want %q", evt.Type, EventTaskDeleted)
		}
		if evt.Data["taskId"] != "t-1" {
			t.Errorf("payload = %v", evt.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("owner never received the event")
	}

	select {
	case evt := <-bobCh:
		t.Fatalf("other user received event %v", evt)
	default:
	}
}

func TestBroadcastFanOutToAllConnections(t *testing.T) {
	hub := NewHub(zap.NewNop())

	ch1 := hub.Subscribe("alice", 4)
	ch2 := hub.Subscribe("alice", 4)
	defer hub.Unsubscribe("alice", ch1)
	defer hub.Unsubscribe("alice", ch2)

	hub.Broadcast(context.Background(), EventTaskCreated, map[string]any{"taskId": "t-2"}, "alice")

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("connection %d never received the event", i)
		}
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(zap.NewNop())

	ch := hub.Subscribe("alice", 1)
	defer hub.Unsubscribe("alice", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Broadcast(context.Background(), EventTaskUpdated, nil, "alice")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on full subscriber channel")
	}
}

func TestBroadcastDuringSubscriberChurn(t *testing.T) {
	hub := NewHub(zap.NewNop())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Broadcast(context.Background(), EventTaskUpdated, nil, "alice")
				}
			}
		}()
	}

	// Connections coming and going while broadcasts are in flight must not
	// hit a closed channel.
	for i := 0; i < 500; i++ {
		ch := hub.Subscribe("alice", 1)
		hub.Unsubscribe("alice", ch)
	}

	close(stop)
	wg.Wait()
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(zap.NewNop())

	ch := hub.Subscribe("alice", 1)
	hub.Unsubscribe("alice", ch)

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}

	// double unsubscribe must not panic
	hub.Unsubscribe("alice", ch)
}
