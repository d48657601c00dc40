package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"circle-chat/pkg/events"
)

func receive(t *testing.T, c *Client) events.Event {
	t.Helper()
	select {
	case payload, ok := <-c.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var ev events.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatal(err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return events.Event{}
}

func TestRegisterSendsSnapshotFirst(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil, "alice")

	hub.Register(client, func() []events.Event {
		return []events.Event{events.New(events.TypeUser, "alice"), events.New(events.TypeRoom, nil)}
	})
	if err := hub.Publish(context.Background(), events.UserChannel("alice"), events.New(events.TypeNotice, "hi")); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{events.TypeUser, events.TypeRoom, events.TypeNotice} {
		if ev := receive(t, client); ev.Type != want {
			t.Fatalf("got %s, want %s", ev.Type, want)
		}
	}
}

func TestBroadcastOnlyReachesSubscribers(t *testing.T) {
	hub := NewHub()
	alice := NewClient(nil, "alice")
	bob := NewClient(nil, "bob")
	hub.Register(alice, nil)
	hub.Register(bob, nil)

	if hub.GetChannelSubscriberCount(events.UserChannel("alice")) != 1 {
		t.Fatalf("alice channel should have one subscriber")
	}
	hub.Broadcast(events.UserChannel("bob"), []byte(`{"type":"notice"}`))

	if ev := receive(t, bob); ev.Type != events.TypeNotice {
		t.Fatalf("bob got %s", ev.Type)
	}
	if len(alice.Send) != 0 {
		t.Fatalf("alice should not receive bob's events")
	}
}

func TestUnregisterClosesClient(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient(nil, "alice")
	hub.Register(client, nil)
	hub.Unregister(client)

	select {
	case _, ok := <-client.Send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client was not detached")
	}
	if hub.GetClientCount() != 0 || hub.GetChannelSubscriberCount(events.UserChannel("alice")) != 0 {
		t.Fatalf("hub still tracks the client")
	}
}

func TestRunDetachesEveryoneOnShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	hub.Register(NewClient(nil, "alice"), nil)
	hub.Register(NewClient(nil, "bob"), nil)
	cancel()
	<-done

	if hub.GetClientCount() != 0 {
		t.Fatalf("clients left: %d", hub.GetClientCount())
	}
}
