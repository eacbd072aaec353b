package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("push.", 10)
	defer unsub()

	b.Publish(Event{Kind: "push.message", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "push.message" {
			t.Errorf("got kind %q, want push.message", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("poll.", 10)
	defer unsub()

	b.Publish(Event{Kind: "push.message"})
	b.Publish(Event{Kind: "poll.completed"})

	select {
	case evt := <-ch:
		if evt.Kind != "poll.completed" {
			t.Errorf("got kind %q, want poll.completed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConversationScoping(t *testing.T) {
	b := New()
	ch, unsub := b.SubscribeConversation("7", 10, "push.", "cache.")
	defer unsub()

	b.Publish(Event{Kind: "push.message", Conversation: "8"})
	b.Publish(Event{Kind: "poll.completed", Conversation: "7"})
	b.Publish(Event{Kind: "push.message", Conversation: "7"})
	b.Publish(Event{Kind: "cache.refreshed"})

	want := []string{"push.message", "cache.refreshed"}
	for _, kind := range want {
		select {
		case evt := <-ch:
			if evt.Kind != kind {
				t.Errorf("got kind %q, want %q", evt.Kind, kind)
			}
			if evt.Conversation != "" && evt.Conversation != "7" {
				t.Errorf("got conversation %q, want 7 or global", evt.Conversation)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", kind)
		}
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("push.", 10)
	if n := b.Subscribers(); n != 1 {
		t.Fatalf("Subscribers() = %d, want 1", n)
	}
	unsub()
	unsub()
	if n := b.Subscribers(); n != 0 {
		t.Errorf("Subscribers() after unsubscribe = %d, want 0", n)
	}

	b.Publish(Event{Kind: "push.message"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Publish(Event{Kind: "test.one"})
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}
