package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/transport"
	"github.com/matheus3301/chatsync/internal/transport/transporttest"
	"github.com/matheus3301/chatsync/internal/wire"
)

func mustPush(t *testing.T, ch *transporttest.Channel, dest, body string) {
	t.Helper()
	if err := ch.Push(dest, body); err != nil {
		t.Fatal(err)
	}
}

func waitState(t *testing.T, states <-chan status.State, want status.State) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-states:
			if !ok {
				t.Fatalf("state stream closed before %s", want)
			}
			if s == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func nextEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return bus.Event{}
	}
}

var alice = transport.Identity{UserID: "u1", DisplayName: "Alice"}

func connect(t *testing.T, d transport.Dialer, b *bus.Bus) (*transport.Client, <-chan status.State) {
	t.Helper()
	c := transport.NewClient(d, alice, b, nil, transport.Config{ReconnectDelay: 10 * time.Millisecond})
	states, err := c.Connect(context.Background(), "7", "tok")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Disconnect)
	return c, states
}

func TestConnectSubscribesAndJoins(t *testing.T) {
	d := transporttest.NewDialer(0)
	c, states := connect(t, d, bus.New())
	ch := d.Next(t)
	waitState(t, states, status.Connected)

	if c.State() != status.Connected {
		t.Errorf("State() = %s", c.State())
	}
	for _, dest := range []string{"/topic/conversations.7", "/topic/users.u1.errors"} {
		if !ch.Subscribed(dest) {
			t.Errorf("not subscribed to %s", dest)
		}
	}
	frames := ch.Sent()
	if len(frames) != 1 || frames[0].Destination != transport.JoinDestination {
		t.Fatalf("sent frames = %v, want one join", frames)
	}
	var env wire.Envelope
	if err := json.Unmarshal(frames[0].Body, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != wire.TypeJoin || env.ConversationID != "7" || env.SenderID != "u1" {
		t.Errorf("join envelope = %+v", env)
	}
	if d.Tokens()[0] != "tok" {
		t.Errorf("dialed with token %q", d.Tokens()[0])
	}
}

func TestConnectTwice(t *testing.T) {
	c, _ := connect(t, transporttest.NewDialer(0), bus.New())
	if _, err := c.Connect(context.Background(), "7", "tok"); !errors.Is(err, transport.ErrAlreadyConnected) {
		t.Errorf("second Connect error = %v, want transport.ErrAlreadyConnected", err)
	}
}

func TestInboundChatBecomesPushEvent(t *testing.T) {
	b := bus.New()
	events, unsub := b.SubscribeConversation("7", 16, "push.")
	defer unsub()

	d := transporttest.NewDialer(0)
	_, states := connect(t, d, b)
	ch := d.Next(t)
	waitState(t, states, status.Connected)

	topic := transport.ConversationTopic("7")
	mustPush(t, ch, topic, `{"conversationId":"7","senderId":"u2","type":"JOIN"}`)
	mustPush(t, ch, topic, `{not json`)
	mustPush(t, ch, topic, `{"conversationId":"7","type":"CHAT","content":"no sender"}`)
	mustPush(t, ch, topic, `{"conversationId":"7","senderId":"u2","senderName":"Bob","type":"CHAT","content":"hi","id":42,"sentAt":"2026-03-01T12:00:00Z"}`)

	evt := nextEvent(t, events)
	if evt.Kind != transport.KindPushMessage || evt.Conversation != "7" {
		t.Fatalf("event = %+v", evt)
	}
	m, ok := evt.Payload.(store.Message)
	if !ok {
		t.Fatalf("payload type %T", evt.Payload)
	}
	if m.ID != "42" || m.Content != "hi" || m.SenderID != "u2" || m.ConversationID != "7" {
		t.Errorf("message = %+v", m)
	}
	if want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC); !m.SentAt.Equal(want) {
		t.Errorf("SentAt = %v, want %v", m.SentAt, want)
	}

	select {
	case extra := <-events:
		t.Errorf("unexpected event %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMissingTimestampUsesReceiptTime(t *testing.T) {
	b := bus.New()
	events, unsub := b.SubscribeConversation("7", 16, "push.")
	defer unsub()

	d := transporttest.NewDialer(0)
	_, states := connect(t, d, b)
	ch := d.Next(t)
	waitState(t, states, status.Connected)

	before := time.Now()
	mustPush(t, ch, transport.ConversationTopic("7"), `{"conversationId":"7","senderId":"u2","type":"CHAT","content":"hi"}`)
	m := nextEvent(t, events).Payload.(store.Message)
	if m.SentAt.Before(before) || m.SentAt.After(time.Now()) {
		t.Errorf("SentAt = %v, want receipt time", m.SentAt)
	}
	if !m.Provisional() {
		t.Error("message without id should be provisional")
	}
}

func TestPeerDeletedNotice(t *testing.T) {
	b := bus.New()
	events, unsub := b.SubscribeConversation("7", 16, "push.")
	defer unsub()

	d := transporttest.NewDialer(0)
	_, states := connect(t, d, b)
	ch := d.Next(t)
	waitState(t, states, status.Connected)

	errs := transport.ErrorTopic("u1")
	mustPush(t, ch, errs, `{"conversationId":"9","code":"CONVERSATION_DELETED","message":"other"}`)
	mustPush(t, ch, errs, `{"conversationId":"7","code":"RATE_LIMITED","message":"slow down"}`)
	mustPush(t, ch, errs, `{"conversationId":"7","code":"CONVERSATION_DELETED","message":"deleted by performer"}`)

	evt := nextEvent(t, events)
	if evt.Kind != transport.KindPeerDeleted {
		t.Fatalf("kind = %s", evt.Kind)
	}
	if reason, _ := evt.Payload.(string); reason != "deleted by performer" {
		t.Errorf("reason = %v", evt.Payload)
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	d := transporttest.NewDialer(0)
	_, states := connect(t, d, bus.New())
	first := d.Next(t)
	waitState(t, states, status.Connected)

	first.Drop()
	waitState(t, states, status.Reconnecting)
	second := d.Next(t)
	waitState(t, states, status.Connected)

	if !second.Subscribed(transport.ConversationTopic("7")) || !second.Subscribed(transport.ErrorTopic("u1")) {
		t.Error("reconnect did not resubscribe")
	}
	frames := second.Sent()
	if len(frames) != 1 || frames[0].Destination != transport.JoinDestination {
		t.Errorf("reconnect frames = %v, want a fresh join", frames)
	}
}

func TestFailedHandshakeRetriesWithoutBackoff(t *testing.T) {
	d := transporttest.NewDialer(2)
	c := transport.NewClient(d, alice, nil, nil, transport.Config{ReconnectDelay: 10 * time.Millisecond})
	states, err := c.Connect(context.Background(), "7", "tok")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	var got []status.State
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case s := <-states:
			got = append(got, s)
		case <-timeout:
			t.Fatalf("states so far %v", got)
		}
	}
	want := []status.State{status.Connecting, status.Reconnecting, status.Connected}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
	if dials := d.Dials(); dials != 3 {
		t.Errorf("dials = %d, want 3", dials)
	}
}

func TestSendRequiresConnection(t *testing.T) {
	d := transporttest.NewDialer(0)
	c := transport.NewClient(d, alice, nil, nil, transport.Config{ReconnectDelay: 10 * time.Millisecond})
	ctx := context.Background()

	if err := c.Send(ctx, "early"); !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("Send before connect = %v, want transport.ErrNotConnected", err)
	}

	states, err := c.Connect(ctx, "7", "tok")
	if err != nil {
		t.Fatal(err)
	}
	ch := d.Next(t)
	waitState(t, states, status.Connected)

	if err := c.Send(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	frames := ch.Sent()
	last := frames[len(frames)-1]
	if last.Destination != transport.SendDestination {
		t.Fatalf("dest = %s", last.Destination)
	}
	var env wire.Envelope
	if err := json.Unmarshal(last.Body, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != wire.TypeChat || env.Content != "hello" || env.SenderName != "Alice" || env.ID != "" {
		t.Errorf("envelope = %+v", env)
	}

	c.Disconnect()
	if err := c.Send(ctx, "late"); !errors.Is(err, transport.ErrNotConnected) {
		t.Errorf("Send after disconnect = %v, want transport.ErrNotConnected", err)
	}
}

func TestDisconnectClosesStateStream(t *testing.T) {
	d := transporttest.NewDialer(0)
	c, states := connect(t, d, bus.New())
	ch := d.Next(t)
	waitState(t, states, status.Connected)

	c.Disconnect()
	c.Disconnect()

	var last status.State
	for s := range states {
		last = s
	}
	if last != status.Disconnected {
		t.Errorf("last state = %s, want DISCONNECTED", last)
	}
	if c.State() != status.Disconnected {
		t.Errorf("State() = %s", c.State())
	}
	if !ch.Closed() {
		t.Error("channel not released")
	}
}
