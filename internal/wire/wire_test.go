package wire

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIDAcceptsStringNumberAndNull(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{`{"id":"42"}`, "42"},
		{`{"id":42}`, "42"},
		{`{"id":null}`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var m Message
			if err := json.Unmarshal([]byte(tt.in), &m); err != nil {
				t.Fatal(err)
			}
			if m.ID != tt.want {
				t.Errorf("ID = %q, want %q", m.ID, tt.want)
			}
		})
	}
}

func TestIDRejectsObjects(t *testing.T) {
	var m Message
	if err := json.Unmarshal([]byte(`{"id":{"x":1}}`), &m); err == nil {
		t.Error("expected error for object id")
	}
}

func TestEnvelopeToStoreFallsBackToReceivedTime(t *testing.T) {
	received := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := Envelope{ConversationID: "7", SenderID: "u1", Type: TypeChat, Content: "hi"}

	m := e.ToStore(received)
	if !m.SentAt.Equal(received) {
		t.Errorf("SentAt = %v, want %v", m.SentAt, received)
	}
	if !m.Provisional() {
		t.Error("envelope without id should convert to a provisional message")
	}
}

func TestEnvelopeValidate(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		ok   bool
	}{
		{"complete", Envelope{ConversationID: "7", SenderID: "u1", Type: TypeChat}, true},
		{"no conversation", Envelope{SenderID: "u1", Type: TypeChat}, false},
		{"no sender", Envelope{ConversationID: "7", Type: TypeChat}, false},
		{"no type", Envelope{ConversationID: "7", SenderID: "u1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.env.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestSummaryClampsNegativeUnread(t *testing.T) {
	s := Summary{ID: "7", UnreadCount: -3}
	if got := s.ToStore().UnreadCount; got != 0 {
		t.Errorf("UnreadCount = %d, want 0", got)
	}
}
