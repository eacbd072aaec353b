package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", "tok-1", nil)
}

func TestFetchMessages(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/7/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":41,"conversationId":7,"content":"hi","senderName":"Ann","senderId":"u1","sentAt":"2026-03-01T12:00:00Z"},
			{"id":"42","content":"yo","senderName":"Bob","senderId":"u2","sentAt":"2026-03-01T12:00:05Z"}
		]`))
	})

	msgs, err := c.FetchMessages(context.Background(), "7")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != "41" || msgs[0].ConversationID != "7" || msgs[0].SenderName != "Ann" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].ConversationID != "7" {
		t.Errorf("missing conversationId should default to the requested one, got %q", msgs[1].ConversationID)
	}
	if want := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC); !msgs[1].SentAt.Equal(want) {
		t.Errorf("SentAt = %v, want %v", msgs[1].SentAt, want)
	}
}

func TestFetchConversationSummaries(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":7,"unreadCount":5,"deletedByPerformer":true,"counterpartyName":"Bob"}]`))
	})

	sums, err := c.FetchConversationSummaries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 {
		t.Fatalf("got %d summaries, want 1", len(sums))
	}
	s := sums[0]
	if s.ConversationID != "7" || s.UnreadCount != 5 || !s.DeletedByPerformer || s.CounterpartyName != "Bob" {
		t.Errorf("summary = %+v", s)
	}
}

func TestMarkRead(t *testing.T) {
	var method, path string
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.MarkRead(context.Background(), "7"); err != nil {
		t.Fatal(err)
	}
	if method != http.MethodPost || path != "/api/conversations/7/read" {
		t.Errorf("got %s %s", method, path)
	}
}

func TestStatusErrorIsCollaboratorCallError(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})

	err := c.MarkRead(context.Background(), "7")
	var cerr *CollaboratorCallError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *CollaboratorCallError", err)
	}
	if cerr.StatusCode != http.StatusInternalServerError || cerr.Op != "mark read" {
		t.Errorf("error = %+v", cerr)
	}
}

func TestMalformedBodyIsCollaboratorCallError(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := c.FetchConversationSummaries(context.Background())
	var cerr *CollaboratorCallError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *CollaboratorCallError", err)
	}
}

func TestTransportErrorIsCollaboratorCallError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, "", nil)

	_, err := c.FetchMessages(context.Background(), "7")
	var cerr *CollaboratorCallError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *CollaboratorCallError", err)
	}
	if cerr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for a transport failure", cerr.StatusCode)
	}
}
