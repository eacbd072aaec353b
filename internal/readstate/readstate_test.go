package readstate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/matheus3301/chatsync/internal/cache"
	"github.com/matheus3301/chatsync/internal/store"
)

type fakeMarker struct {
	mu    sync.Mutex
	calls []string
	err   error
	// seen records the unread count the cache held when MarkRead was called.
	seen  []int
	cache *cache.Cache[[]store.ConversationSummary]
}

func (f *fakeMarker) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.cache != nil {
		list, _ := f.cache.Get(SummariesKey)
		if sum, ok := store.FindSummary(list, id); ok {
			f.seen = append(f.seen, sum.UnreadCount)
		}
	}
	return f.err
}

type fakeServer struct {
	mu     sync.Mutex
	unread map[string]int
	loads  int
}

func (s *fakeServer) load(context.Context) ([]store.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	var out []store.ConversationSummary
	for id, n := range s.unread {
		out = append(out, store.ConversationSummary{ConversationID: id, UnreadCount: n})
	}
	return out, nil
}

func unreadOf(t *testing.T, c *cache.Cache[[]store.ConversationSummary], id string) int {
	t.Helper()
	list, ok := c.Get(SummariesKey)
	if !ok {
		t.Fatal("summaries not cached")
	}
	sum, ok := store.FindSummary(list, id)
	if !ok {
		t.Fatalf("conversation %s not in summaries", id)
	}
	return sum.UnreadCount
}

func setup(t *testing.T, unread map[string]int) (*Synchronizer, *fakeMarker, *fakeServer, *cache.Cache[[]store.ConversationSummary]) {
	t.Helper()
	srv := &fakeServer{unread: unread}
	c := cache.New[[]store.ConversationSummary](nil, nil)
	c.Register(SummariesKey, srv.load)
	if err := c.Invalidate(context.Background(), SummariesKey); err != nil {
		t.Fatal(err)
	}
	m := &fakeMarker{cache: c}
	return New(m, c, nil), m, srv, c
}

func TestOpenZeroesBeforeNetworkCall(t *testing.T) {
	s, m, srv, c := setup(t, map[string]int{"7": 5, "8": 2})
	srv.unread["7"] = 0 // what the server reports once the marker moved

	if err := s.OnConversationOpened(context.Background(), "7"); err != nil {
		t.Fatal(err)
	}
	if len(m.seen) != 1 || m.seen[0] != 0 {
		t.Errorf("unread at MarkRead time = %v, want [0]", m.seen)
	}
	if len(m.calls) != 1 || m.calls[0] != "7" {
		t.Errorf("MarkRead calls = %v", m.calls)
	}
	if srv.loads != 2 {
		t.Errorf("loads = %d, want 2 (initial + refresh)", srv.loads)
	}
	if got := unreadOf(t, c, "7"); got != 0 {
		t.Errorf("unread(7) = %d, want 0", got)
	}
	if got := unreadOf(t, c, "8"); got != 2 {
		t.Errorf("unread(8) = %d, want 2 (untouched)", got)
	}
}

func TestMarkReadFailureStillRefreshes(t *testing.T) {
	s, m, srv, c := setup(t, map[string]int{"7": 5})
	m.err = errors.New("boom")

	err := s.OnConversationOpened(context.Background(), "7")
	if err == nil || !errors.Is(err, m.err) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}
	if len(m.seen) != 1 || m.seen[0] != 0 {
		t.Errorf("unread at MarkRead time = %v, want [0]", m.seen)
	}
	if srv.loads != 2 {
		t.Errorf("loads = %d, want a refresh after the failed mark", srv.loads)
	}
	// The server never saw the mark, so its count supersedes the local zero.
	if got := unreadOf(t, c, "7"); got != 5 {
		t.Errorf("unread(7) = %d, want server count 5", got)
	}
}

func TestZeroIsLocalOnly(t *testing.T) {
	s, m, srv, c := setup(t, map[string]int{"7": 5, "8": 2})

	s.Zero("7")
	if got := unreadOf(t, c, "7"); got != 0 {
		t.Errorf("unread(7) = %d, want 0", got)
	}
	if got := unreadOf(t, c, "8"); got != 2 {
		t.Errorf("unread(8) = %d, want 2", got)
	}
	if len(m.calls) != 0 || srv.loads != 1 {
		t.Errorf("network touched: marks=%d loads=%d", len(m.calls), srv.loads)
	}
}

func TestPollCompletedReassertsZero(t *testing.T) {
	s, _, srv, c := setup(t, map[string]int{"7": 0})

	// A stale summaries refetch lands with the old count.
	srv.unread["7"] = 3
	if err := c.Invalidate(context.Background(), SummariesKey); err != nil {
		t.Fatal(err)
	}
	srv.unread["7"] = 0

	if err := s.OnPollCompleted(context.Background(), "7"); err != nil {
		t.Fatal(err)
	}
	if got := unreadOf(t, c, "7"); got != 0 {
		t.Errorf("unread(7) = %d, want 0", got)
	}
}

func TestNeverIncrementsLocally(t *testing.T) {
	s, _, srv, c := setup(t, map[string]int{"7": 0})
	srv.unread["7"] = 0

	for iter := 0; iter < 3; iter++ {
		if err := s.OnPollCompleted(context.Background(), "7"); err != nil {
			t.Fatal(err)
		}
		if got := unreadOf(t, c, "7"); got != 0 {
			t.Fatalf("unread(7) = %d, want 0", got)
		}
	}
}

func TestNothingCachedYet(t *testing.T) {
	c := cache.New[[]store.ConversationSummary](nil, nil)
	srv := &fakeServer{unread: map[string]int{"7": 0}}
	c.Register(SummariesKey, srv.load)
	s := New(&fakeMarker{}, c, nil)

	if err := s.OnConversationOpened(context.Background(), "7"); err != nil {
		t.Fatal(err)
	}
	if got := unreadOf(t, c, "7"); got != 0 {
		t.Errorf("unread(7) = %d, want 0", got)
	}
}
