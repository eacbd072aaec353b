// Package readstate keeps the cached conversation summaries' unread counters
// consistent with what the user has actually seen.
package readstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/chatsync/internal/cache"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/zap"
)

// SummariesKey is the cache key of the conversation-summary list.
const SummariesKey = "conversations"

// Marker advances the server-side read marker for a conversation.
type Marker interface {
	MarkRead(ctx context.Context, conversationID string) error
}

// Synchronizer zeroes unread counts optimistically, confirms with the server
// and then refetches the summaries. It never raises a counter locally; only
// a refetch can do that.
type Synchronizer struct {
	marker Marker
	cache  *cache.Cache[[]store.ConversationSummary]
	logger *zap.Logger
}

// New creates a Synchronizer.
func New(marker Marker, c *cache.Cache[[]store.ConversationSummary], logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{marker: marker, cache: c, logger: logger}
}

// Zero sets the conversation's cached unread count to 0 without touching the
// network. Callers opening a conversation run it before anything else.
func (s *Synchronizer) Zero(conversationID string) {
	s.zero(conversationID)
}

// OnConversationOpened runs when the user opens a conversation view. It
// re-applies the local zero, then confirms it with the server.
func (s *Synchronizer) OnConversationOpened(ctx context.Context, conversationID string) error {
	return s.markRead(ctx, conversationID, "open")
}

// OnPollCompleted runs after each successful message fetch. The fetch itself
// already advanced the marker server-side, so this mostly re-asserts the
// zero against a summaries refetch that raced ahead of it.
func (s *Synchronizer) OnPollCompleted(ctx context.Context, conversationID string) error {
	return s.markRead(ctx, conversationID, "poll")
}

// markRead refetches the summaries whether or not MarkRead succeeded; the
// refetch is what reconciles a failed mark and carries the peer's deletion
// flags to the lifecycle tracker.
func (s *Synchronizer) markRead(ctx context.Context, conversationID, trigger string) error {
	s.zero(conversationID)

	var markErr error
	if err := s.marker.MarkRead(ctx, conversationID); err != nil {
		s.logger.Warn("mark read failed",
			zap.String("conversation_id", conversationID),
			zap.String("trigger", trigger),
			zap.Error(err))
		markErr = fmt.Errorf("mark read %s: %w", conversationID, err)
	}

	if err := s.cache.Invalidate(ctx, SummariesKey); err != nil {
		s.logger.Warn("refresh summaries failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return errors.Join(markErr, fmt.Errorf("refresh summaries: %w", err))
	}
	return markErr
}

// zero sets the conversation's cached unread count to 0. Nothing happens when
// the summaries are not cached yet or the conversation is not listed.
func (s *Synchronizer) zero(conversationID string) {
	s.cache.Patch(SummariesKey, func(list []store.ConversationSummary) []store.ConversationSummary {
		out := make([]store.ConversationSummary, len(list))
		copy(out, list)
		for i := range out {
			if out[i].ConversationID == conversationID {
				out[i].UnreadCount = 0
			}
		}
		return out
	})
}
