// Package sync runs the pull side of conversation synchronization: a poller
// that refetches a conversation's full message list on a fixed interval.
package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/zap"
)

// Bus event kinds.
const (
	KindPollCompleted = "poll.completed"
	KindPollFailed    = "poll.failed"
)

// DefaultInterval is used when Start is given a non-positive interval.
const DefaultInterval = 5 * time.Second

// ErrRunning is returned by Start on a poller that was already started.
var ErrRunning = errors.New("poller already running")

// Fetcher returns a conversation's full, ordered message list.
type Fetcher interface {
	FetchMessages(ctx context.Context, conversationID string) ([]store.Message, error)
}

// Poller periodically fetches one conversation. Every fetch runs in its own
// goroutine and is never cancelled by a later one; results are published as
// they resolve and the consumer merges them idempotently.
//
// KindPollCompleted carries the []store.Message batch, KindPollFailed the error.
type Poller struct {
	fetcher Fetcher
	bus     *bus.Bus
	logger  *zap.Logger

	mu      gosync.Mutex
	cancel  context.CancelFunc
	trigger chan struct{}
	wg      gosync.WaitGroup
}

// NewPoller creates an idle poller.
func NewPoller(f Fetcher, b *bus.Bus, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{fetcher: f, bus: b, logger: logger}
}

// Start fetches immediately and then once per interval until Stop.
func (p *Poller) Start(ctx context.Context, conversationID string, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrRunning
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.trigger = make(chan struct{}, 1)

	p.wg.Add(1)
	go p.loop(ctx, conversationID, interval, p.trigger)
	return nil
}

// Stop cancels the schedule and waits for the loop and in-flight fetches.
// Nothing is published once Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.trigger = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

// TriggerNow requests an extra fetch, e.g. on view refocus. Requests made
// while one is already pending collapse into it.
func (p *Poller) TriggerNow() {
	p.mu.Lock()
	trigger := p.trigger
	p.mu.Unlock()
	if trigger == nil {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) loop(ctx context.Context, conversationID string, interval time.Duration, trigger <-chan struct{}) {
	defer p.wg.Done()

	p.fetch(ctx, conversationID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.fetch(ctx, conversationID)
		case <-trigger:
			p.fetch(ctx, conversationID)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) fetch(ctx context.Context, conversationID string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		msgs, err := p.fetcher.FetchMessages(ctx, conversationID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.logger.Warn("poll failed", zap.String("conversation_id", conversationID), zap.Error(err))
			p.publish(KindPollFailed, conversationID, err)
			return
		}
		p.logger.Debug("poll completed", zap.String("conversation_id", conversationID), zap.Int("messages", len(msgs)))
		p.publish(KindPollCompleted, conversationID, msgs)
	}()
}

func (p *Poller) publish(kind, conversationID string, payload any) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(bus.Event{
		Kind:         kind,
		Conversation: conversationID,
		Timestamp:    time.Now(),
		Payload:      payload,
	})
}
