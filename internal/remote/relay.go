package remote

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/transport"
	"github.com/matheus3301/chatsync/internal/wire"
	"go.uber.org/zap"
)

// Relay is the broker's application side: it consumes what clients send to
// /app/chat.send and /app/chat.join, persists chat messages with server
// ids and timestamps, and publishes them to the conversation topics.
type Relay struct {
	db     *DB
	conn   *stomp.Conn
	logger *zap.Logger
	done   chan struct{}
}

// StartRelay connects an in-process STOMP client to b and starts consuming.
func StartRelay(b *Broker, db *DB, logger *zap.Logger) (*Relay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, side := net.Pipe()
	if err := b.Attach(side); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("attach relay: %w", err)
	}
	conn, err := stomp.Connect(client,
		stomp.ConnOpt.Host("chatstubd"),
		stomp.ConnOpt.HeartBeat(0, 0))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("relay connect: %w", err)
	}

	r := &Relay{db: db, conn: conn, logger: logger, done: make(chan struct{})}
	sends, err := conn.Subscribe(transport.SendDestination, stomp.AckAuto)
	if err != nil {
		_ = conn.MustDisconnect()
		return nil, fmt.Errorf("subscribe %s: %w", transport.SendDestination, err)
	}
	joins, err := conn.Subscribe(transport.JoinDestination, stomp.AckAuto)
	if err != nil {
		_ = conn.MustDisconnect()
		return nil, fmt.Errorf("subscribe %s: %w", transport.JoinDestination, err)
	}

	go r.consume(sends, joins)
	return r, nil
}

// Close disconnects the relay and waits for its consumer.
func (r *Relay) Close() error {
	err := r.conn.Disconnect()
	if err != nil {
		_ = r.conn.MustDisconnect()
	}
	<-r.done
	return err
}

func (r *Relay) consume(sends, joins *stomp.Subscription) {
	defer close(r.done)
	for {
		var (
			msg *stomp.Message
			ok  bool
		)
		select {
		case msg, ok = <-sends.C:
		case msg, ok = <-joins.C:
		}
		if !ok || msg.Err != nil {
			return
		}
		var env wire.Envelope
		if err := json.Unmarshal(msg.Body, &env); err != nil {
			r.logger.Warn("relay: bad envelope", zap.String("destination", msg.Destination), zap.Error(err))
			continue
		}
		if err := env.Validate(); err != nil {
			r.logger.Warn("relay: bad envelope", zap.String("destination", msg.Destination), zap.Error(err))
			continue
		}
		if err := r.handle(msg.Destination, env); err != nil {
			r.logger.Warn("relay: dropping envelope",
				zap.String("destination", msg.Destination),
				zap.String("conversation_id", string(env.ConversationID)),
				zap.Error(err))
		}
	}
}

func (r *Relay) handle(dest string, env wire.Envelope) error {
	id, err := strconv.ParseInt(string(env.ConversationID), 10, 64)
	if err != nil {
		return fmt.Errorf("conversation id: %w", err)
	}
	sender := string(env.SenderID)
	c, err := r.db.ConversationFor(id, sender)
	if err != nil {
		return err
	}

	switch {
	case dest == transport.JoinDestination || env.Type == wire.TypeJoin || env.Type == wire.TypeLeave:
		env.ID = wire.ID(uuid.NewString())
		return r.publish(transport.ConversationTopic(string(env.ConversationID)), env)

	case env.Type != wire.TypeChat:
		return fmt.Errorf("unsupported type %q", env.Type)

	case c.Deleted():
		// The sender gets told; nothing is stored or fanned out.
		return r.NotifyDeleted(id, sender, "conversation was deleted")
	}

	if env.SenderName == "" {
		if u, err := r.db.UserByID(sender); err == nil {
			env.SenderName = u.DisplayName
		}
	}
	m := &Message{
		ConversationID: id,
		SenderID:       sender,
		SenderName:     env.SenderName,
		Content:        env.Content,
		SentAt:         time.Now().UnixMilli(),
	}
	if err := r.db.InsertMessage(m); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	sentAt := time.UnixMilli(m.SentAt).UTC()
	env.ID = wire.ID(strconv.FormatInt(m.ID, 10))
	env.SentAt = &sentAt
	return r.publish(transport.ConversationTopic(string(env.ConversationID)), env)
}

// NotifyDeleted tells userID, on their error topic, that the conversation
// can no longer be written to.
func (r *Relay) NotifyDeleted(conversationID int64, userID, reason string) error {
	return r.publish(transport.ErrorTopic(userID), wire.ErrorNotice{
		ConversationID: wire.ID(strconv.FormatInt(conversationID, 10)),
		Code:           wire.CodeConversationDeleted,
		Message:        reason,
	})
}

func (r *Relay) publish(dest string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.conn.Send(dest, "application/json", body); err != nil {
		return fmt.Errorf("publish %s: %w", dest, err)
	}
	return nil
}
