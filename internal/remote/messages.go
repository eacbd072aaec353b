package remote

import (
	"strconv"
	"time"

	"github.com/matheus3301/chatsync/internal/wire"
)

// InsertMessage persists m and sets its server id.
func (db *DB) InsertMessage(m *Message) error {
	res, err := db.Exec(`
		INSERT INTO messages (conversation_id, sender_id, sender_name, content, sent_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ConversationID, m.SenderID, m.SenderName, m.Content, m.SentAt)
	if err != nil {
		return err
	}
	m.ID, err = res.LastInsertId()
	return err
}

// ListMessages returns a conversation's messages, oldest first.
func (db *DB) ListMessages(conversationID int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, sender_id, sender_name, content, sent_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY sent_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.Content, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Wire converts the row to its JSON shape.
func (m Message) Wire() wire.Message {
	return wire.Message{
		ID:             wire.ID(strconv.FormatInt(m.ID, 10)),
		ConversationID: wire.ID(strconv.FormatInt(m.ConversationID, 10)),
		Content:        m.Content,
		SenderName:     m.SenderName,
		SenderID:       wire.ID(m.SenderID),
		SentAt:         time.UnixMilli(m.SentAt).UTC(),
	}
}
