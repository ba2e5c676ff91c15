package store

import "time"

// UpsertMessage inserts or updates a message, idempotent on
// conversation_id + server_id. Pending local sends are not cached;
// only acknowledged server records land here.
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, server_id, sender_id, sender_name, body, from_me, created_at, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, server_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			body = excluded.body`,
		m.ConversationID, m.ServerID, m.SenderID, m.SenderName, m.Body, m.FromMe, m.CreatedAt, now)
	return err
}

// ListMessages returns cached messages for a conversation using keyset
// pagination by created_at, newest first.
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, server_id, sender_id, sender_name, body, from_me, created_at
		FROM messages
		WHERE conversation_id = ? AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.ServerID, &m.SenderID, &m.SenderName, &m.Body, &m.FromMe, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
