package store

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	result, err := db.Migrate()
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if result.Changed {
		t.Error("second Migrate() reported changes")
	}
}

func TestUpsertMessageIdempotent(t *testing.T) {
	db := openTestDB(t)

	m := &Message{
		ConversationID: "7",
		ServerID:       "42",
		SenderID:       3,
		SenderName:     "ana",
		Body:           "hello",
		CreatedAt:      1000,
	}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatalf("UpsertMessage() error = %v", err)
	}
	m.SenderName = "ana maria"
	if err := db.UpsertMessage(m); err != nil {
		t.Fatalf("UpsertMessage() second error = %v", err)
	}

	msgs, err := db.ListMessages("7", 0, 10)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].SenderName != "ana maria" {
		t.Errorf("SenderName = %q, want updated value", msgs[0].SenderName)
	}
}

func TestListMessagesKeyset(t *testing.T) {
	db := openTestDB(t)

	for i := 1; i <= 5; i++ {
		err := db.UpsertMessage(&Message{
			ConversationID: "7",
			ServerID:       string(rune('a' + i)),
			Body:           "m",
			CreatedAt:      int64(i * 100),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := db.ListMessages("7", 400, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].CreatedAt != 300 || msgs[1].CreatedAt != 200 {
		t.Errorf("timestamps = %d, %d; want 300, 200", msgs[0].CreatedAt, msgs[1].CreatedAt)
	}
}

func TestListMessagesOtherConversation(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertMessage(&Message{ConversationID: "7", ServerID: "1", Body: "x", CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	msgs, err := db.ListMessages("8", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages for other conversation, want 0", len(msgs))
	}
}
