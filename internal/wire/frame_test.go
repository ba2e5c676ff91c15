package wire

import (
	"encoding/json"
	"testing"
)

func TestEncodeChat(t *testing.T) {
	data, err := EncodeChat("hello", "7")
	if err != nil {
		t.Fatalf("EncodeChat() error = %v", err)
	}
	if got, want := string(data), `{"content":"hello","group_id":7}`; got != want {
		t.Errorf("EncodeChat() = %s, want %s", got, want)
	}
}

func TestEncodeChatNonNumericGroup(t *testing.T) {
	data, err := EncodeChat("hi", "study-group")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), `{"content":"hi","group_id":"study-group"}`; got != want {
		t.Errorf("EncodeChat() = %s, want %s", got, want)
	}
}

func TestEncodeTyping(t *testing.T) {
	data, err := EncodeTyping(true, "7")
	if err != nil {
		t.Fatalf("EncodeTyping() error = %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["type"] != "typing" || m["typing"] != true {
		t.Errorf("frame = %v", m)
	}
}

func TestDecodeTyping(t *testing.T) {
	in, err := Decode([]byte(`{"type":"typing","typing":true,"user_id":12}`), "7", 3)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if in.Kind != KindTyping {
		t.Fatalf("Kind = %v, want KindTyping", in.Kind)
	}
	if !in.Typing || in.TypingUserID != 12 {
		t.Errorf("typing=%v user=%d", in.Typing, in.TypingUserID)
	}
}

func TestDecodeChat(t *testing.T) {
	raw := `{
		"id": 42,
		"sender": {"id": 9, "username": "ana", "first_name": "Ana", "last_name": "Souza"},
		"content": "see you at the library",
		"created_at": "2026-08-28T10:30:00.123456Z",
		"read": false
	}`
	in, err := Decode([]byte(raw), "7", 9)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if in.Kind != KindChat {
		t.Fatalf("Kind = %v, want KindChat", in.Kind)
	}
	m := in.Message
	if m.ServerID != "42" {
		t.Errorf("ServerID = %q, want 42", m.ServerID)
	}
	if m.SenderName != "Ana Souza" {
		t.Errorf("SenderName = %q, want Ana Souza", m.SenderName)
	}
	if !m.FromMe {
		t.Error("FromMe = false, want true for local user id 9")
	}
	if m.ConversationID != "7" {
		t.Errorf("ConversationID = %q", m.ConversationID)
	}
	if m.CreatedAt == 0 {
		t.Error("CreatedAt not parsed")
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{not json`},
		{"empty object", `{}`},
		{"blank content", `{"content":"   "}`},
		{"wrong types", `{"content":123}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.raw), "7", 0); err == nil {
				t.Error("Decode() expected error")
			}
		})
	}
}

func TestSenderDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		sender Sender
		want   string
	}{
		{"full name", Sender{FirstName: "Ana", LastName: "Souza", Username: "ana"}, "Ana Souza"},
		{"first only", Sender{FirstName: "Ana", Username: "ana"}, "Ana"},
		{"username fallback", Sender{Username: "ana"}, "ana"},
		{"blank names", Sender{FirstName: " ", LastName: " ", Username: "ana"}, "ana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sender.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}
