// Package wire encodes and decodes the JSON text frames exchanged with
// the messaging backend.
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ltakahashi/campuschat/internal/store"
)

// Kind classifies an inbound frame.
type Kind int

const (
	KindUnknown Kind = iota
	KindTyping
	KindChat
)

// groupRef marshals the conversation id the way the backend expects:
// as a JSON number when it is numeric, as a string otherwise.
type groupRef string

func (g groupRef) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(g), 10, 64); err == nil {
		return []byte(g), nil
	}
	return json.Marshal(string(g))
}

type chatSend struct {
	Content string   `json:"content"`
	GroupID groupRef `json:"group_id"`
}

type typingSend struct {
	Type    string   `json:"type"`
	Typing  bool     `json:"typing"`
	GroupID groupRef `json:"group_id"`
}

// EncodeChat builds an outbound chat frame.
func EncodeChat(content, conversationID string) ([]byte, error) {
	return json.Marshal(chatSend{Content: content, GroupID: groupRef(conversationID)})
}

// EncodeTyping builds an outbound presence frame.
func EncodeTyping(typing bool, conversationID string) ([]byte, error) {
	return json.Marshal(typingSend{Type: "typing", Typing: typing, GroupID: groupRef(conversationID)})
}

// Sender is the author block on an inbound chat echo.
type Sender struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// DisplayName prefers the real name and falls back to the username.
func (s Sender) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
	if name != "" {
		return name
	}
	return s.Username
}

type inboundFrame struct {
	Type      string          `json:"type"`
	Typing    bool            `json:"typing"`
	UserID    int64           `json:"user_id"`
	ID        json.Number     `json:"id"`
	Sender    Sender          `json:"sender"`
	Content   string          `json:"content"`
	CreatedAt string          `json:"created_at"`
	Group     json.RawMessage `json:"group"`
}

// Inbound is a decoded frame.
type Inbound struct {
	Kind Kind

	// KindTyping
	Typing       bool
	TypingUserID int64

	// KindChat
	Message *store.Message
}

// Decode parses an inbound text frame. A frame with a "typing" type tag
// is presence; anything else with non-empty content is a chat message.
// Everything else, including unparsable JSON, is an error the caller
// logs and drops.
func Decode(data []byte, conversationID string, localUserID int64) (Inbound, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Inbound{}, fmt.Errorf("parse frame: %w", err)
	}

	if f.Type == "typing" {
		return Inbound{Kind: KindTyping, Typing: f.Typing, TypingUserID: f.UserID}, nil
	}

	if strings.TrimSpace(f.Content) == "" {
		return Inbound{}, fmt.Errorf("frame has no recognized shape")
	}

	return Inbound{
		Kind: KindChat,
		Message: &store.Message{
			ConversationID: conversationID,
			ServerID:       f.ID.String(),
			SenderID:       f.Sender.ID,
			SenderName:     f.Sender.DisplayName(),
			Body:           f.Content,
			FromMe:         localUserID != 0 && f.Sender.ID == localUserID,
			CreatedAt:      parseCreatedAt(f.CreatedAt),
		},
	}, nil
}

// parseCreatedAt reads the backend's ISO 8601 timestamp. A missing or
// unparsable value falls back to local arrival time; the stream orders
// by arrival anyway.
func parseCreatedAt(s string) int64 {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return time.Now().UnixMilli()
}
