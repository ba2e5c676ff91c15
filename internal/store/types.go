package store

// Message is one chat message as cached and streamed by the client.
// Records are immutable once created; a provisional local send (empty
// ServerID, Pending true) is superseded by the record built from the
// server echo, never edited in place.
type Message struct {
	ID             int64
	ConversationID string
	ServerID       string // server-assigned id; empty while pending
	LocalID        string // client-generated id for local sends
	SenderID       int64
	SenderName     string
	Body           string
	FromMe         bool
	Pending        bool
	CreatedAt      int64 // unix millis
}
