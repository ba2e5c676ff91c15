package bus

import "time"

// Event kinds published by the messaging session. Subscribers filter by
// namespace prefix, e.g. "session." matches every session event.
const (
	KindStatusChanged = "session.status_changed"
	KindMessage       = "session.message"
	KindPresence      = "session.presence"
	KindFailed        = "session.failed"
	KindHistoryLoaded = "history.loaded"
)

// Event is one domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
