// Package stream accumulates the ordered message log of one session.
package stream

import (
	"sync"
	"time"

	"github.com/ltakahashi/campuschat/internal/store"
)

// Log is an append-only message sequence in arrival order. Snapshot can
// always be re-read from the beginning, so renderers may restart at any
// time. Records are never edited; a pending local send is superseded by
// the record built from its server echo.
type Log struct {
	mu   sync.RWMutex
	msgs []store.Message
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a message at the end of the sequence.
func (l *Log) Append(m store.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, m)
}

// Resolve matches a server echo of a local send against the oldest
// pending record with the same body and swaps the echo in at that
// position. Returns false when nothing matched; the caller appends the
// echo as an ordinary message instead.
func (l *Log) Resolve(echo store.Message) bool {
	if !echo.FromMe {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.msgs {
		if l.msgs[i].Pending && l.msgs[i].Body == echo.Body {
			echo.LocalID = l.msgs[i].LocalID
			l.msgs[i] = echo
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the full sequence in arrival order.
func (l *Log) Snapshot() []store.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]store.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// DayGroup is one calendar day of messages, for display grouping.
type DayGroup struct {
	Date     time.Time
	Messages []store.Message
}

// GroupByDay derives a by-date view of msgs without reordering them.
// Days appear in first-arrival order.
func GroupByDay(msgs []store.Message, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	var groups []DayGroup
	index := make(map[string]int)
	for _, m := range msgs {
		day := time.UnixMilli(m.CreatedAt).In(loc)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		key := day.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{Date: day})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}
