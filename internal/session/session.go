// Package session manages one resilient realtime messaging session: a
// single conversation, a single local participant, a single backend
// endpoint. It drives the connection through its lifecycle, reconnects
// with backoff, routes inbound frames into the message stream, and
// debounces local typing activity into presence frames.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ltakahashi/campuschat/internal/backoff"
	"github.com/ltakahashi/campuschat/internal/bus"
	"github.com/ltakahashi/campuschat/internal/creds"
	"github.com/ltakahashi/campuschat/internal/store"
	"github.com/ltakahashi/campuschat/internal/stream"
	"github.com/ltakahashi/campuschat/internal/transport"
	"github.com/ltakahashi/campuschat/internal/wire"
	"go.uber.org/zap"
)

// ErrNotConnected rejects an outbound submission while the session is
// not in the Connected phase. Nothing is buffered; the caller keeps its
// input and may retry once connected.
var ErrNotConnected = errors.New("session not connected")

// Timers tunes the typing presence debouncer.
type Timers struct {
	TypingDebounce     time.Duration
	TypingStopDelay    time.Duration
	RemoteTypingExpiry time.Duration
}

// DefaultTimers matches the web client: 300ms debounce, 3s stop, 3s
// remote expiry.
func DefaultTimers() Timers {
	return Timers{
		TypingDebounce:     300 * time.Millisecond,
		TypingStopDelay:    3 * time.Second,
		RemoteTypingExpiry: 3 * time.Second,
	}
}

// LocalUser identifies the local participant for provisional records
// and echo matching.
type LocalUser struct {
	ID          int64
	DisplayName string
}

// Cache receives acknowledged messages for local persistence. *store.DB
// satisfies it; Noop is the default.
type Cache interface {
	UpsertMessage(m *store.Message) error
}

// Noop is the default cache: it stores nothing.
type Noop struct{}

func (Noop) UpsertMessage(*store.Message) error { return nil }

// Config assembles a session's collaborators.
type Config struct {
	ConversationID string
	BaseURL        string
	Tokens         creds.TokenSource
	Dialer         transport.Dialer
	Policy         backoff.Policy
	Timers         Timers
	LocalUser      LocalUser
	Bus            *bus.Bus
	Cache          Cache
	Logger         *zap.Logger
}

// Session is one managed realtime connection for one conversation. All
// state transitions run on a single internal loop; callers observe the
// session through Status, the message log, and bus events.
type Session struct {
	cfg    Config
	bus    *bus.Bus
	log    *stream.Log
	logger *zap.Logger

	cmds chan func()
	done chan struct{}
	once sync.Once

	mu           sync.RWMutex
	status       Status
	remoteTyping bool

	// Everything below is owned by the loop goroutine.
	epoch   int
	attempt int
	conn    transport.Conn

	reconnectT    *time.Timer
	debounceT     *time.Timer
	typingStopT   *time.Timer
	remoteExpireT *time.Timer
}

// New creates a session. The internal loop starts immediately but no
// connection is attempted until Start.
func New(cfg Config) *Session {
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = backoff.Default()
	}
	if cfg.Timers == (Timers{}) {
		cfg.Timers = DefaultTimers()
	}
	if cfg.Bus == nil {
		cfg.Bus = bus.New()
	}
	if cfg.Cache == nil {
		cfg.Cache = Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Session{
		cfg:    cfg,
		bus:    cfg.Bus,
		log:    stream.NewLog(),
		logger: cfg.Logger,
		cmds:   make(chan func(), 64),
		done:   make(chan struct{}),
		status: Status{Phase: Idle},
	}
	go s.loop()
	return s
}

// Bus returns the bus carrying this session's notifications.
func (s *Session) Bus() *bus.Bus { return s.bus }

// Messages returns the session's message log.
func (s *Session) Messages() *stream.Log { return s.log }

// RemoteTyping reports whether the remote side is currently typing.
func (s *Session) RemoteTyping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remoteTyping
}

func (s *Session) loop() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.done:
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(fn func()) {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(ran) }:
	case <-s.done:
		return
	}
	select {
	case <-ran:
	case <-s.done:
	}
}

// post schedules fn on the loop; it is dropped if the session has moved
// past the epoch it was armed in. Timer callbacks and async completions
// re-enter the session only through here.
func (s *Session) post(epoch int, fn func()) {
	select {
	case s.cmds <- func() {
		if s.epoch != epoch {
			return
		}
		fn()
	}:
	case <-s.done:
	}
}

// Seed preloads history into the message log, normally before Start.
func (s *Session) Seed(msgs []store.Message) {
	s.do(func() {
		for _, m := range msgs {
			s.log.Append(m)
		}
		s.bus.Publish(bus.Event{
			Kind:      bus.KindHistoryLoaded,
			Timestamp: time.Now(),
			Payload:   len(msgs),
		})
	})
}

// Start begins connecting. Calling Start while the session is already
// connecting or connected is a no-op.
func (s *Session) Start() {
	s.do(func() {
		switch s.Status().Phase {
		case Idle, Failed:
		default:
			return
		}
		s.epoch++
		s.attempt = 0
		s.beginAttempt(0)
	})
}

// Stop tears the session down: every pending timer is cancelled, the
// connection (if any) is closed with code 1000, and the session returns
// to Idle. After Stop returns no further notifications are emitted;
// late completions of in-flight work are dropped by the epoch guard.
// Stop is idempotent.
func (s *Session) Stop() {
	s.do(func() {
		s.epoch++
		s.cancelAllTimers()
		if s.conn != nil {
			s.conn.Close(transport.CloseNormal, "client stopping")
			s.conn = nil
		}
		s.mu.Lock()
		s.remoteTyping = false
		s.mu.Unlock()
		if s.Status().Phase != Idle {
			_ = s.transition(Status{Phase: Idle})
		}
	})
}

// Close releases the session permanently. It implies Stop.
func (s *Session) Close() {
	s.Stop()
	s.once.Do(func() { close(s.done) })
}

// SendText submits locally authored text. It is rejected with
// ErrNotConnected unless the session is exactly Connected; on success a
// provisional pending record is appended to the log and the frame has
// been handed to the connection. Delivery is not acknowledged here.
func (s *Session) SendText(text string) error {
	var err error
	s.do(func() { err = s.sendText(text) })
	return err
}

func (s *Session) sendText(text string) error {
	if s.Status().Phase != Connected || s.conn == nil {
		return ErrNotConnected
	}

	// The composer is about to go quiet: retract the typing indicator
	// before the message lands. Losing this frame is harmless.
	s.cancelTimer(&s.debounceT)
	s.cancelTimer(&s.typingStopT)
	if frame, err := wire.EncodeTyping(false, s.cfg.ConversationID); err == nil {
		if err := s.conn.Send(frame); err != nil {
			s.logger.Debug("stop-typing frame not sent", zap.Error(err))
		}
	}

	frame, err := wire.EncodeChat(text, s.cfg.ConversationID)
	if err != nil {
		return err
	}
	if err := s.conn.Send(frame); err != nil {
		return err
	}

	pending := store.Message{
		ConversationID: s.cfg.ConversationID,
		LocalID:        uuid.NewString(),
		SenderID:       s.cfg.LocalUser.ID,
		SenderName:     s.cfg.LocalUser.DisplayName,
		Body:           text,
		FromMe:         true,
		Pending:        true,
		CreatedAt:      time.Now().UnixMilli(),
	}
	s.log.Append(pending)
	s.bus.Publish(bus.Event{Kind: bus.KindMessage, Timestamp: time.Now(), Payload: pending})
	return nil
}

// beginAttempt starts connection attempt n. Any previous handle is
// discarded first so at most one connection is ever live.
func (s *Session) beginAttempt(n int) {
	if s.conn != nil {
		s.conn.Close(transport.CloseNormal, "superseded by new attempt")
		s.conn = nil
	}

	token, ok := s.cfg.Tokens.Token()
	if !ok {
		// Precondition, not a network failure: go terminal without a
		// single dial.
		s.fail("no credential")
		return
	}

	if err := s.transition(Status{Phase: Connecting, Attempt: n}); err != nil {
		s.logger.Error("connect transition rejected", zap.Error(err))
		return
	}

	target := transport.Target{
		ConversationID: s.cfg.ConversationID,
		BaseURL:        s.cfg.BaseURL,
		Token:          token,
	}
	epoch := s.epoch
	go func() {
		conn, err := s.cfg.Dialer.Dial(context.Background(), target)
		discard := func() {
			if conn != nil {
				conn.Close(transport.CloseNormal, "session stopped")
			}
		}
		select {
		case s.cmds <- func() {
			if s.epoch != epoch {
				// The session was stopped or restarted while this
				// dial was in flight; the late handle must not leak.
				discard()
				return
			}
			s.dialDone(conn, err, n)
		}:
		case <-s.done:
			discard()
		}
	}()
}

func (s *Session) dialDone(conn transport.Conn, err error, n int) {
	if err != nil {
		if transport.IsPrecondition(err) {
			s.fail(err.Error())
			return
		}
		s.logger.Warn("connection attempt failed", zap.Int("attempt", n), zap.Error(err))
		s.dropped(err.Error())
		return
	}

	s.conn = conn
	epoch := s.epoch
	go func() {
		for evt := range conn.Events() {
			evt := evt
			s.post(epoch, func() { s.connEvent(conn, evt) })
		}
	}()
}

// connEvent handles one lifecycle event from the current connection.
// Events from a superseded handle are ignored.
func (s *Session) connEvent(conn transport.Conn, evt transport.Event) {
	if conn != s.conn {
		return
	}

	switch evt.Type {
	case transport.Opened:
		s.attempt = 0
		if err := s.transition(Status{Phase: Connected}); err != nil {
			s.logger.Error("connected transition rejected", zap.Error(err))
		}
	case transport.Message:
		s.inbound(evt.Data)
	case transport.ErrorOccurred:
		// Non-terminal by contract; a Closed event follows eventually.
		s.logger.Warn("connection error", zap.Error(evt.Err))
	case transport.Closed:
		s.conn = nil
		if evt.Code == transport.CloseNormal {
			// Intentional closure: no reconnection.
			if s.Status().Phase != Idle {
				_ = s.transition(Status{Phase: Idle})
			}
			return
		}
		s.logger.Warn("connection closed",
			zap.Int("code", evt.Code), zap.String("reason", evt.Reason))
		s.dropped(evt.Reason)
	}
}

// dropped records a retryable connection loss and schedules the next
// attempt, or goes terminal when the ceiling is reached.
func (s *Session) dropped(reason string) {
	s.setRemoteTyping(false)

	n := s.attempt
	if err := s.transition(Status{Phase: Disconnected, Attempt: n, Reason: reason}); err != nil {
		s.logger.Error("disconnect transition rejected", zap.Error(err))
		return
	}

	next := n + 1
	if s.cfg.Policy.Exhausted(next) {
		s.fail(reason)
		return
	}

	delay := s.cfg.Policy.Delay(n)
	epoch := s.epoch
	s.cancelTimer(&s.reconnectT)
	s.reconnectT = time.AfterFunc(delay, func() {
		s.post(epoch, func() {
			s.attempt = next
			s.beginAttempt(next)
		})
	})
}

// fail is the terminal path: no further automatic action is taken and
// the caller is told why.
func (s *Session) fail(reason string) {
	s.cancelAllTimers()
	if s.conn != nil {
		s.conn.Close(transport.CloseNormal, "session failed")
		s.conn = nil
	}
	if err := s.transition(Status{Phase: Failed, Reason: reason}); err != nil {
		s.logger.Error("failure transition rejected", zap.Error(err))
		return
	}
	s.bus.Publish(bus.Event{Kind: bus.KindFailed, Timestamp: time.Now(), Payload: reason})
}

// inbound routes one inbound frame. Malformed frames are logged and
// dropped; they never terminate the session.
func (s *Session) inbound(data []byte) {
	if s.Status().Phase != Connected {
		return
	}

	in, err := wire.Decode(data, s.cfg.ConversationID, s.cfg.LocalUser.ID)
	if err != nil {
		s.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	switch in.Kind {
	case wire.KindTyping:
		s.remotePresence(in)
	case wire.KindChat:
		s.inboundChat(in.Message)
	}
}

func (s *Session) inboundChat(m *store.Message) {
	// A message from the remote side means they are no longer typing.
	s.setRemoteTyping(false)

	if !s.log.Resolve(*m) {
		s.log.Append(*m)
	}
	s.bus.Publish(bus.Event{Kind: bus.KindMessage, Timestamp: time.Now(), Payload: *m})

	if err := s.cfg.Cache.UpsertMessage(m); err != nil {
		s.logger.Warn("cache write failed", zap.Error(err), zap.String("server_id", m.ServerID))
	}
}

func (s *Session) cancelTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (s *Session) cancelAllTimers() {
	s.cancelTimer(&s.reconnectT)
	s.cancelTimer(&s.debounceT)
	s.cancelTimer(&s.typingStopT)
	s.cancelTimer(&s.remoteExpireT)
}
