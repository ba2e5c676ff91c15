package session

import (
	"time"

	"github.com/ltakahashi/campuschat/internal/bus"
	"github.com/ltakahashi/campuschat/internal/wire"
	"go.uber.org/zap"
)

// Presence is the payload of a session.presence event.
type Presence struct {
	RemoteIsTyping bool
}

// InputActivity records one local keystroke-equivalent. Bursts of input
// are coalesced: the debounce timer restarts on every call, and a
// single typing-start frame goes out when it fires. A stop frame
// follows after the stop delay unless further input re-arms it, so the
// remote indicator never sticks.
func (s *Session) InputActivity() {
	s.do(func() {
		epoch := s.epoch
		s.cancelTimer(&s.debounceT)
		s.debounceT = time.AfterFunc(s.cfg.Timers.TypingDebounce, func() {
			s.post(epoch, s.typingStart)
		})
	})
}

// typingStart fires when the debounce window closes.
func (s *Session) typingStart() {
	s.debounceT = nil
	if s.Status().Phase != Connected || s.conn == nil {
		return
	}

	frame, err := wire.EncodeTyping(true, s.cfg.ConversationID)
	if err != nil {
		return
	}
	if err := s.conn.Send(frame); err != nil {
		s.logger.Debug("typing frame not sent", zap.Error(err))
		return
	}

	epoch := s.epoch
	s.cancelTimer(&s.typingStopT)
	s.typingStopT = time.AfterFunc(s.cfg.Timers.TypingStopDelay, func() {
		s.post(epoch, s.typingStop)
	})
}

// typingStop fires when the user went quiet without sending.
func (s *Session) typingStop() {
	s.typingStopT = nil
	if s.Status().Phase != Connected || s.conn == nil {
		return
	}
	frame, err := wire.EncodeTyping(false, s.cfg.ConversationID)
	if err != nil {
		return
	}
	if err := s.conn.Send(frame); err != nil {
		s.logger.Debug("stop-typing frame not sent", zap.Error(err))
	}
}

// remotePresence handles an inbound typing frame. The backend fans
// presence out to the whole group including the sender, so the local
// participant's own echo is ignored.
func (s *Session) remotePresence(in wire.Inbound) {
	if s.cfg.LocalUser.ID != 0 && in.TypingUserID == s.cfg.LocalUser.ID {
		return
	}

	if !in.Typing {
		s.setRemoteTyping(false)
		return
	}

	s.setRemoteTyping(true)

	// Fallback: if the sender disappears without a stop frame, the
	// indicator clears itself.
	epoch := s.epoch
	s.cancelTimer(&s.remoteExpireT)
	s.remoteExpireT = time.AfterFunc(s.cfg.Timers.RemoteTypingExpiry, func() {
		s.post(epoch, func() {
			s.remoteExpireT = nil
			s.setRemoteTyping(false)
		})
	})
}

// setRemoteTyping updates the indicator, notifying only on change. A
// clear also disarms the expiry timer.
func (s *Session) setRemoteTyping(v bool) {
	if !v {
		s.cancelTimer(&s.remoteExpireT)
	}

	s.mu.Lock()
	changed := s.remoteTyping != v
	s.remoteTyping = v
	s.mu.Unlock()

	if changed {
		s.bus.Publish(bus.Event{
			Kind:      bus.KindPresence,
			Timestamp: time.Now(),
			Payload:   Presence{RemoteIsTyping: v},
		})
	}
}
