package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ltakahashi/campuschat/internal/creds"
)

func typingFrames(t *testing.T, c *fakeConn, typing bool) int {
	t.Helper()
	n := 0
	for _, raw := range c.sentFrames() {
		var f map[string]any
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("unparsable outbound frame: %s", raw)
		}
		if f["type"] == "typing" && f["typing"] == typing {
			n++
		}
	}
	return n
}

func TestTypingBurstSendsOneStartFrame(t *testing.T) {
	d := &fakeDialer{}
	s, ch := newTestSession(t, d, creds.Static("tok"))
	s.Start()
	waitPhase(t, ch, Connected)

	// A burst well inside the debounce window.
	for i := 0; i < 10; i++ {
		s.InputActivity()
		time.Sleep(time.Millisecond)
	}

	time.Sleep(2 * fastTimers().TypingDebounce)
	if got := typingFrames(t, d.conn(0), true); got != 1 {
		t.Errorf("typing-start frames = %d, want 1", got)
	}
}

func TestTypingStopFrameAfterQuiet(t *testing.T) {
	d := &fakeDialer{}
	s, ch := newTestSession(t, d, creds.Static("tok"))
	s.Start()
	waitPhase(t, ch, Connected)

	s.InputActivity()
	time.Sleep(2*fastTimers().TypingDebounce + fastTimers().TypingStopDelay + 20*time.Millisecond)

	if got := typingFrames(t, d.conn(0), true); got != 1 {
		t.Errorf("typing-start frames = %d, want 1", got)
	}
	if got := typingFrames(t, d.conn(0), false); got != 1 {
		t.Errorf("typing-stop frames = %d, want 1", got)
	}
}

func TestTypingNotSentWhileDisconnected(t *testing.T) {
	d := &fakeDialer{failN: 100}
	s, ch := newTestSession(t, d, creds.Static("tok"))
	s.Start()
	waitPhase(t, ch, Disconnected)

	s.InputActivity()
	time.Sleep(2 * fastTimers().TypingDebounce)
	// Nothing connected, so nothing may have been sent anywhere.
	if d.dialCount() == 0 {
		t.Fatal("sanity: no dial happened")
	}
}

func TestRemoteTypingSetAndExpires(t *testing.T) {
	d := &fakeDialer{}
	s, ch := newTestSession(t, d, creds.Static("tok"))
	s.Start()
	waitPhase(t, ch, Connected)

	d.conn(0).emit(`{"type":"typing","typing":true,"user_id":3}`)
	waitLog(t, s, func() bool { return s.RemoteTyping() })

	// No follow-up: the indicator must clear itself.
	waitLog(t, s, func() bool { return !s.RemoteTyping() })
}

func TestRemoteTypingStopClearsImmediately(t *testing.T) {
	d := &fakeDialer{}
	s, ch := newTestSession(t, d, creds.Static("tok"))
	s.Start()
	waitPhase(t, ch, Connected)

	d.conn(0).emit(`{"type":"typing","typing":true,"user_id":3}`)
	waitLog(t, s, func() bool { return s.RemoteTyping() })

	d.conn(0).emit(`{"type":"typing","typing":false,"user_id":3}`)
	waitLog(t, s, func() bool { return !s.RemoteTyping() })
}

func TestChatMessageClearsRemoteTyping(t *testing.T) {
	d := &fakeDialer{}
	s, ch := newTestSession(t, d, creds.Static("tok"))
	s.Start()
	waitPhase(t, ch, Connected)

	d.conn(0).emit(`{"type":"typing","typing":true,"user_id":3}`)
	waitLog(t, s, func() bool { return s.RemoteTyping() })

	d.conn(0).emit(`{"id":5,"sender":{"id":3,"username":"bruno"},"content":"done typing"}`)
	waitLog(t, s, func() bool { return !s.RemoteTyping() && s.Messages().Len() == 1 })
}

func TestOwnTypingEchoIgnored(t *testing.T) {
	d := &fakeDialer{}
	s, ch := newTestSession(t, d, creds.Static("tok"))
	s.Start()
	waitPhase(t, ch, Connected)

	// The backend fans presence out to the sender too; user 9 is us.
	d.conn(0).emit(`{"type":"typing","typing":true,"user_id":9}`)
	time.Sleep(30 * time.Millisecond)
	if s.RemoteTyping() {
		t.Error("own typing echo set remoteIsTyping")
	}
}
