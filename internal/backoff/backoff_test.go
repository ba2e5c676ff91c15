package backoff

import (
	"testing"
	"time"
)

func TestDelayGrowth(t *testing.T) {
	p := Default()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped
		{5, 10 * time.Second},
		{30, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayMonotonic(t *testing.T) {
	p := Default()
	for n := 0; n < 20; n++ {
		if p.Delay(n) > p.Delay(n+1) {
			t.Errorf("Delay(%d)=%v > Delay(%d)=%v", n, p.Delay(n), n+1, p.Delay(n+1))
		}
		if p.Delay(n) > p.Max {
			t.Errorf("Delay(%d)=%v exceeds cap %v", n, p.Delay(n), p.Max)
		}
	}
}

func TestDelayNegativeAttempt(t *testing.T) {
	p := Default()
	if got := p.Delay(-3); got != p.Base {
		t.Errorf("Delay(-3) = %v, want %v", got, p.Base)
	}
}

func TestExhausted(t *testing.T) {
	p := Default()
	if p.Exhausted(4) {
		t.Error("Exhausted(4) = true, want false")
	}
	if !p.Exhausted(5) {
		t.Error("Exhausted(5) = false, want true")
	}
}

func TestDelayHugeAttemptNoOverflow(t *testing.T) {
	p := Default()
	if got := p.Delay(500); got != p.Max {
		t.Errorf("Delay(500) = %v, want %v", got, p.Max)
	}
}
