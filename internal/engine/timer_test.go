package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCountdownFires(t *testing.T) {
	c := NewCountdown()
	fired := make(chan struct{})
	c.Start(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("countdown never fired")
	}
}

func TestCountdownCancel(t *testing.T) {
	c := NewCountdown()
	var fired atomic.Bool
	c.Start(20*time.Millisecond, func() { fired.Store(true) })
	c.Cancel()
	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Fatalf("cancelled countdown fired")
	}
}

func TestCountdownRestartSuppressesPrevious(t *testing.T) {
	c := NewCountdown()
	var first atomic.Bool
	second := make(chan struct{})
	c.Start(20*time.Millisecond, func() { first.Store(true) })
	c.Start(40*time.Millisecond, func() { close(second) })
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatalf("restarted countdown never fired")
	}
	if first.Load() {
		t.Fatalf("superseded countdown fired")
	}
}

func TestCountdownCancelWithoutStart(t *testing.T) {
	NewCountdown().Cancel()
}
