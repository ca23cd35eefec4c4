package common

import (
	"testing"
	"time"
)

func TestSafeGoRunsFunction(t *testing.T) {
	done := make(chan struct{})
	SafeGo(GetLogger(), "worker", func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
}

func TestSafeGoAbsorbsPanic(t *testing.T) {
	done := make(chan struct{})
	SafeGo(GetLogger(), "panicking-worker", func() {
		defer close(done)
		panic("boom")
	})

	// A missing recover would crash the test binary here
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
}

func TestSafeGoWithoutLogger(t *testing.T) {
	done := make(chan struct{})
	SafeGo(nil, "loggerless", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
}
