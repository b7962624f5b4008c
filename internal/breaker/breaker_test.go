package breaker

import (
	"errors"
	"testing"
	"time"
)

var errFail = errors.New("fail")

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("test", 3, 100*time.Millisecond)
	if b.CurrentState() != StateClosed {
		t.Errorf("expected Closed, got %v", b.CurrentState())
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b := New("test", 3, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errFail }); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}
	if b.CurrentState() != StateOpen {
		t.Errorf("expected Open after 3 failures, got %v", b.CurrentState())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) || called {
		t.Errorf("expected ErrOpen without calling fn, got %v called=%v", err, called)
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	var transitions []State
	b := New("test", 2, 50*time.Millisecond)
	b.OnStateChange = func(_, to State) { transitions = append(transitions, to) }

	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return errFail })
	}
	time.Sleep(60 * time.Millisecond)

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if b.CurrentState() != StateClosed {
		t.Errorf("expected Closed after successful probe, got %v", b.CurrentState())
	}
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %v, got %v", i, want[i], transitions[i])
		}
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New("test", 2, 50*time.Millisecond)
	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return errFail })
	}
	time.Sleep(60 * time.Millisecond)
	_ = b.Execute(func() error { return errFail })

	if b.CurrentState() != StateOpen {
		t.Errorf("expected Open after failed probe, got %v", b.CurrentState())
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("test", 3, 100*time.Millisecond)
	_ = b.Execute(func() error { return errFail })
	_ = b.Execute(func() error { return errFail })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return errFail })
	_ = b.Execute(func() error { return errFail })

	if b.CurrentState() != StateClosed {
		t.Errorf("expected Closed (counter should have reset), got %v", b.CurrentState())
	}
}

func TestBreaker_IsFailureFilter(t *testing.T) {
	errMissing := errors.New("missing")
	b := New("test", 1, time.Minute)
	b.IsFailure = func(err error) bool { return !errors.Is(err, errMissing) }

	if err := b.Execute(func() error { return errMissing }); err != errMissing {
		t.Fatalf("expected errMissing passed through, got %v", err)
	}
	if b.CurrentState() != StateClosed {
		t.Errorf("ignored error must not trip, got %v", b.CurrentState())
	}
}

func TestCall_ReturnsValue(t *testing.T) {
	b := New("test", 1, time.Minute)
	v, err := Call(b, func() (float64, error) { return 42.5, nil })
	if err != nil || v != 42.5 {
		t.Fatalf("expected 42.5, got %v err=%v", v, err)
	}
	_, _ = Call(b, func() (float64, error) { return 0, errFail })
	if _, err := Call(b, func() (float64, error) { return 1, nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
}
