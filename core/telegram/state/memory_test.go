package state

import (
	"sync"
	"testing"
)

const stateComposing State = "composing"

func TestDefaultStateIsIdle(t *testing.T) {
	m := NewMemoryManager()
	if got := m.GetState(42); got != StateIdle {
		t.Fatalf("GetState for unknown user = %q, want idle", got)
	}
	if m.HasState(42) {
		t.Fatal("unknown user should not have an active state")
	}
	if m.InProgress(42) {
		t.Fatal("unknown user should not be in progress")
	}
}

func TestSetAndClearState(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, stateComposing)
	if got := m.GetState(1); got != stateComposing {
		t.Fatalf("GetState = %q, want %q", got, stateComposing)
	}
	if !m.InProgress(1) {
		t.Fatal("expected user to be in progress")
	}

	m.ClearState(1)
	if got := m.GetState(1); got != StateIdle {
		t.Fatalf("GetState after clear = %q, want idle", got)
	}
	if m.HasState(1) {
		t.Fatal("cleared user should not have an active state")
	}
}

func TestSettingIdleRemovesSession(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, stateComposing)
	m.SetState(1, StateIdle)
	if m.HasState(1) {
		t.Fatal("setting idle should remove the session")
	}
}

func TestStateIsolationBetweenUsers(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, stateComposing)
	m.SetState(2, stateComposing)

	m.ClearState(1)

	if m.HasState(1) {
		t.Fatal("user 1 should be idle")
	}
	if got := m.GetState(2); got != stateComposing {
		t.Fatalf("user 2 state = %q, want %q", got, stateComposing)
	}
}

func TestConcurrentTransitions(t *testing.T) {
	m := NewMemoryManager()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.SetState(id, stateComposing)
			_ = m.GetState(id)
			m.ClearState(id)
			m.SetState(id, stateComposing)
		}(int64(i))
	}
	wg.Wait()

	for i := int64(0); i < 64; i++ {
		if got := m.GetState(i); got != stateComposing {
			t.Fatalf("user %d state = %q, want %q", i, got, stateComposing)
		}
	}
}
