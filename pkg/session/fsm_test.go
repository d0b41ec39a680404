package session

import (
	"errors"
	"testing"
)

func TestLifecycleHappyPath(t *testing.T) {
	sm := newStateMachine()
	steps := []State{
		StateRecording, StatePaused, StateRecording, StateStopping,
		StateFinalizingTranscript, StateFinalizingSummary, StateDone, StateIdle,
	}
	for _, s := range steps {
		if err := sm.Transition(s, "test"); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
}

func TestSummaryFailureBranch(t *testing.T) {
	sm := newStateMachine()
	steps := []State{
		StateRecording, StateStopping, StateFinalizingTranscript,
		StateFinalizingSummary, StateSummaryFailed, StateDone,
	}
	for _, s := range steps {
		if err := sm.Transition(s, "test"); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
}

func TestDiscardFromStopping(t *testing.T) {
	sm := newStateMachine()
	for _, s := range []State{StateRecording, StateStopping, StateIdle} {
		if err := sm.Transition(s, "test"); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	cases := []struct {
		path []State
		to   State
	}{
		{nil, StatePaused},
		{nil, StateDone},
		{[]State{StateRecording}, StateFinalizingTranscript},
		{[]State{StateRecording, StateStopping, StateFinalizingTranscript, StateFinalizingSummary}, StateRecording},
	}
	for _, tc := range cases {
		sm := newStateMachine()
		for _, s := range tc.path {
			if err := sm.Transition(s, "setup"); err != nil {
				t.Fatalf("setup transition to %s: %v", s, err)
			}
		}
		err := sm.Transition(tc.to, "test")
		var ite *InvalidTransitionError
		if !errors.As(err, &ite) {
			t.Fatalf("expected InvalidTransitionError for %v -> %s, got %v", tc.path, tc.to, err)
		}
	}
}

func TestListenersObserveTransitions(t *testing.T) {
	sm := newStateMachine()
	var changes []StateChange
	sm.AddListener(StateListenerFunc(func(ev StateChange) {
		changes = append(changes, ev)
	}))
	if err := sm.Transition(StateRecording, "start"); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if changes[0].FromState != StateIdle || changes[0].ToState != StateRecording {
		t.Fatalf("unexpected change %+v", changes[0])
	}
	if changes[0].Reason != "start" {
		t.Fatalf("unexpected reason %q", changes[0].Reason)
	}
}
