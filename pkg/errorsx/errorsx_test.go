package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAttachesReason(t *testing.T) {
	base := errors.New("insert failed")
	err := Wrap(base, ReasonMeetingInsert)
	if Reason(err) != ReasonMeetingInsert {
		t.Fatalf("expected reason %s, got %s", ReasonMeetingInsert, Reason(err))
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should unwrap to base")
	}
}

func TestWrapKeepsFirstReason(t *testing.T) {
	err := Wrap(errors.New("boom"), ReasonStorageUpload)
	err = Wrap(err, ReasonMeetingUpdate)
	if Reason(err) != ReasonStorageUpload {
		t.Fatalf("expected first reason to win, got %s", Reason(err))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonQuotaFetch) != nil {
		t.Fatalf("wrapping nil should stay nil")
	}
	if Wrapf(nil, ReasonQuotaFetch, "fetch user %s", "u1") != nil {
		t.Fatalf("wrapf nil should stay nil")
	}
}

func TestWrapfPreservesChain(t *testing.T) {
	base := errors.New("timeout")
	err := Wrapf(base, ReasonSummaryGenerate, "summarize meeting %s", "m1")
	if !errors.Is(err, base) {
		t.Fatalf("expected chain to reach base error")
	}
	if !HasReason(err, ReasonSummaryGenerate) {
		t.Fatalf("expected summary_generate reason")
	}
	want := fmt.Sprintf("summarize meeting m1: %s", base)
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestReasonUnknownForPlainError(t *testing.T) {
	if Reason(errors.New("plain")) != ReasonUnknown {
		t.Fatalf("plain error should report unknown reason")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("nil error should report unknown reason")
	}
}
