package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestDispatcherSingleFailureDoesNotStopBatch(t *testing.T) {
	gw := newFakeGateway()
	gw.sendErrTo[3] = fmt.Errorf("bot was blocked by the user")
	optIn := &stubOptIn{ready: map[int64]bool{1: true, 2: true, 3: true, 4: true, 5: true}}

	d := NewDispatcher(gw, optIn, 0, testLogger())
	res := d.Send(context.Background(), []int64{1, 2, 3, 4, 5}, []string{"hello %s"}, func(int64) []any {
		return []any{"2026-08"}
	})

	if len(res.Sent) != 4 {
		t.Fatalf("Sent = %v, want 4 entries", res.Sent)
	}
	if len(res.Failed) != 1 || res.Failed[0].UserID != 3 {
		t.Fatalf("Failed = %v, want exactly user 3", res.Failed)
	}
	if !strings.Contains(res.Failed[0].Reason, "blocked") {
		t.Fatalf("failure reason %q lost the underlying error", res.Failed[0].Reason)
	}
	if got := gw.sent[1][0]; got != "hello 2026-08" {
		t.Fatalf("delivered text = %q, want formatted template", got)
	}
}

func TestDispatcherSkipsUsersWithoutOptIn(t *testing.T) {
	gw := newFakeGateway()
	optIn := &stubOptIn{ready: map[int64]bool{1: true, 2: false}}

	d := NewDispatcher(gw, optIn, 0, testLogger())
	res := d.Send(context.Background(), []int64{1, 2}, []string{"msg"}, nil)

	if len(res.Sent) != 1 || res.Sent[0] != 1 {
		t.Fatalf("Sent = %v, want only user 1", res.Sent)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != 2 {
		t.Fatalf("Skipped = %v, want only user 2", res.Skipped)
	}
	if len(res.Failed) != 0 {
		t.Fatalf("Failed = %v, want none", res.Failed)
	}
}

func TestDispatcherPicksTemplatePerRecipient(t *testing.T) {
	gw := newFakeGateway()
	optIn := &stubOptIn{ready: map[int64]bool{1: true, 2: true, 3: true}}

	d := NewDispatcher(gw, optIn, 0, testLogger())
	// Deterministic picker cycling through the pool: one pick per message,
	// not one per batch.
	next := 0
	d.pick = func(n int) int {
		v := next % n
		next++
		return v
	}
	d.Send(context.Background(), []int64{1, 2, 3}, []string{"first", "second"}, nil)

	if next != 3 {
		t.Fatalf("picker invoked %d times, want once per recipient", next)
	}
	if gw.sent[1][0] != "first" || gw.sent[2][0] != "second" || gw.sent[3][0] != "first" {
		t.Fatalf("templates not chosen per message: %v", gw.sent)
	}
}

func TestDispatcherEmptyTemplatePool(t *testing.T) {
	d := NewDispatcher(newFakeGateway(), &stubOptIn{}, 0, testLogger())
	res := d.Send(context.Background(), []int64{1}, nil, nil)
	if len(res.Sent)+len(res.Failed)+len(res.Skipped) != 0 {
		t.Fatalf("empty pool must produce an empty result, got %+v", res)
	}
}
