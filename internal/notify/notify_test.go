package notify

import (
	"context"
	"errors"
	"testing"
)

type recording struct {
	events []Event
	err    error
}

func (r *recording) Notify(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestTemplateEvent(t *testing.T) {
	ev := Event{
		Kind:       KindPartUse,
		VIN:        "1HGBH41JXMN109186",
		PartNumber: "DF-BMS-01",
		Summary:    "used 3 of DF-BMS-01",
	}
	got := templateEvent("notify-send '{{.Kind}}' '{{.Summary}}' # {{.VIN}}/{{.PartNumber}}", ev)
	want := "notify-send 'part.use' 'used 3 of DF-BMS-01' # 1HGBH41JXMN109186/DF-BMS-01"
	if got != want {
		t.Errorf("templateEvent = %q, want %q", got, want)
	}
}

func TestMulti_DeliversToAll(t *testing.T) {
	a := &recording{}
	b := &recording{}
	m := Multi{a, b}

	if err := m.Notify(context.Background(), Event{Kind: KindTransition, Summary: "sold"}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", len(a.events), len(b.events))
	}
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	failing := &recording{err: errors.New("boom")}
	ok := &recording{}
	m := Multi{failing, ok}

	// Best-effort: the error is logged, not returned.
	if err := m.Notify(context.Background(), Event{Kind: KindPartRefund}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(ok.events) != 1 {
		t.Errorf("second notifier got %d events, want 1", len(ok.events))
	}
}

func TestCommand_EmptyTemplateIsNoop(t *testing.T) {
	if err := (Command{}).Notify(context.Background(), Event{Kind: KindTransition}); err != nil {
		t.Errorf("Notify() error: %v", err)
	}
}

func TestCommand_FailureNotReturned(t *testing.T) {
	c := Command{Template: "exit 1"}
	if err := c.Notify(context.Background(), Event{Kind: KindTransition}); err != nil {
		t.Errorf("Notify() error: %v, want nil (best-effort)", err)
	}
}
