// Package notify announces ledger and lifecycle events to chat
// platforms and local hooks. Delivery is best-effort by contract:
// a failed notification never rolls back the state change it reports.
package notify

import (
	"context"
	"log"
	"os/exec"
	"strings"
)

// Event kinds.
const (
	KindTransition       = "vehicle.transition"
	KindPartUse          = "part.use"
	KindPartRefund       = "part.refund"
	KindRepairClosed     = "repair.closed"
	KindReconcileAnomaly = "reconcile.anomaly"
)

// Event is one announcement about the lot or the garage.
type Event struct {
	Kind       string
	VIN        string
	PartNumber string
	Summary    string
	Fields     []Field // key-value metadata pairs
}

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
}

// Notifier delivers events to one destination.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Multi fans an event out to every destination. Failures are logged
// and do not stop delivery to the rest.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, ev Event) error {
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			log.Printf("notify: %T: %v", n, err)
		}
	}
	return nil
}

// Command runs a shell command template per event, e.g.
// "notify-send 'Motorlot' '{{.Summary}}'".
type Command struct {
	Template string
}

// Notify implements Notifier.
func (c Command) Notify(ctx context.Context, ev Event) error {
	if c.Template == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", templateEvent(c.Template, ev))
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Printf("notify: command failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Log writes events to the process log. Useful as the default sink
// when no chat platform is configured.
type Log struct{}

// Notify implements Notifier.
func (Log) Notify(_ context.Context, ev Event) error {
	log.Printf("notify: %s %s", ev.Kind, ev.Summary)
	return nil
}

// templateEvent replaces placeholders in the command template with event values.
func templateEvent(command string, ev Event) string {
	r := strings.NewReplacer(
		"{{.Kind}}", ev.Kind,
		"{{.VIN}}", ev.VIN,
		"{{.PartNumber}}", ev.PartNumber,
		"{{.Summary}}", ev.Summary,
	)
	return r.Replace(command)
}
