// Package notify dispatches alert notifications raised by the monitor
// sweeps. The core hands over newly created or escalated critical alerts;
// delivery is this package's concern.
package notify

import (
	"context"
	"log"
)

// Event describes one alert worth telling a human about.
type Event struct {
	AlertID  int
	Type     string
	Severity string
	Title    string
	Message  string
}

// Notifier delivers alert events. Implementations must not block the sweep;
// a failed delivery is logged and dropped, never retried by the caller.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LogNotifier writes events to a standard logger. The default wiring.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier returns a Notifier printing to the given logger, or the
// process default logger when nil.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) {
	n.logger.Printf("NOTIFY [%s] %s alert #%d: %s: %s",
		event.Severity, event.Type, event.AlertID, event.Title, event.Message)
}

// Discard swallows every event. Useful in tests.
type Discard struct{}

func (Discard) Notify(context.Context, Event) {}
