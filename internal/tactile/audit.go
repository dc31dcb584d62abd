package tactile

import (
	"sync"

	"go.uber.org/zap"

	"simatest/internal/logging"
)

// LogAuditEvent writes an audit event to the tactile log category.
// It has the signature expected by SetAuditCallback.
func LogAuditEvent(event AuditEvent) {
	fields := []interface{}{
		"type", string(event.Type),
		"executor", event.ExecutorName,
		"command", event.Command.CommandString(),
	}
	if event.Command.RunID != "" {
		fields = append(fields, "run_id", event.Command.RunID)
	}
	for k, v := range event.Command.Tags {
		fields = append(fields, zap.String("tag."+k, v))
	}
	if event.Result != nil {
		fields = append(fields,
			"exit_code", event.Result.ExitCode,
			"duration", event.Result.Duration,
		)
		if event.Result.KillReason != "" {
			fields = append(fields, "kill_reason", event.Result.KillReason)
		}
		if event.Result.Error != "" {
			fields = append(fields, "error", event.Result.Error)
		}
	}

	log := logging.Get(logging.CategoryTactile)
	switch event.Type {
	case AuditEventError, AuditEventKilled:
		log.Warnw("execution event", fields...)
	default:
		log.Debugw("execution event", fields...)
	}
}

// AuditTrail collects audit events in memory.
type AuditTrail struct {
	mu     sync.Mutex
	events []AuditEvent
}

// Record appends an event. It has the signature expected by SetAuditCallback.
func (t *AuditTrail) Record(event AuditEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

// Events returns a copy of the recorded events.
func (t *AuditTrail) Events() []AuditEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]AuditEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Chain returns a callback that forwards each event to every callback.
func Chain(callbacks ...func(AuditEvent)) func(AuditEvent) {
	return func(event AuditEvent) {
		for _, cb := range callbacks {
			if cb != nil {
				cb(event)
			}
		}
	}
}
