// Package eventbus defines the publish-only event port. Lifecycle events are
// advisory: a publish failure is logged by the caller and never fails the
// operation that produced it.
package eventbus

import "context"

// Subjects published by the core.
const (
	SubjectRunCreated   = "runs.created"
	SubjectRunStarted   = "runs.started"
	SubjectRunCompleted = "runs.completed"
	SubjectRunFailed    = "runs.failed"
	SubjectRunCancelled = "runs.cancelled"
	SubjectGCSweep      = "gc.sweep.completed"
)

// Publisher is the port interface for emitting lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}
