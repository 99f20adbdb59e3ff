package protocol

import (
	"context"
	"time"
)

// ResumeScheduler is the scheduler collaborator a delay suspension registers
// with. Delivery of the resume signal is at-least-once; the engine's resume
// path claims the execution atomically, so duplicate fires are harmless.
type ResumeScheduler interface {
	ScheduleResume(ctx context.Context, executionID string, at time.Time) error
}
