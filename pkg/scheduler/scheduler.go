// Package scheduler provides a centralized poller that resumes executions
// suspended on delay nodes once their resume time passes.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/zapllo/zaptick-sub010/pkg/persistence"
)

// DefaultPollInterval is how often the poller checks for due resumes.
const DefaultPollInterval = 15 * time.Second

// ResumeFunc is invoked for each due execution. Delivery is at least once:
// the engine's status compare-and-swap makes duplicate wakeups harmless.
type ResumeFunc func(ctx context.Context, executionID string) error

// ResumePoller polls the execution store for suspended executions whose
// resume time has passed and hands them to the engine.
type ResumePoller struct {
	logger     *slog.Logger
	executions persistence.ExecutionRepository
	resume     ResumeFunc
	interval   time.Duration

	ticker  *time.Ticker
	done    chan bool
	started bool
	mu      sync.RWMutex
}

// NewResumePoller creates a poller over the given execution repository.
func NewResumePoller(logger *slog.Logger, executions persistence.ExecutionRepository, interval time.Duration) *ResumePoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &ResumePoller{
		logger:     logger.With("module", "resume_poller"),
		executions: executions,
		interval:   interval,
	}
}

// ScheduleResume acknowledges a suspension. The execution's persisted
// resume time drives the poll loop, so there is nothing to register here.
func (p *ResumePoller) ScheduleResume(_ context.Context, executionID string, at time.Time) error {
	p.logger.Debug("Execution suspended until resume time",
		"execution_id", executionID,
		"resume_at", at)

	return nil
}

// Start begins the poll loop.
func (p *ResumePoller) Start(ctx context.Context, resume ResumeFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	if resume == nil {
		return errors.New("resume poller requires a resume callback")
	}

	p.resume = resume
	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan bool)
	p.started = true

	go p.poll(ctx)

	p.logger.Info("Resume poller started", "interval", p.interval)

	return nil
}

// Stop gracefully shuts down the poll loop.
func (p *ResumePoller) Stop(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}

	if p.ticker != nil {
		p.ticker.Stop()
	}

	select {
	case p.done <- true:
	default:
	}

	p.started = false
	p.logger.Info("Resume poller stopped")

	return nil
}

func (p *ResumePoller) poll(ctx context.Context) {
	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case <-p.ticker.C:
			p.processDueResumes(ctx)
		}
	}
}

// processDueResumes queries for all suspended executions past their resume
// time and wakes each one. A failed wakeup is retried on the next tick.
func (p *ResumePoller) processDueResumes(ctx context.Context) {
	now := time.Now().UTC()

	due, err := p.executions.DueResumes(ctx, now)
	if err != nil {
		p.logger.Error("Failed to get due resumes", "error", err)

		return
	}

	if len(due) > 0 {
		p.logger.Info("Processing due resumes", "count", len(due))
	}

	for _, execution := range due {
		if err := p.resume(ctx, execution.ID); err != nil {
			// A status conflict means another worker already claimed the
			// resume; anything else will be retried next tick.
			if persistence.IsStatusConflict(err) {
				continue
			}

			p.logger.Error("Failed to resume execution",
				"execution_id", execution.ID,
				"error", err)
		}
	}
}
