// Package delay provides the suspension node for workflow graph execution.
package delay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

const (
	ModeRelative = "relative"
	ModeAbsolute = "absolute"
	ModeCron     = "cron"
)

// DelayNode computes a resume time and signals the executor to suspend. It
// never blocks: suspension is park-and-resume, carried by the scheduler
// collaborator, not a held goroutine.
type DelayNode struct {
	id       string
	mode     string
	duration time.Duration
	until    time.Time
	schedule cron.Schedule
}

// NewDelayNode parses and validates the delay config up front so malformed
// delays fail at execution start, not mid-graph.
func NewDelayNode(node *models.Node) (*DelayNode, error) {
	mode, _ := node.Config["mode"].(string)
	if mode == "" {
		mode = ModeRelative
	}

	n := &DelayNode{id: node.ID, mode: mode}

	switch mode {
	case ModeRelative:
		duration, err := parseDuration(node.Config)
		if err != nil {
			return nil, err
		}

		n.duration = duration
	case ModeAbsolute:
		untilStr, ok := node.Config["until"].(string)
		if !ok || untilStr == "" {
			return nil, errors.New("missing required field 'until' for absolute delay")
		}

		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return nil, fmt.Errorf("invalid 'until' timestamp %q: %w", untilStr, err)
		}

		n.until = until.UTC()
	case ModeCron:
		expr, ok := node.Config["cron"].(string)
		if !ok || expr == "" {
			return nil, errors.New("missing required field 'cron' for cron delay")
		}

		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

		schedule, err := parser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}

		n.schedule = schedule
	default:
		return nil, fmt.Errorf("unknown delay mode %q", mode)
	}

	return n, nil
}

func parseDuration(config map[string]any) (time.Duration, error) {
	if ms, ok := config["duration_ms"].(float64); ok {
		if ms <= 0 {
			return 0, errors.New("'duration_ms' must be positive")
		}

		return time.Duration(ms) * time.Millisecond, nil
	}

	if ms, ok := config["duration_ms"].(int); ok {
		if ms <= 0 {
			return 0, errors.New("'duration_ms' must be positive")
		}

		return time.Duration(ms) * time.Millisecond, nil
	}

	if durStr, ok := config["duration"].(string); ok {
		duration, err := time.ParseDuration(durStr)
		if err != nil {
			return 0, fmt.Errorf("invalid 'duration' %q: %w", durStr, err)
		}

		if duration <= 0 {
			return 0, errors.New("'duration' must be positive")
		}

		return duration, nil
	}

	return 0, errors.New("relative delay requires 'duration_ms' or 'duration'")
}

// Execute computes the resume timestamp and asks the executor to suspend.
func (n *DelayNode) Execute(_ context.Context, _ protocol.HandlerContext) (*protocol.HandlerResult, error) {
	now := time.Now().UTC()

	var resumeAt time.Time

	switch n.mode {
	case ModeRelative:
		resumeAt = now.Add(n.duration)
	case ModeAbsolute:
		resumeAt = n.until
	case ModeCron:
		resumeAt = n.schedule.Next(now)
	}

	return &protocol.HandlerResult{
		Suspend:  true,
		ResumeAt: resumeAt,
		Result: map[string]any{
			"mode":      n.mode,
			"resume_at": resumeAt.Format(time.RFC3339),
		},
	}, nil
}
