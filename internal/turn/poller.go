// Package turn implements one user turn end to end: submit, poll the
// asynchronous run to an outcome, and normalize the backend's response
// into presentation-ready content parts.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sagebridge/sagebridge/internal/assistant"
	"github.com/sagebridge/sagebridge/internal/logging"
	"github.com/sagebridge/sagebridge/internal/session"
)

// Outcome is the result of waiting on a run.
type Outcome int

const (
	// OutcomeCompleted means the run finished and produced messages.
	OutcomeCompleted Outcome = iota
	// OutcomeFailed, OutcomeExpired and OutcomeCancelled are the
	// backend-reported terminal failures, passed through unchanged.
	OutcomeFailed
	OutcomeExpired
	OutcomeCancelled
	// OutcomeSessionReset means the assistant requested a new session;
	// the run was abandoned and the context evicted.
	OutcomeSessionReset
	// OutcomeTimedOut means the poll budget ran out with no terminal
	// state. Distinct from OutcomeExpired, which the backend reports.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeExpired:
		return "expired"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeSessionReset:
		return "session_reset"
	case OutcomeTimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ErrTimedOut is returned by the orchestrator when polling gave up before
// the backend reached a terminal state. The backend run is left as-is.
var ErrTimedOut = errors.New("run polling timed out before a result was produced")

// RunError reports a backend terminal state that produced no result.
type RunError struct {
	Outcome Outcome
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run ended without a result: %s", e.Outcome)
}

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxPolls     = 120
)

// PollerConfig tunes the polling loop. Zero values use the defaults
// (500ms interval, 120 iterations).
type PollerConfig struct {
	Interval time.Duration
	MaxPolls int
}

// Poller drives a submitted run to an outcome by polling the backend on
// a fixed interval.
type Poller struct {
	backend  assistant.Backend
	mux      *session.Multiplexer
	interval time.Duration
	maxPolls int
	sleep    func(time.Duration)
	log      *logging.Logger
}

// NewPoller creates a poller.
func NewPoller(backend assistant.Backend, mux *session.Multiplexer, cfg PollerConfig, log *logging.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = defaultMaxPolls
	}
	return &Poller{
		backend:  backend,
		mux:      mux,
		interval: cfg.Interval,
		maxPolls: cfg.MaxPolls,
		sleep:    time.Sleep,
		log:      log.Sub("poller"),
	}
}

// Wait polls until the run reaches a terminal state, the assistant
// requests a session reset, or the poll budget is exhausted. contextID is
// the chat context owning the run, needed for the reset path.
func (p *Poller) Wait(ctx context.Context, contextID string, run assistant.Run) (Outcome, error) {
	for i := 0; i < p.maxPolls; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		cur, err := p.backend.GetRun(ctx, run.SessionID, run.ID)
		if err != nil {
			return 0, fmt.Errorf("polling run %s: %w", run.ID, err)
		}

		switch cur.Status {
		case assistant.RunCompleted:
			return OutcomeCompleted, nil
		case assistant.RunFailed:
			return OutcomeFailed, nil
		case assistant.RunExpired:
			return OutcomeExpired, nil
		case assistant.RunCancelled:
			return OutcomeCancelled, nil
		case assistant.RunRequiresAction:
			reset, err := p.answerActions(ctx, contextID, cur)
			if err != nil {
				return 0, err
			}
			if reset {
				return OutcomeSessionReset, nil
			}
		}

		p.sleep(p.interval)
	}

	p.log.Warn().
		Str("runId", run.ID).
		Str("contextId", contextID).
		Int("polls", p.maxPolls).
		Msg("run did not settle within the poll budget")
	return OutcomeTimedOut, nil
}

// answerActions handles a requires_action state. A new-session request
// evicts the owning context and abandons the run; anything else gets an
// empty result set so the run can continue.
func (p *Poller) answerActions(ctx context.Context, contextID string, run assistant.Run) (reset bool, err error) {
	for _, action := range run.PendingActions {
		if action.Name == assistant.ActionNewSession {
			p.log.Info().
				Str("contextId", contextID).
				Str("runId", run.ID).
				Msg("assistant requested a new session")
			if err := p.mux.Evict(ctx, contextID); err != nil {
				p.log.Warn().Err(err).Str("contextId", contextID).Msg("eviction reported failures")
			}
			return true, nil
		}
	}

	if err := p.backend.SubmitActionResults(ctx, run.SessionID, run.ID, nil); err != nil {
		return false, fmt.Errorf("answering run %s actions: %w", run.ID, err)
	}
	return false, nil
}
