package turn

import (
	"context"
	"fmt"

	"github.com/sagebridge/sagebridge/internal/assistant"
	"github.com/sagebridge/sagebridge/internal/domain"
	"github.com/sagebridge/sagebridge/internal/logging"
	"github.com/sagebridge/sagebridge/internal/session"
)

// Orchestrator runs a full user turn against the backend. Callers must
// serialize turns per context; the router's keyed locks do that.
type Orchestrator struct {
	backend    assistant.Backend
	mux        *session.Multiplexer
	poller     *Poller
	normalizer *Normalizer
	log        *logging.Logger
}

// NewOrchestrator wires the turn pipeline together.
func NewOrchestrator(backend assistant.Backend, mux *session.Multiplexer, poller *Poller, normalizer *Normalizer, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		backend:    backend,
		mux:        mux,
		poller:     poller,
		normalizer: normalizer,
		log:        log.Sub("turn"),
	}
}

// ProcessTurn submits the user's text and uploads to the context's
// session, drives the resulting run to an outcome, and returns the
// normalized response parts.
//
// A mid-turn session reset returns a single reset part with a nil error.
// A poll timeout returns ErrTimedOut; other fruitless terminal states
// return a *RunError.
func (o *Orchestrator) ProcessTurn(ctx context.Context, contextID, text string, uploads []domain.Upload) ([]domain.ContentPart, error) {
	resourceIDs := make([]string, 0, len(uploads))
	for _, up := range uploads {
		id, err := o.backend.UploadResource(ctx, up.Filename, up.Data)
		if err != nil {
			return nil, fmt.Errorf("uploading %s: %w", up.Filename, err)
		}
		resourceIDs = append(resourceIDs, id)
	}

	res, err := o.mux.Resolve(ctx, contextID)
	if err != nil {
		return nil, err
	}

	// Record the uploads before submitting so eviction can always find
	// them, even if the turn dies between here and the run finishing.
	if len(resourceIDs) > 0 {
		if err := o.mux.Attach(contextID, resourceIDs); err != nil {
			return nil, fmt.Errorf("recording uploads for context %s: %w", contextID, err)
		}
	}

	if _, err := o.backend.CreateMessage(ctx, res.SessionID, text, resourceIDs); err != nil {
		return nil, fmt.Errorf("submitting message for context %s: %w", contextID, err)
	}
	run, err := o.backend.CreateRun(ctx, res.SessionID)
	if err != nil {
		return nil, fmt.Errorf("starting run for context %s: %w", contextID, err)
	}

	o.log.Debug().
		Str("contextId", contextID).
		Str("sessionId", res.SessionID).
		Str("runId", run.ID).
		Int("uploads", len(resourceIDs)).
		Msg("turn submitted")

	outcome, err := o.poller.Wait(ctx, contextID, run)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case OutcomeCompleted:
		return o.normalizer.Collect(ctx, res.SessionID)
	case OutcomeSessionReset:
		return []domain.ContentPart{domain.SessionResetContent()}, nil
	case OutcomeTimedOut:
		return nil, ErrTimedOut
	default:
		return nil, &RunError{Outcome: outcome}
	}
}

// Reset discards the context's session and all attached resources. The
// next turn starts a fresh session.
func (o *Orchestrator) Reset(ctx context.Context, contextID string) error {
	return o.mux.Evict(ctx, contextID)
}
