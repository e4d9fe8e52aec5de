// Package routing connects messaging channels to the turn orchestrator.
package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/sagebridge/sagebridge/internal/channel"
	"github.com/sagebridge/sagebridge/internal/domain"
	"github.com/sagebridge/sagebridge/internal/logging"
	"github.com/sagebridge/sagebridge/internal/turn"
)

// resetCommand discards the conversation context when sent on its own.
const resetCommand = "!reset"

const (
	resetConfirmation = "Conversation reset. The next message starts a new session."
	timeoutReply      = "The assistant took too long to respond. Please try again."
	failureReply      = "The assistant could not complete that request."
)

// Router routes inbound messages to the orchestrator and responses back
// to the originating channel. Turns are serialized per conversation
// context; different contexts proceed concurrently.
type Router struct {
	channels *channel.Registry
	orch     *turn.Orchestrator
	fetch    *resty.Client
	log      *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRouter creates a message router.
func NewRouter(channels *channel.Registry, orch *turn.Orchestrator, log *logging.Logger) *Router {
	return &Router{
		channels: channels,
		orch:     orch,
		fetch:    resty.New(),
		log:      log.Sub("routing"),
		locks:    make(map[string]*sync.Mutex),
	}
}

// contextLock returns the mutex serializing turns for one context.
func (r *Router) contextLock(contextID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[contextID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[contextID] = lock
	}
	return lock
}

// HandleInbound processes one inbound message end to end: it resolves
// the conversation context, runs the turn, and sends the rendered
// response through the originating channel.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	contextID := domain.ContextID(msg.ChannelID, msg.ChatID)

	r.log.Info().
		Str("channel", msg.ChannelID).
		Str("from", msg.From).
		Str("contextId", contextID).
		Int("media", len(msg.Media)).
		Msg("routing inbound message")

	ch, ok := r.channels.Get(msg.ChannelID)
	if !ok {
		r.log.Error().Str("channel", msg.ChannelID).Msg("channel not found for reply")
		return
	}
	target := replyTarget(msg)

	lock := r.contextLock(contextID)
	lock.Lock()
	defer lock.Unlock()

	if strings.TrimSpace(msg.Body) == resetCommand {
		if err := r.orch.Reset(ctx, contextID); err != nil {
			r.log.Warn().Err(err).Str("contextId", contextID).Msg("reset reported failures")
		}
		r.send(ctx, ch, msg, target, rendered{Body: resetConfirmation})
		return
	}

	uploads, err := r.gatherUploads(ctx, msg.Media)
	if err != nil {
		r.log.Error().Err(err).Str("contextId", contextID).Msg("attachment download failed")
		r.send(ctx, ch, msg, target, rendered{Body: failureReply})
		return
	}

	parts, err := r.orch.ProcessTurn(ctx, contextID, msg.Body, uploads)
	if err != nil {
		r.handleTurnError(ctx, ch, msg, target, contextID, err)
		return
	}

	for _, unit := range renderParts(parts) {
		r.send(ctx, ch, msg, target, unit)
	}
}

func (r *Router) handleTurnError(ctx context.Context, ch domain.Channel, msg domain.InboundMessage, target, contextID string, err error) {
	var runErr *turn.RunError
	switch {
	case errors.Is(err, turn.ErrTimedOut):
		r.log.Warn().Str("contextId", contextID).Msg("turn timed out")
		r.send(ctx, ch, msg, target, rendered{Body: timeoutReply})
	case errors.As(err, &runErr):
		r.log.Error().
			Str("contextId", contextID).
			Str("outcome", runErr.Outcome.String()).
			Msg("run ended without a result")
		r.send(ctx, ch, msg, target, rendered{
			Body: fmt.Sprintf("%s (run %s)", failureReply, runErr.Outcome),
		})
	default:
		r.log.Error().Err(err).Str("contextId", contextID).Msg("turn failed")
		r.send(ctx, ch, msg, target, rendered{Body: failureReply})
	}
}

// gatherUploads materializes inbound attachments: ones carrying bytes are
// used as-is, URL-only ones are fetched first.
func (r *Router) gatherUploads(ctx context.Context, media []domain.Attachment) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, 0, len(media))
	for _, att := range media {
		data := att.Data
		if len(data) == 0 {
			if att.URL == "" {
				return nil, fmt.Errorf("attachment %s has neither data nor url", att.Filename)
			}
			resp, err := r.fetch.R().SetContext(ctx).Get(att.URL)
			if err != nil {
				return nil, fmt.Errorf("fetching attachment %s: %w", att.Filename, err)
			}
			if resp.IsError() {
				return nil, fmt.Errorf("fetching attachment %s: status %d", att.Filename, resp.StatusCode())
			}
			data = resp.Body()
		}
		uploads = append(uploads, domain.Upload{Filename: att.Filename, Data: data})
	}
	return uploads, nil
}

func (r *Router) send(ctx context.Context, ch domain.Channel, msg domain.InboundMessage, target string, unit rendered) {
	out := domain.OutboundMessage{
		ChannelID: msg.ChannelID,
		To:        target,
		Body:      unit.Body,
		ReplyToID: msg.ID,
		Media:     unit.Media,
	}
	if err := ch.Send(ctx, out); err != nil {
		r.log.Error().Err(err).
			Str("channel", msg.ChannelID).
			Str("to", target).
			Msg("failed to send reply")
	}
}

// Wire registers HandleInbound as the message handler on all channels.
func (r *Router) Wire() {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg domain.InboundMessage) {
			go r.HandleInbound(context.Background(), msg)
		})
		r.log.Debug().Str("channel", id).Msg("wired message handler")
	}
}

// replyTarget determines where to send the response. Channels populate
// ChatID with a directly sendable surface for every chat type (the DM
// channel id on Discord, the sender's nick on IRC), so replies always go
// back to the originating chat. User ids are not sendable targets.
func replyTarget(msg domain.InboundMessage) string {
	return msg.ChatID
}

// SendTo sends a plain message to a specific channel target.
func (r *Router) SendTo(ctx context.Context, channelID, target, body string) error {
	ch, ok := r.channels.Get(channelID)
	if !ok {
		return fmt.Errorf("channel not found: %s", channelID)
	}
	return ch.Send(ctx, domain.OutboundMessage{
		ChannelID: channelID,
		To:        target,
		Body:      body,
	})
}
