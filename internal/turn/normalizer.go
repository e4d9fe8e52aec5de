package turn

import (
	"context"
	"fmt"
	"path"

	"github.com/sagebridge/sagebridge/internal/assistant"
	"github.com/sagebridge/sagebridge/internal/domain"
	"github.com/sagebridge/sagebridge/internal/logging"
)

// Normalizer turns the backend's raw message list into ordered content
// parts, resolving annotation targets to downloaded bytes as it goes.
type Normalizer struct {
	backend assistant.Backend
	log     *logging.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(backend assistant.Backend, log *logging.Logger) *Normalizer {
	return &Normalizer{backend: backend, log: log.Sub("normalizer")}
}

// Collect gathers the assistant messages produced since the most recent
// user message and normalizes them into chronological content parts.
func (n *Normalizer) Collect(ctx context.Context, sessionID string) ([]domain.ContentPart, error) {
	messages, err := n.backend.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing session %s messages: %w", sessionID, err)
	}

	// The list arrives newest first. Take everything above the latest
	// user message, then flip back to chronological order.
	var replies []assistant.Message
	for _, msg := range messages {
		if msg.Role == assistant.RoleUser {
			break
		}
		replies = append(replies, msg)
	}
	for i, j := 0, len(replies)-1; i < j; i, j = i+1, j-1 {
		replies[i], replies[j] = replies[j], replies[i]
	}

	var parts []domain.ContentPart
	for _, msg := range replies {
		for _, block := range msg.Content {
			part, err := n.normalizeBlock(ctx, msg.ID, block)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
	}
	return parts, nil
}

func (n *Normalizer) normalizeBlock(ctx context.Context, messageID string, block assistant.ContentBlock) (domain.ContentPart, error) {
	switch block.Type {
	case assistant.BlockText:
		return n.normalizeText(ctx, messageID, block)
	case assistant.BlockImage:
		return n.normalizeImage(ctx, block.ImageFileID)
	}
	return domain.ContentPart{}, fmt.Errorf("message %s: unsupported content block type %q", messageID, block.Type)
}

func (n *Normalizer) normalizeText(ctx context.Context, messageID string, block assistant.ContentBlock) (domain.ContentPart, error) {
	if block.Text == nil {
		return domain.ContentPart{}, fmt.Errorf("message %s: text block without a body", messageID)
	}

	part := domain.TextPart{Value: block.Text.Value}
	for _, ann := range block.Text.Annotations {
		switch ann.Type {
		case assistant.AnnotationCitation:
			part.Citations = append(part.Citations, domain.Citation{
				Placeholder: ann.Text,
				ResourceID:  ann.FileID,
				Quote:       ann.Quote,
				StartIndex:  ann.StartIndex,
				EndIndex:    ann.EndIndex,
			})
		case assistant.AnnotationFilePath:
			ref, err := n.resolveFile(ctx, ann)
			if err != nil {
				return domain.ContentPart{}, err
			}
			part.Files = append(part.Files, ref)
		default:
			return domain.ContentPart{}, fmt.Errorf("message %s: unsupported annotation type %q", messageID, ann.Type)
		}
	}
	return domain.TextContent(part), nil
}

func (n *Normalizer) resolveFile(ctx context.Context, ann assistant.Annotation) (domain.FileRef, error) {
	res, err := n.backend.GetResource(ctx, ann.FileID)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("resolving generated file %s: %w", ann.FileID, err)
	}
	data, err := n.backend.DownloadResource(ctx, ann.FileID)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("downloading generated file %s: %w", ann.FileID, err)
	}
	return domain.FileRef{
		Placeholder: ann.Text,
		ResourceID:  ann.FileID,
		Filename:    path.Base(res.Filename),
		Data:        data,
		StartIndex:  ann.StartIndex,
		EndIndex:    ann.EndIndex,
	}, nil
}

func (n *Normalizer) normalizeImage(ctx context.Context, resourceID string) (domain.ContentPart, error) {
	res, err := n.backend.GetResource(ctx, resourceID)
	if err != nil {
		return domain.ContentPart{}, fmt.Errorf("resolving generated image %s: %w", resourceID, err)
	}
	data, err := n.backend.DownloadResource(ctx, resourceID)
	if err != nil {
		return domain.ContentPart{}, fmt.Errorf("downloading generated image %s: %w", resourceID, err)
	}
	return domain.ImageContent(domain.ImagePart{
		ResourceID: resourceID,
		Filename:   path.Base(res.Filename) + ".png",
		Data:       data,
	}), nil
}
