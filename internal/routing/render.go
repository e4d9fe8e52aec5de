package routing

import (
	"fmt"
	"strings"

	"github.com/sagebridge/sagebridge/internal/domain"
)

// resetNotice is sent when the assistant recycled the session mid-turn.
const resetNotice = "I've started a fresh session; the earlier conversation is gone. Ask me again."

// rendered is one content part flattened for delivery.
type rendered struct {
	Body  string
	Media []domain.Attachment
}

// renderParts flattens normalized content parts into sendable bodies and
// attachments, one rendered unit per part.
func renderParts(parts []domain.ContentPart) []rendered {
	out := make([]rendered, 0, len(parts))
	for _, part := range parts {
		switch part.Kind {
		case domain.PartText:
			out = append(out, renderText(part.Text))
		case domain.PartImage:
			out = append(out, rendered{
				Media: []domain.Attachment{{
					Filename: part.Image.Filename,
					Data:     part.Image.Data,
				}},
			})
		case domain.PartSessionReset:
			out = append(out, rendered{Body: resetNotice})
		}
	}
	return out
}

// renderText substitutes annotation placeholders: citations become
// numbered markers with quotes appended as footnotes, file references
// become the bare filename with the file attached.
func renderText(text *domain.TextPart) rendered {
	body := text.Value

	var footnotes []string
	for i, cite := range text.Citations {
		marker := fmt.Sprintf("[%d]", i+1)
		body = strings.Replace(body, cite.Placeholder, marker, 1)
		if cite.Quote != "" {
			footnotes = append(footnotes, fmt.Sprintf("%s %s", marker, cite.Quote))
		}
	}

	var media []domain.Attachment
	for _, ref := range text.Files {
		body = strings.Replace(body, ref.Placeholder, ref.Filename, 1)
		media = append(media, domain.Attachment{
			Filename: ref.Filename,
			Data:     ref.Data,
		})
	}

	if len(footnotes) > 0 {
		body += "\n\n" + strings.Join(footnotes, "\n")
	}
	return rendered{Body: body, Media: media}
}
