package domain

// PartKind discriminates the normalized content part variants.
type PartKind string

const (
	// PartText is assistant-authored text with optional annotations.
	PartText PartKind = "text"
	// PartImage is a generated image to be delivered as a file.
	PartImage PartKind = "image"
	// PartSessionReset signals that the backend session was recycled
	// mid-turn and no response content exists. It carries no payload.
	PartSessionReset PartKind = "session_reset"
)

// ContentPart is one unit of a normalized assistant response. Exactly one
// of Text/Image is set, matching Kind; a session-reset part sets neither.
type ContentPart struct {
	Kind  PartKind
	Text  *TextPart
	Image *ImagePart
}

// TextPart is a text block plus the annotations the backend attached to it.
// Every Placeholder in Citations and Files occurs literally in Value.
type TextPart struct {
	Value     string
	Citations []Citation
	Files     []FileRef
}

// Citation marks a quoted source passage inside a text part.
type Citation struct {
	Placeholder string
	ResourceID  string
	Quote       string
	StartIndex  int
	EndIndex    int
}

// FileRef marks a generated file referenced from inside a text part. The
// file's bytes are already downloaded so the caller can re-upload them to
// its own platform.
type FileRef struct {
	Placeholder string
	ResourceID  string
	Filename    string
	Data        []byte
	StartIndex  int
	EndIndex    int
}

// ImagePart is a generated image with its resolved filename and bytes.
type ImagePart struct {
	ResourceID string
	Filename   string
	Data       []byte
}

// TextContent builds a text part.
func TextContent(t TextPart) ContentPart {
	return ContentPart{Kind: PartText, Text: &t}
}

// ImageContent builds an image part.
func ImageContent(i ImagePart) ContentPart {
	return ContentPart{Kind: PartImage, Image: &i}
}

// SessionResetContent builds the out-of-band reset marker part.
func SessionResetContent() ContentPart {
	return ContentPart{Kind: PartSessionReset}
}
