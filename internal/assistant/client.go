// Package assistant defines the narrow interface the bridge uses to talk
// to the conversational backend, plus the wire types it exchanges. The
// OpenAI Assistants implementation lives in openai.go; everything above
// this package depends only on the Backend interface.
package assistant

import "context"

// RunStatus is the backend-reported state of an asynchronous run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunExpired        RunStatus = "expired"
	RunCancelled      RunStatus = "cancelled"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunExpired, RunCancelled:
		return true
	}
	return false
}

// ActionNewSession is the function-call name the assistant uses to request
// that the current session be discarded and a fresh one started.
const ActionNewSession = "new_session"

// Run identifies an in-flight turn and its current state.
type Run struct {
	ID             string
	SessionID      string
	Status         RunStatus
	PendingActions []Action
}

// Action is one tool call the backend is waiting on before the run can
// continue.
type Action struct {
	ID        string
	Name      string
	Arguments string
}

// ActionResult is the output submitted for a pending action.
type ActionResult struct {
	ActionID string
	Output   string
}

// Message is one entry in a session's message list.
type Message struct {
	ID      string
	Role    string
	Content []ContentBlock
}

// Message roles as reported by the backend.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block kinds. Unknown kinds are preserved in Type so the
// normalizer can reject them loudly.
const (
	BlockText  = "text"
	BlockImage = "image_file"
)

// ContentBlock is one raw content element of a message. Text is set for
// BlockText; ImageFileID for BlockImage.
type ContentBlock struct {
	Type        string
	Text        *TextBlock
	ImageFileID string
}

// TextBlock is literal text plus the backend's annotations into it.
type TextBlock struct {
	Value       string
	Annotations []Annotation
}

// Annotation kinds.
const (
	AnnotationCitation = "file_citation"
	AnnotationFilePath = "file_path"
)

// Annotation is a backend marker inside generated text. Text is the
// verbatim placeholder substring; Quote is only set for citations.
type Annotation struct {
	Type       string
	Text       string
	FileID     string
	Quote      string
	StartIndex int
	EndIndex   int
}

// Resource is the metadata of an uploaded or generated binary artifact.
type Resource struct {
	ID       string
	Filename string
}

// Backend is the remote conversational API consumed by the core. All
// methods map 1:1 onto single backend calls; none of them retry.
type Backend interface {
	// CreateSession creates a new conversation session and returns its id.
	CreateSession(ctx context.Context) (string, error)

	// DeleteSession removes a session and its history.
	DeleteSession(ctx context.Context, sessionID string) error

	// CreateMessage appends a user-authored message referencing the given
	// uploaded resources to a session.
	CreateMessage(ctx context.Context, sessionID, content string, resourceIDs []string) (string, error)

	// CreateRun starts asynchronous processing of the session's latest
	// user message(s).
	CreateRun(ctx context.Context, sessionID string) (Run, error)

	// GetRun fetches the current state of a run.
	GetRun(ctx context.Context, sessionID, runID string) (Run, error)

	// SubmitActionResults answers a run's pending actions so it can
	// continue. An empty result set is valid.
	SubmitActionResults(ctx context.Context, sessionID, runID string, results []ActionResult) error

	// ListMessages returns the session's messages, newest first.
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)

	// UploadResource stores raw bytes and returns the resource id.
	UploadResource(ctx context.Context, filename string, data []byte) (string, error)

	// GetResource fetches a resource's metadata.
	GetResource(ctx context.Context, resourceID string) (Resource, error)

	// DownloadResource fetches a resource's raw bytes.
	DownloadResource(ctx context.Context, resourceID string) ([]byte, error)

	// DeleteResource removes an uploaded resource.
	DeleteResource(ctx context.Context, resourceID string) error
}
