package assistant

import (
	"context"
	"fmt"
	"sync"
)

// CreatedMessage records one CreateMessage call on the mock.
type CreatedMessage struct {
	SessionID   string
	Content     string
	ResourceIDs []string
}

// UploadRecord records one UploadResource call on the mock.
type UploadRecord struct {
	Filename string
	Size     int
}

// MockBackend is an in-memory scriptable Backend test double. Zero-value
// behavior is a healthy backend that answers everything; script fields
// shape specific scenarios.
type MockBackend struct {
	mu sync.Mutex

	sessionSeq  int
	resourceSeq int
	runSeq      int

	// StatusScript is consumed one entry per GetRun call; the final entry
	// repeats once the script is exhausted. Empty means always completed.
	StatusScript []RunStatus

	// ActionScript supplies pending actions by GetRun call index for
	// entries whose scripted status is RunRequiresAction.
	ActionScript map[int][]Action

	// MessageScript maps session id to the message list returned by
	// ListMessages (newest first).
	MessageScript map[string][]Message

	// Files and Content register known resources; unknown ids fall back
	// to synthesized metadata and bytes.
	Files   map[string]Resource
	Content map[string][]byte

	// DeleteResourceErr fails deletion for specific resource ids.
	DeleteResourceErr map[string]error

	// Err, when set, is returned by every call.
	Err error

	// Recorded activity.
	CreatedSessions  []string
	DeletedSessions  []string
	DeletedResources []string
	CreatedMessages  []CreatedMessage
	CreatedRuns      []string
	Submitted        [][]ActionResult
	Uploads          []UploadRecord
	GetRunCalls      int
	ListCalls        int
}

// NewMockBackend returns a mock with initialized script maps.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		ActionScript:      make(map[int][]Action),
		MessageScript:     make(map[string][]Message),
		Files:             make(map[string]Resource),
		Content:           make(map[string][]byte),
		DeleteResourceErr: make(map[string]error),
	}
}

func (m *MockBackend) CreateSession(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.sessionSeq++
	id := fmt.Sprintf("sess-%d", m.sessionSeq)
	m.CreatedSessions = append(m.CreatedSessions, id)
	return id, nil
}

func (m *MockBackend) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.DeletedSessions = append(m.DeletedSessions, sessionID)
	return nil
}

func (m *MockBackend) CreateMessage(ctx context.Context, sessionID, content string, resourceIDs []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.CreatedMessages = append(m.CreatedMessages, CreatedMessage{
		SessionID:   sessionID,
		Content:     content,
		ResourceIDs: resourceIDs,
	})
	return fmt.Sprintf("msg-%d", len(m.CreatedMessages)), nil
}

func (m *MockBackend) CreateRun(ctx context.Context, sessionID string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Run{}, m.Err
	}
	m.runSeq++
	m.CreatedRuns = append(m.CreatedRuns, sessionID)
	return Run{
		ID:        fmt.Sprintf("run-%d", m.runSeq),
		SessionID: sessionID,
		Status:    RunQueued,
	}, nil
}

func (m *MockBackend) GetRun(ctx context.Context, sessionID, runID string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Run{}, m.Err
	}
	idx := m.GetRunCalls
	m.GetRunCalls++

	status := RunCompleted
	if len(m.StatusScript) > 0 {
		if idx < len(m.StatusScript) {
			status = m.StatusScript[idx]
		} else {
			status = m.StatusScript[len(m.StatusScript)-1]
		}
	}

	run := Run{ID: runID, SessionID: sessionID, Status: status}
	if status == RunRequiresAction {
		if actions, ok := m.ActionScript[idx]; ok {
			run.PendingActions = actions
		} else {
			run.PendingActions = []Action{{ID: "call-1", Name: "web_lookup"}}
		}
	}
	return run, nil
}

func (m *MockBackend) SubmitActionResults(ctx context.Context, sessionID, runID string, results []ActionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Submitted = append(m.Submitted, results)
	return nil
}

func (m *MockBackend) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.ListCalls++
	return m.MessageScript[sessionID], nil
}

func (m *MockBackend) UploadResource(ctx context.Context, filename string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.resourceSeq++
	id := fmt.Sprintf("file-%d", m.resourceSeq)
	m.Files[id] = Resource{ID: id, Filename: filename}
	m.Content[id] = data
	m.Uploads = append(m.Uploads, UploadRecord{Filename: filename, Size: len(data)})
	return id, nil
}

func (m *MockBackend) GetResource(ctx context.Context, resourceID string) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Resource{}, m.Err
	}
	if res, ok := m.Files[resourceID]; ok {
		return res, nil
	}
	return Resource{ID: resourceID, Filename: "generated-" + resourceID}, nil
}

func (m *MockBackend) DownloadResource(ctx context.Context, resourceID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if data, ok := m.Content[resourceID]; ok {
		return data, nil
	}
	return []byte("bytes-of-" + resourceID), nil
}

func (m *MockBackend) DeleteResource(ctx context.Context, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if err, ok := m.DeleteResourceErr[resourceID]; ok {
		return err
	}
	m.DeletedResources = append(m.DeletedResources, resourceID)
	return nil
}

var _ Backend = (*MockBackend)(nil)
