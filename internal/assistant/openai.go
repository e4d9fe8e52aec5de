package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sagebridge/sagebridge/internal/config"
	"github.com/sagebridge/sagebridge/internal/logging"
)

// assistantInstructions is the system prompt given to a freshly created
// assistant. Responses are rendered as Markdown by the platform glue.
const assistantInstructions = "You are an assistant helping people with their problems. " +
	"Your response text will be parsed as Markdown format, so please ensure " +
	"your text output is in standard Markdown."

// OpenAIClient implements Backend against the OpenAI Assistants v2 REST API.
type OpenAIClient struct {
	http        *resty.Client
	model       string
	assistantID string
	log         *logging.Logger
}

// NewOpenAIClient builds a client from configuration. Call EnsureAssistant
// before submitting runs.
func NewOpenAIClient(cfg config.OpenAIConfig, log *logging.Logger) *OpenAIClient {
	httpc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("OpenAI-Beta", "assistants=v2").
		SetTimeout(60 * time.Second)

	return &OpenAIClient{
		http:        httpc,
		model:       cfg.Model,
		assistantID: cfg.AssistantID,
		log:         log.Sub("openai"),
	}
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: HTTP %d: %s", e.StatusCode, e.Message)
}

// EnsureAssistant retrieves the configured assistant, or creates one with
// the configured model when no assistant id was set.
func (c *OpenAIClient) EnsureAssistant(ctx context.Context) error {
	if c.assistantID != "" {
		var out struct {
			ID string `json:"id"`
		}
		if err := c.do(ctx, "GET", "/assistants/"+c.assistantID, nil, &out); err != nil {
			return fmt.Errorf("retrieving assistant %s: %w", c.assistantID, err)
		}
		return nil
	}

	body := map[string]any{
		"name":         "sagebridge",
		"model":        c.model,
		"instructions": assistantInstructions,
		"tools": []map[string]any{
			{"type": "code_interpreter"},
			{"type": "file_search"},
			{
				"type": "function",
				"function": map[string]any{
					"name":        ActionNewSession,
					"description": "Discard the current conversation session and start a fresh one.",
					"parameters": map[string]any{
						"type":       "object",
						"properties": map[string]any{},
					},
				},
			},
		},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "POST", "/assistants", body, &out); err != nil {
		return fmt.Errorf("creating assistant: %w", err)
	}
	c.assistantID = out.ID
	c.log.Info().Str("assistantId", out.ID).Str("model", c.model).Msg("assistant created")
	return nil
}

// AssistantID returns the resolved assistant id, if any.
func (c *OpenAIClient) AssistantID() string { return c.assistantID }

func (c *OpenAIClient) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "POST", "/threads", map[string]any{}, &out); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return out.ID, nil
}

func (c *OpenAIClient) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.do(ctx, "DELETE", "/threads/"+sessionID, nil, nil); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

func (c *OpenAIClient) CreateMessage(ctx context.Context, sessionID, content string, resourceIDs []string) (string, error) {
	body := map[string]any{
		"role":    "user",
		"content": content,
	}
	if len(resourceIDs) > 0 {
		attachments := make([]map[string]any, 0, len(resourceIDs))
		for _, id := range resourceIDs {
			attachments = append(attachments, map[string]any{
				"file_id": id,
				"tools": []map[string]string{
					{"type": "code_interpreter"},
					{"type": "file_search"},
				},
			})
		}
		body["attachments"] = attachments
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "POST", "/threads/"+sessionID+"/messages", body, &out); err != nil {
		return "", fmt.Errorf("creating message: %w", err)
	}
	return out.ID, nil
}

func (c *OpenAIClient) CreateRun(ctx context.Context, sessionID string) (Run, error) {
	body := map[string]any{"assistant_id": c.assistantID}
	var out apiRun
	if err := c.do(ctx, "POST", "/threads/"+sessionID+"/runs", body, &out); err != nil {
		return Run{}, fmt.Errorf("creating run: %w", err)
	}
	return out.toRun(), nil
}

func (c *OpenAIClient) GetRun(ctx context.Context, sessionID, runID string) (Run, error) {
	var out apiRun
	if err := c.do(ctx, "GET", "/threads/"+sessionID+"/runs/"+runID, nil, &out); err != nil {
		return Run{}, fmt.Errorf("retrieving run %s: %w", runID, err)
	}
	return out.toRun(), nil
}

func (c *OpenAIClient) SubmitActionResults(ctx context.Context, sessionID, runID string, results []ActionResult) error {
	outputs := make([]map[string]string, 0, len(results))
	for _, r := range results {
		outputs = append(outputs, map[string]string{
			"tool_call_id": r.ActionID,
			"output":       r.Output,
		})
	}
	body := map[string]any{"tool_outputs": outputs}
	path := "/threads/" + sessionID + "/runs/" + runID + "/submit_tool_outputs"
	if err := c.do(ctx, "POST", path, body, nil); err != nil {
		return fmt.Errorf("submitting action results: %w", err)
	}
	return nil
}

func (c *OpenAIClient) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var out struct {
		Data []apiMessage `json:"data"`
	}
	if err := c.do(ctx, "GET", "/threads/"+sessionID+"/messages", nil, &out); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	msgs := make([]Message, 0, len(out.Data))
	for _, m := range out.Data {
		msgs = append(msgs, m.toMessage())
	}
	return msgs, nil
}

func (c *OpenAIClient) UploadResource(ctx context.Context, filename string, data []byte) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(data)).
		SetFormData(map[string]string{"purpose": "assistants"}).
		Post("/files")
	if err != nil {
		return "", fmt.Errorf("uploading resource %s: %w", filename, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("uploading resource %s: %w", filename, apiErrorFrom(resp))
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	return out.ID, nil
}

func (c *OpenAIClient) GetResource(ctx context.Context, resourceID string) (Resource, error) {
	var out struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
	}
	if err := c.do(ctx, "GET", "/files/"+resourceID, nil, &out); err != nil {
		return Resource{}, fmt.Errorf("retrieving resource %s: %w", resourceID, err)
	}
	return Resource{ID: out.ID, Filename: out.Filename}, nil
}

func (c *OpenAIClient) DownloadResource(ctx context.Context, resourceID string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/files/" + resourceID + "/content")
	if err != nil {
		return nil, fmt.Errorf("downloading resource %s: %w", resourceID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("downloading resource %s: %w", resourceID, apiErrorFrom(resp))
	}
	return resp.Body(), nil
}

func (c *OpenAIClient) DeleteResource(ctx context.Context, resourceID string) error {
	if err := c.do(ctx, "DELETE", "/files/"+resourceID, nil, nil); err != nil {
		return fmt.Errorf("deleting resource %s: %w", resourceID, err)
	}
	return nil
}

// do executes one JSON request and decodes the response into out (when
// non-nil). Transport failures and API errors surface as-is; nothing here
// retries.
func (c *OpenAIClient) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiErrorFrom(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func apiErrorFrom(resp *resty.Response) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(resp.Body())
	if err := json.Unmarshal(resp.Body(), &parsed); err == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}

// Wire-format structs, converted to the package types so callers never see
// the raw API shapes.

type apiRun struct {
	ID             string `json:"id"`
	ThreadID       string `json:"thread_id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
}

func (r apiRun) toRun() Run {
	run := Run{
		ID:        r.ID,
		SessionID: r.ThreadID,
		Status:    RunStatus(r.Status),
	}
	if r.RequiredAction != nil {
		for _, call := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
			run.PendingActions = append(run.PendingActions, Action{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
	}
	return run
}

type apiMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text *struct {
			Value       string `json:"value"`
			Annotations []struct {
				Type         string `json:"type"`
				Text         string `json:"text"`
				StartIndex   int    `json:"start_index"`
				EndIndex     int    `json:"end_index"`
				FileCitation *struct {
					FileID string `json:"file_id"`
					Quote  string `json:"quote"`
				} `json:"file_citation"`
				FilePath *struct {
					FileID string `json:"file_id"`
				} `json:"file_path"`
			} `json:"annotations"`
		} `json:"text"`
		ImageFile *struct {
			FileID string `json:"file_id"`
		} `json:"image_file"`
	} `json:"content"`
}

func (m apiMessage) toMessage() Message {
	msg := Message{ID: m.ID, Role: m.Role}
	for _, c := range m.Content {
		block := ContentBlock{Type: c.Type}
		if c.Text != nil {
			tb := &TextBlock{Value: c.Text.Value}
			for _, a := range c.Text.Annotations {
				ann := Annotation{
					Type:       a.Type,
					Text:       a.Text,
					StartIndex: a.StartIndex,
					EndIndex:   a.EndIndex,
				}
				switch {
				case a.FileCitation != nil:
					ann.FileID = a.FileCitation.FileID
					ann.Quote = a.FileCitation.Quote
				case a.FilePath != nil:
					ann.FileID = a.FilePath.FileID
				}
				tb.Annotations = append(tb.Annotations, ann)
			}
			block.Text = tb
		}
		if c.ImageFile != nil {
			block.ImageFileID = c.ImageFile.FileID
		}
		msg.Content = append(msg.Content, block)
	}
	return msg
}

var _ Backend = (*OpenAIClient)(nil)
