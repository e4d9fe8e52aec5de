package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebridge/sagebridge/internal/assistant"
	"github.com/sagebridge/sagebridge/internal/channel"
	"github.com/sagebridge/sagebridge/internal/domain"
	"github.com/sagebridge/sagebridge/internal/logging"
	"github.com/sagebridge/sagebridge/internal/session"
	"github.com/sagebridge/sagebridge/internal/turn"
)

// fakeChannel records outbound messages for assertions.
type fakeChannel struct {
	id      string
	sent    []domain.OutboundMessage
	handler func(domain.InboundMessage)
}

func (f *fakeChannel) ID() string                    { return f.id }
func (f *fakeChannel) Start(_ context.Context) error { return nil }
func (f *fakeChannel) Stop(_ context.Context) error  { return nil }
func (f *fakeChannel) OnMessage(h func(domain.InboundMessage)) {
	f.handler = h
}
func (f *fakeChannel) Send(_ context.Context, msg domain.OutboundMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

func testRouter(t *testing.T, backend *assistant.MockBackend) (*Router, *fakeChannel) {
	t.Helper()
	log := logging.New(nil, "silent")
	table, err := session.OpenSnapshot("")
	require.NoError(t, err)
	mux := session.NewMultiplexer(table, backend, time.Hour, log)
	poller := turn.NewPoller(backend, mux, turn.PollerConfig{
		Interval: time.Millisecond,
		MaxPolls: 3,
	}, log)
	orch := turn.NewOrchestrator(backend, mux, poller, turn.NewNormalizer(backend, log), log)

	reg := channel.NewRegistry(log)
	ch := &fakeChannel{id: "discord"}
	reg.Register(ch)

	router := NewRouter(reg, orch, log)
	router.Wire()
	return router, ch
}

func inbound(body string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:        "msg-1",
		ChannelID: "discord",
		From:      "alice",
		ChatID:    "42",
		ChatType:  domain.ChatTypeGroup,
		Body:      body,
		Timestamp: time.Now(),
	}
}

func TestHandleInbound_RepliesWithAssistantText(t *testing.T) {
	backend := assistant.NewMockBackend()
	backend.MessageScript["sess-1"] = []assistant.Message{
		{
			ID:   "m2",
			Role: assistant.RoleAssistant,
			Content: []assistant.ContentBlock{
				{Type: assistant.BlockText, Text: &assistant.TextBlock{Value: "hi!"}},
			},
		},
		{
			ID:   "m1",
			Role: assistant.RoleUser,
			Content: []assistant.ContentBlock{
				{Type: assistant.BlockText, Text: &assistant.TextBlock{Value: "hello"}},
			},
		},
	}
	router, ch := testRouter(t, backend)

	router.HandleInbound(context.Background(), inbound("hello"))

	require.Len(t, ch.sent, 1)
	assert.Equal(t, "hi!", ch.sent[0].Body)
	assert.Equal(t, "42", ch.sent[0].To)
	assert.Equal(t, "msg-1", ch.sent[0].ReplyToID)

	require.Len(t, backend.CreatedMessages, 1)
	assert.Equal(t, "hello", backend.CreatedMessages[0].Content)
}

func TestHandleInbound_DMRepliesToOriginatingChat(t *testing.T) {
	backend := assistant.NewMockBackend()
	backend.MessageScript["sess-1"] = []assistant.Message{
		{
			ID:   "m1",
			Role: assistant.RoleAssistant,
			Content: []assistant.ContentBlock{
				{Type: assistant.BlockText, Text: &assistant.TextBlock{Value: "hey"}},
			},
		},
	}
	router, ch := testRouter(t, backend)

	// On Discord a DM arrives with the DM channel id in ChatID; the
	// author's user id is not a sendable target.
	msg := inbound("hello")
	msg.ChatType = domain.ChatTypeDM
	msg.ChatID = "dm-chan-7"
	router.HandleInbound(context.Background(), msg)

	require.NotEmpty(t, ch.sent)
	assert.Equal(t, "dm-chan-7", ch.sent[0].To)
	assert.NotEqual(t, msg.From, ch.sent[0].To)
}

func TestHandleInbound_ResetCommand(t *testing.T) {
	backend := assistant.NewMockBackend()
	router, ch := testRouter(t, backend)

	// Establish a session first, then reset it.
	router.HandleInbound(context.Background(), inbound("hello"))
	router.HandleInbound(context.Background(), inbound("  !reset  "))

	require.NotEmpty(t, ch.sent)
	assert.Equal(t, resetConfirmation, ch.sent[len(ch.sent)-1].Body)
	assert.Equal(t, []string{"sess-1"}, backend.DeletedSessions)

	// The next turn gets a brand-new session.
	router.HandleInbound(context.Background(), inbound("again"))
	assert.Len(t, backend.CreatedSessions, 2)
}

func TestHandleInbound_AttachmentBytesUploaded(t *testing.T) {
	backend := assistant.NewMockBackend()
	router, _ := testRouter(t, backend)

	msg := inbound("look at this")
	msg.Media = []domain.Attachment{
		{Filename: "notes.txt", Data: []byte("abc")},
	}
	router.HandleInbound(context.Background(), msg)

	require.Len(t, backend.Uploads, 1)
	assert.Equal(t, "notes.txt", backend.Uploads[0].Filename)
	require.Len(t, backend.CreatedMessages, 1)
	assert.Equal(t, []string{"file-1"}, backend.CreatedMessages[0].ResourceIDs)
}

func TestHandleInbound_TimeoutReply(t *testing.T) {
	backend := assistant.NewMockBackend()
	backend.StatusScript = []assistant.RunStatus{assistant.RunInProgress}
	router, ch := testRouter(t, backend)

	router.HandleInbound(context.Background(), inbound("slow"))

	require.Len(t, ch.sent, 1)
	assert.Equal(t, timeoutReply, ch.sent[0].Body)
}

func TestHandleInbound_RunFailureReply(t *testing.T) {
	backend := assistant.NewMockBackend()
	backend.StatusScript = []assistant.RunStatus{assistant.RunFailed}
	router, ch := testRouter(t, backend)

	router.HandleInbound(context.Background(), inbound("boom"))

	require.Len(t, ch.sent, 1)
	assert.Contains(t, ch.sent[0].Body, failureReply)
	assert.Contains(t, ch.sent[0].Body, "failed")
}

func TestHandleInbound_SessionResetNotice(t *testing.T) {
	backend := assistant.NewMockBackend()
	backend.StatusScript = []assistant.RunStatus{assistant.RunRequiresAction}
	backend.ActionScript[0] = []assistant.Action{
		{ID: "call-1", Name: assistant.ActionNewSession},
	}
	router, ch := testRouter(t, backend)

	router.HandleInbound(context.Background(), inbound("forget it all"))

	require.Len(t, ch.sent, 1)
	assert.Equal(t, resetNotice, ch.sent[0].Body)
}

func TestWire_RegistersHandlers(t *testing.T) {
	backend := assistant.NewMockBackend()
	_, ch := testRouter(t, backend)
	assert.NotNil(t, ch.handler)
}

func TestContextLock_SameContextSameLock(t *testing.T) {
	backend := assistant.NewMockBackend()
	router, _ := testRouter(t, backend)

	l1 := router.contextLock("discord:42")
	l2 := router.contextLock("discord:42")
	l3 := router.contextLock("discord:43")
	assert.Same(t, l1, l2)
	assert.NotSame(t, l1, l3)
}

func TestSendTo_UnknownChannel(t *testing.T) {
	backend := assistant.NewMockBackend()
	router, _ := testRouter(t, backend)

	err := router.SendTo(context.Background(), "telegram", "42", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel not found")
}
