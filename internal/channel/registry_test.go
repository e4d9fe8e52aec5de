package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebridge/sagebridge/internal/domain"
	"github.com/sagebridge/sagebridge/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// mockChannel is a test double for domain.Channel.
type mockChannel struct {
	id       string
	started  bool
	stopped  bool
	sent     []domain.OutboundMessage
	handler  func(domain.InboundMessage)
	startErr error
	stopErr  error
	sendErr  error
}

func (m *mockChannel) ID() string { return m.id }
func (m *mockChannel) Start(_ context.Context) error {
	m.started = true
	return m.startErr
}
func (m *mockChannel) Stop(_ context.Context) error {
	m.stopped = true
	return m.stopErr
}
func (m *mockChannel) Send(_ context.Context, msg domain.OutboundMessage) error {
	m.sent = append(m.sent, msg)
	return m.sendErr
}
func (m *mockChannel) OnMessage(handler func(domain.InboundMessage)) {
	m.handler = handler
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())
	ch := &mockChannel{id: "test"}
	reg.Register(ch)

	got, ok := reg.Get("test")
	require.True(t, ok)
	assert.Equal(t, "test", got.ID())

	_, ok = reg.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_List(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&mockChannel{id: "irc"})
	reg.Register(&mockChannel{id: "discord"})

	ids := reg.List()
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "irc")
	assert.Contains(t, ids, "discord")
}

func TestRegistry_Count(t *testing.T) {
	reg := NewRegistry(testLogger())
	assert.Equal(t, 0, reg.Count())

	reg.Register(&mockChannel{id: "irc"})
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_StartAll(t *testing.T) {
	reg := NewRegistry(testLogger())
	ch1 := &mockChannel{id: "irc"}
	ch2 := &mockChannel{id: "discord"}
	reg.Register(ch1)
	reg.Register(ch2)

	reg.StartAll(context.Background())
	// StartAll launches goroutines; wait briefly for them to execute.
	assert.Eventually(t, func() bool { return ch1.started }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return ch2.started }, time.Second, 10*time.Millisecond)
}

func TestRegistry_StartAll_FailingChannelDoesNotBlockOthers(t *testing.T) {
	reg := NewRegistry(testLogger())
	broken := &mockChannel{id: "broken", startErr: assert.AnError}
	ok := &mockChannel{id: "irc"}
	reg.Register(broken)
	reg.Register(ok)

	reg.StartAll(context.Background())
	assert.Eventually(t, func() bool { return broken.started && ok.started }, time.Second, 10*time.Millisecond)
}

func TestRegistry_StopAll(t *testing.T) {
	reg := NewRegistry(testLogger())
	ch1 := &mockChannel{id: "irc"}
	ch2 := &mockChannel{id: "discord"}
	reg.Register(ch1)
	reg.Register(ch2)

	reg.StopAll(context.Background())
	assert.True(t, ch1.stopped)
	assert.True(t, ch2.stopped)
}
