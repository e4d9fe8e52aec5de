package irc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebridge/sagebridge/internal/config"
	"github.com/sagebridge/sagebridge/internal/domain"
	"github.com/sagebridge/sagebridge/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestNew(t *testing.T) {
	cfg := config.IRCConfig{
		Server:   "irc.libera.chat",
		Port:     6697,
		Nick:     "sagebridge",
		Channels: []string{"#test"},
		UseTLS:   true,
	}
	ch := New(cfg, testLogger())
	assert.Equal(t, "irc", ch.ID())
}

func TestStatus_NotStarted(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())
	status := ch.Status()

	assert.Equal(t, "irc", status.ChannelID)
	assert.False(t, status.Connected)
	assert.False(t, status.Running)
	assert.Empty(t, status.LastError)
}

func TestOnMessage(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())

	var received domain.InboundMessage
	ch.OnMessage(func(msg domain.InboundMessage) {
		received = msg
	})

	ch.mu.RLock()
	handler := ch.handler
	ch.mu.RUnlock()
	require.NotNil(t, handler)

	handler(domain.InboundMessage{
		ID:        "test-1",
		ChannelID: "irc",
		From:      "testuser",
		ChatID:    "#test",
		Body:      "hello",
		Timestamp: time.Now(),
	})

	assert.Equal(t, "test-1", received.ID)
	assert.Equal(t, "testuser", received.From)
	assert.Equal(t, "hello", received.Body)
}

func TestSend_NotConnected(t *testing.T) {
	ch := New(config.IRCConfig{}, testLogger())
	err := ch.Send(context.Background(), domain.OutboundMessage{To: "#test", Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestSplitMessage_Short(t *testing.T) {
	result := splitMessage("hello world", 400)
	assert.Equal(t, []string{"hello world"}, result)
}

func TestSplitMessage_NewlinesBecomeSeparateLines(t *testing.T) {
	result := splitMessage("line one\nline two\nline three", 400)
	assert.Equal(t, []string{"line one", "line two", "line three"}, result)
}

func TestSplitMessage_BlankLinesDropped(t *testing.T) {
	result := splitMessage("first\n\nsecond", 400)
	assert.Equal(t, []string{"first", "second"}, result)
}

func TestSplitMessage_EmptyBodyProducesNoChunks(t *testing.T) {
	assert.Empty(t, splitMessage("", 400))
	assert.Empty(t, splitMessage("\n\n", 400))
}

func TestSplitMessage_LongLine(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	result := splitMessage(text, 10)
	assert.Equal(t, []string{"abcdefghij", "klmnopqrst", "uvwxyz"}, result)
}
