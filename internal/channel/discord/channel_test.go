package discord

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebridge/sagebridge/internal/config"
	"github.com/sagebridge/sagebridge/internal/logging"
)

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("hello", 2000)
	assert.Equal(t, []string{"hello"}, chunks)
}

func TestSplitMessage_PrefersLineBoundary(t *testing.T) {
	text := strings.Repeat("a", 10) + "\n" + strings.Repeat("b", 10)
	chunks := splitMessage(text, 15)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 10)+"\n", chunks[0])
	assert.Equal(t, strings.Repeat("b", 10), chunks[1])
}

func TestSplitMessage_HardCutWithoutNewline(t *testing.T) {
	text := strings.Repeat("x", 45)
	chunks := splitMessage(text, 20)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 20)
	assert.Len(t, chunks[1], 20)
	assert.Len(t, chunks[2], 5)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestNew_AllowedChannelSet(t *testing.T) {
	ch := New(config.DiscordConfig{
		BotToken:        "token",
		AllowedChannels: []string{"123", "456"},
	}, logging.New(nil, "silent"))

	assert.True(t, ch.allowed["123"])
	assert.True(t, ch.allowed["456"])
	assert.False(t, ch.allowed["789"])
}

func TestStatus_NotConnected(t *testing.T) {
	ch := New(config.DiscordConfig{BotToken: "token"}, logging.New(nil, "silent"))
	st := ch.Status()
	assert.Equal(t, "discord", st.ChannelID)
	assert.False(t, st.Connected)
	assert.False(t, st.Running)
}
