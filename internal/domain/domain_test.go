package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextID(t *testing.T) {
	assert.Equal(t, "discord:12345", ContextID("discord", "12345"))
	assert.Equal(t, "irc:#general", ContextID("irc", "#general"))
}

func TestContentPartConstructors(t *testing.T) {
	text := TextContent(TextPart{Value: "hi"})
	assert.Equal(t, PartText, text.Kind)
	assert.Equal(t, "hi", text.Text.Value)
	assert.Nil(t, text.Image)

	img := ImageContent(ImagePart{ResourceID: "file-1", Filename: "plot.png"})
	assert.Equal(t, PartImage, img.Kind)
	assert.Equal(t, "plot.png", img.Image.Filename)
	assert.Nil(t, img.Text)

	reset := SessionResetContent()
	assert.Equal(t, PartSessionReset, reset.Kind)
	assert.Nil(t, reset.Text)
	assert.Nil(t, reset.Image)
}
