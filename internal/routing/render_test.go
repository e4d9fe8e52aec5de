package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebridge/sagebridge/internal/domain"
)

func TestRenderText_Plain(t *testing.T) {
	unit := renderText(&domain.TextPart{Value: "hello"})
	assert.Equal(t, "hello", unit.Body)
	assert.Empty(t, unit.Media)
}

func TestRenderText_CitationsBecomeFootnotes(t *testing.T) {
	unit := renderText(&domain.TextPart{
		Value: "Gophers burrow【4:0†a】 and swim【4:1†b】.",
		Citations: []domain.Citation{
			{Placeholder: "【4:0†a】", ResourceID: "file-1", Quote: "burrowing rodents"},
			{Placeholder: "【4:1†b】", ResourceID: "file-2", Quote: "strong swimmers"},
		},
	})

	assert.Equal(t,
		"Gophers burrow[1] and swim[2].\n\n[1] burrowing rodents\n[2] strong swimmers",
		unit.Body)
}

func TestRenderText_CitationWithoutQuote(t *testing.T) {
	unit := renderText(&domain.TextPart{
		Value: "See【1†src】.",
		Citations: []domain.Citation{
			{Placeholder: "【1†src】", ResourceID: "file-1"},
		},
	})
	assert.Equal(t, "See[1].", unit.Body)
}

func TestRenderText_FileRefsAttach(t *testing.T) {
	unit := renderText(&domain.TextPart{
		Value: "Saved to sandbox:/mnt/data/report.csv",
		Files: []domain.FileRef{
			{
				Placeholder: "sandbox:/mnt/data/report.csv",
				ResourceID:  "file-3",
				Filename:    "report.csv",
				Data:        []byte("a,b"),
			},
		},
	})

	assert.Equal(t, "Saved to report.csv", unit.Body)
	require.Len(t, unit.Media, 1)
	assert.Equal(t, "report.csv", unit.Media[0].Filename)
	assert.Equal(t, []byte("a,b"), unit.Media[0].Data)
}

func TestRenderParts_ImageAndReset(t *testing.T) {
	parts := []domain.ContentPart{
		domain.ImageContent(domain.ImagePart{
			ResourceID: "file-5",
			Filename:   "chart.png",
			Data:       []byte{1, 2},
		}),
		domain.SessionResetContent(),
	}

	units := renderParts(parts)
	require.Len(t, units, 2)

	assert.Empty(t, units[0].Body)
	require.Len(t, units[0].Media, 1)
	assert.Equal(t, "chart.png", units[0].Media[0].Filename)

	assert.Equal(t, resetNotice, units[1].Body)
	assert.Empty(t, units[1].Media)
}
