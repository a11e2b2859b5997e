package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/types"
)

func TestCleanText_RemovesNoise(t *testing.T) {
	cfg := types.DefaultCleaningConfig()
	c := NewCleaner(cfg)

	got := c.CleanText("Visit https://example.com/a?b=1 or mail john.doe@mail.org, call +33 6 12 34 56 78 now! #great")

	assert.NotContains(t, got, "example.com")
	assert.NotContains(t, got, "@")
	assert.NotContains(t, got, "12 34")
	assert.NotContains(t, got, "#")
	assert.Equal(t, got, strings.TrimSpace(got))
	assert.NotContains(t, got, "  ")
	assert.Contains(t, got, "Visit")
}

func TestCleanText_StagesToggle(t *testing.T) {
	c := NewCleaner(types.CleaningConfig{Lowercase: true})

	got := c.CleanText("Keep https://x.io   AS IS")

	assert.Equal(t, "keep https://x.io   as is", got)
}

func TestCleanText_KeepsAccentsAndPunctuation(t *testing.T) {
	c := NewCleaner(types.DefaultCleaningConfig())

	assert.Equal(t, "Élève, déjà-vu! ok?", c.CleanText("Élève, déjà-vu! ok?"))
}

func TestCleanText_UnicodeSpaces(t *testing.T) {
	c := NewCleaner(types.CleaningConfig{NormalizeWhitespace: true})

	assert.Equal(t, "prix 10 euros fin", c.CleanText("prix\u00a010\u202feuros \u00a0 fin\u3000"))
}

func TestCleanText_UnicodePhoneNumbers(t *testing.T) {
	c := NewCleaner(types.CleaningConfig{RemovePhone: true, NormalizeWhitespace: true})

	assert.Equal(t, "call now", c.CleanText("call +33\u00a06\u00a012\u00a034\u00a056\u00a078 now"))
	assert.Equal(t, "call now", c.CleanText("call \u0660\u0661\u0662\u0663\u0664\u0665\u0666\u0667\u0668\u0669 now"))
}

func TestCleanDocuments_DropsShortAndMarksCleaned(t *testing.T) {
	cfg := types.DefaultCleaningConfig()
	cfg.MinLength = 5
	c := NewCleaner(cfg)
	long := types.NewDocument("one two three four five six", map[string]any{"source": "a.txt"})
	short := types.NewDocument("too short", nil)

	out := c.CleanDocuments([]types.Document{short, long})

	require.Len(t, out, 1)
	assert.Equal(t, true, out[0].Metadata[types.MetaCleaned])
	assert.Equal(t, "a.txt", out[0].Metadata["source"])
	assert.NotEqual(t, long.DocID, out[0].DocID)
}

func TestCleanDocuments_EmptyContentDropped(t *testing.T) {
	c := NewCleaner(types.CleaningConfig{})

	assert.Empty(t, c.CleanDocuments([]types.Document{types.NewDocument("", nil)}))
}
