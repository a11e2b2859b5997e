package processor

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/tokenizer"
	"docrag/types"
)

func testChunker(size, overlap int) *Chunker {
	cfg := types.DefaultChunkingConfig()
	cfg.ChunkSize = size
	cfg.ChunkOverlap = overlap
	return NewChunker(cfg, tokenizer.Words{})
}

func words(n int, prefix string) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(w, " ")
}

func TestCreateChunks_SmallDocumentSingleChunk(t *testing.T) {
	doc := types.NewDocument("A. B. C.", map[string]any{"source": "a.txt"})

	chunks := testChunker(1000, 200).CreateChunks([]types.Document{doc})

	require.Len(t, chunks, 1)
	assert.Equal(t, "A. B. C.", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Metadata[types.MetaChunkIndex])
	assert.Equal(t, doc.DocID, chunks[0].Metadata[types.MetaOriginalDocID])
	assert.Equal(t, true, chunks[0].Metadata[types.MetaIsChunk])
	assert.Equal(t, "a.txt", chunks[0].Metadata["source"])
	assert.NotEqual(t, doc.DocID, chunks[0].DocID)
}

func TestCreateChunks_SplitBetweenParagraphs(t *testing.T) {
	doc := types.NewDocument("One two three.\n\nFour five six.", nil)

	chunks := testChunker(3, 0).CreateChunks([]types.Document{doc})

	require.Len(t, chunks, 2)
	assert.Equal(t, "One two three.", chunks[0].Content)
	assert.Equal(t, "Four five six.", chunks[1].Content)
	assert.Equal(t, 1, chunks[1].Metadata[types.MetaChunkIndex])
}

// Sentences are at most 5 tokens and the overlap 4, so seed plus sentence
// always fits in 10.
func TestCreateChunks_TokenAndOverlapBounds(t *testing.T) {
	var sentences []string
	for i := range 40 {
		sentences = append(sentences, words(1+i%5, fmt.Sprintf("s%dw", i))+".")
	}
	doc := types.NewDocument(strings.Join(sentences, " "), nil)
	c := testChunker(10, 4)
	c.cfg.MaxChunksPerDoc = 0

	chunks := c.CreateChunks([]types.Document{doc})
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(strings.Fields(ch.Content)), 10, "chunk %d", i)
		if i == 0 {
			continue
		}
		prev := splitSentences(chunks[i-1].Content)
		cur := splitSentences(ch.Content)
		shared := 0
		for k := 1; k <= len(prev) && k <= len(cur); k++ {
			if strings.Join(prev[len(prev)-k:], " ") == strings.Join(cur[:k], " ") {
				shared = len(strings.Fields(strings.Join(cur[:k], " ")))
			}
		}
		assert.LessOrEqual(t, shared, 4, "overlap of chunk %d", i)
	}

	joined := make([]string, len(chunks))
	for i, ch := range chunks {
		joined[i] = ch.Content
	}
	all := strings.Join(joined, " | ")
	for _, s := range sentences {
		assert.Contains(t, all, s)
	}
}

func TestCreateChunks_OverlapCarriesTrailingSentence(t *testing.T) {
	doc := types.NewDocument("a b c. d e. f g h.", nil)

	chunks := testChunker(5, 2).CreateChunks([]types.Document{doc})

	require.Len(t, chunks, 2)
	assert.Equal(t, "a b c. d e.", chunks[0].Content)
	assert.Equal(t, "d e. f g h.", chunks[1].Content)
}

func TestCreateChunks_OverlapSeedKeptWhole(t *testing.T) {
	doc := types.NewDocument("a b c d. e f g h. i j k l m n o p.", nil)

	chunks := testChunker(10, 8).CreateChunks([]types.Document{doc})

	require.Len(t, chunks, 2)
	assert.Equal(t, "a b c d. e f g h.", chunks[0].Content)
	// the 8 token seed stays even though seed plus sentence exceeds ChunkSize
	assert.Equal(t, "a b c d. e f g h. i j k l m n o p.", chunks[1].Content)
}

func TestCreateChunks_OversizedSentenceSplitByWords(t *testing.T) {
	long := words(25, "w")
	doc := types.NewDocument("Short one. "+long+". Tail here.", nil)

	chunks := testChunker(10, 3).CreateChunks([]types.Document{doc})

	require.Len(t, chunks, 5)
	assert.Equal(t, "Short one.", chunks[0].Content)
	assert.Len(t, strings.Fields(chunks[1].Content), 10)
	assert.Len(t, strings.Fields(chunks[2].Content), 10)
	assert.Len(t, strings.Fields(chunks[3].Content), 5)
	// no overlap is seeded after an oversized split
	assert.Equal(t, "Tail here.", chunks[4].Content)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Metadata[types.MetaChunkIndex])
	}
}

func TestCreateChunks_MaxChunksPerDoc(t *testing.T) {
	var sentences []string
	for i := range 10 {
		sentences = append(sentences, fmt.Sprintf("Sentence number %d.", i))
	}
	doc := types.NewDocument(strings.Join(sentences, " "), nil)
	c := testChunker(3, 0)
	c.cfg.MaxChunksPerDoc = 4

	chunks := c.CreateChunks([]types.Document{doc})

	assert.Len(t, chunks, 4)
}

func TestCreateChunks_Deterministic(t *testing.T) {
	doc := types.NewDocument("First sentence here. Second sentence here.\n\nThird one.", map[string]any{"page": 2})
	c := testChunker(4, 2)

	a := c.CreateChunks([]types.Document{doc})
	b := c.CreateChunks([]types.Document{doc})

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].DocID, b[i].DocID)
	}
}

func TestCreateChunks_NoParagraphOrSentenceSplit(t *testing.T) {
	cfg := types.DefaultChunkingConfig()
	cfg.SplitBySentence = false
	cfg.RespectParagraph = false
	c := NewChunker(cfg, tokenizer.Words{})

	chunks := c.CreateChunks([]types.Document{types.NewDocument("One. Two.\n\nThree.", nil)})

	require.Len(t, chunks, 1)
	assert.Equal(t, "One. Two.\n\nThree.", chunks[0].Content)
}

type flakyTokenizer struct{}

func (flakyTokenizer) Count(text string) (int, error) {
	if strings.Contains(text, "poison") {
		return 0, errors.New("cannot encode")
	}
	return len(strings.Fields(text)), nil
}

func TestCreateChunks_FailingDocumentSkipped(t *testing.T) {
	c := NewChunker(types.DefaultChunkingConfig(), flakyTokenizer{})
	docs := []types.Document{
		types.NewDocument("This has poison in it.", nil),
		types.NewDocument("This one is fine.", nil),
	}

	chunks := c.CreateChunks(docs)

	require.Len(t, chunks, 1)
	assert.Equal(t, "This one is fine.", chunks[0].Content)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello world. How are you?  Fine!", []string{"Hello world.", "How are you?", "Fine!"}},
		{"Version 1.2 is out.Next", []string{"Version 1.2 is out.Next"}},
		{"Wait... what?\nYes!", []string{"Wait...", "what?", "Yes!"}},
		{"   ", nil},
		{"Déjà vu. Ça va.", []string{"Déjà vu.", "Ça va."}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitSentences(tt.in), tt.in)
	}
}

func TestSplitParagraphs(t *testing.T) {
	got := splitParagraphs("  first  \n\n\n\nsecond\nline\n\n  ")
	assert.Equal(t, []string{"first", "second\nline"}, got)
}
