package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/store"
)

type fakeService struct {
	indexed   []string
	questions []string
	indexFail bool
}

func (f *fakeService) IndexPaths(_ context.Context, paths []string) bool {
	f.indexed = append(f.indexed, paths...)
	return !f.indexFail
}

func (f *fakeService) Query(_ context.Context, question string) (string, bool) {
	f.questions = append(f.questions, question)
	if question == "fail" {
		return "", false
	}
	return "answer: " + question, true
}

func (f *fakeService) Stats(_ context.Context) (store.DetailedStats, error) {
	return store.DetailedStats{
		CollectionStats:  store.CollectionStats{TotalDocuments: 12, CollectionName: "documents"},
		HasEmbeddings:    true,
		EmbeddingDim:     768,
		SampleDocumentID: "0123456789abcdef",
	}, nil
}

func setupTestService(t *testing.T) *fakeService {
	t.Helper()
	svc := &fakeService{}
	SetServiceFactory(func(context.Context) (Service, error) { return svc, nil })
	t.Cleanup(func() {
		SetServiceFactory(nil)
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		statsJSON = false
	})
	return svc
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return buf.String(), err
}

func TestIndexCmd(t *testing.T) {
	svc := setupTestService(t)

	out, err := run(t, "", "index", "docs", "notes.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "notes.md"}, svc.indexed)
	assert.Contains(t, out, "Indexing 2 path(s)")
	assert.Contains(t, out, `Collection "documents" now holds 12 chunks`)
}

func TestIndexCmd_RequiresPath(t *testing.T) {
	setupTestService(t)

	_, err := run(t, "", "index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIndexCmd_Failure(t *testing.T) {
	svc := setupTestService(t)
	svc.indexFail = true

	_, err := run(t, "", "index", "missing")
	assert.ErrorContains(t, err, "indexing failed")
}

func TestAskCmd_SingleQuestion(t *testing.T) {
	svc := setupTestService(t)

	out, err := run(t, "", "ask", "what", "is", "rag?")
	require.NoError(t, err)
	assert.Equal(t, []string{"what is rag?"}, svc.questions)
	assert.Contains(t, out, "answer: what is rag?")
}

func TestAskCmd_Interactive(t *testing.T) {
	svc := setupTestService(t)

	out, err := run(t, "first\n\nfail\nsecond\nQuit\nnever\n", "ask")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "fail", "second"}, svc.questions)
	assert.Contains(t, out, "answer: first")
	assert.Contains(t, out, "could not answer")
	assert.Contains(t, out, "answer: second")
	assert.NotContains(t, out, "never")
}

func TestAskCmd_InteractiveEOF(t *testing.T) {
	svc := setupTestService(t)

	_, err := run(t, "only\n", "ask")
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, svc.questions)
}

func TestStatsCmd(t *testing.T) {
	setupTestService(t)

	out, err := run(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Collection:      documents")
	assert.Contains(t, out, "Chunks:          12")
	assert.Contains(t, out, "Embedding dim:   768")
}

func TestStatsCmd_JSON(t *testing.T) {
	setupTestService(t)

	out, err := run(t, "", "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_documents": 12`)
	assert.Contains(t, out, `"collection_name": "documents"`)
}

func TestService_NotConfigured(t *testing.T) {
	SetServiceFactory(nil)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	_, err := run(t, "", "stats")
	assert.ErrorContains(t, err, "not configured")
}

func TestService_FactoryError(t *testing.T) {
	SetServiceFactory(func(context.Context) (Service, error) { return nil, errors.New("no database") })
	t.Cleanup(func() { SetServiceFactory(nil) })

	_, err := run(t, "", "stats")
	assert.ErrorContains(t, err, "no database")
}
