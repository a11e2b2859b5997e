package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFile_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release_notes-v2.txt")
	writeFile(t, path, "Hello world.")

	docs, err := New().LoadFile(t.Context(), path)

	require.NoError(t, err)
	require.Len(t, docs, 1)
	d := docs[0]
	assert.Equal(t, "Hello world.", d.Content)
	assert.Equal(t, path, d.Metadata[types.MetaSource])
	assert.Equal(t, "text", d.Metadata[types.MetaType])
	assert.Equal(t, "release notes v2", d.Metadata[types.MetaTitle])
	assert.EqualValues(t, 12, d.Metadata[types.MetaSize])
	assert.Contains(t, d.Metadata, types.MetaModified)
	assert.Len(t, d.DocID, 16)
}

func TestLoadFile_PDFPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.pdf")
	writeFile(t, path, "%PDF-fake")

	l := New().WithExtractors(nil, func(context.Context, string) ([]string, error) {
		return []string{"Page one.", "   ", "Page three."}, nil
	})
	docs, err := l.LoadFile(t.Context(), path)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 1, docs[0].Metadata[types.MetaPage])
	assert.Equal(t, 3, docs[1].Metadata[types.MetaPage])
	assert.Equal(t, 3, docs[1].Metadata[types.MetaTotalPages])
	assert.Equal(t, "pdf", docs[1].Metadata[types.MetaType])
	assert.NotEqual(t, docs[0].DocID, docs[1].DocID)
}

func TestLoadFile_Docx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.docx")
	writeFile(t, path, "binary")

	var got string
	l := New().WithExtractors(func(p string) (string, error) {
		got = p
		return "Memo text.", nil
	}, nil)
	docs, err := l.LoadFile(t.Context(), path)

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, path, got)
	assert.Equal(t, "docx", docs[0].Metadata[types.MetaType])
}

func TestLoadFile_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	writeFile(t, path, "x")

	_, err := New().LoadFile(t.Context(), path)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLoad_DirectoryContinuesOnError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "first")
	writeFile(t, filepath.Join(dir, "nested", "b.md"), "second")
	writeFile(t, filepath.Join(dir, "skip.bin"), "ignored")
	writeFile(t, filepath.Join(dir, "broken.docx"), "x")

	l := New().WithExtractors(func(string) (string, error) {
		return "", errors.New("corrupt")
	}, nil)
	docs := l.Load(t.Context(), dir, filepath.Join(dir, "missing.txt"))

	require.Len(t, docs, 2)
	contents := []string{docs[0].Content, docs[1].Content}
	assert.ElementsMatch(t, []string{"first", "second"}, contents)
}

func TestLoadBytes(t *testing.T) {
	docs, err := New().LoadBytes(t.Context(), "upload.txt", []byte("from storage"))

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "upload.txt", docs[0].Metadata[types.MetaSource])
	assert.Equal(t, "from storage", docs[0].Content)

	_, err = New().LoadBytes(t.Context(), "upload.exe", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestPageNumber(t *testing.T) {
	nr, ok := pageNumber("my_book_12.pdf")
	assert.True(t, ok)
	assert.Equal(t, 12, nr)

	_, ok = pageNumber("book.pdf")
	assert.False(t, ok)
}

func TestPageFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "doc_2.pdf"), "")
	writeFile(t, filepath.Join(dir, "doc_1.pdf"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")

	files, err := pageFiles(dir)

	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "doc_1.pdf"), files[1])
}

func TestWithPDFCrop(t *testing.T) {
	l := New()
	assert.Same(t, l, l.WithPDFCrop(0, 0))
	assert.NotSame(t, l, l.WithPDFCrop(36, 24))
}
