package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "report.pdf", want: "report.pdf"},
		{in: "../../etc/notes.txt", want: "notes.txt"},
		{in: `C:\docs\Year Plan.docx`, want: "Year_Plan.docx"},
		{in: "résumé.md", want: "rsum.md"},
		{in: "..hidden.txt", want: "hidden.txt"},
		{in: "image.png", wantErr: ErrNotAllowedType},
		{in: "", wantErr: ErrInvalidName},
		{in: "$$$", wantErr: ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SafeName(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed("a.PDF"))
	assert.True(t, Allowed("a.html"))
	assert.False(t, Allowed("a.exe"))
	assert.False(t, Allowed("noext"))
}

func TestLocalStore(t *testing.T) {
	ctx := t.Context()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "b.txt", []byte("hello")))
	require.NoError(t, s.Save(ctx, "a.txt", []byte("hi")))

	data, err := s.Open(ctx, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	size, err := s.Size(ctx, "b.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	files, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.EqualValues(t, 2, files[0].Size)

	require.NoError(t, s.Delete(ctx, "a.txt"))
	assert.ErrorIs(t, s.Delete(ctx, "a.txt"), ErrNotFound)
	_, err = s.Open(ctx, "a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Size(ctx, "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Save(t.Context(), "../x.txt", []byte("x")), ErrInvalidName)
	_, err = s.Open(t.Context(), "..")
	assert.ErrorIs(t, err, ErrInvalidName)
}
