package model

import (
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllama_EmbedTextsNormalizes(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		fmt.Fprint(w, `{"embedding":[3,4]}`)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "nomic-embed-text", "llama3", 0)
	vecs, err := o.EmbedTexts(t.Context(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, vecs, 2)
	assert.InDelta(t, 0.6, vecs[0][0], 1e-6)
	assert.InDelta(t, 0.8, vecs[0][1], 1e-6)
}

func TestOllama_ChatCollectsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Bon"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"jour"},"done":true}`)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "", "llama3", 0)
	out, err := o.Chat(t.Context(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{Temperature: 0.7})

	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out)
}

func TestOllama_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "missing", "", 0).EmbedTexts(t.Context(), []string{"a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNormalize64_ZeroVector(t *testing.T) {
	v := normalize64([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, v)
	u := normalize64([]float64{1, 1})
	assert.InDelta(t, 1/math.Sqrt2, u[0], 1e-9)
}
