package tokenizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWords_Count(t *testing.T) {
	n, err := Words{}.Count("  one two\tthree\nfour ")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = Words{}.Count("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNew_DefaultEncoding(t *testing.T) {
	tok := New("")
	assert.Equal(t, DefaultEncoding, tok.encoding)
}

type failing struct{}

func (failing) Count(string) (int, error) { return 0, errors.New("boom") }

func TestCountOrZero(t *testing.T) {
	assert.Equal(t, 0, CountOrZero(failing{}, "a b c"))
	assert.Equal(t, 3, CountOrZero(Words{}, "a b c"))
}
