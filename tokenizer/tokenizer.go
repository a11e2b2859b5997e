// Package tokenizer counts tokens the way the embedding and chat models see them.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

type Tokenizer interface {
	Count(text string) (int, error)
}

// Tiktoken wraps a BPE encoding. The encoding is loaded on first use.
type Tiktoken struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func New(encoding string) *Tiktoken {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Tiktoken{encoding: encoding}
}

func (t *Tiktoken) load() (*tiktoken.Tiktoken, error) {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.GetEncoding(t.encoding)
		if t.err != nil {
			t.err = fmt.Errorf("load encoding %s: %w", t.encoding, t.err)
		}
	})
	return t.enc, t.err
}

func (t *Tiktoken) Count(text string) (int, error) {
	enc, err := t.load()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Words counts whitespace separated words. Used where BPE data is unavailable.
type Words struct{}

func (Words) Count(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

// CountOrZero is a helper for log lines where a failed count is not worth an error.
func CountOrZero(t Tokenizer, text string) int {
	n, err := t.Count(text)
	if err != nil {
		return 0
	}
	return n
}
