// Package storage keeps uploaded source files on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"docrag/types"
)

var (
	ErrNotFound       = errors.New("file not found")
	ErrInvalidName    = errors.New("invalid file name")
	ErrNotAllowedType = errors.New("file type not allowed")
)

var allowedExtensions = map[string]struct{}{
	".txt":  {},
	".pdf":  {},
	".docx": {},
	".md":   {},
	".html": {},
}

type FileStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]types.FileInfo, error)
	Size(ctx context.Context, name string) (int64, error)
}

func Allowed(name string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// SafeName strips directories and characters outside a conservative set,
// and rejects names with a disallowed extension.
func SafeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteRune('_')
		}
	}
	clean := strings.TrimLeft(sb.String(), "._")
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !Allowed(clean) {
		return "", fmt.Errorf("%w: %q", ErrNotAllowedType, name)
	}
	return clean, nil
}
