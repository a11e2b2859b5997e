// Package loader reads source files into documents.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"docrag/types"
)

var ErrUnsupportedType = errors.New("unsupported file type")

const (
	kindText = "text"
	kindPDF  = "pdf"
	kindDocx = "docx"
	kindHTML = "html"
)

var kinds = map[string]string{
	".txt":      kindText,
	".md":       kindText,
	".markdown": kindText,
	".csv":      kindText,
	".pdf":      kindPDF,
	".docx":     kindDocx,
	".html":     kindHTML,
	".htm":      kindHTML,
}

// Extractor returns the plain text of a single file.
type Extractor func(path string) (string, error)

// PageExtractor returns the text of every page of a PDF, in page order.
type PageExtractor func(ctx context.Context, path string) ([]string, error)

type Loader struct {
	extract      Extractor
	extractPages PageExtractor
	logger       *slog.Logger
}

func New() *Loader {
	return &Loader{
		extract:      docconvText,
		extractPages: pdfPages,
		logger:       slog.Default(),
	}
}

// WithExtractors replaces the text extractors. Nil keeps the current one.
func (l *Loader) WithExtractors(extract Extractor, pages PageExtractor) *Loader {
	cp := *l
	if extract != nil {
		cp.extract = extract
	}
	if pages != nil {
		cp.extractPages = pages
	}
	return &cp
}

// WithPDFCrop trims top and bottom points from PDF pages before their text
// is extracted. Zero margins leave the extractor unchanged.
func (l *Loader) WithPDFCrop(top, bottom float64) *Loader {
	if top <= 0 && bottom <= 0 {
		return l
	}
	return l.WithExtractors(nil, CroppedPages(top, bottom))
}

func Supported(path string) bool {
	_, ok := kinds[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load reads every file or directory in sources. A source that fails is
// logged and skipped.
func (l *Loader) Load(ctx context.Context, sources ...string) []types.Document {
	var docs []types.Document
	for _, src := range sources {
		loaded, err := l.LoadPath(ctx, src)
		if err != nil {
			l.logger.Error("[LOADER] error loading source", "source", src, "error", err)
			continue
		}
		l.logger.Info("[LOADER] loaded documents", "source", src, "count", len(loaded))
		docs = append(docs, loaded...)
	}
	return docs
}

// LoadPath loads a single file, or every file below a directory.
func (l *Loader) LoadPath(ctx context.Context, path string) ([]types.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("source %s does not exist: %w", path, err)
	}
	if !info.IsDir() {
		return l.LoadFile(ctx, path)
	}

	var docs []types.Document
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		loaded, err := l.LoadFile(ctx, p)
		if err != nil {
			l.logger.Error("[LOADER] error loading file", "path", p, "error", err)
			return nil
		}
		docs = append(docs, loaded...)
		return nil
	})
	return docs, err
}

func (l *Loader) LoadFile(ctx context.Context, path string) ([]types.Document, error) {
	return l.loadFile(ctx, path, path)
}

// LoadBytes loads an in-memory file, e.g. one read from object storage.
// name is recorded as the document source.
func (l *Loader) LoadBytes(ctx context.Context, name string, data []byte) ([]types.Document, error) {
	if !Supported(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, name)
	}
	dir, err := os.MkdirTemp("", "docrag-load-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	tmp := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return nil, err
	}
	return l.loadFile(ctx, tmp, name)
}

func (l *Loader) loadFile(ctx context.Context, path, source string) ([]types.Document, error) {
	kind, ok := kinds[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	base := map[string]any{
		types.MetaSource:   source,
		types.MetaType:     kind,
		types.MetaTitle:    title(source),
		types.MetaSize:     info.Size(),
		types.MetaCreated:  info.ModTime().Unix(),
		types.MetaModified: info.ModTime().Unix(),
	}

	switch kind {
	case kindText:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("file %s is not valid utf-8", path)
		}
		return []types.Document{types.NewDocument(string(data), base)}, nil

	case kindPDF:
		pages, err := l.extractPages(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("read pdf %s: %w", path, err)
		}
		docs := make([]types.Document, 0, len(pages))
		for i, text := range pages {
			if strings.TrimSpace(text) == "" {
				continue
			}
			meta := copyMeta(base)
			meta[types.MetaPage] = i + 1
			meta[types.MetaTotalPages] = len(pages)
			docs = append(docs, types.NewDocument(text, meta))
		}
		return docs, nil

	default:
		text, err := l.extract(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return []types.Document{types.NewDocument(text, base)}, nil
	}
}

func docconvText(path string) (string, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// title turns "annual_report-2024.pdf" into "annual report 2024".
func title(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}

func copyMeta(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
