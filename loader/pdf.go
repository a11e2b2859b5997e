package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// pdfPages splits the file into single page PDFs and extracts the text of
// each. A page that fails to convert yields an empty string.
func pdfPages(ctx context.Context, path string) ([]string, error) {
	conf := model.NewDefaultConfiguration()

	total, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}

	dir, err := os.MkdirTemp("", "docrag-pages-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if err := api.SplitFile(path, dir, 1, conf); err != nil {
		return nil, fmt.Errorf("split pdf: %w", err)
	}

	files, err := pageFiles(dir)
	if err != nil {
		return nil, err
	}

	pages := make([]string, total)
	for nr, file := range files {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if nr < 1 || nr > total {
			continue
		}
		res, err := docconv.ConvertPath(file)
		if err != nil {
			continue
		}
		pages[nr-1] = res.Body
	}
	return pages, nil
}

// CroppedPages returns a PageExtractor that cuts top and bottom points
// (1 pt = 1/72 inch) off every page before extraction, dropping running
// headers and footers.
func CroppedPages(top, bottom float64) PageExtractor {
	return func(ctx context.Context, path string) ([]string, error) {
		dir, err := os.MkdirTemp("", "docrag-crop-*")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)

		cropped := filepath.Join(dir, filepath.Base(path))
		if err := cropMargins(path, cropped, top, bottom); err != nil {
			return nil, err
		}
		return pdfPages(ctx, cropped)
	}
}

func cropMargins(in, out string, top, bottom float64) error {
	box, err := model.ParseBox(fmt.Sprintf("%.2f 0 %.2f 0", top, bottom), types.POINTS)
	if err != nil {
		return fmt.Errorf("parse crop box: %w", err)
	}
	if err := api.CropFile(in, out, []string{"1-"}, box, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("crop pdf: %w", err)
	}
	return nil
}

// pageFiles maps page numbers to the files written by the splitter, which
// are named "<base>_<page>.pdf".
func pageFiles(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make(map[int]string, len(names))
	for _, name := range names {
		if nr, ok := pageNumber(name); ok {
			out[nr] = filepath.Join(dir, name)
		}
	}
	return out, nil
}

func pageNumber(name string) (int, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndex(stem, "_")
	if i < 0 {
		return 0, false
	}
	nr, err := strconv.Atoi(stem[i+1:])
	if err != nil {
		return 0, false
	}
	return nr, true
}
