package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kpauljoseph/pagecompose/internal/workspace"
	"github.com/kpauljoseph/pagecompose/pkg/logger"
)

type DirectoryScanner struct {
	logger *logger.Logger
}

func New(logger *logger.Logger) *DirectoryScanner {
	return &DirectoryScanner{
		logger: logger,
	}
}

// FindPDFs walks dir and returns every *.pdf below it, sorted by path so
// the resulting page order is stable.
func (s *DirectoryScanner) FindPDFs(ctx context.Context, dir string) ([]string, error) {
	var pdfs []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			s.logger.Trace("Scanning directory: %s", path)
			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		s.logger.Debug("Found PDF (%d): %s", len(pdfs)+1, path)
		pdfs = append(pdfs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(pdfs) == 0 {
		return nil, fmt.Errorf("no PDF files found in %s or its subdirectories", dir)
	}

	sort.Strings(pdfs)
	return pdfs, nil
}

// ReadFiles loads each path into an upload. A path may carry a page
// selection after a colon, as in "notes.pdf:1-3,5".
func (s *DirectoryScanner) ReadFiles(ctx context.Context, paths []string) ([]workspace.File, error) {
	files := make([]workspace.File, 0, len(paths))
	for _, arg := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path, pages := SplitSelection(arg)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		files = append(files, workspace.File{
			Name:         filepath.Base(path),
			Data:         data,
			LastModified: info.ModTime(),
			Pages:        pages,
		})
	}
	return files, nil
}

// SplitSelection separates "file.pdf:1-3" into path and selection. A colon
// that belongs to the path (a Windows drive or a name with no page list
// after it) is left alone.
func SplitSelection(arg string) (string, string) {
	i := strings.LastIndex(arg, ":")
	if i <= 1 || i == len(arg)-1 {
		return arg, ""
	}
	sel := arg[i+1:]
	if strings.Trim(sel, "0123456789-, ") != "" && sel != "all" {
		return arg, ""
	}
	return arg[:i], sel
}
