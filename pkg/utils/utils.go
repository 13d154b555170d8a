package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ISO A4 in points, matching the size most PDF libraries ship as their default.
const (
	A4_WIDTH_PT  = 595.28
	A4_HEIGHT_PT = 841.89
)

func GetDefaultOutputDir() string {
	tmpDir, err := os.MkdirTemp("", "pagecompose-output-*")
	if err != nil {
		// If we can't create a temp directory, fall back to local directory
		return "pagecompose-output"
	}
	return tmpDir
}

// BaseName strips directory and extension: "/a/b/report.pdf" -> "report".
func BaseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
