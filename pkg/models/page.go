package models

import (
	"time"
)

// SourceID identifies a loaded source document by its content.
type SourceID string

func (id SourceID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

type PageDimensions struct {
	Width  float64
	Height float64
}

func (d PageDimensions) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

// PageRef is one page instance in the working sequence. StableID is issued
// once per insertion and never reused.
type PageRef struct {
	StableID      string   `json:"stable_id"`
	SourceID      SourceID `json:"source_id"`
	OriginalIndex int      `json:"original_index"`
}

type SourceInfo struct {
	ID           SourceID  `json:"id"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	PageCount    int       `json:"page_count"`
}

type ClassificationResult struct {
	IsDark     bool    `json:"is_dark"`
	Confidence float64 `json:"confidence"`
}

// PageAnalysis is the per-page output of rasterising a document.
type PageAnalysis struct {
	Index          int
	Dimensions     PageDimensions
	Classification ClassificationResult
	Hash           string
}
