package pdf

import (
	"context"

	"github.com/kpauljoseph/pagecompose/pkg/models"
)

// Progress is called once per finished page. Calls may come from several
// goroutines but are serialised.
type Progress func(done, total int)

type PageAnalyzer interface {
	ProcessPDF(ctx context.Context, data []byte, progress Progress) ([]models.PageAnalysis, error)
}

var _ PageAnalyzer = (*Processor)(nil)
