package extract

import (
	"context"
	"time"
)

// PageExtractor turns raw document bytes into cleaned per-page text.
type PageExtractor interface {
	ExtractPages(ctx context.Context, data []byte) (PageExtractionResult, error)
}

// PageExtractionResult carries one cleaned text blob per page, in page order.
type PageExtractionResult struct {
	Pages []string // 1 element per page, index 0 = page 1
	// DegradedPages lists 1-based page numbers whose plain text fell below
	// the density threshold (image-heavy or sparse pages).
	DegradedPages []int
	Duration      time.Duration
}
