package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/legasys-dev/demand-pipeline/internal/common"
)

const (
	// defaultDensityThreshold is the minimum count of alphabetic runes in a
	// page's plain text before the page is flagged as extraction-degraded.
	defaultDensityThreshold = 50

	// rowTolerance groups positioned fragments into the same line when
	// their Y coordinates differ by no more than this many points.
	rowTolerance = 3.0

	// wordGapFactor of the font size is the horizontal gap at which two
	// adjacent fragments on a line get a space between them.
	wordGapFactor = 0.3
)

// PDFExtractor implements PageExtractor on top of ledongthuc/pdf.
type PDFExtractor struct {
	densityThreshold int
	log              *slog.Logger
}

var _ PageExtractor = (*PDFExtractor)(nil)

func NewPDFExtractor(densityThreshold int, log *slog.Logger) *PDFExtractor {
	if densityThreshold <= 0 {
		densityThreshold = defaultDensityThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &PDFExtractor{densityThreshold: densityThreshold, log: log}
}

// ExtractPages opens the document from bytes and produces one cleaned text
// blob per page, preserving page order. The reader is scoped to this call;
// panics from malformed content (the library panics on some corrupt inputs)
// are converted to errors, so the document is fully released on every exit
// path.
func (e *PDFExtractor) ExtractPages(ctx context.Context, data []byte) (res PageExtractionResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v: %w", r, common.ErrExtraction)
		}
		res.Duration = time.Since(start)
	}()

	if len(data) == 0 {
		return res, fmt.Errorf("empty pdf content: %w", common.ErrExtraction)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return res, fmt.Errorf("open pdf: %v: %w", err, common.ErrExtraction)
	}

	numPages := reader.NumPage()
	res.Pages = make([]string, 0, numPages)
	for n := 1; n <= numPages; n++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		text, degraded := e.extractPage(reader.Page(n))
		if degraded {
			res.DegradedPages = append(res.DegradedPages, n)
			e.log.Debug("degraded page detected", "page", n)
		}
		res.Pages = append(res.Pages, text)
	}
	return res, nil
}

// extractPage yields the cleaned text of one page and whether the page's
// plain text fell below the density threshold. The density flag is recorded
// for observability only: block extraction is used for every page, degraded
// or not.
func (e *PDFExtractor) extractPage(page pdf.Page) (string, bool) {
	if page.V.IsNull() {
		return "", true
	}

	degraded := false
	if plain, err := page.GetPlainText(nil); err != nil || countAlpha(plain) < e.densityThreshold {
		degraded = true
	}

	blocks := buildBlocks(page.Content().Text)
	sortReadingOrder(blocks)

	var kept []string
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		cleaned := NormalizeText(b.Text)
		if cleaned == "" || IsNoise(cleaned) {
			continue
		}
		kept = append(kept, cleaned)
	}
	return strings.Join(kept, "\n"), degraded
}

// textBlock is a positioned run of text: the bounding position of a line of
// fragments plus its assembled content.
type textBlock struct {
	X, Y     float64
	FontSize float64
	Text     string
}

// buildBlocks groups positioned fragments into line blocks by Y proximity,
// assembling each line left-to-right with spaces inserted at word-sized
// gaps.
func buildBlocks(texts []pdf.Text) []textBlock {
	type line struct {
		y     float64
		frags []pdf.Text
	}

	var lines []*line
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		var target *line
		for _, l := range lines {
			if math.Abs(l.y-t.Y) <= rowTolerance {
				target = l
				break
			}
		}
		if target == nil {
			target = &line{y: t.Y}
			lines = append(lines, target)
		}
		target.frags = append(target.frags, t)
	}

	blocks := make([]textBlock, 0, len(lines))
	for _, l := range lines {
		frags := l.frags
		sort.SliceStable(frags, func(i, j int) bool { return frags[i].X < frags[j].X })

		var b strings.Builder
		minX := frags[0].X
		fontSize := frags[0].FontSize
		prevEnd := frags[0].X
		for i, f := range frags {
			if i > 0 && f.X-prevEnd > wordGapFactor*math.Max(f.FontSize, 1) {
				b.WriteString(" ")
			}
			b.WriteString(f.S)
			prevEnd = f.X + f.W
			if f.X < minX {
				minX = f.X
			}
		}
		blocks = append(blocks, textBlock{
			X:        minX,
			Y:        l.y,
			FontSize: fontSize,
			Text:     b.String(),
		})
	}
	return blocks
}

// sortReadingOrder imposes top-to-bottom, left-to-right order on blocks.
// PDF user space puts the origin bottom-left, so top-to-bottom means
// descending Y. The sort is stable: Y-and-X ties keep discovery order.
func sortReadingOrder(blocks []textBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if math.Abs(blocks[i].Y-blocks[j].Y) > rowTolerance {
			return blocks[i].Y > blocks[j].Y
		}
		if blocks[i].X != blocks[j].X {
			return blocks[i].X < blocks[j].X
		}
		return false
	})
}
