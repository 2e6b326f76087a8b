package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	pdfextract "github.com/wudi/pdfkit/extractor"
	"github.com/wudi/pdfkit/ir"
)

// PDFTextLayer extracts the embedded text layer page by page, preserving row
// layout, and concatenates pages with a blank-line separator. Non-PDF inputs
// produce empty text so the chain moves on.
type PDFTextLayer struct{}

// NewPDFTextLayer creates the text-layer strategy.
func NewPDFTextLayer() *PDFTextLayer {
	return &PDFTextLayer{}
}

func (s *PDFTextLayer) Name() string { return "pdf-text-layer" }

func (s *PDFTextLayer) Extract(ctx context.Context, path string) (string, error) {
	if !IsPDF(path) {
		return "", nil
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		rows, err := p.GetTextByRow()
		if err != nil {
			// A single unreadable page should not discard the rest.
			continue
		}

		var sb strings.Builder
		for _, row := range rows {
			for j, word := range row.Content {
				if j > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(word.S)
			}
			sb.WriteByte('\n')
		}

		if page := strings.TrimSpace(sb.String()); page != "" {
			pages = append(pages, page)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}

// PDFGeneric runs the document through a second, independent PDF engine. It
// covers PDFs whose text layer the primary strategy cannot read.
type PDFGeneric struct{}

// NewPDFGeneric creates the second-engine strategy.
func NewPDFGeneric() *PDFGeneric {
	return &PDFGeneric{}
}

func (s *PDFGeneric) Name() string { return "pdf-generic" }

func (s *PDFGeneric) Extract(ctx context.Context, path string) (string, error) {
	if !IsPDF(path) {
		return "", nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	pipe := ir.NewDefault()
	doc, err := pipe.Parse(ctx, file)
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	dec := doc.Decoded()
	if dec == nil {
		return "", errors.New("pipeline produced no decoded document")
	}

	ext, err := pdfextract.New(dec)
	if err != nil {
		return "", fmt.Errorf("failed to build extractor: %w", err)
	}

	pages, err := ext.ExtractText()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	var parts []string
	for _, page := range pages {
		if content := strings.TrimSpace(page.Content); content != "" {
			parts = append(parts, content)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}
