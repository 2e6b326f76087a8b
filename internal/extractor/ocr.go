package extractor

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// OCR recognizes text by opening the file as an image and running Tesseract.
// It runs last in the chain and is the only strategy that can read scanned
// documents. A fresh client is created per call; Tesseract handles are not
// safe for concurrent reuse.
type OCR struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewOCR creates the OCR strategy with optional language hints (e.g. "eng").
func NewOCR(languages ...string) *OCR {
	return &OCR{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (s *OCR) Name() string { return "ocr" }

func (s *OCR) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := s.clientFactory()
	defer c.Close()

	if len(s.languages) > 0 {
		if err := c.SetLanguage(s.languages...); err != nil {
			return "", fmt.Errorf("failed to set languages: %w", err)
		}
	}

	if err := c.SetImage(path); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("failed to recognize text: %w", err)
	}

	return text, nil
}
