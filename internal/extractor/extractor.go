// Package extractor recovers plain text from question papers and answer
// sheets. Documents arrive as PDFs or scanned images, frequently malformed,
// so extraction runs a fixed chain of strategies and settles for the first
// one that produces text.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Sentinel is returned when every strategy fails. Downstream structuring will
// then legitimately find zero questions.
const Sentinel = "could not extract text: the document appears to be a scanned image"

// Result is the outcome of a single extraction strategy.
type Result struct {
	Strategy string
	Text     string
	Err      error
}

// Empty reports whether the strategy produced no usable text, either because
// it errored or because the trimmed output is blank.
func (r Result) Empty() bool {
	return r.Err != nil || strings.TrimSpace(r.Text) == ""
}

// Strategy recovers plain text from the document at path. Returning empty
// text is not an error; it just hands control to the next strategy.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, path string) (string, error)
}

// Chain tries strategies strictly in order and stops at the first non-empty
// result.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain over the given strategies.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Default returns the production chain: PDF text layer, then a second PDF
// engine, then OCR.
func Default(ocrLanguages ...string) *Chain {
	return NewChain(
		NewPDFTextLayer(),
		NewPDFGeneric(),
		NewOCR(ocrLanguages...),
	)
}

// Extract runs the chain against the document at path. It never fails: when
// every strategy produces empty text the fixed Sentinel is returned instead.
// The source file is only read, never modified.
func (c *Chain) Extract(ctx context.Context, path string) string {
	for _, s := range c.strategies {
		r := c.run(ctx, s, path)
		if !r.Empty() {
			return strings.TrimSpace(r.Text)
		}
	}
	return Sentinel
}

// Results runs every strategy and reports each outcome, including the ones
// the chain would normally skip past. Used to diagnose extraction trouble.
func (c *Chain) Results(ctx context.Context, path string) []Result {
	results := make([]Result, 0, len(c.strategies))
	for _, s := range c.strategies {
		results = append(results, c.run(ctx, s, path))
	}
	return results
}

// run executes one strategy, converting panics from the underlying engines
// into strategy errors. A corrupt document must never take down the chain.
func (c *Chain) run(ctx context.Context, s Strategy, path string) (r Result) {
	defer func() {
		if p := recover(); p != nil {
			r = Result{Strategy: s.Name(), Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	text, err := s.Extract(ctx, path)
	return Result{Strategy: s.Name(), Text: text, Err: err}
}

// IsPDF infers the document kind from the file extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
