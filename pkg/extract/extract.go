package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// CommandRunner executes an external command and returns its combined
// output. Injectable so extraction is testable without poppler.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDFExtractor converts raw PDF bytes to plain text using the poppler
// tools (pdftotext, pdfinfo).
type PDFExtractor struct {
	runner CommandRunner
}

type Option func(*PDFExtractor)

// WithRunner overrides the command runner. Used in tests.
func WithRunner(r CommandRunner) Option {
	return func(e *PDFExtractor) {
		e.runner = r
	}
}

func New(opts ...Option) *PDFExtractor {
	e := &PDFExtractor{runner: execRunner{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the document's full text and, when pdfinfo can
// report it, the page count. The page count is nil rather than zero
// when unavailable.
func (e *PDFExtractor) Extract(ctx context.Context, raw []byte) (string, *int, error) {
	tmp, err := os.CreateTemp("", "extract-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return "", nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	return string(out), e.pageCount(ctx, tmp.Name()), nil
}

// pageCount parses the "Pages:" line of pdfinfo output. Any failure
// here is non-fatal; the count is simply unknown.
func (e *PDFExtractor) pageCount(ctx context.Context, path string) *int {
	out, err := e.runner.Run(ctx, "pdfinfo", path)
	if err != nil {
		return nil
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil || n < 1 {
			return nil
		}
		return &n
	}
	return nil
}

// InstallInstructions tells an operator how to get the poppler tools.
func InstallInstructions() string {
	return "pdftotext is required for PDF ingestion: install poppler (macOS: brew install poppler, Debian/Ubuntu: apt install poppler-utils)"
}

// IsPDF reports whether an archive entry name looks like a PDF.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
