// Package extract turns raw artifact bytes into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"foialens/internal/config"
)

// Version tags the extraction algorithm. Callers scope cached extraction
// output by it, so bumping the version invalidates only that stage.
const Version = 1

// ErrNoText means both the direct path and the OCR fallback produced an
// empty result. The document is recorded as extraction-failed, not raised.
var ErrNoText = errors.New("no extractable text")

// Methods recorded per document so extraction provenance is queryable.
const (
	MethodDirect      = "direct"
	MethodPDFText     = "pdftotext"
	MethodOCR         = "ocr"
	MethodReadability = "readability"
)

// Extractor converts artifact bytes to text. Extraction is a pure function
// of the input bytes plus Version, which makes cached results safe to
// reuse across runs.
type Extractor struct {
	cfg config.Extraction
}

func New(cfg config.Extraction) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract returns the text for the given content type along with the method
// that produced it. PDFs try the embedded text layer first; when that falls
// below the minimum density the slower OCR path runs.
func (e *Extractor) Extract(ctx context.Context, contentType string, data []byte) (text, method string, err error) {
	switch contentType {
	case "pdf":
		return e.extractPDF(ctx, data)
	case "html":
		return e.extractHTML(data)
	default:
		// csv, json and plain text carry their own text.
		text = strings.TrimSpace(string(data))
		if text == "" {
			return "", "", ErrNoText
		}
		return text, MethodDirect, nil
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, string, error) {
	path, cleanup, err := tempFile(data, "*.pdf")
	if err != nil {
		return "", "", err
	}
	defer cleanup()

	text, err := e.runPDFToText(ctx, path)
	if err == nil && len(text) >= e.cfg.MinTextChars {
		return text, MethodPDFText, nil
	}

	ocrText, ocrErr := e.runTesseract(ctx, path)
	if ocrErr != nil {
		// Keep whatever the text layer gave us before reporting failure.
		if text != "" {
			return text, MethodPDFText, nil
		}
		if err != nil {
			return "", "", fmt.Errorf("pdftotext: %w; ocr: %v", err, ocrErr)
		}
		return "", "", fmt.Errorf("ocr: %w", ocrErr)
	}
	if ocrText == "" && text == "" {
		return "", "", ErrNoText
	}
	if len(ocrText) > len(text) {
		return ocrText, MethodOCR, nil
	}
	return text, MethodPDFText, nil
}

func (e *Extractor) runPDFToText(ctx context.Context, path string) (string, error) {
	bin := e.cfg.PDFToTextBin
	if bin == "" {
		bin = "pdftotext"
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-layout", path, "-")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func (e *Extractor) runTesseract(ctx context.Context, path string) (string, error) {
	bin := e.cfg.TesseractBin
	if bin == "" {
		bin = "tesseract"
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, path, "stdout", "--psm", "1")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func (e *Extractor) extractHTML(data []byte) (string, string, error) {
	base, _ := url.Parse("https://localhost/")
	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return "", "", fmt.Errorf("readability: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", "", ErrNoText
	}
	return text, MethodReadability, nil
}

func tempFile(data []byte, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// CacheStage names the cache namespace for extraction output.
func CacheStage() string {
	return fmt.Sprintf("extract-v%d", Version)
}
