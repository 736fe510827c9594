package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"foialens/internal/config"
)

// fakeBin writes a shell script that prints the given text and touches a
// marker file so tests can tell whether the tool ran.
func fakeBin(t *testing.T, dir, name, text string) (bin, marker string) {
	t.Helper()
	marker = filepath.Join(dir, name+".ran")
	bin = filepath.Join(dir, name)
	script := "#!/bin/sh\ntouch " + marker + "\nprintf '%s' '" + text + "'\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin, marker
}

func ran(marker string) bool {
	_, err := os.Stat(marker)
	return err == nil
}

func TestExtractDirectText(t *testing.T) {
	e := New(config.Extraction{MinTextChars: 10})

	text, method, err := e.Extract(context.Background(), "text", []byte("  request log row  \n"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "request log row" || method != MethodDirect {
		t.Errorf("got %q via %q", text, method)
	}
}

func TestExtractDirectEmpty(t *testing.T) {
	e := New(config.Extraction{MinTextChars: 10})

	_, _, err := e.Extract(context.Background(), "json", []byte("   "))
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestExtractHTML(t *testing.T) {
	e := New(config.Extraction{MinTextChars: 10})
	html := `<html><head><title>Release</title></head><body>
		<nav>Home | About</nav>
		<article><h1>Response letter</h1>
		<p>We have completed the search for responsive records. Twelve pages
		are released in part with redactions under exemption b6. The withheld
		material concerns personal privacy of third parties named in the
		complaint file you requested.</p></article>
	</body></html>`

	text, method, err := e.Extract(context.Background(), "html", []byte(html))
	if err != nil {
		t.Fatal(err)
	}
	if method != MethodReadability {
		t.Errorf("method = %q", method)
	}
	if !strings.Contains(text, "responsive records") {
		t.Errorf("article text lost: %q", text)
	}
}

func TestExtractPDFTextLayerSufficient(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("released in part under exemption five ", 10)
	pdfBin, _ := fakeBin(t, dir, "pdftotext", long)
	ocrBin, ocrMarker := fakeBin(t, dir, "tesseract", "ocr output")

	e := New(config.Extraction{MinTextChars: 100, PDFToTextBin: pdfBin, TesseractBin: ocrBin})
	text, method, err := e.Extract(context.Background(), "pdf", []byte("%PDF-1.4 fake"))
	if err != nil {
		t.Fatal(err)
	}
	if method != MethodPDFText {
		t.Errorf("method = %q, want %q", method, MethodPDFText)
	}
	if !strings.Contains(text, "exemption five") {
		t.Errorf("text = %q", text)
	}
	if ran(ocrMarker) {
		t.Error("OCR ran even though the text layer met the density threshold")
	}
}

func TestExtractPDFOCRFallback(t *testing.T) {
	dir := t.TempDir()
	pdfBin, _ := fakeBin(t, dir, "pdftotext", "thin")
	long := strings.Repeat("scanned page text recovered by ocr ", 10)
	ocrBin, ocrMarker := fakeBin(t, dir, "tesseract", long)

	e := New(config.Extraction{MinTextChars: 100, PDFToTextBin: pdfBin, TesseractBin: ocrBin})
	text, method, err := e.Extract(context.Background(), "pdf", []byte("%PDF-1.4 fake"))
	if err != nil {
		t.Fatal(err)
	}
	if method != MethodOCR {
		t.Errorf("method = %q, want %q", method, MethodOCR)
	}
	if !ran(ocrMarker) {
		t.Error("OCR fallback did not run")
	}
	if !strings.Contains(text, "scanned page") {
		t.Errorf("text = %q", text)
	}
}

func TestExtractPDFBothEmpty(t *testing.T) {
	dir := t.TempDir()
	pdfBin, _ := fakeBin(t, dir, "pdftotext", "")
	ocrBin, _ := fakeBin(t, dir, "tesseract", "")

	e := New(config.Extraction{MinTextChars: 100, PDFToTextBin: pdfBin, TesseractBin: ocrBin})
	_, _, err := e.Extract(context.Background(), "pdf", []byte("%PDF-1.4 fake"))
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestExtractPDFKeepsTextLayerWhenOCRFails(t *testing.T) {
	dir := t.TempDir()
	pdfBin, _ := fakeBin(t, dir, "pdftotext", "short but real text")

	e := New(config.Extraction{
		MinTextChars: 100,
		PDFToTextBin: pdfBin,
		TesseractBin: filepath.Join(dir, "missing-tesseract"),
	})
	text, method, err := e.Extract(context.Background(), "pdf", []byte("%PDF-1.4 fake"))
	if err != nil {
		t.Fatal(err)
	}
	if method != MethodPDFText || text != "short but real text" {
		t.Errorf("got %q via %q", text, method)
	}
}
