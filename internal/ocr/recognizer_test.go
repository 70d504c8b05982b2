package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"invoicedesk/internal/apperror"

	"go.uber.org/zap"
)

// minimalPDF builds a structurally valid PDF with the given number of blank pages.
func minimalPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

type fakeRunner struct {
	images   int               // page images pdftoppm "renders"
	pageText map[string]string // image base name -> tesseract output
	fail     map[string]error  // command name -> error
	calls    []string
	tmpDirs  []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name)
	if err := f.fail[name]; err != nil {
		return nil, []byte("boom"), err
	}
	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		f.tmpDirs = append(f.tmpDirs, filepath.Dir(prefix))
		for i := 1; i <= f.images; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		return []byte(f.pageText[filepath.Base(args[0])]), nil, nil
	}
	return nil, nil, fmt.Errorf("unexpected command %s", name)
}

func TestRecognizeFlattensPagesInOrder(t *testing.T) {
	runner := &fakeRunner{
		images: 2,
		pageText: map[string]string{
			"page-1.png": "ACME Traders\n\n  Invoice No: INV-001  \n",
			"page-2.png": "Total: 1,200.00\f\nThank you\n",
		},
	}
	r := NewRecognizerWithRunner(Config{}, runner, zap.NewNop())

	lines, err := r.Recognize(context.Background(), minimalPDF(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"ACME Traders", "Invoice No: INV-001", "Total: 1,200.00", "Thank you"}
	if !slices.Equal(lines, want) {
		t.Fatalf("got %q, want %q", lines, want)
	}
	for _, dir := range runner.tmpDirs {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Fatalf("temp dir %s was not removed", dir)
		}
	}
}

func TestRecognizeOrdersPagesNumerically(t *testing.T) {
	runner := &fakeRunner{images: 11, pageText: map[string]string{}}
	for i := 1; i <= 11; i++ {
		runner.pageText[fmt.Sprintf("page-%d.png", i)] = fmt.Sprintf("line %d", i)
	}
	r := NewRecognizerWithRunner(Config{}, runner, zap.NewNop())

	lines, err := r.Recognize(context.Background(), minimalPDF(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines[1] != "line 2" || lines[10] != "line 11" {
		t.Fatalf("pages out of order: %q", lines)
	}
}

func TestRecognizeRejectsDocumentsOverMaxPages(t *testing.T) {
	runner := &fakeRunner{images: 12, pageText: map[string]string{}}
	r := NewRecognizerWithRunner(Config{MaxPages: 10}, runner, zap.NewNop())

	lines, err := r.Recognize(context.Background(), minimalPDF(12))
	if !errors.Is(err, apperror.ErrTooManyPages) {
		t.Fatalf("expected ErrTooManyPages, got %v (lines %q)", err, lines)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("nothing should run for an oversized document, got %v", runner.calls)
	}
}

func TestRecognizeRejectsRenderedPagesOverMaxPages(t *testing.T) {
	// the parser saw one page, the rasterizer produced three
	runner := &fakeRunner{images: 3, pageText: map[string]string{}}
	r := NewRecognizerWithRunner(Config{MaxPages: 2}, runner, zap.NewNop())

	_, err := r.Recognize(context.Background(), minimalPDF(1))
	if !errors.Is(err, apperror.ErrTooManyPages) {
		t.Fatalf("expected ErrTooManyPages, got %v", err)
	}
	if slices.Contains(runner.calls, "tesseract") {
		t.Fatal("tesseract ran on an oversized document")
	}
}

func TestRecognizeAtMaxPages(t *testing.T) {
	runner := &fakeRunner{images: 2, pageText: map[string]string{"page-1.png": "one", "page-2.png": "two"}}
	r := NewRecognizerWithRunner(Config{MaxPages: 2}, runner, zap.NewNop())

	lines, err := r.Recognize(context.Background(), minimalPDF(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(lines, []string{"one", "two"}) {
		t.Fatalf("got %q", lines)
	}
}

func TestRecognizeRejectsNonPDF(t *testing.T) {
	runner := &fakeRunner{images: 1}
	r := NewRecognizerWithRunner(Config{}, runner, zap.NewNop())

	_, err := r.Recognize(context.Background(), []byte("definitely not a pdf"))
	if !errors.Is(err, apperror.ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("no external command should run for invalid input, got %v", runner.calls)
	}
}

func TestRecognizeRejectsEmptyDocument(t *testing.T) {
	r := NewRecognizerWithRunner(Config{}, &fakeRunner{images: 1}, zap.NewNop())

	_, err := r.Recognize(context.Background(), minimalPDF(0))
	if !errors.Is(err, apperror.ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestRecognizeNoRenderedImages(t *testing.T) {
	r := NewRecognizerWithRunner(Config{}, &fakeRunner{images: 0}, zap.NewNop())

	_, err := r.Recognize(context.Background(), minimalPDF(1))
	if !errors.Is(err, apperror.ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestRecognizeRasterizerFailure(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"pdftoppm": errors.New("exit status 1")}}
	r := NewRecognizerWithRunner(Config{}, runner, zap.NewNop())

	_, err := r.Recognize(context.Background(), minimalPDF(1))
	if !errors.Is(err, apperror.ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestRecognizeTesseractFailureIsNotUnreadable(t *testing.T) {
	runner := &fakeRunner{images: 1, fail: map[string]error{"tesseract": errors.New("exit status 1")}}
	r := NewRecognizerWithRunner(Config{}, runner, zap.NewNop())

	_, err := r.Recognize(context.Background(), minimalPDF(1))
	if err == nil || errors.Is(err, apperror.ErrUnreadableDocument) {
		t.Fatalf("expected an engine error, got %v", err)
	}
}

func TestSplitLines(t *testing.T) {
	got := splitLines(" a \r\n\n b\f c \n")
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected lines %q", got)
	}
}
