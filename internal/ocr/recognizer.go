package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"invoicedesk/internal/apperror"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

type Config struct {
	Pdftoppm    string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Language    string // default "eng"
	TessdataDir string
	DPI         int // rasterization DPI, default 300
	MaxPages    int // longer documents are rejected; 0 = no limit
}

// Recognizer turns PDF bytes into the text lines tesseract reads from every page.
type Recognizer struct {
	cfg    Config
	runner Runner
	log    *zap.Logger
}

func NewRecognizer(cfg Config, log *zap.Logger) *Recognizer {
	return NewRecognizerWithRunner(cfg, execRunner{log: log.Named("exec")}, log)
}

func NewRecognizerWithRunner(cfg Config, runner Runner, log *zap.Logger) *Recognizer {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Recognizer{cfg: cfg, runner: runner, log: log.Named("ocr")}
}

// Recognize returns the non-blank lines of every page in page order. Page and block
// boundaries are not kept. Input that is not a PDF, has no pages or renders no page
// images fails with apperror.ErrUnreadableDocument; a document over MaxPages fails
// with apperror.ErrTooManyPages before anything is rendered.
func (r *Recognizer) Recognize(ctx context.Context, data []byte) ([]string, error) {
	pages, err := countPages(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrUnreadableDocument, err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: document has no pages", apperror.ErrUnreadableDocument)
	}
	if err := r.checkPageLimit(pages); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "invoice-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.log.Warn("failed to remove temp dir", zap.String("dir", tmpDir), zap.Error(err))
		}
	}()

	input := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	images, err := r.rasterize(ctx, input, filepath.Join(tmpDir, "page"))
	if err != nil {
		return nil, err
	}

	var lines []string
	for i, img := range images {
		text, err := r.tesseract(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		lines = append(lines, splitLines(text)...)
	}

	r.log.Debug("document recognized",
		zap.Int("pages", pages),
		zap.Int("images", len(images)),
		zap.Int("lines", len(lines)),
	)
	return lines, nil
}

// rasterize renders every page as prefix-N.png and returns the images in page order.
func (r *Recognizer) rasterize(ctx context.Context, input, prefix string) ([]string, error) {
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, "-r", strconv.Itoa(r.cfg.DPI), "-png", input, prefix)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("pdftoppm: %w", err)
		}
		return nil, fmt.Errorf("%w: pdftoppm: %s", apperror.ErrUnreadableDocument, strings.TrimSpace(string(errb)))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i], prefix) < pageNumber(matches[j], prefix)
	})
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no page images rendered", apperror.ErrUnreadableDocument)
	}
	if err := r.checkPageLimit(len(matches)); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *Recognizer) checkPageLimit(pages int) error {
	if r.cfg.MaxPages > 0 && pages > r.cfg.MaxPages {
		return fmt.Errorf("%w: %d pages, limit is %d", apperror.ErrTooManyPages, pages, r.cfg.MaxPages)
	}
	return nil
}

func (r *Recognizer) tesseract(ctx context.Context, image string) (string, error) {
	args := []string{image, "stdout", "-l", r.cfg.Language}
	if r.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", r.cfg.TessdataDir)
	}
	out, errb, err := r.runner.Run(ctx, r.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}

// countPages parses the document structure. The pdf package panics on some
// corrupt inputs, which is reported as a parse error.
func countPages(data []byte) (pages int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("parse pdf: %v", p)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}

func pageNumber(path, prefix string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(path, prefix+"-"), ".png"))
	if err != nil {
		return 0
	}
	return n
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\f' || r == '\r' }) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
