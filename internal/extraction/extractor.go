package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/model"

	"go.uber.org/zap"
)

// Extractor structures recognized invoice text through a generative model.
type Extractor struct {
	gen     Generator
	timeout time.Duration
	log     *zap.Logger
}

// NewExtractor returns an Extractor that bounds every model call by timeout.
// A zero timeout leaves the call bounded by the caller's context only.
func NewExtractor(gen Generator, timeout time.Duration, log *zap.Logger) *Extractor {
	return &Extractor{gen: gen, timeout: timeout, log: log.Named("extractor")}
}

// Extract asks the model for the invoice fields of lines. Failures carry
// apperror.ErrExtractionServiceUnavailable or apperror.ErrMalformedExtraction and a
// zero Extraction, so the score of a failed extraction is always 0.0.
func (e *Extractor) Extract(ctx context.Context, lines []string) (model.Extraction, error) {
	prompt := BuildPrompt(lines)

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := e.gen.Generate(callCtx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		e.log.Warn("model call failed",
			zap.Int("lines", len(lines)),
			zap.Int("prompt_bytes", len(prompt)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return model.Extraction{}, fmt.Errorf("%w: %w", apperror.ErrExtractionServiceUnavailable, err)
	}

	ext, err := ParseResponse(raw)
	if err != nil {
		e.log.Warn("model response rejected",
			zap.Int("lines", len(lines)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		e.log.Debug("rejected model response", zap.String("raw", raw))
		return model.Extraction{}, err
	}

	e.log.Info("invoice extracted",
		zap.Int("lines", len(lines)),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Duration("elapsed", elapsed),
		zap.Float64("ocr_quality_score", ext.Score),
	)
	return ext, nil
}

// ParseResponse sanitizes and decodes one model response. A single-element array is
// accepted as the object it holds. Several invoices, as an array, as consecutive
// objects or through the multiple_invoices flag, fail with apperror.ErrMultipleInvoices.
func ParseResponse(raw string) (model.Extraction, error) {
	values, err := decodeAll(Sanitize(raw))
	if err != nil {
		return model.Extraction{}, fmt.Errorf("%w: response is not JSON: %v", apperror.ErrMalformedExtraction, err)
	}

	var obj map[string]any
	switch {
	case len(values) == 0:
		return model.Extraction{}, fmt.Errorf("%w: empty response", apperror.ErrMalformedExtraction)
	case len(values) > 1:
		return model.Extraction{}, countedMultiple(values)
	}
	switch v := values[0].(type) {
	case map[string]any:
		obj = v
	case []any:
		if len(v) == 0 {
			return model.Extraction{}, fmt.Errorf("%w: empty array", apperror.ErrMalformedExtraction)
		}
		if len(v) > 1 {
			return model.Extraction{}, countedMultiple(v)
		}
		m, ok := v[0].(map[string]any)
		if !ok {
			return model.Extraction{}, fmt.Errorf("%w: array element is not an object", apperror.ErrMalformedExtraction)
		}
		obj = m
	default:
		return model.Extraction{}, fmt.Errorf("%w: expected a JSON object, got %T", apperror.ErrMalformedExtraction, v)
	}

	if err := validateResponse(obj); err != nil {
		return model.Extraction{}, fmt.Errorf("%w: %v", apperror.ErrMalformedExtraction, err)
	}
	if truthy(obj[model.FieldMultipleInvoices]) {
		return model.Extraction{}, apperror.ErrMultipleInvoices
	}

	score := scoreOf(obj[model.FieldOCRQualityScore])
	delete(obj, model.FieldOCRQualityScore)
	delete(obj, model.FieldMultipleInvoices)
	return model.Extraction{Payload: obj, Score: model.ClampScore(score)}, nil
}

func decodeAll(text string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var values []any
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
}

func countedMultiple(values []any) error {
	return fmt.Errorf("%w (%d found)", apperror.ErrMultipleInvoices, len(values))
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	default:
		return false
	}
}

// scoreOf reads the self-reported confidence. Percentages such as "87%" are scaled.
func scoreOf(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case float64:
		return t
	case string:
		s := strings.TrimSpace(t)
		pct := strings.HasSuffix(s, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0
		}
		if pct {
			f /= 100
		}
		return f
	default:
		return 0
	}
}
