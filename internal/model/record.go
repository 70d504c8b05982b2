package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"

	"invoicedesk/internal/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Extraction is the structured object the model produced for one invoice, with the
// self-reported confidence already split off the payload.
type Extraction struct {
	Payload map[string]any
	Score   float64
}

// FieldText renders a payload value as text. Numbers keep their decoded form,
// absent and null values yield "".
func FieldText(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func isBlank(s string) bool {
	return s == "" || strings.EqualFold(s, NotAvailable) || strings.EqualFold(s, "null")
}

// NewInvoiceRecord builds a pending record from an extraction. Every required field
// that is absent or blank is reported at once through apperror.IncompleteInvoiceError.
func NewInvoiceRecord(ext Extraction, division, processedBy, blobRef string, now time.Time) (*InvoiceRecord, error) {
	var missing []string
	for _, key := range RequiredFields {
		if isBlank(FieldText(ext.Payload, key)) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &apperror.IncompleteInvoiceError{Missing: missing}
	}

	payload := WithDefaults(ext.Payload)
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode invoice payload: %w", err)
	}

	text := func(key string) string { return FieldText(payload, key) }
	return &InvoiceRecord{
		Division:           division,
		InvoiceNumber:      text(FieldInvoiceNumber),
		ReferenceNumber:    uuid.NewString(),
		InvoiceDate:        text(FieldInvoiceDate),
		SupplierName:       text(FieldSupplierName),
		SupplierAddress:    text(FieldSupplierAddress),
		SupplierGSTIN:      text(FieldSupplierGSTIN),
		CustomerAddress:    text(FieldCustomerAddress),
		CustomerGSTIN:      text(FieldCustomerGSTIN),
		PONumber:           text(FieldPONumber),
		TotalAmount:        NormalizeAmount(text(FieldTotalAmount)),
		TotalTaxPercentage: text(FieldTotalTaxPercentage),
		JobID:              text(FieldJobID),
		VehicleNumber:      text(FieldVehicleNumber),
		S3FilePath:         blobRef,
		ScanningDate:       now,
		Status:             StatusPending,
		ProcessedBy:        processedBy,
		Data:               data,
		OCRQualityScore:    ClampScore(ext.Score),
	}, nil
}

// WithDefaults returns a copy of payload where every optional field that is absent,
// null or empty holds NotAvailable. The confidence key never survives.
func WithDefaults(payload map[string]any) map[string]any {
	out := maps.Clone(payload)
	if out == nil {
		out = make(map[string]any, len(OptionalFields))
	}
	delete(out, FieldOCRQualityScore)
	for _, key := range OptionalFields {
		switch v := out[key].(type) {
		case nil:
			out[key] = NotAvailable
		case string:
			if strings.TrimSpace(v) == "" {
				out[key] = NotAvailable
			}
		}
	}
	return out
}

// NormalizeAmount strips grouping separators and currency marks. A value that then
// parses as a decimal is stored in canonical form; anything else is kept verbatim.
func NormalizeAmount(raw string) string {
	s := strings.TrimSpace(raw)
	cleaned := strings.NewReplacer(",", "", " ", "", "₹", "", "$", "", "€", "", "£", "").Replace(s)
	for _, prefix := range []string{"INR", "Rs.", "Rs"} {
		cleaned = strings.TrimPrefix(cleaned, prefix)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return s
	}
	return d.String()
}

// ClampScore forces a self-reported confidence into [0, 1].
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
