package model

import (
	"encoding/json"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"invoicedesk/internal/apperror"
)

func TestNewInvoiceRecord(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ext := Extraction{
		Payload: map[string]any{
			FieldInvoiceNumber:   "INV-7",
			FieldInvoiceDate:     "2024-02-28",
			FieldSupplierName:    " Acme Ltd ",
			FieldTotalAmount:     "₹ 1,200.50",
			FieldSupplierGSTIN:   "",
			FieldVehicleNumber:   nil,
			FieldOCRQualityScore: 0.9,
		},
		Score: 1.4,
	}

	rec, err := NewInvoiceRecord(ext, "north", "gate", "north/abc.pdf", now)
	if err != nil {
		t.Fatalf("NewInvoiceRecord: %v", err)
	}
	if rec.InvoiceNumber != "INV-7" || rec.SupplierName != "Acme Ltd" || rec.TotalAmount != "1200.5" {
		t.Fatalf("fields = %+v", rec)
	}
	if rec.SupplierGSTIN != NotAvailable || rec.VehicleNumber != NotAvailable || rec.JobID != NotAvailable {
		t.Fatalf("optional fields not defaulted: %+v", rec)
	}
	if rec.Status != StatusPending || rec.ApprovedBy != nil || !rec.ScanningDate.Equal(now) {
		t.Fatalf("lifecycle fields = %+v", rec)
	}
	if rec.OCRQualityScore != 1 || rec.ReferenceNumber == "" || rec.S3FilePath != "north/abc.pdf" {
		t.Fatalf("score/ref/blob = %v %q %q", rec.OCRQualityScore, rec.ReferenceNumber, rec.S3FilePath)
	}

	var stored map[string]any
	if err := json.Unmarshal(rec.Data, &stored); err != nil {
		t.Fatalf("data: %v", err)
	}
	if _, ok := stored[FieldOCRQualityScore]; ok {
		t.Fatal("confidence key kept in stored payload")
	}
	if stored[FieldPONumber] != NotAvailable {
		t.Fatalf("stored PO = %v", stored[FieldPONumber])
	}

	other, _ := NewInvoiceRecord(ext, "north", "gate", "north/def.pdf", now)
	if other.ReferenceNumber == rec.ReferenceNumber {
		t.Fatal("reference numbers must be unique")
	}
}

func TestNewInvoiceRecordReportsAllMissingFields(t *testing.T) {
	ext := Extraction{Payload: map[string]any{
		FieldInvoiceNumber: "INV-7",
		FieldInvoiceDate:   "NA",
		FieldTotalAmount:   "null",
	}}
	_, err := NewInvoiceRecord(ext, "north", "gate", "ref", time.Now())

	var incomplete *apperror.IncompleteInvoiceError
	if !errors.As(err, &incomplete) || !errors.Is(err, apperror.ErrIncompleteInvoice) {
		t.Fatalf("err = %v", err)
	}
	want := []string{FieldInvoiceDate, FieldSupplierName, FieldTotalAmount}
	if !slices.Equal(incomplete.Missing, want) {
		t.Fatalf("missing = %q, want %q", incomplete.Missing, want)
	}
}

func TestNormalizeAmount(t *testing.T) {
	cases := map[string]string{
		"1,200.50":    "1200.5",
		"INR 3,000":   "3000",
		"Rs. 45.00":   "45",
		"$ 12":        "12",
		"twelve":      "twelve",
		" 1,2a ":      "1,2a",
		"1,00,000.00": "100000",
	}
	for in, want := range cases {
		if got := NormalizeAmount(in); got != want {
			t.Errorf("NormalizeAmount(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClampScore(t *testing.T) {
	for in, want := range map[float64]float64{-0.5: 0, 0.42: 0.42, 3: 1, math.NaN(): 0} {
		if got := ClampScore(in); got != want {
			t.Errorf("ClampScore(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestFieldText(t *testing.T) {
	payload := map[string]any{"a": json.Number("12.50"), "b": 7.0, "c": true, "d": []any{1}}
	for key, want := range map[string]string{"a": "12.50", "b": "7", "c": "true", "d": "", "missing": ""} {
		if got := FieldText(payload, key); got != want {
			t.Errorf("FieldText(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestNewInvoiceEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := &InvoiceRecord{ID: 4, Division: "south", InvoiceNumber: "B2", Status: StatusApproved}
	ev := NewInvoiceEvent(EventInvoiceApproved, rec, "store", at)
	if ev.InvoiceID != 4 || ev.Division != "south" || ev.Status != StatusApproved || ev.Actor != "store" || !ev.At.Equal(at) {
		t.Fatalf("event = %+v", ev)
	}
}
