package model

import (
	"errors"
	"strings"
	"testing"

	"invoicedesk/internal/apperror"
)

func TestDecodeInvoicePatch(t *testing.T) {
	patch, err := DecodeInvoicePatch([]byte(`{"supplier_name":" Acme ","total_amount":"2,000","PO_number":"PO-1"}`))
	if err != nil {
		t.Fatalf("DecodeInvoicePatch: %v", err)
	}
	cols := patch.Columns()
	if len(cols) != 3 || cols["supplier_name"] != "Acme" || cols["total_amount"] != "2000" || cols["po_number"] != "PO-1" {
		t.Fatalf("columns = %v", cols)
	}
}

func TestDecodeInvoicePatchRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"identity", `{"division":"south","supplier_name":"x"}`, apperror.ErrImmutableField},
		{"reference", `{"reference_number":"r"}`, apperror.ErrImmutableField},
		{"unknown", `{"status":"approved"}`, apperror.ErrInvalidEdit},
		{"empty", `{}`, apperror.ErrInvalidEdit},
		{"not an object", `[1,2]`, apperror.ErrInvalidEdit},
		{"wrong type", `{"supplier_name":12}`, apperror.ErrInvalidEdit},
		{"blank number", `{"invoice_number":"  "}`, apperror.ErrInvalidEdit},
		{"blank total", `{"total_amount":""}`, apperror.ErrInvalidEdit},
		{"blank date", `{"invoice_date":"NA"}`, apperror.ErrInvalidEdit},
		{"null supplier", `{"supplier_name":"null"}`, apperror.ErrInvalidEdit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeInvoicePatch([]byte(tc.body))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeInvoicePatchNamesEveryClearedRequiredField(t *testing.T) {
	_, err := DecodeInvoicePatch([]byte(`{"total_amount":"","supplier_name":"  ","PO_number":""}`))
	if !errors.Is(err, apperror.ErrInvalidEdit) || !strings.Contains(err.Error(), "supplier_name, total_amount cannot be empty") {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeInvoicePatchAllowsClearingOptionalFields(t *testing.T) {
	patch, err := DecodeInvoicePatch([]byte(`{"PO_number":"","job_ID":" "}`))
	if err != nil {
		t.Fatalf("DecodeInvoicePatch: %v", err)
	}
	if cols := patch.Columns(); cols["po_number"] != NotAvailable || cols["job_id"] != NotAvailable {
		t.Fatalf("columns = %v", cols)
	}
}

func TestDecodeInvoicePatchNamesEveryImmutableKey(t *testing.T) {
	_, err := DecodeInvoicePatch([]byte(`{"id":1,"division":"x"}`))
	if err == nil || !strings.Contains(err.Error(), "division, id") {
		t.Fatalf("err = %v", err)
	}
}
