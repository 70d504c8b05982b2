package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"invoicedesk/internal/apperror"
)

// identityFields can never be changed through an edit.
var identityFields = []string{"id", "reference_number", "division"}

// InvoicePatch is the whitelist of fields an operator may correct after extraction.
// Nil pointers are left untouched.
type InvoicePatch struct {
	InvoiceNumber      *string `json:"invoice_number"`
	InvoiceDate        *string `json:"invoice_date"`
	SupplierName       *string `json:"supplier_name"`
	SupplierAddress    *string `json:"supplier_address"`
	SupplierGSTIN      *string `json:"supplier_GSTIN"`
	CustomerAddress    *string `json:"customer_address"`
	CustomerGSTIN      *string `json:"customer_GSTIN"`
	PONumber           *string `json:"PO_number"`
	TotalAmount        *string `json:"total_amount"`
	TotalTaxPercentage *string `json:"total_tax_percentage"`
	JobID              *string `json:"job_ID"`
	VehicleNumber      *string `json:"vehicle_number"`
}

// DecodeInvoicePatch parses an edit request body. Identity keys fail with
// apperror.ErrImmutableField, any other key outside the whitelist with
// apperror.ErrInvalidEdit.
func DecodeInvoicePatch(body []byte) (InvoicePatch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return InvoicePatch{}, fmt.Errorf("%w: body must be a JSON object", apperror.ErrInvalidEdit)
	}
	if len(raw) == 0 {
		return InvoicePatch{}, fmt.Errorf("%w: no fields provided", apperror.ErrInvalidEdit)
	}

	var immutable, unknown []string
	editable := editableKeys()
	for key := range raw {
		switch {
		case slices.Contains(identityFields, key):
			immutable = append(immutable, key)
		case !slices.Contains(editable, key):
			unknown = append(unknown, key)
		}
	}
	if len(immutable) > 0 {
		sort.Strings(immutable)
		return InvoicePatch{}, fmt.Errorf("%w: %s", apperror.ErrImmutableField, strings.Join(immutable, ", "))
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return InvoicePatch{}, fmt.Errorf("%w: unknown field(s) %s", apperror.ErrInvalidEdit, strings.Join(unknown, ", "))
	}

	var patch InvoicePatch
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return InvoicePatch{}, fmt.Errorf("%w: %v", apperror.ErrInvalidEdit, err)
	}
	if err := patch.Validate(); err != nil {
		return InvoicePatch{}, err
	}
	return patch, nil
}

// Validate fails with apperror.ErrInvalidEdit when the patch would clear a required
// field, naming every such field.
func (p InvoicePatch) Validate() error {
	if blank := p.blankRequired(); len(blank) > 0 {
		return fmt.Errorf("%w: %s cannot be empty", apperror.ErrInvalidEdit, strings.Join(blank, ", "))
	}
	return nil
}

func (p InvoicePatch) blankRequired() []string {
	set := map[string]*string{
		FieldInvoiceNumber: p.InvoiceNumber,
		FieldInvoiceDate:   p.InvoiceDate,
		FieldSupplierName:  p.SupplierName,
		FieldTotalAmount:   p.TotalAmount,
	}
	var blank []string
	for _, key := range RequiredFields {
		if v := set[key]; v != nil && isBlank(strings.TrimSpace(*v)) {
			blank = append(blank, key)
		}
	}
	return blank
}

// Columns maps the set fields to their database columns. A cleared field is stored
// as NotAvailable, the same as on extraction.
func (p InvoicePatch) Columns() map[string]any {
	cols := make(map[string]any)
	set := func(col string, v *string) {
		if v == nil {
			return
		}
		if s := strings.TrimSpace(*v); s != "" {
			cols[col] = s
		} else {
			cols[col] = NotAvailable
		}
	}
	set("invoice_number", p.InvoiceNumber)
	set("invoice_date", p.InvoiceDate)
	set("supplier_name", p.SupplierName)
	set("supplier_address", p.SupplierAddress)
	set("supplier_gstin", p.SupplierGSTIN)
	set("customer_address", p.CustomerAddress)
	set("customer_gstin", p.CustomerGSTIN)
	set("po_number", p.PONumber)
	if p.TotalAmount != nil {
		cols["total_amount"] = NormalizeAmount(*p.TotalAmount)
	}
	set("total_tax_percentage", p.TotalTaxPercentage)
	set("job_id", p.JobID)
	set("vehicle_number", p.VehicleNumber)
	return cols
}

func editableKeys() []string {
	return append(slices.Clone(RequiredFields), OptionalFields...)
}
