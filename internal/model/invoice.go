package model

import (
	"time"

	"gorm.io/datatypes"
)

// Invoice status values. A record starts pending and moves to approved or rejected.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// NotAvailable is the literal stored for optional fields the extraction could not read.
const NotAvailable = "NA"

// Payload keys, as emitted by the extraction prompt and kept in InvoiceRecord.Data.
const (
	FieldInvoiceNumber      = "invoice_number"
	FieldInvoiceDate        = "invoice_date"
	FieldSupplierName       = "supplier_name"
	FieldSupplierAddress    = "supplier_address"
	FieldSupplierGSTIN      = "supplier_GSTIN"
	FieldCustomerAddress    = "customer_address"
	FieldCustomerGSTIN      = "customer_GSTIN"
	FieldPONumber           = "PO_number"
	FieldTotalAmount        = "total_amount"
	FieldTotalTaxPercentage = "total_tax_percentage"
	FieldJobID              = "job_ID"
	FieldVehicleNumber      = "vehicle_number"
	FieldLineItems          = "line_items"
	FieldOCRQualityScore    = "ocr_quality_score"
	FieldMultipleInvoices   = "multiple_invoices"
)

// RequiredFields must be present for a record to be created, in reporting order.
var RequiredFields = []string{
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldSupplierName,
	FieldTotalAmount,
}

// OptionalFields default to NotAvailable when the extraction leaves them out.
var OptionalFields = []string{
	FieldSupplierAddress,
	FieldSupplierGSTIN,
	FieldCustomerAddress,
	FieldCustomerGSTIN,
	FieldPONumber,
	FieldTotalTaxPercentage,
	FieldJobID,
	FieldVehicleNumber,
}

// InvoiceRecord is a scanned supplier invoice. Every division shares the invoices
// table; (division, invoice_number) is unique through idx_division_invoice_number.
type InvoiceRecord struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Division           string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_division_invoice_number,priority:1" json:"division"`
	InvoiceNumber      string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_division_invoice_number,priority:2" json:"invoice_number"`
	ReferenceNumber    string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference_number"`
	InvoiceDate        string         `gorm:"type:varchar(50)" json:"invoice_date"`
	SupplierName       string         `gorm:"type:varchar(255)" json:"supplier_name"`
	SupplierAddress    string         `gorm:"type:text" json:"supplier_address"`
	SupplierGSTIN      string         `gorm:"column:supplier_gstin;type:varchar(50)" json:"supplier_GSTIN"`
	CustomerAddress    string         `gorm:"type:text" json:"customer_address"`
	CustomerGSTIN      string         `gorm:"column:customer_gstin;type:varchar(50)" json:"customer_GSTIN"`
	PONumber           string         `gorm:"column:po_number;type:varchar(255)" json:"PO_number"`
	TotalAmount        string         `gorm:"type:varchar(50)" json:"total_amount"`
	TotalTaxPercentage string         `gorm:"type:varchar(50)" json:"total_tax_percentage"`
	JobID              string         `gorm:"column:job_id;type:varchar(50)" json:"job_ID"`
	VehicleNumber      string         `gorm:"type:varchar(50)" json:"vehicle_number"`
	S3FilePath         string         `gorm:"column:s3_filepath;type:text" json:"s3_filepath"`
	ScanningDate       time.Time      `gorm:"not null;index" json:"scanning_date"`
	Status             string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ProcessedBy        string         `gorm:"type:varchar(80)" json:"processed_by"`
	ApprovedBy         *string        `gorm:"type:varchar(80)" json:"approved_by"`
	Data               datatypes.JSON `json:"data"` // payload as extracted, kept for audit even after edits
	OCRQualityScore    float64        `json:"ocr_quality_score"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (InvoiceRecord) TableName() string { return "invoices" }

// ValidTransitionTarget reports whether status is a state a pending invoice may move to.
func ValidTransitionTarget(status string) bool {
	return status == StatusApproved || status == StatusRejected
}
