package service

import (
	"fmt"

	"invoicedesk/internal/model"

	"github.com/xuri/excelize/v2"
)

const reportSheet = "Invoices"

var reportHeaders = []string{
	"ID",
	"Division",
	"Invoice Number",
	"Reference Number",
	"Invoice Date",
	"Supplier Name",
	"Supplier GSTIN",
	"Customer GSTIN",
	"PO Number",
	"Total Amount",
	"Total Tax %",
	"Job ID",
	"Vehicle Number",
	"Status",
	"Processed By",
	"Approved By",
	"Scanning Date",
	"OCR Quality Score",
}

// writeReportXLSX renders records as a single-sheet workbook, one row per invoice.
func writeReportXLSX(records []model.InvoiceRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reportSheet, cell, h)
	}

	for i, r := range records {
		approvedBy := ""
		if r.ApprovedBy != nil {
			approvedBy = *r.ApprovedBy
		}
		values := []any{
			r.ID,
			r.Division,
			r.InvoiceNumber,
			r.ReferenceNumber,
			r.InvoiceDate,
			r.SupplierName,
			r.SupplierGSTIN,
			r.CustomerGSTIN,
			r.PONumber,
			r.TotalAmount,
			r.TotalTaxPercentage,
			r.JobID,
			r.VehicleNumber,
			r.Status,
			r.ProcessedBy,
			approvedBy,
			r.ScanningDate.Format("2006-01-02 15:04:05"),
			r.OCRQualityScore,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(reportSheet, "C", "D", 24)
	_ = f.SetColWidth(reportSheet, "F", "F", 32)
	_ = f.SetColWidth(reportSheet, "Q", "Q", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
