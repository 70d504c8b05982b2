package extraction

import "strings"

const instructions = `You are reading the OCR text of one scanned supplier invoice. Return the invoice as a single JSON object and nothing else: no explanation, no markdown, no code fences.

Use exactly these keys:
- "invoice_number": the supplier's invoice number.
- "invoice_date": the invoice date as printed.
- "supplier_name", "supplier_address", "supplier_GSTIN": the issuing company.
- "customer_address", "customer_GSTIN": the billed company.
- "PO_number": the purchase order number.
- "total_amount": the grand total as a plain number without thousands separators or currency symbols. When the total is also written out in words, the amount in words is authoritative and the figure must agree with it.
- "total_tax_percentage": the combined tax rate, summing components such as SGST and CGST, for example "18%". Use "0%" when no tax is charged, never null.
- "job_ID": a job reference of the form "J-<number>", otherwise "NA".
- "vehicle_number": the vehicle registration, if any.
- "line_items": an array of objects with "description", "quantity", "rate" and "amount".
- "ocr_quality_score": a number between 0 and 1 saying how confident you are in the text you read. This key must be at the top level of the object.

Rules:
- OCR frequently reads the rupee sign as the digit 2 at the start of an amount. Drop it when the amount would otherwise be wrong.
- Use "NA" for any field other than invoice_number, invoice_date, supplier_name and total_amount that does not appear in the text.
- If the text contains more than one invoice, describe only the first one and add "multiple_invoices": true.

OCR text, one line per row:
`

// BuildPrompt embeds the recognized lines verbatim below the extraction instructions.
func BuildPrompt(lines []string) string {
	var b strings.Builder
	b.Grow(len(instructions) + 64*len(lines))
	b.WriteString(instructions)
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
