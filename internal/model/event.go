package model

import "time"

const (
	EventInvoiceUploaded = "invoice.uploaded"
	EventInvoiceApproved = "invoice.approved"
	EventInvoiceRejected = "invoice.rejected"
	EventInvoiceEdited   = "invoice.edited"
)

// InvoiceEvent is pushed to connected websocket clients after a committed change.
type InvoiceEvent struct {
	Type          string    `json:"type"`
	Division      string    `json:"division"`
	InvoiceID     uint      `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Status        string    `json:"status"`
	Actor         string    `json:"actor"`
	At            time.Time `json:"at"`
}

// NewInvoiceEvent snapshots rec for an event of the given type.
func NewInvoiceEvent(eventType string, rec *InvoiceRecord, actor string, at time.Time) InvoiceEvent {
	return InvoiceEvent{
		Type:          eventType,
		Division:      rec.Division,
		InvoiceID:     rec.ID,
		InvoiceNumber: rec.InvoiceNumber,
		Status:        rec.Status,
		Actor:         actor,
		At:            at,
	}
}
