package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ActionUploadInvoice  = "UPLOAD_INVOICE"
	ActionApproveInvoice = "APPROVE_INVOICE"
	ActionRejectInvoice  = "REJECT_INVOICE"
	ActionEditInvoice    = "EDIT_INVOICE"
	ActionRegisterUser   = "REGISTER_USER"
)

// AuditLog tracks who changed what, written in the same transaction as the change.
type AuditLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"type:varchar(80);not null;index" json:"username"`
	Action    string         `gorm:"type:varchar(50);not null;index" json:"action"`
	Division  string         `gorm:"type:varchar(50);index" json:"division,omitempty"`
	EntityID  string         `gorm:"type:varchar(64);index" json:"entity_id"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}
