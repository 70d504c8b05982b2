package repository

import (
	"context"

	"invoicedesk/internal/model"
	"invoicedesk/pkg/pagination"

	"gorm.io/gorm"
)

type AuditFilter struct {
	Action   string
	Division string
	Username string
}

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter, page, limit int) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Log joins the caller's transaction when there is one.
func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

// List returns entries newest first.
func (r *auditRepository) List(ctx context.Context, filter AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	p := pagination.Normalize(page, limit)
	db := GetDB(ctx, r.db)

	scoped := func() *gorm.DB {
		q := db.Model(&model.AuditLog{})
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.Division != "" {
			q = q.Where("division = ?", filter.Division)
		}
		if filter.Username != "" {
			q = q.Where("username = ?", filter.Username)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.AuditLog
	if err := scoped().Order("created_at desc").Order("id desc").Offset(p.Offset).Limit(p.Limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
