package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/model"
	"invoicedesk/pkg/pagination"

	"gorm.io/gorm"
)

// DateRange bounds scanning_date. From is inclusive, To exclusive; zero values are open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) apply(q *gorm.DB) *gorm.DB {
	if !r.From.IsZero() {
		q = q.Where("scanning_date >= ?", r.From)
	}
	if !r.To.IsZero() {
		q = q.Where("scanning_date < ?", r.To)
	}
	return q
}

type InvoiceListFilter struct {
	Status   string
	Range    DateRange
	Search   string
	Page     int
	PageSize int
}

type InvoicePage struct {
	Records  []model.InvoiceRecord
	Total    int64
	Pages    int
	Page     int
	PageSize int
}

// InvoiceRepository is the only writer of invoice records. Every operation except
// Report is scoped to one division.
type InvoiceRepository interface {
	Insert(ctx context.Context, rec *model.InvoiceRecord) (uint, error)
	Get(ctx context.Context, division string, id uint) (*model.InvoiceRecord, error)
	List(ctx context.Context, division string, filter InvoiceListFilter, requesterRole string) (*InvoicePage, error)
	UpdateStatus(ctx context.Context, division string, id uint, status, approver string) error
	Edit(ctx context.Context, division string, id uint, patch model.InvoicePatch) error
	Report(ctx context.Context, r DateRange) ([]model.InvoiceRecord, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Insert relies on idx_division_invoice_number, so concurrent uploads of the same
// invoice cannot both succeed.
func (r *invoiceRepository) Insert(ctx context.Context, rec *model.InvoiceRecord) (uint, error) {
	if err := GetDB(ctx, r.db).Create(rec).Error; err != nil {
		if isDuplicateKey(err) {
			return 0, &apperror.DuplicateInvoiceError{Division: rec.Division, InvoiceNumber: rec.InvoiceNumber}
		}
		return 0, fmt.Errorf("insert invoice: %w", err)
	}
	return rec.ID, nil
}

func (r *invoiceRepository) Get(ctx context.Context, division string, id uint) (*model.InvoiceRecord, error) {
	var rec model.InvoiceRecord
	if err := GetDB(ctx, r.db).Where("division = ? AND id = ?", division, id).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (r *invoiceRepository) List(ctx context.Context, division string, filter InvoiceListFilter, requesterRole string) (*InvoicePage, error) {
	p := pagination.Normalize(filter.Page, filter.PageSize)
	db := GetDB(ctx, r.db)

	scoped := func() *gorm.DB {
		q := db.Model(&model.InvoiceRecord{}).Where("division = ?", division)
		if requesterRole != model.RoleAdmin {
			q = q.Where("status <> ?", model.StatusRejected)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		q = filter.Range.apply(q)
		if s := strings.TrimSpace(filter.Search); s != "" {
			like := "%" + escapeLike(strings.ToLower(s)) + "%"
			q = q.Where(`(LOWER(invoice_number) LIKE ? ESCAPE '\' OR LOWER(supplier_name) LIKE ? ESCAPE '\' `+
				`OR LOWER(po_number) LIKE ? ESCAPE '\' OR LOWER(reference_number) LIKE ? ESCAPE '\')`,
				like, like, like, like)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count invoices: %w", err)
	}

	records := make([]model.InvoiceRecord, 0, p.Limit)
	if err := scoped().Order("id asc").Offset(p.Offset).Limit(p.Limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	return &InvoicePage{
		Records:  records,
		Total:    total,
		Pages:    pagination.TotalPages(total, p.Limit),
		Page:     p.Page,
		PageSize: p.Limit,
	}, nil
}

// UpdateStatus overwrites status and approver. Repeating a transition, or moving
// between approved and rejected, is allowed.
func (r *invoiceRepository) UpdateStatus(ctx context.Context, division string, id uint, status, approver string) error {
	res := GetDB(ctx, r.db).Model(&model.InvoiceRecord{}).
		Where("division = ? AND id = ?", division, id).
		Updates(map[string]any{"status": status, "approved_by": approver})
	if res.Error != nil {
		return fmt.Errorf("update invoice status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// Edit applies the whitelisted columns of patch. The extracted payload in data is
// left as it was.
func (r *invoiceRepository) Edit(ctx context.Context, division string, id uint, patch model.InvoicePatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	cols := patch.Columns()
	if len(cols) == 0 {
		_, err := r.Get(ctx, division, id)
		return err
	}

	res := GetDB(ctx, r.db).Model(&model.InvoiceRecord{}).
		Where("division = ? AND id = ?", division, id).
		Updates(cols)
	if res.Error != nil {
		if isDuplicateKey(res.Error) && patch.InvoiceNumber != nil {
			return &apperror.DuplicateInvoiceError{Division: division, InvoiceNumber: strings.TrimSpace(*patch.InvoiceNumber)}
		}
		return fmt.Errorf("edit invoice: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// Report returns records of every division in the range, oldest scan first. It does
// not filter by role; callers authorize before invoking it.
func (r *invoiceRepository) Report(ctx context.Context, dr DateRange) ([]model.InvoiceRecord, error) {
	var records []model.InvoiceRecord
	q := dr.apply(GetDB(ctx, r.db).Model(&model.InvoiceRecord{}))
	if err := q.Order("scanning_date asc").Order("id asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("report invoices: %w", err)
	}
	return records, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
