package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/metrics"
	"invoicedesk/internal/model"
	"invoicedesk/internal/repository"
)

// Workflow moves invoices between review states. Approval and rejection are the
// only transitions and either may be repeated or reversed.
type Workflow struct {
	repo    repository.InvoiceRepository
	audit   repository.AuditRepository
	tx      repository.TransactionManager
	metrics *metrics.InvoiceMetrics
}

func NewWorkflow(
	repo repository.InvoiceRepository,
	audit repository.AuditRepository,
	tx repository.TransactionManager,
	m *metrics.InvoiceMetrics,
) *Workflow {
	return &Workflow{repo: repo, audit: audit, tx: tx, metrics: m}
}

// Authorize allows store operators and admins to change an invoice's status.
func (w *Workflow) Authorize(p model.Principal) error {
	if !p.HasRole(model.RoleStore, model.RoleAdmin) {
		return fmt.Errorf("%w: role %q cannot change invoice status", apperror.ErrUnauthorized, p.Role)
	}
	return nil
}

// Transition sets the status of one invoice and records the approver. The status
// change and its audit entry commit together.
func (w *Workflow) Transition(ctx context.Context, p model.Principal, division string, id uint, target string) (*model.InvoiceRecord, error) {
	if !model.ValidTransitionTarget(target) {
		return nil, fmt.Errorf("%w: %q", apperror.ErrInvalidStatus, target)
	}
	if err := w.Authorize(p); err != nil {
		return nil, err
	}

	action := model.ActionApproveInvoice
	if target == model.StatusRejected {
		action = model.ActionRejectInvoice
	}

	var rec *model.InvoiceRecord
	err := w.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := w.repo.UpdateStatus(txCtx, division, id, target, p.Username); err != nil {
			return err
		}
		details, _ := json.Marshal(map[string]string{"status": target})
		if err := w.audit.Log(txCtx, &model.AuditLog{
			Username: p.Username,
			Action:   action,
			Division: division,
			EntityID: strconv.FormatUint(uint64(id), 10),
			Details:  details,
		}); err != nil {
			return fmt.Errorf("audit %s: %w", action, err)
		}
		var err error
		rec, err = w.repo.Get(txCtx, division, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	w.metrics.IncTransition(target)
	return rec, nil
}
