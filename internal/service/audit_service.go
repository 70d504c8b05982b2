package service

import (
	"context"
	"encoding/json"
	"time"

	"invoicedesk/internal/model"
	"invoicedesk/internal/repository"
	"invoicedesk/pkg/pagination"
)

type AuditLogResponse struct {
	ID        uint            `json:"id"`
	Username  string          `json:"username"`
	Action    string          `json:"action"`
	Division  string          `json:"division,omitempty"`
	EntityID  string          `json:"entity_id"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type AuditPage struct {
	Logs  []AuditLogResponse
	Total int64
	Pages int
	Page  int
	Limit int
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, p model.Principal, filter repository.AuditFilter, page, limit int) (*AuditPage, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs is restricted to admins and returns entries newest first.
func (s *auditService) GetAuditLogs(ctx context.Context, p model.Principal, filter repository.AuditFilter, page, limit int) (*AuditPage, error) {
	if err := requireRole(p, "read audit logs", model.RoleAdmin); err != nil {
		return nil, err
	}

	params := pagination.Normalize(page, limit)
	logs, total, err := s.repo.List(ctx, filter, params.Page, params.Limit)
	if err != nil {
		return nil, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		res = append(res, AuditLogResponse{
			ID:        l.ID,
			Username:  l.Username,
			Action:    l.Action,
			Division:  l.Division,
			EntityID:  l.EntityID,
			Details:   json.RawMessage(l.Details),
			CreatedAt: l.CreatedAt.Format(time.DateTime),
		})
	}

	return &AuditPage{
		Logs:  res,
		Total: total,
		Pages: pagination.TotalPages(total, params.Limit),
		Page:  params.Page,
		Limit: params.Limit,
	}, nil
}
