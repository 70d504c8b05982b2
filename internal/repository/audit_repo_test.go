package repository

import (
	"context"
	"testing"

	"invoicedesk/internal/model"
)

func TestAuditList(t *testing.T) {
	repo := NewAuditRepository(newTestDB(t))
	ctx := context.Background()

	entries := []*model.AuditLog{
		{Username: "gate", Action: model.ActionUploadInvoice, Division: "water", EntityID: "1"},
		{Username: "store", Action: model.ActionApproveInvoice, Division: "water", EntityID: "1"},
		{Username: "gate", Action: model.ActionUploadInvoice, Division: "engineering", EntityID: "2"},
	}
	for _, e := range entries {
		if err := repo.Log(ctx, e); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	all, total, err := repo.List(ctx, AuditFilter{}, 1, 10)
	if err != nil || total != 3 {
		t.Fatalf("expected 3 entries, got %d (%v)", total, err)
	}
	if all[0].EntityID != "2" {
		t.Fatalf("expected newest first, got %+v", all[0])
	}

	uploads, total, _ := repo.List(ctx, AuditFilter{Action: model.ActionUploadInvoice, Division: "water"}, 1, 10)
	if total != 1 || uploads[0].Username != "gate" {
		t.Fatalf("unexpected filtered entries %+v", uploads)
	}
}
