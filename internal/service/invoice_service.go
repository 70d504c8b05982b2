package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/metrics"
	"invoicedesk/internal/model"
	"invoicedesk/internal/repository"
	"invoicedesk/internal/storage"

	"go.uber.org/zap"
)

// TextRecognizer turns a PDF into its recognized text lines.
type TextRecognizer interface {
	Recognize(ctx context.Context, data []byte) ([]string, error)
}

// FieldExtractor structures recognized lines into invoice fields.
type FieldExtractor interface {
	Extract(ctx context.Context, lines []string) (model.Extraction, error)
}

// EventPublisher fans committed invoice changes out to live clients.
type EventPublisher interface {
	Publish(event model.InvoiceEvent)
}

type InvoiceService interface {
	Upload(ctx context.Context, p model.Principal, division, filename string, pdf []byte) (*model.InvoiceRecord, error)
	List(ctx context.Context, p model.Principal, division string, filter repository.InvoiceListFilter) (*repository.InvoicePage, error)
	Get(ctx context.Context, p model.Principal, division string, id uint) (*model.InvoiceRecord, error)
	Approve(ctx context.Context, p model.Principal, division string, id uint) (*model.InvoiceRecord, error)
	Reject(ctx context.Context, p model.Principal, division string, id uint) (*model.InvoiceRecord, error)
	Edit(ctx context.Context, p model.Principal, division string, id uint, patch model.InvoicePatch) (*model.InvoiceRecord, error)
	Report(ctx context.Context, p model.Principal, r repository.DateRange) ([]model.InvoiceRecord, error)
	ExportReport(ctx context.Context, p model.Principal, r repository.DateRange) ([]byte, error)
	OpenDocument(ctx context.Context, p model.Principal, division string, id uint) (*model.InvoiceRecord, []byte, error)
}

// InvoiceDeps wires an InvoiceService. Events, Metrics and Now are optional.
type InvoiceDeps struct {
	Invoices   repository.InvoiceRepository
	Audit      repository.AuditRepository
	Tx         repository.TransactionManager
	Workflow   *Workflow
	Store      storage.Store
	Recognizer TextRecognizer
	Extractor  FieldExtractor
	Events     EventPublisher
	Metrics    *metrics.InvoiceMetrics
	Logger     *zap.Logger

	// Divisions accepted by Upload; empty accepts any non-blank division.
	Divisions []string
	Now       func() time.Time
}

type invoiceService struct {
	invoices   repository.InvoiceRepository
	audit      repository.AuditRepository
	tx         repository.TransactionManager
	workflow   *Workflow
	store      storage.Store
	recognizer TextRecognizer
	extractor  FieldExtractor
	events     EventPublisher
	metrics    *metrics.InvoiceMetrics
	log        *zap.Logger
	divisions  []string
	now        func() time.Time
}

type noopPublisher struct{}

func (noopPublisher) Publish(model.InvoiceEvent) {}

func NewInvoiceService(d InvoiceDeps) InvoiceService {
	s := &invoiceService{
		invoices:   d.Invoices,
		audit:      d.Audit,
		tx:         d.Tx,
		workflow:   d.Workflow,
		store:      d.Store,
		recognizer: d.Recognizer,
		extractor:  d.Extractor,
		events:     d.Events,
		metrics:    d.Metrics,
		log:        d.Logger,
		divisions:  d.Divisions,
		now:        d.Now,
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("invoices")
	if s.now == nil {
		s.now = time.Now
	}
	if s.workflow == nil {
		s.workflow = NewWorkflow(d.Invoices, d.Audit, d.Tx, d.Metrics)
	}
	return s
}

// Upload runs the intake pipeline for one PDF: store the source, recognize, extract,
// build the record and persist it with its audit entry. Nothing is persisted unless
// every step succeeds; the stored source is removed again on failure.
func (s *invoiceService) Upload(ctx context.Context, p model.Principal, division, filename string, pdf []byte) (rec *model.InvoiceRecord, err error) {
	if err := requireRole(p, "upload invoices", model.RoleGate, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.checkDivision(division); err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty file", apperror.ErrInvalidDocument)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, fmt.Errorf("%w: only PDF files are accepted", apperror.ErrInvalidDocument)
	}

	start := s.now()
	ref, err := s.store.Put(ctx, filename, pdf)
	if err != nil {
		s.metrics.IncUpload(division, metrics.OutcomeFailed)
		return nil, fmt.Errorf("store document: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		s.metrics.IncUpload(division, uploadOutcome(err))
		if delErr := s.store.Delete(context.WithoutCancel(ctx), ref); delErr != nil {
			s.log.Warn("failed to remove stored document", zap.String("ref", ref), zap.Error(delErr))
		}
		s.log.Info("upload rejected",
			zap.String("division", division),
			zap.String("user", p.Username),
			zap.String("file", filename),
			zap.Error(err),
		)
	}()

	lines, err := s.recognizer.Recognize(ctx, pdf)
	if err != nil {
		return nil, fmt.Errorf("recognize %s: %w", filename, err)
	}

	extractStart := time.Now()
	ext, err := s.extractor.Extract(ctx, lines)
	s.metrics.ObserveExtraction(time.Since(extractStart), err)
	if err != nil {
		return nil, err
	}

	rec, err = model.NewInvoiceRecord(ext, division, p.Username, ref, s.now())
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.invoices.Insert(txCtx, rec); err != nil {
			return err
		}
		details, _ := json.Marshal(map[string]any{
			"invoice_number":    rec.InvoiceNumber,
			"reference_number":  rec.ReferenceNumber,
			"ocr_quality_score": rec.OCRQualityScore,
		})
		return s.audit.Log(txCtx, &model.AuditLog{
			Username: p.Username,
			Action:   model.ActionUploadInvoice,
			Division: division,
			EntityID: strconv.FormatUint(uint64(rec.ID), 10),
			Details:  details,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncUpload(division, metrics.OutcomeAccepted)
	s.metrics.ObserveQualityScore(rec.OCRQualityScore)
	s.log.Info("invoice uploaded",
		zap.String("division", division),
		zap.Uint("id", rec.ID),
		zap.String("invoice_number", rec.InvoiceNumber),
		zap.Int("lines", len(lines)),
		zap.Float64("ocr_quality_score", rec.OCRQualityScore),
		zap.Duration("elapsed", s.now().Sub(start)),
	)
	s.events.Publish(model.NewInvoiceEvent(model.EventInvoiceUploaded, rec, p.Username, s.now()))
	return rec, nil
}

func (s *invoiceService) List(ctx context.Context, p model.Principal, division string, filter repository.InvoiceListFilter) (*repository.InvoicePage, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	if filter.Status != "" && filter.Status != model.StatusPending && !model.ValidTransitionTarget(filter.Status) {
		return nil, fmt.Errorf("%w: %q", apperror.ErrInvalidStatus, filter.Status)
	}
	return s.invoices.List(ctx, division, filter, p.Role)
}

func (s *invoiceService) Get(ctx context.Context, p model.Principal, division string, id uint) (*model.InvoiceRecord, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	return s.invoices.Get(ctx, division, id)
}

func (s *invoiceService) Approve(ctx context.Context, p model.Principal, division string, id uint) (*model.InvoiceRecord, error) {
	return s.transition(ctx, p, division, id, model.StatusApproved, model.EventInvoiceApproved)
}

func (s *invoiceService) Reject(ctx context.Context, p model.Principal, division string, id uint) (*model.InvoiceRecord, error) {
	return s.transition(ctx, p, division, id, model.StatusRejected, model.EventInvoiceRejected)
}

func (s *invoiceService) transition(ctx context.Context, p model.Principal, division string, id uint, target, event string) (*model.InvoiceRecord, error) {
	rec, err := s.workflow.Transition(ctx, p, division, id, target)
	if err != nil {
		return nil, err
	}
	s.log.Info("invoice status changed",
		zap.String("division", division),
		zap.Uint("id", id),
		zap.String("status", target),
		zap.String("user", p.Username),
	)
	s.events.Publish(model.NewInvoiceEvent(event, rec, p.Username, s.now()))
	return rec, nil
}

// Edit corrects extracted fields. Concurrent edits are last-writer-wins.
func (s *invoiceService) Edit(ctx context.Context, p model.Principal, division string, id uint, patch model.InvoicePatch) (*model.InvoiceRecord, error) {
	if err := requireRole(p, "edit invoices", model.RoleGate, model.RoleStore, model.RoleAdmin); err != nil {
		return nil, err
	}

	var rec *model.InvoiceRecord
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.invoices.Edit(txCtx, division, id, patch); err != nil {
			return err
		}
		details, _ := json.Marshal(patch.Columns())
		if err := s.audit.Log(txCtx, &model.AuditLog{
			Username: p.Username,
			Action:   model.ActionEditInvoice,
			Division: division,
			EntityID: strconv.FormatUint(uint64(id), 10),
			Details:  details,
		}); err != nil {
			return fmt.Errorf("audit %s: %w", model.ActionEditInvoice, err)
		}
		var err error
		rec, err = s.invoices.Get(txCtx, division, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(model.NewInvoiceEvent(model.EventInvoiceEdited, rec, p.Username, s.now()))
	return rec, nil
}

// Report lists invoices of every division scanned within r.
func (s *invoiceService) Report(ctx context.Context, p model.Principal, r repository.DateRange) ([]model.InvoiceRecord, error) {
	if err := requireRole(p, "generate reports", model.RoleStore, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.invoices.Report(ctx, r)
}

func (s *invoiceService) ExportReport(ctx context.Context, p model.Principal, r repository.DateRange) ([]byte, error) {
	records, err := s.Report(ctx, p, r)
	if err != nil {
		return nil, err
	}
	buf, err := writeReportXLSX(records)
	if err != nil {
		return nil, err
	}
	s.log.Info("report exported", zap.Int("rows", len(records)), zap.String("user", p.Username))
	return buf, nil
}

// OpenDocument returns the stored source PDF of an invoice.
func (s *invoiceService) OpenDocument(ctx context.Context, p model.Principal, division string, id uint) (*model.InvoiceRecord, []byte, error) {
	rec, err := s.Get(ctx, p, division, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Get(ctx, rec.S3FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("load document of invoice %d: %w", id, err)
	}
	return rec, data, nil
}

func (s *invoiceService) checkDivision(division string) error {
	if strings.TrimSpace(division) == "" {
		return fmt.Errorf("%w: division is required", apperror.ErrUnknownDivision)
	}
	if len(s.divisions) > 0 && !slices.Contains(s.divisions, division) {
		return fmt.Errorf("%w: %q", apperror.ErrUnknownDivision, division)
	}
	return nil
}

func requireAuthenticated(p model.Principal) error {
	if p.Username == "" || p.Role == "" {
		return fmt.Errorf("%w: authentication required", apperror.ErrUnauthorized)
	}
	return nil
}

func requireRole(p model.Principal, action string, roles ...string) error {
	if err := requireAuthenticated(p); err != nil {
		return err
	}
	if !p.HasRole(roles...) {
		return fmt.Errorf("%w: role %q cannot %s", apperror.ErrUnauthorized, p.Role, action)
	}
	return nil
}

func uploadOutcome(err error) string {
	switch {
	case errors.Is(err, apperror.ErrDuplicateInvoiceNumber):
		return metrics.OutcomeDuplicate
	case errors.Is(err, apperror.ErrIncompleteInvoice):
		return metrics.OutcomeIncomplete
	case errors.Is(err, apperror.ErrMalformedExtraction):
		return metrics.OutcomeMalformed
	case errors.Is(err, apperror.ErrUnreadableDocument):
		return metrics.OutcomeUnreadable
	case errors.Is(err, apperror.ErrTooManyPages):
		return metrics.OutcomeTooLarge
	case errors.Is(err, apperror.ErrExtractionServiceUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeFailed
	}
}
