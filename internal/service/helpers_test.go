package service

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"invoicedesk/internal/config"
	"invoicedesk/internal/database"
	"invoicedesk/internal/extraction"
	"invoicedesk/internal/metrics"
	"invoicedesk/internal/model"
	"invoicedesk/internal/repository"
	"invoicedesk/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	gateUser  = model.Principal{Username: "gate", Role: model.RoleGate}
	storeUser = model.Principal{Username: "store", Role: model.RoleStore}
	adminUser = model.Principal{Username: "admin", Role: model.RoleAdmin}
)

const validResponse = "```json\n" + `{
  "invoice_number": "INV-001",
  "invoice_date": "2024-03-01",
  "supplier_name": "Acme Supplies",
  "supplier_GSTIN": "29ABCDE1234F1Z5",
  "total_amount": "1,200.50",
  "total_tax_percentage": "18%",
  "job_ID": "J-42",
  "ocr_quality_score": 0.87
}` + "\n```"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:svc_"+name+"?mode=memory&cache=shared"), database.Config(zap.NewNop()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type scriptedGenerator struct {
	response string
	err      error
}

func (g *scriptedGenerator) Generate(context.Context, string) (string, error) {
	return g.response, g.err
}

type stubRecognizer struct {
	lines []string
	err   error
	calls int
}

func (r *stubRecognizer) Recognize(context.Context, []byte) ([]string, error) {
	r.calls++
	return r.lines, r.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.InvoiceEvent
}

func (p *recordingPublisher) Publish(e model.InvoiceEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db         *gorm.DB
	svc        InvoiceService
	invoices   repository.InvoiceRepository
	audit      repository.AuditRepository
	generator  *scriptedGenerator
	recognizer *stubRecognizer
	events     *recordingPublisher
	storeDir   string
	registry   *prometheus.Registry
}

func newFixture(t *testing.T, divisions ...string) *fixture {
	t.Helper()
	db := newTestDB(t)
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}

	f := &fixture{
		db:         db,
		invoices:   repository.NewInvoiceRepository(db),
		audit:      repository.NewAuditRepository(db),
		generator:  &scriptedGenerator{response: validResponse},
		recognizer: &stubRecognizer{lines: []string{"TAX INVOICE", "Invoice No: INV-001"}},
		events:     &recordingPublisher{},
		storeDir:   dir,
		registry:   prometheus.NewRegistry(),
	}
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	f.svc = NewInvoiceService(InvoiceDeps{
		Invoices:   f.invoices,
		Audit:      f.audit,
		Tx:         repository.NewTransactionManager(db),
		Store:      store,
		Recognizer: f.recognizer,
		Extractor:  extraction.NewExtractor(f.generator, time.Second, zap.NewNop()),
		Events:     f.events,
		Metrics:    metrics.New(f.registry),
		Logger:     zap.NewNop(),
		Divisions:  divisions,
		Now:        func() time.Time { return now },
	})
	return f
}

func (f *fixture) storedFiles(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.storeDir)
	if err != nil {
		t.Fatalf("read store dir: %v", err)
	}
	return len(entries)
}

func (f *fixture) countInvoices(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&model.InvoiceRecord{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (f *fixture) upload(t *testing.T, division string) *model.InvoiceRecord {
	t.Helper()
	rec, err := f.svc.Upload(context.Background(), gateUser, division, "invoice.pdf", []byte("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return rec
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "invoicedesk", AccessTTL: time.Minute, RefreshTTL: time.Hour}
}
