package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/middleware"
	"invoicedesk/internal/model"
	"invoicedesk/internal/repository"
	"invoicedesk/internal/service"
	"invoicedesk/pkg/pagination"
	"invoicedesk/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	auth           *middleware.Auth
	maxUpload      int64
	log            *zap.Logger
}

// NewInvoiceHandler builds the invoice endpoints. maxUploadBytes bounds the
// multipart body of an upload.
func NewInvoiceHandler(invoiceService service.InvoiceService, auth *middleware.Auth, maxUploadBytes int64, log *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		auth:           auth,
		maxUpload:      maxUploadBytes,
		log:            log.Named("invoice_handler"),
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	authed := h.auth.RequireAuth()
	reviewers := h.auth.RequireRole(model.RoleStore, model.RoleAdmin)

	router.POST("/upload_invoice/:division", h.auth.RequireRole(model.RoleGate, model.RoleAdmin), h.UploadInvoice)
	router.GET("/get_invoices/:division", authed, h.ListInvoices)
	router.GET("/get_invoice/:division/:id", authed, h.GetInvoice)
	router.GET("/get_pdf/:division/:id", authed, h.GetPDF)
	router.PUT("/approve_invoice/:division/:id", reviewers, h.ApproveInvoice)
	router.PUT("/reject_invoice/:division/:id", reviewers, h.RejectInvoice)
	router.PUT("/edit_invoice/:division/:id", h.auth.RequireRole(model.RoleGate, model.RoleStore, model.RoleAdmin), h.EditInvoice)
	router.GET("/generate_report", reviewers, h.GenerateReport)
	router.GET("/generate_report/export", reviewers, h.ExportReport)
}

// UploadInvoice handles POST /upload_invoice/:division with a multipart "file" field.
// @Summary      Upload invoice
// @Description  Stores a PDF, runs OCR and extraction, and records a pending invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        division  path      string  true  "Division"
// @Param        file      formData  file    true  "Invoice PDF"
// @Success      201       {object}  response.Response{data=model.InvoiceRecord}
// @Failure      400       {object}  response.Response
// @Failure      409       {object}  response.Response
// @Failure      413       {object}  response.Response
// @Failure      422       {object}  response.Response
// @Failure      503       {object}  response.Response
// @Router       /upload_invoice/{division} [post]
func (h *InvoiceHandler) UploadInvoice(c *gin.Context) {
	if h.maxUpload > 0 {
		if c.Request.ContentLength > h.maxUpload {
			c.JSON(http.StatusRequestEntityTooLarge, response.Error(http.StatusRequestEntityTooLarge, "File too large"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, response.Error(http.StatusRequestEntityTooLarge, "File too large"))
			return
		}
		respondError(c, h.log, fmt.Errorf("%w: no file part", apperror.ErrInvalidDocument))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, h.log, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, h.log, fmt.Errorf("read upload: %w", err))
		return
	}

	rec, err := h.invoiceService.Upload(c.Request.Context(), middleware.Principal(c), c.Param("division"), fh.Filename, data)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rec))
}

// ListInvoices handles GET /get_invoices/:division.
// @Summary      List invoices
// @Description  Paginated invoices of a division; rejected invoices are only listed for admins
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        division    path      string  true   "Division"
// @Param        status      query     string  false  "pending, approved or rejected"
// @Param        start_date  query     string  false  "First scanning day (YYYY-MM-DD)"
// @Param        end_date    query     string  false  "Last scanning day (YYYY-MM-DD)"
// @Param        search      query     string  false  "Invoice, PO or reference number, or supplier"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        per_page    query     int     false  "Items per page (default 10, max 100)"
// @Success      200         {object}  response.Response{data=object}
// @Failure      400         {object}  response.Response
// @Router       /get_invoices/{division} [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	r, err := dateRange(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	p := pagination.Parse(c)

	page, err := h.invoiceService.List(c.Request.Context(), middleware.Principal(c), c.Param("division"), repository.InvoiceListFilter{
		Status:   c.Query("status"),
		Range:    r,
		Search:   c.Query("search"),
		Page:     p.Page,
		PageSize: p.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"invoices":     page.Records,
		"total":        page.Total,
		"pages":        page.Pages,
		"current_page": page.Page,
		"per_page":     page.PageSize,
	}))
}

// GetInvoice godoc
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        division  path      string  true  "Division"
// @Param        id        path      int     true  "Invoice ID"
// @Success      200       {object}  response.Response{data=model.InvoiceRecord}
// @Failure      404       {object}  response.Response
// @Router       /get_invoice/{division}/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	rec, err := h.invoiceService.Get(c.Request.Context(), middleware.Principal(c), c.Param("division"), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rec))
}

// GetPDF streams the stored source document inline.
// @Summary      Download invoice PDF
// @Tags         invoices
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        division  path      string  true  "Division"
// @Param        id        path      int     true  "Invoice ID"
// @Success      200       {file}    file
// @Failure      404       {object}  response.Response
// @Router       /get_pdf/{division}/{id} [get]
func (h *InvoiceHandler) GetPDF(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	rec, data, err := h.invoiceService.OpenDocument(c.Request.Context(), middleware.Principal(c), c.Param("division"), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="invoice_%s_%d.pdf"`, rec.Division, rec.ID))
	c.Data(http.StatusOK, "application/pdf", data)
}

// ApproveInvoice godoc
// @Summary      Approve invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        division  path      string  true  "Division"
// @Param        id        path      int     true  "Invoice ID"
// @Success      200       {object}  response.Response{data=model.InvoiceRecord}
// @Failure      403       {object}  response.Response
// @Failure      404       {object}  response.Response
// @Router       /approve_invoice/{division}/{id} [put]
func (h *InvoiceHandler) ApproveInvoice(c *gin.Context) {
	h.transition(c, h.invoiceService.Approve)
}

// RejectInvoice godoc
// @Summary      Reject invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        division  path      string  true  "Division"
// @Param        id        path      int     true  "Invoice ID"
// @Success      200       {object}  response.Response{data=model.InvoiceRecord}
// @Failure      403       {object}  response.Response
// @Failure      404       {object}  response.Response
// @Router       /reject_invoice/{division}/{id} [put]
func (h *InvoiceHandler) RejectInvoice(c *gin.Context) {
	h.transition(c, h.invoiceService.Reject)
}

type transitionFunc func(ctx context.Context, p model.Principal, division string, id uint) (*model.InvoiceRecord, error)

func (h *InvoiceHandler) transition(c *gin.Context, fn transitionFunc) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	rec, err := fn(c.Request.Context(), middleware.Principal(c), c.Param("division"), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rec))
}

// EditInvoice handles PUT /edit_invoice/:division/:id with a JSON object of the
// fields to correct.
// @Summary      Edit invoice
// @Description  Corrects extracted fields; id, reference_number and division are immutable
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        division  path      string              true  "Division"
// @Param        id        path      int                 true  "Invoice ID"
// @Param        payload   body      model.InvoicePatch  true  "Fields to correct"
// @Success      200       {object}  response.Response{data=model.InvoiceRecord}
// @Failure      400       {object}  response.Response
// @Failure      404       {object}  response.Response
// @Failure      409       {object}  response.Response
// @Router       /edit_invoice/{division}/{id} [put]
func (h *InvoiceHandler) EditInvoice(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		respondError(c, h.log, fmt.Errorf("%w: unreadable body", apperror.ErrInvalidEdit))
		return
	}
	patch, err := model.DecodeInvoicePatch(body)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	rec, err := h.invoiceService.Edit(c.Request.Context(), middleware.Principal(c), c.Param("division"), id, patch)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rec))
}

// GenerateReport handles GET /generate_report?start_date&end_date. Both bounds are
// whole days and inclusive.
// @Summary      Invoice report
// @Description  Invoices of every division scanned between the two days
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        start_date  query     string  false  "First scanning day (YYYY-MM-DD)"
// @Param        end_date    query     string  false  "Last scanning day (YYYY-MM-DD)"
// @Success      200         {object}  response.Response{data=object}
// @Failure      400         {object}  response.Response
// @Failure      403         {object}  response.Response
// @Router       /generate_report [get]
func (h *InvoiceHandler) GenerateReport(c *gin.Context) {
	r, err := dateRange(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	records, err := h.invoiceService.Report(c.Request.Context(), middleware.Principal(c), r)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"invoices": records,
		"total":    len(records),
	}))
}

// ExportReport returns the report as an XLSX attachment.
// @Summary      Export invoice report
// @Tags         reports
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        start_date  query     string  false  "First scanning day (YYYY-MM-DD)"
// @Param        end_date    query     string  false  "Last scanning day (YYYY-MM-DD)"
// @Success      200         {file}    file
// @Failure      400         {object}  response.Response
// @Router       /generate_report/export [get]
func (h *InvoiceHandler) ExportReport(c *gin.Context) {
	r, err := dateRange(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	data, err := h.invoiceService.ExportReport(c.Request.Context(), middleware.Principal(c), r)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	name := "invoice_report_" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// dateRange turns start_date and end_date into a scanning-date range covering both
// days completely.
func dateRange(c *gin.Context) (repository.DateRange, error) {
	start, err := parseDay(c, "start_date")
	if err != nil {
		return repository.DateRange{}, err
	}
	end, err := parseDay(c, "end_date")
	if err != nil {
		return repository.DateRange{}, err
	}
	r := repository.DateRange{From: start}
	if !end.IsZero() {
		r.To = end.AddDate(0, 0, 1)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return repository.DateRange{}, fmt.Errorf("%w: end_date is before start_date", apperror.ErrInvalidRequest)
	}
	return r, nil
}
