package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Pipeline and workflow failures. Services wrap these with fmt.Errorf("...: %w")
// so callers classify with errors.Is.
var (
	ErrUnreadableDocument           = errors.New("unreadable document")
	ErrTooManyPages                 = errors.New("document has too many pages")
	ErrExtractionServiceUnavailable = errors.New("extraction service unavailable")
	ErrMalformedExtraction          = errors.New("malformed extraction")
	ErrMultipleInvoices             = fmt.Errorf("%w: document contains more than one invoice", ErrMalformedExtraction)
	ErrIncompleteInvoice            = errors.New("incomplete invoice")
	ErrDuplicateInvoiceNumber       = errors.New("duplicate invoice number")
	ErrUnauthorized                 = errors.New("unauthorized")
	ErrNotFound                     = errors.New("not found")

	ErrInvalidEdit        = errors.New("invalid edit")
	ErrImmutableField     = fmt.Errorf("%w: field is immutable", ErrInvalidEdit)
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidDocument    = errors.New("invalid document")
	ErrUnknownDivision    = errors.New("unknown division")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidRequest     = errors.New("invalid request")
)

// IncompleteInvoiceError names every required field the extraction left empty.
type IncompleteInvoiceError struct {
	Missing []string
}

func (e *IncompleteInvoiceError) Error() string {
	return "incomplete invoice: missing " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteInvoiceError) Unwrap() error { return ErrIncompleteInvoice }

// DuplicateInvoiceError carries the conflicting business key.
type DuplicateInvoiceError struct {
	Division      string
	InvoiceNumber string
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("invoice %q already exists in division %q", e.InvoiceNumber, e.Division)
}

func (e *DuplicateInvoiceError) Unwrap() error { return ErrDuplicateInvoiceNumber }

// IsRetryable reports whether the caller may retry the whole pipeline call.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExtractionServiceUnavailable)
}

// HTTPStatus maps an error from the core to the status code the HTTP layer returns.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrDuplicateInvoiceNumber), errors.Is(err, ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, ErrExtractionServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTooManyPages):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrMalformedExtraction), errors.Is(err, ErrIncompleteInvoice),
		errors.Is(err, ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidEdit), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidDocument), errors.Is(err, ErrUnknownDivision),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text safe to put in a response body. Typed errors keep
// their actionable detail (missing fields, duplicate key); wrapped upstream causes
// are reduced to the sentinel's message.
func PublicMessage(err error) string {
	var incomplete *IncompleteInvoiceError
	if errors.As(err, &incomplete) {
		return incomplete.Error()
	}
	var dup *DuplicateInvoiceError
	if errors.As(err, &dup) {
		return dup.Error()
	}

	for _, known := range []error{
		ErrMultipleInvoices,
		ErrUnreadableDocument,
		ErrExtractionServiceUnavailable,
		ErrMalformedExtraction,
		ErrUnauthorized,
		ErrNotFound,
		ErrInvalidCredentials,
		ErrUsernameTaken,
		ErrInvalidToken,
		ErrUnknownDivision,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	// Validation errors are produced locally and describe the caller's input.
	for _, local := range []error{ErrInvalidEdit, ErrInvalidStatus, ErrInvalidDocument, ErrInvalidRequest, ErrTooManyPages} {
		if errors.Is(err, local) {
			return err.Error()
		}
	}
	return "an unexpected error occurred"
}
