package repository

import (
	"errors"
	"strings"

	"invoicedesk/internal/apperror"

	"gorm.io/gorm"
)

// isDuplicateKey recognizes unique violations whether or not the dialect
// translated them to gorm.ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.ErrNotFound
	}
	return err
}
