package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"invoicedesk/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store keeps the uploaded source documents. References returned by Put are opaque
// to callers and only meaningful to the same Store.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// New builds the Store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.LocalDir)
	case "minio":
		return NewMinIOStore(ctx, cfg.MinIO, log)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Driver)
	}
}

// objectName prefixes a sanitized file name with a random id so uploads of the same
// file never overwrite each other.
func objectName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == "" {
		base = "document.pdf"
	}
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	return uuid.NewString() + "_" + safe
}
