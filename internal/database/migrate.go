package database

import (
	"context"
	"errors"
	"fmt"

	"invoicedesk/internal/config"
	"invoicedesk/internal/model"

	"github.com/go-gormigrate/gormigrate/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20240301_create_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&model.User{}, &model.RefreshToken{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&model.RefreshToken{}, &model.User{})
			},
		},
		{
			ID: "20240301_create_invoices",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&model.InvoiceRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&model.InvoiceRecord{})
			},
		},
		{
			ID: "20240315_create_audit_logs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&model.AuditLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&model.AuditLog{})
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SeedUsers creates the default admin, gate and store accounts whose password is
// configured. Existing accounts are left untouched.
func SeedUsers(ctx context.Context, db *gorm.DB, seed config.SeedConfig, log *zap.Logger) error {
	defaults := []struct {
		username, role, password string
	}{
		{"admin", model.RoleAdmin, seed.AdminPassword},
		{"gate", model.RoleGate, seed.GatePassword},
		{"store", model.RoleStore, seed.StorePassword},
	}

	for _, d := range defaults {
		if d.password == "" {
			continue
		}
		var existing model.User
		err := db.WithContext(ctx).Where("username = ?", d.username).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup %s: %w", d.username, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(d.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", d.username, err)
		}
		user := &model.User{Username: d.username, Password: string(hash), Role: d.role}
		if err := db.WithContext(ctx).Create(user).Error; err != nil {
			return fmt.Errorf("create %s: %w", d.username, err)
		}
		log.Info("seeded default user", zap.String("username", d.username), zap.String("role", d.role))
	}
	return nil
}
