// Package store defines the persistence contracts consumed by the account
// service, plus their GORM implementation. Lookups return (nil, nil) when
// no row matches; database errors never leak as not-found.
package store

import (
	"context"

	"admincore/internal/models"
)

type AccountStore interface {
	FindByID(ctx context.Context, id string) (*models.AdminUser, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	ListAll(ctx context.Context) ([]models.AdminUser, error)
	ListActiveByRole(ctx context.Context, role models.Role) ([]models.AdminUser, error)
	// Save upserts by id with full-replace semantics.
	Save(ctx context.Context, u *models.AdminUser) error
}

type AuditStore interface {
	// Append is write-only; audit rows are never updated or deleted.
	Append(ctx context.Context, entry *models.AuditLog) error
	// ListAll orders by timestamp, insertion sequence breaking ties.
	ListAll(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// TxManager runs fn inside a database transaction. Stores called with the
// ctx passed to fn join that transaction, so a mutation and its audit
// entry commit or roll back together.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
