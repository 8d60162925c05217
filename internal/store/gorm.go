package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"admincore/internal/models"
)

type txKey struct{}

// Gorm backs the store contracts with one *gorm.DB. It implements
// TxManager itself; Accounts() and Audit() expose the two store facets.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// Migrate creates the schema for all persisted entities.
func (s *Gorm) Migrate() error {
	return s.db.AutoMigrate(&models.AdminUser{}, &models.AuditLog{}, &models.Session{})
}

func (s *Gorm) Accounts() AccountStore { return &gormAccounts{s} }
func (s *Gorm) Audit() AuditStore      { return &gormAudit{s} }

func (s *Gorm) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

func (s *Gorm) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

type gormAccounts struct{ *Gorm }

func (s *gormAccounts) FindByID(ctx context.Context, id string) (*models.AdminUser, error) {
	var u models.AdminUser
	err := s.conn(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *gormAccounts) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var u models.AdminUser
	err := s.conn(ctx).First(&u, "LOWER(email) = ?", strings.ToLower(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *gormAccounts) ListAll(ctx context.Context) ([]models.AdminUser, error) {
	var users []models.AdminUser
	err := s.conn(ctx).Order("created_at desc").Find(&users).Error
	return users, err
}

func (s *gormAccounts) ListActiveByRole(ctx context.Context, role models.Role) ([]models.AdminUser, error) {
	var users []models.AdminUser
	err := s.conn(ctx).Where("role = ? AND is_active = ?", role, true).Find(&users).Error
	return users, err
}

func (s *gormAccounts) Save(ctx context.Context, u *models.AdminUser) error {
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(u).Error
}

type gormAudit struct{ *Gorm }

func (s *gormAudit) Append(ctx context.Context, entry *models.AuditLog) error {
	return s.conn(ctx).Create(entry).Error
}

func (s *gormAudit) ListAll(ctx context.Context, limit int) ([]models.AuditLog, error) {
	q := s.conn(ctx).Order("created_at asc, seq asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var logs []models.AuditLog
	err := q.Find(&logs).Error
	return logs, err
}
