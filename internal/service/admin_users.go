// Package service implements the policy-enforcement core for internal
// operator accounts: creation, updates, activation state, password
// lifecycle, authentication, and the audit trail behind all of it.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"admincore/internal/auth"
	"admincore/internal/models"
	"admincore/internal/store"
	"admincore/internal/validation"
)

type Params struct {
	Accounts store.AccountStore
	Audit    store.AuditStore
	Tx       store.TxManager
	Issuer   auth.TempPasswordIssuer

	AllowedEmailDomains []string
	PasswordMinLength   int

	Logger *zap.SugaredLogger
}

// AdminUserService orchestrates every account mutation: it validates
// inputs, enforces the account invariants, persists through the account
// store, and records an audit entry inside the same transaction.
type AdminUserService struct {
	// mu serializes check-then-act sequences (duplicate email,
	// last-super-admin count) against each other in-process. The email
	// unique index is the cross-process backstop.
	mu sync.Mutex

	accounts store.AccountStore
	recorder *Recorder
	tx       store.TxManager
	issuer   auth.TempPasswordIssuer

	allowedDomains []string
	passwordMinLen int

	lg *zap.SugaredLogger
}

func NewAdminUserService(p Params) *AdminUserService {
	issuer := p.Issuer
	if issuer == nil {
		issuer = auth.RandomIssuer{}
	}
	lg := p.Logger
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}
	return &AdminUserService{
		accounts:       p.Accounts,
		recorder:       NewRecorder(p.Audit),
		tx:             p.Tx,
		issuer:         issuer,
		allowedDomains: p.AllowedEmailDomains,
		passwordMinLen: p.PasswordMinLength,
		lg:             lg,
	}
}

// CreateAccount creates an active account with a freshly issued temporary
// password and returns the plaintext alongside the account. The plaintext
// is never stored and cannot be recovered afterwards.
func (s *AdminUserService) CreateAccount(ctx context.Context, actorID, email, name string, role models.Role) (*models.AdminUser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role == "" {
		role = models.RoleAdmin
	}
	if !role.Valid() {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := validation.CheckEmailFormat(email); err != nil {
		return nil, "", ErrInvalidEmailFormat
	}
	if err := validation.CheckEmailDomain(email, s.allowedDomains); err != nil {
		return nil, "", fmt.Errorf("%w. Allowed domains: %s", ErrDomainNotAllowed, strings.Join(s.allowedDomains, ", "))
	}
	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("lookup by email: %w", err)
	}
	if existing != nil {
		return nil, "", ErrEmailAlreadyExists
	}

	tempPassword, err := s.issuer.Issue()
	if err != nil {
		return nil, "", fmt.Errorf("issue temp password: %w", err)
	}
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return nil, "", fmt.Errorf("hash temp password: %w", err)
	}

	now := time.Now()
	user := &models.AdminUser{
		ID:                 uuid.New().String(),
		Email:              strings.ToLower(email),
		Name:               name,
		PasswordHash:       hash,
		MustChangePassword: true,
		Role:               role,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Save(ctx, user); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, models.ActionUserCreated, actorID, &user.ID, map[string]any{
			"email":      user.Email,
			"role":       string(role),
			"created_by": actorID,
		})
		return err
	})
	if err != nil {
		return nil, "", err
	}
	s.lg.Infow("user created", "user_id", user.ID, "email", user.Email, "role", role, "actor", actorID)
	return user, tempPassword, nil
}

// UpdateAccount applies the provided fields. Calling it with values equal
// to current state is a no-op that succeeds without an audit entry.
func (s *AdminUserService) UpdateAccount(ctx context.Context, actorID, userID string, name *string, role *models.Role) (*models.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup by id: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if role != nil && !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, *role)
	}

	// Demoting a super_admin needs at least one other active one.
	if role != nil && *role != models.RoleSuperAdmin && user.Role == models.RoleSuperAdmin {
		if err := s.checkNotLastSuperAdmin(ctx); err != nil {
			return nil, err
		}
	}

	changes := map[string]any{}
	if name != nil && *name != user.Name {
		changes["name"] = map[string]string{"from": user.Name, "to": *name}
		user.Name = *name
	}
	if role != nil && *role != user.Role {
		changes["role"] = map[string]string{"from": string(user.Role), "to": string(*role)}
		user.Role = *role
	}
	if len(changes) == 0 {
		return user, nil
	}

	user.UpdatedAt = time.Now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Save(ctx, user); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, models.ActionUserUpdated, actorID, &user.ID, map[string]any{
			"changes": changes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.lg.Infow("user updated", "user_id", user.ID, "changes", changes, "actor", actorID)
	return user, nil
}

// DeactivateAccount disables login for the target account. Actors cannot
// deactivate themselves, and the last active super_admin is protected.
func (s *AdminUserService) DeactivateAccount(ctx context.Context, actorID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if actorID == userID {
		return ErrCannotActOnSelf
	}
	user, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup by id: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if !user.IsActive {
		return ErrAlreadyInactive
	}
	if user.Role == models.RoleSuperAdmin {
		if err := s.checkNotLastSuperAdmin(ctx); err != nil {
			return err
		}
	}

	user.IsActive = false
	user.UpdatedAt = time.Now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Save(ctx, user); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, models.ActionUserDeactivated, actorID, &user.ID, map[string]any{
			"email": user.Email,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.lg.Infow("user deactivated", "user_id", user.ID, "actor", actorID)
	return nil
}

// ActivateAccount re-enables a previously deactivated account.
func (s *AdminUserService) ActivateAccount(ctx context.Context, actorID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup by id: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsActive {
		return ErrAlreadyActive
	}

	user.IsActive = true
	user.UpdatedAt = time.Now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Save(ctx, user); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, models.ActionUserActivated, actorID, &user.ID, map[string]any{
			"email": user.Email,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.lg.Infow("user activated", "user_id", user.ID, "actor", actorID)
	return nil
}

// ResetPassword issues a new temporary password for the target, stores its
// hash and flags the account for a mandatory change. The plaintext is
// returned once and never re-derivable.
func (s *AdminUserService) ResetPassword(ctx context.Context, actorID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("lookup by id: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	tempPassword, err := s.issuer.Issue()
	if err != nil {
		return "", fmt.Errorf("issue temp password: %w", err)
	}
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return "", fmt.Errorf("hash temp password: %w", err)
	}

	user.PasswordHash = hash
	user.MustChangePassword = true
	user.UpdatedAt = time.Now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Save(ctx, user); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, models.ActionPasswordReset, actorID, &user.ID, map[string]any{
			"email": user.Email,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	s.lg.Infow("password reset", "user_id", user.ID, "actor", actorID)
	return tempPassword, nil
}

// ChangePassword is the self-service flow: it verifies the current
// password, enforces the strength policy, and clears MustChangePassword.
func (s *AdminUserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup by id: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := auth.CheckPassword(user.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	if err := validation.CheckPasswordStrength(next, s.passwordMinLen); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = hash
	user.MustChangePassword = false
	user.UpdatedAt = time.Now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Save(ctx, user); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, models.ActionUserUpdated, userID, &user.ID, map[string]any{
			"changes": map[string]any{"password_changed": true},
		})
		return err
	})
	if err != nil {
		return err
	}
	s.lg.Infow("password changed", "user_id", user.ID)
	return nil
}

// Authenticate fails closed. Unknown accounts and wrong passwords both
// surface ErrInvalidCredentials; only deactivation is distinguishable to
// the caller. Each failure path is audited with its internal reason.
// It takes mu like every other mutation: the success path writes the row
// back whole, so a concurrent deactivation or reset must not interleave
// with the read.
func (s *AdminUserService) Authenticate(ctx context.Context, email, password string) (*models.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup by email: %w", err)
	}
	if user == nil {
		s.recordLoginFailed(ctx, models.SystemActor, nil, email, "account_not_found")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.recordLoginFailed(ctx, user.ID, &user.ID, email, "account_deactivated")
		return nil, ErrAccountDeactivated
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		s.recordLoginFailed(ctx, user.ID, &user.ID, email, "invalid_password")
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Save(ctx, user); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, models.ActionLoginSuccess, user.ID, nil, map[string]any{
			"email": user.Email,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if user.MustChangePassword {
		s.lg.Infow("login ok, password change owed", "user_id", user.ID)
	} else {
		s.lg.Infow("login ok", "user_id", user.ID)
	}
	return user, nil
}

func (s *AdminUserService) recordLoginFailed(ctx context.Context, actorID string, targetID *string, email, reason string) {
	if _, err := s.recorder.Record(ctx, models.ActionLoginFailed, actorID, targetID, map[string]any{
		"email":  strings.ToLower(email),
		"reason": reason,
	}); err != nil {
		s.lg.Errorw("login_failed audit write failed", "error", err)
	}
}

// GetAccount returns the account with the given id, ErrUserNotFound otherwise.
func (s *AdminUserService) GetAccount(ctx context.Context, userID string) (*models.AdminUser, error) {
	user, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup by id: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AdminUserService) ListAccounts(ctx context.Context) ([]models.AdminUser, error) {
	return s.accounts.ListAll(ctx)
}

func (s *AdminUserService) ListAuditLog(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return s.recorder.audit.ListAll(ctx, limit)
}

// checkNotLastSuperAdmin rejects a mutation that would leave zero active
// super_admins. The count is of persisted state before the mutation; the
// caller holds mu so the count cannot be invalidated concurrently.
func (s *AdminUserService) checkNotLastSuperAdmin(ctx context.Context) error {
	admins, err := s.accounts.ListActiveByRole(ctx, models.RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("count active super_admins: %w", err)
	}
	if len(admins) <= 1 {
		return ErrLastSuperAdminProtected
	}
	return nil
}
