package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"admincore/internal/auth"
	"admincore/internal/models"
	"admincore/internal/store"
)

const testTempPassword = "Octup@2026!"

func setupTestService(t *testing.T) *AdminUserService {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "admincore_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	st := store.NewGorm(db)
	require.NoError(t, st.Migrate())

	return NewAdminUserService(Params{
		Accounts:            st.Accounts(),
		Audit:               st.Audit(),
		Tx:                  st,
		Issuer:              auth.FixedIssuer{Password: testTempPassword},
		AllowedEmailDomains: []string{"octup.com", "test.com"},
		PasswordMinLength:   8,
	})
}

func auditEntries(t *testing.T, svc *AdminUserService, action models.AuditAction) []models.AuditLog {
	t.Helper()
	logs, err := svc.ListAuditLog(context.Background(), 0)
	require.NoError(t, err)
	var out []models.AuditLog
	for _, l := range logs {
		if l.Action == action {
			out = append(out, l)
		}
	}
	return out
}

func auditDetails(t *testing.T, entry models.AuditLog) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(entry.Details), &m))
	return m
}

func TestCreateAccount(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	user, tempPassword, err := svc.CreateAccount(ctx, models.SystemActor, "Admin@Octup.com", "System Admin", models.RoleSuperAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "admin@octup.com", user.Email, "email is normalized to lower case")
	assert.Equal(t, models.RoleSuperAdmin, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, user.MustChangePassword)
	assert.Nil(t, user.LastLoginAt)
	assert.Equal(t, testTempPassword, tempPassword)

	// Only the digest persists.
	assert.NotEqual(t, tempPassword, user.PasswordHash)
	require.NoError(t, auth.CheckPassword(user.PasswordHash, tempPassword))

	entries := auditEntries(t, svc, models.ActionUserCreated)
	require.Len(t, entries, 1)
	assert.Equal(t, models.SystemActor, entries[0].ActorID)
	require.NotNil(t, entries[0].TargetID)
	assert.Equal(t, user.ID, *entries[0].TargetID)
	details := auditDetails(t, entries[0])
	assert.Equal(t, "admin@octup.com", details["email"])
	assert.Equal(t, "super_admin", details["role"])
}

func TestCreateAccount_InvalidEmailFormat(t *testing.T) {
	svc := setupTestService(t)

	_, _, err := svc.CreateAccount(context.Background(), models.SystemActor, "not-an-email", "X", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidEmailFormat)

	// Rejected mutations produce no audit entry.
	logs, lerr := svc.ListAuditLog(context.Background(), 0)
	require.NoError(t, lerr)
	assert.Empty(t, logs)
}

func TestCreateAccount_DomainNotAllowed(t *testing.T) {
	svc := setupTestService(t)

	_, _, err := svc.CreateAccount(context.Background(), models.SystemActor, "user@gmail.com", "External", models.RoleAdmin)
	require.ErrorIs(t, err, ErrDomainNotAllowed)
	assert.Contains(t, err.Error(), "octup.com, test.com")
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	_, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "First", models.RoleAdmin)
	require.NoError(t, err)

	// Any case variant collides.
	_, _, err = svc.CreateAccount(ctx, models.SystemActor, "ADMIN@OCTUP.COM", "Second", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)

	users, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateAccount_InvalidRole(t *testing.T) {
	svc := setupTestService(t)

	_, _, err := svc.CreateAccount(context.Background(), models.SystemActor, "a@octup.com", "A", models.Role("owner"))
	assert.ErrorIs(t, err, ErrInvalidRole)

	// Empty role defaults to admin.
	user, _, err := svc.CreateAccount(context.Background(), models.SystemActor, "b@octup.com", "B", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
}

func TestAuthenticate_Success(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	created, tempPassword, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "System Admin", models.RoleSuperAdmin)
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "admin@octup.com", tempPassword)
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.True(t, user.MustChangePassword)
	require.NotNil(t, user.LastLoginAt)

	entries := auditEntries(t, svc, models.ActionLoginSuccess)
	require.Len(t, entries, 1)
	assert.Equal(t, user.ID, entries[0].ActorID)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	created, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "System Admin", models.RoleSuperAdmin)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "admin@octup.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	entries := auditEntries(t, svc, models.ActionLoginFailed)
	require.Len(t, entries, 1)
	assert.Equal(t, created.ID, entries[0].ActorID)
	assert.Equal(t, "invalid_password", auditDetails(t, entries[0])["reason"])
}

func TestAuthenticate_UnknownAccount(t *testing.T) {
	svc := setupTestService(t)

	// Indistinguishable from a wrong password externally, but audited
	// with the internal reason.
	_, err := svc.Authenticate(context.Background(), "ghost@octup.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	entries := auditEntries(t, svc, models.ActionLoginFailed)
	require.Len(t, entries, 1)
	assert.Equal(t, models.SystemActor, entries[0].ActorID)
	assert.Equal(t, "account_not_found", auditDetails(t, entries[0])["reason"])
}

func TestAuthenticate_Deactivated(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	super, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)
	user, tempPassword, err := svc.CreateAccount(ctx, super.ID, "user@octup.com", "Regular", models.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateAccount(ctx, super.ID, user.ID))

	_, err = svc.Authenticate(ctx, "user@octup.com", tempPassword)
	assert.ErrorIs(t, err, ErrAccountDeactivated)

	entries := auditEntries(t, svc, models.ActionLoginFailed)
	require.Len(t, entries, 1)
	assert.Equal(t, "account_deactivated", auditDetails(t, entries[0])["reason"])
}

func TestUpdateAccount(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	super, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)
	user, _, err := svc.CreateAccount(ctx, super.ID, "user@octup.com", "Regular Admin", models.RoleAdmin)
	require.NoError(t, err)

	name := "Updated Admin Name"
	role := models.RoleSuperAdmin
	updated, err := svc.UpdateAccount(ctx, super.ID, user.ID, &name, &role)
	require.NoError(t, err)
	assert.Equal(t, "Updated Admin Name", updated.Name)
	assert.Equal(t, models.RoleSuperAdmin, updated.Role)

	entries := auditEntries(t, svc, models.ActionUserUpdated)
	require.Len(t, entries, 1)
	changes := auditDetails(t, entries[0])["changes"].(map[string]any)
	nameDiff := changes["name"].(map[string]any)
	assert.Equal(t, "Regular Admin", nameDiff["from"])
	assert.Equal(t, "Updated Admin Name", nameDiff["to"])
	roleDiff := changes["role"].(map[string]any)
	assert.Equal(t, "admin", roleDiff["from"])
	assert.Equal(t, "super_admin", roleDiff["to"])
}

func TestUpdateAccount_NoChanges(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	user, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)

	// Same values: success, no audit entry.
	name := "Super"
	role := models.RoleSuperAdmin
	_, err = svc.UpdateAccount(ctx, user.ID, user.ID, &name, &role)
	require.NoError(t, err)
	assert.Empty(t, auditEntries(t, svc, models.ActionUserUpdated))

	// Nil fields: also a no-op.
	_, err = svc.UpdateAccount(ctx, user.ID, user.ID, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, auditEntries(t, svc, models.ActionUserUpdated))
}

func TestUpdateAccount_NotFound(t *testing.T) {
	svc := setupTestService(t)
	name := "X"
	_, err := svc.UpdateAccount(context.Background(), models.SystemActor, "missing-id", &name, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateAccount_LastSuperAdminDemotion(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	super, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)

	role := models.RoleAdmin
	_, err = svc.UpdateAccount(ctx, super.ID, super.ID, nil, &role)
	assert.ErrorIs(t, err, ErrLastSuperAdminProtected)

	// With a second active super_admin the demotion goes through.
	other, _, err := svc.CreateAccount(ctx, super.ID, "second@octup.com", "Second", models.RoleSuperAdmin)
	require.NoError(t, err)
	_, err = svc.UpdateAccount(ctx, other.ID, super.ID, nil, &role)
	require.NoError(t, err)

	got, err := svc.GetAccount(ctx, super.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
}

func TestDeactivateAccount_Self(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	super, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)

	err = svc.DeactivateAccount(ctx, super.ID, super.ID)
	assert.ErrorIs(t, err, ErrCannotActOnSelf)
}

func TestDeactivateAccount_LastSuperAdmin(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	super, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)
	admin, _, err := svc.CreateAccount(ctx, super.ID, "user@octup.com", "Regular", models.RoleAdmin)
	require.NoError(t, err)

	err = svc.DeactivateAccount(ctx, admin.ID, super.ID)
	assert.ErrorIs(t, err, ErrLastSuperAdminProtected)

	got, err := svc.GetAccount(ctx, super.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive, "protected super_admin stays active")
	assert.Empty(t, auditEntries(t, svc, models.ActionUserDeactivated))
}

func TestDeactivateAccount_SecondSuperAdminAllowed(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	first, _, err := svc.CreateAccount(ctx, models.SystemActor, "one@octup.com", "One", models.RoleSuperAdmin)
	require.NoError(t, err)
	second, _, err := svc.CreateAccount(ctx, first.ID, "two@octup.com", "Two", models.RoleSuperAdmin)
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateAccount(ctx, first.ID, second.ID))

	// Now the survivor is the last one.
	err = svc.DeactivateAccount(ctx, second.ID, first.ID)
	assert.ErrorIs(t, err, ErrLastSuperAdminProtected)
}

func TestDeactivateActivate_StateErrors(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	super, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)
	user, _, err := svc.CreateAccount(ctx, super.ID, "user@octup.com", "Regular", models.RoleAdmin)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ActivateAccount(ctx, super.ID, user.ID), ErrAlreadyActive)
	assert.ErrorIs(t, svc.DeactivateAccount(ctx, super.ID, "missing"), ErrUserNotFound)
	assert.ErrorIs(t, svc.ActivateAccount(ctx, super.ID, "missing"), ErrUserNotFound)

	require.NoError(t, svc.DeactivateAccount(ctx, super.ID, user.ID))
	assert.ErrorIs(t, svc.DeactivateAccount(ctx, super.ID, user.ID), ErrAlreadyInactive)

	require.NoError(t, svc.ActivateAccount(ctx, super.ID, user.ID))
	entries := auditEntries(t, svc, models.ActionUserActivated)
	require.Len(t, entries, 1)

	got, err := svc.GetAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestResetPassword(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	super, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)
	user, firstPassword, err := svc.CreateAccount(ctx, super.ID, "user@octup.com", "Regular", models.RoleAdmin)
	require.NoError(t, err)

	// Clear the flag first so the reset provably re-sets it.
	require.NoError(t, svc.ChangePassword(ctx, user.ID, firstPassword, "Changed123"))

	tempPassword, err := svc.ResetPassword(ctx, super.ID, user.ID)
	require.NoError(t, err)

	got, err := svc.GetAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.MustChangePassword)
	assert.NotEqual(t, tempPassword, got.PasswordHash)

	_, err = svc.Authenticate(ctx, "user@octup.com", "Changed123")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "prior credential is invalidated")
	_, err = svc.Authenticate(ctx, "user@octup.com", tempPassword)
	require.NoError(t, err)

	entries := auditEntries(t, svc, models.ActionPasswordReset)
	require.Len(t, entries, 1)

	_, err = svc.ResetPassword(ctx, super.ID, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	user, tempPassword, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "wrong", "NewPass123"), ErrInvalidCredentials)
	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, tempPassword, "weak"), ErrWeakPassword)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, tempPassword, "NewPass123"))

	got, err := svc.GetAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.MustChangePassword)

	_, err = svc.Authenticate(ctx, "admin@octup.com", "NewPass123")
	require.NoError(t, err)
}

func TestAuditLogOrdering(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	super, tempPassword, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "admin@octup.com", tempPassword)
	require.NoError(t, err)
	_, _, err = svc.CreateAccount(ctx, super.ID, "user@octup.com", "Regular", models.RoleAdmin)
	require.NoError(t, err)

	logs, err := svc.ListAuditLog(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, models.ActionUserCreated, logs[0].Action)
	assert.Equal(t, models.ActionLoginSuccess, logs[1].Action)
	assert.Equal(t, models.ActionUserCreated, logs[2].Action)
	for i := 1; i < len(logs); i++ {
		assert.False(t, logs[i].CreatedAt.Before(logs[i-1].CreatedAt))
	}
}

func TestSuperAdminInvariant_AlwaysHolds(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	super, _, err := svc.CreateAccount(ctx, models.SystemActor, "one@octup.com", "One", models.RoleSuperAdmin)
	require.NoError(t, err)
	admin, _, err := svc.CreateAccount(ctx, super.ID, "two@octup.com", "Two", models.RoleAdmin)
	require.NoError(t, err)

	// Throw every removal path at the only active super_admin.
	role := models.RoleAdmin
	_, _ = svc.UpdateAccount(ctx, admin.ID, super.ID, nil, &role)
	_ = svc.DeactivateAccount(ctx, admin.ID, super.ID)
	_ = svc.DeactivateAccount(ctx, super.ID, super.ID)

	users, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	active := 0
	for _, u := range users {
		if u.Role == models.RoleSuperAdmin && u.IsActive {
			active++
		}
	}
	assert.GreaterOrEqual(t, active, 1)
}

func TestOneTimeDisclosure_RandomIssuer(t *testing.T) {
	svc := setupTestService(t)
	svc.issuer = auth.RandomIssuer{}
	ctx := context.Background()

	user, tempPassword, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)
	assert.NotEqual(t, testTempPassword, tempPassword)

	// Nothing retrievable holds the plaintext: not the account row, not
	// the audit trail.
	got, err := svc.GetAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.PasswordHash, tempPassword)
	logs, err := svc.ListAuditLog(ctx, 0)
	require.NoError(t, err)
	for _, l := range logs {
		assert.NotContains(t, string(l.Details), tempPassword)
	}

	tempPassword2, err := svc.ResetPassword(ctx, models.SystemActor, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, tempPassword, tempPassword2, "each issuance is fresh")
}

func TestBootstrap(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	tempPassword, err := svc.Bootstrap(ctx, "admin@octup.com", "System Admin")
	require.NoError(t, err)
	require.NotEmpty(t, tempPassword)

	user, err := svc.Authenticate(ctx, "admin@octup.com", tempPassword)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, user.Role)

	entries := auditEntries(t, svc, models.ActionUserCreated)
	require.Len(t, entries, 1)
	assert.Equal(t, models.SystemActor, entries[0].ActorID)

	// Second call is a no-op once an active super_admin exists.
	again, err := svc.Bootstrap(ctx, "other@octup.com", "Other")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestAuthenticate_ConcurrentDeactivate(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	super, _, err := svc.CreateAccount(ctx, models.SystemActor, "admin@octup.com", "Super", models.RoleSuperAdmin)
	require.NoError(t, err)

	// A login in flight during a deactivation must not write its stale
	// copy of the row back and resurrect the account.
	for i := 0; i < 5; i++ {
		email := fmt.Sprintf("user%d@octup.com", i)
		user, tempPassword, err := svc.CreateAccount(ctx, super.ID, email, "Regular", models.RoleAdmin)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Authenticate(ctx, email, tempPassword)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.DeactivateAccount(ctx, super.ID, user.ID))
		}()
		wg.Wait()

		got, err := svc.GetAccount(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive, "deactivation must stick regardless of interleaving")
	}
}

func TestCreateAccount_ConcurrentDuplicate(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	// Both callers pass the email-format gate; only one may win the
	// check-then-act on the duplicate lookup.
	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.CreateAccount(ctx, models.SystemActor, "dup@octup.com", "Dup", models.RoleAdmin)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, ErrEmailAlreadyExists)
		}
	}
	assert.Equal(t, 1, created)

	users, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Len(t, auditEntries(t, svc, models.ActionUserCreated), 1)
}

func TestErrorsAreDistinct(t *testing.T) {
	svc := setupTestService(t)
	_, err := svc.Authenticate(context.Background(), "ghost@octup.com", "x")
	assert.False(t, errors.Is(err, ErrAccountDeactivated))
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}
