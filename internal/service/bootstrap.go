package service

import (
	"context"
	"fmt"

	"admincore/internal/models"
)

// Bootstrap creates the initial super_admin when none is active, acting as
// the system sentinel. It returns the one-time temporary password, or ""
// when the system already has an active super_admin.
func (s *AdminUserService) Bootstrap(ctx context.Context, email, name string) (string, error) {
	admins, err := s.accounts.ListActiveByRole(ctx, models.RoleSuperAdmin)
	if err != nil {
		return "", fmt.Errorf("count active super_admins: %w", err)
	}
	if len(admins) > 0 {
		return "", nil
	}
	if email == "" {
		return "", fmt.Errorf("bootstrap admin email not configured")
	}
	_, tempPassword, err := s.CreateAccount(ctx, models.SystemActor, email, name, models.RoleSuperAdmin)
	if err != nil {
		return "", fmt.Errorf("bootstrap super_admin: %w", err)
	}
	return tempPassword, nil
}
