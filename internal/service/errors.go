package service

import "errors"

// Sentinel domain errors. The transport layer maps these to status codes
// with errors.Is; none of them is process-fatal and every rejected
// mutation leaves state unchanged.
var (
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrDomainNotAllowed   = errors.New("email domain not allowed")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrEmailAlreadyExists = errors.New("user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role")
	ErrAlreadyActive      = errors.New("user is already active")
	ErrAlreadyInactive    = errors.New("user is already deactivated")

	ErrLastSuperAdminProtected = errors.New("cannot remove the last active super_admin")
	ErrCannotActOnSelf         = errors.New("cannot deactivate yourself")

	// ErrInvalidCredentials deliberately covers both unknown accounts and
	// wrong passwords so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account is deactivated")
)
