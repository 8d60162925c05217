package models

import "time"

// Role is the closed set of roles an admin account can hold.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// AuditAction enumerates every recordable action.
type AuditAction string

const (
	ActionUserCreated     AuditAction = "user_created"
	ActionUserUpdated     AuditAction = "user_updated"
	ActionUserDeactivated AuditAction = "user_deactivated"
	ActionUserActivated   AuditAction = "user_activated"
	ActionPasswordReset   AuditAction = "password_reset"
	ActionLoginSuccess    AuditAction = "login_success"
	ActionLoginFailed     AuditAction = "login_failed"
)

// SystemActor is the actor id recorded for bootstrap actions and for
// events with no determinable account.
const SystemActor = "system"

type AdminUser struct {
	ID           string `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	Name         string `gorm:"not null" json:"name"`
	PasswordHash string `gorm:"not null" json:"-"`
	// No column defaults on the bool fields: GORM omits zero values for
	// defaulted columns at insert, which would make false unwritable
	// through the upsert.
	MustChangePassword bool       `gorm:"not null" json:"must_change_password"`
	Role               Role       `gorm:"not null" json:"role"`
	IsActive           bool       `gorm:"not null" json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}

// AuditLog rows are append-only. Seq breaks created_at ties so listings
// preserve insertion order.
type AuditLog struct {
	Seq       int64       `gorm:"primaryKey;autoIncrement" json:"-"`
	ID        string      `gorm:"type:uuid;uniqueIndex;not null" json:"id"`
	Action    AuditAction `gorm:"not null" json:"action"`
	ActorID   string      `gorm:"not null;index" json:"actor_id"`
	TargetID  *string     `gorm:"index" json:"target_id,omitempty"`
	Details   JSONB       `gorm:"type:jsonb;default:'{}'" json:"details"`
	CreatedAt time.Time   `json:"created_at"`
}

type Session struct {
	JTI       string     `gorm:"primaryKey;size:64" json:"jti"`
	UserID    string     `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
