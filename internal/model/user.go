package model

import "time"

// User is a row of the `users` table.  Roles are CUSTOMER or OPERATOR;
// only operators may reset the venue.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username (unique, lower-cased)
	PasswordHash string    // users.password_hash (bcrypt)
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

const (
	RoleCustomer = "CUSTOMER"
	RoleOperator = "OPERATOR"
)

// RefreshToken models a `refresh_tokens` row.  Only the SHA-256 hash of the
// token handed to the client is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
