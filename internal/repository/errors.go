// Package repository holds the MySQL data access for users, refresh tokens
// and the booking audit trail.  Sentinel errors let handlers pick a status
// code without inspecting driver errors.
package repository

import "errors"

// ErrUsernameTaken is returned by UserRepo.Create for a duplicate username.
// Handlers translate it into HTTP 409.
var ErrUsernameTaken = errors.New("username already exists")

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrTokenInvalid covers unknown, revoked and expired refresh tokens.
var ErrTokenInvalid = errors.New("refresh token invalid")

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062
