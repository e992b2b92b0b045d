package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys populated by JWTAuth.
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxRole     = "role"
)

// UserID returns the authenticated user's ID, or false for guests.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Username returns the authenticated user's name, or "" for guests.
func Username(c echo.Context) string {
	s, _ := c.Get(ctxUsername).(string)
	return s
}

// Role returns the authenticated user's role, or "" for guests.
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

// identityKey is the user part of rate limit keys: the decimal ID or "anon".
func identityKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
