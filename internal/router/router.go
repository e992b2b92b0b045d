package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-block-booking/internal/handler"
	"github.com/iliyamo/seat-block-booking/internal/middleware"
	"github.com/iliyamo/seat-block-booking/internal/model"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers signup, login, refresh and logout under /v1/auth
// and the protected /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// VenueMiddleware groups the Redis backed middleware for the venue routes.
// Either may be nil.
type VenueMiddleware struct {
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// RegisterVenue registers the cached public reads, the rate limited booking
// endpoint, the operator-only reset and the caller's booking history.
func RegisterVenue(e *echo.Echo, v *handler.VenueHandler, jwtSecret string, mw VenueMiddleware) {
	cache := orPass(mw.Cache)
	limit := orPass(mw.RateLimit)
	auth := middleware.JWTAuth(jwtSecret)

	g := e.Group("/v1/venue")
	g.GET("/seats", v.Seats, cache)
	g.GET("/stats", v.Stats, cache)
	g.POST("/book", v.Book, auth, limit)
	g.POST("/reset", v.Reset, auth, middleware.RequireRole(model.RoleOperator))

	e.GET("/v1/my-bookings", v.MyBookings, auth)
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m != nil {
		return m
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
}
