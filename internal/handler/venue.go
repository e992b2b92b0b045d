package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-block-booking/internal/booking"
	"github.com/iliyamo/seat-block-booking/internal/middleware"
	"github.com/iliyamo/seat-block-booking/internal/model"
	"github.com/iliyamo/seat-block-booking/internal/service"
)

// BookingHistory lists a user's recorded bookings.
type BookingHistory interface {
	ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Booking, error)
}

// VenueHandler exposes the venue: public reads, authenticated booking and
// operator reset.
type VenueHandler struct {
	Svc     *service.BookingService
	History BookingHistory
	Log     *zap.Logger
}

func NewVenueHandler(svc *service.BookingService, history BookingHistory, log *zap.Logger) *VenueHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &VenueHandler{Svc: svc, History: history, Log: log}
}

type bookReq struct {
	Count *int `json:"count"`
}

type statsResp struct {
	service.Stats
	State service.SessionState `json:"state"`
}

// Seats returns every row of the venue, front row first.
func (h *VenueHandler) Seats(c echo.Context) error {
	rows := h.Svc.Snapshot()
	return c.JSON(http.StatusOK, echo.Map{"rows": rows})
}

// Stats returns the occupancy counters and the last session message.
func (h *VenueHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, statsResp{Stats: h.Svc.Stats(), State: h.Svc.State()})
}

// Book allocates a block of {count} seats for the caller.
func (h *VenueHandler) Book(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil || req.Count == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "count required", "message": "Please enter a valid number of seats"})
	}
	count := *req.Count

	out, err := h.Svc.Book(c.Request().Context(), actorOf(c), count)
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "invalid_request",
			"message": service.FailureMessage(err, count, h.Svc.MaxBooking()),
		})
	case errors.Is(err, booking.ErrInsufficientCapacity):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "insufficient_capacity",
			"message": service.FailureMessage(err, count, h.Svc.MaxBooking()),
		})
	case err != nil:
		h.Log.Error("book failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
	}
	return c.JSON(http.StatusCreated, out)
}

// Reset empties the venue.  Routed for operators only.
func (h *VenueHandler) Reset(c echo.Context) error {
	released := h.Svc.Reset(c.Request().Context(), actorOf(c))
	c.Response().Header().Set("X-Released-Seats", strconv.Itoa(released))
	return c.NoContent(http.StatusNoContent)
}

// MyBookings lists the caller's bookings, newest first.  ?limit caps the
// result (default 20, max 100).
func (h *VenueHandler) MyBookings(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if h.History == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "booking history unavailable"})
	}
	limit := 20
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 100"})
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.History.ListByUser(ctx, uid, limit)
	if err != nil {
		h.Log.Error("list bookings failed", zap.Uint64("user_id", uid), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func actorOf(c echo.Context) service.Actor {
	id, _ := middleware.UserID(c)
	return service.Actor{UserID: id, Username: middleware.Username(c)}
}
