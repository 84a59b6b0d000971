package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pawpals/pawpark/internal/model"
	"github.com/pawpals/pawpark/internal/qr"
	"github.com/pawpals/pawpark/internal/repository"
	"github.com/pawpals/pawpark/internal/service"
)

// VisitHandler exposes the check-in / check-out lifecycle over HTTP.
// JWT authentication and role validation run in middleware before any
// of these methods.
type VisitHandler struct {
	Service *service.VisitService
}

// NewVisitHandler constructs a VisitHandler.
func NewVisitHandler(s *service.VisitService) *VisitHandler {
	if s == nil {
		panic("nil service passed to NewVisitHandler")
	}
	return &VisitHandler{Service: s}
}

// visitResp is the wire shape of a visit.  The garden is embedded when
// the service resolved it; otherwise only the internal id travels.
type visitResp struct {
	ID          uint64      `json:"id"`
	UserID      uint64      `json:"user_id"`
	GardenID    uint64      `json:"garden_id"`
	Garden      *gardenResp `json:"garden,omitempty"`
	DogIDs      []uint64    `json:"dog_ids"`
	Status      string      `json:"status"`
	CheckInAt   string      `json:"check_in_at"`
	CheckOutAt  *string     `json:"check_out_at,omitempty"`
	DurationMin *uint32     `json:"duration_min,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
}

func toVisitResp(v *model.Visit) *visitResp {
	if v == nil {
		return nil
	}
	resp := &visitResp{
		ID:          v.ID,
		UserID:      v.UserID,
		GardenID:    v.Garden.ID(),
		DogIDs:      v.DogIDs,
		Status:      v.Status,
		CheckInAt:   v.CheckInAt.UTC().Format(time.RFC3339),
		DurationMin: v.DurationMin,
		Notes:       v.Notes,
	}
	if resp.DogIDs == nil {
		resp.DogIDs = []uint64{}
	}
	if v.CheckOutAt != nil {
		iso := v.CheckOutAt.UTC().Format(time.RFC3339)
		resp.CheckOutAt = &iso
	}
	if g, ok := v.Garden.Resolved(); ok {
		resp.Garden = toGardenResp(g)
	}
	return resp
}

type checkInReq struct {
	QRText     string   `json:"qr_text"`
	GardenCode string   `json:"garden_code"`
	DogIDs     []uint64 `json:"dog_ids"`
	Notes      *string  `json:"notes"`
}

// CheckIn handles POST /v1/visits.  The body carries either the raw
// scanned QR text or an explicit garden code (manual check-in), plus
// the dogs joining the visit.
func (h *VisitHandler) CheckIn(c echo.Context) error {
	session, err := memberSession(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req checkInReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	code := req.GardenCode
	if req.QRText != "" {
		payload, err := qr.Parse(req.QRText)
		if err != nil {
			// Parse failure is not "garden not found": the scan itself
			// was unreadable and the user should rescan.
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unrecognized qr payload"})
		}
		code = payload.GardenCode
	}
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr_text or garden_code is required"})
	}

	visit, err := h.Service.CheckIn(c.Request().Context(), session, code, req.DogIDs, req.Notes)
	if err != nil {
		var already *service.AlreadyCheckedInError
		switch {
		case errors.As(err, &already):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":        "already checked in",
				"active_visit": toVisitResp(already.Existing),
			})
		case errors.Is(err, service.ErrInvalidDogs):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid dog selection"})
		case errors.Is(err, repository.ErrGardenNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "garden not found"})
		case errors.Is(err, repository.ErrGardenFull):
			return c.JSON(http.StatusConflict, echo.Map{"error": "garden full"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": toVisitResp(visit)})
}

// CheckOut handles POST /v1/visits/:id/checkout.  A repeated call for
// the same visit observes it already terminal and gets 409; clients
// treat that as a cue to re-sync rather than as a hard failure.
func (h *VisitHandler) CheckOut(c echo.Context) error {
	session, err := memberSession(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	visitID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || visitID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid visit id"})
	}

	visit, err := h.Service.CheckOut(c.Request().Context(), session, visitID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVisitNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "visit not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrVisitNotActive):
			return c.JSON(http.StatusConflict, echo.Map{"error": "visit not active"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-out failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toVisitResp(visit)})
}

// Cancel handles POST /v1/visits/:id/cancel.  Members cancel their own
// visit; admins may cancel anyone's.
func (h *VisitHandler) Cancel(c echo.Context) error {
	session, err := memberSession(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	visitID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || visitID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid visit id"})
	}

	visit, err := h.Service.Cancel(c.Request().Context(), session, visitID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVisitNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "visit not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrVisitNotActive):
			return c.JSON(http.StatusConflict, echo.Map{"error": "visit not active"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toVisitResp(visit)})
}

// Active handles GET /v1/visits/active.  The item is null when the
// user is not checked in anywhere; that is a normal answer, not an
// error.
func (h *VisitHandler) Active(c echo.Context) error {
	session, err := memberSession(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	visit, err := h.Service.ActiveVisit(c.Request().Context(), session)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load active visit"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toVisitResp(visit)})
}

// History handles GET /v1/my-visits.
func (h *VisitHandler) History(c echo.Context) error {
	session, err := memberSession(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Service.History(c.Request().Context(), session)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load visits"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
