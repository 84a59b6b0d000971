package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pawpals/pawpark/internal/model"
	"github.com/pawpals/pawpark/internal/repository"
	"github.com/pawpals/pawpark/internal/utils"
)

// GardenHandler serves the public garden catalogue and the admin
// garden management endpoints.
type GardenHandler struct {
	Repo *repository.GardenRepo
}

// NewGardenHandler constructs a GardenHandler.
func NewGardenHandler(repo *repository.GardenRepo) *GardenHandler {
	if repo == nil {
		panic("nil repository passed to NewGardenHandler")
	}
	return &GardenHandler{Repo: repo}
}

// gardenResp is the wire shape of a garden.  The internal numeric id
// stays internal; clients address gardens by code.
type gardenResp struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	Type        string   `json:"type"`
	Amenities   *string  `json:"amenities,omitempty"`
	MaxDogs     *uint32  `json:"max_dogs,omitempty"`
	CurrentDogs uint32   `json:"current_dogs"`
	RatingAvg   *float64 `json:"rating_avg,omitempty"`
	RatingCount uint32   `json:"rating_count"`
	IsActive    bool     `json:"is_active"`
}

func toGardenResp(g *model.Garden) *gardenResp {
	if g == nil {
		return nil
	}
	return &gardenResp{
		Code:        g.Code,
		Name:        g.Name,
		Address:     g.Address,
		Lat:         g.Lat,
		Lng:         g.Lng,
		Type:        g.Type,
		Amenities:   g.Amenities,
		MaxDogs:     g.MaxDogs,
		CurrentDogs: g.CurrentDogs,
		RatingAvg:   g.RatingAvg,
		RatingCount: g.RatingCount,
		IsActive:    g.IsActive,
	}
}

// List handles GET /v1/gardens.  Optional query params: type
// (PUBLIC/PRIVATE) and include_inactive=true for admin tooling.
func (h *GardenHandler) List(c echo.Context) error {
	filter := repository.ListFilter{
		Type:       c.QueryParam("type"),
		OnlyActive: c.QueryParam("include_inactive") != "true",
	}
	gardens, err := h.Repo.List(c.Request().Context(), filter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list gardens"})
	}
	items := make([]*gardenResp, 0, len(gardens))
	for i := range gardens {
		items = append(items, toGardenResp(&gardens[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetByCode handles GET /v1/gardens/:code.
func (h *GardenHandler) GetByCode(c echo.Context) error {
	g, err := h.Repo.GetByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, repository.ErrGardenNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "garden not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load garden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toGardenResp(g)})
}

type gardenWriteReq struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Type      string   `json:"type"`
	Amenities *string  `json:"amenities"`
	MaxDogs   *uint32  `json:"max_dogs"`
	IsActive  *bool    `json:"is_active"`
}

func (r *gardenWriteReq) validate() error {
	if r.Name == "" || r.Address == "" {
		return errors.New("name and address are required")
	}
	if r.Type != model.GardenPublic && r.Type != model.GardenPrivate {
		return errors.New("type must be PUBLIC or PRIVATE")
	}
	return nil
}

// Create handles POST /v1/admin/gardens.  The QR code token is minted
// server side; it is the value gardens print on their signage.
func (h *GardenHandler) Create(c echo.Context) error {
	var req gardenWriteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	code, err := utils.NewGardenCode()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create garden"})
	}
	g := &model.Garden{
		Code:      code,
		Name:      req.Name,
		Address:   req.Address,
		Lat:       req.Lat,
		Lng:       req.Lng,
		Type:      req.Type,
		Amenities: req.Amenities,
		MaxDogs:   req.MaxDogs,
		IsActive:  true,
	}
	if req.IsActive != nil {
		g.IsActive = *req.IsActive
	}
	created, err := h.Repo.Create(c.Request().Context(), g)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create garden"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": toGardenResp(created)})
}

// Update handles PUT /v1/admin/gardens/:code.
func (h *GardenHandler) Update(c echo.Context) error {
	var req gardenWriteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	g := &model.Garden{
		Name:      req.Name,
		Address:   req.Address,
		Lat:       req.Lat,
		Lng:       req.Lng,
		Type:      req.Type,
		Amenities: req.Amenities,
		MaxDogs:   req.MaxDogs,
		IsActive:  true,
	}
	if req.IsActive != nil {
		g.IsActive = *req.IsActive
	}
	updated, err := h.Repo.Update(c.Request().Context(), c.Param("code"), g)
	if err != nil {
		if errors.Is(err, repository.ErrGardenNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "garden not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update garden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toGardenResp(updated)})
}

// Recount handles POST /v1/admin/gardens/:code/recount.  It repairs
// the occupancy counter from the visit rows after an operational
// incident (crash between writes, manual DB surgery).
func (h *GardenHandler) Recount(c echo.Context) error {
	n, err := h.Repo.RecountOccupancy(c.Request().Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, repository.ErrGardenNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "garden not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "recount failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"current_dogs": n})
}
