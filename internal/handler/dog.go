package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pawpals/pawpark/internal/model"
	"github.com/pawpals/pawpark/internal/repository"
)

// DogHandler serves the member dog registry.
type DogHandler struct {
	Repo *repository.DogRepo
}

// NewDogHandler constructs a DogHandler.
func NewDogHandler(repo *repository.DogRepo) *DogHandler {
	if repo == nil {
		panic("nil repository passed to NewDogHandler")
	}
	return &DogHandler{Repo: repo}
}

type dogResp struct {
	ID          uint64  `json:"id"`
	Name        string  `json:"name"`
	Breed       *string `json:"breed,omitempty"`
	AgeYears    *uint32 `json:"age_years,omitempty"`
	Size        string  `json:"size"`
	Sociability *uint8  `json:"sociability,omitempty"`
	Energy      *uint8  `json:"energy,omitempty"`
	Vaccinated  bool    `json:"vaccinated"`
}

func toDogResp(d *model.Dog) *dogResp {
	return &dogResp{
		ID:          d.ID,
		Name:        d.Name,
		Breed:       d.Breed,
		AgeYears:    d.AgeYears,
		Size:        d.Size,
		Sociability: d.Sociability,
		Energy:      d.Energy,
		Vaccinated:  d.Vaccinated,
	}
}

type createDogReq struct {
	Name        string  `json:"name"`
	Breed       *string `json:"breed"`
	AgeYears    *uint32 `json:"age_years"`
	Size        string  `json:"size"`
	Sociability *uint8  `json:"sociability"`
	Energy      *uint8  `json:"energy"`
	Vaccinated  bool    `json:"vaccinated"`
}

func (r *createDogReq) validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	switch r.Size {
	case model.DogSmall, model.DogMedium, model.DogLarge:
	default:
		return errors.New("size must be SMALL, MEDIUM or LARGE")
	}
	if r.Sociability != nil && *r.Sociability > 5 {
		return errors.New("sociability must be between 0 and 5")
	}
	if r.Energy != nil && *r.Energy > 5 {
		return errors.New("energy must be between 0 and 5")
	}
	return nil
}

// Create handles POST /v1/my-dogs.
func (h *DogHandler) Create(c echo.Context) error {
	session, err := memberSession(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createDogReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	dog, err := h.Repo.Create(c.Request().Context(), &model.Dog{
		OwnerID:     session.UserID,
		Name:        req.Name,
		Breed:       req.Breed,
		AgeYears:    req.AgeYears,
		Size:        req.Size,
		Sociability: req.Sociability,
		Energy:      req.Energy,
		Vaccinated:  req.Vaccinated,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to register dog"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": toDogResp(dog)})
}

// List handles GET /v1/my-dogs.
func (h *DogHandler) List(c echo.Context) error {
	session, err := memberSession(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	dogs, err := h.Repo.ListByOwner(c.Request().Context(), session.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list dogs"})
	}
	items := make([]*dogResp, 0, len(dogs))
	for i := range dogs {
		items = append(items, toDogResp(&dogs[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
