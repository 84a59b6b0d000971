// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/pawpals/pawpark/internal/config"
	"github.com/pawpals/pawpark/internal/handler"
	"github.com/pawpals/pawpark/internal/middleware"
	"github.com/pawpals/pawpark/internal/model"
)

// RegisterRoutes registers routes that need no authentication at all.
// Currently that is only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints.  Register,
// login, refresh and logout are open; /v1/auth/me requires a valid
// access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the unauthenticated garden catalogue.
// Guests browse gardens and occupancy without an account; responses
// are short-lived cached since occupancy is display data, not a
// reservation.
func RegisterPublic(e *echo.Echo, g *handler.GardenHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	pub := e.Group("/v1/gardens")
	if rdb != nil && cacheCfg.Enabled {
		pub.Use(middleware.ResponseCache(cacheCfg, rdb))
	}
	pub.GET("", g.List)
	pub.GET("/:code", g.GetByCode)
}

// RegisterMember registers the endpoints members use from the app:
// the dog registry and the visit lifecycle.
func RegisterMember(e *echo.Echo, d *handler.DogHandler, v *handler.VisitHandler, jwtSecret string) {
	m := e.Group("/v1")
	m.Use(middleware.JWTAuth(jwtSecret))
	m.Use(middleware.RequireRole(model.RoleMember, model.RoleAdmin))

	m.POST("/my-dogs", d.Create)
	m.GET("/my-dogs", d.List)

	m.POST("/visits", v.CheckIn)
	m.POST("/visits/:id/checkout", v.CheckOut)
	m.POST("/visits/:id/cancel", v.Cancel)
	m.GET("/visits/active", v.Active)
	m.GET("/my-visits", v.History)
}

// RegisterAdmin registers garden management, restricted to ADMIN.
func RegisterAdmin(e *echo.Echo, g *handler.GardenHandler, jwtSecret string) {
	adm := e.Group("/v1/admin")
	adm.Use(middleware.JWTAuth(jwtSecret))
	adm.Use(middleware.RequireRole(model.RoleAdmin))

	adm.POST("/gardens", g.Create)
	adm.PUT("/gardens/:code", g.Update)
	adm.POST("/gardens/:code/recount", g.Recount)
}
