// Package handler defines the HTTP handlers for the visit API.
package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pawpals/pawpark/internal/auth"
)

// getUserID extracts the user id stored in the context by JWTAuth and
// converts it to uint64.  JWT numeric claims arrive as float64, but
// tests and other middleware may store native integer types.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// memberSession builds the explicit session object the services take.
// Requests that reach here have passed JWTAuth, so a failure to build
// a member session is an authorization error, not a guest.
func memberSession(c echo.Context) (auth.MemberSession, error) {
	uid, err := getUserID(c)
	if err != nil {
		return auth.MemberSession{}, err
	}
	role, _ := c.Get("role").(string)
	return auth.MemberSession{UserID: uid, Role: role}, nil
}
