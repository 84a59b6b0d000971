// Package repository implements MySQL persistence for gardens, dogs,
// visits and accounts.  This file defines sentinel error values reused
// across repositories so that higher layers can distinguish failure
// scenarios with errors.Is instead of string matching.
package repository

import "errors"

// ErrGardenNotFound is returned when a garden lookup by code or id
// matches no row.  A well-formed QR payload naming an unknown garden
// ends up here, never in the parser's error.
var ErrGardenNotFound = errors.New("garden not found")

// ErrVisitNotFound is returned when a visit lookup matches no row.
var ErrVisitNotFound = errors.New("visit not found")

// ErrVisitNotActive is returned when a lifecycle transition is
// attempted on a visit that is already COMPLETED or CANCELLED.  A
// duplicate check-out lands here and must not touch occupancy.
var ErrVisitNotActive = errors.New("visit not active")

// ErrActiveVisitExists is returned when creating a visit would violate
// the one-active-visit-per-user invariant.  The unique index on the
// visits table raises this even under concurrent check-ins.
var ErrActiveVisitExists = errors.New("active visit exists")

// ErrGardenFull is returned when a check-in would push a garden past
// its configured capacity.
var ErrGardenFull = errors.New("garden full")

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by someone else.  Handlers translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrEmailExists is returned by account creation when the email is
// already registered.
var ErrEmailExists = errors.New("email already exists")
