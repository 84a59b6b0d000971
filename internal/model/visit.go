package model

import "time"

// Visit status values stored in visits.status.  Transitions are
// monotonic: ACTIVE -> COMPLETED or ACTIVE -> CANCELLED, both
// terminal.  Completed and cancelled visits are never mutated again.
const (
	VisitActive    = "ACTIVE"
	VisitCompleted = "COMPLETED"
	VisitCancelled = "CANCELLED"
)

// Visit records one stay of a member's dogs at a garden.  At most one
// visit per user may be ACTIVE at any time; the storage layer enforces
// this with a unique index over (user, active flag).
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – member who checked in.
//  Garden      – garden reference, either bare id or resolved record.
//  DogIDs      – dogs participating in the visit (at least one).
//  Status      – ACTIVE, COMPLETED or CANCELLED.
//  CheckInAt   – when the visit started.
//  CheckOutAt  – when the visit ended (nil while ACTIVE).
//  DurationMin – whole minutes between check-in and check-out, floored,
//                computed at check-out (nil while ACTIVE).
//  Notes       – optional free-form note.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Visit struct {
	ID          uint64     // visits.id
	UserID      uint64     // visits.user_id
	Garden      GardenRef  // visits.garden_id, optionally resolved
	DogIDs      []uint64   // visit_dogs.dog_id
	Status      string     // visits.status
	CheckInAt   time.Time  // visits.check_in_at
	CheckOutAt  *time.Time // visits.check_out_at (nullable)
	DurationMin *uint32    // visits.duration_min (nullable)
	Notes       *string    // visits.notes (nullable)
	CreatedAt   time.Time  // visits.created_at
	UpdatedAt   time.Time  // visits.updated_at
}

// Terminal reports whether the visit has reached a final status.
func (v *Visit) Terminal() bool {
	return v.Status == VisitCompleted || v.Status == VisitCancelled
}

// DurationMinutes returns the whole minutes elapsed between check-in
// and check-out, floored.  A non-positive interval yields 0 so clock
// skew can never produce a negative duration.
func DurationMinutes(checkIn, checkOut time.Time) uint32 {
	d := checkOut.Sub(checkIn)
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Minute)
}
