package model

import "time"

// GardenType distinguishes publicly accessible gardens from private
// (members-only) ones.
const (
	GardenPublic  = "PUBLIC"
	GardenPrivate = "PRIVATE"
)

// Garden represents a dog park that members can check in to.  Each
// garden carries a 24 character hex Code which is the identifier
// printed on its QR signage; the numeric ID is internal to the
// database and never leaves the API.
//
// Fields:
//  ID          – primary key identifier.
//  Code        – public 24-char hex identifier (gardens.code, unique).
//  Name        – display name of the garden.
//  Address     – street address.
//  Lat, Lng    – optional coordinates.
//  Type        – PUBLIC or PRIVATE.
//  Amenities   – optional comma separated amenity list (water, agility, ...).
//  MaxDogs     – capacity; nil means unbounded.
//  CurrentDogs – number of dogs currently checked in.  Mutated only by
//                the check-in / check-out transactions, never set directly.
//  RatingAvg   – average member rating (nil until first rating).
//  RatingCount – number of ratings aggregated into RatingAvg.
//  IsActive    – whether the garden accepts check-ins.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Garden struct {
	ID          uint64    // gardens.id
	Code        string    // gardens.code
	Name        string    // gardens.name
	Address     string    // gardens.address
	Lat         *float64  // gardens.lat (nullable)
	Lng         *float64  // gardens.lng (nullable)
	Type        string    // gardens.type
	Amenities   *string   // gardens.amenities (nullable)
	MaxDogs     *uint32   // gardens.max_dogs (nullable => unbounded)
	CurrentDogs uint32    // gardens.current_dogs
	RatingAvg   *float64  // gardens.rating_avg (nullable)
	RatingCount uint32    // gardens.rating_count
	IsActive    bool      // gardens.is_active
	CreatedAt   time.Time // gardens.created_at
	UpdatedAt   time.Time // gardens.updated_at
}

// HasCapacityFor reports whether n additional dogs fit into the garden.
// A nil MaxDogs means the garden does not enforce capacity.
func (g *Garden) HasCapacityFor(n int) bool {
	if g.MaxDogs == nil {
		return true
	}
	return g.CurrentDogs+uint32(n) <= *g.MaxDogs
}
