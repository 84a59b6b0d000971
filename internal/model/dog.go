package model

import "time"

// Dog size classes stored in dogs.size.
const (
	DogSmall  = "SMALL"
	DogMedium = "MEDIUM"
	DogLarge  = "LARGE"
)

// Dog is a member's registered dog.  A dog belongs to exactly one
// owner and a visit references one or more of the owner's dogs.
//
// Fields:
//  ID          – primary key identifier.
//  OwnerID     – user who owns the dog.
//  Name        – call name.
//  Breed       – optional breed label.
//  AgeYears    – optional age in whole years.
//  Size        – SMALL, MEDIUM or LARGE.
//  Sociability – optional 1..5 score describing how well the dog mixes.
//  Energy      – optional 1..5 activity score.
//  Vaccinated  – whether the vaccination record has been confirmed.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Dog struct {
	ID          uint64    // dogs.id
	OwnerID     uint64    // dogs.owner_id
	Name        string    // dogs.name
	Breed       *string   // dogs.breed (nullable)
	AgeYears    *uint32   // dogs.age_years (nullable)
	Size        string    // dogs.size
	Sociability *uint8    // dogs.sociability (nullable)
	Energy      *uint8    // dogs.energy (nullable)
	Vaccinated  bool      // dogs.vaccinated
	CreatedAt   time.Time // dogs.created_at
	UpdatedAt   time.Time // dogs.updated_at
}
