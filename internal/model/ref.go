package model

// GardenRef is a tagged reference to a garden: either a bare database
// id or a fully resolved record.  Consumers ask which side is present
// instead of type-checking a polymorphic field at runtime.
type GardenRef struct {
	id     uint64
	garden *Garden
}

// GardenByID builds an unresolved reference carrying only the id.
func GardenByID(id uint64) GardenRef { return GardenRef{id: id} }

// ResolvedGarden builds a reference carrying the full record.
func ResolvedGarden(g *Garden) GardenRef { return GardenRef{id: g.ID, garden: g} }

// ID returns the referenced garden's database id.  It is available on
// both sides of the union.
func (r GardenRef) ID() uint64 { return r.id }

// Resolved returns the garden record and true when the reference has
// been resolved, or nil and false for a bare id.
func (r GardenRef) Resolved() (*Garden, bool) {
	if r.garden == nil {
		return nil, false
	}
	return r.garden, true
}
