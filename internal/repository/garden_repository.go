package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/pawpals/pawpark/internal/model"
)

// GardenRepo provides persistence for gardens.  The current_dogs
// counter is read here but mutated only inside the visit lifecycle
// transactions in VisitRepo; RecountOccupancy is the repair path that
// rebuilds it from the active visits.
type GardenRepo struct {
	db *sql.DB
}

// NewGardenRepo returns a GardenRepo bound to the given database.
func NewGardenRepo(db *sql.DB) *GardenRepo { return &GardenRepo{db: db} }

// DB exposes the underlying pool so callers can open transactions that
// span repositories.
func (r *GardenRepo) DB() *sql.DB { return r.db }

const gardenColumns = `id, code, name, address, lat, lng, type, amenities,
	max_dogs, current_dogs, rating_avg, rating_count, is_active, created_at, updated_at`

func scanGarden(row interface{ Scan(...any) error }) (*model.Garden, error) {
	var (
		g         model.Garden
		lat, lng  sql.NullFloat64
		amenities sql.NullString
		maxDogs   sql.NullInt64
		ratingAvg sql.NullFloat64
	)
	err := row.Scan(&g.ID, &g.Code, &g.Name, &g.Address, &lat, &lng, &g.Type, &amenities,
		&maxDogs, &g.CurrentDogs, &ratingAvg, &g.RatingCount, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		v := lat.Float64
		g.Lat = &v
	}
	if lng.Valid {
		v := lng.Float64
		g.Lng = &v
	}
	if amenities.Valid {
		v := amenities.String
		g.Amenities = &v
	}
	if maxDogs.Valid {
		v := uint32(maxDogs.Int64)
		g.MaxDogs = &v
	}
	if ratingAvg.Valid {
		v := ratingAvg.Float64
		g.RatingAvg = &v
	}
	return &g, nil
}

// Create inserts a new garden and returns the stored row.  The code
// must be unique; a duplicate yields a plain error since codes are
// generated server-side and collisions are not an expected outcome.
func (r *GardenRepo) Create(ctx context.Context, g *model.Garden) (*model.Garden, error) {
	const q = `INSERT INTO gardens (code, name, address, lat, lng, type, amenities, max_dogs)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, g.Code, g.Name, g.Address, g.Lat, g.Lng, g.Type, g.Amenities, g.MaxDogs)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches a garden by its internal id.
func (r *GardenRepo) GetByID(ctx context.Context, id uint64) (*model.Garden, error) {
	const q = `SELECT ` + gardenColumns + ` FROM gardens WHERE id = ?`
	g, err := scanGarden(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGardenNotFound
	}
	return g, err
}

// GetByCode fetches a garden by its public 24-char hex code, the
// identifier QR payloads resolve to.
func (r *GardenRepo) GetByCode(ctx context.Context, code string) (*model.Garden, error) {
	const q = `SELECT ` + gardenColumns + ` FROM gardens WHERE code = ?`
	g, err := scanGarden(r.db.QueryRowContext(ctx, q, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGardenNotFound
	}
	return g, err
}

// ListFilter narrows the garden listing.  Zero values mean "no filter".
type ListFilter struct {
	Type       string // PUBLIC or PRIVATE
	OnlyActive bool
}

// List returns gardens matching the filter ordered by name.  The
// current_dogs column rides along so listings can show occupancy
// without touching the visits table.
func (r *GardenRepo) List(ctx context.Context, f ListFilter) ([]model.Garden, error) {
	q := `SELECT ` + gardenColumns + ` FROM gardens`
	var (
		conds []string
		args  []any
	)
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if f.OnlyActive {
		conds = append(conds, "is_active = 1")
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY name"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	gardens := make([]model.Garden, 0)
	for rows.Next() {
		g, err := scanGarden(rows)
		if err != nil {
			return nil, err
		}
		gardens = append(gardens, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return gardens, nil
}

// Update applies the mutable attributes of a garden identified by
// code.  Occupancy is deliberately not settable here.
func (r *GardenRepo) Update(ctx context.Context, code string, g *model.Garden) (*model.Garden, error) {
	const q = `UPDATE gardens
	           SET name = ?, address = ?, lat = ?, lng = ?, type = ?, amenities = ?, max_dogs = ?, is_active = ?
	           WHERE code = ?`
	res, err := r.db.ExecContext(ctx, q, g.Name, g.Address, g.Lat, g.Lng, g.Type, g.Amenities, g.MaxDogs, g.IsActive, code)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// RowsAffected is 0 both for a missing row and a no-op update,
		// so confirm existence explicitly.
		if _, err := r.GetByCode(ctx, code); err != nil {
			return nil, err
		}
	}
	return r.GetByCode(ctx, code)
}

// RecountOccupancy rebuilds current_dogs from the dogs attached to
// ACTIVE visits at the garden.  An incrementally maintained counter can
// drift after a missed decrement; recomputing from the visit store is
// the self-healing alternative the read path can always fall back on.
// It returns the corrected count.
func (r *GardenRepo) RecountOccupancy(ctx context.Context, code string) (uint32, error) {
	g, err := r.GetByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	const q = `UPDATE gardens g
	           SET g.current_dogs = (
	               SELECT COUNT(*) FROM visit_dogs vd
	               JOIN visits v ON v.id = vd.visit_id
	               WHERE v.garden_id = g.id AND v.status = 'ACTIVE'
	           )
	           WHERE g.id = ?`
	if _, err := r.db.ExecContext(ctx, q, g.ID); err != nil {
		return 0, err
	}
	var count uint32
	if err := r.db.QueryRowContext(ctx, `SELECT current_dogs FROM gardens WHERE id = ?`, g.ID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
