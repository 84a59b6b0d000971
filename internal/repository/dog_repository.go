package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pawpals/pawpark/internal/model"
)

// DogRepo provides persistence for members' dogs.
type DogRepo struct {
	db *sql.DB
}

// NewDogRepo returns a DogRepo bound to the given database.
func NewDogRepo(db *sql.DB) *DogRepo { return &DogRepo{db: db} }

// Create inserts a dog for the given owner and populates the generated
// id and timestamps on the returned record.
func (r *DogRepo) Create(ctx context.Context, d *model.Dog) (*model.Dog, error) {
	const q = `INSERT INTO dogs (owner_id, name, breed, age_years, size, sociability, energy, vaccinated)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, d.OwnerID, d.Name, d.Breed, d.AgeYears, d.Size, d.Sociability, d.Energy, d.Vaccinated)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	const sel = `SELECT id, owner_id, name, breed, age_years, size, sociability, energy, vaccinated, created_at, updated_at
	             FROM dogs WHERE id = ?`
	return scanDog(r.db.QueryRowContext(ctx, sel, id))
}

func scanDog(row interface{ Scan(...any) error }) (*model.Dog, error) {
	var (
		d           model.Dog
		breed       sql.NullString
		age         sql.NullInt64
		sociability sql.NullInt64
		energy      sql.NullInt64
	)
	err := row.Scan(&d.ID, &d.OwnerID, &d.Name, &breed, &age, &d.Size, &sociability, &energy, &d.Vaccinated, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if breed.Valid {
		v := breed.String
		d.Breed = &v
	}
	if age.Valid {
		v := uint32(age.Int64)
		d.AgeYears = &v
	}
	if sociability.Valid {
		v := uint8(sociability.Int64)
		d.Sociability = &v
	}
	if energy.Valid {
		v := uint8(energy.Int64)
		d.Energy = &v
	}
	return &d, nil
}

// ListByOwner returns all dogs registered by a user, oldest first.
func (r *DogRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Dog, error) {
	const q = `SELECT id, owner_id, name, breed, age_years, size, sociability, energy, vaccinated, created_at, updated_at
	           FROM dogs WHERE owner_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	dogs := make([]model.Dog, 0)
	for rows.Next() {
		d, err := scanDog(rows)
		if err != nil {
			return nil, err
		}
		dogs = append(dogs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dogs, nil
}

// MissingOwned returns the subset of dogIDs that do NOT belong to the
// given owner.  An empty result means every id is owned; this is the
// ownership guard the check-in service evaluates first.
func (r *DogRepo) MissingOwned(ctx context.Context, ownerID uint64, dogIDs []uint64) ([]uint64, error) {
	if len(dogIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(dogIDs)), ",")
	args := make([]any, 0, len(dogIDs)+1)
	args = append(args, ownerID)
	for _, id := range dogIDs {
		args = append(args, id)
	}
	q := `SELECT id FROM dogs WHERE owner_id = ? AND id IN (` + placeholders + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	owned := make(map[uint64]struct{}, len(dogIDs))
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var missing []uint64
	for _, id := range dogIDs {
		if _, ok := owned[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
