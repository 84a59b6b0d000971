package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/pawpals/pawpark/internal/model"
)

// VisitRepo is the source of truth for visits.  Check-in and check-out
// run in single transactions so a visit row and the garden occupancy
// counter can never diverge by a crash between them.  The
// one-active-visit-per-user invariant is enforced by the unique index
// over visits.active_user_id; this repository only translates the
// duplicate-key error it produces.
type VisitRepo struct {
	db *sql.DB
}

// NewVisitRepo returns a VisitRepo bound to the given database.
func NewVisitRepo(db *sql.DB) *VisitRepo { return &VisitRepo{db: db} }

const visitColumns = `id, user_id, garden_id, status, check_in_at, check_out_at, duration_min, notes, created_at, updated_at`

func scanVisit(row interface{ Scan(...any) error }) (*model.Visit, error) {
	var (
		v        model.Visit
		gardenID uint64
		checkOut sql.NullTime
		duration sql.NullInt64
		notes    sql.NullString
	)
	err := row.Scan(&v.ID, &v.UserID, &gardenID, &v.Status, &v.CheckInAt, &checkOut, &duration, &notes, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.Garden = model.GardenByID(gardenID)
	if checkOut.Valid {
		t := checkOut.Time
		v.CheckOutAt = &t
	}
	if duration.Valid {
		d := uint32(duration.Int64)
		v.DurationMin = &d
	}
	if notes.Valid {
		n := notes.String
		v.Notes = &n
	}
	return &v, nil
}

// dogIDsTx loads the participating dog ids for a visit inside a
// transaction.  Ordered by dog id for deterministic output.
func dogIDsTx(ctx context.Context, tx *sql.Tx, visitID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT dog_id FROM visit_dogs WHERE visit_id = ? ORDER BY dog_id`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActiveByUser returns the user's ACTIVE visit, or nil when the user
// is not checked in anywhere.
func (r *VisitRepo) ActiveByUser(ctx context.Context, userID uint64) (*model.Visit, error) {
	const q = `SELECT ` + visitColumns + ` FROM visits WHERE user_id = ? AND status = 'ACTIVE' LIMIT 1`
	v, err := scanVisit(r.db.QueryRowContext(ctx, q, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.attachDogs(ctx, v)
}

// GetByID returns a visit by id or ErrVisitNotFound.
func (r *VisitRepo) GetByID(ctx context.Context, id uint64) (*model.Visit, error) {
	const q = `SELECT ` + visitColumns + ` FROM visits WHERE id = ?`
	v, err := scanVisit(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVisitNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.attachDogs(ctx, v)
}

func (r *VisitRepo) attachDogs(ctx context.Context, v *model.Visit) (*model.Visit, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT dog_id FROM visit_dogs WHERE visit_id = ? ORDER BY dog_id`, v.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		v.DogIDs = append(v.DogIDs, id)
	}
	return v, rows.Err()
}

// CheckIn creates an ACTIVE visit for the user at the garden and
// increments the garden's occupancy by the number of dogs, all in one
// transaction.  The garden row is locked FOR UPDATE so the capacity
// check and the increment cannot interleave with a concurrent
// check-in.  Returns ErrGardenNotFound, ErrGardenFull or
// ErrActiveVisitExists as typed outcomes.
func (r *VisitRepo) CheckIn(ctx context.Context, userID, gardenID uint64, dogIDs []uint64, notes *string) (*model.Visit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		maxDogs     sql.NullInt64
		currentDogs uint32
	)
	err = tx.QueryRowContext(ctx,
		`SELECT max_dogs, current_dogs FROM gardens WHERE id = ? AND is_active = 1 FOR UPDATE`,
		gardenID).Scan(&maxDogs, &currentDogs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGardenNotFound
	}
	if err != nil {
		return nil, err
	}
	if maxDogs.Valid && uint64(currentDogs)+uint64(len(dogIDs)) > uint64(maxDogs.Int64) {
		return nil, ErrGardenFull
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO visits (user_id, garden_id, status, check_in_at, notes) VALUES (?, ?, 'ACTIVE', ?, ?)`,
		userID, gardenID, now.Format("2006-01-02 15:04:05"), notes)
	if err != nil {
		if strings.Contains(err.Error(), "1062") {
			return nil, ErrActiveVisitExists
		}
		return nil, err
	}
	visitID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	insert := `INSERT INTO visit_dogs (visit_id, dog_id) VALUES `
	args := make([]any, 0, len(dogIDs)*2)
	for i, id := range dogIDs {
		if i > 0 {
			insert += ","
		}
		insert += "(?, ?)"
		args = append(args, visitID, id)
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE gardens SET current_dogs = current_dogs + ? WHERE id = ?`,
		len(dogIDs), gardenID); err != nil {
		return nil, err
	}

	v, err := scanVisit(tx.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = ?`, visitID))
	if err != nil {
		return nil, err
	}
	v.DogIDs = append([]uint64(nil), dogIDs...)

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return v, nil
}

// Complete transitions an ACTIVE visit to COMPLETED: sets the
// check-out time, computes the floored duration in minutes and
// decrements the garden's occupancy by the visit's dog count, floored
// at zero so a previously missed decrement can never drive the counter
// negative.  A visit that is already terminal yields ErrVisitNotActive
// and leaves occupancy untouched, which makes duplicate check-out
// calls harmless.
func (r *VisitRepo) Complete(ctx context.Context, visitID uint64) (*model.Visit, error) {
	return r.terminate(ctx, visitID, model.VisitCompleted)
}

// Cancel transitions an ACTIVE visit to CANCELLED.  Like Complete it
// releases the visit's occupancy; unlike Complete it records no
// duration.
func (r *VisitRepo) Cancel(ctx context.Context, visitID uint64) (*model.Visit, error) {
	return r.terminate(ctx, visitID, model.VisitCancelled)
}

func (r *VisitRepo) terminate(ctx context.Context, visitID uint64, target string) (*model.Visit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		gardenID  uint64
		status    string
		checkInAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT garden_id, status, check_in_at FROM visits WHERE id = ? FOR UPDATE`,
		visitID).Scan(&gardenID, &status, &checkInAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVisitNotFound
	}
	if err != nil {
		return nil, err
	}
	if status != model.VisitActive {
		return nil, ErrVisitNotActive
	}

	dogIDs, err := dogIDsTx(ctx, tx, visitID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if target == model.VisitCompleted {
		duration := model.DurationMinutes(checkInAt, now)
		_, err = tx.ExecContext(ctx,
			`UPDATE visits SET status = 'COMPLETED', check_out_at = ?, duration_min = ? WHERE id = ?`,
			now.Format("2006-01-02 15:04:05"), duration, visitID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE visits SET status = 'CANCELLED', check_out_at = ? WHERE id = ?`,
			now.Format("2006-01-02 15:04:05"), visitID)
	}
	if err != nil {
		return nil, err
	}

	// Floor at zero: unsigned column, so guard instead of GREATEST.
	if _, err := tx.ExecContext(ctx,
		`UPDATE gardens SET current_dogs = IF(current_dogs >= ?, current_dogs - ?, 0) WHERE id = ?`,
		len(dogIDs), len(dogIDs), gardenID); err != nil {
		return nil, err
	}

	v, err := scanVisit(tx.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = ?`, visitID))
	if err != nil {
		return nil, err
	}
	v.DogIDs = dogIDs

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return v, nil
}

// VisitDetail is a visit joined with its garden for history listings.
type VisitDetail struct {
	ID          uint64   `json:"id"`
	GardenCode  string   `json:"garden_code"`
	GardenName  string   `json:"garden_name"`
	Status      string   `json:"status"`
	CheckInAt   string   `json:"check_in_at"`
	CheckOutAt  *string  `json:"check_out_at,omitempty"`
	DurationMin *uint32  `json:"duration_min,omitempty"`
	DogIDs      []uint64 `json:"dog_ids"`
}

// ListByUser returns the user's visits newest first, each with garden
// code and name and the participating dogs.
func (r *VisitRepo) ListByUser(ctx context.Context, userID uint64) ([]VisitDetail, error) {
	const q = `SELECT v.id, g.code, g.name, v.status, v.check_in_at, v.check_out_at, v.duration_min
	           FROM visits v
	           JOIN gardens g ON g.id = v.garden_id
	           WHERE v.user_id = ?
	           ORDER BY v.check_in_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]VisitDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var (
			d        VisitDetail
			checkIn  time.Time
			checkOut sql.NullTime
			duration sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &d.GardenCode, &d.GardenName, &d.Status, &checkIn, &checkOut, &duration); err != nil {
			return nil, err
		}
		d.CheckInAt = checkIn.UTC().Format(time.RFC3339)
		if checkOut.Valid {
			iso := checkOut.Time.UTC().Format(time.RFC3339)
			d.CheckOutAt = &iso
		}
		if duration.Valid {
			m := uint32(duration.Int64)
			d.DurationMin = &m
		}
		d.DogIDs = []uint64{}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}

	ids := make([]any, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	dogQ := `SELECT visit_id, dog_id FROM visit_dogs WHERE visit_id IN (` +
		strings.Join(placeholders, ",") + `) ORDER BY visit_id, dog_id`
	drows, err := r.db.QueryContext(ctx, dogQ, ids...)
	if err != nil {
		return nil, err
	}
	defer drows.Close()
	for drows.Next() {
		var visitID, dogID uint64
		if err := drows.Scan(&visitID, &dogID); err != nil {
			return nil, err
		}
		if idx, ok := index[visitID]; ok {
			details[idx].DogIDs = append(details[idx].DogIDs, dogID)
		}
	}
	if err := drows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}
