package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawpals/pawpark/internal/auth"
	"github.com/pawpals/pawpark/internal/model"
	"github.com/pawpals/pawpark/internal/queue"
	"github.com/pawpals/pawpark/internal/repository"
)

// memStore is an in-memory stand-in for the repositories.  It keeps
// the same invariants the MySQL layer enforces: one ACTIVE visit per
// user, occupancy adjusted inside the same logical operation as the
// visit write, never below zero.
type memStore struct {
	gardens map[uint64]*model.Garden
	byCode  map[string]uint64
	owned   map[uint64]map[uint64]bool // ownerID -> dogID set
	visits  map[uint64]*model.Visit
	nextID  uint64

	checkInErr error // injected failure for CheckIn
}

func newMemStore() *memStore {
	return &memStore{
		gardens: map[uint64]*model.Garden{},
		byCode:  map[string]uint64{},
		owned:   map[uint64]map[uint64]bool{},
		visits:  map[uint64]*model.Visit{},
		nextID:  1,
	}
}

func (m *memStore) addGarden(g *model.Garden) *model.Garden {
	m.gardens[g.ID] = g
	m.byCode[g.Code] = g.ID
	return g
}

func (m *memStore) addDogs(ownerID uint64, dogIDs ...uint64) {
	set, ok := m.owned[ownerID]
	if !ok {
		set = map[uint64]bool{}
		m.owned[ownerID] = set
	}
	for _, id := range dogIDs {
		set[id] = true
	}
}

func (m *memStore) GetByCode(_ context.Context, code string) (*model.Garden, error) {
	id, ok := m.byCode[code]
	if !ok {
		return nil, repository.ErrGardenNotFound
	}
	return m.gardens[id], nil
}

func (m *memStore) GetByID(_ context.Context, id uint64) (*model.Garden, error) {
	g, ok := m.gardens[id]
	if !ok {
		return nil, repository.ErrGardenNotFound
	}
	return g, nil
}

func (m *memStore) MissingOwned(_ context.Context, ownerID uint64, dogIDs []uint64) ([]uint64, error) {
	var missing []uint64
	for _, id := range dogIDs {
		if !m.owned[ownerID][id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m *memStore) ActiveByUser(_ context.Context, userID uint64) (*model.Visit, error) {
	for _, v := range m.visits {
		if v.UserID == userID && v.Status == model.VisitActive {
			return v, nil
		}
	}
	return nil, nil
}

func (m *memStore) visitByID(id uint64) (*model.Visit, error) {
	v, ok := m.visits[id]
	if !ok {
		return nil, repository.ErrVisitNotFound
	}
	return v, nil
}

func (m *memStore) CheckIn(ctx context.Context, userID, gardenID uint64, dogIDs []uint64, notes *string) (*model.Visit, error) {
	if m.checkInErr != nil {
		return nil, m.checkInErr
	}
	if v, _ := m.ActiveByUser(ctx, userID); v != nil {
		return nil, repository.ErrActiveVisitExists
	}
	g := m.gardens[gardenID]
	v := &model.Visit{
		ID:        m.nextID,
		UserID:    userID,
		Garden:    model.GardenByID(gardenID),
		DogIDs:    dogIDs,
		Status:    model.VisitActive,
		CheckInAt: time.Now().UTC(),
	}
	v.Notes = notes
	m.nextID++
	m.visits[v.ID] = v
	g.CurrentDogs += uint32(len(dogIDs))
	return v, nil
}

func (m *memStore) terminate(id uint64, status string) (*model.Visit, error) {
	v, err := m.visitByID(id)
	if err != nil {
		return nil, err
	}
	if v.Status != model.VisitActive {
		return nil, repository.ErrVisitNotActive
	}
	now := time.Now().UTC()
	v.Status = status
	v.CheckOutAt = &now
	if status == model.VisitCompleted {
		d := model.DurationMinutes(v.CheckInAt, now)
		v.DurationMin = &d
	}
	g := m.gardens[v.Garden.ID()]
	n := uint32(len(v.DogIDs))
	if g.CurrentDogs >= n {
		g.CurrentDogs -= n
	} else {
		g.CurrentDogs = 0
	}
	return v, nil
}

func (m *memStore) Complete(_ context.Context, id uint64) (*model.Visit, error) {
	return m.terminate(id, model.VisitCompleted)
}

func (m *memStore) Cancel(_ context.Context, id uint64) (*model.Visit, error) {
	return m.terminate(id, model.VisitCancelled)
}

func (m *memStore) ListByUser(_ context.Context, userID uint64) ([]repository.VisitDetail, error) {
	var out []repository.VisitDetail
	for _, v := range m.visits {
		if v.UserID == userID {
			out = append(out, repository.VisitDetail{ID: v.ID, Status: v.Status, DogIDs: v.DogIDs})
		}
	}
	return out, nil
}

// visitStoreAdapter resolves the GetByID name clash between the
// garden and visit store interfaces backed by the same memStore.
type visitStoreAdapter struct{ *memStore }

func (a visitStoreAdapter) GetByID(ctx context.Context, id uint64) (*model.Visit, error) {
	return a.memStore.visitByID(id)
}

type recordingPublisher struct {
	events []queue.VisitEvent
	err    error
}

func (p *recordingPublisher) PublishVisitEvent(_ context.Context, ev queue.VisitEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func newTestService(m *memStore, pub *recordingPublisher) *VisitService {
	var events EventPublisher
	if pub != nil {
		events = pub
	}
	return NewVisitService(m, m, visitStoreAdapter{m}, events)
}

func member(id uint64) auth.MemberSession {
	return auth.MemberSession{UserID: id, Role: model.RoleMember}
}

func admin(id uint64) auth.MemberSession {
	return auth.MemberSession{UserID: id, Role: model.RoleAdmin}
}

func maxDogs(n uint32) *uint32 { return &n }

func seedGarden(m *memStore, max *uint32) *model.Garden {
	return m.addGarden(&model.Garden{
		ID:       1,
		Code:     "670f1234567890abcdef1234",
		Name:     "Riverside Dog Garden",
		Type:     model.GardenPublic,
		MaxDogs:  max,
		IsActive: true,
	})
}

func TestCheckInHappyPath(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, maxDogs(10))
	m.addDogs(42, 1, 2)
	pub := &recordingPublisher{}
	svc := newTestService(m, pub)

	v, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.VisitActive, v.Status)
	assert.Equal(t, uint64(42), v.UserID)
	assert.ElementsMatch(t, []uint64{1, 2}, v.DogIDs)

	resolved, ok := v.Garden.Resolved()
	require.True(t, ok, "check-in must return the visit with its garden resolved")
	assert.Equal(t, g.Code, resolved.Code)

	assert.Equal(t, uint32(2), g.CurrentDogs, "occupancy rises by the number of dogs checked in")

	require.Len(t, pub.events, 1)
	assert.Equal(t, queue.EventVisitStarted, pub.events[0].Type)
	assert.Equal(t, 2, pub.events[0].DogCount)
}

func TestCheckInRejectsEmptyAndForeignDogs(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, nil)
	m.addDogs(42, 1)
	svc := newTestService(m, nil)

	_, err := svc.CheckIn(context.Background(), member(42), g.Code, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidDogs)

	_, err = svc.CheckIn(context.Background(), member(42), g.Code, []uint64{0}, nil)
	assert.ErrorIs(t, err, ErrInvalidDogs, "a zero id is not a dog")

	_, err = svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1, 99}, nil)
	assert.ErrorIs(t, err, ErrInvalidDogs, "dog 99 belongs to someone else")

	assert.Equal(t, uint32(0), g.CurrentDogs, "failed guards must not touch occupancy")
}

func TestCheckInDeduplicatesDogIDs(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, maxDogs(2))
	m.addDogs(42, 1)
	svc := newTestService(m, nil)

	v, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1, 1, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, v.DogIDs)
	assert.Equal(t, uint32(1), g.CurrentDogs)
}

func TestCheckInWhileAlreadyActive(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, nil)
	m.addDogs(42, 1)
	svc := newTestService(m, nil)

	first, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	var already *AlreadyCheckedInError
	require.ErrorAs(t, err, &already)
	require.NotNil(t, already.Existing)
	assert.Equal(t, first.ID, already.Existing.ID, "the conflict carries the blocking visit as the remediation handle")
	assert.ErrorIs(t, err, repository.ErrActiveVisitExists)

	assert.Equal(t, uint32(1), g.CurrentDogs, "the rejected attempt must not change occupancy")
}

func TestCheckInRaceLoserGetsExistingVisit(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, nil)
	m.addDogs(42, 1)
	svc := newTestService(m, nil)

	// The advisory pre-check passed for both racers; the store's
	// unique index rejects the second insert.
	winner, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	require.NoError(t, err)

	m.checkInErr = repository.ErrActiveVisitExists
	_, err = svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	m.checkInErr = nil

	var already *AlreadyCheckedInError
	require.ErrorAs(t, err, &already)
	require.NotNil(t, already.Existing)
	assert.Equal(t, winner.ID, already.Existing.ID)
}

func TestCheckInUnknownOrInactiveGarden(t *testing.T) {
	m := newMemStore()
	m.addDogs(42, 1)
	svc := newTestService(m, nil)

	_, err := svc.CheckIn(context.Background(), member(42), "ffffffffffffffffffffffff", []uint64{1}, nil)
	assert.ErrorIs(t, err, repository.ErrGardenNotFound)

	g := seedGarden(m, nil)
	g.IsActive = false
	_, err = svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	assert.ErrorIs(t, err, repository.ErrGardenNotFound, "a deactivated garden is indistinguishable from a missing one")
}

func TestCheckInGardenFull(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, maxDogs(3))
	g.CurrentDogs = 2
	m.addDogs(42, 1, 2)
	svc := newTestService(m, nil)

	_, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1, 2}, nil)
	assert.ErrorIs(t, err, repository.ErrGardenFull)

	v, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	require.NoError(t, err, "one dog still fits")
	assert.Equal(t, uint32(3), g.CurrentDogs)
	assert.Len(t, v.DogIDs, 1)
}

func TestCheckInUnboundedGardenIgnoresCapacity(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, nil)
	g.CurrentDogs = 1000
	m.addDogs(42, 1)
	svc := newTestService(m, nil)

	_, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	require.NoError(t, err)
}

func TestCheckOutLifecycle(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, nil)
	m.addDogs(42, 1, 2)
	pub := &recordingPublisher{}
	svc := newTestService(m, pub)

	v, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1, 2}, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(2), g.CurrentDogs)

	done, err := svc.CheckOut(context.Background(), member(42), v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VisitCompleted, done.Status)
	require.NotNil(t, done.CheckOutAt)
	require.NotNil(t, done.DurationMin)
	assert.Equal(t, uint32(0), g.CurrentDogs, "check-out returns the dogs' occupancy")

	require.Len(t, pub.events, 2)
	assert.Equal(t, queue.EventVisitEnded, pub.events[1].Type)
}

func TestCheckOutGuards(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, nil)
	m.addDogs(42, 1)
	svc := newTestService(m, nil)

	v, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	require.NoError(t, err)

	_, err = svc.CheckOut(context.Background(), member(42), 9999)
	assert.ErrorIs(t, err, repository.ErrVisitNotFound)

	_, err = svc.CheckOut(context.Background(), member(7), v.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden, "a stranger cannot end someone else's visit")
	assert.Equal(t, uint32(1), g.CurrentDogs)

	_, err = svc.CheckOut(context.Background(), member(42), v.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), g.CurrentDogs)

	// Double tap: the second call sees a terminal visit and changes
	// nothing, so occupancy is decremented exactly once.
	_, err = svc.CheckOut(context.Background(), member(42), v.ID)
	assert.ErrorIs(t, err, repository.ErrVisitNotActive)
	assert.Equal(t, uint32(0), g.CurrentDogs)
}

func TestOccupancyNeverGoesNegative(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, nil)
	m.addDogs(42, 1, 2)
	svc := newTestService(m, nil)

	v, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1, 2}, nil)
	require.NoError(t, err)

	// Simulate an out-of-band repair that already zeroed the counter.
	g.CurrentDogs = 0

	_, err = svc.CheckOut(context.Background(), member(42), v.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), g.CurrentDogs, "the decrement floors at zero instead of wrapping")
}

func TestCancelAuthorization(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, nil)
	m.addDogs(42, 1)
	svc := newTestService(m, nil)

	v, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), member(7), v.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	cancelled, err := svc.Cancel(context.Background(), admin(1), v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VisitCancelled, cancelled.Status)
	assert.Nil(t, cancelled.DurationMin, "a cancelled visit records no duration")
	assert.Equal(t, uint32(0), g.CurrentDogs)

	_, err = svc.Cancel(context.Background(), admin(1), v.ID)
	assert.ErrorIs(t, err, repository.ErrVisitNotActive)
}

func TestActiveVisitResolvesGarden(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, nil)
	m.addDogs(42, 1)
	svc := newTestService(m, nil)

	v, err := svc.ActiveVisit(context.Background(), member(42))
	require.NoError(t, err)
	assert.Nil(t, v, "no active visit is an answer, not an error")

	_, err = svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	require.NoError(t, err)

	v, err = svc.ActiveVisit(context.Background(), member(42))
	require.NoError(t, err)
	require.NotNil(t, v)
	resolved, ok := v.Garden.Resolved()
	require.True(t, ok)
	assert.Equal(t, g.Name, resolved.Name)
}

func TestPublisherFailureDoesNotFailMutation(t *testing.T) {
	m := newMemStore()
	g := seedGarden(m, nil)
	m.addDogs(42, 1)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(m, pub)

	v, err := svc.CheckIn(context.Background(), member(42), g.Code, []uint64{1}, nil)
	require.NoError(t, err, "a dead broker must never roll back a committed check-in")
	require.NotNil(t, v)

	_, err = svc.CheckOut(context.Background(), member(42), v.ID)
	require.NoError(t, err)
}
