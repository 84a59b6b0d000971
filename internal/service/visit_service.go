// Package service contains the visit lifecycle orchestration: the
// check-in and check-out operations, their guard ordering and the
// occupancy side effects.  Services depend on narrow store interfaces
// so the guard logic is testable without a database.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pawpals/pawpark/internal/auth"
	"github.com/pawpals/pawpark/internal/model"
	"github.com/pawpals/pawpark/internal/queue"
	"github.com/pawpals/pawpark/internal/repository"
)

// ErrInvalidDogs is returned when the dog selection is empty or
// includes a dog the caller does not own.  This is an expected
// business outcome surfaced to the user for re-selection, not an
// exceptional condition.
var ErrInvalidDogs = errors.New("invalid dog selection")

// AlreadyCheckedInError is returned when the user already has an
// ACTIVE visit.  It carries the existing visit so the caller can offer
// "end current visit" as a remediation before retrying.
type AlreadyCheckedInError struct {
	Existing *model.Visit
}

func (e *AlreadyCheckedInError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("already checked in (visit %d)", e.Existing.ID)
	}
	return "already checked in"
}

// Unwrap lets errors.Is match the repository sentinel.
func (e *AlreadyCheckedInError) Unwrap() error { return repository.ErrActiveVisitExists }

// GardenStore is the garden lookup surface the service needs.
type GardenStore interface {
	GetByCode(ctx context.Context, code string) (*model.Garden, error)
	GetByID(ctx context.Context, id uint64) (*model.Garden, error)
}

// DogStore answers the ownership guard.
type DogStore interface {
	MissingOwned(ctx context.Context, ownerID uint64, dogIDs []uint64) ([]uint64, error)
}

// VisitStore is the transactional visit persistence surface.  CheckIn
// and the terminal transitions are atomic with respect to the garden
// occupancy counter; implementations return the repository sentinels
// for the typed outcomes.
type VisitStore interface {
	ActiveByUser(ctx context.Context, userID uint64) (*model.Visit, error)
	GetByID(ctx context.Context, id uint64) (*model.Visit, error)
	CheckIn(ctx context.Context, userID, gardenID uint64, dogIDs []uint64, notes *string) (*model.Visit, error)
	Complete(ctx context.Context, visitID uint64) (*model.Visit, error)
	Cancel(ctx context.Context, visitID uint64) (*model.Visit, error)
	ListByUser(ctx context.Context, userID uint64) ([]repository.VisitDetail, error)
}

// EventPublisher dispatches fire-and-forget visit notifications.
type EventPublisher interface {
	PublishVisitEvent(ctx context.Context, ev queue.VisitEvent) error
}

// VisitService orchestrates the check-in / check-out lifecycle.
type VisitService struct {
	gardens GardenStore
	dogs    DogStore
	visits  VisitStore
	events  EventPublisher
}

// NewVisitService wires the service.  events may be nil, in which case
// no notifications are dispatched.
func NewVisitService(gardens GardenStore, dogs DogStore, visits VisitStore, events EventPublisher) *VisitService {
	if gardens == nil || dogs == nil || visits == nil {
		panic("nil store passed to NewVisitService")
	}
	return &VisitService{gardens: gardens, dogs: dogs, visits: visits, events: events}
}

// CheckIn starts a visit for the session user at the garden identified
// by code, with the given dogs.  Guards run in a fixed order and the
// first failure short-circuits:
//
//  1. dogIDs non-empty and all owned by the user -> ErrInvalidDogs
//  2. no ACTIVE visit for the user              -> *AlreadyCheckedInError
//  3. garden exists and accepts check-ins        -> repository.ErrGardenNotFound
//  4. capacity, when the garden enforces one     -> repository.ErrGardenFull
//
// The active-visit guard is advisory; the store's unique index is the
// authoritative enforcement, so a concurrent duplicate still comes
// back as *AlreadyCheckedInError rather than slipping through.
func (s *VisitService) CheckIn(ctx context.Context, session auth.MemberSession, gardenCode string, dogIDs []uint64, notes *string) (*model.Visit, error) {
	dogIDs = dedupe(dogIDs)
	if len(dogIDs) == 0 {
		return nil, ErrInvalidDogs
	}
	missing, err := s.dogs.MissingOwned(ctx, session.UserID, dogIDs)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: dogs %v not owned by user", ErrInvalidDogs, missing)
	}

	if existing, err := s.visits.ActiveByUser(ctx, session.UserID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &AlreadyCheckedInError{Existing: existing}
	}

	garden, err := s.gardens.GetByCode(ctx, gardenCode)
	if err != nil {
		return nil, err
	}
	if !garden.IsActive {
		return nil, repository.ErrGardenNotFound
	}
	if !garden.HasCapacityFor(len(dogIDs)) {
		return nil, repository.ErrGardenFull
	}

	visit, err := s.visits.CheckIn(ctx, session.UserID, garden.ID, dogIDs, notes)
	if errors.Is(err, repository.ErrActiveVisitExists) {
		// Lost the race to another check-in by the same user; fetch the
		// winner so the caller still gets the remediation handle.
		existing, aerr := s.visits.ActiveByUser(ctx, session.UserID)
		if aerr != nil {
			return nil, aerr
		}
		return nil, &AlreadyCheckedInError{Existing: existing}
	}
	if err != nil {
		return nil, err
	}
	visit.Garden = model.ResolvedGarden(garden)

	s.publish(ctx, queue.EventVisitStarted, visit, garden)
	return visit, nil
}

// CheckOut completes the visit.  The failure modes stay
// distinguishable: repository.ErrVisitNotFound for an unknown id,
// repository.ErrForbidden when the visit belongs to someone else, and
// repository.ErrVisitNotActive when it is already terminal.  Because a
// terminal visit short-circuits before any occupancy change, calling
// CheckOut twice decrements the garden exactly once.
func (s *VisitService) CheckOut(ctx context.Context, session auth.MemberSession, visitID uint64) (*model.Visit, error) {
	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.UserID != session.UserID {
		return nil, repository.ErrForbidden
	}
	if visit.Status != model.VisitActive {
		return nil, repository.ErrVisitNotActive
	}

	done, err := s.visits.Complete(ctx, visitID)
	if err != nil {
		return nil, err
	}

	if garden, gerr := s.gardens.GetByID(ctx, done.Garden.ID()); gerr == nil {
		done.Garden = model.ResolvedGarden(garden)
		s.publish(ctx, queue.EventVisitEnded, done, garden)
	}
	return done, nil
}

// Cancel terminates an ACTIVE visit without recording a duration.
// Admins may cancel any visit; members only their own.
func (s *VisitService) Cancel(ctx context.Context, session auth.MemberSession, visitID uint64) (*model.Visit, error) {
	visit, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if session.Role != model.RoleAdmin && visit.UserID != session.UserID {
		return nil, repository.ErrForbidden
	}
	if visit.Status != model.VisitActive {
		return nil, repository.ErrVisitNotActive
	}
	return s.visits.Cancel(ctx, visitID)
}

// ActiveVisit returns the session user's ACTIVE visit with its garden
// resolved, or nil when the user is not checked in.
func (s *VisitService) ActiveVisit(ctx context.Context, session auth.MemberSession) (*model.Visit, error) {
	visit, err := s.visits.ActiveByUser(ctx, session.UserID)
	if err != nil || visit == nil {
		return nil, err
	}
	if garden, gerr := s.gardens.GetByID(ctx, visit.Garden.ID()); gerr == nil {
		visit.Garden = model.ResolvedGarden(garden)
	}
	return visit, nil
}

// History returns the session user's visits, newest first.
func (s *VisitService) History(ctx context.Context, session auth.MemberSession) ([]repository.VisitDetail, error) {
	return s.visits.ListByUser(ctx, session.UserID)
}

// publish dispatches a visit event and logs failures instead of
// propagating them: the visit mutation has already committed and must
// not appear failed because the broker is down.
func (s *VisitService) publish(ctx context.Context, eventType string, v *model.Visit, g *model.Garden) {
	if s.events == nil {
		return
	}
	ev := queue.VisitEvent{
		Type:        eventType,
		VisitID:     v.ID,
		UserID:      v.UserID,
		GardenID:    g.ID,
		GardenCode:  g.Code,
		GardenName:  g.Name,
		DogCount:    len(v.DogIDs),
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
		DurationMin: v.DurationMin,
	}
	if err := s.events.PublishVisitEvent(ctx, ev); err != nil {
		log.Printf("visit-service: publish %s failed: %v", eventType, err)
	}
}

func dedupe(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
