package client

import (
	"context"
	"errors"
	"sync"
)

// State labels the cache's view of "my current active visit".
type State string

const (
	// StateUnknown means no query has completed yet (or the last one
	// failed); the view must not be trusted.
	StateUnknown State = "UNKNOWN"
	// StateLoading means a query is in flight.
	StateLoading State = "LOADING"
	// StateNoActiveVisit means the server confirmed the user is not
	// checked in anywhere.
	StateNoActiveVisit State = "NO_ACTIVE_VISIT"
	// StateHasActiveVisit means an active visit is cached.
	StateHasActiveVisit State = "HAS_ACTIVE_VISIT"
)

// ErrBusy is returned when a mutation is requested while another
// mutation is still outstanding.  The UI disables the button; this is
// the programmatic equivalent.
var ErrBusy = errors.New("another visit operation is in progress")

// ErrGuest is returned when a guest session attempts a mutation.
var ErrGuest = errors.New("sign in to check in")

// VisitAPI is the slice of the HTTP client the cache needs.  Tests
// substitute a scripted fake.
type VisitAPI interface {
	ActiveVisit(ctx context.Context) (*Visit, error)
	CheckIn(ctx context.Context, req CheckInRequest) (*Visit, error)
	CheckOut(ctx context.Context, visitID uint64) (*Visit, error)
}

// ActiveVisitCache is the client-local view of the user's active
// visit.  Every mutation applies optimistically and then re-queries
// the server, so a flaky network can never leave the view wedged on a
// stale optimistic value: the confirmatory fetch is unconditional.
//
// Guests never query: their state is pinned to NoActiveVisit.
type ActiveVisitCache struct {
	api   VisitAPI
	guest bool

	mu    sync.Mutex
	state State
	visit *Visit
	busy  bool
}

// NewActiveVisitCache returns a cache in StateUnknown for members, or
// pinned to StateNoActiveVisit for guests.
func NewActiveVisitCache(api VisitAPI, guest bool) *ActiveVisitCache {
	c := &ActiveVisitCache{api: api, guest: guest, state: StateUnknown}
	if guest {
		c.state = StateNoActiveVisit
	}
	return c
}

// Snapshot returns the current state and, when HasActiveVisit, the
// cached visit.
func (c *ActiveVisitCache) Snapshot() (State, *Visit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.visit
}

// Refresh queries the server and replaces the cached view.  Called on
// mount and on screen focus.  On failure the state falls back to
// Unknown so callers do not render a stale answer as authoritative.
func (c *ActiveVisitCache) Refresh(ctx context.Context) error {
	if c.guest {
		return nil
	}
	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()
	return c.requery(ctx)
}

// CheckIn performs a check-in and transitions the view.  On success
// the new visit is adopted immediately and then confirmed with a
// re-query.  On a conflict carrying the existing visit, that visit is
// adopted instead: the server's answer is the truth.
func (c *ActiveVisitCache) CheckIn(ctx context.Context, req CheckInRequest) (*Visit, error) {
	if c.guest {
		return nil, ErrGuest
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	v, err := c.api.CheckIn(ctx, req)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) && conflict.Existing != nil {
			c.set(StateHasActiveVisit, conflict.Existing)
		} else {
			// Ambiguous outcome (transport error, 5xx): only the
			// server knows whether the visit was created.
			_ = c.requery(ctx)
		}
		return nil, err
	}

	c.set(StateHasActiveVisit, v)
	_ = c.requery(ctx)
	return v, nil
}

// CheckOut ends the cached active visit and transitions the view.  On
// failure the cache re-queries rather than trusting either the
// optimistic transition or the old value; "visit not active" conflicts
// resolve silently to the server's state.
func (c *ActiveVisitCache) CheckOut(ctx context.Context) (*Visit, error) {
	if c.guest {
		return nil, ErrGuest
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	c.mu.Lock()
	current := c.visit
	c.mu.Unlock()
	if current == nil {
		return nil, errors.New("no active visit cached; refresh first")
	}

	done, err := c.api.CheckOut(ctx, current.ID)
	if err != nil {
		_ = c.requery(ctx)
		return nil, err
	}

	c.set(StateNoActiveVisit, nil)
	_ = c.requery(ctx)
	return done, nil
}

// requery fetches the authoritative answer and installs it.  On error
// the state degrades to Unknown.
func (c *ActiveVisitCache) requery(ctx context.Context) error {
	v, err := c.api.ActiveVisit(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateUnknown
		c.visit = nil
		return err
	}
	if v == nil {
		c.state = StateNoActiveVisit
		c.visit = nil
	} else {
		c.state = StateHasActiveVisit
		c.visit = v
	}
	return nil
}

func (c *ActiveVisitCache) set(s State, v *Visit) {
	c.mu.Lock()
	c.state = s
	c.visit = v
	c.mu.Unlock()
}

func (c *ActiveVisitCache) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *ActiveVisitCache) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}
