package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI scripts the server's answers with function fields.
type fakeAPI struct {
	activeFn   func(ctx context.Context) (*Visit, error)
	checkInFn  func(ctx context.Context, req CheckInRequest) (*Visit, error)
	checkOutFn func(ctx context.Context, visitID uint64) (*Visit, error)
}

func (f *fakeAPI) ActiveVisit(ctx context.Context) (*Visit, error) {
	return f.activeFn(ctx)
}

func (f *fakeAPI) CheckIn(ctx context.Context, req CheckInRequest) (*Visit, error) {
	return f.checkInFn(ctx, req)
}

func (f *fakeAPI) CheckOut(ctx context.Context, visitID uint64) (*Visit, error) {
	return f.checkOutFn(ctx, visitID)
}

func activeVisit(id uint64) *Visit {
	return &Visit{ID: id, Status: "ACTIVE", DogIDs: []uint64{1}}
}

func TestRefreshResolvesToHasActiveVisit(t *testing.T) {
	api := &fakeAPI{
		activeFn: func(context.Context) (*Visit, error) { return activeVisit(7), nil },
	}
	c := NewActiveVisitCache(api, false)

	state, _ := c.Snapshot()
	assert.Equal(t, StateUnknown, state)

	require.NoError(t, c.Refresh(context.Background()))
	state, v := c.Snapshot()
	assert.Equal(t, StateHasActiveVisit, state)
	require.NotNil(t, v)
	assert.Equal(t, uint64(7), v.ID)
}

func TestRefreshResolvesToNoActiveVisit(t *testing.T) {
	api := &fakeAPI{
		activeFn: func(context.Context) (*Visit, error) { return nil, nil },
	}
	c := NewActiveVisitCache(api, false)

	require.NoError(t, c.Refresh(context.Background()))
	state, v := c.Snapshot()
	assert.Equal(t, StateNoActiveVisit, state)
	assert.Nil(t, v)
}

func TestRefreshFailureDegradesToUnknown(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		activeFn: func(context.Context) (*Visit, error) {
			calls++
			if calls == 1 {
				return activeVisit(7), nil
			}
			return nil, errors.New("network down")
		},
	}
	c := NewActiveVisitCache(api, false)
	require.NoError(t, c.Refresh(context.Background()))

	err := c.Refresh(context.Background())
	require.Error(t, err)
	state, v := c.Snapshot()
	assert.Equal(t, StateUnknown, state, "a failed query must not leave a stale answer looking authoritative")
	assert.Nil(t, v)
}

func TestGuestIsPinnedToNoActiveVisit(t *testing.T) {
	api := &fakeAPI{
		activeFn: func(context.Context) (*Visit, error) {
			t.Fatal("guest cache must never query the server")
			return nil, nil
		},
	}
	c := NewActiveVisitCache(api, true)

	state, _ := c.Snapshot()
	assert.Equal(t, StateNoActiveVisit, state)

	require.NoError(t, c.Refresh(context.Background()))
	state, _ = c.Snapshot()
	assert.Equal(t, StateNoActiveVisit, state)

	_, err := c.CheckIn(context.Background(), CheckInRequest{GardenCode: "abc"})
	assert.ErrorIs(t, err, ErrGuest)
	_, err = c.CheckOut(context.Background())
	assert.ErrorIs(t, err, ErrGuest)
}

func TestCheckInAdoptsVisitAndReconciles(t *testing.T) {
	reconciled := false
	created := activeVisit(11)
	api := &fakeAPI{
		checkInFn: func(_ context.Context, req CheckInRequest) (*Visit, error) {
			assert.Equal(t, "deadbeefdeadbeefdeadbeef", req.GardenCode)
			return created, nil
		},
		activeFn: func(context.Context) (*Visit, error) {
			reconciled = true
			return created, nil
		},
	}
	c := NewActiveVisitCache(api, false)

	v, err := c.CheckIn(context.Background(), CheckInRequest{
		GardenCode: "deadbeefdeadbeefdeadbeef",
		DogIDs:     []uint64{1},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), v.ID)
	assert.True(t, reconciled, "a successful check-in must still confirm with a re-query")

	state, cached := c.Snapshot()
	assert.Equal(t, StateHasActiveVisit, state)
	assert.Equal(t, uint64(11), cached.ID)
}

func TestCheckInConflictAdoptsExistingVisit(t *testing.T) {
	existing := activeVisit(3)
	api := &fakeAPI{
		checkInFn: func(context.Context, CheckInRequest) (*Visit, error) {
			return nil, &ConflictError{Message: "already checked in", Existing: existing}
		},
	}
	c := NewActiveVisitCache(api, false)

	_, err := c.CheckIn(context.Background(), CheckInRequest{GardenCode: "abc", DogIDs: []uint64{1}})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	state, cached := c.Snapshot()
	assert.Equal(t, StateHasActiveVisit, state)
	require.NotNil(t, cached)
	assert.Equal(t, uint64(3), cached.ID)
}

func TestCheckInAmbiguousFailureRequeries(t *testing.T) {
	requeried := false
	api := &fakeAPI{
		checkInFn: func(context.Context, CheckInRequest) (*Visit, error) {
			return nil, errors.New("connection reset")
		},
		activeFn: func(context.Context) (*Visit, error) {
			requeried = true
			// The server did apply the mutation despite the broken
			// response; the re-query discovers it.
			return activeVisit(21), nil
		},
	}
	c := NewActiveVisitCache(api, false)

	_, err := c.CheckIn(context.Background(), CheckInRequest{GardenCode: "abc", DogIDs: []uint64{1}})
	require.Error(t, err)
	assert.True(t, requeried, "an ambiguous failure must be resolved by re-query, never assumed")

	state, cached := c.Snapshot()
	assert.Equal(t, StateHasActiveVisit, state)
	assert.Equal(t, uint64(21), cached.ID)
}

func TestCheckOutOptimisticThenReconcile(t *testing.T) {
	api := &fakeAPI{
		activeFn:   func(context.Context) (*Visit, error) { return activeVisit(5), nil },
		checkOutFn: nil,
	}
	c := NewActiveVisitCache(api, false)
	require.NoError(t, c.Refresh(context.Background()))

	api.checkOutFn = func(_ context.Context, visitID uint64) (*Visit, error) {
		assert.Equal(t, uint64(5), visitID)
		done := activeVisit(5)
		done.Status = "COMPLETED"
		return done, nil
	}
	api.activeFn = func(context.Context) (*Visit, error) { return nil, nil }

	done, err := c.CheckOut(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", done.Status)

	state, cached := c.Snapshot()
	assert.Equal(t, StateNoActiveVisit, state)
	assert.Nil(t, cached)
}

func TestCheckOutFailureSurfacesAuthoritativeState(t *testing.T) {
	still := activeVisit(5)
	api := &fakeAPI{
		activeFn: func(context.Context) (*Visit, error) { return still, nil },
	}
	c := NewActiveVisitCache(api, false)
	require.NoError(t, c.Refresh(context.Background()))

	api.checkOutFn = func(context.Context, uint64) (*Visit, error) {
		return nil, &APIError{Status: 500, Message: "check-out failed"}
	}

	_, err := c.CheckOut(context.Background())
	require.Error(t, err)

	// The failed mutation did not stick: the re-query restored the
	// visit instead of trusting an optimistic transition.
	state, cached := c.Snapshot()
	assert.Equal(t, StateHasActiveVisit, state)
	require.NotNil(t, cached)
	assert.Equal(t, uint64(5), cached.ID)
}

func TestCheckOutWithoutCachedVisitFails(t *testing.T) {
	api := &fakeAPI{}
	c := NewActiveVisitCache(api, false)
	_, err := c.CheckOut(context.Background())
	require.Error(t, err)
}

func TestMutationsAreSerialized(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{
		checkInFn: func(context.Context, CheckInRequest) (*Visit, error) {
			close(started)
			<-release
			return activeVisit(9), nil
		},
		activeFn: func(context.Context) (*Visit, error) { return activeVisit(9), nil },
	}
	c := NewActiveVisitCache(api, false)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.CheckIn(context.Background(), CheckInRequest{GardenCode: "abc", DogIDs: []uint64{1}})
		errCh <- err
	}()
	<-started

	_, err := c.CheckOut(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-errCh)
}
