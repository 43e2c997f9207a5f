// internal/remote/exchange_test.go
package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService answers immediately unless block is set, in which case calls
// wait for their context.
type fakeService struct {
	mu      sync.Mutex
	block   bool
	uploads []uuid.UUID
	records map[uuid.UUID]*core.Record
	board   []core.LeaderboardEntry
}

func (f *fakeService) Upload(ctx context.Context, rec *core.Record) error {
	if f.block {
		<-ctx.Done()
		return errors.Join(ErrRemoteFailure, ctx.Err())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, rec.ID)
	return nil
}

func (f *fakeService) Download(ctx context.Context, id uuid.UUID) (*core.Record, error) {
	if f.block {
		<-ctx.Done()
		return nil, errors.Join(ErrRemoteFailure, ctx.Err())
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, ErrRemoteFailure
	}
	return rec, nil
}

func (f *fakeService) FetchLeaderboard(ctx context.Context, trackID string, start, count int) ([]core.LeaderboardEntry, error) {
	return f.board, nil
}

func waitIdle(t *testing.T, x *Exchange) {
	t.Helper()
	require.Eventually(t, func() bool { return x.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestExchange_CallbacksRunOnlyInDrain(t *testing.T) {
	rec := testRecord()
	svc := &fakeService{records: map[uuid.UUID]*core.Record{rec.ID: rec}}
	x := NewExchange(svc, nil)
	defer x.Close()

	var uploaded, downloaded bool
	var got *core.Record
	x.Upload(rec, func(err error) {
		assert.NoError(t, err)
		uploaded = true
	})
	x.Download(rec.ID, func(r *core.Record, err error) {
		assert.NoError(t, err)
		got = r
		downloaded = true
	})

	waitIdle(t, x)
	assert.False(t, uploaded)
	assert.False(t, downloaded)

	assert.Equal(t, 2, x.Drain())
	assert.True(t, uploaded)
	assert.True(t, downloaded)
	assert.Same(t, rec, got)
	assert.Equal(t, 0, x.Drain())
}

func TestExchange_FailureDelivered(t *testing.T) {
	x := NewExchange(&fakeService{}, nil)
	defer x.Close()

	var gotErr error
	x.Download(uuid.New(), func(r *core.Record, err error) {
		assert.Nil(t, r)
		gotErr = err
	})
	waitIdle(t, x)
	x.Drain()
	assert.ErrorIs(t, gotErr, ErrRemoteFailure)
}

func TestExchange_Leaderboard(t *testing.T) {
	board := []core.LeaderboardEntry{{Rank: 0, RecordID: uuid.New(), PlayerName: "Ace", Time: 58}}
	x := NewExchange(&fakeService{board: board}, nil)
	defer x.Close()

	var got []core.LeaderboardEntry
	x.FetchLeaderboard("harbor_loop", 0, 10, func(e []core.LeaderboardEntry, err error) {
		require.NoError(t, err)
		got = e
	})
	waitIdle(t, x)
	x.Drain()
	assert.Equal(t, board, got)
}

func TestExchange_CloseCancelsInFlight(t *testing.T) {
	x := NewExchange(&fakeService{block: true}, nil)

	var gotErr error
	x.Upload(testRecord(), func(err error) { gotErr = err })
	assert.Equal(t, 1, x.Pending())

	x.Close()
	assert.Equal(t, 0, x.Pending())
	assert.Equal(t, 1, x.Drain())
	assert.ErrorIs(t, gotErr, context.Canceled)

	// Calls after Close fail without reaching the service.
	var lateErr error
	x.Upload(testRecord(), func(err error) { lateErr = err })
	x.Drain()
	assert.ErrorIs(t, lateErr, ErrRemoteFailure)
	assert.ErrorIs(t, lateErr, errClosed)

	x.Close()
}
