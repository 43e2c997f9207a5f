// Package remote talks to the leaderboard service. Calls made through an
// Exchange complete on background goroutines and are handed back to the tick
// goroutine by Drain.
package remote

import (
	"context"
	"errors"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
)

// ErrRemoteFailure wraps every failed call to the leaderboard service.
var ErrRemoteFailure = errors.New("remote call failed")

// Service is the leaderboard collaborator.
type Service interface {
	Upload(ctx context.Context, rec *core.Record) error
	Download(ctx context.Context, id uuid.UUID) (*core.Record, error)
	FetchLeaderboard(ctx context.Context, trackID string, start, count int) ([]core.LeaderboardEntry, error)
}
