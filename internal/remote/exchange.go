// internal/remote/exchange.go
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MidnightGrind/ghost/internal/queue"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
)

var errClosed = errors.New("exchange closed")

// Exchange runs Service calls on their own goroutines and queues their
// callbacks. Callbacks run only inside Drain, on the caller's goroutine, so
// they may touch state owned by the tick. Close cancels every in-flight call;
// single calls cannot be cancelled.
type Exchange struct {
	svc  Service
	log  *slog.Logger
	done *queue.Queue[func()]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight int
	closed   bool
}

// NewExchange wraps svc.
func NewExchange(svc Service, logger *slog.Logger) *Exchange {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Exchange{
		svc:    svc,
		log:    logger,
		done:   queue.New[func()](),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Upload sends rec; cb receives the outcome on the next Drain.
func (x *Exchange) Upload(rec *core.Record, cb func(error)) {
	x.start("upload", func(ctx context.Context) func() {
		err := x.svc.Upload(ctx, rec)
		return func() { cb(err) }
	}, func(err error) func() {
		return func() { cb(err) }
	})
}

// Download fetches a record; cb receives it on the next Drain.
func (x *Exchange) Download(id uuid.UUID, cb func(*core.Record, error)) {
	x.start("download", func(ctx context.Context) func() {
		rec, err := x.svc.Download(ctx, id)
		return func() { cb(rec, err) }
	}, func(err error) func() {
		return func() { cb(nil, err) }
	})
}

// FetchLeaderboard fetches a leaderboard page; cb receives it on the next Drain.
func (x *Exchange) FetchLeaderboard(trackID string, start, count int, cb func([]core.LeaderboardEntry, error)) {
	x.start("leaderboard", func(ctx context.Context) func() {
		entries, err := x.svc.FetchLeaderboard(ctx, trackID, start, count)
		return func() { cb(entries, err) }
	}, func(err error) func() {
		return func() { cb(nil, err) }
	})
}

// Drain runs every queued callback on the calling goroutine and returns how
// many ran.
func (x *Exchange) Drain() int {
	return x.done.Drain(func(fn func()) { fn() })
}

// Pending returns the number of calls that have not completed yet.
func (x *Exchange) Pending() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.inflight
}

// Close cancels in-flight calls and waits for them to return. Their
// callbacks stay queued for a final Drain. Later calls fail immediately.
func (x *Exchange) Close() {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return
	}
	x.closed = true
	x.mu.Unlock()

	x.cancel()
	x.wg.Wait()
}

func (x *Exchange) start(op string, call func(context.Context) func(), fail func(error) func()) {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		x.done.Push(fail(fmt.Errorf("%w: %s: %w", ErrRemoteFailure, op, errClosed)))
		return
	}
	x.inflight++
	x.wg.Add(1)
	x.mu.Unlock()

	go func() {
		defer x.wg.Done()
		completion := call(x.ctx)
		x.done.Push(completion)

		x.mu.Lock()
		x.inflight--
		x.mu.Unlock()
		x.log.Debug("Remote call completed", "op", op)
	}()
}
