package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/MidnightGrind/ghost/internal/compare"
	"github.com/MidnightGrind/ghost/internal/compress"
	"github.com/MidnightGrind/ghost/internal/config"
	"github.com/MidnightGrind/ghost/internal/events"
	"github.com/MidnightGrind/ghost/internal/ghost"
	"github.com/MidnightGrind/ghost/internal/influx"
	"github.com/MidnightGrind/ghost/internal/livefeed"
	"github.com/MidnightGrind/ghost/internal/playback"
	"github.com/MidnightGrind/ghost/internal/recorder"
	"github.com/MidnightGrind/ghost/internal/remote"
	"github.com/MidnightGrind/ghost/pkg/streaming"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type raceOptions struct {
	personalBest bool
	worldRecord  bool
	rival        int
	live         bool
	playerID     string
	vehicleID    string
	speed        float32
	duration     time.Duration
}

func newRaceCmd(opts *globalOptions) *cobra.Command {
	ro := &raceOptions{}

	cmd := &cobra.Command{
		Use:   "race <track>",
		Short: "Replay ghosts on a track, optionally against live telemetry",
		Long: `Replays the selected ghosts in real time and reports comparisons.

With --live the player's telemetry is read from the live feed, recorded as
a new ghost and compared against the first ghost started. Without it the
first two ghosts are compared against each other.`,
		Example: `  ghostctl race harbor_loop --pb
  ghostctl race harbor_loop --pb --wr --speed 4
  ghostctl race harbor_loop --rival 2 --live --player p-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ro.personalBest && !ro.worldRecord && ro.rival < 0 {
				ro.personalBest = true
			}
			return withApp(opts, func(a *app) error {
				return runRace(cmd.Context(), cmd.OutOrStdout(), a, args[0], ro)
			})
		},
	}

	cmd.Flags().BoolVar(&ro.personalBest, "pb", false, "race the stored personal best (default when nothing else is selected)")
	cmd.Flags().BoolVar(&ro.worldRecord, "wr", false, "race the world record from the leaderboard")
	cmd.Flags().IntVar(&ro.rival, "rival", -1, "race the ghost at this leaderboard rank (0-based)")
	cmd.Flags().BoolVar(&ro.live, "live", false, "record and compare live telemetry from the live feed")
	cmd.Flags().StringVar(&ro.playerID, "player", "", "player id to subscribe to with --live")
	cmd.Flags().StringVar(&ro.vehicleID, "vehicle", "", "vehicle id recorded with --live")
	cmd.Flags().Float32Var(&ro.speed, "speed", 1, "playback speed")
	cmd.Flags().DurationVar(&ro.duration, "duration", 10*time.Minute, "stop after this long")
	return cmd
}

func runRace(ctx context.Context, out io.Writer, a *app, trackID string, ro *raceOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, ro.duration)
	defer cancel()

	bus, err := events.New(a.logger)
	if err != nil {
		return err
	}

	if ic := config.GetInfluxConfig(); ic.Enabled {
		backup := filepath.Join(viper.GetString("logsDir"), "ghost_metrics_backup.lp.gz")
		metrics := influx.NewManager(ic, a.zlog, backup)
		if err := metrics.Connect(ctx); err != nil {
			a.logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
		} else {
			defer metrics.Close()
			bus.Subscribe(metrics.Listener())
		}
	}

	cc := config.GetCompressionConfig()
	rec, err := recorder.New(config.GetRecorderConfig(), recorder.Dependencies{
		Store:         a.store,
		Events:        bus,
		Logger:        a.logger,
		Compressor:    compress.New(cc.DistanceThreshold, cc.AngleThreshold),
		FormatVersion: a.codec.Version(),
	})
	if err != nil {
		return err
	}

	deps := ghost.Dependencies{
		Recorder: rec,
		Store:    a.store,
		Engine:   playback.New(playback.Dependencies{Events: bus, Logger: a.logger}),
		Events:   bus,
		Logger:   a.logger,
	}

	if client, err := a.remoteClient(); err == nil {
		defer client.Close()
		if err := client.Healthcheck(ctx); err != nil {
			a.logger.Warn("Leaderboard service unreachable", "error", err)
		}
		deps.Exchange = remote.NewExchange(client, a.logger)
	} else if ro.worldRecord || ro.rival >= 0 {
		return err
	}

	if ro.live {
		feed := livefeed.New(config.GetLiveFeedConfig(), a.logger)
		if err := feed.Connect(ctx, streaming.SubscribePayload{TrackID: trackID, PlayerID: ro.playerID}); err != nil {
			return err
		}
		deps.Feed = feed
	}

	pc := config.GetPlaybackConfig()
	sys, err := ghost.New(pc, deps)
	if err != nil {
		return err
	}
	defer sys.Close()
	a.slog.Bind(sys)
	defer a.slog.Bind(nil)

	r := &race{out: out, sys: sys, live: ro.live, speed: ro.speed, cancel: cancel}
	bus.Subscribe(r.onEvent, events.Only(events.PlaybackStarted, events.PlaybackFinished, events.NewPersonalBest))

	if ro.personalBest {
		r.pending++
		r.started(sys.RacePersonalBest(trackID))
	}
	if ro.worldRecord {
		r.pending++
		sys.RaceWorldRecord(trackID, r.started)
	}
	if ro.rival >= 0 {
		r.pending++
		sys.RaceRival(trackID, ro.rival, r.started)
	}

	var session uuid.UUID
	if ro.live {
		session = sys.BeginRecording(trackID, ro.vehicleID, ro.playerID)
		sys.BindLiveSession(session)
	}

	err = sys.Run(ctx, pc.TickInterval)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if result, ok := sys.Comparison(); ok {
		printResult(out, result)
	}
	if ro.live {
		saved, err := sys.StopRecording(session)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Recorded %s: %.3f over %d frames\n", saved.ID, saved.RankingTime(), len(saved.Frames))
	}
	return r.err
}

// race tracks the cursors a race command started and stops the run once all
// of them have finished.
type race struct {
	out     io.Writer
	sys     *ghost.Subsystem
	live    bool
	speed   float32
	cancel  context.CancelFunc
	cursors []uuid.UUID
	pending int
	err     error
}

// started receives the outcome of every requested ghost, synchronous or from
// a remote callback. Each request increments pending first.
func (r *race) started(id uuid.UUID, err error) {
	r.pending--
	if err != nil {
		fmt.Fprintf(r.out, "Could not start ghost: %v\n", err)
		r.err = errors.Join(r.err, err)
		r.maybeStop()
		return
	}
	_ = r.sys.SetPlaybackSpeed(id, r.speed)
	r.cursors = append(r.cursors, id)

	switch {
	case r.live && len(r.cursors) == 1:
		r.sys.StartLiveComparison(id)
	case !r.live && len(r.cursors) == 2:
		r.sys.StartComparison(r.cursors[0], r.cursors[1])
	}
}

func (r *race) onEvent(e events.Event) {
	switch e.Kind {
	case events.PlaybackStarted:
		fmt.Fprintf(r.out, "Started ghost %s on %s\n", e.RecordID, e.TrackID)
	case events.PlaybackFinished:
		fmt.Fprintf(r.out, "Ghost %s finished\n", e.RecordID)
		r.maybeStop()
	case events.NewPersonalBest:
		fmt.Fprintf(r.out, "New personal best on %s!\n", e.TrackID)
	}
}

func (r *race) maybeStop() {
	if r.live || r.pending > 0 {
		return
	}
	for _, c := range r.sys.ActiveGhosts() {
		if c.State() != playback.Finished {
			return
		}
	}
	r.cancel()
}

func printResult(w io.Writer, res compare.Result) {
	fmt.Fprintf(w, "Comparison: %s by %.3fs (%.1fm)\n", res.Status, abs(res.TimeDelta), abs(res.DistanceDelta))
	for i, d := range res.SectorDeltas {
		fmt.Fprintf(w, "  Sector %d: %+.3f\n", i+1, d)
	}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
