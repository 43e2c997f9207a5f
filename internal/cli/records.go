package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/MidnightGrind/ghost/internal/compare"
	"github.com/MidnightGrind/ghost/internal/storage"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/spf13/cobra"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var track string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored ghosts",
		Example: `  ghostctl list
  ghostctl list --track harbor_loop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				var recs []*core.Record
				if track != "" {
					var err error
					recs, err = a.store.ListByTrack(track)
					if err != nil {
						return err
					}
				} else {
					for _, id := range a.store.IDs() {
						rec, err := a.store.Load(id)
						if err != nil {
							a.logger.Warn("Skipping unreadable record", "record", id, "error", err)
							continue
						}
						recs = append(recs, rec)
					}
				}
				printRecords(cmd.OutOrStdout(), a.store, recs)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&track, "track", "", "only list ghosts on this track, fastest first")
	return cmd
}

func printRecords(w io.Writer, store *storage.Store, recs []*core.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No ghosts stored.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRACK\tKIND\tPLAYER\tTIME\tFRAMES\tPB")
	for _, rec := range recs {
		pb, _ := store.PersonalBestEntry(rec.TrackID)
		mark := ""
		if pb.RecordID == rec.ID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.3f\t%d\t%s\n",
			rec.ID, rec.TrackID, rec.Kind, playerLabel(rec), rec.RankingTime(), len(rec.Frames), mark)
	}
	tw.Flush()
}

func playerLabel(rec *core.Record) string {
	if rec.PlayerName != "" {
		return rec.PlayerName
	}
	return rec.PlayerID
}

func newInspectCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <id>",
		Short: "Show a ghost's header, laps and sectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				rec, err := a.store.Load(id)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Ghost:          %s\n", rec.ID)
				fmt.Fprintf(w, "Track:          %s\n", rec.TrackID)
				fmt.Fprintf(w, "Vehicle:        %s\n", rec.VehicleID)
				fmt.Fprintf(w, "Player:         %s (%s)\n", playerLabel(rec), rec.PlayerID)
				fmt.Fprintf(w, "Kind:           %s\n", rec.Kind)
				fmt.Fprintf(w, "Recorded:       %s\n", rec.RecordedDate.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(w, "Game version:   %s (format v%d)\n", rec.GameVersion, rec.FormatVersion)
				fmt.Fprintf(w, "Total time:     %.3f\n", rec.TotalTime)
				fmt.Fprintf(w, "Best lap:       %.3f\n", rec.BestLapTime)
				fmt.Fprintf(w, "Frames:         %d\n", len(rec.Frames))
				if rec.CompressedFrameCount > 0 {
					fmt.Fprintf(w, "Compressed to:  %d\n", rec.CompressedFrameCount)
				}
				for i, lap := range rec.LapTimes {
					fmt.Fprintf(w, "  Lap %d:        %.3f\n", i+1, lap)
				}

				best, err := a.store.PersonalBest(rec.TrackID)
				var deltas []float32
				switch {
				case err == nil && best.ID != rec.ID:
					deltas = compare.SectorDeltas(rec, best)
				case err != nil && !errors.Is(err, storage.ErrNotFound):
					a.logger.Warn("Failed to load personal best", "track", rec.TrackID, "error", err)
				}
				for i, s := range rec.SectorTimes {
					if i < len(deltas) {
						fmt.Fprintf(w, "  Sector %d:     %.3f (%+.3f vs PB)\n", i+1, s, deltas[i])
					} else {
						fmt.Fprintf(w, "  Sector %d:     %.3f\n", i+1, s)
					}
				}
				return nil
			})
		},
	}
}

func newBestCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "best [track]",
		Short: "Show personal bests, for one track or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				bests := a.store.PersonalBests()
				if len(args) == 1 {
					pb, ok := a.store.PersonalBestEntry(args[0])
					if !ok {
						return fmt.Errorf("personal best for %q: %w", args[0], storage.ErrNotFound)
					}
					bests = []core.PersonalBest{pb}
				}
				if len(bests) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No personal bests.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TRACK\tTIME\tGHOST")
				for _, pb := range bests {
					fmt.Fprintf(tw, "%s\t%.3f\t%s\n", pb.TrackID, pb.BestTime, pb.RecordID)
				}
				return tw.Flush()
			})
		},
	}
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a ghost and any personal best pointing at it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				if err := a.store.Delete(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				return nil
			})
		},
	}
}
