package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newUploadCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <id>",
		Short: "Upload a stored ghost to the leaderboard service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				client, err := a.remoteClient()
				if err != nil {
					return err
				}
				defer client.Close()

				rec, err := a.store.Load(id)
				if err != nil {
					return err
				}
				if err := client.Upload(cmd.Context(), rec); err != nil {
					return err
				}
				a.logger.Info("Ghost uploaded", "record", id, "track", rec.TrackID)
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s\n", id)
				return nil
			})
		},
	}
}

func newDownloadCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "download <id>",
		Short: "Download a ghost from the leaderboard service into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				client, err := a.remoteClient()
				if err != nil {
					return err
				}
				defer client.Close()

				rec, err := client.Download(cmd.Context(), id)
				if err != nil {
					return err
				}
				if err := a.store.Import(rec); err != nil {
					return err
				}
				a.logger.Info("Ghost downloaded", "record", id, "track", rec.TrackID)
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s (%s, %.3f)\n", id, rec.TrackID, rec.RankingTime())
				return nil
			})
		},
	}
}

func newLeaderboardCmd(opts *globalOptions) *cobra.Command {
	var start, count int

	cmd := &cobra.Command{
		Use:   "leaderboard <track>",
		Short: "Show a page of a track's leaderboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				client, err := a.remoteClient()
				if err != nil {
					return err
				}
				defer client.Close()

				entries, err := client.FetchLeaderboard(cmd.Context(), args[0], start, count)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Leaderboard is empty.")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RANK\tPLAYER\tTIME\tVEHICLE\tGHOST\tLOCAL")
				for _, e := range entries {
					local := ""
					if a.store.Has(e.RecordID) {
						local = "yes"
					}
					fmt.Fprintf(tw, "%d\t%s\t%.3f\t%s\t%s\t%s\n",
						e.Rank, e.PlayerName, e.Time, e.VehicleID, e.RecordID, local)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&start, "start", 0, "first rank to fetch (0-based)")
	cmd.Flags().IntVar(&count, "count", 10, "number of entries to fetch")
	return cmd
}
