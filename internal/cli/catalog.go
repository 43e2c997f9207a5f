package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/MidnightGrind/ghost/internal/database"
	"github.com/MidnightGrind/ghost/internal/storage"
	gormstorage "github.com/MidnightGrind/ghost/internal/storage/gorm"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/spf13/cobra"
)

func newCatalogCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the catalog database that mirrors the ghost store",
	}
	cmd.AddCommand(newCatalogSyncCmd(opts), newCatalogShowCmd(opts))
	return cmd
}

func newCatalogSyncCmd(opts *globalOptions) *cobra.Command {
	var export string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Rewrite every stored ghost into the configured catalog",
		Example: `  ghostctl catalog sync --catalog postgres
  ghostctl catalog sync --catalog sqlite --export ./catalog.db
  ghostctl catalog sync --catalog memory --export ./catalog.json.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if a.catalog == nil {
					return errors.New("no catalog configured, set catalog.type or --catalog")
				}
				n, err := a.store.SyncCatalog()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mirrored %d ghosts\n", n)

				if export == "" {
					return nil
				}
				exp, ok := a.catalog.(storage.Exportable)
				if !ok {
					return fmt.Errorf("catalog %T cannot export", a.catalog)
				}
				if err := exp.Export(export); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported catalog to %s\n", export)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&export, "export", "", "also write the catalog to this file")
	return cmd
}

func newCatalogShowCmd(opts *globalOptions) *cobra.Command {
	var (
		dbPath string
		track  string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the entries of a catalog SQLite file",
		Example: `  ghostctl catalog show --db ./ghost_catalog.db
  ghostctl catalog show --db ./ghost_catalog.db --track harbor_loop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			return withApp(opts, func(a *app) error {
				mgr := database.NewManager(a.zlog)
				if err := mgr.ConnectSqlite(dbPath); err != nil {
					return err
				}
				defer mgr.Close()

				cat := gormstorage.New(gormstorage.Dependencies{DB: mgr.DB, Logger: a.logger})
				var (
					entries []core.CatalogEntry
					err     error
				)
				if track != "" {
					entries, err = cat.ByTrack(track)
				} else {
					entries, err = cat.All()
				}
				if err != nil {
					return err
				}
				return printEntries(cmd.OutOrStdout(), entries)
			})
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "catalog SQLite file (required)")
	cmd.Flags().StringVar(&track, "track", "", "only show entries on this track")
	return cmd
}

func printEntries(w io.Writer, entries []core.CatalogEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Catalog is empty.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRACK\tKIND\tPLAYER\tTIME\tPATH\tPB")
	for _, e := range entries {
		mark := ""
		if e.PersonalBest {
			mark = "*"
		}
		player := e.PlayerName
		if player == "" {
			player = e.PlayerID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.3f\t%.1f\t%s\n",
			e.RecordID, e.TrackID, e.Kind, player, e.RankingTime(), e.PathLength, mark)
	}
	return tw.Flush()
}
