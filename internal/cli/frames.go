package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MidnightGrind/ghost/internal/playback"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
)

func newSampleCmd(opts *globalOptions) *cobra.Command {
	var (
		step       float32
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "sample <id>",
		Short: "Print interpolated frames at a fixed time step",
		Example: `  ghostctl sample 2f1c... --step 0.5
  ghostctl sample 2f1c... --step 0.1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if step <= 0 {
				return fmt.Errorf("--step must be positive")
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				rec, err := a.store.Load(id)
				if err != nil {
					return err
				}

				var frames []core.Frame
				for i := 0; ; i++ {
					t := float32(i) * step
					if t > rec.TotalTime {
						break
					}
					frames = append(frames, playback.SampleAt(rec, t))
				}

				if outputJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(frames)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tX\tY\tZ\tYAW\tSPEED\tGEAR\tDIST")
				for _, f := range frames {
					fmt.Fprintf(tw, "%.3f\t%.2f\t%.2f\t%.2f\t%.1f\t%.1f\t%d\t%.1f\n",
						f.Timestamp, f.Position.X, f.Position.Y, f.Position.Z,
						f.Rotation.Yaw, f.Speed, f.Gear, f.DistanceAlongTrack)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().Float32Var(&step, "step", 0.5, "seconds between samples")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output frames as JSON")
	return cmd
}

// recordJSON is the export layout of a record.
type recordJSON struct {
	ID            string       `json:"id"`
	TrackID       string       `json:"trackId"`
	VehicleID     string       `json:"vehicleId"`
	PlayerID      string       `json:"playerId"`
	PlayerName    string       `json:"playerName"`
	Kind          string       `json:"kind"`
	TotalTime     float32      `json:"totalTime"`
	BestLapTime   float32      `json:"bestLapTime"`
	LapTimes      []float32    `json:"lapTimes"`
	SectorTimes   []float32    `json:"sectorTimes"`
	RecordedDate  time.Time    `json:"recordedDate"`
	GameVersion   string       `json:"gameVersion"`
	FormatVersion uint32       `json:"formatVersion"`
	Validated     bool         `json:"validated"`
	WorldRecord   bool         `json:"worldRecord"`
	Frames        []core.Frame `json:"frames"`
}

func toRecordJSON(rec *core.Record) recordJSON {
	return recordJSON{
		ID:            rec.ID.String(),
		TrackID:       rec.TrackID,
		VehicleID:     rec.VehicleID,
		PlayerID:      rec.PlayerID,
		PlayerName:    rec.PlayerName,
		Kind:          rec.Kind.String(),
		TotalTime:     rec.TotalTime,
		BestLapTime:   rec.BestLapTime,
		LapTimes:      nonNilTimes(rec.LapTimes),
		SectorTimes:   nonNilTimes(rec.SectorTimes),
		RecordedDate:  rec.RecordedDate,
		GameVersion:   rec.GameVersion,
		FormatVersion: rec.FormatVersion,
		Validated:     rec.Validated,
		WorldRecord:   rec.IsWorldRecord,
		Frames:        rec.Frames,
	}
}

func nonNilTimes(v []float32) []float32 {
	if v == nil {
		return []float32{}
	}
	return v
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a ghost as gzipped JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = id.String() + ".json.gz"
			}
			if !strings.HasSuffix(out, ".gz") {
				out += ".gz"
			}
			return withApp(opts, func(a *app) error {
				rec, err := a.store.Load(id)
				if err != nil {
					return err
				}
				if err := writeGzipJSON(out, toRecordJSON(rec)); err != nil {
					return err
				}
				a.logger.Info("Exported ghost", "record", id, "path", out)
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", id, out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file (default <id>.json.gz)")
	return cmd
}

func writeGzipJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if err := json.NewEncoder(gw).Encode(v); err != nil {
		gw.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return f.Close()
}
