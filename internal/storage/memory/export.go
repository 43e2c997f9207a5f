// internal/storage/memory/export.go
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/klauspost/compress/gzip"
)

// exportVersion is bumped when the JSON layout changes
const exportVersion = 1

// CatalogExport is the root JSON structure
type CatalogExport struct {
	Version    int         `json:"version"`
	ExportedAt time.Time   `json:"exportedAt"`
	Tracks     []TrackJSON `json:"tracks"`
}

// TrackJSON groups the entries of one track, fastest first
type TrackJSON struct {
	TrackID      string      `json:"trackId"`
	PersonalBest string      `json:"personalBest,omitempty"`
	Entries      []EntryJSON `json:"entries"`
}

// EntryJSON is one catalog entry
type EntryJSON struct {
	RecordID     string    `json:"recordId"`
	VehicleID    string    `json:"vehicleId"`
	PlayerID     string    `json:"playerId"`
	PlayerName   string    `json:"playerName"`
	Kind         string    `json:"kind"`
	TotalTime    float32   `json:"totalTime"`
	BestLapTime  float32   `json:"bestLapTime"`
	LapTimes     []float32 `json:"lapTimes"`
	SectorTimes  []float32 `json:"sectorTimes"`
	FrameCount   int       `json:"frameCount"`
	RecordedDate time.Time `json:"recordedDate"`
	GameVersion  string    `json:"gameVersion"`
	PathLength   float64   `json:"pathLength"`
	Trajectory   string    `json:"trajectory,omitempty"`
}

// Export writes the catalog to path. An empty path writes a timestamped file
// under the configured output directory, gzipped when CompressOutput is set.
// An explicit path is gzipped only when it ends in .gz.
func (b *Backend) Export(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exportJSON(path)
}

// exportJSON must be called with the lock held
func (b *Backend) exportJSON(path string) error {
	compress := b.cfg.CompressOutput
	if path == "" {
		filename := "ghost_catalog_" + time.Now().UTC().Format("20060102_150405") + ".json"
		if compress {
			filename += ".gz"
		}
		path = filepath.Join(b.cfg.OutputDir, filename)
	} else {
		compress = strings.HasSuffix(path, ".gz")
	}

	// Ensure output directory exists
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	export := b.buildExport()
	var err error
	if compress {
		err = writeGzipJSON(path, export)
	} else {
		err = writeJSON(path, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = path
	return nil
}

func (b *Backend) buildExport() CatalogExport {
	export := CatalogExport{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Tracks:     make([]TrackJSON, 0),
	}

	sorted := make([]core.CatalogEntry, 0, len(b.entries))
	for _, e := range b.entries {
		sorted = append(sorted, e)
	}
	sortEntries(sorted)

	for _, e := range sorted {
		n := len(export.Tracks)
		if n == 0 || export.Tracks[n-1].TrackID != e.TrackID {
			export.Tracks = append(export.Tracks, TrackJSON{TrackID: e.TrackID, Entries: make([]EntryJSON, 0)})
			n++
		}
		track := &export.Tracks[n-1]
		if e.PersonalBest {
			track.PersonalBest = e.RecordID.String()
		}
		track.Entries = append(track.Entries, EntryJSON{
			RecordID:     e.RecordID.String(),
			VehicleID:    e.VehicleID,
			PlayerID:     e.PlayerID,
			PlayerName:   e.PlayerName,
			Kind:         e.Kind.String(),
			TotalTime:    e.TotalTime,
			BestLapTime:  e.BestLapTime,
			LapTimes:     nonNil(e.LapTimes),
			SectorTimes:  nonNil(e.SectorTimes),
			FrameCount:   e.FrameCount,
			RecordedDate: e.RecordedDate,
			GameVersion:  e.GameVersion,
			PathLength:   e.PathLength,
			Trajectory:   e.Trajectory,
		})
	}

	return export
}

func nonNil(v []float32) []float32 {
	if v == nil {
		return []float32{}
	}
	return v
}

func writeJSON(path string, data CatalogExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data CatalogExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
