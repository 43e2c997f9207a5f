// pkg/core/catalog.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// CatalogEntry is the queryable summary of a stored record. Catalog backends
// persist these so records can be listed and filtered without decoding ghost
// files.
type CatalogEntry struct {
	RecordID     uuid.UUID
	TrackID      string
	VehicleID    string
	PlayerID     string
	PlayerName   string
	Kind         Kind
	TotalTime    float32
	BestLapTime  float32
	LapTimes     []float32
	SectorTimes  []float32
	FrameCount   int
	RecordedDate time.Time
	GameVersion  string
	PersonalBest bool
	// PathLength is the planar length of the driven line in track units.
	PathLength float64
	// Trajectory is the driven line as WKT, empty for records under 2 frames.
	Trajectory string
}

// RankingTime mirrors Record.RankingTime for catalog rows.
func (e CatalogEntry) RankingTime() float32 {
	if e.BestLapTime > 0 {
		return e.BestLapTime
	}
	return e.TotalTime
}
