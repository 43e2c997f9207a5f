package gormstorage

import (
	"encoding/json"
	"time"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GhostRecord is the catalog row for one stored record.
type GhostRecord struct {
	ID           uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	RecordID     string         `json:"recordId" gorm:"size:36;uniqueIndex"`
	TrackID      string         `json:"trackId" gorm:"size:128;index:idx_track_time"`
	VehicleID    string         `json:"vehicleId" gorm:"size:128"`
	PlayerID     string         `json:"playerId" gorm:"size:128;index"`
	PlayerName   string         `json:"playerName" gorm:"size:128"`
	Kind         string         `json:"kind" gorm:"size:32"`
	RankingTime  float32        `json:"rankingTime" gorm:"index:idx_track_time"`
	TotalTime    float32        `json:"totalTime"`
	BestLapTime  float32        `json:"bestLapTime"`
	LapTimes     datatypes.JSON `json:"lapTimes"`
	SectorTimes  datatypes.JSON `json:"sectorTimes"`
	FrameCount   int            `json:"frameCount"`
	RecordedDate time.Time      `json:"recordedDate"`
	GameVersion  string         `json:"gameVersion" gorm:"size:32"`
	PersonalBest bool           `json:"personalBest" gorm:"index"`
	PathLength   float64        `json:"pathLength"`
	// Trajectory is WKT so the same column works with and without PostGIS.
	Trajectory string `json:"trajectory" gorm:"type:text"`
}

func (*GhostRecord) TableName() string {
	return "ghost_records"
}

// DatabaseModels lists every model migrated by the catalog backends.
var DatabaseModels = []any{
	&GhostRecord{},
}

func timesToJSON(times []float32) datatypes.JSON {
	if len(times) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(times)
	return datatypes.JSON(data)
}

func jsonToTimes(data datatypes.JSON) []float32 {
	var times []float32
	if len(data) > 0 {
		_ = json.Unmarshal(data, &times)
	}
	if len(times) == 0 {
		return nil
	}
	return times
}

// toModel converts a catalog entry to its row.
func toModel(e core.CatalogEntry) GhostRecord {
	return GhostRecord{
		RecordID:     e.RecordID.String(),
		TrackID:      e.TrackID,
		VehicleID:    e.VehicleID,
		PlayerID:     e.PlayerID,
		PlayerName:   e.PlayerName,
		Kind:         e.Kind.String(),
		RankingTime:  e.RankingTime(),
		TotalTime:    e.TotalTime,
		BestLapTime:  e.BestLapTime,
		LapTimes:     timesToJSON(e.LapTimes),
		SectorTimes:  timesToJSON(e.SectorTimes),
		FrameCount:   e.FrameCount,
		RecordedDate: e.RecordedDate.UTC(),
		GameVersion:  e.GameVersion,
		PersonalBest: e.PersonalBest,
		PathLength:   e.PathLength,
		Trajectory:   e.Trajectory,
	}
}

// toCore converts a row back to a catalog entry. Unknown kinds and ids come
// back as zero values.
func toCore(r GhostRecord) core.CatalogEntry {
	id, _ := uuid.Parse(r.RecordID)
	kind, _ := core.ParseKind(r.Kind)
	return core.CatalogEntry{
		RecordID:     id,
		TrackID:      r.TrackID,
		VehicleID:    r.VehicleID,
		PlayerID:     r.PlayerID,
		PlayerName:   r.PlayerName,
		Kind:         kind,
		TotalTime:    r.TotalTime,
		BestLapTime:  r.BestLapTime,
		LapTimes:     jsonToTimes(r.LapTimes),
		SectorTimes:  jsonToTimes(r.SectorTimes),
		FrameCount:   r.FrameCount,
		RecordedDate: r.RecordedDate.UTC(),
		GameVersion:  r.GameVersion,
		PersonalBest: r.PersonalBest,
		PathLength:   r.PathLength,
		Trajectory:   r.Trajectory,
	}
}
