package codec

import (
	"fmt"
	"sort"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
)

const maxIndexEntries = 1 << 20

// Index is the store's table of known record ids and per-track personal bests.
type Index struct {
	IDs           []uuid.UUID
	PersonalBests []core.PersonalBest
}

// EncodeIndex serializes idx. Personal bests are written ordered by track so
// equal indexes produce equal bytes.
func (c *Codec) EncodeIndex(idx Index) ([]byte, error) {
	w := writer{buf: make([]byte, 0, 12+len(idx.IDs)*16+len(idx.PersonalBests)*32)}
	w.u32(c.version)

	w.u32(uint32(len(idx.IDs)))
	for _, id := range idx.IDs {
		w.raw(id[:])
	}

	bests := append([]core.PersonalBest(nil), idx.PersonalBests...)
	sort.Slice(bests, func(i, j int) bool { return bests[i].TrackID < bests[j].TrackID })

	w.u32(uint32(len(bests)))
	for _, pb := range bests {
		if err := w.str(pb.TrackID); err != nil {
			return nil, err
		}
		w.raw(pb.RecordID[:])
		w.f32(pb.BestTime)
	}
	return w.buf, nil
}

// DecodeIndex parses an index written by EncodeIndex.
func (c *Codec) DecodeIndex(data []byte) (Index, error) {
	r := reader{buf: data}

	version := r.u32()
	if r.err != nil {
		return Index{}, fmt.Errorf("decode index: %w", r.err)
	}
	if version != c.version {
		return Index{}, fmt.Errorf("decode index: got version %d, want %d: %w", version, c.version, ErrVersionMismatch)
	}

	var idx Index
	if n := r.count(maxIndexEntries, 16); n > 0 {
		idx.IDs = make([]uuid.UUID, n)
		for i := range idx.IDs {
			idx.IDs[i] = r.uuid()
		}
	}

	// Each entry is at least a length prefix, an id and a time.
	if n := r.count(maxIndexEntries, 4+16+4); n > 0 {
		idx.PersonalBests = make([]core.PersonalBest, n)
		for i := range idx.PersonalBests {
			idx.PersonalBests[i] = core.PersonalBest{
				TrackID:  r.str(),
				RecordID: r.uuid(),
				BestTime: r.f32(),
			}
		}
	}

	if r.err == nil && r.off != len(r.buf) {
		r.fail(fmt.Errorf("%d trailing bytes: %w", len(r.buf)-r.off, ErrMalformed))
	}
	if r.err != nil {
		return Index{}, fmt.Errorf("decode index: %w", r.err)
	}
	return idx, nil
}
