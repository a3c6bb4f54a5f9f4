// Package index builds the typed-entity lookup that candidate generation
// pivots on. Only records co-occurring under some pivot key ever become a
// candidate pair, which keeps correlation well under full O(n²) comparison.
package index

import (
	"sort"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

// PivotIndex maps each (pivot type, value) to the ids of the records
// carrying it. The index is read-only once built.
type PivotIndex struct {
	buckets map[models.Pivot][]string
	records map[string]models.Record
	// orphans are records with no pivots; they never join an edge but are
	// still scored individually.
	orphans []string
}

// Build indexes the record set for one correlation run. Records without an
// id are ignored; records without pivots are tracked as orphans.
func Build(records []models.Record) *PivotIndex {
	idx := &PivotIndex{
		buckets: make(map[models.Pivot][]string, len(records)),
		records: make(map[string]models.Record, len(records)),
	}
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, dup := idx.records[rec.ID]; dup {
			continue
		}
		idx.records[rec.ID] = rec
		if len(rec.Pivots) == 0 {
			idx.orphans = append(idx.orphans, rec.ID)
			continue
		}
		seen := make(map[models.Pivot]struct{}, len(rec.Pivots))
		for _, pivot := range rec.Pivots {
			if pivot.Value == "" {
				continue
			}
			if _, ok := seen[pivot]; ok {
				continue
			}
			seen[pivot] = struct{}{}
			idx.buckets[pivot] = append(idx.buckets[pivot], rec.ID)
		}
	}
	for pivot := range idx.buckets {
		sort.Strings(idx.buckets[pivot])
	}
	sort.Strings(idx.orphans)
	return idx
}

// Record returns the indexed record by id.
func (idx *PivotIndex) Record(id string) (models.Record, bool) {
	rec, ok := idx.records[id]
	return rec, ok
}

// Size returns the number of indexed records.
func (idx *PivotIndex) Size() int { return len(idx.records) }

// Orphans returns ids of records carrying no pivots, sorted.
func (idx *PivotIndex) Orphans() []string {
	return append([]string(nil), idx.orphans...)
}

// SharedPivots returns the pivots carried by both records, sorted by key.
func (idx *PivotIndex) SharedPivots(idA, idB string) []models.Pivot {
	recA, okA := idx.records[idA]
	recB, okB := idx.records[idB]
	if !okA || !okB {
		return nil
	}
	shared := make([]models.Pivot, 0, 2)
	seen := make(map[models.Pivot]struct{}, 2)
	for _, pivot := range recA.Pivots {
		if _, dup := seen[pivot]; dup {
			continue
		}
		if recB.HasPivot(pivot) {
			seen[pivot] = struct{}{}
			shared = append(shared, pivot)
		}
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i].Key() < shared[j].Key() })
	return shared
}

// Buckets walks every pivot bucket holding at least two records, in a
// deterministic pivot-key order.
func (idx *PivotIndex) Buckets(fn func(pivot models.Pivot, ids []string)) {
	keys := make([]models.Pivot, 0, len(idx.buckets))
	for pivot, ids := range idx.buckets {
		if len(ids) < 2 {
			continue
		}
		keys = append(keys, pivot)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Key() < keys[j].Key() })
	for _, pivot := range keys {
		fn(pivot, idx.buckets[pivot])
	}
}
