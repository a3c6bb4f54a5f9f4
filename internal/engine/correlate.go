package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/index"
	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

// Correlator groups records into investigation threads by unioning
// pivot-sharing edges that pass the temporal gate.
type Correlator struct {
	logger        *slog.Logger
	tightTemporal time.Duration
}

// NewCorrelator constructs a Correlator. tightTemporal is the stricter
// threshold behind the tight_temporal reason code.
func NewCorrelator(logger *slog.Logger, tightTemporal time.Duration) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	if tightTemporal <= 0 {
		tightTemporal = time.Hour
	}
	return &Correlator{logger: logger, tightTemporal: tightTemporal}
}

type pairKey struct {
	a, b string // a < b
}

func makePairKey(x, y string) pairKey {
	if x < y {
		return pairKey{a: x, b: y}
	}
	return pairKey{a: y, b: x}
}

// Correlate builds the thread set for one run. Records lacking a timestamp
// never join an edge; components smaller than minClusterSize are dropped.
// Output is fully deterministic for a fixed record set and parameters.
func (c *Correlator) Correlate(idx *index.PivotIndex, req models.CorrelateRequest) []models.Thread {
	minSize := req.MinClusterSize
	if minSize < 2 {
		minSize = 2
	}
	maxGap := time.Duration(req.WindowHours * float64(time.Hour))

	uf := newUnionFind()
	edges := make(map[pairKey]models.PairEvidence)

	idx.Buckets(func(pivot models.Pivot, ids []string) {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				key := makePairKey(ids[i], ids[j])
				if _, done := edges[key]; done {
					continue
				}
				recA, okA := idx.Record(key.a)
				recB, okB := idx.Record(key.b)
				if !okA || !okB {
					continue
				}
				if recA.Timestamp.IsZero() || recB.Timestamp.IsZero() {
					continue
				}
				gap := recA.Timestamp.Sub(recB.Timestamp)
				if gap < 0 {
					gap = -gap
				}
				if maxGap > 0 && gap > maxGap {
					continue
				}
				shared := idx.SharedPivots(key.a, key.b)
				if len(shared) == 0 {
					continue
				}
				edges[key] = BuildPairEvidence(recA, recB, shared, c.tightTemporal)
				uf.union(key.a, key.b)
			}
		}
	})

	components := make(map[string][]string)
	for _, id := range uf.members() {
		root := uf.find(id)
		components[root] = append(components[root], id)
	}

	roots := make([]string, 0, len(components))
	for root, ids := range components {
		if len(ids) >= minSize {
			roots = append(roots, root)
		}
	}
	sort.Strings(roots)

	threads := make([]models.Thread, 0, len(roots))
	for _, root := range roots {
		thread := c.assembleThread(idx, components[root], edges, req)
		threads = append(threads, thread)
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].ID < threads[j].ID })

	c.logger.Debug("correlation pass complete",
		slog.Int("records", idx.Size()),
		slog.Int("edges", len(edges)),
		slog.Int("threads", len(threads)))
	return threads
}

func (c *Correlator) assembleThread(idx *index.PivotIndex, memberIDs []string, edges map[pairKey]models.PairEvidence, req models.CorrelateRequest) models.Thread {
	members := make([]models.Record, 0, len(memberIDs))
	for _, id := range memberIDs {
		if rec, ok := idx.Record(id); ok {
			members = append(members, rec)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Timestamp.Equal(members[j].Timestamp) {
			return members[i].ID < members[j].ID
		}
		return members[i].Timestamp.Before(members[j].Timestamp)
	})

	ordered := make([]string, 0, len(members))
	windowStart, windowEnd := members[0].Timestamp, members[0].Timestamp
	sourceSet := make(map[models.SourceType]struct{}, 3)
	pivotCounts := make(map[models.Pivot]int)
	for _, rec := range members {
		ordered = append(ordered, rec.ID)
		if rec.Timestamp.Before(windowStart) {
			windowStart = rec.Timestamp
		}
		if rec.Timestamp.After(windowEnd) {
			windowEnd = rec.Timestamp
		}
		sourceSet[rec.Source] = struct{}{}
		seen := make(map[models.Pivot]struct{}, len(rec.Pivots))
		for _, pivot := range rec.Pivots {
			if _, dup := seen[pivot]; dup {
				continue
			}
			seen[pivot] = struct{}{}
			pivotCounts[pivot]++
		}
	}

	sharedPivots := make([]models.Pivot, 0, len(pivotCounts))
	for pivot, count := range pivotCounts {
		if count >= 2 {
			sharedPivots = append(sharedPivots, pivot)
		}
	}
	sort.Slice(sharedPivots, func(i, j int) bool { return sharedPivots[i].Key() < sharedPivots[j].Key() })

	sourceTypes := make([]models.SourceType, 0, len(sourceSet))
	for src := range sourceSet {
		sourceTypes = append(sourceTypes, src)
	}
	sort.Slice(sourceTypes, func(i, j int) bool { return sourceTypes[i] < sourceTypes[j] })

	inThread := make(map[string]struct{}, len(ordered))
	for _, id := range ordered {
		inThread[id] = struct{}{}
	}
	evidence := make([]models.PairEvidence, 0, len(ordered))
	codeSet := make(map[models.ReasonCode]struct{})
	edgeKeys := make([]pairKey, 0, len(edges))
	for key := range edges {
		if _, okA := inThread[key.a]; !okA {
			continue
		}
		if _, okB := inThread[key.b]; !okB {
			continue
		}
		edgeKeys = append(edgeKeys, key)
	}
	sort.Slice(edgeKeys, func(i, j int) bool {
		if edgeKeys[i].a == edgeKeys[j].a {
			return edgeKeys[i].b < edgeKeys[j].b
		}
		return edgeKeys[i].a < edgeKeys[j].a
	})
	for _, key := range edgeKeys {
		ev := edges[key]
		evidence = append(evidence, ev)
		for _, code := range ev.ReasonCodes {
			codeSet[code] = struct{}{}
		}
	}
	codes := make([]models.ReasonCode, 0, len(codeSet))
	for code := range codeSet {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	return models.Thread{
		ID:           threadID(ordered, req),
		Label:        threadLabel(sharedPivots, ordered),
		Members:      ordered,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		SourceTypes:  sourceTypes,
		SharedPivots: sharedPivots,
		ReasonCodes:  codes,
		Evidence:     evidence,
	}
}

// threadID derives a stable id from the sorted member set and the window
// parameters, so reruns over unchanged data reproduce the same ids.
func threadID(members []string, req models.CorrelateRequest) string {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	h := sha256.New()
	for _, id := range sorted {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	fmt.Fprintf(h, "%s|%s|%g|%d",
		req.WindowStart.UTC().Format(time.RFC3339),
		req.WindowEnd.UTC().Format(time.RFC3339),
		req.WindowHours,
		req.MinClusterSize)
	return "soi-" + hex.EncodeToString(h.Sum(nil))[:12]
}

// threadLabel picks the most analyst-recognisable shared pivot as the label.
var labelPreference = []models.PivotType{
	models.PivotHandle,
	models.PivotUserID,
	models.PivotVendorID,
	models.PivotDomain,
	models.PivotEmail,
}

func threadLabel(shared []models.Pivot, members []string) string {
	for _, want := range labelPreference {
		for _, pivot := range shared {
			if pivot.Type == want {
				return pivot.Key()
			}
		}
	}
	if len(shared) > 0 {
		return shared[0].Key()
	}
	return fmt.Sprintf("thread of %d records", len(members))
}

// unionFind is a path-compressing disjoint-set over record ids.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string), rank: make(map[string]int)}
}

func (u *unionFind) find(id string) string {
	if _, ok := u.parent[id]; !ok {
		u.parent[id] = id
	}
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[id] != root {
		u.parent[id], id = root, u.parent[id]
	}
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

func (u *unionFind) members() []string {
	ids := make([]string, 0, len(u.parent))
	for id := range u.parent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
