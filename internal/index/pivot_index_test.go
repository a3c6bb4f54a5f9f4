package index

import (
	"reflect"
	"testing"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

func rec(id string, pivots ...models.Pivot) models.Record {
	return models.Record{
		ID:        id,
		Source:    models.SourceExternalSignal,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Pivots:    pivots,
	}
}

func TestBuildDeduplicatesRecordsAndPivots(t *testing.T) {
	user := models.Pivot{Type: models.PivotUserID, Value: "emp-1"}
	records := []models.Record{
		rec("a", user, user),
		rec("a", user),
		rec("b", user),
		{ID: "", Pivots: []models.Pivot{user}},
	}

	idx := Build(records)
	if idx.Size() != 2 {
		t.Fatalf("expected 2 indexed records, got %d", idx.Size())
	}

	var bucketIDs []string
	idx.Buckets(func(pivot models.Pivot, ids []string) {
		if pivot != user {
			t.Fatalf("unexpected bucket %s", pivot.Key())
		}
		bucketIDs = ids
	})
	if !reflect.DeepEqual(bucketIDs, []string{"a", "b"}) {
		t.Fatalf("unexpected bucket members: %v", bucketIDs)
	}
}

func TestBucketsSkipsSingletons(t *testing.T) {
	idx := Build([]models.Record{
		rec("a", models.Pivot{Type: models.PivotDomain, Value: "one.example"}),
		rec("b", models.Pivot{Type: models.PivotDomain, Value: "two.example"}),
	})

	called := 0
	idx.Buckets(func(models.Pivot, []string) { called++ })
	if called != 0 {
		t.Fatalf("expected no shared buckets, got %d", called)
	}
}

func TestSharedPivots(t *testing.T) {
	user := models.Pivot{Type: models.PivotUserID, Value: "emp-1"}
	domain := models.Pivot{Type: models.PivotDomain, Value: "corp.example"}
	vendor := models.Pivot{Type: models.PivotVendorID, Value: "sc-004"}

	idx := Build([]models.Record{
		rec("a", user, domain),
		rec("b", domain, user, vendor),
	})

	shared := idx.SharedPivots("a", "b")
	want := []models.Pivot{domain, user}
	if !reflect.DeepEqual(shared, want) {
		t.Fatalf("shared pivots = %v, want %v", shared, want)
	}

	if got := idx.SharedPivots("a", "missing"); got != nil {
		t.Fatalf("expected nil for unknown record, got %v", got)
	}
}

func TestOrphansTracked(t *testing.T) {
	idx := Build([]models.Record{
		rec("lonely"),
		rec("linked", models.Pivot{Type: models.PivotUserID, Value: "emp-2"}),
	})

	if got := idx.Orphans(); !reflect.DeepEqual(got, []string{"lonely"}) {
		t.Fatalf("orphans = %v", got)
	}
}
