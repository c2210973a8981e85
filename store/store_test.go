package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/bughunter/config"
	"github.com/use-agent/bughunter/models"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func record(id string, minutes int, sev ...models.Severity) *models.ScanRecord {
	bugs := make([]models.Bug, len(sev))
	bySeverity := map[string]int{}
	for i, s := range sev {
		bugs[i] = models.Bug{Type: models.BugConsoleError, Severity: s, Category: models.CategoryJavaScript}
		bySeverity[string(s)]++
	}
	return &models.ScanRecord{
		ID:        id,
		URL:       "https://example.com/" + id,
		CreatedAt: base.Add(time.Duration(minutes) * time.Minute),
		Status:    models.StatusCompleted,
		Result: &models.ScanResult{
			URL:  "https://example.com/" + id,
			Bugs: bugs,
			Summary: models.Summary{
				TotalBugs:  len(bugs),
				ByCategory: map[string]int{"JavaScript": len(bugs)},
				BySeverity: bySeverity,
			},
		},
	}
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, NewMemory(100))
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		s, err := OpenSQLite(t.TempDir())
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func TestStore_SaveAndGet(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := record("scan_a", 0, models.SeverityCritical, models.SeverityLow)
		rec.Analysis = &models.Analysis{QualityScore: 78, OverallAssessment: "ok"}

		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := s.Get(ctx, "scan_a")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.URL != rec.URL || !got.CreatedAt.Equal(rec.CreatedAt) || got.Status != models.StatusCompleted {
			t.Errorf("record = %+v", got)
		}
		if got.Result == nil || len(got.Result.Bugs) != 2 {
			t.Errorf("result = %+v", got.Result)
		}
		if got.Analysis == nil || got.Analysis.QualityScore != 78 {
			t.Errorf("analysis = %+v", got.Analysis)
		}

		if _, err := s.Get(ctx, "scan_missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_SaveReplaces(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := record("scan_a", 0, models.SeverityHigh)
		if err := s.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
		rec.Analysis = &models.Analysis{QualityScore: 90}
		if err := s.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}

		items, total, err := s.List(ctx, 10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if total != 1 || len(items) != 1 {
			t.Errorf("total = %d, items = %d", total, len(items))
		}
		got, _ := s.Get(ctx, "scan_a")
		if got.Analysis == nil || got.Analysis.QualityScore != 90 {
			t.Error("second Save should replace the record")
		}
	})
}

func TestStore_List(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, id := range []string{"scan_1", "scan_2", "scan_3", "scan_4"} {
			if err := s.Save(ctx, record(id, i, models.SeverityMedium)); err != nil {
				t.Fatal(err)
			}
		}

		tests := []struct {
			name          string
			limit, offset int
			want          []string
		}{
			{"first page newest first", 2, 0, []string{"scan_4", "scan_3"}},
			{"second page", 2, 2, []string{"scan_2", "scan_1"}},
			{"offset past end", 10, 9, nil},
			{"no limit", 0, 1, []string{"scan_3", "scan_2", "scan_1"}},
		}
		for _, tt := range tests {
			items, total, err := s.List(ctx, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if total != 4 {
				t.Errorf("%s: total = %d", tt.name, total)
			}
			var ids []string
			for _, it := range items {
				ids = append(ids, it.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
				t.Errorf("%s: ids = %v, want %v", tt.name, ids, tt.want)
			}
		}

		items, _, _ := s.List(ctx, 1, 0)
		if items[0].Summary.Total != 1 || items[0].Summary.Medium != 1 {
			t.Errorf("summary = %+v", items[0].Summary)
		}
	})
}

func TestStore_Stats(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		st, err := s.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if st.TotalScans != 0 || st.LastScan != nil || st.AvgBugsPerScan != 0 {
			t.Errorf("empty stats = %+v", st)
		}

		_ = s.Save(ctx, record("scan_1", 0, models.SeverityCritical, models.SeverityHigh))
		_ = s.Save(ctx, record("scan_2", 5, models.SeverityLow))
		_ = s.Save(ctx, record("scan_3", 2))
		failed := &models.ScanRecord{ID: "scan_4", URL: "https://down.example", CreatedAt: base.Add(time.Minute), Status: models.StatusFailed, Error: "dns"}
		_ = s.Save(ctx, failed)

		st, err = s.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if st.TotalScans != 4 || st.TotalBugs != 3 {
			t.Errorf("totals = %+v", st)
		}
		if st.AvgBugsPerScan != 0.75 {
			t.Errorf("AvgBugsPerScan = %v, want 0.75", st.AvgBugsPerScan)
		}
		b := st.SeverityBreakdown
		if b.Critical != 1 || b.High != 1 || b.Medium != 0 || b.Low != 1 || b.Total != 3 {
			t.Errorf("breakdown = %+v", b)
		}
		if st.LastScan == nil || !st.LastScan.Equal(base.Add(5*time.Minute)) {
			t.Errorf("LastScan = %v", st.LastScan)
		}
	})
}

func TestStore_Share(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_ = s.Save(ctx, record("scan_a", 0))

		shared, err := s.ToggleShare(ctx, "scan_a")
		if err != nil {
			t.Fatalf("ToggleShare() error = %v", err)
		}
		if !shared.IsPublic || shared.ShareToken == "" {
			t.Fatalf("after first toggle = %+v", shared)
		}
		token := shared.ShareToken

		got, err := s.GetShared(ctx, token)
		if err != nil || got.ID != "scan_a" {
			t.Errorf("GetShared() = %v, %v", got, err)
		}

		unshared, err := s.ToggleShare(ctx, "scan_a")
		if err != nil {
			t.Fatal(err)
		}
		if unshared.IsPublic || unshared.ShareToken != token {
			t.Errorf("after second toggle = %+v, token should be kept", unshared)
		}
		if _, err := s.GetShared(ctx, token); !errors.Is(err, ErrNotFound) {
			t.Errorf("private scan must not be shared: %v", err)
		}

		if _, err := s.ToggleShare(ctx, "scan_missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("ToggleShare(missing) error = %v", err)
		}
		if _, err := s.GetShared(ctx, ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetShared(\"\") error = %v", err)
		}
	})
}

func TestMemory_EvictsOldest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(2)
	_ = m.Save(ctx, record("scan_1", 0))
	_ = m.Save(ctx, record("scan_2", 1))
	_ = m.Save(ctx, record("scan_1", 0)) // update, no eviction
	_ = m.Save(ctx, record("scan_3", 2))

	if _, err := m.Get(ctx, "scan_1"); !errors.Is(err, ErrNotFound) {
		t.Error("oldest record should have been evicted")
	}
	for _, id := range []string{"scan_2", "scan_3"} {
		if _, err := m.Get(ctx, id); err != nil {
			t.Errorf("Get(%s) error = %v", id, err)
		}
	}
}

func TestSQLite_Reopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := OpenSQLite(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background(), record("scan_a", 0, models.SeverityHigh)); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if _, err := s2.Get(context.Background(), "scan_a"); err != nil {
		t.Errorf("record lost across reopen: %v", err)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	if _, err := Open(config.StoreConfig{Driver: "postgres"}); err == nil {
		t.Error("expected error for unknown driver")
	}
	s, err := Open(config.StoreConfig{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("Open(memory) = %T", s)
	}
}

func TestNewID(t *testing.T) {
	t.Parallel()

	a, b := NewID(), NewID()
	if !strings.HasPrefix(a, "scan_") || a == b {
		t.Errorf("NewID() = %q, %q", a, b)
	}
}
