package almanac

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "festivals.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}
	return path
}

func TestLoadDataset_MissingFileIsEmpty(t *testing.T) {
	ds, err := LoadDataset(filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
	if ds.Len() != 0 {
		t.Errorf("expected empty dataset, got %d entries", ds.Len())
	}
}

func TestLoadDataset_LookupByMonthDay(t *testing.T) {
	path := writeDataset(t, "03-08,妇女节\n05-01,劳动节\n\nmalformed-line\n")

	ds, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", ds.Len())
	}

	// Year is irrelevant; only month-day matches.
	if got := ds.Lookup(time.Date(2031, 3, 8, 0, 0, 0, 0, time.UTC)); got != "妇女节" {
		t.Errorf("Lookup(03-08) = %q, want 妇女节", got)
	}
	if got := ds.Lookup(time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)); got != "" {
		t.Errorf("Lookup(07-15) = %q, want no match", got)
	}
}

func TestLoadDataset_FirstEntryWins(t *testing.T) {
	path := writeDataset(t, "05-01,劳动节\n05-01,重复条目\n")

	ds, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ds.Lookup(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)); got != "劳动节" {
		t.Errorf("Lookup(05-01) = %q, want first entry", got)
	}
}
