package almanac

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// Dataset is the local festival fallback: a flat comma-separated file of
// "MM-DD,name" pairs matched by month and day. It is the last data source
// in the resolver chain, consulted when neither the lunar calendar nor the
// remote service produced a name.
type Dataset struct {
	byMonthDay map[string]string
}

// LoadDataset reads the festival file at path. A missing file is not an
// error; it yields an empty dataset (every lookup misses). Blank lines and
// lines without at least two fields are skipped.
func LoadDataset(path string) (*Dataset, error) {
	ds := &Dataset{byMonthDay: make(map[string]string)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ds, nil
		}
		return nil, fmt.Errorf("opening festival dataset %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		if key == "" || name == "" {
			continue
		}
		// First entry for a date wins, matching file order.
		if _, exists := ds.byMonthDay[key]; !exists {
			ds.byMonthDay[key] = name
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading festival dataset %s: %w", path, err)
	}

	return ds, nil
}

// Lookup returns the festival name recorded for the date's month-day, or
// "" when the dataset has no entry.
func (d *Dataset) Lookup(date time.Time) string {
	return d.byMonthDay[monthDayKey(date)]
}

// Len reports the number of loaded entries.
func (d *Dataset) Len() int {
	return len(d.byMonthDay)
}

// monthDayKey formats a date as the "MM-DD" key the dataset file uses.
func monthDayKey(date time.Time) string {
	return date.Format("01-02")
}
