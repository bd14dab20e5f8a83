package dataset

import (
	"sort"
	"strconv"
	"strings"
)

// Table is one loaded dataset: an ordered header plus rows keyed by column.
type Table struct {
	Name    string
	File    string
	Columns []string
	Rows    []Row
}

// Row is one record keyed by column name.
type Row map[string]string

// Float parses a numeric cell; missing or malformed cells report ok=false.
func (r Row) Float(col string) (float64, bool) {
	raw, present := r[col]
	if !present || strings.TrimSpace(raw) == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Bool parses a truthy cell (1/true/yes, case-insensitive).
func (r Row) Bool(col string) bool {
	switch strings.ToLower(strings.TrimSpace(r[col])) {
	case "1", "true", "yes", "si", "sí":
		return true
	}
	return false
}

// HasColumn reports whether the table header carries col.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// DistinctSorted returns the sorted set of distinct values in col. This is
// the canonical period ordering: index slices address positions in this
// list, never raw row offsets.
func (t *Table) DistinctSorted(col string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.Rows {
		v := row[col]
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// FilterByValues returns the rows whose col value is in the allowed set,
// preserving row order.
func (t *Table) FilterByValues(col string, allowed map[string]bool) []Row {
	var out []Row
	for _, row := range t.Rows {
		if allowed[row[col]] {
			out = append(out, row)
		}
	}
	return out
}

// RiskColumns returns the per-risk criticality columns and the risk IDs they
// encode, excluding the global aggregate column.
func (t *Table) RiskColumns() map[string]string {
	out := make(map[string]string)
	for _, col := range t.Columns {
		if col == GlobalRiskCol {
			continue
		}
		if !strings.HasPrefix(col, RiskColPrefix) || !strings.HasSuffix(col, RiskColSuffix) {
			continue
		}
		riskID := strings.TrimSuffix(strings.TrimPrefix(col, RiskColPrefix), RiskColSuffix)
		if riskID == "" {
			continue
		}
		out[riskID] = col
	}
	return out
}
