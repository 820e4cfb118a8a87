package dataproc

import (
	"strconv"
	"strings"
)

// CleanRules selects which cleanups to apply. Zero value disables
// everything; DefaultCleanRules matches what most callers want.
type CleanRules struct {
	NormalizeColumns bool              `json:"normalize_columns"`
	TrimStrings      bool              `json:"trim_strings"`
	DropEmptyRows    bool              `json:"drop_empty_rows"`
	DropColumns      []string          `json:"drop_columns"`
	Deduplicate      bool              `json:"deduplicate"`
	CoerceTypes      map[string]string `json:"coerce_types"`
}

func DefaultCleanRules() CleanRules {
	return CleanRules{
		NormalizeColumns: true,
		TrimStrings:      true,
		DropEmptyRows:    true,
		Deduplicate:      true,
	}
}

// CleanChanges summarizes what CleanTable did.
type CleanChanges struct {
	TrimmedStringCells int               `json:"trimmed_string_cells"`
	DroppedEmptyRows   int               `json:"dropped_empty_rows"`
	DroppedColumns     []string          `json:"dropped_columns"`
	DedupedRows        int               `json:"deduped_rows"`
	TypeCoercions      map[string]int    `json:"type_coercions"`
	RenamedColumns     map[string]string `json:"renamed_columns"`
}

// CleanTable applies rules to a header + rows table and returns the
// cleaned table plus a change summary. The input is not modified.
func CleanTable(header []string, rows [][]string, rules CleanRules) ([]string, [][]string, CleanChanges) {
	changes := CleanChanges{
		DroppedColumns: []string{},
		TypeCoercions:  map[string]int{},
		RenamedColumns: map[string]string{},
	}

	outHeader := append([]string(nil), header...)
	outRows := make([][]string, len(rows))
	for i, row := range rows {
		padded := make([]string, len(header))
		copy(padded, row)
		outRows[i] = padded
	}

	if rules.NormalizeColumns {
		for i, name := range outHeader {
			normalized := NormalizeColumnName(name)
			if normalized != name {
				changes.RenamedColumns[name] = normalized
				outHeader[i] = normalized
			}
		}
	}

	if len(rules.DropColumns) > 0 {
		drop := make(map[string]struct{}, len(rules.DropColumns))
		for _, c := range rules.DropColumns {
			drop[c] = struct{}{}
		}
		var keep []int
		for i, name := range outHeader {
			if _, ok := drop[name]; ok {
				changes.DroppedColumns = append(changes.DroppedColumns, name)
				continue
			}
			keep = append(keep, i)
		}
		outHeader = projectRow(outHeader, keep)
		for i, row := range outRows {
			outRows[i] = projectRow(row, keep)
		}
	}

	if rules.TrimStrings {
		for _, row := range outRows {
			for c, v := range row {
				trimmed := strings.TrimSpace(v)
				if trimmed != v {
					row[c] = trimmed
					changes.TrimmedStringCells++
				}
			}
		}
	}

	if rules.DropEmptyRows {
		var kept [][]string
		for _, row := range outRows {
			empty := true
			for _, v := range row {
				if strings.TrimSpace(v) != "" {
					empty = false
					break
				}
			}
			if empty {
				changes.DroppedEmptyRows++
				continue
			}
			kept = append(kept, row)
		}
		outRows = kept
	}

	if rules.Deduplicate {
		seen := make(map[string]struct{}, len(outRows))
		var kept [][]string
		for _, row := range outRows {
			key := strings.Join(row, "\x1f")
			if _, dup := seen[key]; dup {
				changes.DedupedRows++
				continue
			}
			seen[key] = struct{}{}
			kept = append(kept, row)
		}
		outRows = kept
	}

	if len(rules.CoerceTypes) > 0 {
		colIndex := make(map[string]int, len(outHeader))
		for i, name := range outHeader {
			colIndex[name] = i
		}
		for col, typ := range rules.CoerceTypes {
			ci, ok := colIndex[col]
			if !ok {
				continue
			}
			for _, row := range outRows {
				coerced, changed := coerceValue(row[ci], typ)
				if changed {
					row[ci] = coerced
					changes.TypeCoercions[col]++
				}
			}
		}
	}

	return outHeader, outRows, changes
}

// NormalizeColumnName lowercases, snake-cases and strips a header name
// down to [a-z0-9_].
func NormalizeColumnName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	var b strings.Builder
	for _, ch := range s {
		if ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		}
	}
	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return out
}

// coerceValue rewrites v into a canonical form for typ. Unparseable
// values are cleared, mirroring a coerce-to-NaN.
func coerceValue(v, typ string) (string, bool) {
	if strings.TrimSpace(v) == "" {
		return v, false
	}
	switch strings.ToLower(typ) {
	case "int":
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out := strconv.FormatInt(int64(f+0.5), 10)
			return out, out != v
		}
		return "", true
	case "float":
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out := strconv.FormatFloat(f, 'g', -1, 64)
			return out, out != v
		}
		return "", true
	case "bool":
		if b, ok := parseBool(v); ok {
			out := strconv.FormatBool(b)
			return out, out != v
		}
		return "", true
	}
	return v, false
}

func projectRow(row []string, keep []int) []string {
	out := make([]string, 0, len(keep))
	for _, i := range keep {
		out = append(out, row[i])
	}
	return out
}
