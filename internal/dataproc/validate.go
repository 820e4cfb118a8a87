package dataproc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TypeRule constrains one column: a target type plus optional numeric
// bounds.
type TypeRule struct {
	Type string   `json:"type"`
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
}

type ValidationConfig struct {
	RequiredColumns   []string            `json:"required_columns"`
	NoEmptyHeaders    bool                `json:"no_empty_headers"`
	NoEmptyRows       bool                `json:"no_empty_rows"`
	NoEmptyCells      bool                `json:"no_empty_cells"`
	StripWhitespace   bool                `json:"strip_whitespace"`
	MaxRows           int                 `json:"max_rows"`
	MaxCols           int                 `json:"max_cols"`
	TypeRules         map[string]TypeRule `json:"type_rules"`
	RegexRules        map[string]string   `json:"regex_rules"`
	EnumRules         map[string][]string `json:"enum_rules"`
	UniqueRules       []string            `json:"unique_rules"`
	SampleErrorsLimit int                 `json:"sample_errors_limit"`
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		NoEmptyHeaders:    true,
		StripWhitespace:   true,
		MaxRows:           50000,
		MaxCols:           200,
		SampleErrorsLimit: 200,
	}
}

// ValidationError locates one failed check. Row is zero-based over data
// rows (the header is not a data row).
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Column  string `json:"column,omitempty"`
	Row     *int   `json:"row,omitempty"`
	Value   string `json:"value,omitempty"`
}

type ValidationStats struct {
	EmptyRows     int            `json:"empty_rows"`
	EmptyCells    int            `json:"empty_cells"`
	InvalidTypes  map[string]int `json:"invalid_types"`
	RegexFailures map[string]int `json:"regex_failures"`
	Duplicates    int            `json:"duplicates"`
	RangeFailures map[string]int `json:"range_failures"`
}

type ValidationReport struct {
	Valid       bool              `json:"valid"`
	RowCount    int               `json:"row_count"`
	Columns     []string          `json:"columns"`
	Errors      []ValidationError `json:"errors"`
	TotalErrors int               `json:"total_errors"`
	Stats       ValidationStats   `json:"stats"`
}

// ValidateTable checks a parsed CSV (header + data rows) against cfg.
// Errors beyond SampleErrorsLimit are counted but not sampled.
func ValidateTable(header []string, rows [][]string, cfg ValidationConfig) ValidationReport {
	report := ValidationReport{
		Valid:    true,
		RowCount: len(rows),
		Columns:  append([]string(nil), header...),
		Errors:   []ValidationError{},
		Stats: ValidationStats{
			InvalidTypes:  map[string]int{},
			RegexFailures: map[string]int{},
			RangeFailures: map[string]int{},
		},
	}

	addError := func(code, message, column string, row *int, value string) {
		report.Valid = false
		report.TotalErrors++
		limit := cfg.SampleErrorsLimit
		if limit <= 0 {
			limit = 200
		}
		if len(report.Errors) < limit {
			report.Errors = append(report.Errors, ValidationError{
				Code: code, Message: message, Column: column, Row: row, Value: value,
			})
		}
	}

	cell := func(row []string, col int) string {
		if col >= len(row) {
			return ""
		}
		v := row[col]
		if cfg.StripWhitespace {
			v = strings.TrimSpace(v)
		}
		return v
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}

	// Header checks
	if cfg.NoEmptyHeaders {
		for _, name := range header {
			if strings.TrimSpace(name) == "" {
				addError("EMPTY_HEADER", "Column header is empty", "", nil, "")
			}
		}
	}

	// Size bounds
	if cfg.MaxRows > 0 && len(rows) > cfg.MaxRows {
		addError("TOO_MANY_ROWS",
			fmt.Sprintf("Row count %d exceeds max_rows %d", len(rows), cfg.MaxRows), "", nil, strconv.Itoa(len(rows)))
	}
	if cfg.MaxCols > 0 && len(header) > cfg.MaxCols {
		addError("TOO_MANY_COLUMNS",
			fmt.Sprintf("Column count %d exceeds max_cols %d", len(header), cfg.MaxCols), "", nil, strconv.Itoa(len(header)))
	}

	// Required columns
	for _, col := range cfg.RequiredColumns {
		if _, ok := colIndex[col]; !ok {
			addError("MISSING_COLUMN", fmt.Sprintf("Missing required column '%s'", col), col, nil, "")
		}
	}

	// Empty rows and cells
	for r, row := range rows {
		r := r
		allEmpty := true
		for c := range header {
			if cell(row, c) != "" {
				allEmpty = false
			} else if cfg.NoEmptyCells {
				report.Stats.EmptyCells++
				addError("EMPTY_CELL", "Cell is empty", header[c], &r, "")
			}
		}
		if allEmpty && cfg.NoEmptyRows {
			report.Stats.EmptyRows++
			addError("EMPTY_ROW", "Row is empty", "", &r, "")
		}
	}

	// Type rules with numeric bounds
	for col, rule := range cfg.TypeRules {
		ci, ok := colIndex[col]
		if !ok {
			continue
		}
		for r, row := range rows {
			r := r
			v := cell(row, ci)
			if v == "" {
				continue
			}
			num, numOK := parseNumeric(v)
			switch strings.ToLower(rule.Type) {
			case "int":
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					report.Stats.InvalidTypes[col]++
					addError("INVALID_TYPE", fmt.Sprintf("Value is not an int in column '%s'", col), col, &r, v)
					continue
				}
			case "float":
				if !numOK {
					report.Stats.InvalidTypes[col]++
					addError("INVALID_TYPE", fmt.Sprintf("Value is not a float in column '%s'", col), col, &r, v)
					continue
				}
			case "bool":
				if _, ok := parseBool(v); !ok {
					report.Stats.InvalidTypes[col]++
					addError("INVALID_TYPE", fmt.Sprintf("Value is not a bool in column '%s'", col), col, &r, v)
					continue
				}
			case "date":
				if _, ok := parseDate(v); !ok {
					report.Stats.InvalidTypes[col]++
					addError("INVALID_TYPE", fmt.Sprintf("Value is not a date in column '%s'", col), col, &r, v)
					continue
				}
			case "string", "":
				// Always valid.
			}
			if numOK {
				if rule.Min != nil && num < *rule.Min {
					report.Stats.RangeFailures[col]++
					addError("OUT_OF_RANGE", fmt.Sprintf("Value below min %v in column '%s'", *rule.Min, col), col, &r, v)
				}
				if rule.Max != nil && num > *rule.Max {
					report.Stats.RangeFailures[col]++
					addError("OUT_OF_RANGE", fmt.Sprintf("Value above max %v in column '%s'", *rule.Max, col), col, &r, v)
				}
			}
		}
	}

	// Regex rules
	for col, pattern := range cfg.RegexRules {
		ci, ok := colIndex[col]
		if !ok {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			addError("BAD_REGEX", fmt.Sprintf("Invalid regex for column '%s': %v", col, err), col, nil, pattern)
			continue
		}
		for r, row := range rows {
			r := r
			v := cell(row, ci)
			if v == "" {
				continue
			}
			if !re.MatchString(v) {
				report.Stats.RegexFailures[col]++
				addError("REGEX_MISMATCH", fmt.Sprintf("Value does not match pattern for column '%s'", col), col, &r, v)
			}
		}
	}

	// Enum rules
	for col, allowed := range cfg.EnumRules {
		ci, ok := colIndex[col]
		if !ok {
			continue
		}
		set := make(map[string]struct{}, len(allowed))
		for _, a := range allowed {
			set[a] = struct{}{}
		}
		for r, row := range rows {
			r := r
			v := cell(row, ci)
			if v == "" {
				continue
			}
			if _, ok := set[v]; !ok {
				addError("ENUM_MISMATCH", fmt.Sprintf("Value not in allowed set for column '%s'", col), col, &r, v)
			}
		}
	}

	// Uniqueness
	for _, col := range cfg.UniqueRules {
		ci, ok := colIndex[col]
		if !ok {
			continue
		}
		seen := make(map[string]int)
		for r, row := range rows {
			r := r
			v := cell(row, ci)
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				report.Stats.Duplicates++
				addError("DUPLICATE_VALUE", fmt.Sprintf("Duplicate value in unique column '%s'", col), col, &r, v)
			} else {
				seen[v] = r
			}
		}
	}

	return report
}

func parseNumeric(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "t", "1", "yes", "y":
		return true, true
	case "false", "f", "0", "no", "n":
		return false, true
	}
	return false, false
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

func parseDate(v string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
