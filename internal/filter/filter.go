// Package filter narrows a table with an ordered list of typed predicates.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"finreports/internal/table"
	"finreports/internal/util"
)

type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGT          Operator = "gt"
	OpGTE         Operator = "gte"
	OpLT          Operator = "lt"
	OpLTE         Operator = "lte"
	OpBetween     Operator = "between"
	OpDateEq      Operator = "date_eq"
	OpDateBetween Operator = "date_between"
)

// Spec is one filter condition. Value and Value2 hold whatever the caller
// decoded from JSON: strings, numbers or nil.
type Spec struct {
	Column string   `json:"column"`
	Op     Operator `json:"op"`
	Value  any      `json:"value"`
	Value2 any      `json:"value2,omitempty"`
}

var (
	errMissingValue = errors.New("filter value missing")
	errSkip         = errors.New("operator does not apply")
)

// ParseSpecs decodes a JSON filter list. Malformed input yields no filters.
func ParseSpecs(raw string) []Spec {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var specs []Spec
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil
	}
	return specs
}

// Apply runs the specs in order, each narrowing the previous result. A spec
// naming a missing column, using an operator foreign to the column type, or
// failing to evaluate is skipped and the accumulated table is kept.
func Apply(t table.Table, specs []Spec) table.Table {
	out := t
	for _, spec := range specs {
		next, err := applyOne(out, spec)
		if err != nil {
			continue
		}
		out = next
	}
	return out
}

func applyOne(t table.Table, spec Spec) (table.Table, error) {
	col, ok := t.Column(spec.Column)
	if !ok {
		return t, errSkip
	}

	var keep func(table.Cell) (bool, error)
	var err error
	switch table.InferType(col) {
	case table.TypeDatetime:
		keep, err = datePredicate(spec)
	case table.TypeNumber:
		keep, err = numberPredicate(spec)
	default:
		keep, err = stringPredicate(spec)
	}
	if err != nil {
		return t, err
	}

	rows := make([]int, 0, len(col.Cells))
	for r, cell := range col.Cells {
		if !cell.Valid {
			continue
		}
		ok, err := keep(cell)
		if err != nil {
			return t, err
		}
		if ok {
			rows = append(rows, r)
		}
	}
	return t.SelectRows(rows), nil
}

func numberPredicate(spec Spec) (func(table.Cell) (bool, error), error) {
	switch spec.Op {
	case OpGT, OpGTE, OpLT, OpLTE:
		v, err := toFloat(spec.Value)
		if err != nil {
			return nil, err
		}
		return func(c table.Cell) (bool, error) {
			switch spec.Op {
			case OpGT:
				return c.Num > v, nil
			case OpGTE:
				return c.Num >= v, nil
			case OpLT:
				return c.Num < v, nil
			default:
				return c.Num <= v, nil
			}
		}, nil
	case OpBetween:
		lo, err := toFloat(spec.Value)
		if err != nil {
			return nil, err
		}
		hi, err := toFloat(spec.Value2)
		if err != nil {
			return nil, err
		}
		return func(c table.Cell) (bool, error) {
			return c.Num >= lo && c.Num <= hi, nil
		}, nil
	}
	return nil, errSkip
}

func stringPredicate(spec Spec) (func(table.Cell) (bool, error), error) {
	if spec.Op != OpEquals && spec.Op != OpContains {
		return nil, errSkip
	}
	want, err := toString(spec.Value)
	if err != nil {
		return nil, err
	}
	folder := cases.Fold()
	want = folder.String(want)
	return func(c table.Cell) (bool, error) {
		got := folder.String(c.Text)
		if spec.Op == OpEquals {
			return got == want, nil
		}
		return strings.Contains(got, want), nil
	}, nil
}

func datePredicate(spec Spec) (func(table.Cell) (bool, error), error) {
	switch spec.Op {
	case OpDateEq:
		s, err := toString(spec.Value)
		if err != nil {
			return nil, err
		}
		target, err := parseDateValue(s)
		if err != nil {
			return nil, err
		}
		return func(c table.Cell) (bool, error) {
			return sameDay(c.Time, target), nil
		}, nil
	case OpDateBetween:
		start, err := optionalDate(spec.Value)
		if err != nil {
			return nil, err
		}
		end, err := optionalDate(spec.Value2)
		if err != nil {
			return nil, err
		}
		if start == nil && end == nil {
			return nil, errMissingValue
		}
		if end != nil && isMidnight(*end) {
			e := end.Add(24*time.Hour - time.Nanosecond)
			end = &e
		}
		return func(c table.Cell) (bool, error) {
			if start != nil && c.Time.Before(*start) {
				return false, nil
			}
			if end != nil && c.Time.After(*end) {
				return false, nil
			}
			return true, nil
		}, nil
	}
	return nil, errSkip
}

func optionalDate(v any) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	s, err := toString(v)
	if err != nil {
		return nil, err
	}
	ts, err := parseDateValue(s)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func parseDateValue(s string) (time.Time, error) {
	if ts, ok := table.ParseDate(s); ok {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, errMissingValue
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, errMissingValue
		}
		if f, ok := util.ParseAmount(t); ok {
			return f, nil
		}
		return 0, fmt.Errorf("not a number: %q", t)
	}
	return 0, fmt.Errorf("unsupported filter value %T", v)
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", errMissingValue
	case string:
		if t == "" {
			return "", errMissingValue
		}
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return "", fmt.Errorf("unsupported filter value %T", v)
}
