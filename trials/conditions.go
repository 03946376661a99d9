package trials

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var ErrNoConditions = errors.New("trials: condition file has no rows")

// Condition is one row of a condition file, keyed by column name.
type Condition map[string]string

func (c Condition) String(key string) string {
	return c[key]
}

func (c Condition) Float(key string) (float64, error) {
	v, ok := c[key]
	if !ok {
		return 0, fmt.Errorf("no column %q", key)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", key, err)
	}
	return f, nil
}

type Conditions struct {
	Columns []string
	Rows    []Condition
}

func LoadConditions(path string) (*Conditions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conds, err := ParseConditions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return conds, nil
}

func ParseConditions(r io.Reader) (*Conditions, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrNoConditions
	}

	header := records[0]
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if cols[i] == "" {
			return nil, fmt.Errorf("line 1: empty column name at position %d", i+1)
		}
	}

	conds := &Conditions{Columns: cols}
	for i, record := range records[1:] {
		if len(record) != len(cols) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", i+2, len(cols), len(record))
		}
		row := make(Condition, len(cols))
		for j, c := range cols {
			row[c] = record[j]
		}
		conds.Rows = append(conds.Rows, row)
	}
	return conds, nil
}
