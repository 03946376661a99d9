// Package data collects the values recorded during a session into rows and
// writes them to the participant's data file.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/trials"
)

type Row map[string]any

// Experiment accumulates values for the current entry until NextEntry commits
// them as a row. Loops registered with AddLoop contribute their counters and
// condition values to every row committed while they are unfinished.
type Experiment struct {
	Name           string
	FileName       string
	FieldSeparator rune

	info    []trials.Attr
	current Row
	order   []string
	rows    []Row
	columns []string
	seen    map[string]bool
	loops   []*trials.Handler
}

func New(name string) *Experiment {
	return &Experiment{
		Name:           name,
		FieldSeparator: '\t',
		current:        Row{},
		seen:           map[string]bool{},
	}
}

// SetInfo sets a session-level value appended to every row.
func (e *Experiment) SetInfo(key string, value any) {
	for i := range e.info {
		if e.info[i].Key == key {
			e.info[i].Value = value
			return
		}
	}
	e.info = append(e.info, trials.Attr{Key: key, Value: value})
}

func (e *Experiment) Info() []trials.Attr { return e.info }

func (e *Experiment) AddData(key string, value any) {
	if _, ok := e.current[key]; !ok {
		e.order = append(e.order, key)
	}
	e.current[key] = value
}

// HasPending reports whether the current entry holds data not yet committed.
func (e *Experiment) HasPending() bool {
	return len(e.current) > 0
}

func (e *Experiment) NextEntry(snaps ...*trials.Snapshot) {
	for _, s := range snaps {
		if s == nil {
			continue
		}
		e.addAttrs(s.Attributes())
	}
	for _, l := range e.loops {
		if cur := l.Current(); cur != nil {
			e.addAttrs(cur.Attributes())
		}
	}
	e.addAttrs(e.info)

	for _, k := range e.order {
		if !e.seen[k] {
			e.seen[k] = true
			e.columns = append(e.columns, k)
		}
	}
	e.rows = append(e.rows, e.current)
	e.current = Row{}
	e.order = nil
}

func (e *Experiment) addAttrs(attrs []trials.Attr) {
	for _, a := range attrs {
		e.AddData(a.Key, a.Value)
	}
}

func (e *Experiment) AddLoop(h *trials.Handler) {
	e.loops = append(e.loops, h)
}

func (e *Experiment) RemoveLoop(h *trials.Handler) {
	for i, l := range e.loops {
		if l == h {
			e.loops = append(e.loops[:i], e.loops[i+1:]...)
			return
		}
	}
}

// CurrentLoop returns the innermost unfinished loop, or nil when data goes
// straight to the experiment.
func (e *Experiment) CurrentLoop() *trials.Handler {
	if len(e.loops) == 0 {
		return nil
	}
	return e.loops[len(e.loops)-1]
}

func (e *Experiment) Rows() []Row { return e.rows }

func (e *Experiment) Columns() []string { return e.columns }

func (e *Experiment) Save(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = e.FieldSeparator
	if err := cw.Write(e.columns); err != nil {
		return err
	}
	record := make([]string, len(e.columns))
	for _, row := range e.rows {
		for i, c := range e.columns {
			record[i] = Format(row[c])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Path is the data file that SaveFile writes.
func (e *Experiment) Path() string {
	ext := ".csv"
	if e.FieldSeparator == '\t' {
		ext = ".tsv"
	}
	return e.FileName + ext
}

// SaveFile writes the data file through a temporary file so a crash never
// leaves a truncated file behind.
func (e *Experiment) SaveFile() (string, error) {
	if e.FileName == "" {
		return "", fmt.Errorf("data: no file name set")
	}
	path := e.Path()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if err := e.Save(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// Format renders a recorded value as a data-file cell. Durations are written
// in seconds.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Duration:
		return strconv.FormatFloat(x.Seconds(), 'f', -1, 64)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
