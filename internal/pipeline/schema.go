package pipeline

import (
	"fmt"
	"strings"
)

// SourceSchema names the columns of one source that feed the pipeline and the
// shared column its amount becomes.
type SourceSchema struct {
	Name         string // short source name used in errors and logs
	EntityColumn string // renamed to Supplier
	DateColumn   string // renamed to Month
	AmountColumn string // renamed to Target
	Target       string // ColumnRegistered or ColumnBilled
}

// columnIndex holds the positions of the schema columns in a loaded table.
type columnIndex struct {
	entity int
	date   int
	amount int
}

// Check reports configuration mistakes in s itself.
func (s SourceSchema) Check() error {
	var missing []string
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "Name")
	}
	if strings.TrimSpace(s.EntityColumn) == "" {
		missing = append(missing, "EntityColumn")
	}
	if strings.TrimSpace(s.DateColumn) == "" {
		missing = append(missing, "DateColumn")
	}
	if strings.TrimSpace(s.AmountColumn) == "" {
		missing = append(missing, "AmountColumn")
	}
	if len(missing) > 0 {
		return fmt.Errorf("source schema %q: empty fields %s", s.Name, strings.Join(missing, ", "))
	}
	if s.Target != ColumnRegistered && s.Target != ColumnBilled {
		return fmt.Errorf("source schema %q: target %q must be %q or %q", s.Name, s.Target, ColumnRegistered, ColumnBilled)
	}
	return nil
}

// resolve finds every schema column in t, failing with a SchemaError that
// lists all missing columns at once.
func (s SourceSchema) resolve(t *Table) (columnIndex, error) {
	if err := s.Check(); err != nil {
		return columnIndex{}, err
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := t.Column(name)
		if !ok {
			missing = append(missing, name)
		}
		return i
	}

	idx := columnIndex{
		entity: lookup(s.EntityColumn),
		date:   lookup(s.DateColumn),
		amount: lookup(s.AmountColumn),
	}
	if len(missing) > 0 {
		return columnIndex{}, &SchemaError{Source: s.Name, Missing: missing, Header: t.Header}
	}
	return idx, nil
}
