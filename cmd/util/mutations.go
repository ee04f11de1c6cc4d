package util

import (
	"os"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// Mutation is one cell of a YAML mutation file.
//
// Example file:
//
//	table: users
//	cells:
//	  - row: alice
//	    family: info
//	    qualifier: email
//	    value: alice@example.com
//	  - row: bob
//	    op: delete_row
//	    timestamp: 1700000000000000000
type Mutation struct {
	Row       string `yaml:"row"`
	Family    string `yaml:"family,omitempty"`
	Qualifier string `yaml:"qualifier,omitempty"`
	// Timestamp in nanoseconds, a missing timestamp is assigned by the server
	Timestamp *int64 `yaml:"timestamp,omitempty"`
	// Op is one of insert (default), delete_row, delete_cf, delete_cell
	Op    string `yaml:"op,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// MutationFile is a list of mutations, optionally for a named table
type MutationFile struct {
	Table string     `yaml:"table,omitempty"`
	Cells []Mutation `yaml:"cells"`
}

// Cell converts the mutation to a cell
func (m Mutation) Cell() (cells.Cell, error) {
	flag, err := cells.ParseKeyFlag(m.Op)
	if err != nil {
		return cells.Cell{}, err
	}
	if err := cells.ValidateKey(m.Row, m.Family, m.Qualifier); err != nil {
		return cells.Cell{}, err
	}

	ts := cells.TimestampAutoAssign
	if m.Timestamp != nil {
		ts = *m.Timestamp
	}

	c := cells.Cell{
		Key: cells.Key{
			Row:             m.Row,
			ColumnFamily:    m.Family,
			ColumnQualifier: m.Qualifier,
			Timestamp:       ts,
			Flag:            flag,
		},
	}
	if flag == cells.KeyFlagInsert && m.Value != "" {
		c.Value = []byte(m.Value)
	}
	return c, nil
}

// MutationFromCell converts a decoded cell back to a mutation
func MutationFromCell(c cells.Cell) Mutation {
	m := Mutation{
		Row:       c.Key.Row,
		Family:    c.Key.ColumnFamily,
		Qualifier: c.Key.ColumnQualifier,
		Value:     string(c.Value),
	}
	if c.Key.Flag != cells.KeyFlagInsert {
		m.Op = c.Key.Flag.String()
	}
	if !cells.IsSentinel(c.Key.Timestamp) {
		ts := c.Key.Timestamp
		m.Timestamp = &ts
	}
	return m
}

// ToCells converts all mutations of the file
func (f *MutationFile) ToCells() ([]cells.Cell, error) {
	out := make([]cells.Cell, 0, len(f.Cells))
	for i, m := range f.Cells {
		c, err := m.Cell()
		if err != nil {
			return nil, errors.Wrapf(err, "cell %d (row %q)", i, m.Row)
		}
		out = append(out, c)
	}
	return out, nil
}

// ReadMutationFile reads a YAML mutation file
func ReadMutationFile(path string) (*MutationFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return ParseMutations(data)
}

// ParseMutations parses the content of a YAML mutation file
func ParseMutations(data []byte) (*MutationFile, error) {
	var f MutationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "invalid mutation file")
	}
	return &f, nil
}

// MarshalMutations renders cells as a YAML mutation file
func MarshalMutations(table string, cs []cells.Cell) ([]byte, error) {
	f := MutationFile{Table: table, Cells: make([]Mutation, 0, len(cs))}
	for _, c := range cs {
		f.Cells = append(f.Cells, MutationFromCell(c))
	}
	return yaml.Marshal(f)
}
