// Package params holds the FMB003 parameter dictionary: the mapping
// from 2-byte AVL IDs to names, widths and scaling. A default table
// ships embedded; deployments can override it with a TOML file.
package params

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/oleelnes/FMB003-server-public/internal/avl"
	"github.com/oleelnes/FMB003-server-public/internal/codec"
)

//go:embed fmb003.toml
var defaultTOML string

// Table is an immutable ID-to-descriptor dictionary. Safe for
// concurrent use.
type Table struct {
	byID map[uint16]avl.Parameter
}

var _ codec.Resolver = (*Table)(nil)

type tomlDoc struct {
	Param []tomlParam `toml:"param"`
}

type tomlParam struct {
	ID          int     `toml:"id"`
	Name        string  `toml:"name"`
	Bytes       int     `toml:"bytes"`
	Type        string  `toml:"type"`
	Min         float64 `toml:"min"`
	Max         float64 `toml:"max"`
	Multiplier  float64 `toml:"multiplier"`
	Unit        string  `toml:"unit"`
	Group       string  `toml:"group"`
	Description string  `toml:"description"`
}

// Default returns the embedded FMB003 dictionary. The embedded file
// is covered by the package tests, so a parse failure here is a
// programming error.
func Default() *Table {
	var doc tomlDoc
	if _, err := toml.Decode(defaultTOML, &doc); err != nil {
		panic("params: embedded dictionary: " + err.Error())
	}
	t, err := build(doc)
	if err != nil {
		panic("params: embedded dictionary: " + err.Error())
	}
	return t
}

// Load reads a dictionary override from a TOML file.
func Load(path string) (*Table, error) {
	var doc tomlDoc
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	return build(doc)
}

func build(doc tomlDoc) (*Table, error) {
	t := &Table{byID: make(map[uint16]avl.Parameter, len(doc.Param))}
	for _, p := range doc.Param {
		if p.ID < 0 || p.ID > 0xFFFF {
			return nil, fmt.Errorf("params: id %d out of range", p.ID)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("params: id %d has no name", p.ID)
		}
		id := uint16(p.ID)
		if _, dup := t.byID[id]; dup {
			return nil, fmt.Errorf("params: duplicate id %d", p.ID)
		}
		if p.Multiplier == 0 {
			p.Multiplier = 1
		}
		t.byID[id] = avl.Parameter{
			ID:          id,
			Name:        p.Name,
			Bytes:       p.Bytes,
			Type:        p.Type,
			Min:         p.Min,
			Max:         p.Max,
			Multiplier:  p.Multiplier,
			Unit:        p.Unit,
			Group:       p.Group,
			Description: p.Description,
		}
	}
	return t, nil
}

// Lookup returns the descriptor for id.
func (t *Table) Lookup(id uint16) (avl.Parameter, bool) {
	p, ok := t.byID[id]
	return p, ok
}

// Len reports the number of known parameters.
func (t *Table) Len() int { return len(t.byID) }

// All returns every descriptor ordered by ID.
func (t *Table) All() []avl.Parameter {
	out := make([]avl.Parameter, 0, len(t.byID))
	for _, p := range t.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
