// Package specsource loads column layouts for JRDB record types from JSON or
// YAML files.
//
// A layout file maps column names to byte ranges, in column order:
//
//	{
//	  "place_code": {"start_ind_b": 0, "end_ind_b": 2, "var_function": "", "var_type": "str"},
//	  "time":       {"start_ind_b": 143, "end_ind_b": 147, "var_function": "time_to_seconds_series", "var_type": "float"}
//	}
//
// The same shape is accepted as YAML. Key order in the file is the column order
// of the parsed table.
package specsource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/JonMunkholm/jrdbload/internal/core"
)

// Source supplies record specs by record type.
type Source interface {
	core.SpecLoader
	// Types lists the record types the source can load, sorted.
	Types() ([]string, error)
}

// columnEntry is one column as written in a layout file.
type columnEntry struct {
	Name        string `json:"name" yaml:"name"`
	StartByte   int    `json:"start_ind_b" yaml:"start_ind_b"`
	EndByte     int    `json:"end_ind_b" yaml:"end_ind_b"`
	VarFunction string `json:"var_function" yaml:"var_function"`
	VarType     string `json:"var_type" yaml:"var_type"`
}

func (e columnEntry) column() (core.ColumnSpec, error) {
	normalizer, err := core.ParseNormalizerName(e.VarFunction)
	if err != nil {
		return core.ColumnSpec{}, fmt.Errorf("column %q: %w", e.Name, err)
	}
	valueType, err := core.ParseValueType(e.VarType)
	if err != nil {
		return core.ColumnSpec{}, fmt.Errorf("column %q: %w", e.Name, err)
	}
	return core.ColumnSpec{
		Name:       e.Name,
		StartByte:  e.StartByte,
		EndByte:    e.EndByte,
		Normalizer: normalizer,
		Type:       valueType,
	}, nil
}

// decodeFunc parses a layout file into ordered column entries.
type decodeFunc func(r io.Reader) ([]columnEntry, error)

// decoders maps file extensions to layout parsers, in lookup priority order.
var decoders = []struct {
	ext    string
	decode decodeFunc
}{
	{ext: ".json", decode: decodeJSON},
	{ext: ".yaml", decode: decodeYAML},
	{ext: ".yml", decode: decodeYAML},
}

func decoderFor(ext string) (decodeFunc, bool) {
	for _, d := range decoders {
		if d.ext == ext {
			return d.decode, true
		}
	}
	return nil, false
}

// FS loads layouts named <TYPE>.json, <TYPE>.yaml or <TYPE>.yml from a file
// system. When several exist, the first in that order wins.
type FS struct {
	fsys fs.FS
	dir  string
}

// NewFS creates a source reading layouts from dir within fsys.
func NewFS(fsys fs.FS, dir string) *FS {
	if dir == "" {
		dir = "."
	}
	return &FS{fsys: fsys, dir: dir}
}

// Load implements core.SpecLoader.
func (s *FS) Load(recordType string) (core.RecordSpec, error) {
	for _, d := range decoders {
		name := path.Join(s.dir, recordType+d.ext)
		f, err := s.fsys.Open(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return core.RecordSpec{}, fmt.Errorf("open %s: %w", name, err)
		}

		entries, err := d.decode(f)
		f.Close()
		if err != nil {
			return core.RecordSpec{}, fmt.Errorf("parse %s: %w", name, err)
		}
		return buildSpec(recordType, entries)
	}

	return core.RecordSpec{}, &core.ConfigNotFoundError{RecordType: recordType, Err: fs.ErrNotExist}
}

// Types implements Source.
func (s *FS) Types() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := path.Ext(e.Name())
		if _, ok := decoderFor(ext); !ok {
			continue
		}
		seen[strings.TrimSuffix(e.Name(), ext)] = true
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}

func buildSpec(recordType string, entries []columnEntry) (core.RecordSpec, error) {
	spec := core.RecordSpec{Type: recordType, Columns: make([]core.ColumnSpec, 0, len(entries))}
	for _, e := range entries {
		col, err := e.column()
		if err != nil {
			return core.RecordSpec{}, fmt.Errorf("invalid spec %s: %w", recordType, err)
		}
		spec.Columns = append(spec.Columns, col)
	}
	return spec, nil
}

// Chain tries each source in turn, moving on only when a source has no
// layout for the type.
type Chain []Source

// Load implements core.SpecLoader.
func (c Chain) Load(recordType string) (core.RecordSpec, error) {
	for _, s := range c {
		spec, err := s.Load(recordType)
		if errors.Is(err, core.ErrConfigNotFound) {
			continue
		}
		return spec, err
	}
	return core.RecordSpec{}, &core.ConfigNotFoundError{RecordType: recordType}
}

// Types returns the union of all sources' types. Sources that cannot be
// listed are skipped.
func (c Chain) Types() ([]string, error) {
	seen := make(map[string]bool)
	var firstErr error
	for _, s := range c {
		types, err := s.Types()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, t := range types {
			seen[t] = true
		}
	}
	if len(seen) == 0 && firstErr != nil {
		return nil, firstErr
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}
