package specsource

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/JonMunkholm/jrdbload/internal/core"
)

const jsonLayout = `{
  "zeta":  {"start_ind_b": 0, "end_ind_b": 2, "var_function": "", "var_type": "str"},
  "alpha": {"start_ind_b": 2, "end_ind_b": 5, "var_function": "str_to_float_series", "var_type": "float"},
  "mid":   {"start_ind_b": 5, "end_ind_b": 9, "var_function": "time_to_seconds", "var_type": "float"}
}`

const yamlMapping = `
zeta:
  start_ind_b: 0
  end_ind_b: 2
  var_type: str
alpha:
  start_ind_b: 2
  end_ind_b: 5
  var_function: str_to_float_series
  var_type: float
mid:
  start_ind_b: 5
  end_ind_b: 9
  var_function: time_to_seconds
  var_type: float
`

const yamlSequence = `
- name: zeta
  start_ind_b: 0
  end_ind_b: 2
  var_type: str
- name: alpha
  start_ind_b: 2
  end_ind_b: 5
  var_function: str_to_float
  var_type: float
- name: mid
  start_ind_b: 5
  end_ind_b: 9
  var_function: time_to_seconds_series
  var_type: float
`

func wantColumns() []core.ColumnSpec {
	return []core.ColumnSpec{
		{Name: "zeta", StartByte: 0, EndByte: 2, Type: core.TypeText},
		{Name: "alpha", StartByte: 2, EndByte: 5, Normalizer: core.NormalizeStrToFloat, Type: core.TypeFloat},
		{Name: "mid", StartByte: 5, EndByte: 9, Normalizer: core.NormalizeTimeToSeconds, Type: core.TypeFloat},
	}
}

// ----------------------------------------------------------------------------
// Load Tests
// ----------------------------------------------------------------------------

func TestFS_Load(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "json keeps key order", file: "TST.json", body: jsonLayout},
		{name: "yaml mapping keeps key order", file: "TST.yaml", body: yamlMapping},
		{name: "yaml sequence", file: "TST.yml", body: yamlSequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{tt.file: {Data: []byte(tt.body)}}

			spec, err := NewFS(fsys, ".").Load("TST")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if spec.Type != "TST" {
				t.Errorf("Type = %q, want TST", spec.Type)
			}
			if !reflect.DeepEqual(spec.Columns, wantColumns()) {
				t.Errorf("Columns = %+v, want %+v", spec.Columns, wantColumns())
			}
		})
	}
}

func TestFS_LoadPrefersJSON(t *testing.T) {
	fsys := fstest.MapFS{
		"TST.json": {Data: []byte(jsonLayout)},
		"TST.yaml": {Data: []byte("- name: only\n  start_ind_b: 0\n  end_ind_b: 1\n")},
	}

	spec, err := NewFS(fsys, ".").Load("TST")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(spec.Columns) != 3 {
		t.Errorf("columns = %d, want the JSON layout's 3", len(spec.Columns))
	}
}

func TestFS_LoadMissing(t *testing.T) {
	_, err := NewFS(fstest.MapFS{}, ".").Load("XYZ")
	if !errors.Is(err, core.ErrConfigNotFound) {
		t.Fatalf("Load() error = %v, want ErrConfigNotFound", err)
	}
	var notFound *core.ConfigNotFoundError
	if !errors.As(err, &notFound) || notFound.RecordType != "XYZ" {
		t.Errorf("error = %#v, want ConfigNotFoundError for XYZ", err)
	}
}

func TestFS_LoadMalformed(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "truncated json", file: "BAD.json", body: `{"a": {"start_ind_b": 0,`},
		{name: "json array", file: "BAD.json", body: `[1, 2]`},
		{name: "unknown normalizer", file: "BAD.json", body: `{"a": {"start_ind_b": 0, "end_ind_b": 1, "var_function": "shout"}}`},
		{name: "unknown type", file: "BAD.json", body: `{"a": {"start_ind_b": 0, "end_ind_b": 1, "var_type": "decimal"}}`},
		{name: "yaml scalar", file: "BAD.yaml", body: "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{tt.file: {Data: []byte(tt.body)}}
			_, err := NewFS(fsys, ".").Load("BAD")
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if errors.Is(err, core.ErrConfigNotFound) {
				t.Errorf("malformed layout reported as missing: %v", err)
			}
		})
	}
}

func TestFS_Types(t *testing.T) {
	fsys := fstest.MapFS{
		"specs/SED.json":  {Data: []byte("{}")},
		"specs/KYI.yaml":  {Data: []byte("{}")},
		"specs/KYI.json":  {Data: []byte("{}")},
		"specs/notes.txt": {Data: []byte("ignored")},
	}

	got, err := NewFS(fsys, "specs").Types()
	if err != nil {
		t.Fatalf("Types() error = %v", err)
	}
	if want := []string{"KYI", "SED"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Types() = %v, want %v", got, want)
	}
}

// ----------------------------------------------------------------------------
// Dir / Builtin / Chain Tests
// ----------------------------------------------------------------------------

func TestNewDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "TST.json"), []byte(jsonLayout), 0o644); err != nil {
		t.Fatal(err)
	}

	spec, err := NewDir(dir).Load("TST")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if spec.Columns[0].Name != "zeta" {
		t.Errorf("first column = %q, want zeta", spec.Columns[0].Name)
	}
}

func TestBuiltin_SED(t *testing.T) {
	spec, err := Builtin().Load("SED")
	if err != nil {
		t.Fatalf("Load(SED) error = %v", err)
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("built-in SED layout invalid: %v", err)
	}
	if spec.Columns[0].Name != "place_code" {
		t.Errorf("first column = %q, want place_code", spec.Columns[0].Name)
	}

	// Columns are contiguous and ordered by offset.
	for i := 1; i < len(spec.Columns); i++ {
		if spec.Columns[i].StartByte != spec.Columns[i-1].EndByte {
			t.Errorf("column %s starts at %d, previous ends at %d",
				spec.Columns[i].Name, spec.Columns[i].StartByte, spec.Columns[i-1].EndByte)
		}
	}
}

func TestChain(t *testing.T) {
	override := NewFS(fstest.MapFS{"SED.json": {Data: []byte(jsonLayout)}}, ".")
	chain := Chain{override, Builtin()}

	spec, err := chain.Load("SED")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if spec.Columns[0].Name != "zeta" {
		t.Errorf("first column = %q, want override's zeta", spec.Columns[0].Name)
	}

	if _, err := chain.Load("XYZ"); !errors.Is(err, core.ErrConfigNotFound) {
		t.Errorf("Load(XYZ) error = %v, want ErrConfigNotFound", err)
	}

	types, err := chain.Types()
	if err != nil {
		t.Fatalf("Types() error = %v", err)
	}
	if !reflect.DeepEqual(types, []string{"SED"}) {
		t.Errorf("Types() = %v, want [SED]", types)
	}
}

func TestChain_StopsOnMalformed(t *testing.T) {
	broken := NewFS(fstest.MapFS{"SED.json": {Data: []byte("{")}}, ".")
	if _, err := (Chain{broken, Builtin()}).Load("SED"); err == nil {
		t.Error("Load() expected error from the malformed override")
	}
}

func TestRegistryIntegration(t *testing.T) {
	reg := core.NewSpecRegistry(Builtin())
	spec, err := reg.Get("SED")
	if err != nil {
		t.Fatalf("Get(SED) error = %v", err)
	}
	if spec.Type != "SED" {
		t.Errorf("Type = %q, want SED", spec.Type)
	}
}
