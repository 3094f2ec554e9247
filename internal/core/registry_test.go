package core

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeLoader serves specs from a map and counts Load calls.
type fakeLoader struct {
	specs map[string]RecordSpec
	err   error
	calls atomic.Int32
}

func (f *fakeLoader) Load(recordType string) (RecordSpec, error) {
	f.calls.Add(1)
	if f.err != nil {
		return RecordSpec{}, f.err
	}
	spec, ok := f.specs[recordType]
	if !ok {
		return RecordSpec{}, &ConfigNotFoundError{RecordType: recordType}
	}
	return spec, nil
}

// ----------------------------------------------------------------------------
// Get Tests
// ----------------------------------------------------------------------------

func TestSpecRegistry_GetLoadsOnce(t *testing.T) {
	spec := sampleSpec()
	spec.Type = ""
	loader := &fakeLoader{specs: map[string]RecordSpec{"TST": spec}}
	reg := NewSpecRegistry(loader)

	for i := 0; i < 3; i++ {
		got, err := reg.Get("TST")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Type != "TST" {
			t.Errorf("Type = %q, want %q", got.Type, "TST")
		}
		if len(got.Columns) != 4 {
			t.Errorf("columns = %d, want 4", len(got.Columns))
		}
	}

	if n := loader.calls.Load(); n != 1 {
		t.Errorf("Load calls = %d, want 1", n)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestSpecRegistry_GetUnknownType(t *testing.T) {
	reg := NewSpecRegistry(&fakeLoader{specs: map[string]RecordSpec{}})

	_, err := reg.Get("XYZ")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("Get() error = %v, want ErrConfigNotFound", err)
	}

	var notFound *ConfigNotFoundError
	if !errors.As(err, &notFound) || notFound.RecordType != "XYZ" {
		t.Errorf("error = %#v, want ConfigNotFoundError for XYZ", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after failed lookup", reg.Len())
	}
}

func TestSpecRegistry_NilLoader(t *testing.T) {
	reg := NewSpecRegistry(nil)
	if _, err := reg.Get("SED"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Get() error = %v, want ErrConfigNotFound", err)
	}
}

func TestSpecRegistry_LoaderError(t *testing.T) {
	boom := errors.New("disk on fire")
	reg := NewSpecRegistry(&fakeLoader{err: boom})

	_, err := reg.Get("SED")
	if !errors.Is(err, boom) {
		t.Fatalf("Get() error = %v, want wrapped loader error", err)
	}
	if errors.Is(err, ErrConfigNotFound) {
		t.Error("loader failure must not look like a missing spec")
	}
}

func TestSpecRegistry_InvalidSpec(t *testing.T) {
	bad := RecordSpec{Columns: []ColumnSpec{{Name: "a", StartByte: 4, EndByte: 2}}}
	reg := NewSpecRegistry(&fakeLoader{specs: map[string]RecordSpec{"BAD": bad}})

	_, err := reg.Get("BAD")
	if err == nil {
		t.Fatal("Get() expected error for invalid spec")
	}
	if got := MapError(err).Code; got != "CFG002" {
		t.Errorf("MapError code = %q, want CFG002", got)
	}
}

func TestSpecRegistry_CallersCannotMutateCache(t *testing.T) {
	reg := NewSpecRegistry(nil)
	if err := reg.Register(sampleSpec()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, _ := reg.Get("TST")
	got.Columns[0].Name = "changed"

	again, _ := reg.Get("TST")
	if again.Columns[0].Name != "code" {
		t.Errorf("cached column renamed to %q", again.Columns[0].Name)
	}
}

func TestSpecRegistry_ConcurrentGet(t *testing.T) {
	loader := &fakeLoader{specs: map[string]RecordSpec{"TST": sampleSpec()}}
	reg := NewSpecRegistry(loader)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Get("TST"); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

// ----------------------------------------------------------------------------
// Register Tests
// ----------------------------------------------------------------------------

func TestSpecRegistry_Register(t *testing.T) {
	reg := NewSpecRegistry(nil)

	if err := reg.Register(sampleSpec()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register(sampleSpec()); err == nil {
		t.Error("Register() expected error for duplicate type")
	}

	dup := RecordSpec{Type: "DUP", Columns: []ColumnSpec{
		{Name: "a", StartByte: 0, EndByte: 1},
		{Name: "a", StartByte: 1, EndByte: 2},
	}}
	if err := reg.Register(dup); err == nil {
		t.Error("Register() expected error for duplicate column")
	}

	if got := reg.Types(); len(got) != 1 || got[0] != "TST" {
		t.Errorf("Types() = %v, want [TST]", got)
	}

	reg.Clear()
	if reg.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", reg.Len())
	}
}

func TestSpecRegistry_CanonicalTypes(t *testing.T) {
	aliased := RecordSpec{Type: "ALI", Columns: []ColumnSpec{
		{Name: "n", StartByte: 0, EndByte: 2, Type: "int64"},
		{Name: "x", StartByte: 2, EndByte: 4, Type: "Float64"},
		{Name: "s", StartByte: 4, EndByte: 6, Type: "object"},
		{Name: "e", StartByte: 6, EndByte: 8},
	}}
	want := []ValueType{TypeInt, TypeFloat, TypeText, TypeText}

	check := func(t *testing.T, spec RecordSpec) {
		t.Helper()
		for i, col := range spec.Columns {
			if col.Type != want[i] {
				t.Errorf("column %s type = %q, want %q", col.Name, col.Type, want[i])
			}
		}
	}

	t.Run("Register", func(t *testing.T) {
		reg := NewSpecRegistry(nil)
		if err := reg.Register(aliased); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		got, err := reg.Get("ALI")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		check(t, got)
	})

	t.Run("Loader", func(t *testing.T) {
		reg := NewSpecRegistry(&fakeLoader{specs: map[string]RecordSpec{"ALI": aliased}})
		got, err := reg.Get("ALI")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		check(t, got)

		cached, _ := reg.Get("ALI")
		check(t, cached)
	})

	if aliased.Columns[0].Type != "int64" {
		t.Error("Register() modified the caller's spec")
	}
}
