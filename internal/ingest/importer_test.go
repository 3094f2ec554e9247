package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/encoding/japanese"

	"github.com/JonMunkholm/jrdbload/internal/core"
	"github.com/JonMunkholm/jrdbload/internal/ledger"
	"github.com/JonMunkholm/jrdbload/internal/sink"
	"github.com/JonMunkholm/jrdbload/internal/source"
)

var testSpec = core.RecordSpec{
	Type: "TST",
	Columns: []core.ColumnSpec{
		{Name: "code", StartByte: 0, EndByte: 2, Type: core.TypeText},
		{Name: "name", StartByte: 2, EndByte: 6, Normalizer: core.NormalizeRemoveBlank, Type: core.TypeText},
		{Name: "time", StartByte: 6, EndByte: 10, Normalizer: core.NormalizeTimeToSeconds, Type: core.TypeFloat},
	},
}

// fakeSink records tables by destination.
type fakeSink struct {
	mu     sync.Mutex
	tables map[string][]*core.Table
	fail   string // destination that always fails
}

func (f *fakeSink) Write(ctx context.Context, destination string, table *core.Table) (int64, error) {
	if destination == f.fail {
		return 0, &core.SinkWriteError{Destination: destination, Err: errors.New("disk full")}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tables == nil {
		f.tables = make(map[string][]*core.Table)
	}
	f.tables[destination] = append(f.tables[destination], table)
	return int64(table.Len()), nil
}

type fakeLedger struct {
	mu    sync.Mutex
	files map[string]ledger.Entry
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{files: make(map[string]ledger.Entry)}
}

func (l *fakeLedger) Seen(ctx context.Context, fileName string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.files[fileName]
	return ok, nil
}

func (l *fakeLedger) Record(ctx context.Context, e ledger.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[e.FileName] = e
	return nil
}

func writeSJIS(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	var data []byte
	for _, line := range lines {
		b, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(line))
		if err != nil {
			t.Fatalf("encode %q: %v", line, err)
		}
		data = append(data, b...)
		data = append(data, '\r', '\n')
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newImporter(t *testing.T, dir string, snk sink.Sink, l Ledger) *Importer {
	t.Helper()
	reg := core.NewSpecRegistry(nil)
	if err := reg.Register(testSpec); err != nil {
		t.Fatal(err)
	}
	return New(core.NewParser(reg), source.NewDir(dir, nil), snk, l, nil)
}

// ----------------------------------------------------------------------------
// Run Tests
// ----------------------------------------------------------------------------

func TestRun_ImportsAndRecords(t *testing.T) {
	dir := t.TempDir()
	writeSJIS(t, dir, "TST220110.txt", "01アイ1345", "02ｳ   2001")
	writeSJIS(t, dir, "TST220117.txt", "03カナ 595")

	snk := &fakeSink{}
	l := newFakeLedger()
	imp := newImporter(t, dir, snk, l)

	res, err := imp.Run(context.Background(), Options{MaxConcurrent: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if res.Imported != 2 || res.Rows != 3 || len(res.Failed) != 0 {
		t.Errorf("result = %+v, want 2 files / 3 rows / no failures", res)
	}
	if res.Files[0].File != "TST220110.txt" || res.Files[1].File != "TST220117.txt" {
		t.Errorf("files out of order: %+v", res.Files)
	}
	if got := len(snk.tables["tst"]); got != 2 {
		t.Errorf("tables written to tst = %d, want 2", got)
	}
	if e := l.files["TST220110.txt"]; e.Rows != 2 || e.RecordType != "TST" {
		t.Errorf("ledger entry = %+v", e)
	}

	// Second run skips everything.
	res, err = imp.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if res.Skipped != 2 || res.Imported != 0 {
		t.Errorf("second run = %+v, want 2 skipped", res)
	}

	// Force imports them again.
	res, err = imp.Run(context.Background(), Options{Force: true})
	if err != nil {
		t.Fatalf("forced Run() error = %v", err)
	}
	if res.Imported != 2 {
		t.Errorf("forced run imported %d, want 2", res.Imported)
	}
}

// catalog stands in for the Postgres system catalog: a CREATE TABLE for a
// name that another open transaction is creating fails like pg_type's unique
// index does, and every statement is counted per table.
type catalog struct {
	mu       sync.Mutex
	creating map[string]bool
	exists   map[string]bool
	ddl      map[string]int
	rows     map[string]int64
}

func newCatalog() *catalog {
	return &catalog{
		creating: make(map[string]bool),
		exists:   make(map[string]bool),
		ddl:      make(map[string]int),
		rows:     make(map[string]int64),
	}
}

func (c *catalog) Begin(ctx context.Context) (pgx.Tx, error) {
	return &catalogTx{cat: c}, nil
}

type catalogTx struct {
	pgx.Tx
	cat      *catalog
	creating string
	copied   map[string]int64
}

func (tx *catalogTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	// CREATE TABLE IF NOT EXISTS "name" (...)
	name := strings.Trim(strings.Fields(sql)[5], `"`)

	c := tx.cat
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ddl[name]++
	if c.exists[name] {
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	}
	if c.creating[name] {
		return pgconn.CommandTag{}, errors.New(`duplicate key value violates unique constraint "pg_type_typname_nsp_index"`)
	}
	c.creating[name] = true
	tx.creating = name
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (tx *catalogTx) CopyFrom(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	var n int64
	for src.Next() {
		n++
	}
	if tx.copied == nil {
		tx.copied = make(map[string]int64)
	}
	tx.copied[table[0]] += n
	return n, src.Err()
}

func (tx *catalogTx) Commit(ctx context.Context) error {
	c := tx.cat
	c.mu.Lock()
	defer c.mu.Unlock()
	if tx.creating != "" {
		c.exists[tx.creating] = true
		delete(c.creating, tx.creating)
		tx.creating = ""
	}
	for name, n := range tx.copied {
		c.rows[name] += n
	}
	tx.copied = nil
	return nil
}

func (tx *catalogTx) Rollback(ctx context.Context) error {
	c := tx.cat
	c.mu.Lock()
	defer c.mu.Unlock()
	if tx.creating != "" {
		delete(c.creating, tx.creating)
		tx.creating = ""
	}
	tx.copied = nil
	return nil
}

func TestRun_SameTypeFilesShareOneTable(t *testing.T) {
	dir := t.TempDir()
	days := []string{"0105", "0106", "0112", "0113", "0119", "0120"}
	for _, day := range days {
		writeSJIS(t, dir, "TST22"+day+".txt", "01アイ1345", "02ｳ   2001")
	}

	cat := newCatalog()
	imp := newImporter(t, dir, sink.NewPostgres(cat, true, nil), newFakeLedger())

	res, err := imp.Run(context.Background(), Options{MaxConcurrent: 4})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, fr := range res.Failed {
		t.Errorf("%s failed: %v", fr.File, fr.Err)
	}
	if res.Imported != len(days) {
		t.Errorf("imported = %d, want %d", res.Imported, len(days))
	}
	if got := cat.ddl["tst"]; got != 1 {
		t.Errorf("CREATE TABLE statements for tst = %d, want 1", got)
	}
	if got := cat.rows["tst"]; got != int64(2*len(days)) {
		t.Errorf("rows committed to tst = %d, want %d", got, 2*len(days))
	}
}

func TestRun_FailingFileDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	writeSJIS(t, dir, "TST220110.txt", "01アイ1345")
	writeSJIS(t, dir, "XYZ220110.txt", "whatever") // no spec
	writeSJIS(t, dir, "TST220117.txt", "0ア 1345")  // split character

	snk := &fakeSink{}
	l := newFakeLedger()
	res, err := newImporter(t, dir, snk, l).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Imported != 1 {
		t.Errorf("imported = %d, want 1", res.Imported)
	}
	if len(res.Failed) != 2 {
		t.Fatalf("failed = %+v, want 2", res.Failed)
	}

	var failed []string
	for _, fr := range res.Failed {
		failed = append(failed, fr.File)
	}
	sort.Strings(failed)
	if failed[0] != "TST220117.txt" || failed[1] != "XYZ220110.txt" {
		t.Errorf("failed files = %v", failed)
	}

	for _, fr := range res.Failed {
		if fr.File == "XYZ220110.txt" && !errors.Is(fr.Err, core.ErrConfigNotFound) {
			t.Errorf("XYZ error = %v, want ErrConfigNotFound", fr.Err)
		}
		if fr.File == "TST220117.txt" && !errors.Is(fr.Err, core.ErrDecode) {
			t.Errorf("TST220117 error = %v, want ErrDecode", fr.Err)
		}
		if _, ok := l.files[fr.File]; ok {
			t.Errorf("failed file %s recorded in ledger", fr.File)
		}
	}
}

func TestRun_SinkFailure(t *testing.T) {
	dir := t.TempDir()
	writeSJIS(t, dir, "TST220110.txt", "01アイ1345")

	l := newFakeLedger()
	res, err := newImporter(t, dir, &fakeSink{fail: "tst"}, l).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Failed) != 1 || !errors.Is(res.Failed[0].Err, core.ErrSinkWrite) {
		t.Errorf("failed = %+v, want one sink failure", res.Failed)
	}
	if len(l.files) != 0 {
		t.Errorf("ledger = %v, want empty", l.files)
	}
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeSJIS(t, dir, "TST220110.txt", "01アイ1345", "02ｳ   2001")

	l := newFakeLedger()
	res, err := newImporter(t, dir, nil, l).Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Imported != 1 || res.Rows != 2 {
		t.Errorf("result = %+v, want 1 file with 2 rows", res)
	}
	if len(l.files) != 0 {
		t.Errorf("dry run touched the ledger: %v", l.files)
	}
}

func TestRun_TypeAndTableOverride(t *testing.T) {
	dir := t.TempDir()
	writeSJIS(t, dir, "TST220110.txt", "01アイ1345")
	writeSJIS(t, dir, "XYZ220110.txt", "whatever")

	snk := &fakeSink{}
	res, err := newImporter(t, dir, snk, nil).Run(context.Background(), Options{RecordType: "TST", Table: "race_results"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Files) != 1 || res.Imported != 1 {
		t.Errorf("result = %+v, want only the TST file", res)
	}
	if len(snk.tables["race_results"]) != 1 {
		t.Errorf("tables = %v, want one write to race_results", snk.tables)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	imp := newImporter(t, t.TempDir(), &fakeSink{}, nil)
	if _, err := imp.Run(context.Background(), Options{Table: "x"}); err == nil {
		t.Error("Run() expected error for table without record type")
	}
	if _, err := newImporter(t, t.TempDir(), nil, nil).Run(context.Background(), Options{}); err == nil {
		t.Error("Run() expected error without a sink")
	}
}

func TestRun_MissingDir(t *testing.T) {
	imp := newImporter(t, filepath.Join(t.TempDir(), "missing"), &fakeSink{}, nil)
	_, err := imp.Run(context.Background(), Options{})
	if !errors.Is(err, core.ErrSourceUnavailable) {
		t.Errorf("Run() error = %v, want ErrSourceUnavailable", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeSJIS(t, dir, "TST220110.txt", "01アイ1345")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newImporter(t, dir, &fakeSink{}, nil).Run(ctx, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if res == nil || len(res.Failed) != 1 {
		t.Errorf("result = %+v, want the file reported as failed", res)
	}
}

func TestDestination(t *testing.T) {
	if got := Destination("SED", Options{}); got != "sed" {
		t.Errorf("Destination() = %q, want sed", got)
	}
	if got := Destination("SED", Options{RecordType: "SED", Table: "results"}); got != "results" {
		t.Errorf("Destination() = %q, want results", got)
	}
}
