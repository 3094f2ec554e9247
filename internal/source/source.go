// Package source finds JRDB data files on disk and yields their raw records.
package source

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/jrdbload/internal/core"
)

// LineSource yields the raw records of one record type, in file order.
type LineSource interface {
	Records(ctx context.Context, recordType string) ([][]byte, error)
}

// splitMembers are archive members that other packs repeat. They are only
// read when asked for by name.
var splitMembers = []string{"SRA", "SRB"}

// RecordTypeOf derives the record type from a JRDB file name, e.g.
// "SED220110.txt" -> "SED". Returns "" when the name has no letter prefix.
func RecordTypeOf(fileName string) string {
	base := filepath.Base(fileName)
	if len(base) < 3 {
		return ""
	}
	for i := 0; i < 3; i++ {
		c := base[i]
		if !('A' <= c && c <= 'Z' || 'a' <= c && c <= 'z') {
			return ""
		}
	}
	return strings.ToUpper(base[:3])
}

// Dir reads *.txt files below a root directory.
type Dir struct {
	root   string
	logger *slog.Logger
}

// NewDir creates a source over root. logger may be nil.
func NewDir(root string, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dir{root: root, logger: logger}
}

// Root returns the directory the source reads from.
func (d *Dir) Root() string {
	return d.root
}

// Files lists the non-empty data files for recordType, sorted by path.
// An empty recordType lists every data file except SRA/SRB members.
func (d *Dir) Files(recordType string) ([]string, error) {
	info, err := os.Stat(d.root)
	if err != nil {
		return nil, &core.SourceUnavailableError{Source: d.root, Err: err}
	}
	if !info.IsDir() {
		return nil, &core.SourceUnavailableError{Source: d.root, Err: errors.New("not a directory")}
	}

	var files []string
	err = filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".txt") {
			return nil
		}
		if !matches(entry.Name(), recordType) {
			return nil
		}

		fi, err := entry.Info()
		if err != nil {
			return err
		}
		if fi.Size() == 0 {
			d.logger.Warn("skipping empty file", "file", path)
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &core.SourceUnavailableError{Source: d.root, Err: err}
	}

	sort.Strings(files)
	return files, nil
}

func matches(name, recordType string) bool {
	fileType := RecordTypeOf(name)
	if fileType == "" {
		return false
	}
	if recordType != "" {
		return strings.EqualFold(fileType, recordType)
	}
	for _, m := range splitMembers {
		if fileType == m {
			return false
		}
	}
	return true
}

// Records implements LineSource. Records of all matching files are
// concatenated in path order.
func (d *Dir) Records(ctx context.Context, recordType string) ([][]byte, error) {
	files, err := d.Files(recordType)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &core.SourceUnavailableError{
			Source: d.root,
			Err:    errors.New("no data files for record type " + recordType),
		}
	}

	var records [][]byte
	for _, path := range files {
		recs, err := ReadFile(ctx, path, d.logger)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// File is a LineSource over a single data file.
type File struct {
	Path   string
	Logger *slog.Logger
}

// Records implements LineSource. recordType is not checked against the
// file name.
func (f File) Records(ctx context.Context, recordType string) ([][]byte, error) {
	return ReadFile(ctx, f.Path, f.Logger)
}
