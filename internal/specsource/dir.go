package specsource

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed specs/*.json
var builtin embed.FS

// NewDir creates a source reading layouts from a directory on disk.
func NewDir(dir string) *FS {
	return NewFS(os.DirFS(dir), ".")
}

// Builtin returns the layouts compiled into the binary.
func Builtin() *FS {
	sub, err := fs.Sub(builtin, "specs")
	if err != nil {
		// Unreachable: the pattern above guarantees the directory exists.
		panic(err)
	}
	return NewFS(sub, ".")
}

// Default returns a source that prefers layouts in dir and falls back to the
// built-in ones. An empty dir means built-in only.
func Default(dir string) Source {
	if dir == "" {
		return Builtin()
	}
	return Chain{NewDir(dir), Builtin()}
}
