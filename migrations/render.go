package migrations

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"text/template"
	"time"

	"github.com/jackc/pgx/v5"
)

// templateData is what each migration template sees. Schema and Table are
// quoted identifiers safe to splice into DDL; Prefix is the bare table name
// used to derive index names. Callers have already validated both names
// against the identifier grammar.
type templateData struct {
	Schema string
	Table  string
	Prefix string
}

// Render executes every embedded migration template against the given
// schema and table names and returns the result as an fs.FS whose file
// names golang-migrate's iofs source understands.
func Render(schema, table string) (fs.FS, error) {
	data := templateData{
		Schema: pgx.Identifier{schema}.Sanitize(),
		Table:  pgx.Identifier{schema, table}.Sanitize(),
		Prefix: table,
	}

	entries, err := templates.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read migration templates: %w", err)
	}

	rendered := memFS{}
	for _, entry := range entries {
		raw, err := templates.ReadFile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		tmpl, err := template.New(entry.Name()).Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render %s: %w", entry.Name(), err)
		}
		rendered[entry.Name()] = buf.Bytes()
	}
	return rendered, nil
}

// memFS is a flat, read-only fs.FS over rendered migration files. Just
// enough surface for iofs: ReadDir(".") plus Open on each file.
type memFS map[string][]byte

func (m memFS) Open(name string) (fs.File, error) {
	if name == "." {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	data, ok := m[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memFile{
		info:   fileInfo{name: name, size: int64(len(data))},
		Reader: bytes.NewReader(data),
	}, nil
}

func (m memFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	entries := make([]fs.DirEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, fileInfo{name: n, size: int64(len(m[n]))})
	}
	return entries, nil
}

type memFile struct {
	info fileInfo
	*bytes.Reader
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *memFile) Close() error               { return nil }

var _ io.ReaderAt = (*memFile)(nil)

// fileInfo doubles as fs.FileInfo and fs.DirEntry for memFS entries.
type fileInfo struct {
	name string
	size int64
}

func (i fileInfo) Name() string               { return i.name }
func (i fileInfo) Size() int64                { return i.size }
func (i fileInfo) Mode() fs.FileMode          { return 0o444 }
func (i fileInfo) ModTime() time.Time         { return time.Time{} }
func (i fileInfo) IsDir() bool                { return false }
func (i fileInfo) Sys() any                   { return nil }
func (i fileInfo) Type() fs.FileMode          { return 0 }
func (i fileInfo) Info() (fs.FileInfo, error) { return i, nil }
