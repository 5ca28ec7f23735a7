// pattern: Imperative Shell

// Package fstree describes files and directories before they exist.
// Descriptors carry a target path and a content producer; nothing touches
// the filesystem until Create or EnsureCreated is called.
package fstree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DirPerm  os.FileMode = 0755
	FilePerm os.FileMode = 0644
)

// Content produces a file's contents. It may do I/O (e.g. copy another file).
type Content func(ctx context.Context) (string, error)

// Literal wraps a fixed string as Content.
func Literal(s string) Content {
	return func(context.Context) (string, error) {
		return s, nil
	}
}

// Computed wraps a pure string producer as Content.
func Computed(f func() string) Content {
	return func(context.Context) (string, error) {
		return f(), nil
	}
}

// CopyOf reads the file at src when the content is requested.
func CopyOf(src string) Content {
	return func(context.Context) (string, error) {
		data, err := os.ReadFile(src)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// Dir is a directory descriptor.
type Dir struct {
	path string
}

// Of returns a descriptor for path.
func Of(path string) Dir {
	return Dir{path: filepath.Clean(path)}
}

func (d Dir) Path() string {
	return d.path
}

func (d Dir) Name() string {
	return filepath.Base(d.path)
}

// Dir returns a descriptor for a child directory.
func (d Dir) Dir(name string) Dir {
	return Dir{path: filepath.Join(d.path, name)}
}

// File returns a descriptor for a child file with the given content.
func (d Dir) File(name string, content Content) File {
	return File{path: filepath.Join(d.path, name), content: content}
}

// EnsureCreated creates the directory and any missing parents.
// An existing directory is left as is.
func (d Dir) EnsureCreated() error {
	info, err := os.Stat(d.path)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("%s exists and is not a directory", d.path)
	case !os.IsNotExist(err):
		return fmt.Errorf("stat %s: %w", d.path, err)
	}
	if err := os.MkdirAll(d.path, DirPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", d.path, err)
	}
	return nil
}

// Create makes the directory itself. It fails if the path already exists.
func (d Dir) Create() error {
	if err := os.Mkdir(d.path, DirPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", d.path, err)
	}
	return nil
}

// Exists reports whether the directory is present on disk.
func (d Dir) Exists() bool {
	info, err := os.Stat(d.path)
	return err == nil && info.IsDir()
}

// File is a file descriptor.
type File struct {
	path    string
	content Content
}

func (f File) Path() string {
	return f.path
}

func (f File) Name() string {
	return filepath.Base(f.path)
}

// Render evaluates the content without writing anything.
func (f File) Render(ctx context.Context) (string, error) {
	if f.content == nil {
		return "", nil
	}
	s, err := f.content(ctx)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", f.path, err)
	}
	return s, nil
}

// Create renders the content and writes it to the target path, replacing
// any existing file. The parent directory must exist.
func (f File) Create(ctx context.Context) error {
	s, err := f.Render(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, []byte(s), FilePerm); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}

// CreateAll creates files in order, stopping at the first error.
func CreateAll(ctx context.Context, files ...File) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.Create(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Move renames src to dst, creating dst's parent if needed.
func Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), DirPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	return nil
}
