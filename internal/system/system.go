// Package system holds the host operations hutch performs outside the
// container runtime: spec documents and identity files on the local disk,
// and programs such as $EDITOR that take over the terminal.
package system

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
)

// FileSystem reads and writes local files.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces the content of path. Readers see either the old or
	// the new content, never a partial write.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	Stat(path string) (fs.FileInfo, error)
	Exists(path string) bool
	Remove(path string) error
}

// Terminal runs a program attached to the user's terminal and waits for it.
type Terminal interface {
	Attach(ctx context.Context, argv []string) error
}

// DefaultFS returns the host filesystem.
func DefaultFS() FileSystem { return osFS{} }

// DefaultTerminal returns a Terminal wired to this process's stdio.
func DefaultTerminal() Terminal { return osTerminal{} }

type osFS struct{}

func (osFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (osFS) WriteFile(path string, data []byte, perm fs.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Chmod(perm); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func (osFS) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

func (osFS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (osFS) Remove(path string) error { return os.Remove(path) }

type osTerminal struct{}

func (osTerminal) Attach(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
