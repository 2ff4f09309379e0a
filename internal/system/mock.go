package system

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// MockFS is an in-memory FileSystem. Paths are cleaned before use, so
// "/a/./b" and "/a/b" name the same file.
type MockFS struct {
	mu    sync.RWMutex
	files map[string]mockFile

	// WriteErr, when set, fails every WriteFile.
	WriteErr error
}

type mockFile struct {
	data []byte
	mode fs.FileMode
}

// NewMockFS returns an empty MockFS.
func NewMockFS() *MockFS {
	return &MockFS{files: make(map[string]mockFile)}
}

// AddFile seeds a file.
func (m *MockFS) AddFile(path string, data []byte, mode fs.FileMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = mockFile{data: slices.Clone(data), mode: mode}
}

// GetFile returns the content of path and whether it exists.
func (m *MockFS) GetFile(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[filepath.Clean(path)]
	return f.data, ok
}

// Mode returns the permission bits path was last written with.
func (m *MockFS) Mode(path string) fs.FileMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files[filepath.Clean(path)].mode
}

func (m *MockFS) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return slices.Clone(f.data), nil
}

func (m *MockFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	if m.WriteErr != nil {
		return &fs.PathError{Op: "write", Path: path, Err: m.WriteErr}
	}
	m.AddFile(path, data, perm)
	return nil
}

func (m *MockFS) Stat(path string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return fileInfo{name: filepath.Base(path), size: int64(len(f.data)), mode: f.mode}, nil
}

func (m *MockFS) Exists(path string) bool {
	_, ok := m.GetFile(path)
	return ok
}

func (m *MockFS) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := filepath.Clean(path)
	if _, ok := m.files[p]; !ok {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(m.files, p)
	return nil
}

type fileInfo struct {
	name string
	size int64
	mode fs.FileMode
}

func (i fileInfo) Name() string       { return i.name }
func (i fileInfo) Size() int64        { return i.size }
func (i fileInfo) Mode() fs.FileMode  { return i.mode }
func (i fileInfo) ModTime() time.Time { return time.Time{} }
func (i fileInfo) IsDir() bool        { return false }
func (i fileInfo) Sys() any           { return nil }

// MockTerminal records the programs it is asked to run.
type MockTerminal struct {
	mu       sync.Mutex
	Commands [][]string

	// OnAttach, when set, runs in place of the program. Tests use it to
	// play the part of an editor.
	OnAttach func(argv []string) error
}

// NewMockTerminal returns a MockTerminal whose programs all succeed.
func NewMockTerminal() *MockTerminal {
	return &MockTerminal{}
}

func (m *MockTerminal) Attach(ctx context.Context, argv []string) error {
	m.mu.Lock()
	m.Commands = append(m.Commands, slices.Clone(argv))
	hook := m.OnAttach
	m.mu.Unlock()

	if hook != nil {
		return hook(argv)
	}
	return nil
}

// Last returns the most recent command.
func (m *MockTerminal) Last() ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return nil, false
	}
	return m.Commands[len(m.Commands)-1], true
}
