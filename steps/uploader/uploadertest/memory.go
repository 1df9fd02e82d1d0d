// Package uploadertest provides an in-memory uploader.Sink for tests.
package uploadertest

import (
	"context"
	"errors"
	"sync"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"github.com/rasha-hantash/confluence-mirror/steps/uploader"
)

// ErrInjected is returned for paths registered with FailPath.
var ErrInjected = errors.New("injected upload failure")

// Memory records uploads keyed by path. Re-uploading a path overwrites it.
type Memory struct {
	mu           sync.Mutex
	objects      map[string]types.StorageObject
	order        []string
	failPaths    map[string]bool
	containerErr error

	// Uploads counts every Upload call, including overwrites and failures.
	Uploads int
	// EnsureCalls counts EnsureContainer calls.
	EnsureCalls int
}

var _ uploader.Sink = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		objects:   map[string]types.StorageObject{},
		failPaths: map[string]bool{},
	}
}

// FailPath makes uploads to path fail.
func (m *Memory) FailPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPaths[path] = true
}

// FailContainer makes EnsureContainer return err.
func (m *Memory) FailContainer(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containerErr = err
}

func (m *Memory) EnsureContainer(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnsureCalls++
	if m.containerErr != nil {
		return &uploader.StorageError{Backend: "memory", Op: "create container", Err: m.containerErr}
	}
	return nil
}

func (m *Memory) Upload(ctx context.Context, obj types.StorageObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads++
	if m.failPaths[obj.Path] {
		return &uploader.StorageError{Backend: "memory", Op: "upload", Path: obj.Path, Err: ErrInjected}
	}
	if _, ok := m.objects[obj.Path]; !ok {
		m.order = append(m.order, obj.Path)
	}
	m.objects[obj.Path] = obj
	return nil
}

// Paths returns stored paths in first-upload order.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Object returns the stored object at path.
func (m *Memory) Object(path string) (types.StorageObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[path]
	return obj, ok
}

// Snapshot copies every stored object keyed by path.
func (m *Memory) Snapshot() map[string]types.StorageObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]types.StorageObject, len(m.objects))
	for k, v := range m.objects {
		out[k] = v
	}
	return out
}
