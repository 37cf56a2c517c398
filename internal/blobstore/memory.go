package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// memoryChunkSize is how much the in-memory store reads per progress report.
const memoryChunkSize = 32 * 1024

// MemoryObject is an object held by a Memory store.
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// Memory is an in-process Store used for dry runs and tests.
// It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	containers map[string]map[string]MemoryObject
	chunkSize  int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		containers: make(map[string]map[string]MemoryObject),
		chunkSize:  memoryChunkSize,
	}
}

// CreateContainer implements Store.
func (m *Memory) CreateContainer(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("memory store: container name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.containers[name]; exists {
		return fmt.Errorf("create container %q: %w", name, ErrContainerExists)
	}
	m.containers[name] = make(map[string]MemoryObject)
	return nil
}

// Upload implements Store. The file is read in fixed-size chunks so
// progress is reported more than once for files larger than a chunk.
func (m *Memory) Upload(ctx context.Context, obj Object, progress ProgressFunc) error {
	if obj.File == nil {
		return errors.New("memory store: no file to upload")
	}

	m.mu.RLock()
	_, exists := m.containers[obj.Container]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("upload %q: container %q does not exist", obj.Name, obj.Container)
	}

	r := newProgressReader(obj.File, progress)
	data := make([]byte, 0, max(obj.Size, 0))
	buf := make([]byte, m.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("upload %q: %w", obj.Name, err)
		}
		n, err := r.Read(buf)
		data = append(data, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("upload %q: read file: %w", obj.Name, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[obj.Container][obj.Name] = MemoryObject{Data: data, ContentType: obj.ContentType}
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

// Object returns a stored object.
func (m *Memory) Object(container, name string) (MemoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objs, ok := m.containers[container]
	if !ok {
		return MemoryObject{}, false
	}
	obj, ok := objs[name]
	return obj, ok
}

// Names returns the object names in a container, in no particular order.
func (m *Memory) Names(container string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.containers[container] {
		names = append(names, name)
	}
	return names
}

var _ Store = (*Memory)(nil)
