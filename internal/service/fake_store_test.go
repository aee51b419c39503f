package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/xxxsen/studynote/internal/filestore"
)

type memStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	saves     int
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) Type() string {
	return "mem"
}

func (m *memStore) Save(ctx context.Context, key string, r io.ReadSeeker, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.files[key] = data
	return nil
}

func (m *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, filestore.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.files[key]; !ok {
		return filestore.ErrNotExist
	}
	delete(m.files, key)
	return nil
}

func (m *memStore) URL(key string) string {
	return "/uploads/" + key
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

var errStoreDown = errors.New("store down")
