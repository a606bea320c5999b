package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// containerMapFile is the sidecar persisted next to a StorageManager's
// storage directory, mapping container ids to heap-file paths.
const containerMapFile = "container_to_hf.json"

// ContainerID names a collection of records backed by one HeapFile.
type ContainerID uint16

// ValueID identifies a single record anywhere a StorageManager manages.
// The fields have no unset state: a zero PageID and SlotID address page 0,
// slot 0.
type ValueID struct {
	ContainerID ContainerID
	PageID      PageID
	SlotID      SlotID
}

// StorageManager owns a mapping from container id to backing heap file and
// exposes record-level insert/delete/update/get plus container lifecycle
// and iterator construction. The container map is persisted to
// container_to_hf.json on Shutdown and restored by New if present.
type StorageManager struct {
	mu         sync.RWMutex
	storageDir string
	isTemp     bool
	cfg        Config

	paths      map[ContainerID]string
	heapFiles  map[ContainerID]*HeapFile
}

// New opens a StorageManager rooted at cfg.StorageDir, restoring any
// previously persisted container map.
func New(cfg Config) (*StorageManager, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create storage dir %q: %w", cfg.StorageDir, err)
	}

	sm := &StorageManager{
		storageDir: cfg.StorageDir,
		cfg:        cfg,
		paths:      make(map[ContainerID]string),
		heapFiles:  make(map[ContainerID]*HeapFile),
	}

	mapPath := filepath.Join(cfg.StorageDir, containerMapFile)
	if data, err := os.ReadFile(mapPath); err == nil {
		var raw map[string]string
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("storage: parse %q: %w", mapPath, err)
		}
		for k, v := range raw {
			id, err := strconv.ParseUint(k, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("storage: invalid container id %q in %q: %w", k, mapPath, err)
			}
			codec, err := cfg.pageCodec()
			if err != nil {
				return nil, fmt.Errorf("storage: reopen container %d: %w", id, err)
			}
			sm.paths[ContainerID(id)] = v
			hf, err := OpenHeapFile(v, codec)
			if err != nil {
				return nil, fmt.Errorf("storage: reopen container %d: %w", id, err)
			}
			sm.heapFiles[ContainerID(id)] = hf
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("storage: read %q: %w", mapPath, err)
	}

	return sm, nil
}

// NewTemp opens a StorageManager in a freshly created temporary directory
// that is removed entirely by Shutdown. Intended for tests and example
// wiring; a temp manager's container map is never persisted or restored.
func NewTemp() (*StorageManager, error) {
	dir, err := os.MkdirTemp("", "corvusdb-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("storage: create temp dir: %w", err)
	}
	sm, err := New(DefaultConfig(dir))
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	sm.isTemp = true
	return sm, nil
}

// getHeapFile looks up an already-open heap file. Every container's
// HeapFile is opened under an exclusive lock at CreateContainer or New
// time, so this only ever reads the map — safe to call while holding
// sm.mu for reading.
func (sm *StorageManager) getHeapFile(id ContainerID) (*HeapFile, error) {
	hf, ok := sm.heapFiles[id]
	if !ok {
		return nil, ErrContainerNotFound
	}
	return hf, nil
}

// CreateContainer opens (creating if necessary) a backing heap file for id
// and registers it. Fails if id is already registered.
func (sm *StorageManager) CreateContainer(id ContainerID) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.paths[id]; ok {
		return ErrContainerExists
	}

	codec, err := sm.cfg.pageCodec()
	if err != nil {
		return fmt.Errorf("storage: create container %d: %w", id, err)
	}

	name := fmt.Sprintf("heapfile%d", id)
	path := filepath.Join(sm.storageDir, name)
	hf, err := OpenHeapFile(path, codec)
	if err != nil {
		return fmt.Errorf("storage: create container %d: %w", id, err)
	}

	sm.paths[id] = path
	sm.heapFiles[id] = hf
	return nil
}

// RemoveContainer deletes the backing file (if present) and the mapping.
// Idempotent once the mapping is already absent.
func (sm *StorageManager) RemoveContainer(id ContainerID) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	path, ok := sm.paths[id]
	if !ok {
		return nil
	}
	if hf, ok := sm.heapFiles[id]; ok {
		hf.Close()
		delete(sm.heapFiles, id)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove container %d: %w", id, err)
	}
	delete(sm.paths, id)
	return nil
}

// InsertValue stores value in the first page of container id that has
// room, or a newly appended page if none does. A value larger than
// PageSize can never fit on any page; inserting one is a contract
// violation and panics with ErrValueTooLarge.
func (sm *StorageManager) InsertValue(id ContainerID, value []byte) (ValueID, error) {
	if len(value) > PageSize {
		panic(ErrValueTooLarge)
	}

	sm.mu.RLock()
	hf, err := sm.getHeapFile(id)
	sm.mu.RUnlock()
	if err != nil {
		return ValueID{}, err
	}

	numPages := hf.NumPages()
	for pid := uint32(0); pid < numPages; pid++ {
		page, err := hf.ReadPage(PageID(pid))
		if err != nil {
			return ValueID{}, err
		}
		if slot, ok := page.AddValue(value); ok {
			if err := hf.WritePage(page); err != nil {
				return ValueID{}, err
			}
			return ValueID{ContainerID: id, PageID: PageID(pid), SlotID: slot}, nil
		}
	}

	page := NewPage(PageID(numPages))
	slot, ok := page.AddValue(value)
	if !ok {
		return ValueID{}, fmt.Errorf("storage: value of %d bytes cannot fit on an empty page", len(value))
	}
	if err := hf.WritePage(page); err != nil {
		return ValueID{}, err
	}
	return ValueID{ContainerID: id, PageID: page.ID(), SlotID: slot}, nil
}

// GetValue returns the payload for id, or ErrValueNotFound if it does not
// resolve to a live record.
func (sm *StorageManager) GetValue(id ValueID) ([]byte, error) {
	sm.mu.RLock()
	hf, err := sm.getHeapFile(id.ContainerID)
	sm.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	page, err := hf.ReadPage(id.PageID)
	if err != nil {
		return nil, err
	}
	value, ok := page.GetValue(id.SlotID)
	if !ok {
		return nil, ErrValueNotFound
	}
	return value, nil
}

// DeleteValue removes the record at id. A missing page or slot is treated
// as a no-op, returning nil.
func (sm *StorageManager) DeleteValue(id ValueID) error {
	sm.mu.RLock()
	hf, err := sm.getHeapFile(id.ContainerID)
	sm.mu.RUnlock()
	if err != nil {
		if err == ErrContainerNotFound {
			return nil
		}
		return err
	}

	page, err := hf.ReadPage(id.PageID)
	if err != nil {
		return nil
	}
	page.DeleteValue(id.SlotID)
	return hf.WritePage(page)
}

// UpdateValue deletes the record at id and inserts value as a new record,
// which may land at a different ValueID than the one supplied.
func (sm *StorageManager) UpdateValue(id ValueID, value []byte) (ValueID, error) {
	if err := sm.DeleteValue(id); err != nil {
		return ValueID{}, err
	}
	return sm.InsertValue(id.ContainerID, value)
}

// Iterator returns an iterator over every live record of container id,
// starting at (page 0, slot 0).
func (sm *StorageManager) Iterator(id ContainerID) (*ContainerIterator, error) {
	return sm.IteratorFrom(id, PageSlot{})
}

// IteratorFrom returns an iterator over container id starting at an
// arbitrary position, supporting restart after a partial scan.
func (sm *StorageManager) IteratorFrom(id ContainerID, start PageSlot) (*ContainerIterator, error) {
	sm.mu.RLock()
	hf, err := sm.getHeapFile(id)
	sm.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return &ContainerIterator{
		containerID: id,
		inner:       NewHeapFileIterator(hf, start),
	}, nil
}

// ContainerIterator adapts a HeapFileIterator to yield fully-qualified
// ValueIDs for one container.
type ContainerIterator struct {
	containerID ContainerID
	inner       *HeapFileIterator
}

// Next returns the next record, or ok=false once the container is exhausted.
func (it *ContainerIterator) Next() (bytes []byte, id ValueID, ok bool, err error) {
	bytes, ps, ok, err := it.inner.Next()
	if !ok || err != nil {
		return nil, ValueID{}, false, err
	}
	return bytes, ValueID{ContainerID: it.containerID, PageID: ps.PageID, SlotID: ps.SlotID}, true, nil
}

// Close releases the underlying HeapFileIterator.
func (it *ContainerIterator) Close() {
	it.inner.Close()
}

// Reset removes every file under the storage directory and clears the
// container map, keeping the directory itself. Test utility only.
func (sm *StorageManager) Reset() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, hf := range sm.heapFiles {
		hf.Close()
		delete(sm.heapFiles, id)
	}
	if err := os.RemoveAll(sm.storageDir); err != nil {
		return fmt.Errorf("storage: reset: %w", err)
	}
	if err := os.MkdirAll(sm.storageDir, 0o755); err != nil {
		return fmt.Errorf("storage: reset: %w", err)
	}
	sm.paths = make(map[ContainerID]string)
	return nil
}

// Shutdown closes every open heap file and persists the container-to-path
// map to container_to_hf.json; a temporary manager instead removes its
// storage directory. Safe to call multiple times.
func (sm *StorageManager) Shutdown() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, hf := range sm.heapFiles {
		hf.Close()
	}
	sm.heapFiles = make(map[ContainerID]*HeapFile)

	if sm.isTemp {
		return os.RemoveAll(sm.storageDir)
	}

	raw := make(map[string]string, len(sm.paths))
	for id, path := range sm.paths {
		raw[strconv.FormatUint(uint64(id), 10)] = path
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("storage: marshal container map: %w", err)
	}

	mapPath := filepath.Join(sm.storageDir, containerMapFile)
	if err := os.WriteFile(mapPath, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %q: %w", mapPath, err)
	}
	return nil
}

// Stats reports per-container HeapFile stats for diagnostics and tests.
func (sm *StorageManager) Stats() map[string]interface{} {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	containers := make(map[string]interface{}, len(sm.heapFiles))
	for id, hf := range sm.heapFiles {
		containers[strconv.FormatUint(uint64(id), 10)] = hf.Stats()
	}
	return map[string]interface{}{
		"storage_dir":    sm.storageDir,
		"is_temp":        sm.isTemp,
		"compression":    sm.cfg.Compression,
		"num_containers": len(sm.paths),
		"containers":     containers,
	}
}
