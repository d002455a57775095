package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// snapshot is the copy-on-write index FileStore readers observe. A hot
// reload builds a fresh snapshot and swaps the atomic pointer; readers that
// already hold a *snapshot never see a torn read.
type snapshot struct {
	byID  map[string]*model.Resource
	edges []model.DependencyEdge
}

// FileStore is the file-backed (mock mode) Topology Store: it loads
// data/topology.json at startup and, when watch is enabled, hot-reloads on
// write via fsnotify.
type FileStore struct {
	path     string
	current  atomic.Pointer[snapshot]
	watcher  *fsnotify.Watcher
}

// NewFileStore loads path once and returns a ready Store.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	if err := fs.reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Watch starts an fsnotify watcher that reloads the snapshot whenever path
// changes. Callers that don't need hot-reload (most tests) can skip this.
func (fs *FileStore) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("topology: start watcher: %w", err)
	}
	if err := w.Add(fs.path); err != nil {
		w.Close()
		return fmt.Errorf("topology: watch %s: %w", fs.path, err)
	}
	fs.watcher = w
	go fs.watchLoop()
	return nil
}

func (fs *FileStore) watchLoop() {
	for {
		select {
		case ev, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := fs.reload(); err != nil {
				slog.Warn("topology: reload failed", "path", fs.path, "err", err)
			} else {
				slog.Info("topology: reloaded", "path", fs.path)
			}
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("topology: watcher error", "err", err)
		}
	}
}

// Close stops the hot-reload watcher, if started.
func (fs *FileStore) Close() error {
	if fs.watcher != nil {
		return fs.watcher.Close()
	}
	return nil
}

func (fs *FileStore) reload() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return fmt.Errorf("topology: read %s: %w", fs.path, err)
	}
	var doc model.Topology
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("topology: parse %s: %w", fs.path, err)
	}

	byID := make(map[string]*model.Resource, len(doc.Resources))
	for i := range doc.Resources {
		r := &doc.Resources[i]
		byID[r.Key()] = r
	}
	fs.current.Store(&snapshot{byID: byID, edges: doc.DependencyEdges})
	return nil
}

// Lookup implements Store.
func (fs *FileStore) Lookup(ctx context.Context, resourceID string) (*model.Resource, bool, error) {
	snap := fs.current.Load()
	r, ok := snap.byID[resourceID]
	return r, ok, nil
}

// Neighbors implements Store.
func (fs *FileStore) Neighbors(ctx context.Context, resourceID string) (Neighborhood, error) {
	snap := fs.current.Load()
	return oneHop(resourceID, snap.byID, snap.edges), nil
}

var _ Store = (*FileStore)(nil)
