package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/giantswarm/foo-controller/pkg/logging"
)

const defaultDebounceInterval = 500 * time.Millisecond

// Filesystem is a Store backed by YAML manifests on disk. Objects of a kind
// are read from <basePath>/<resource>/*.yaml (multiple documents per file are
// allowed) and kept in an embedded Memory store, which also holds status.
// Run watches the directories and applies file changes as they happen.
type Filesystem struct {
	*Memory

	basePath         string
	kinds            []Kind
	debounceInterval time.Duration

	mu sync.Mutex

	// loaded maps a file path to the keys of the objects it defined.
	loaded map[string][]fileObject

	// pending holds debounce timers per file path.
	pending map[string]*time.Timer
}

// fileObject identifies an object loaded from a manifest file.
type fileObject struct {
	kind Kind
	key  string
}

// FilesystemOption configures a Filesystem store.
type FilesystemOption func(*Filesystem)

// WithDebounceInterval sets how long file events are coalesced before a
// file is reloaded.
func WithDebounceInterval(d time.Duration) FilesystemOption {
	return func(f *Filesystem) {
		f.debounceInterval = d
	}
}

// WithMemory replaces the backing Memory store, for example to install
// validators.
func WithMemory(m *Memory) FilesystemOption {
	return func(f *Filesystem) {
		f.Memory = m
	}
}

// NewFilesystem creates a filesystem store for the given kinds.
func NewFilesystem(basePath string, kinds []Kind, opts ...FilesystemOption) *Filesystem {
	f := &Filesystem{
		basePath:         basePath,
		kinds:            kinds,
		debounceInterval: defaultDebounceInterval,
		loaded:           make(map[string][]fileObject),
		pending:          make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.Memory == nil {
		f.Memory = NewMemory()
	}
	return f
}

// kindDir returns the directory holding manifests of kind.
func (f *Filesystem) kindDir(kind Kind) string {
	return filepath.Join(f.basePath, kind.Resource)
}

// Load reads every manifest below the base path. Missing kind directories
// are created.
func (f *Filesystem) Load(ctx context.Context) error {
	for _, kind := range f.kinds {
		dir := f.kindDir(kind)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &TransportError{Op: "load " + kind.String(), Err: err}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return &TransportError{Op: "load " + kind.String(), Err: err}
		}
		for _, entry := range entries {
			if entry.IsDir() || !isYAMLFile(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := f.loadFile(ctx, kind, path); err != nil {
				logging.Warn("FilesystemStore", "Skipping %s: %v", path, err)
			}
		}
	}

	logging.Info("FilesystemStore", "Loaded manifests from %s", f.basePath)
	return nil
}

// Run watches the kind directories and reloads changed files until ctx is
// cancelled.
func (f *Filesystem) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &TransportError{Op: "watch " + f.basePath, Err: err}
	}
	defer watcher.Close()

	for _, kind := range f.kinds {
		dir := f.kindDir(kind)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &TransportError{Op: "watch " + kind.String(), Err: err}
		}
		if err := watcher.Add(dir); err != nil {
			return &TransportError{Op: "watch " + kind.String(), Err: err}
		}
		logging.Debug("FilesystemStore", "Watching directory: %s", dir)
	}

	defer f.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			f.handleFsEvent(ctx, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("FilesystemStore", err, "Filesystem watcher error")
		}
	}
}

// handleFsEvent schedules a debounced reload of the file behind event.
func (f *Filesystem) handleFsEvent(ctx context.Context, event fsnotify.Event) {
	if !isYAMLFile(event.Name) {
		return
	}
	kind, ok := f.kindForPath(event.Name)
	if !ok {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	path := event.Name

	f.mu.Lock()
	defer f.mu.Unlock()

	if timer, ok := f.pending[path]; ok {
		timer.Stop()
	}
	f.pending[path] = time.AfterFunc(f.debounceInterval, func() {
		f.mu.Lock()
		delete(f.pending, path)
		f.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if err := f.loadFile(ctx, kind, path); err != nil {
			logging.Warn("FilesystemStore", "Failed to reload %s: %v", path, err)
		}
	})
}

// loadFile makes the store reflect the current content of path: objects it
// defines are created or updated, objects it no longer defines are deleted.
// A file that does not exist anymore deletes everything it defined.
func (f *Filesystem) loadFile(ctx context.Context, kind Kind, path string) error {
	objects, err := readManifests(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	var current []fileObject
	for _, obj := range objects {
		if obj.GroupVersionKind() != kind.GroupVersionKind {
			logging.Warn("FilesystemStore", "Ignoring %s %q in %s: expected %s", obj.GroupVersionKind(), obj.GetName(), path, kind.GroupVersionKind)
			continue
		}
		if kind.Namespaced && obj.GetNamespace() == "" {
			obj.SetNamespace("default")
		}
		if !kind.Namespaced {
			obj.SetNamespace("")
		}
		if _, err := f.Upsert(ctx, kind, obj); err != nil {
			logging.Warn("FilesystemStore", "Failed to store %s %q from %s: %v", kind.Kind, obj.GetName(), path, err)
			continue
		}
		current = append(current, fileObject{kind: kind, key: ObjectKey(obj.GetNamespace(), obj.GetName())})
	}

	f.mu.Lock()
	previous := f.loaded[path]
	if len(current) == 0 {
		delete(f.loaded, path)
	} else {
		f.loaded[path] = current
	}
	f.mu.Unlock()

	for _, prev := range previous {
		if slices.Contains(current, prev) {
			continue
		}
		namespace, name := splitObjectKey(prev.key)
		if err := f.Delete(ctx, prev.kind, namespace, name); err != nil && !IsNotFound(err) {
			logging.Warn("FilesystemStore", "Failed to delete %s %q: %v", prev.kind.Kind, prev.key, err)
		}
	}

	logging.Debug("FilesystemStore", "Loaded %d object(s) from %s", len(current), path)
	return nil
}

// kindForPath maps a manifest path to the kind whose directory contains it.
func (f *Filesystem) kindForPath(path string) (Kind, bool) {
	dir := filepath.Dir(path)
	for _, kind := range f.kinds {
		if filepath.Clean(f.kindDir(kind)) == filepath.Clean(dir) {
			return kind, true
		}
	}
	return Kind{}, false
}

func (f *Filesystem) cancelPending() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, timer := range f.pending {
		timer.Stop()
	}
	f.pending = make(map[string]*time.Timer)
}

// readManifests decodes every non-empty YAML document in path.
func readManifests(path string) ([]*unstructured.Unstructured, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var objects []*unstructured.Unstructured
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	for i := 0; ; i++ {
		var node yaml.Node
		if err := decoder.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if len(node.Content) == 0 || (node.Content[0].Kind == yaml.ScalarNode && node.Content[0].Tag == "!!null") {
			continue
		}

		doc, err := yaml.Marshal(&node)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		raw, err := sigsyaml.YAMLToJSON(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}

		obj := &unstructured.Unstructured{}
		if err := obj.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func splitObjectKey(key string) (namespace, name string) {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

// isYAMLFile checks if a file path is a YAML file.
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
