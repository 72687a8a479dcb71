package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LoaderBackendType identifies the descriptor file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeYAML selects the YAML backend. It also reads JSON descriptors.
	BackendTypeYAML LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	descriptorCache map[string]*SourceDescriptor

	backend loaderBackend
}

// Loader loads and caches source descriptors. It abstracts the file format behind a backend
// and validates every descriptor before caching it.
type Loader interface {
	// Load reads a descriptor file and caches the result by path.
	// If the descriptor is already cached, the cached version is returned.
	// Effect image paths are resolved relative to the descriptor's directory.
	//
	// Parameters:
	//   - path: the descriptor file path (.yaml, .yml or .json)
	//
	// Returns:
	//   - *SourceDescriptor: the validated descriptor
	//   - error: error if reading, decoding or validation fails
	Load(path string) (*SourceDescriptor, error)

	// LoadReader decodes a descriptor from a reader and caches it under name.
	//
	// Parameters:
	//   - name: the cache key for the descriptor
	//   - r: the reader providing descriptor data
	//
	// Returns:
	//   - *SourceDescriptor: the validated descriptor
	//   - error: error if decoding or validation fails
	LoadReader(name string, r io.Reader) (*SourceDescriptor, error)

	// Get retrieves a cached descriptor by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - *SourceDescriptor: the cached descriptor or nil
	Get(name string) *SourceDescriptor

	// Invalidate drops a cached descriptor so the next Load reads the file again.
	//
	// Parameters:
	//   - name: the cache key to drop
	Invalidate(name string)

	// Descriptors returns a copy of the descriptor cache.
	//
	// Returns:
	//   - map[string]*SourceDescriptor: all cached descriptors keyed by name
	Descriptors() map[string]*SourceDescriptor
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeYAML)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:              sync.RWMutex{},
		descriptorCache: make(map[string]*SourceDescriptor),
	}

	switch backendType {
	case BackendTypeYAML:
		l.backend = newYAMLLoaderBackend()
	}

	for _, option := range options {
		option(l)
	}
	return l
}

// LoadDescriptor is a convenience wrapper reading a single descriptor file without caching.
//
// Parameters:
//   - path: the descriptor file path
//
// Returns:
//   - *SourceDescriptor: the validated descriptor
//   - error: error if loading fails
func LoadDescriptor(path string) (*SourceDescriptor, error) {
	return NewLoader(BackendTypeYAML).Load(path)
}

func (l *loader) Load(path string) (*SourceDescriptor, error) {
	l.mu.RLock()
	if cached, ok := l.descriptorCache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open descriptor %s: %w", path, err)
	}
	defer f.Close()

	d, err := backend.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor %s: %w", path, err)
	}

	d.source = path
	dir := filepath.Dir(path)
	for i, e := range d.Effects {
		if e.Image != "" && !filepath.IsAbs(e.Image) {
			d.Effects[i].Image = filepath.Join(dir, e.Image)
		}
	}

	l.mu.Lock()
	l.descriptorCache[path] = d
	l.mu.Unlock()

	return d, nil
}

func (l *loader) LoadReader(name string, r io.Reader) (*SourceDescriptor, error) {
	d, err := l.backend.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor %s: %w", name, err)
	}

	l.mu.Lock()
	l.descriptorCache[name] = d
	l.mu.Unlock()

	return d, nil
}

func (l *loader) Get(name string) *SourceDescriptor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.descriptorCache[name]
}

func (l *loader) Invalidate(name string) {
	l.mu.Lock()
	delete(l.descriptorCache, name)
	l.mu.Unlock()
}

func (l *loader) Descriptors() map[string]*SourceDescriptor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make(map[string]*SourceDescriptor, len(l.descriptorCache))
	for k, v := range l.descriptorCache {
		cp[k] = v
	}
	return cp
}

// resolveBackend selects the loader backend based on the file extension.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
		return l.backend, nil
	default:
		return nil, fmt.Errorf("unsupported descriptor format: %s", ext)
	}
}
