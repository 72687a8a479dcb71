package loader

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithDescriptor is an option builder that pre-populates the cache with a descriptor.
//
// Parameters:
//   - key: the cache key for the descriptor
//   - d: the descriptor to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the descriptor option to a loader
func WithDescriptor(key string, d *SourceDescriptor) LoaderBuilderOption {
	return func(l *loader) {
		l.descriptorCache[key] = d
	}
}

// WithLenientFields makes the YAML backend ignore unknown keys instead of rejecting them.
//
// Returns:
//   - LoaderBuilderOption: a function that relaxes field checking on the loader's backend
func WithLenientFields() LoaderBuilderOption {
	return func(l *loader) {
		if b, ok := l.backend.(*yamlLoaderBackendImpl); ok {
			b.knownFields = false
		}
	}
}
