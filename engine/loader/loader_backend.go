package loader

import "io"

// loaderBackend decodes a descriptor from a stream. Concrete implementations handle
// format-specific details; validation happens in the loader.
type loaderBackend interface {
	// Decode reads one descriptor from r.
	//
	// Parameters:
	//   - r: the reader providing descriptor data
	//
	// Returns:
	//   - *SourceDescriptor: the decoded, not yet validated descriptor
	//   - error: error if decoding fails
	Decode(r io.Reader) (*SourceDescriptor, error)
}
