package loader

import (
	"fmt"
	"io"

	"github.com/Carmen-Shannon/alphavid/common"
	"gopkg.in/yaml.v3"
)

// yamlLoaderBackendImpl decodes YAML and JSON descriptors with yaml.v3.
type yamlLoaderBackendImpl struct {
	knownFields bool
}

var _ loaderBackend = &yamlLoaderBackendImpl{}

func newYAMLLoaderBackend() loaderBackend {
	return &yamlLoaderBackendImpl{knownFields: true}
}

func (b *yamlLoaderBackendImpl) Decode(r io.Reader) (*SourceDescriptor, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(b.knownFields)

	var d SourceDescriptor
	if err := dec.Decode(&d); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty descriptor", common.ErrConfiguration)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return &d, nil
}
