// pre_processor.go implements the WGSL include pre-processor. Shader sources reference shared
// chunks with @alphavid:include(name) lines; each line is replaced with the chunk's source.
// Chunks are the embedded .wgsl files under shaders/ plus any registered at runtime.
package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// includeRegex matches a whole include line and captures the chunk name.
var includeRegex = regexp.MustCompile(`(?m)^[ \t]*@alphavid:include\(\s*([\w.-]+)\s*\)[ \t]*$`)

// maxIncludeDepth bounds nested includes so a cycle fails instead of recursing forever.
const maxIncludeDepth = 8

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	chunks map[string]string

	// includes records the chunk names resolved during the most recent Process call, in source order.
	includes []string
}

// PreProcessor expands @alphavid:include annotations in WGSL source.
type PreProcessor interface {
	// Process replaces every @alphavid:include(name) line with the named chunk, recursively.
	// The include list is reset at the start of each call.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the expanded WGSL source
	//   - error: an error if a chunk is unknown or includes nest too deeply
	Process(source string) (string, error)

	// Register adds or replaces a named chunk.
	//
	// Parameters:
	//   - name: the chunk name used in include lines
	//   - source: the chunk's WGSL source
	Register(name, source string)

	// Includes returns the chunk names resolved by the last Process call.
	//
	// Returns:
	//   - []string: chunk names in the order they were expanded
	Includes() []string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor seeded with the embedded shader chunks.
//
// Returns:
//   - PreProcessor: a new pre-processor
func NewPreProcessor() PreProcessor {
	pp := &preProcessor{chunks: make(map[string]string)}
	for name, src := range embeddedChunks() {
		pp.chunks[name] = src
	}
	return pp
}

func (p *preProcessor) Register(name, source string) {
	p.chunks[name] = source
}

func (p *preProcessor) Includes() []string {
	return p.includes
}

func (p *preProcessor) Process(source string) (string, error) {
	p.includes = nil
	return p.expand(source, 0)
}

func (p *preProcessor) expand(source string, depth int) (string, error) {
	if depth > maxIncludeDepth {
		return "", fmt.Errorf("includes nested deeper than %d", maxIncludeDepth)
	}

	var firstErr error
	out := includeRegex.ReplaceAllStringFunc(source, func(line string) string {
		if firstErr != nil {
			return ""
		}
		name := includeRegex.FindStringSubmatch(line)[1]
		chunk, ok := p.chunks[name]
		if !ok {
			firstErr = fmt.Errorf("unknown include %q", name)
			return ""
		}
		p.includes = append(p.includes, name)
		expanded, err := p.expand(chunk, depth+1)
		if err != nil {
			firstErr = fmt.Errorf("include %q: %w", name, err)
			return ""
		}
		return strings.TrimRight(expanded, "\n")
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
