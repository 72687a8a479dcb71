package shader

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

// Variant selects one of the embedded compositing shaders.
type Variant int

const (
	// VariantComposite is the two-region RGB + alpha shader.
	VariantComposite Variant = iota

	// VariantRegions adds multi-region element compositing on top of VariantComposite.
	VariantRegions
)

var variantFiles = map[Variant]string{
	VariantComposite: "composite",
	VariantRegions:   "composite_regions",
}

// String returns the embedded file name of the variant.
func (v Variant) String() string {
	if name, ok := variantFiles[v]; ok {
		return name
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// shader is the implementation of the Shader interface.
// It holds the expanded source and the reflection data the pipeline needs.
type shader struct {
	key           string
	source        string
	vertexEntry   string
	fragmentEntry string
	vertexLayouts map[int][]wgpu.VertexBufferLayout
	layout        wgpu.BindGroupLayoutDescriptor
	varNames      map[int]string
	module        *wgpu.ShaderModuleDescriptor
	includes      []string
}

// Shader is a parsed WGSL module holding both the vertex and the fragment stage.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used as the module label.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the expanded WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source after include expansion
	Source() string

	// VertexEntry returns the @vertex entry point name.
	//
	// Returns:
	//   - string: the entry point name, e.g. "vertMain"
	VertexEntry() string

	// FragmentEntry returns the @fragment entry point name.
	//
	// Returns:
	//   - string: the entry point name, e.g. "fragMain"
	FragmentEntry() string

	// VertexLayout retrieves the vertex buffer layout for a specific key.
	//
	// Parameters:
	//   - key: the integer key identifying the vertex layout
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the vertex buffer layout associated with the key, or nil if not set
	VertexLayout(key int) []wgpu.VertexBufferLayout

	// BindGroupLayoutDescriptor retrieves the group 0 layout with entries sorted by binding.
	// Each entry is visible to the stages whose entry point references it.
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the layout descriptor for group 0
	BindGroupLayoutDescriptor() wgpu.BindGroupLayoutDescriptor

	// BindingVarName retrieves the variable name declared at a binding index.
	//
	// Parameters:
	//   - binding: the binding index within group 0
	//
	// Returns:
	//   - string: the variable name, or an empty string if not found
	BindingVarName(binding int) string

	// BindingFromVarName retrieves the binding index of a variable.
	//
	// Parameters:
	//   - varName: the WGSL variable name
	//
	// Returns:
	//   - int: the binding index, or -1 if not found
	//   - bool: true if the variable was found
	BindingFromVarName(varName string) (int, bool)

	// Module returns the shader module descriptor built from the expanded source.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor

	// Includes returns the chunk names the source pulled in.
	//
	// Returns:
	//   - []string: chunk names in expansion order
	Includes() []string

	// Validate compiles the source with naga to catch WGSL errors before the driver sees it.
	//
	// Returns:
	//   - error: the naga compile error wrapped with ErrConfiguration, or nil
	Validate() error
}

var _ Shader = &shader{}

// NewShader expands and parses a WGSL source holding a @vertex and a @fragment entry point.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - source: the raw WGSL source, which may contain include lines
//
// Returns:
//   - Shader: the parsed shader
//   - error: ErrConfiguration if expansion fails or an entry point is missing
func NewShader(key, source string) (Shader, error) {
	pp := NewPreProcessor()
	expanded, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("%w: shader %s: %v", common.ErrConfiguration, key, err)
	}

	s := &shader{
		key:      key,
		source:   expanded,
		includes: pp.Includes(),
	}
	s.vertexEntry = parseEntryPoint(expanded, stageVertex)
	s.fragmentEntry = parseEntryPoint(expanded, stageFragment)
	if s.vertexEntry == "" || s.fragmentEntry == "" {
		return nil, fmt.Errorf("%w: shader %s needs a @vertex and a @fragment entry point", common.ErrConfiguration, key)
	}

	s.vertexLayouts = parseVertexLayouts(expanded)
	s.layout, s.varNames = parseBindGroupLayout(expanded, 0, map[wgpu.ShaderStage]string{
		wgpu.ShaderStageVertex:   s.vertexEntry,
		wgpu.ShaderStageFragment: s.fragmentEntry,
	})
	s.layout.Label = key
	s.module = &wgpu.ShaderModuleDescriptor{
		Label: key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: expanded,
		},
	}
	return s, nil
}

// Load parses one of the embedded shader variants.
//
// Parameters:
//   - v: the variant to load
//
// Returns:
//   - Shader: the parsed shader
//   - error: ErrConfiguration for an unknown variant
func Load(v Variant) (Shader, error) {
	name, ok := variantFiles[v]
	if !ok {
		return nil, fmt.Errorf("%w: unknown shader variant %d", common.ErrConfiguration, int(v))
	}
	data, err := shaderFS.ReadFile(path.Join("shaders", name+".wgsl"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return NewShader(name, string(data))
}

// embeddedChunks returns every embedded .wgsl file keyed by its base name.
func embeddedChunks() map[string]string {
	chunks := make(map[string]string)
	entries, _ := fs.ReadDir(shaderFS, "shaders")
	for _, e := range entries {
		data, err := shaderFS.ReadFile(path.Join("shaders", e.Name()))
		if err != nil {
			continue
		}
		chunks[strings.TrimSuffix(e.Name(), ".wgsl")] = string(data)
	}
	return chunks
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) VertexEntry() string {
	return s.vertexEntry
}

func (s *shader) FragmentEntry() string {
	return s.fragmentEntry
}

func (s *shader) VertexLayout(key int) []wgpu.VertexBufferLayout {
	return s.vertexLayouts[key]
}

func (s *shader) BindGroupLayoutDescriptor() wgpu.BindGroupLayoutDescriptor {
	return s.layout
}

func (s *shader) BindingVarName(binding int) string {
	return s.varNames[binding]
}

func (s *shader) BindingFromVarName(varName string) (int, bool) {
	for binding, name := range s.varNames {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) Includes() []string {
	return s.includes
}

func (s *shader) Validate() error {
	if _, err := naga.Compile(s.source); err != nil {
		return fmt.Errorf("%w: shader %s: %v", common.ErrConfiguration, s.key, err)
	}
	return nil
}
