package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// stage identifies which entry point a lookup is for.
type stage int

const (
	stageVertex stage = iota
	stageFragment
)

// wgslVertexFormatMap maps WGSL attribute types to their wgpu vertex format and byte size.
var wgslVertexFormatMap = map[string]vertexFormatInfo{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2f":     {wgpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3f":     {wgpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4f":     {wgpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"i32":       {wgpu.VertexFormatSint32, 4},
}

// wgslSampledTextureMap maps sampled texture base names to their view dimension.
var wgslSampledTextureMap = map[string]wgpu.TextureViewDimension{
	"texture_2d":       wgpu.TextureViewDimension2D,
	"texture_2d_array": wgpu.TextureViewDimension2DArray,
	"texture_3d":       wgpu.TextureViewDimension3D,
	"texture_cube":     wgpu.TextureViewDimensionCube,
}

// wgslSampleTypeMap maps texture scalar parameters to their wgpu sample type.
var wgslSampleTypeMap = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field: optional attributes, name, colon, type
	fieldRegex = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)

	vertexEntryRegex   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name and type
	// from declarations like: @group(0) @binding(3) var<storage, read> regions: array<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseEntryPoint extracts the entry point name for a stage. Returns an empty string if none is declared.
//
// Parameters:
//   - source: the WGSL source
//   - st: the stage to look up
//
// Returns:
//   - string: the entry point function name, or empty string if not found
func parseEntryPoint(source string, st stage) string {
	cleaned := stripComments(source)

	re := vertexEntryRegex
	if st == stageFragment {
		re = fragmentEntryRegex
	}
	if match := re.FindStringSubmatch(cleaned); match != nil {
		return match[1]
	}
	return ""
}

// parseVertexLayouts extracts vertex buffer layouts from every pure vertex input struct, meaning
// a struct with @location fields and no @builtin fields. Structs with unmapped types are skipped.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - map[int][]wgpu.VertexBufferLayout: vertex layouts keyed by sequential index
func parseVertexLayouts(source string) map[int][]wgpu.VertexBufferLayout {
	result := make(map[int][]wgpu.VertexBufferLayout)
	structs := parseStructBlocks(stripComments(source))

	layoutIndex := 0
	for _, ps := range structs {
		if !isVertexInputStruct(ps) {
			continue
		}
		layout, ok := buildVertexBufferLayout(ps)
		if !ok {
			continue
		}
		result[layoutIndex] = []wgpu.VertexBufferLayout{layout}
		layoutIndex++
	}
	return result
}

// parseBindGroupLayout extracts the resource declarations of one bind group. An entry is visible
// to every stage whose entry point body names the variable; a variable no entry point names
// directly is made visible to all listed stages.
//
// Parameters:
//   - source: the WGSL source
//   - group: the bind group index to extract
//   - entries: entry point names keyed by the stage they run in
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the layout with entries sorted by binding
//   - map[int]string: variable names keyed by binding index
func parseBindGroupLayout(source string, group int, entries map[wgpu.ShaderStage]string) (wgpu.BindGroupLayoutDescriptor, map[int]string) {
	cleaned := stripComments(source)
	structSizes := computeStructSizes(parseStructBlocks(cleaned))

	bodies := make(map[wgpu.ShaderStage]string, len(entries))
	var allStages wgpu.ShaderStage
	for st, name := range entries {
		bodies[st] = functionBody(cleaned, name)
		allStages |= st
	}

	var layoutEntries []wgpu.BindGroupLayoutEntry
	varNames := make(map[int]string)
	for _, match := range bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		g, _ := strconv.Atoi(match[1])
		if g != group {
			continue
		}
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		varName := strings.TrimSpace(match[4])
		typeName := strings.TrimSpace(match[5])

		var visibility wgpu.ShaderStage
		ident := regexp.MustCompile(`\b` + regexp.QuoteMeta(varName) + `\b`)
		for st, body := range bodies {
			if ident.MatchString(body) {
				visibility |= st
			}
		}
		if visibility == wgpu.ShaderStageNone {
			visibility = allStages
		}

		entry := classifyResource(uint32(binding), visibility, addressSpace, typeName)
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if layout, ok := resolveTypeLayout(typeName, structSizes); ok && layout.size > 0 {
				entry.Buffer.MinBindingSize = layout.size
			}
		}
		layoutEntries = append(layoutEntries, entry)
		varNames[binding] = varName
	}

	sort.Slice(layoutEntries, func(i, j int) bool {
		return layoutEntries[i].Binding < layoutEntries[j].Binding
	})
	return wgpu.BindGroupLayoutDescriptor{Entries: layoutEntries}, varNames
}

// functionBody returns the brace-delimited body of the named function, or an empty string.
func functionBody(source, name string) string {
	if name == "" {
		return ""
	}
	loc := regexp.MustCompile(`\bfn\s+` + regexp.QuoteMeta(name) + `\s*\(`).FindStringIndex(source)
	if loc == nil {
		return ""
	}
	open := strings.IndexByte(source[loc[1]:], '{')
	if open < 0 {
		return ""
	}
	start := loc[1] + open
	depth := 0
	for i := start; i < len(source); i++ {
		switch source[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return source[start+1 : i]
			}
		}
	}
	return source[start+1:]
}

// parseStructBlocks finds all struct blocks in comment-free source and parses their fields.
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}
	return structs
}

// parseStructFields parses a struct body into fields with their @location and @builtin attributes.
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := parsedField{location: -1, isBuiltin: builtinRegex.MatchString(line)}
		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])
		fields = append(fields, field)
	}
	return fields
}
