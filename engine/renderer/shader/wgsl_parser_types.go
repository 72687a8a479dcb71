package shader

import "github.com/cogentcore/webgpu/wgpu"

// vertexFormatInfo holds the wgpu vertex format and its byte size for offset calculation
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// wgslTypeLayout holds the byte size and alignment of a WGSL type, used for MinBindingSize.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField is one field of a parsed WGSL struct. location is -1 without @location.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct is a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}
