// Package assets holds the descriptions of shaders, meshes and textures the
// asset compiler produces and the renderer consumes, along with decoders for
// the source formats used during development.
package assets

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Stage is a programmable pipeline stage.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
	StageGeometry
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageGeometry:
		return "geometry"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageCode is the compiled code of one stage.
type StageCode struct {
	Stage      Stage
	Code       []byte
	EntryPoint string
}

// UniformType is the layout of a uniform. It is one of BufferLayout,
// SamplerLayout or BlockLayout.
type UniformType interface {
	uniformType()
}

// BufferLayout is a uniform buffer of plain variables.
type BufferLayout struct {
	Size uint32
}

// SamplerLayout is a combined image sampler.
type SamplerLayout struct{}

// BlockLayout is a buffer block of variables, such as a storage buffer.
type BlockLayout struct {
	Size uint32
}

func (BufferLayout) uniformType()  {}
func (SamplerLayout) uniformType() {}
func (BlockLayout) uniformType()   {}

// Uniform is a resource a shader reads, by binding index.
type Uniform struct {
	Binding uint32
	Stage   Stage
	Type    UniformType
}

// VertexInput is a per vertex shader input. It is fed from the mesh vertex
// attribute of the same name.
type VertexInput struct {
	Location uint32
}

// InstanceInput is a per instance shader input.
type InstanceInput struct {
	Location uint32
	Offset   uint32
	Format   gputypes.VertexFormat
}

// InstanceLayout describes the per instance data of a shader.
type InstanceLayout struct {
	Stride uint32
	Inputs map[string]InstanceInput
}

// Shader is a compiled shader program.
type Shader struct {
	Name     string
	Stages   []StageCode
	Uniforms map[string]Uniform
	Inputs   map[string]VertexInput
	// Instance is nil for shaders without per instance data.
	Instance *InstanceLayout
}
