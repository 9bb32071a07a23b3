// Package pipeline builds descriptor set layouts, vertex input descriptions
// and graphics pipelines from shader metadata.
package pipeline

import (
	"sort"

	"github.com/gogpu/gputypes"
	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/assets"
	"github.com/ChewyGumball/bengine-sub000/driver"
)

var (
	ErrBufferBlock            = errors.New("buffer block uniforms are not supported")
	ErrUnknownUniformType     = errors.New("unknown uniform type")
	ErrUnsupportedStage       = errors.New("unsupported shader stage")
	ErrDuplicateBinding       = errors.New("duplicate uniform binding")
	ErrMissingVertexAttribute = errors.New("mesh has no attribute for shader input")
	ErrUnsupportedFormat      = errors.New("unsupported vertex format")
)

// Vertex buffer bindings used by every pipeline.
const (
	VertexBinding   = 0
	InstanceBinding = 1
)

func shaderStage(s assets.Stage) (driver.ShaderStage, error) {
	switch s {
	case assets.StageVertex:
		return driver.ShaderVertex, nil
	case assets.StageFragment:
		return driver.ShaderFragment, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedStage, "%s", s)
}

func descriptorType(t assets.UniformType) (driver.DescriptorType, error) {
	switch t.(type) {
	case assets.BufferLayout, *assets.BufferLayout:
		return driver.DescriptorUniformBuffer, nil
	case assets.SamplerLayout, *assets.SamplerLayout:
		return driver.DescriptorCombinedImageSampler, nil
	case assets.BlockLayout, *assets.BlockLayout:
		return 0, ErrBufferBlock
	}
	return 0, ErrUnknownUniformType
}

// LayoutBindings returns one descriptor binding per uniform of the shader,
// ordered by binding index.
func LayoutBindings(shader *assets.Shader) ([]driver.DescriptorBinding, error) {
	bindings := make([]driver.DescriptorBinding, 0, len(shader.Uniforms))
	owners := make(map[uint32]string, len(shader.Uniforms))

	for name, u := range shader.Uniforms {
		typ, err := descriptorType(u.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "uniform %q", name)
		}
		stage, err := shaderStage(u.Stage)
		if err != nil {
			return nil, errors.Wrapf(err, "uniform %q", name)
		}
		if other, ok := owners[u.Binding]; ok {
			a, b := other, name
			if b < a {
				a, b = b, a
			}
			return nil, errors.Wrapf(ErrDuplicateBinding, "%q and %q use binding %d", a, b, u.Binding)
		}
		owners[u.Binding] = name

		bindings = append(bindings, driver.DescriptorBinding{
			Binding: u.Binding,
			Type:    typ,
			Count:   1,
			Stages:  stage,
		})
	}

	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Binding < bindings[j].Binding })
	return bindings, nil
}

func vertexFormat(f gputypes.VertexFormat) (driver.Format, error) {
	switch f {
	case gputypes.VertexFormatFloat32:
		return driver.FormatR32Sfloat, nil
	case gputypes.VertexFormatFloat32x2:
		return driver.FormatR32G32Sfloat, nil
	case gputypes.VertexFormatFloat32x3:
		return driver.FormatR32G32B32Sfloat, nil
	case gputypes.VertexFormatFloat32x4:
		return driver.FormatR32G32B32A32Sfloat, nil
	}
	return driver.FormatUndefined, errors.Wrapf(ErrUnsupportedFormat, "%v", f)
}

// VertexInput describes how the shader inputs are fed. Binding 0 advances
// per vertex through the mesh format. Binding 1, present only when the
// shader has instance data, advances per instance.
func VertexInput(shader *assets.Shader, format assets.VertexFormat) ([]driver.VertexBinding, []driver.VertexAttribute, error) {
	bindings := []driver.VertexBinding{{Binding: VertexBinding, Stride: format.Stride, Rate: driver.RatePerVertex}}

	var attributes []driver.VertexAttribute
	for name, in := range shader.Inputs {
		attr, ok := format.Attributes[name]
		if !ok {
			return nil, nil, errors.Wrapf(ErrMissingVertexAttribute, "%q", name)
		}
		f, err := vertexFormat(attr.Format)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "attribute %q", name)
		}
		attributes = append(attributes, driver.VertexAttribute{
			Location: in.Location,
			Binding:  VertexBinding,
			Format:   f,
			Offset:   attr.Offset,
		})
	}

	if inst := shader.Instance; inst != nil {
		bindings = append(bindings, driver.VertexBinding{Binding: InstanceBinding, Stride: inst.Stride, Rate: driver.RatePerInstance})
		for name, in := range inst.Inputs {
			f, err := vertexFormat(in.Format)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "instance input %q", name)
			}
			attributes = append(attributes, driver.VertexAttribute{
				Location: in.Location,
				Binding:  InstanceBinding,
				Format:   f,
				Offset:   in.Offset,
			})
		}
	}

	sort.Slice(attributes, func(i, j int) bool { return attributes[i].Location < attributes[j].Location })
	return bindings, attributes, nil
}
