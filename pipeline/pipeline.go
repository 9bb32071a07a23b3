package pipeline

import (
	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/assets"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/transfer"
)

// DefaultMaxSets is how many descriptor sets each pipeline's pool holds.
const DefaultMaxSets = 64

var (
	// ErrUnknownUniform is returned when binding a name the shader lacks.
	ErrUnknownUniform = errors.New("shader has no uniform with that name")
	// ErrUniformType is returned when binding a resource of the wrong kind.
	ErrUniformType = errors.New("resource does not match uniform type")
)

// Pipeline is a graphics pipeline with its layouts and a pool for the
// descriptor sets it binds.
type Pipeline struct {
	Handle    driver.Pipeline
	Layout    driver.PipelineLayout
	SetLayout driver.DescriptorSetLayout
	Bindings  []driver.DescriptorBinding
	// Instanced reports whether the pipeline reads per instance data from
	// InstanceBinding.
	Instanced bool

	dev      driver.Device
	pool     driver.DescriptorPool
	uniforms map[string]driver.DescriptorBinding
}

// New builds a pipeline drawing meshes of the given vertex format with
// shader into subpass 0 of renderPass. The pipeline draws triangle lists
// with back face culling, clockwise front faces, a less than depth test
// with writes, one sample and no blending. Viewport and scissor are
// dynamic.
func New(dev driver.Device, renderPass driver.RenderPass, shader *assets.Shader, format assets.VertexFormat) (_ *Pipeline, err error) {
	bindings, err := LayoutBindings(shader)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %q", shader.Name)
	}
	vertexBindings, attributes, err := VertexInput(shader, format)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %q", shader.Name)
	}

	p := &Pipeline{
		Bindings:  bindings,
		Instanced: shader.Instance != nil,
		dev:       dev,
		uniforms:  make(map[string]driver.DescriptorBinding, len(shader.Uniforms)),
	}
	for name, u := range shader.Uniforms {
		for _, b := range bindings {
			if b.Binding == u.Binding {
				p.uniforms[name] = b
			}
		}
	}
	defer func() {
		if err != nil {
			p.Destroy()
		}
	}()

	modules := make([]driver.ShaderModule, 0, len(shader.Stages))
	defer func() {
		for _, m := range modules {
			dev.DestroyShaderModule(m)
		}
	}()

	var stages []driver.ShaderStageInfo
	for _, s := range shader.Stages {
		var stage driver.ShaderStage
		if stage, err = shaderStage(s.Stage); err != nil {
			return nil, errors.Wrapf(err, "shader %q", shader.Name)
		}
		var m driver.ShaderModule
		if m, err = dev.CreateShaderModule(s.Code); err != nil {
			return nil, errors.Wrapf(err, "create %s shader module for %q", s.Stage, shader.Name)
		}
		modules = append(modules, m)

		entry := s.EntryPoint
		if entry == "" {
			entry = "main"
		}
		stages = append(stages, driver.ShaderStageInfo{Stage: stage, Module: m, EntryPoint: entry})
	}

	if p.SetLayout, err = dev.CreateDescriptorSetLayout(bindings); err != nil {
		return nil, errors.Wrap(err, "create descriptor set layout")
	}
	if p.Layout, err = dev.CreatePipelineLayout([]driver.DescriptorSetLayout{p.SetLayout}); err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}

	sizes := make(map[driver.DescriptorType]uint32)
	for _, b := range bindings {
		sizes[b.Type] += b.Count * DefaultMaxSets
	}
	if p.pool, err = dev.CreateDescriptorPool(driver.DescriptorPoolCreateInfo{MaxSets: DefaultMaxSets, Sizes: sizes}); err != nil {
		return nil, errors.Wrap(err, "create descriptor pool")
	}

	p.Handle, err = dev.CreateGraphicsPipeline(driver.GraphicsPipelineCreateInfo{
		Layout:       p.Layout,
		RenderPass:   renderPass,
		Subpass:      0,
		Stages:       stages,
		Bindings:     vertexBindings,
		Attributes:   attributes,
		CullMode:     driver.CullBack,
		FrontFace:    driver.FrontFaceClockwise,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: driver.CompareLess,
		Samples:      1,
		Blend:        false,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create graphics pipeline for %q", shader.Name)
	}
	return p, nil
}

// AllocateSets allocates n descriptor sets with the pipeline's layout.
func (p *Pipeline) AllocateSets(n int) ([]driver.DescriptorSet, error) {
	layouts := make([]driver.DescriptorSetLayout, n)
	for i := range layouts {
		layouts[i] = p.SetLayout
	}
	sets, err := p.dev.AllocateDescriptorSets(p.pool, layouts)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %d descriptor sets", n)
	}
	return sets, nil
}

// AllocateSet allocates one descriptor set.
func (p *Pipeline) AllocateSet() (driver.DescriptorSet, error) {
	sets, err := p.AllocateSets(1)
	if err != nil {
		return 0, err
	}
	return sets[0], nil
}

func (p *Pipeline) uniform(name string, want driver.DescriptorType) (driver.DescriptorBinding, error) {
	b, ok := p.uniforms[name]
	if !ok {
		return b, errors.Wrapf(ErrUnknownUniform, "%q", name)
	}
	if b.Type != want {
		return b, errors.Wrapf(ErrUniformType, "%q is a %s", name, b.Type)
	}
	return b, nil
}

// BindBuffer points the named uniform buffer of set at buf.
func (p *Pipeline) BindBuffer(set driver.DescriptorSet, name string, buf *transfer.Buffer) error {
	b, err := p.uniform(name, driver.DescriptorUniformBuffer)
	if err != nil {
		return err
	}
	p.dev.UpdateDescriptorSet(set, []driver.DescriptorWrite{{
		Binding: b.Binding,
		Type:    b.Type,
		Buffer:  buf.Handle,
		Range:   buf.Size,
	}})
	return nil
}

// BindTexture points the named sampler of set at tex.
func (p *Pipeline) BindTexture(set driver.DescriptorSet, name string, tex *transfer.Texture) error {
	b, err := p.uniform(name, driver.DescriptorCombinedImageSampler)
	if err != nil {
		return err
	}
	p.dev.UpdateDescriptorSet(set, []driver.DescriptorWrite{{
		Binding: b.Binding,
		Type:    b.Type,
		View:    tex.View,
		Sampler: tex.Sampler,
	}})
	return nil
}

// Destroy destroys the pipeline, its layouts and its descriptor pool along
// with every set allocated from it.
func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	if p.Handle != 0 {
		p.dev.DestroyPipeline(p.Handle)
		p.Handle = 0
	}
	if p.pool != 0 {
		p.dev.DestroyDescriptorPool(p.pool)
		p.pool = 0
	}
	if p.Layout != 0 {
		p.dev.DestroyPipelineLayout(p.Layout)
		p.Layout = 0
	}
	if p.SetLayout != 0 {
		p.dev.DestroyDescriptorSetLayout(p.SetLayout)
		p.SetLayout = 0
	}
}
