package pipeline_test

import (
	"testing"

	"github.com/gogpu/gputypes"
	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/assets"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/driver/fake"
	"github.com/ChewyGumball/bengine-sub000/pipeline"
	"github.com/ChewyGumball/bengine-sub000/transfer"
)

func texturedShader() *assets.Shader {
	return &assets.Shader{
		Name: "textured",
		Stages: []assets.StageCode{
			{Stage: assets.StageVertex, Code: make([]byte, 16), EntryPoint: "main"},
			{Stage: assets.StageFragment, Code: make([]byte, 16)},
		},
		Uniforms: map[string]assets.Uniform{
			"texSampler": {Binding: 1, Stage: assets.StageFragment, Type: assets.SamplerLayout{}},
			"ubo":        {Binding: 0, Stage: assets.StageVertex, Type: assets.BufferLayout{Size: 192}},
		},
		Inputs: map[string]assets.VertexInput{
			assets.AttributePosition: {Location: 0},
			assets.AttributeTexCoord: {Location: 1},
		},
	}
}

func TestLayoutBindingsAreOrderedByBinding(t *testing.T) {
	g := NewWithT(t)

	want := []driver.DescriptorBinding{
		{Binding: 0, Type: driver.DescriptorUniformBuffer, Count: 1, Stages: driver.ShaderVertex},
		{Binding: 1, Type: driver.DescriptorCombinedImageSampler, Count: 1, Stages: driver.ShaderFragment},
	}
	// Map iteration order varies between runs, the result must not.
	for i := 0; i < 20; i++ {
		got, err := pipeline.LayoutBindings(texturedShader())
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(got).To(Equal(want))
	}
}

func TestLayoutBindingsErrors(t *testing.T) {
	cases := []struct {
		name    string
		uniform assets.Uniform
		want    error
	}{
		{"block", assets.Uniform{Binding: 2, Stage: assets.StageVertex, Type: assets.BlockLayout{Size: 64}}, pipeline.ErrBufferBlock},
		{"untyped", assets.Uniform{Binding: 2, Stage: assets.StageVertex}, pipeline.ErrUnknownUniformType},
		{"geometry", assets.Uniform{Binding: 2, Stage: assets.StageGeometry, Type: assets.BufferLayout{}}, pipeline.ErrUnsupportedStage},
		{"duplicate", assets.Uniform{Binding: 0, Stage: assets.StageVertex, Type: assets.BufferLayout{}}, pipeline.ErrDuplicateBinding},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g := NewWithT(t)
			shader := texturedShader()
			shader.Uniforms["extra"] = c.uniform
			_, err := pipeline.LayoutBindings(shader)
			g.Expect(err).To(MatchError(c.want))
		})
	}
}

func TestVertexInput(t *testing.T) {
	g := NewWithT(t)

	shader := texturedShader()
	shader.Instance = &assets.InstanceLayout{
		Stride: 16,
		Inputs: map[string]assets.InstanceInput{
			"offset": {Location: 2, Offset: 0, Format: gputypes.VertexFormatFloat32x4},
		},
	}

	bindings, attrs, err := pipeline.VertexInput(shader, assets.PositionTexCoordFormat)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(bindings).To(Equal([]driver.VertexBinding{
		{Binding: 0, Stride: 20, Rate: driver.RatePerVertex},
		{Binding: 1, Stride: 16, Rate: driver.RatePerInstance},
	}))
	g.Expect(attrs).To(Equal([]driver.VertexAttribute{
		{Location: 0, Binding: 0, Format: driver.FormatR32G32B32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: driver.FormatR32G32Sfloat, Offset: 12},
		{Location: 2, Binding: 1, Format: driver.FormatR32G32B32A32Sfloat, Offset: 0},
	}))
}

func TestVertexInputMissingAttribute(t *testing.T) {
	g := NewWithT(t)

	shader := texturedShader()
	shader.Inputs["normal"] = assets.VertexInput{Location: 2}
	_, _, err := pipeline.VertexInput(shader, assets.PositionTexCoordFormat)
	g.Expect(err).To(MatchError(pipeline.ErrMissingVertexAttribute))
}

func newDevice(g *WithT) (*fake.Device, *device.Logical, driver.RenderPass) {
	inst := fake.NewDefaultInstance()
	sel, err := device.Select(inst, device.Requirements{})
	g.Expect(err).NotTo(HaveOccurred())
	ld, err := device.NewLogical(inst, sel, nil)
	g.Expect(err).NotTo(HaveOccurred())
	rp, err := ld.Device.CreateRenderPass(driver.RenderPassCreateInfo{
		ColorFormat: driver.FormatB8G8R8A8Srgb,
		DepthFormat: driver.FormatD32Sfloat,
	})
	g.Expect(err).NotTo(HaveOccurred())
	return inst.Device(), ld, rp
}

func TestNewPipelineFixedState(t *testing.T) {
	g := NewWithT(t)
	dev, ld, rp := newDevice(g)
	defer ld.Destroy()
	baseline := dev.LiveObjects()

	p, err := pipeline.New(ld.Device, rp, texturedShader(), assets.PositionTexCoordFormat)
	g.Expect(err).NotTo(HaveOccurred())

	info, ok := dev.PipelineInfo(p.Handle)
	g.Expect(ok).To(BeTrue())
	g.Expect(info.RenderPass).To(Equal(rp))
	g.Expect(info.Layout).To(Equal(p.Layout))
	g.Expect(info.CullMode).To(Equal(driver.CullBack))
	g.Expect(info.FrontFace).To(Equal(driver.FrontFaceClockwise))
	g.Expect(info.DepthTest).To(BeTrue())
	g.Expect(info.DepthWrite).To(BeTrue())
	g.Expect(info.DepthCompare).To(Equal(driver.CompareLess))
	g.Expect(info.Samples).To(Equal(uint32(1)))
	g.Expect(info.Blend).To(BeFalse())
	g.Expect(info.Stages).To(HaveLen(2))
	g.Expect(info.Stages[1].EntryPoint).To(Equal("main"))
	g.Expect(p.Instanced).To(BeFalse())

	g.Expect(dev.DescriptorSetLayoutBindings(p.SetLayout)).To(Equal(p.Bindings))

	// Shader modules are released once the pipeline exists.
	for _, s := range info.Stages {
		g.Expect(dev.Alive(uint64(s.Module))).To(BeFalse())
	}

	p.Destroy()
	g.Expect(dev.LiveObjects()).To(Equal(baseline))
}

func TestNewPipelineUnwindsOnError(t *testing.T) {
	g := NewWithT(t)
	dev, ld, rp := newDevice(g)
	defer ld.Destroy()
	baseline := dev.LiveObjects()

	shader := texturedShader()
	shader.Stages[1].Code = []byte{1, 2, 3}
	_, err := pipeline.New(ld.Device, rp, shader, assets.PositionTexCoordFormat)
	g.Expect(err).To(HaveOccurred())
	g.Expect(dev.LiveObjects()).To(Equal(baseline))
}

func TestNewPipelineUnwindsLateError(t *testing.T) {
	g := NewWithT(t)
	dev, ld, _ := newDevice(g)
	defer ld.Destroy()
	baseline := dev.LiveObjects()

	// Layouts and the descriptor pool exist by the time the pipeline itself
	// is rejected.
	p, err := pipeline.New(ld.Device, driver.RenderPass(987654), texturedShader(), assets.PositionTexCoordFormat)
	g.Expect(err).To(HaveOccurred())
	g.Expect(p).To(BeNil())
	g.Expect(dev.LiveObjects()).To(Equal(baseline))
}

func TestBindResources(t *testing.T) {
	g := NewWithT(t)
	dev, ld, rp := newDevice(g)
	defer ld.Destroy()

	p, err := pipeline.New(ld.Device, rp, texturedShader(), assets.PositionTexCoordFormat)
	g.Expect(err).NotTo(HaveOccurred())
	defer p.Destroy()

	up := transfer.NewUploader(ld, transfer.Config{})
	defer up.Destroy()

	ubo, err := up.CreateUniformBuffer(192)
	g.Expect(err).NotTo(HaveOccurred())
	defer ubo.Destroy()
	tex, err := up.CreateTexture(&assets.Texture{Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA8Unorm, Pixels: make([]byte, 4)})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(up.Flush()).To(Succeed())
	defer tex.Destroy()

	set, err := p.AllocateSet()
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(p.BindBuffer(set, "ubo", ubo)).To(Succeed())
	g.Expect(p.BindTexture(set, "texSampler", tex)).To(Succeed())
	g.Expect(p.BindTexture(set, "ubo", tex)).To(MatchError(pipeline.ErrUniformType))
	g.Expect(p.BindBuffer(set, "missing", ubo)).To(MatchError(pipeline.ErrUnknownUniform))

	writes := dev.DescriptorWrites(set)
	g.Expect(writes).To(HaveLen(2))
	g.Expect(writes[0].Buffer).To(Equal(ubo.Handle))
	g.Expect(writes[0].Range).To(Equal(uint64(192)))
	g.Expect(writes[1].View).To(Equal(tex.View))
	g.Expect(writes[1].Sampler).To(Equal(tex.Sampler))
}
