package vulkan

import (
	"sort"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/unsafer"
)

// ErrShaderCodeSize is returned for SPIR-V code which is not whole words.
var ErrShaderCodeSize = errors.New("shader code size is not a multiple of 4")

var nullMemory = vk.DeviceMemory(vk.NullHandle)

func (d *Device) findMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		memType := d.memory.MemoryTypes[i]
		memType.Deref()

		if typeFilter&(1<<i) == 0 {
			continue
		}
		if memType.PropertyFlags&properties != properties {
			continue
		}
		return i, nil
	}
	return 0, driver.ErrNoMemoryType
}

func memoryProperties(v driver.Visibility) vk.MemoryPropertyFlags {
	if v == driver.HostVisible {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) |
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

func (d *Device) allocate(req vk.MemoryRequirements, v driver.Visibility) (vk.DeviceMemory, error) {
	memTypeIndex, err := d.findMemoryType(req.MemoryTypeBits, memoryProperties(v))
	if err != nil {
		return nullMemory, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIndex,
	}

	var mem vk.DeviceMemory
	if err := resultError(vk.AllocateMemory(d.device, &allocInfo, nil, &mem)); err != nil {
		return nullMemory, errors.Wrap(err, "allocate memory")
	}
	return mem, nil
}

// CreateBuffer implements driver.Device. Host visible buffers stay mapped
// for their whole life.
func (d *Device) CreateBuffer(info driver.BufferCreateInfo) (driver.Buffer, error) {
	mode, families := sharing(info.Families)
	bufferInfo := vk.BufferCreateInfo{
		SType:                 vk.StructureTypeBufferCreateInfo,
		Size:                  vk.DeviceSize(info.Size),
		Usage:                 toBufferUsage(info.Usage),
		SharingMode:           mode,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
	}

	var buf vk.Buffer
	if err := resultError(vk.CreateBuffer(d.device, &bufferInfo, nil, &buf)); err != nil {
		return 0, errors.Wrap(err, "create buffer")
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buf, &req)
	req.Deref()

	mem, err := d.allocate(req, info.Visibility)
	if err != nil {
		vk.DestroyBuffer(d.device, buf, nil)
		return 0, err
	}
	if err := resultError(vk.BindBufferMemory(d.device, buf, mem, 0)); err != nil {
		vk.DestroyBuffer(d.device, buf, nil)
		vk.FreeMemory(d.device, mem, nil)
		return 0, errors.Wrap(err, "bind buffer memory")
	}

	b := buffer{buf: buf, mem: mem, size: info.Size}
	if info.Visibility == driver.HostVisible {
		res := vk.MapMemory(d.device, mem, 0, vk.DeviceSize(info.Size), 0, &b.mapped)
		if err := resultError(res); err != nil {
			vk.DestroyBuffer(d.device, buf, nil)
			vk.FreeMemory(d.device, mem, nil)
			return 0, errors.Wrap(err, "map buffer memory")
		}
	}
	return driver.Buffer(d.buffers.put(b)), nil
}

// DestroyBuffer implements driver.Device.
func (d *Device) DestroyBuffer(handle driver.Buffer) {
	b, ok := d.buffers.take(uint64(handle))
	if !ok {
		return
	}
	if b.mapped != nil {
		vk.UnmapMemory(d.device, b.mem)
	}
	vk.DestroyBuffer(d.device, b.buf, nil)
	vk.FreeMemory(d.device, b.mem, nil)
}

func (d *Device) mapped(handle driver.Buffer, offset uint64, n int) ([]byte, error) {
	b := d.buffers.get(uint64(handle))
	if b.mapped == nil {
		return nil, driver.ErrNotHostVisible
	}
	if offset > b.size || uint64(n) > b.size-offset {
		return nil, driver.ErrOutOfRange
	}
	return unsafe.Slice((*byte)(unsafe.Add(b.mapped, offset)), n), nil
}

// WriteBuffer implements driver.Device.
func (d *Device) WriteBuffer(handle driver.Buffer, offset uint64, data []byte) error {
	dst, err := d.mapped(handle, offset, len(data))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// ReadBuffer implements driver.Device.
func (d *Device) ReadBuffer(handle driver.Buffer, offset uint64, data []byte) error {
	src, err := d.mapped(handle, offset, len(data))
	if err != nil {
		return err
	}
	copy(data, src)
	return nil
}

// CreateImage implements driver.Device.
func (d *Device) CreateImage(info driver.ImageCreateInfo) (driver.Image, error) {
	mode, families := sharing(info.Families)
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:             1,
		ArrayLayers:           1,
		Format:                toFormat(info.Format),
		Tiling:                vk.ImageTilingOptimal,
		InitialLayout:         vk.ImageLayoutUndefined,
		Usage:                 toImageUsage(info.Usage),
		SharingMode:           mode,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		Samples:               vk.SampleCount1Bit,
	}

	var img vk.Image
	if err := resultError(vk.CreateImage(d.device, &imageInfo, nil, &img)); err != nil {
		return 0, errors.Wrap(err, "create image")
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, img, &req)
	req.Deref()

	mem, err := d.allocate(req, driver.DeviceLocal)
	if err != nil {
		vk.DestroyImage(d.device, img, nil)
		return 0, err
	}
	if err := resultError(vk.BindImageMemory(d.device, img, mem, 0)); err != nil {
		vk.DestroyImage(d.device, img, nil)
		vk.FreeMemory(d.device, mem, nil)
		return 0, errors.Wrap(err, "bind image memory")
	}
	return driver.Image(d.images.put(image{img: img, mem: mem})), nil
}

// DestroyImage implements driver.Device.
func (d *Device) DestroyImage(handle driver.Image) {
	img, ok := d.images.take(uint64(handle))
	if !ok || img.mem == nullMemory {
		return
	}
	vk.DestroyImage(d.device, img.img, nil)
	vk.FreeMemory(d.device, img.mem, nil)
}

// CreateImageView implements driver.Device.
func (d *Device) CreateImageView(handle driver.Image, format driver.Format, aspect driver.ImageAspect) (driver.ImageView, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    d.images.get(uint64(handle)).img,
		ViewType: vk.ImageViewType2d,
		Format:   toFormat(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     toAspect(aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if err := resultError(vk.CreateImageView(d.device, &createInfo, nil, &view)); err != nil {
		return 0, errors.Wrap(err, "create image view")
	}
	return driver.ImageView(d.views.put(view)), nil
}

// DestroyImageView implements driver.Device.
func (d *Device) DestroyImageView(handle driver.ImageView) {
	if v, ok := d.views.take(uint64(handle)); ok {
		vk.DestroyImageView(d.device, v, nil)
	}
}

// CreateSampler implements driver.Device.
func (d *Device) CreateSampler(info driver.SamplerCreateInfo) (driver.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        toBool(info.Anisotropy),
		MaxAnisotropy:           1,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if info.Anisotropy {
		samplerInfo.MaxAnisotropy = info.MaxAnisotropy
	}

	var sampler vk.Sampler
	if err := resultError(vk.CreateSampler(d.device, &samplerInfo, nil, &sampler)); err != nil {
		return 0, errors.Wrap(err, "create sampler")
	}
	return driver.Sampler(d.samplers.put(sampler)), nil
}

// DestroySampler implements driver.Device.
func (d *Device) DestroySampler(handle driver.Sampler) {
	if s, ok := d.samplers.take(uint64(handle)); ok {
		vk.DestroySampler(d.device, s, nil)
	}
}

// FormatSupported implements driver.Device for optimal tiling.
func (d *Device) FormatSupported(format driver.Format, feature driver.FormatFeature) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.physical, toFormat(format), &props)
	props.Deref()

	want := toFormatFeature(feature)
	return props.OptimalTilingFeatures&want == want
}

// CreateRenderPass implements driver.Device.
func (d *Device) CreateRenderPass(info driver.RenderPassCreateInfo) (driver.RenderPass, error) {
	attachments := []vk.AttachmentDescription{{
		Format:         toFormat(info.ColorFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	if info.DepthFormat != driver.FormatUndefined {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         toFormat(info.DepthFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		dependency.SrcStageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		dependency.DstStageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		dependency.DstAccessMask |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}

	renderPassInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var rp vk.RenderPass
	if err := resultError(vk.CreateRenderPass(d.device, &renderPassInfo, nil, &rp)); err != nil {
		return 0, errors.Wrap(err, "create render pass")
	}
	return driver.RenderPass(d.renderPass.put(rp)), nil
}

// DestroyRenderPass implements driver.Device.
func (d *Device) DestroyRenderPass(handle driver.RenderPass) {
	if rp, ok := d.renderPass.take(uint64(handle)); ok {
		vk.DestroyRenderPass(d.device, rp, nil)
	}
}

// CreateFramebuffer implements driver.Device.
func (d *Device) CreateFramebuffer(info driver.FramebufferCreateInfo) (driver.Framebuffer, error) {
	views := make([]vk.ImageView, len(info.Attachments))
	for i, v := range info.Attachments {
		views[i] = d.views.get(uint64(v))
	}
	framebufferInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      d.renderPass.get(uint64(info.RenderPass)),
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           info.Width,
		Height:          info.Height,
		Layers:          1,
	}

	var fb vk.Framebuffer
	if err := resultError(vk.CreateFramebuffer(d.device, &framebufferInfo, nil, &fb)); err != nil {
		return 0, errors.Wrap(err, "create framebuffer")
	}
	return driver.Framebuffer(d.framebuffer.put(fb)), nil
}

// DestroyFramebuffer implements driver.Device.
func (d *Device) DestroyFramebuffer(handle driver.Framebuffer) {
	if fb, ok := d.framebuffer.take(uint64(handle)); ok {
		vk.DestroyFramebuffer(d.device, fb, nil)
	}
}

// CreateDescriptorSetLayout implements driver.Device.
func (d *Device) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	native := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		native[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toDescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      toShaderStages(b.Stages),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(native)),
		PBindings:    native,
	}

	var layout vk.DescriptorSetLayout
	if err := resultError(vk.CreateDescriptorSetLayout(d.device, &layoutInfo, nil, &layout)); err != nil {
		return 0, errors.Wrap(err, "create descriptor set layout")
	}
	return driver.DescriptorSetLayout(d.setLayouts.put(layout)), nil
}

// DestroyDescriptorSetLayout implements driver.Device.
func (d *Device) DestroyDescriptorSetLayout(handle driver.DescriptorSetLayout) {
	if l, ok := d.setLayouts.take(uint64(handle)); ok {
		vk.DestroyDescriptorSetLayout(d.device, l, nil)
	}
}

// CreateDescriptorPool implements driver.Device.
func (d *Device) CreateDescriptorPool(info driver.DescriptorPoolCreateInfo) (driver.DescriptorPool, error) {
	types := make([]driver.DescriptorType, 0, len(info.Sizes))
	for t := range info.Sizes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	sizes := make([]vk.DescriptorPoolSize, 0, len(types))
	for _, t := range types {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            toDescriptorType(t),
			DescriptorCount: info.Sizes[t],
		})
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
		MaxSets:       info.MaxSets,
	}

	var pool vk.DescriptorPool
	if err := resultError(vk.CreateDescriptorPool(d.device, &poolInfo, nil, &pool)); err != nil {
		return 0, errors.Wrap(err, "create descriptor pool")
	}
	return driver.DescriptorPool(d.descPools.put(pool)), nil
}

// DestroyDescriptorPool implements driver.Device. Sets allocated from the
// pool become invalid.
func (d *Device) DestroyDescriptorPool(handle driver.DescriptorPool) {
	if p, ok := d.descPools.take(uint64(handle)); ok {
		vk.DestroyDescriptorPool(d.device, p, nil)
	}
}

// AllocateDescriptorSets implements driver.Device.
func (d *Device) AllocateDescriptorSets(pool driver.DescriptorPool, layouts []driver.DescriptorSetLayout) ([]driver.DescriptorSet, error) {
	if len(layouts) == 0 {
		return nil, nil
	}
	native := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		native[i] = d.setLayouts.get(uint64(l))
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descPools.get(uint64(pool)),
		DescriptorSetCount: uint32(len(native)),
		PSetLayouts:        native,
	}

	sets := make([]vk.DescriptorSet, len(native))
	if err := resultError(vk.AllocateDescriptorSets(d.device, &allocInfo, &sets[0])); err != nil {
		return nil, errors.Wrap(err, "allocate descriptor sets")
	}

	out := make([]driver.DescriptorSet, len(sets))
	for i, s := range sets {
		out[i] = driver.DescriptorSet(d.sets.put(s))
	}
	return out, nil
}

// UpdateDescriptorSet implements driver.Device.
func (d *Device) UpdateDescriptorSet(set driver.DescriptorSet, writes []driver.DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	dst := d.sets.get(uint64(set))
	native := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		native[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          dst,
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorType:  toDescriptorType(w.Type),
			DescriptorCount: 1,
		}
		switch w.Type {
		case driver.DescriptorCombinedImageSampler:
			native[i].PImageInfo = []vk.DescriptorImageInfo{{
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
				ImageView:   d.views.get(uint64(w.View)),
				Sampler:     d.samplers.get(uint64(w.Sampler)),
			}}
		default:
			native[i].PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: d.buffers.get(uint64(w.Buffer)).buf,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(w.Range),
			}}
		}
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(native)), native, 0, nil)
}

// CreateShaderModule implements driver.Device.
func (d *Device) CreateShaderModule(code []byte) (driver.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, ErrShaderCodeSize
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    unsafer.BytesToUint32(code),
	}

	var module vk.ShaderModule
	if err := resultError(vk.CreateShaderModule(d.device, &createInfo, nil, &module)); err != nil {
		return 0, errors.Wrap(err, "create shader module")
	}
	return driver.ShaderModule(d.modules.put(module)), nil
}

// DestroyShaderModule implements driver.Device.
func (d *Device) DestroyShaderModule(handle driver.ShaderModule) {
	if m, ok := d.modules.take(uint64(handle)); ok {
		vk.DestroyShaderModule(d.device, m, nil)
	}
}

// CreatePipelineLayout implements driver.Device.
func (d *Device) CreatePipelineLayout(setLayouts []driver.DescriptorSetLayout) (driver.PipelineLayout, error) {
	native := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, l := range setLayouts {
		native[i] = d.setLayouts.get(uint64(l))
	}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(native)),
		PSetLayouts:    native,
	}

	var layout vk.PipelineLayout
	if err := resultError(vk.CreatePipelineLayout(d.device, &layoutInfo, nil, &layout)); err != nil {
		return 0, errors.Wrap(err, "create pipeline layout")
	}
	return driver.PipelineLayout(d.layouts.put(layout)), nil
}

// DestroyPipelineLayout implements driver.Device.
func (d *Device) DestroyPipelineLayout(handle driver.PipelineLayout) {
	if l, ok := d.layouts.take(uint64(handle)); ok {
		vk.DestroyPipelineLayout(d.device, l, nil)
	}
}

// CreateGraphicsPipeline implements driver.Device.
func (d *Device) CreateGraphicsPipeline(info driver.GraphicsPipelineCreateInfo) (driver.Pipeline, error) {
	shaderStages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for i, s := range info.Stages {
		stage := vk.ShaderStageVertexBit
		if s.Stage == driver.ShaderFragment {
			stage = vk.ShaderStageFragmentBit
		}
		shaderStages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage,
			Module: d.modules.get(uint64(s.Module)),
			PName:  s.EntryPoint + "\x00",
		}
	}

	bindings := make([]vk.VertexInputBindingDescription, len(info.Bindings))
	for i, b := range info.Bindings {
		rate := vk.VertexInputRateVertex
		if b.Rate == driver.RatePerInstance {
			rate = vk.VertexInputRateInstance
		}
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: rate,
		}
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(info.Attributes))
	for i, a := range info.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   toFormat(a.Format),
			Offset:   a.Offset,
		}
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1,
		CullMode:                toCullMode(info.CullMode),
		FrontFace:               toFrontFace(info.FrontFace),
		DepthBiasEnable:         vk.False,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  toSamples(info.Samples),
		MinSampleShading:      1,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       toBool(info.DepthTest),
		DepthWriteEnable:      toBool(info.DepthWrite),
		DepthCompareOp:        toCompareOp(info.DepthCompare),
		DepthBoundsTestEnable: vk.False,
		MinDepthBounds:        0,
		MaxDepthBounds:        1,
		StencilTestEnable:     vk.False,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(
			vk.ColorComponentRBit |
				vk.ColorComponentGBit |
				vk.ColorComponentBBit |
				vk.ColorComponentABit,
		),
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
	}
	if info.Blend {
		colorBlendAttachment.BlendEnable = vk.True
		colorBlendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	}

	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{
			colorBlendAttachment,
		},
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              d.layouts.get(uint64(info.Layout)),
		RenderPass:          d.renderPass.get(uint64(info.RenderPass)),
		Subpass:             info.Subpass,
		BasePipelineHandle:  vk.Pipeline(vk.NullHandle),
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(
		d.device,
		vk.PipelineCache(vk.NullHandle),
		1,
		[]vk.GraphicsPipelineCreateInfo{pipelineInfo},
		nil,
		pipelines,
	)
	if err := resultError(res); err != nil {
		return 0, errors.Wrap(err, "create graphics pipeline")
	}
	return driver.Pipeline(d.pipelines.put(pipelines[0])), nil
}

// DestroyPipeline implements driver.Device.
func (d *Device) DestroyPipeline(handle driver.Pipeline) {
	if p, ok := d.pipelines.take(uint64(handle)); ok {
		vk.DestroyPipeline(d.device, p, nil)
	}
}
