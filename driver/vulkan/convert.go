package vulkan

import (
	"math"
	"sync"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

// table maps the opaque driver handles to native objects. Handles start at 1
// so the zero handle stays the null handle.
type table[T any] struct {
	mu   sync.Mutex
	next uint64
	m    map[uint64]T
}

func (t *table[T]) put(v T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		t.m = make(map[uint64]T)
	}
	t.next++
	t.m[t.next] = v
	return t.next
}

func (t *table[T]) get(h uint64) T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m[h]
}

func (t *table[T]) take(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.m[h]
	delete(t.m, h)
	return v, ok
}

// resultError turns a native result into one of the driver errors.
func resultError(res vk.Result) error {
	switch res {
	case vk.Success:
		return nil
	case vk.Timeout, vk.NotReady:
		return driver.ErrTimeout
	case vk.ErrorDeviceLost:
		return driver.ErrDeviceLost
	case vk.ErrorOutOfHostMemory:
		return driver.ErrOutOfHostMemory
	case vk.ErrorOutOfDeviceMemory:
		return driver.ErrOutOfDeviceMemory
	case vk.ErrorLayerNotPresent:
		return driver.ErrLayerNotPresent
	case vk.ErrorExtensionNotPresent:
		return driver.ErrExtensionNotPresent
	case vk.ErrorFeatureNotPresent:
		return driver.ErrFeatureNotPresent
	case vk.ErrorSurfaceLost:
		return driver.ErrSurfaceLost
	default:
		return vk.Error(res)
	}
}

func timeoutNanos(d time.Duration) uint64 {
	if d < 0 {
		return math.MaxUint64
	}
	return uint64(d.Nanoseconds())
}

func cstrings(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + "\x00"
	}
	return out
}

var formats = map[driver.Format]vk.Format{
	driver.FormatUndefined:          vk.FormatUndefined,
	driver.FormatR8Unorm:            vk.FormatR8Unorm,
	driver.FormatR8G8B8A8Unorm:      vk.FormatR8g8b8a8Unorm,
	driver.FormatR8G8B8A8Srgb:       vk.FormatR8g8b8a8Srgb,
	driver.FormatB8G8R8A8Unorm:      vk.FormatB8g8r8a8Unorm,
	driver.FormatB8G8R8A8Srgb:       vk.FormatB8g8r8a8Srgb,
	driver.FormatR32Sfloat:          vk.FormatR32Sfloat,
	driver.FormatR32G32Sfloat:       vk.FormatR32g32Sfloat,
	driver.FormatR32G32B32Sfloat:    vk.FormatR32g32b32Sfloat,
	driver.FormatR32G32B32A32Sfloat: vk.FormatR32g32b32a32Sfloat,
	driver.FormatD32Sfloat:          vk.FormatD32Sfloat,
	driver.FormatD32SfloatS8Uint:    vk.FormatD32SfloatS8Uint,
	driver.FormatD24UnormS8Uint:     vk.FormatD24UnormS8Uint,
}

func toFormat(f driver.Format) vk.Format {
	return formats[f]
}

func fromFormat(f vk.Format) driver.Format {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return driver.FormatUndefined
}

func fromColorSpace(cs vk.ColorSpace) driver.ColorSpace {
	if cs == vk.ColorSpaceSrgbNonlinear {
		return driver.ColorSpaceSrgbNonlinear
	}
	return driver.ColorSpaceOther
}

// toColorSpace maps every color space to sRGB nonlinear, the only one the
// swapchain manager picks.
func toColorSpace(driver.ColorSpace) vk.ColorSpace {
	return vk.ColorSpaceSrgbNonlinear
}

func fromPresentMode(m vk.PresentMode) (driver.PresentMode, bool) {
	switch m {
	case vk.PresentModeFifo:
		return driver.PresentModeFifo, true
	case vk.PresentModeFifoRelaxed:
		return driver.PresentModeFifoRelaxed, true
	case vk.PresentModeMailbox:
		return driver.PresentModeMailbox, true
	case vk.PresentModeImmediate:
		return driver.PresentModeImmediate, true
	default:
		return 0, false
	}
}

func toPresentMode(m driver.PresentMode) vk.PresentMode {
	switch m {
	case driver.PresentModeFifoRelaxed:
		return vk.PresentModeFifoRelaxed
	case driver.PresentModeMailbox:
		return vk.PresentModeMailbox
	case driver.PresentModeImmediate:
		return vk.PresentModeImmediate
	default:
		return vk.PresentModeFifo
	}
}

func fromDeviceType(t vk.PhysicalDeviceType) driver.DeviceType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return driver.DeviceTypeIntegrated
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return driver.DeviceTypeDiscrete
	case vk.PhysicalDeviceTypeVirtualGpu:
		return driver.DeviceTypeVirtual
	case vk.PhysicalDeviceTypeCpu:
		return driver.DeviceTypeCPU
	default:
		return driver.DeviceTypeOther
	}
}

func fromQueueFlags(f vk.QueueFlags) driver.QueueFlags {
	var out driver.QueueFlags
	if f&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
		out |= driver.QueueGraphics
	}
	if f&vk.QueueFlags(vk.QueueComputeBit) != 0 {
		out |= driver.QueueCompute
	}
	if f&vk.QueueFlags(vk.QueueTransferBit) != 0 {
		out |= driver.QueueTransfer
	}
	return out
}

func toLayout(l driver.ImageLayout) vk.ImageLayout {
	switch l {
	case driver.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case driver.LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case driver.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case driver.LayoutDepthStencilAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case driver.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

func toAspect(a driver.ImageAspect) vk.ImageAspectFlags {
	var out vk.ImageAspectFlags
	if a&driver.AspectColor != 0 {
		out |= vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	if a&driver.AspectDepth != 0 {
		out |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	if a&driver.AspectStencil != 0 {
		out |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return out
}

var stages = []struct {
	d driver.PipelineStage
	v vk.PipelineStageFlagBits
}{
	{driver.StageTopOfPipe, vk.PipelineStageTopOfPipeBit},
	{driver.StageVertexInput, vk.PipelineStageVertexInputBit},
	{driver.StageVertexShader, vk.PipelineStageVertexShaderBit},
	{driver.StageFragmentShader, vk.PipelineStageFragmentShaderBit},
	{driver.StageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
	{driver.StageColorAttachmentOutput, vk.PipelineStageColorAttachmentOutputBit},
	{driver.StageTransfer, vk.PipelineStageTransferBit},
	{driver.StageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
	{driver.StageAllCommands, vk.PipelineStageAllCommandsBit},
}

func toStages(s driver.PipelineStage) vk.PipelineStageFlags {
	var out vk.PipelineStageFlags
	for _, st := range stages {
		if s&st.d != 0 {
			out |= vk.PipelineStageFlags(st.v)
		}
	}
	return out
}

var accesses = []struct {
	d driver.Access
	v vk.AccessFlagBits
}{
	{driver.AccessIndexRead, vk.AccessIndexReadBit},
	{driver.AccessVertexAttributeRead, vk.AccessVertexAttributeReadBit},
	{driver.AccessUniformRead, vk.AccessUniformReadBit},
	{driver.AccessShaderRead, vk.AccessShaderReadBit},
	{driver.AccessColorAttachmentWrite, vk.AccessColorAttachmentWriteBit},
	{driver.AccessDepthStencilAttachmentRead, vk.AccessDepthStencilAttachmentReadBit},
	{driver.AccessDepthStencilAttachmentWrite, vk.AccessDepthStencilAttachmentWriteBit},
	{driver.AccessTransferRead, vk.AccessTransferReadBit},
	{driver.AccessTransferWrite, vk.AccessTransferWriteBit},
}

func toAccess(a driver.Access) vk.AccessFlags {
	var out vk.AccessFlags
	for _, ac := range accesses {
		if a&ac.d != 0 {
			out |= vk.AccessFlags(ac.v)
		}
	}
	return out
}

func toBufferUsage(u driver.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlags
	if u&driver.BufferTransferSrc != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
	if u&driver.BufferTransferDst != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
	if u&driver.BufferUniform != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if u&driver.BufferStorage != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	if u&driver.BufferVertex != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if u&driver.BufferIndex != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	return out
}

func toImageUsage(u driver.ImageUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlags
	if u&driver.ImageTransferSrc != 0 {
		out |= vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)
	}
	if u&driver.ImageTransferDst != 0 {
		out |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	}
	if u&driver.ImageSampled != 0 {
		out |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	}
	if u&driver.ImageColorAttachment != 0 {
		out |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if u&driver.ImageDepthStencilAttachment != 0 {
		out |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}
	return out
}

func toFormatFeature(f driver.FormatFeature) vk.FormatFeatureFlags {
	var out vk.FormatFeatureFlags
	if f&driver.FeatureSampledImage != 0 {
		out |= vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit)
	}
	if f&driver.FeatureColorAttachment != 0 {
		out |= vk.FormatFeatureFlags(vk.FormatFeatureColorAttachmentBit)
	}
	if f&driver.FeatureDepthStencilAttachment != 0 {
		out |= vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	}
	return out
}

func toShaderStages(s driver.ShaderStage) vk.ShaderStageFlags {
	var out vk.ShaderStageFlags
	if s&driver.ShaderVertex != 0 {
		out |= vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
	if s&driver.ShaderFragment != 0 {
		out |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	return out
}

func toDescriptorType(t driver.DescriptorType) vk.DescriptorType {
	if t == driver.DescriptorCombinedImageSampler {
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func toCullMode(m driver.CullMode) vk.CullModeFlags {
	switch m {
	case driver.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case driver.CullBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

func toFrontFace(f driver.FrontFace) vk.FrontFace {
	if f == driver.FrontFaceClockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func toCompareOp(op driver.CompareOp) vk.CompareOp {
	switch op {
	case driver.CompareLess:
		return vk.CompareOpLess
	case driver.CompareLessOrEqual:
		return vk.CompareOpLessOrEqual
	case driver.CompareAlways:
		return vk.CompareOpAlways
	default:
		return vk.CompareOpNever
	}
}

func toSamples(n uint32) vk.SampleCountFlagBits {
	switch n {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	default:
		return vk.SampleCount1Bit
	}
}

func toBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func sharing(families []uint32) (vk.SharingMode, []uint32) {
	if len(families) > 1 {
		return vk.SharingModeConcurrent, families
	}
	return vk.SharingModeExclusive, nil
}
