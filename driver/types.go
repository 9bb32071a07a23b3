package driver

import "time"

// Forever is the timeout that never expires.
const Forever time.Duration = -1

// Extensions commonly required of a device.
const (
	SwapchainExtension = "VK_KHR_swapchain"
)

// DeviceType classifies physical devices.
type DeviceType int

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegrated
	DeviceTypeDiscrete
	DeviceTypeVirtual
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegrated:
		return "integrated"
	case DeviceTypeDiscrete:
		return "discrete"
	case DeviceTypeVirtual:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	default:
		return "other"
	}
}

// QueueFlags are the capabilities of a queue family.
type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

// QueueFamily describes one queue family of a physical device.
type QueueFamily struct {
	Flags QueueFlags
	Count uint32
}

// PhysicalDeviceInfo is everything device selection needs to know about a
// physical device.
type PhysicalDeviceInfo struct {
	Handle            PhysicalDevice
	Name              string
	Type              DeviceType
	Extensions        []string
	Families          []QueueFamily
	SamplerAnisotropy bool
	MaxAnisotropy     float32
}

// Extent2D is a size in pixels.
type Extent2D struct {
	Width, Height uint32
}

// Format is a texel or vertex attribute format.
type Format int

const (
	FormatUndefined Format = iota
	FormatR8Unorm
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR32Sfloat
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

// Size returns the size in bytes of one texel or attribute of the format.
func (f Format) Size() uint32 {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb, FormatB8G8R8A8Unorm,
		FormatB8G8R8A8Srgb, FormatR32Sfloat, FormatD32Sfloat, FormatD24UnormS8Uint:
		return 4
	case FormatR32G32Sfloat, FormatD32SfloatS8Uint:
		return 8
	case FormatR32G32B32Sfloat:
		return 12
	case FormatR32G32B32A32Sfloat:
		return 16
	default:
		return 0
	}
}

// HasStencil reports whether a depth format carries a stencil component.
func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

// ColorSpace of a presentable surface format.
type ColorSpace int

const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
	ColorSpaceOther
)

// SurfaceFormat pairs a format with a color space.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode is how presented images are queued for display.
type PresentMode int

const (
	PresentModeFifo PresentMode = iota
	PresentModeFifoRelaxed
	PresentModeMailbox
	PresentModeImmediate
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo relaxed"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// UndefinedExtent marks a surface whose size is picked by the swapchain.
const UndefinedExtent = ^uint32(0)

// SurfaceCapabilities are the limits of a surface on a physical device.
type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount of 0 means there is no limit.
	MaxImageCount uint32
	CurrentExtent Extent2D
	MinExtent     Extent2D
	MaxExtent     Extent2D
}

// SurfaceSupport is what a physical device offers for the instance surface.
type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
	// PresentFamilies holds one entry per queue family telling whether it
	// can present to the surface.
	PresentFamilies []bool
}

// Adequate reports whether a swapchain can be built at all.
func (s SurfaceSupport) Adequate() bool {
	return len(s.Formats) > 0 && len(s.PresentModes) > 0
}

// QueueCreateInfo requests queues from one family.
type QueueCreateInfo struct {
	Family uint32
	Count  uint32
}

// DeviceCreateInfo describes a logical device.
type DeviceCreateInfo struct {
	Queues            []QueueCreateInfo
	Extensions        []string
	SamplerAnisotropy bool
}

// CommandPoolFlags control command pool behaviour.
type CommandPoolFlags uint32

const (
	// PoolTransient hints that buffers are short lived.
	PoolTransient CommandPoolFlags = 1 << iota
	// PoolResetCommandBuffer allows buffers to be reset individually.
	PoolResetCommandBuffer
)

// CommandBufferLevel is primary or secondary.
type CommandBufferLevel int

const (
	LevelPrimary CommandBufferLevel = iota
	LevelSecondary
)

// CommandBufferUsage flags passed when recording begins.
type CommandBufferUsage uint32

const (
	UsageOneTimeSubmit CommandBufferUsage = 1 << iota
	UsageRenderPassContinue
	UsageSimultaneousUse
)

// Inheritance is the render pass state a secondary buffer inherits.
type Inheritance struct {
	RenderPass  RenderPass
	Subpass     uint32
	Framebuffer Framebuffer
}

// PipelineStage flags.
type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageVertexInput
	StageVertexShader
	StageFragmentShader
	StageEarlyFragmentTests
	StageColorAttachmentOutput
	StageTransfer
	StageBottomOfPipe
	StageAllCommands
)

// Access flags.
type Access uint32

const (
	AccessNone      Access = 0
	AccessIndexRead Access = 1 << (iota - 1)
	AccessVertexAttributeRead
	AccessUniformRead
	AccessShaderRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
	AccessTransferRead
	AccessTransferWrite
)

// ImageLayout of an image's texels in memory.
type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutTransferDst
	LayoutShaderReadOnly
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutPresentSrc
)

func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutTransferDst:
		return "transfer dst"
	case LayoutShaderReadOnly:
		return "shader read only"
	case LayoutColorAttachment:
		return "color attachment"
	case LayoutDepthStencilAttachment:
		return "depth stencil attachment"
	case LayoutPresentSrc:
		return "present src"
	default:
		return "unknown layout"
	}
}

// ImageAspect selects the parts of an image a view or barrier touches.
type ImageAspect uint32

const (
	AspectColor ImageAspect = 1 << iota
	AspectDepth
	AspectStencil
)

// MemoryBarrier makes writes of the source stages visible to the
// destination stages for every resource.
type MemoryBarrier struct {
	SrcAccess, DstAccess Access
	SrcStage, DstStage   PipelineStage
}

// IgnoredFamily leaves queue family ownership unchanged in a barrier.
const IgnoredFamily = ^uint32(0)

// ImageBarrier transitions an image layout between two pipeline stages.
type ImageBarrier struct {
	Image          Image
	Aspect         ImageAspect
	OldLayout      ImageLayout
	NewLayout      ImageLayout
	SrcAccess      Access
	DstAccess      Access
	SrcStage       PipelineStage
	DstStage       PipelineStage
	SrcQueueFamily uint32
	DstQueueFamily uint32
}

// BufferUsage flags.
type BufferUsage uint32

const (
	BufferTransferSrc BufferUsage = 1 << iota
	BufferTransferDst
	BufferUniform
	BufferStorage
	BufferVertex
	BufferIndex
)

// ImageUsage flags.
type ImageUsage uint32

const (
	ImageTransferSrc ImageUsage = 1 << iota
	ImageTransferDst
	ImageSampled
	ImageColorAttachment
	ImageDepthStencilAttachment
)

// Visibility is where a resource's memory lives.
type Visibility int

const (
	// DeviceLocal memory is only reachable by the GPU.
	DeviceLocal Visibility = iota
	// HostVisible memory is mapped and coherent with the CPU.
	HostVisible
)

// BufferCreateInfo describes a buffer. More than one family in Families
// makes the buffer concurrently shared between them.
type BufferCreateInfo struct {
	Size       uint64
	Usage      BufferUsage
	Visibility Visibility
	Families   []uint32
}

// ImageCreateInfo describes a 2D image.
type ImageCreateInfo struct {
	Width, Height uint32
	Format        Format
	Usage         ImageUsage
	Families      []uint32
}

// SamplerCreateInfo describes a linear filtering, repeating sampler.
type SamplerCreateInfo struct {
	Anisotropy    bool
	MaxAnisotropy float32
}

// FormatFeature flags a use of a format.
type FormatFeature uint32

const (
	FeatureSampledImage FormatFeature = 1 << iota
	FeatureColorAttachment
	FeatureDepthStencilAttachment
)

// RenderPassCreateInfo describes a single subpass pass with one color and
// one depth attachment. The color attachment ends in the present layout.
type RenderPassCreateInfo struct {
	ColorFormat Format
	DepthFormat Format
}

// FramebufferCreateInfo binds views to a render pass.
type FramebufferCreateInfo struct {
	RenderPass    RenderPass
	Attachments   []ImageView
	Width, Height uint32
}

// SwapchainCreateInfo describes a swapchain for the instance surface.
type SwapchainCreateInfo struct {
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode
	// Families with more than one entry make images concurrently shared.
	Families []uint32
	Old      Swapchain
}

// DescriptorType is the kind of resource bound at a descriptor binding.
type DescriptorType int

const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorCombinedImageSampler
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorUniformBuffer:
		return "uniform buffer"
	case DescriptorCombinedImageSampler:
		return "combined image sampler"
	default:
		return "unknown descriptor type"
	}
}

// ShaderStage flags.
type ShaderStage uint32

const (
	ShaderVertex ShaderStage = 1 << iota
	ShaderFragment
)

// DescriptorBinding is one binding of a descriptor set layout.
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

// DescriptorPoolCreateInfo sizes a descriptor pool.
type DescriptorPoolCreateInfo struct {
	MaxSets uint32
	Sizes   map[DescriptorType]uint32
}

// DescriptorWrite points one binding of a set at a buffer or image.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType

	Buffer Buffer
	Offset uint64
	Range  uint64

	View    ImageView
	Sampler Sampler
}

// InputRate is how often a vertex binding advances.
type InputRate int

const (
	RatePerVertex InputRate = iota
	RatePerInstance
)

// VertexBinding is one vertex buffer binding.
type VertexBinding struct {
	Binding uint32
	Stride  uint32
	Rate    InputRate
}

// VertexAttribute is one shader input fed from a vertex binding.
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

// CullMode selects faces to discard.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// FrontFace is the winding of front facing triangles.
type FrontFace int

const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

// CompareOp for depth testing.
type CompareOp int

const (
	CompareNever CompareOp = iota
	CompareLess
	CompareLessOrEqual
	CompareAlways
)

// ShaderStageInfo is one programmable stage of a pipeline.
type ShaderStageInfo struct {
	Stage      ShaderStage
	Module     ShaderModule
	EntryPoint string
}

// GraphicsPipelineCreateInfo describes a graphics pipeline using triangle
// lists and a dynamic viewport and scissor.
type GraphicsPipelineCreateInfo struct {
	Layout     PipelineLayout
	RenderPass RenderPass
	Subpass    uint32
	Stages     []ShaderStageInfo
	Bindings   []VertexBinding
	Attributes []VertexAttribute

	CullMode     CullMode
	FrontFace    FrontFace
	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp
	Samples      uint32
	Blend        bool
}

// BufferCopy is one region of a buffer to buffer copy.
type BufferCopy struct {
	SrcOffset, DstOffset, Size uint64
}

// Viewport is a dynamic viewport.
type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

// Rect2D is a dynamic scissor rectangle.
type Rect2D struct {
	X, Y   int32
	Extent Extent2D
}

// SubpassContents tells whether a render pass executes secondary buffers.
type SubpassContents int

const (
	ContentsInline SubpassContents = iota
	ContentsSecondary
)

// RenderPassBeginInfo starts a render pass instance.
type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearColor  [4]float32
	ClearDepth  float32
}

// SemaphoreWait is a semaphore a submission waits on and the stage which
// waits.
type SemaphoreWait struct {
	Semaphore Semaphore
	Stage     PipelineStage
}

// SubmitInfo is one batch of command buffers submitted to a queue.
type SubmitInfo struct {
	Waits          []SemaphoreWait
	CommandBuffers []CommandBuffer
	Signals        []Semaphore
}

// PresentInfo presents one swapchain image.
type PresentInfo struct {
	Waits      []Semaphore
	Swapchain  Swapchain
	ImageIndex uint32
}
