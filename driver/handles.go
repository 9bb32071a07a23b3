// Package driver describes the native graphics capability the renderer core
// drives. Implementations translate these calls to a real graphics API
// (see driver/vulkan) or simulate one in memory (see driver/fake).
//
// All objects are referred to by opaque handles. The zero handle is the null
// handle for every kind.
package driver

type (
	// PhysicalDevice identifies an enumerated GPU.
	PhysicalDevice uint64
	// Queue is a native submission queue.
	Queue uint64
	// CommandPool is a native allocator of command buffers.
	CommandPool uint64
	// CommandBuffer is a recorded list of GPU commands.
	CommandBuffer uint64
	// Fence is a GPU to CPU synchronization primitive.
	Fence uint64
	// Semaphore is a GPU to GPU synchronization primitive.
	Semaphore uint64
	// Buffer is a linear GPU allocation with its memory bound.
	Buffer uint64
	// Image is a GPU texture allocation with its memory bound.
	Image uint64
	// ImageView is a typed view into an Image.
	ImageView uint64
	// Sampler describes how shaders sample an image.
	Sampler uint64
	// RenderPass describes attachments and their load/store behaviour.
	RenderPass uint64
	// Framebuffer binds concrete image views to a render pass.
	Framebuffer uint64
	// Swapchain is a set of presentable images tied to a surface.
	Swapchain uint64
	// DescriptorSetLayout describes the resource bindings of a shader.
	DescriptorSetLayout uint64
	// DescriptorPool allocates descriptor sets.
	DescriptorPool uint64
	// DescriptorSet is a set of concrete resource bindings.
	DescriptorSet uint64
	// ShaderModule holds compiled shader code.
	ShaderModule uint64
	// PipelineLayout is the set layouts a pipeline is compiled against.
	PipelineLayout uint64
	// Pipeline is a compiled graphics pipeline.
	Pipeline uint64
)
