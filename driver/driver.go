package driver

import "time"

// Instance is the entry point of a driver. It owns the optional presentation
// surface.
type Instance interface {
	// PhysicalDevices enumerates GPUs in the driver's order.
	PhysicalDevices() ([]PhysicalDeviceInfo, error)

	// HasSurface reports whether the instance was created with a surface.
	HasSurface() bool

	// SurfaceSupport queries what a physical device offers for the surface.
	// It returns ErrNoSurface when the instance has none.
	SurfaceSupport(pd PhysicalDevice) (SurfaceSupport, error)

	// CreateDevice creates a logical device.
	CreateDevice(pd PhysicalDevice, info DeviceCreateInfo) (Device, error)

	Destroy()
}

// Device is a logical device. Methods creating or destroying objects and
// methods recording into one command buffer are not synchronized by the
// driver: callers hold the owning pool or queue lock.
type Device interface {
	Queue(family, index uint32) Queue
	WaitIdle() error
	Destroy()

	CreateCommandPool(family uint32, flags CommandPoolFlags) (CommandPool, error)
	ResetCommandPool(pool CommandPool) error
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffers(pool CommandPool, level CommandBufferLevel, count uint32) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, buffers []CommandBuffer)
	BeginCommandBuffer(cb CommandBuffer, usage CommandBufferUsage, inheritance *Inheritance) error
	EndCommandBuffer(cb CommandBuffer) error

	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	// WaitForFences returns ErrTimeout if the fences did not signal in time.
	WaitForFences(fences []Fence, waitAll bool, timeout time.Duration) error
	ResetFences(fences []Fence) error
	// FenceSignaled polls a fence without blocking.
	FenceSignaled(fence Fence) (bool, error)
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(sem Semaphore)

	Submit(queue Queue, batches []SubmitInfo, fence Fence) error
	Present(queue Queue, info PresentInfo) (Status, error)

	CreateBuffer(info BufferCreateInfo) (Buffer, error)
	DestroyBuffer(buf Buffer)
	// WriteBuffer and ReadBuffer access host visible buffers.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	ReadBuffer(buf Buffer, offset uint64, data []byte) error

	CreateImage(info ImageCreateInfo) (Image, error)
	DestroyImage(img Image)
	CreateImageView(img Image, format Format, aspect ImageAspect) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateSampler(info SamplerCreateInfo) (Sampler, error)
	DestroySampler(sampler Sampler)
	FormatSupported(format Format, feature FormatFeature) bool

	CreateRenderPass(info RenderPassCreateInfo) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(info FramebufferCreateInfo) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, []Image, error)
	DestroySwapchain(sc Swapchain)
	AcquireNextImage(sc Swapchain, timeout time.Duration, signal Semaphore) (uint32, Status, error)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreateDescriptorPool(info DescriptorPoolCreateInfo) (DescriptorPool, error)
	DestroyDescriptorPool(pool DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	UpdateDescriptorSet(set DescriptorSet, writes []DescriptorWrite)

	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)
	CreatePipelineLayout(setLayouts []DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreateGraphicsPipeline(info GraphicsPipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	Recorder
}

// Recorder records commands into a command buffer in the recording state.
type Recorder interface {
	CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, regions []BufferCopy)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, layout ImageLayout, extent Extent2D)
	CmdImageBarrier(cb CommandBuffer, barrier ImageBarrier)
	CmdMemoryBarrier(cb CommandBuffer, barrier MemoryBarrier)
	CmdBeginRenderPass(cb CommandBuffer, info RenderPassBeginInfo, contents SubpassContents)
	CmdEndRenderPass(cb CommandBuffer)
	CmdExecuteCommands(cb CommandBuffer, secondaries []CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, p Pipeline)
	CmdSetViewport(cb CommandBuffer, viewport Viewport)
	CmdSetScissor(cb CommandBuffer, scissor Rect2D)
	CmdBindVertexBuffers(cb CommandBuffer, first uint32, buffers []Buffer, offsets []uint64)
	// CmdBindIndexBuffer binds 32 bit indices.
	CmdBindIndexBuffer(cb CommandBuffer, buf Buffer, offset uint64)
	CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, first uint32, sets []DescriptorSet)
	CmdDraw(cb CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}
