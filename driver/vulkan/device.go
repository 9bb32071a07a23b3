package vulkan

import (
	"time"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

type commandBuffer struct {
	cb   vk.CommandBuffer
	pool driver.CommandPool
}

type buffer struct {
	buf    vk.Buffer
	mem    vk.DeviceMemory
	size   uint64
	mapped unsafe.Pointer
}

type image struct {
	img vk.Image
	// mem is null for swapchain images, which the swapchain owns.
	mem vk.DeviceMemory
}

type swapchain struct {
	sc     vk.Swapchain
	images []driver.Image
}

// Device is a driver.Device backed by a VkDevice.
type Device struct {
	inst     *Instance
	physical vk.PhysicalDevice
	device   vk.Device
	memory   vk.PhysicalDeviceMemoryProperties

	queues      map[uint64]driver.Queue
	queueTable  table[vk.Queue]
	pools       table[vk.CommandPool]
	cbs         table[commandBuffer]
	fences      table[vk.Fence]
	semaphores  table[vk.Semaphore]
	buffers     table[buffer]
	images      table[image]
	views       table[vk.ImageView]
	samplers    table[vk.Sampler]
	renderPass  table[vk.RenderPass]
	framebuffer table[vk.Framebuffer]
	swapchains  table[swapchain]
	setLayouts  table[vk.DescriptorSetLayout]
	descPools   table[vk.DescriptorPool]
	sets        table[vk.DescriptorSet]
	modules     table[vk.ShaderModule]
	layouts     table[vk.PipelineLayout]
	pipelines   table[vk.Pipeline]
}

var _ driver.Device = (*Device)(nil)

// Queue implements driver.Device.
func (d *Device) Queue(family, index uint32) driver.Queue {
	key := uint64(family)<<32 | uint64(index)
	if q, ok := d.queues[key]; ok {
		return q
	}
	var queue vk.Queue
	vk.GetDeviceQueue(d.device, family, index, &queue)
	h := driver.Queue(d.queueTable.put(queue))
	d.queues[key] = h
	return h
}

// WaitIdle implements driver.Device.
func (d *Device) WaitIdle() error {
	return resultError(vk.DeviceWaitIdle(d.device))
}

// Destroy implements driver.Device. Every child object must already be
// destroyed.
func (d *Device) Destroy() {
	if d.device != nil {
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
}

// CreateCommandPool implements driver.Device.
func (d *Device) CreateCommandPool(family uint32, flags driver.CommandPoolFlags) (driver.CommandPool, error) {
	var vkFlags vk.CommandPoolCreateFlags
	if flags&driver.PoolTransient != 0 {
		vkFlags |= vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit)
	}
	if flags&driver.PoolResetCommandBuffer != 0 {
		vkFlags |= vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit)
	}
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vkFlags,
		QueueFamilyIndex: family,
	}

	var pool vk.CommandPool
	if err := resultError(vk.CreateCommandPool(d.device, &poolInfo, nil, &pool)); err != nil {
		return 0, errors.Wrap(err, "create command pool")
	}
	return driver.CommandPool(d.pools.put(pool)), nil
}

// ResetCommandPool implements driver.Device.
func (d *Device) ResetCommandPool(pool driver.CommandPool) error {
	return resultError(vk.ResetCommandPool(d.device, d.pools.get(uint64(pool)), 0))
}

// DestroyCommandPool implements driver.Device. Buffers allocated from the
// pool are released with it.
func (d *Device) DestroyCommandPool(pool driver.CommandPool) {
	p, ok := d.pools.take(uint64(pool))
	if !ok {
		return
	}
	d.cbs.mu.Lock()
	for h, cb := range d.cbs.m {
		if cb.pool == pool {
			delete(d.cbs.m, h)
		}
	}
	d.cbs.mu.Unlock()
	vk.DestroyCommandPool(d.device, p, nil)
}

// AllocateCommandBuffers implements driver.Device.
func (d *Device) AllocateCommandBuffers(pool driver.CommandPool, level driver.CommandBufferLevel, count uint32) ([]driver.CommandBuffer, error) {
	vkLevel := vk.CommandBufferLevelPrimary
	if level == driver.LevelSecondary {
		vkLevel = vk.CommandBufferLevelSecondary
	}
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.pools.get(uint64(pool)),
		Level:              vkLevel,
		CommandBufferCount: count,
	}

	buffers := make([]vk.CommandBuffer, count)
	if err := resultError(vk.AllocateCommandBuffers(d.device, &allocInfo, buffers)); err != nil {
		return nil, errors.Wrap(err, "allocate command buffers")
	}

	out := make([]driver.CommandBuffer, count)
	for i, cb := range buffers {
		out[i] = driver.CommandBuffer(d.cbs.put(commandBuffer{cb: cb, pool: pool}))
	}
	return out, nil
}

// FreeCommandBuffers implements driver.Device.
func (d *Device) FreeCommandBuffers(pool driver.CommandPool, buffers []driver.CommandBuffer) {
	native := make([]vk.CommandBuffer, 0, len(buffers))
	for _, h := range buffers {
		if cb, ok := d.cbs.take(uint64(h)); ok {
			native = append(native, cb.cb)
		}
	}
	if len(native) == 0 {
		return
	}
	vk.FreeCommandBuffers(d.device, d.pools.get(uint64(pool)), uint32(len(native)), native)
}

func (d *Device) commandBuffer(cb driver.CommandBuffer) vk.CommandBuffer {
	return d.cbs.get(uint64(cb)).cb
}

// BeginCommandBuffer implements driver.Device.
func (d *Device) BeginCommandBuffer(cb driver.CommandBuffer, usage driver.CommandBufferUsage, inheritance *driver.Inheritance) error {
	var flags vk.CommandBufferUsageFlags
	if usage&driver.UsageOneTimeSubmit != 0 {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if usage&driver.UsageRenderPassContinue != 0 {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if usage&driver.UsageSimultaneousUse != 0 {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}
	if inheritance != nil {
		beginInfo.PInheritanceInfo = []vk.CommandBufferInheritanceInfo{{
			SType:       vk.StructureTypeCommandBufferInheritanceInfo,
			RenderPass:  d.renderPass.get(uint64(inheritance.RenderPass)),
			Subpass:     inheritance.Subpass,
			Framebuffer: d.framebuffer.get(uint64(inheritance.Framebuffer)),
		}}
	}

	return resultError(vk.BeginCommandBuffer(d.commandBuffer(cb), &beginInfo))
}

// EndCommandBuffer implements driver.Device.
func (d *Device) EndCommandBuffer(cb driver.CommandBuffer) error {
	return resultError(vk.EndCommandBuffer(d.commandBuffer(cb)))
}

// CreateFence implements driver.Device.
func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	fenceInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := resultError(vk.CreateFence(d.device, &fenceInfo, nil, &fence)); err != nil {
		return 0, errors.Wrap(err, "create fence")
	}
	return driver.Fence(d.fences.put(fence)), nil
}

// DestroyFence implements driver.Device.
func (d *Device) DestroyFence(fence driver.Fence) {
	if f, ok := d.fences.take(uint64(fence)); ok {
		vk.DestroyFence(d.device, f, nil)
	}
}

func (d *Device) nativeFences(fences []driver.Fence) []vk.Fence {
	out := make([]vk.Fence, len(fences))
	for i, f := range fences {
		out[i] = d.fences.get(uint64(f))
	}
	return out
}

// WaitForFences implements driver.Device.
func (d *Device) WaitForFences(fences []driver.Fence, waitAll bool, timeout time.Duration) error {
	if len(fences) == 0 {
		return nil
	}
	native := d.nativeFences(fences)
	res := vk.WaitForFences(d.device, uint32(len(native)), native, toBool(waitAll), timeoutNanos(timeout))
	return resultError(res)
}

// ResetFences implements driver.Device.
func (d *Device) ResetFences(fences []driver.Fence) error {
	if len(fences) == 0 {
		return nil
	}
	native := d.nativeFences(fences)
	return resultError(vk.ResetFences(d.device, uint32(len(native)), native))
}

// FenceSignaled implements driver.Device.
func (d *Device) FenceSignaled(fence driver.Fence) (bool, error) {
	switch res := vk.GetFenceStatus(d.device, d.fences.get(uint64(fence))); res {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, resultError(res)
	}
}

// CreateSemaphore implements driver.Device.
func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	semaphoreInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var sem vk.Semaphore
	if err := resultError(vk.CreateSemaphore(d.device, &semaphoreInfo, nil, &sem)); err != nil {
		return 0, errors.Wrap(err, "create semaphore")
	}
	return driver.Semaphore(d.semaphores.put(sem)), nil
}

// DestroySemaphore implements driver.Device.
func (d *Device) DestroySemaphore(sem driver.Semaphore) {
	if s, ok := d.semaphores.take(uint64(sem)); ok {
		vk.DestroySemaphore(d.device, s, nil)
	}
}

// Submit implements driver.Device.
func (d *Device) Submit(queue driver.Queue, batches []driver.SubmitInfo, fence driver.Fence) error {
	infos := make([]vk.SubmitInfo, len(batches))
	for i, b := range batches {
		waits := make([]vk.Semaphore, len(b.Waits))
		stages := make([]vk.PipelineStageFlags, len(b.Waits))
		for w, wait := range b.Waits {
			waits[w] = d.semaphores.get(uint64(wait.Semaphore))
			stages[w] = toStages(wait.Stage)
		}
		cbs := make([]vk.CommandBuffer, len(b.CommandBuffers))
		for c, cb := range b.CommandBuffers {
			cbs[c] = d.commandBuffer(cb)
		}
		signals := make([]vk.Semaphore, len(b.Signals))
		for s, sem := range b.Signals {
			signals[s] = d.semaphores.get(uint64(sem))
		}

		infos[i] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(waits)),
			PWaitSemaphores:      waits,
			PWaitDstStageMask:    stages,
			CommandBufferCount:   uint32(len(cbs)),
			PCommandBuffers:      cbs,
			SignalSemaphoreCount: uint32(len(signals)),
			PSignalSemaphores:    signals,
		}
	}

	vkFence := vk.NullFence
	if fence != 0 {
		vkFence = d.fences.get(uint64(fence))
	}
	res := vk.QueueSubmit(d.queueTable.get(uint64(queue)), uint32(len(infos)), infos, vkFence)
	return resultError(res)
}

// Present implements driver.Device.
func (d *Device) Present(queue driver.Queue, info driver.PresentInfo) (driver.Status, error) {
	waits := make([]vk.Semaphore, len(info.Waits))
	for i, sem := range info.Waits {
		waits[i] = d.semaphores.get(uint64(sem))
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{d.swapchains.get(uint64(info.Swapchain)).sc},
		PImageIndices:      []uint32{info.ImageIndex},
	}

	switch res := vk.QueuePresent(d.queueTable.get(uint64(queue)), &presentInfo); res {
	case vk.Success:
		return driver.StatusSuccess, nil
	case vk.Suboptimal:
		return driver.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return driver.StatusOutOfDate, nil
	default:
		return driver.StatusSuccess, resultError(res)
	}
}

// CreateSwapchain implements driver.Device. The returned images belong to
// the swapchain and must not be destroyed individually.
func (d *Device) CreateSwapchain(info driver.SwapchainCreateInfo) (driver.Swapchain, []driver.Image, error) {
	if !d.inst.HasSurface() {
		return 0, nil, driver.ErrNoSurface
	}
	caps, err := d.inst.capabilities(d.physical)
	if err != nil {
		return 0, nil, err
	}

	mode, families := sharing(info.Families)
	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.inst.surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      toFormat(info.Format.Format),
		ImageColorSpace:  toColorSpace(info.Format.ColorSpace),
		ImageExtent:      vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: mode,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      toPresentMode(info.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if len(families) > 0 {
		createInfo.QueueFamilyIndexCount = uint32(len(families))
		createInfo.PQueueFamilyIndices = families
	}
	if info.Old != 0 {
		createInfo.OldSwapchain = d.swapchains.get(uint64(info.Old)).sc
	}

	var sc vk.Swapchain
	if err := resultError(vk.CreateSwapchain(d.device, &createInfo, nil, &sc)); err != nil {
		return 0, nil, errors.Wrap(err, "create swapchain")
	}

	var count uint32
	vk.GetSwapchainImages(d.device, sc, &count, nil)
	native := make([]vk.Image, count)
	vk.GetSwapchainImages(d.device, sc, &count, native)

	images := make([]driver.Image, count)
	for i, img := range native {
		images[i] = driver.Image(d.images.put(image{img: img}))
	}
	h := driver.Swapchain(d.swapchains.put(swapchain{sc: sc, images: images}))
	return h, append([]driver.Image(nil), images...), nil
}

// DestroySwapchain implements driver.Device.
func (d *Device) DestroySwapchain(handle driver.Swapchain) {
	sc, ok := d.swapchains.take(uint64(handle))
	if !ok {
		return
	}
	for _, img := range sc.images {
		d.images.take(uint64(img))
	}
	vk.DestroySwapchain(d.device, sc.sc, nil)
}

// AcquireNextImage implements driver.Device.
func (d *Device) AcquireNextImage(handle driver.Swapchain, timeout time.Duration, signal driver.Semaphore) (uint32, driver.Status, error) {
	var index uint32
	res := vk.AcquireNextImage(
		d.device,
		d.swapchains.get(uint64(handle)).sc,
		timeoutNanos(timeout),
		d.semaphores.get(uint64(signal)),
		vk.NullFence,
		&index,
	)
	switch res {
	case vk.Success:
		return index, driver.StatusSuccess, nil
	case vk.Suboptimal:
		return index, driver.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, driver.StatusOutOfDate, nil
	default:
		return 0, driver.StatusSuccess, resultError(res)
	}
}
