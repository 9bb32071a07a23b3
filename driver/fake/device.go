package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

// Event is one entry of the device event log.
type Event struct {
	Op     string
	Handle uint64
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%d)", e.Op, e.Handle)
}

// Event operations.
const (
	OpBegin            = "begin"
	OpSubmit           = "submit"
	OpComplete         = "complete"
	OpWaitFence        = "wait-fence"
	OpResetFence       = "reset-fence"
	OpResetPool        = "reset-pool"
	OpFree             = "free"
	OpAcquire          = "acquire"
	OpPresent          = "present"
	OpWaitIdle         = "wait-idle"
	OpCreateSwapchain  = "create-swapchain"
	OpDestroySwapchain = "destroy-swapchain"
)

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
	cbPending
	cbInvalid
)

type commandBuffer struct {
	pool  driver.CommandPool
	level driver.CommandBufferLevel
	usage driver.CommandBufferUsage
	state cbState
	cmds  []Command
	// pending counts submissions, direct or through a primary, which have
	// not completed.
	pending int
}

type buffer struct {
	info driver.BufferCreateInfo
	data []byte
	// transferWritten is set by a copy into the buffer and cleared by a
	// memory barrier making transfer writes available.
	transferWritten bool
}

type image struct {
	info      driver.ImageCreateInfo
	data      []byte
	layout    driver.ImageLayout
	swapchain driver.Swapchain
}

type view struct {
	image  driver.Image
	format driver.Format
}

type swapchain struct {
	info    driver.SwapchainCreateInfo
	images  []driver.Image
	next    uint32
	retired bool
}

type semaphore struct {
	signaled        bool
	consumeOnSignal bool
}

type submission struct {
	queue   driver.Queue
	batches []driver.SubmitInfo
	fence   driver.Fence
}

// Device is a fake driver.Device. It is safe for concurrent use.
type Device struct {
	mu   sync.Mutex
	inst *Instance
	phys driver.PhysicalDeviceInfo
	info driver.DeviceCreateInfo

	next      uint64
	lost      bool
	destroyed bool

	pools        map[driver.CommandPool]driver.CommandPoolFlags
	cbs          map[driver.CommandBuffer]*commandBuffer
	fences       map[driver.Fence]bool
	sems         map[driver.Semaphore]*semaphore
	buffers      map[driver.Buffer]*buffer
	images       map[driver.Image]*image
	views        map[driver.ImageView]view
	samplers     map[driver.Sampler]driver.SamplerCreateInfo
	renderPasses map[driver.RenderPass]driver.RenderPassCreateInfo
	framebuffers map[driver.Framebuffer]driver.FramebufferCreateInfo
	swapchains   map[driver.Swapchain]*swapchain
	setLayouts   map[driver.DescriptorSetLayout][]driver.DescriptorBinding
	descPools    map[driver.DescriptorPool][]driver.DescriptorSet
	sets         map[driver.DescriptorSet]map[uint32]driver.DescriptorWrite
	modules      map[driver.ShaderModule][]byte
	pipeLayouts  map[driver.PipelineLayout][]driver.DescriptorSetLayout
	pipelines    map[driver.Pipeline]driver.GraphicsPipelineCreateInfo

	queue      []*submission
	events     []Event
	violations []string
}

var _ driver.Device = (*Device)(nil)

func newDevice(inst *Instance, phys driver.PhysicalDeviceInfo, info driver.DeviceCreateInfo) *Device {
	return &Device{
		inst:         inst,
		phys:         phys,
		info:         info,
		next:         1000,
		pools:        make(map[driver.CommandPool]driver.CommandPoolFlags),
		cbs:          make(map[driver.CommandBuffer]*commandBuffer),
		fences:       make(map[driver.Fence]bool),
		sems:         make(map[driver.Semaphore]*semaphore),
		buffers:      make(map[driver.Buffer]*buffer),
		images:       make(map[driver.Image]*image),
		views:        make(map[driver.ImageView]view),
		samplers:     make(map[driver.Sampler]driver.SamplerCreateInfo),
		renderPasses: make(map[driver.RenderPass]driver.RenderPassCreateInfo),
		framebuffers: make(map[driver.Framebuffer]driver.FramebufferCreateInfo),
		swapchains:   make(map[driver.Swapchain]*swapchain),
		setLayouts:   make(map[driver.DescriptorSetLayout][]driver.DescriptorBinding),
		descPools:    make(map[driver.DescriptorPool][]driver.DescriptorSet),
		sets:         make(map[driver.DescriptorSet]map[uint32]driver.DescriptorWrite),
		modules:      make(map[driver.ShaderModule][]byte),
		pipeLayouts:  make(map[driver.PipelineLayout][]driver.DescriptorSetLayout),
		pipelines:    make(map[driver.Pipeline]driver.GraphicsPipelineCreateInfo),
	}
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

func (d *Device) log(op string, h uint64) {
	d.events = append(d.events, Event{Op: op, Handle: h})
}

func (d *Device) violate(format string, args ...any) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

// Queue implements driver.Device.
func (d *Device) Queue(family, index uint32) driver.Queue {
	return driver.Queue((uint64(family)<<8 | uint64(index)) + 1)
}

// QueueFamily returns the family a queue handle belongs to.
func QueueFamily(q driver.Queue) uint32 {
	return uint32((uint64(q) - 1) >> 8)
}

// WaitIdle implements driver.Device. It completes all pending work.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return driver.ErrDeviceLost
	}
	d.log(OpWaitIdle, 0)
	d.completeLocked(len(d.queue))
	return nil
}

// Destroy implements driver.Device.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) > 0 && !d.lost {
		d.violate("device destroyed with %d pending submissions", len(d.queue))
	}
	d.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (d *Device) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// CreateCommandPool implements driver.Device.
func (d *Device) CreateCommandPool(family uint32, flags driver.CommandPoolFlags) (driver.CommandPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(family) >= len(d.phys.Families) {
		return 0, errors.Errorf("fake: invalid queue family %d", family)
	}
	p := driver.CommandPool(d.handle())
	d.pools[p] = flags
	return p, nil
}

// ResetCommandPool implements driver.Device.
func (d *Device) ResetCommandPool(pool driver.CommandPool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pools[pool]; !ok {
		return errors.Errorf("fake: unknown command pool %d", pool)
	}
	d.log(OpResetPool, uint64(pool))
	for h, cb := range d.cbs {
		if cb.pool != pool {
			continue
		}
		if cb.pending > 0 {
			d.violate("command pool %d reset while command buffer %d is pending", pool, h)
		}
		cb.state = cbInitial
		cb.cmds = nil
	}
	return nil
}

// DestroyCommandPool implements driver.Device.
func (d *Device) DestroyCommandPool(pool driver.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for h, cb := range d.cbs {
		if cb.pool != pool {
			continue
		}
		if cb.pending > 0 {
			d.violate("command pool %d destroyed while command buffer %d is pending", pool, h)
		}
		delete(d.cbs, h)
	}
	delete(d.pools, pool)
}

// AllocateCommandBuffers implements driver.Device.
func (d *Device) AllocateCommandBuffers(
	pool driver.CommandPool,
	level driver.CommandBufferLevel,
	count uint32,
) ([]driver.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pools[pool]; !ok {
		return nil, errors.Errorf("fake: unknown command pool %d", pool)
	}
	out := make([]driver.CommandBuffer, count)
	for i := range out {
		h := driver.CommandBuffer(d.handle())
		d.cbs[h] = &commandBuffer{pool: pool, level: level}
		out[i] = h
	}
	return out, nil
}

// FreeCommandBuffers implements driver.Device.
func (d *Device) FreeCommandBuffers(pool driver.CommandPool, buffers []driver.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range buffers {
		cb, ok := d.cbs[h]
		if !ok || cb.pool != pool {
			d.violate("command buffer %d freed to the wrong pool %d", h, pool)
			continue
		}
		if cb.pending > 0 {
			d.violate("command buffer %d freed while pending", h)
		}
		d.log(OpFree, uint64(h))
		delete(d.cbs, h)
	}
}

// BeginCommandBuffer implements driver.Device.
func (d *Device) BeginCommandBuffer(
	h driver.CommandBuffer,
	usage driver.CommandBufferUsage,
	inheritance *driver.Inheritance,
) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.cbs[h]
	if !ok {
		return errors.Errorf("fake: unknown command buffer %d", h)
	}
	if cb.pending > 0 {
		d.violate("command buffer %d re-recorded while pending", h)
	}
	if cb.state == cbRecording {
		d.violate("command buffer %d begun while recording", h)
	}
	if cb.level == driver.LevelSecondary && usage&driver.UsageRenderPassContinue != 0 && inheritance == nil {
		d.violate("secondary command buffer %d continues a render pass without inheritance", h)
	}
	d.log(OpBegin, uint64(h))
	cb.state = cbRecording
	cb.usage = usage
	cb.cmds = nil
	return nil
}

// EndCommandBuffer implements driver.Device.
func (d *Device) EndCommandBuffer(h driver.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.cbs[h]
	if !ok {
		return errors.Errorf("fake: unknown command buffer %d", h)
	}
	if cb.state != cbRecording {
		d.violate("command buffer %d ended while not recording", h)
	}
	cb.state = cbExecutable
	return nil
}

// CreateFence implements driver.Device.
func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := driver.Fence(d.handle())
	d.fences[f] = signaled
	return f, nil
}

// DestroyFence implements driver.Device.
func (d *Device) DestroyFence(f driver.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.queue {
		if s.fence == f {
			d.violate("fence %d destroyed while its submission is pending", f)
		}
	}
	delete(d.fences, f)
}

// WaitForFences implements driver.Device. Waiting on a submitted fence runs
// the GPU until the fence signals. Waiting on a fence that was never
// submitted times out.
func (d *Device) WaitForFences(fences []driver.Fence, waitAll bool, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return driver.ErrDeviceLost
	}

	satisfied := 0
	for _, f := range fences {
		signaled, ok := d.fences[f]
		if !ok {
			return errors.Errorf("fake: unknown fence %d", f)
		}
		d.log(OpWaitFence, uint64(f))
		if signaled {
			satisfied++
			if !waitAll {
				return nil
			}
			continue
		}
		idx := d.submissionIndex(f)
		if idx < 0 {
			if waitAll {
				return driver.ErrTimeout
			}
			continue
		}
		d.completeLocked(idx + 1)
		satisfied++
		if !waitAll {
			return nil
		}
	}
	if satisfied == 0 {
		return driver.ErrTimeout
	}
	return nil
}

// ResetFences implements driver.Device.
func (d *Device) ResetFences(fences []driver.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range fences {
		if _, ok := d.fences[f]; !ok {
			return errors.Errorf("fake: unknown fence %d", f)
		}
		if d.submissionIndex(f) >= 0 {
			d.violate("fence %d reset while its submission is pending", f)
		}
		d.log(OpResetFence, uint64(f))
		d.fences[f] = false
	}
	return nil
}

// FenceSignaled implements driver.Device.
func (d *Device) FenceSignaled(f driver.Fence) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return false, driver.ErrDeviceLost
	}
	signaled, ok := d.fences[f]
	if !ok {
		return false, errors.Errorf("fake: unknown fence %d", f)
	}
	return signaled, nil
}

// CreateSemaphore implements driver.Device.
func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := driver.Semaphore(d.handle())
	d.sems[s] = &semaphore{}
	return s, nil
}

// DestroySemaphore implements driver.Device.
func (d *Device) DestroySemaphore(s driver.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sub := range d.queue {
		for _, b := range sub.batches {
			for _, w := range b.Waits {
				if w.Semaphore == s {
					d.violate("semaphore %d destroyed while a pending submission waits on it", s)
				}
			}
			for _, sig := range b.Signals {
				if sig == s {
					d.violate("semaphore %d destroyed while a pending submission signals it", s)
				}
			}
		}
	}
	delete(d.sems, s)
}

// Submit implements driver.Device.
func (d *Device) Submit(q driver.Queue, batches []driver.SubmitInfo, fence driver.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return driver.ErrDeviceLost
	}
	if fence != 0 {
		signaled, ok := d.fences[fence]
		if !ok {
			return errors.Errorf("fake: unknown fence %d", fence)
		}
		if signaled || d.submissionIndex(fence) >= 0 {
			d.violate("fence %d submitted while signaled or in use", fence)
		}
	}

	for _, b := range batches {
		for _, w := range b.Waits {
			s, ok := d.sems[w.Semaphore]
			if !ok {
				return errors.Errorf("fake: unknown semaphore %d", w.Semaphore)
			}
			if !s.signaled && !d.signalPending(w.Semaphore) {
				d.violate("submission waits on semaphore %d which nothing signals", w.Semaphore)
			}
		}
		for _, h := range b.CommandBuffers {
			cb, ok := d.cbs[h]
			if !ok {
				return errors.Errorf("fake: unknown command buffer %d", h)
			}
			if cb.level != driver.LevelPrimary {
				d.violate("secondary command buffer %d submitted directly", h)
			}
			if cb.state != cbExecutable && !(cb.state == cbPending && cb.usage&driver.UsageSimultaneousUse != 0) {
				d.violate("command buffer %d submitted while not executable", h)
			}
			d.markPending(h, 1)
		}
	}

	d.queue = append(d.queue, &submission{queue: q, batches: batches, fence: fence})
	d.log(OpSubmit, uint64(fence))
	return nil
}

func (d *Device) markPending(h driver.CommandBuffer, delta int) {
	cb := d.cbs[h]
	if cb == nil {
		return
	}
	cb.pending += delta
	switch {
	case cb.pending > 0:
		cb.state = cbPending
	case cb.usage&driver.UsageOneTimeSubmit != 0:
		cb.state = cbInvalid
	default:
		cb.state = cbExecutable
	}
	for _, c := range cb.cmds {
		for _, sec := range c.Secondaries {
			d.markPending(sec, delta)
		}
	}
}

func (d *Device) submissionIndex(f driver.Fence) int {
	for i, s := range d.queue {
		if s.fence == f {
			return i
		}
	}
	return -1
}

func (d *Device) signalPending(sem driver.Semaphore) bool {
	for _, sub := range d.queue {
		for _, b := range sub.batches {
			for _, s := range b.Signals {
				if s == sem {
					return true
				}
			}
		}
	}
	return false
}

// Pending returns the number of submissions which have not completed.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Complete runs the n oldest pending submissions to completion.
func (d *Device) Complete(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completeLocked(n)
}

// CompleteAll runs every pending submission to completion.
func (d *Device) CompleteAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completeLocked(len(d.queue))
}

func (d *Device) completeLocked(n int) {
	if n > len(d.queue) {
		n = len(d.queue)
	}
	for _, sub := range d.queue[:n] {
		for _, b := range sub.batches {
			for _, w := range b.Waits {
				if s := d.sems[w.Semaphore]; s != nil {
					s.signaled = false
				}
			}
			for _, h := range b.CommandBuffers {
				d.execute(h)
				d.markPending(h, -1)
			}
			for _, sig := range b.Signals {
				s := d.sems[sig]
				if s == nil {
					continue
				}
				if s.consumeOnSignal {
					s.consumeOnSignal = false
					continue
				}
				s.signaled = true
			}
		}
		if sub.fence != 0 {
			d.fences[sub.fence] = true
		}
		d.log(OpComplete, uint64(sub.fence))
	}
	d.queue = append(d.queue[:0], d.queue[n:]...)
}

// LoseDevice makes every later submission, wait and present fail with
// driver.ErrDeviceLost. Pending submissions never complete.
func (d *Device) LoseDevice() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lost = true
}

// Events returns a copy of the event log.
func (d *Device) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// ClearEvents empties the event log.
func (d *Device) ClearEvents() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

// Violations returns every protocol violation observed so far.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// Alive reports whether a handle of any kind is currently live.
func (d *Device) Alive(h uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.aliveLocked(h)
}

func (d *Device) aliveLocked(h uint64) bool {
	if _, ok := d.pools[driver.CommandPool(h)]; ok {
		return true
	}
	if _, ok := d.cbs[driver.CommandBuffer(h)]; ok {
		return true
	}
	if _, ok := d.fences[driver.Fence(h)]; ok {
		return true
	}
	if _, ok := d.sems[driver.Semaphore(h)]; ok {
		return true
	}
	if _, ok := d.buffers[driver.Buffer(h)]; ok {
		return true
	}
	if _, ok := d.images[driver.Image(h)]; ok {
		return true
	}
	if _, ok := d.views[driver.ImageView(h)]; ok {
		return true
	}
	if _, ok := d.samplers[driver.Sampler(h)]; ok {
		return true
	}
	if _, ok := d.renderPasses[driver.RenderPass(h)]; ok {
		return true
	}
	if _, ok := d.framebuffers[driver.Framebuffer(h)]; ok {
		return true
	}
	if _, ok := d.swapchains[driver.Swapchain(h)]; ok {
		return true
	}
	if _, ok := d.setLayouts[driver.DescriptorSetLayout(h)]; ok {
		return true
	}
	if _, ok := d.descPools[driver.DescriptorPool(h)]; ok {
		return true
	}
	if _, ok := d.sets[driver.DescriptorSet(h)]; ok {
		return true
	}
	if _, ok := d.modules[driver.ShaderModule(h)]; ok {
		return true
	}
	if _, ok := d.pipeLayouts[driver.PipelineLayout(h)]; ok {
		return true
	}
	_, ok := d.pipelines[driver.Pipeline(h)]
	return ok
}

// LiveObjects counts live objects. Command buffers and descriptor sets are
// not counted since they are released with their pools.
func (d *Device) LiveObjects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pools) + len(d.fences) + len(d.sems) + len(d.buffers) +
		len(d.images) - d.swapchainImagesLocked() + len(d.views) + len(d.samplers) +
		len(d.renderPasses) + len(d.framebuffers) + len(d.swapchains) +
		len(d.setLayouts) + len(d.descPools) + len(d.modules) +
		len(d.pipeLayouts) + len(d.pipelines)
}

func (d *Device) swapchainImagesLocked() int {
	n := 0
	for _, img := range d.images {
		if img.swapchain != 0 {
			n++
		}
	}
	return n
}
