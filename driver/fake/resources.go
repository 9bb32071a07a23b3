package fake

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

// CreateBuffer implements driver.Device.
func (d *Device) CreateBuffer(info driver.BufferCreateInfo) (driver.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Size == 0 {
		return 0, errors.New("fake: zero sized buffer")
	}
	d.checkFamilies(info.Families)
	b := driver.Buffer(d.handle())
	info.Families = append([]uint32(nil), info.Families...)
	d.buffers[b] = &buffer{info: info, data: make([]byte, info.Size)}
	return b, nil
}

func (d *Device) checkFamilies(families []uint32) {
	seen := make(map[uint32]bool, len(families))
	for _, f := range families {
		if seen[f] {
			d.violate("queue family %d listed twice for concurrent sharing", f)
		}
		seen[f] = true
	}
}

// DestroyBuffer implements driver.Device.
func (d *Device) DestroyBuffer(b driver.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.referencedLocked(uint64(b)) {
		d.violate("buffer %d destroyed while a pending submission uses it", b)
	}
	delete(d.buffers, b)
}

// WriteBuffer implements driver.Device.
func (d *Device) WriteBuffer(b driver.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok {
		return errors.Errorf("fake: unknown buffer %d", b)
	}
	if buf.info.Visibility != driver.HostVisible {
		return driver.ErrNotHostVisible
	}
	if offset+uint64(len(data)) > uint64(len(buf.data)) {
		return driver.ErrOutOfRange
	}
	copy(buf.data[offset:], data)
	return nil
}

// ReadBuffer implements driver.Device.
func (d *Device) ReadBuffer(b driver.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok {
		return errors.Errorf("fake: unknown buffer %d", b)
	}
	if buf.info.Visibility != driver.HostVisible {
		return driver.ErrNotHostVisible
	}
	if offset+uint64(len(data)) > uint64(len(buf.data)) {
		return driver.ErrOutOfRange
	}
	copy(data, buf.data[offset:])
	return nil
}

// BufferContents returns a copy of any buffer's memory, host visible or not.
func (d *Device) BufferContents(b driver.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok {
		return nil
	}
	return append([]byte(nil), buf.data...)
}

// BufferInfo returns the create info of a buffer.
func (d *Device) BufferInfo(b driver.Buffer) (driver.BufferCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok {
		return driver.BufferCreateInfo{}, false
	}
	return buf.info, true
}

// CreateImage implements driver.Device.
func (d *Device) CreateImage(info driver.ImageCreateInfo) (driver.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Width == 0 || info.Height == 0 {
		return 0, errors.New("fake: zero sized image")
	}
	d.checkFamilies(info.Families)
	img := driver.Image(d.handle())
	size := uint64(info.Width) * uint64(info.Height) * uint64(info.Format.Size())
	info.Families = append([]uint32(nil), info.Families...)
	d.images[img] = &image{info: info, data: make([]byte, size)}
	return img, nil
}

// DestroyImage implements driver.Device.
func (d *Device) DestroyImage(img driver.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.images[img]; ok && i.swapchain != 0 {
		d.violate("swapchain image %d destroyed directly", img)
	}
	if d.referencedLocked(uint64(img)) {
		d.violate("image %d destroyed while a pending submission uses it", img)
	}
	delete(d.images, img)
}

// ImageContents returns a copy of an image's texels.
func (d *Device) ImageContents(img driver.Image) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.images[img]
	if !ok {
		return nil
	}
	return append([]byte(nil), i.data...)
}

// ImageLayout returns the layout an image is in after all completed work.
func (d *Device) ImageLayout(img driver.Image) driver.ImageLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.images[img]; ok {
		return i.layout
	}
	return driver.LayoutUndefined
}

// ImageInfo returns the create info of an image.
func (d *Device) ImageInfo(img driver.Image) (driver.ImageCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.images[img]
	if !ok {
		return driver.ImageCreateInfo{}, false
	}
	return i.info, true
}

// CreateImageView implements driver.Device.
func (d *Device) CreateImageView(img driver.Image, format driver.Format, _ driver.ImageAspect) (driver.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[img]; !ok {
		return 0, errors.Errorf("fake: unknown image %d", img)
	}
	v := driver.ImageView(d.handle())
	d.views[v] = view{image: img, format: format}
	return v, nil
}

// DestroyImageView implements driver.Device.
func (d *Device) DestroyImageView(v driver.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, v)
}

// ViewExtent returns the extent of the image a view looks at.
func (d *Device) ViewExtent(v driver.ImageView) (driver.Extent2D, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vw, ok := d.views[v]
	if !ok {
		return driver.Extent2D{}, false
	}
	img, ok := d.images[vw.image]
	if !ok {
		return driver.Extent2D{}, false
	}
	return driver.Extent2D{Width: img.info.Width, Height: img.info.Height}, true
}

// CreateSampler implements driver.Device.
func (d *Device) CreateSampler(info driver.SamplerCreateInfo) (driver.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Anisotropy && !d.info.SamplerAnisotropy {
		d.violate("anisotropic sampler created without the samplerAnisotropy feature")
	}
	s := driver.Sampler(d.handle())
	d.samplers[s] = info
	return s, nil
}

// DestroySampler implements driver.Device.
func (d *Device) DestroySampler(s driver.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.samplers, s)
}

// FormatSupported implements driver.Device.
func (d *Device) FormatSupported(format driver.Format, feature driver.FormatFeature) bool {
	if feature&driver.FeatureDepthStencilAttachment != 0 {
		switch format {
		case driver.FormatD32Sfloat, driver.FormatD32SfloatS8Uint, driver.FormatD24UnormS8Uint:
			return d.inst.depthSupported(format)
		default:
			return false
		}
	}
	return format.Size() > 0
}

// CreateRenderPass implements driver.Device.
func (d *Device) CreateRenderPass(info driver.RenderPassCreateInfo) (driver.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rp := driver.RenderPass(d.handle())
	d.renderPasses[rp] = info
	return rp, nil
}

// DestroyRenderPass implements driver.Device.
func (d *Device) DestroyRenderPass(rp driver.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.renderPasses, rp)
}

// CreateFramebuffer implements driver.Device.
func (d *Device) CreateFramebuffer(info driver.FramebufferCreateInfo) (driver.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.renderPasses[info.RenderPass]; !ok {
		return 0, errors.Errorf("fake: unknown render pass %d", info.RenderPass)
	}
	for _, v := range info.Attachments {
		if _, ok := d.views[v]; !ok {
			return 0, errors.Errorf("fake: unknown image view %d", v)
		}
	}
	fb := driver.Framebuffer(d.handle())
	info.Attachments = append([]driver.ImageView(nil), info.Attachments...)
	d.framebuffers[fb] = info
	return fb, nil
}

// DestroyFramebuffer implements driver.Device.
func (d *Device) DestroyFramebuffer(fb driver.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.referencedLocked(uint64(fb)) {
		d.violate("framebuffer %d destroyed while a pending submission uses it", fb)
	}
	delete(d.framebuffers, fb)
}

// FramebufferInfo returns the create info of a framebuffer.
func (d *Device) FramebufferInfo(fb driver.Framebuffer) (driver.FramebufferCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.framebuffers[fb]
	return info, ok
}

// CreateSwapchain implements driver.Device.
func (d *Device) CreateSwapchain(info driver.SwapchainCreateInfo) (driver.Swapchain, []driver.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inst.HasSurface() {
		return 0, nil, driver.ErrNoSurface
	}
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		return 0, nil, errors.New("fake: zero sized swapchain")
	}
	d.checkFamilies(info.Families)
	if info.Old != 0 {
		old, ok := d.swapchains[info.Old]
		if !ok {
			return 0, nil, errors.Errorf("fake: unknown old swapchain %d", info.Old)
		}
		old.retired = true
	}

	sc := driver.Swapchain(d.handle())
	images := make([]driver.Image, info.MinImageCount)
	for i := range images {
		img := driver.Image(d.handle())
		d.images[img] = &image{
			info: driver.ImageCreateInfo{
				Width:  info.Extent.Width,
				Height: info.Extent.Height,
				Format: info.Format.Format,
				Usage:  driver.ImageColorAttachment,
			},
			swapchain: sc,
		}
		images[i] = img
	}
	d.swapchains[sc] = &swapchain{info: info, images: images}
	d.inst.swapchainCreated()
	d.log(OpCreateSwapchain, uint64(sc))
	return sc, append([]driver.Image(nil), images...), nil
}

// DestroySwapchain implements driver.Device.
func (d *Device) DestroySwapchain(sc driver.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.swapchains[sc]
	if !ok {
		return
	}
	for _, img := range s.images {
		if d.referencedLocked(uint64(img)) {
			d.violate("swapchain %d destroyed while image %d is in use", sc, img)
		}
		delete(d.images, img)
	}
	delete(d.swapchains, sc)
	d.log(OpDestroySwapchain, uint64(sc))
}

// SwapchainInfo returns the create info of a swapchain.
func (d *Device) SwapchainInfo(sc driver.Swapchain) (driver.SwapchainCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.swapchains[sc]
	if !ok {
		return driver.SwapchainCreateInfo{}, false
	}
	return s.info, true
}

// AcquireNextImage implements driver.Device. Images are handed out round
// robin and the semaphore signals immediately.
func (d *Device) AcquireNextImage(
	sc driver.Swapchain,
	_ time.Duration,
	signal driver.Semaphore,
) (uint32, driver.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return 0, driver.StatusSuccess, driver.ErrDeviceLost
	}
	s, ok := d.swapchains[sc]
	if !ok {
		return 0, driver.StatusSuccess, errors.Errorf("fake: unknown swapchain %d", sc)
	}
	outOfDate, suboptimal := d.inst.surfaceState()
	if outOfDate || s.retired {
		return 0, driver.StatusOutOfDate, nil
	}
	sem, ok := d.sems[signal]
	if !ok {
		return 0, driver.StatusSuccess, errors.Errorf("fake: unknown semaphore %d", signal)
	}
	if sem.signaled || d.signalPending(signal) {
		d.violate("acquire signals semaphore %d which is already signaled", signal)
	}
	sem.signaled = true

	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	d.log(OpAcquire, uint64(idx))
	if suboptimal {
		return idx, driver.StatusSuboptimal, nil
	}
	return idx, driver.StatusSuccess, nil
}

// Present implements driver.Device.
func (d *Device) Present(q driver.Queue, info driver.PresentInfo) (driver.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return driver.StatusSuccess, driver.ErrDeviceLost
	}
	s, ok := d.swapchains[info.Swapchain]
	if !ok {
		return driver.StatusSuccess, errors.Errorf("fake: unknown swapchain %d", info.Swapchain)
	}
	if int(info.ImageIndex) >= len(s.images) {
		return driver.StatusSuccess, errors.Errorf("fake: image index %d out of range", info.ImageIndex)
	}
	for _, w := range info.Waits {
		sem, ok := d.sems[w]
		if !ok {
			return driver.StatusSuccess, errors.Errorf("fake: unknown semaphore %d", w)
		}
		switch {
		case sem.signaled:
			sem.signaled = false
		case d.signalPending(w):
			sem.consumeOnSignal = true
		default:
			d.violate("present waits on semaphore %d which nothing signals", w)
		}
	}
	d.log(OpPresent, uint64(info.ImageIndex))

	outOfDate, suboptimal := d.inst.surfaceState()
	switch {
	case outOfDate || s.retired:
		return driver.StatusOutOfDate, nil
	case suboptimal:
		return driver.StatusSuboptimal, nil
	}
	return driver.StatusSuccess, nil
}

// CreateDescriptorSetLayout implements driver.Device.
func (d *Device) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := driver.DescriptorSetLayout(d.handle())
	d.setLayouts[l] = append([]driver.DescriptorBinding(nil), bindings...)
	return l, nil
}

// DestroyDescriptorSetLayout implements driver.Device.
func (d *Device) DestroyDescriptorSetLayout(l driver.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.setLayouts, l)
}

// DescriptorSetLayoutBindings returns the bindings a layout was created with.
func (d *Device) DescriptorSetLayoutBindings(l driver.DescriptorSetLayout) []driver.DescriptorBinding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.DescriptorBinding(nil), d.setLayouts[l]...)
}

// CreateDescriptorPool implements driver.Device.
func (d *Device) CreateDescriptorPool(driver.DescriptorPoolCreateInfo) (driver.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := driver.DescriptorPool(d.handle())
	d.descPools[p] = nil
	return p, nil
}

// DestroyDescriptorPool implements driver.Device.
func (d *Device) DestroyDescriptorPool(p driver.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.descPools[p] {
		delete(d.sets, s)
	}
	delete(d.descPools, p)
}

// AllocateDescriptorSets implements driver.Device.
func (d *Device) AllocateDescriptorSets(
	p driver.DescriptorPool,
	layouts []driver.DescriptorSetLayout,
) ([]driver.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.descPools[p]; !ok {
		return nil, errors.Errorf("fake: unknown descriptor pool %d", p)
	}
	out := make([]driver.DescriptorSet, len(layouts))
	for i, l := range layouts {
		if _, ok := d.setLayouts[l]; !ok {
			return nil, errors.Errorf("fake: unknown descriptor set layout %d", l)
		}
		s := driver.DescriptorSet(d.handle())
		d.sets[s] = make(map[uint32]driver.DescriptorWrite)
		d.descPools[p] = append(d.descPools[p], s)
		out[i] = s
	}
	return out, nil
}

// UpdateDescriptorSet implements driver.Device.
func (d *Device) UpdateDescriptorSet(s driver.DescriptorSet, writes []driver.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.sets[s]
	if !ok {
		d.violate("update of unknown descriptor set %d", s)
		return
	}
	for _, w := range writes {
		set[w.Binding] = w
	}
}

// DescriptorWrites returns the current bindings of a descriptor set.
func (d *Device) DescriptorWrites(s driver.DescriptorSet) map[uint32]driver.DescriptorWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint32]driver.DescriptorWrite, len(d.sets[s]))
	for k, v := range d.sets[s] {
		out[k] = v
	}
	return out
}

// CreateShaderModule implements driver.Device.
func (d *Device) CreateShaderModule(code []byte) (driver.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Errorf("fake: shader code size %d is not a multiple of 4", len(code))
	}
	m := driver.ShaderModule(d.handle())
	d.modules[m] = append([]byte(nil), code...)
	return m, nil
}

// DestroyShaderModule implements driver.Device.
func (d *Device) DestroyShaderModule(m driver.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.modules, m)
}

// CreatePipelineLayout implements driver.Device.
func (d *Device) CreatePipelineLayout(setLayouts []driver.DescriptorSetLayout) (driver.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := driver.PipelineLayout(d.handle())
	d.pipeLayouts[l] = append([]driver.DescriptorSetLayout(nil), setLayouts...)
	return l, nil
}

// DestroyPipelineLayout implements driver.Device.
func (d *Device) DestroyPipelineLayout(l driver.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipeLayouts, l)
}

// CreateGraphicsPipeline implements driver.Device.
func (d *Device) CreateGraphicsPipeline(info driver.GraphicsPipelineCreateInfo) (driver.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pipeLayouts[info.Layout]; !ok {
		return 0, errors.Errorf("fake: unknown pipeline layout %d", info.Layout)
	}
	if _, ok := d.renderPasses[info.RenderPass]; !ok {
		return 0, errors.Errorf("fake: unknown render pass %d", info.RenderPass)
	}
	for _, s := range info.Stages {
		if _, ok := d.modules[s.Module]; !ok {
			return 0, errors.Errorf("fake: unknown shader module %d", s.Module)
		}
	}
	p := driver.Pipeline(d.handle())
	d.pipelines[p] = info
	return p, nil
}

// DestroyPipeline implements driver.Device.
func (d *Device) DestroyPipeline(p driver.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipelines, p)
}

// PipelineInfo returns the create info of a pipeline.
func (d *Device) PipelineInfo(p driver.Pipeline) (driver.GraphicsPipelineCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.pipelines[p]
	return info, ok
}
