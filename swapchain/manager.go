// Package swapchain owns the presentable images, their views and
// framebuffers, the depth buffer and the render pass drawing into them, and
// rebuilds them when the surface changes.
package swapchain

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/command"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/logging"
)

var (
	// ErrZeroExtent is returned while the surface has no area, for example
	// when the window is minimized. Retry after the window is restored.
	ErrZeroExtent = errors.New("surface has a zero extent")

	// ErrNoDepthFormat is returned when the device supports none of the
	// depth attachment formats.
	ErrNoDepthFormat = errors.New("failed to find supported depth format")
)

// Chain is one generation of swapchain resources. All of it is destroyed
// together.
type Chain struct {
	Handle       driver.Swapchain
	Images       []driver.Image
	Views        []driver.ImageView
	Framebuffers []driver.Framebuffer
	DepthImage   driver.Image
	DepthView    driver.ImageView

	Format      driver.SurfaceFormat
	Extent      driver.Extent2D
	PresentMode driver.PresentMode
	Viewport    driver.Viewport
	Scissor     driver.Rect2D
}

// Manager keeps exactly one live Chain.
type Manager struct {
	inst driver.Instance
	dev  *device.Logical
	log  *slog.Logger

	depthFormat driver.Format
	renderPass  driver.RenderPass
	colorFormat driver.Format
	chain       *Chain
}

// New builds the first chain for a window of the given size.
func New(inst driver.Instance, dev *device.Logical, width, height uint32, logger *slog.Logger) (*Manager, error) {
	if !inst.HasSurface() {
		return nil, driver.ErrNoSurface
	}

	m := &Manager{
		inst: inst,
		dev:  dev,
		log:  logging.Or(logger),
	}

	depth, ok := findDepthFormat(dev.Device)
	if !ok {
		return nil, ErrNoDepthFormat
	}
	m.depthFormat = depth

	chain, err := m.build(width, height, 0)
	if err != nil {
		m.Destroy()
		return nil, err
	}
	m.chain = chain
	return m, nil
}

// Chain returns the live chain.
func (m *Manager) Chain() *Chain { return m.chain }

// RenderPass returns the render pass compatible with the live chain. It only
// changes when a recreation changes the surface format.
func (m *Manager) RenderPass() driver.RenderPass { return m.renderPass }

// DepthFormat returns the format of the depth attachment.
func (m *Manager) DepthFormat() driver.Format { return m.depthFormat }

// Acquire gets the index of the next image to render to. sem is signaled
// once the image may be written. Out of date and suboptimal are reported as
// statuses.
func (m *Manager) Acquire(sem *command.Semaphore, timeout time.Duration) (uint32, driver.Status, error) {
	idx, status, err := m.dev.Device.AcquireNextImage(m.chain.Handle, timeout, sem.Handle())
	if err != nil {
		return 0, status, errors.Wrap(err, "acquire swapchain image")
	}
	return idx, status, nil
}

// Present queues image index for presentation after wait signals.
func (m *Manager) Present(wait *command.Semaphore, index uint32) (driver.Status, error) {
	return m.dev.Present.Present(driver.PresentInfo{
		Waits:      []driver.Semaphore{wait.Handle()},
		Swapchain:  m.chain.Handle,
		ImageIndex: index,
	})
}

// Recreate rebuilds the chain for a window of the given size: the device is
// drained, the new chain is built from the old one, and the old chain is
// destroyed only once the new one exists. On ErrZeroExtent the old chain is
// kept.
func (m *Manager) Recreate(width, height uint32) error {
	if err := m.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before swapchain recreation")
	}

	chain, err := m.build(width, height, m.chain.Handle)
	if err != nil {
		return err
	}

	old := m.chain
	m.chain = chain
	m.destroyChain(old)

	if err := m.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle after swapchain recreation")
	}
	return nil
}

// Destroy destroys the chain and the render pass. The device must be idle.
func (m *Manager) Destroy() {
	if m.chain != nil {
		m.destroyChain(m.chain)
		m.chain = nil
	}
	if m.renderPass != 0 {
		m.dev.Device.DestroyRenderPass(m.renderPass)
		m.renderPass = 0
	}
}

func (m *Manager) build(width, height uint32, old driver.Swapchain) (c *Chain, err error) {
	support, err := m.inst.SurfaceSupport(m.dev.Selection.Physical.Handle)
	if err != nil {
		return nil, errors.Wrap(err, "query swapchain support")
	}
	if !support.Adequate() {
		return nil, errors.New("surface offers no formats or present modes")
	}

	format := chooseSurfaceFormat(support.Formats)
	extent := chooseExtent(support.Capabilities, width, height)
	if extent.Width == 0 || extent.Height == 0 {
		return nil, ErrZeroExtent
	}

	if err = m.ensureRenderPass(format.Format); err != nil {
		return nil, err
	}

	d := m.dev.Device
	c = &Chain{
		Format:      format,
		Extent:      extent,
		PresentMode: choosePresentMode(support.PresentModes),
		Viewport: driver.Viewport{
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		},
		Scissor: driver.Rect2D{Extent: extent},
	}
	defer func() {
		if err != nil {
			m.destroyChain(c)
			c = nil
		}
	}()

	var families []uint32
	if g, p := m.dev.Graphics.Family(), m.dev.Present.Family(); g != p {
		families = []uint32{g, p}
	}

	c.Handle, c.Images, err = d.CreateSwapchain(driver.SwapchainCreateInfo{
		MinImageCount: chooseImageCount(support.Capabilities),
		Format:        format,
		Extent:        extent,
		PresentMode:   c.PresentMode,
		Families:      families,
		Old:           old,
	})
	if err != nil {
		return c, errors.Wrap(err, "failed to create swap chain")
	}

	for i, img := range c.Images {
		var view driver.ImageView
		if view, err = d.CreateImageView(img, format.Format, driver.AspectColor); err != nil {
			return c, errors.Wrapf(err, "failed to create image view %d", i)
		}
		c.Views = append(c.Views, view)
	}

	if err = m.createDepthResources(c); err != nil {
		return c, err
	}

	for i, view := range c.Views {
		var fb driver.Framebuffer
		fb, err = d.CreateFramebuffer(driver.FramebufferCreateInfo{
			RenderPass:  m.renderPass,
			Attachments: []driver.ImageView{view, c.DepthView},
			Width:       extent.Width,
			Height:      extent.Height,
		})
		if err != nil {
			return c, errors.Wrapf(err, "failed to create framebuffer %d", i)
		}
		c.Framebuffers = append(c.Framebuffers, fb)
	}

	m.log.Info("swapchain created",
		"width", extent.Width,
		"height", extent.Height,
		"images", len(c.Images),
		"present_mode", c.PresentMode,
	)
	return c, nil
}

func (m *Manager) ensureRenderPass(format driver.Format) error {
	if m.renderPass != 0 && m.colorFormat == format {
		return nil
	}

	rp, err := m.dev.Device.CreateRenderPass(driver.RenderPassCreateInfo{
		ColorFormat: format,
		DepthFormat: m.depthFormat,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create render pass")
	}

	if m.renderPass != 0 {
		m.log.Warn("surface format changed, pipelines must be rebuilt", "format", format)
		m.dev.Device.DestroyRenderPass(m.renderPass)
	}
	m.renderPass = rp
	m.colorFormat = format
	return nil
}

func (m *Manager) createDepthResources(c *Chain) error {
	d := m.dev.Device

	img, err := d.CreateImage(driver.ImageCreateInfo{
		Width:  c.Extent.Width,
		Height: c.Extent.Height,
		Format: m.depthFormat,
		Usage:  driver.ImageDepthStencilAttachment,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create depth image")
	}
	c.DepthImage = img

	view, err := d.CreateImageView(img, m.depthFormat, driver.AspectDepth)
	if err != nil {
		return errors.Wrap(err, "failed to create depth image view")
	}
	c.DepthView = view
	return nil
}

func (m *Manager) destroyChain(c *Chain) {
	d := m.dev.Device
	for _, fb := range c.Framebuffers {
		d.DestroyFramebuffer(fb)
	}
	if c.DepthView != 0 {
		d.DestroyImageView(c.DepthView)
	}
	if c.DepthImage != 0 {
		d.DestroyImage(c.DepthImage)
	}
	for _, view := range c.Views {
		d.DestroyImageView(view)
	}
	if c.Handle != 0 {
		d.DestroySwapchain(c.Handle)
	}
	c.Framebuffers, c.Views, c.Images = nil, nil, nil
	c.DepthView, c.DepthImage, c.Handle = 0, 0, 0
}
