package swapchain_test

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/command"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/driver/fake"
	"github.com/ChewyGumball/bengine-sub000/swapchain"
)

func setup(g *WithT, cfg fake.InstanceConfig) (*fake.Instance, *device.Logical) {
	inst := fake.NewInstance(cfg)
	sel, err := device.Select(inst, device.Requirements{})
	g.Expect(err).NotTo(HaveOccurred())
	ld, err := device.NewLogical(inst, sel, nil)
	g.Expect(err).NotTo(HaveOccurred())
	return inst, ld
}

func defaultConfig() fake.InstanceConfig {
	return fake.InstanceConfig{
		Devices: []driver.PhysicalDeviceInfo{fake.DefaultPhysicalDevice()},
		Surface: fake.DefaultSurface(),
	}
}

func TestNewBuildsChain(t *testing.T) {
	g := NewWithT(t)
	inst, ld := setup(g, defaultConfig())
	defer ld.Destroy()
	dev := inst.Device()

	m, err := swapchain.New(inst, ld, 1024, 768, nil)
	g.Expect(err).NotTo(HaveOccurred())
	defer m.Destroy()

	c := m.Chain()
	g.Expect(c.Extent).To(Equal(driver.Extent2D{Width: 800, Height: 600}))
	g.Expect(c.PresentMode).To(Equal(driver.PresentModeMailbox))
	g.Expect(c.Images).To(HaveLen(3))
	g.Expect(c.Views).To(HaveLen(3))
	g.Expect(c.Framebuffers).To(HaveLen(3))
	g.Expect(c.Viewport.Width).To(Equal(float32(800)))
	g.Expect(c.Scissor.Extent).To(Equal(c.Extent))
	g.Expect(m.DepthFormat()).To(Equal(driver.FormatD32Sfloat))

	info, ok := dev.FramebufferInfo(c.Framebuffers[0])
	g.Expect(ok).To(BeTrue())
	g.Expect(info.Attachments).To(Equal([]driver.ImageView{c.Views[0], c.DepthView}))
	g.Expect(info.RenderPass).To(Equal(m.RenderPass()))
}

func TestDepthFormatFallback(t *testing.T) {
	g := NewWithT(t)
	cfg := defaultConfig()
	cfg.DepthFormats = []driver.Format{driver.FormatD24UnormS8Uint}
	inst, ld := setup(g, cfg)
	defer ld.Destroy()

	m, err := swapchain.New(inst, ld, 800, 600, nil)
	g.Expect(err).NotTo(HaveOccurred())
	defer m.Destroy()
	g.Expect(m.DepthFormat()).To(Equal(driver.FormatD24UnormS8Uint))

	cfg.DepthFormats = []driver.Format{}
	inst2, ld2 := setup(g, cfg)
	defer ld2.Destroy()
	_, err = swapchain.New(inst2, ld2, 800, 600, nil)
	g.Expect(err).To(MatchError(swapchain.ErrNoDepthFormat))
}

func TestRecreateAfterOutOfDate(t *testing.T) {
	g := NewWithT(t)
	inst, ld := setup(g, defaultConfig())
	defer ld.Destroy()
	dev := inst.Device()

	m, err := swapchain.New(inst, ld, 800, 600, nil)
	g.Expect(err).NotTo(HaveOccurred())
	defer m.Destroy()

	sem, err := command.NewSemaphore(dev)
	g.Expect(err).NotTo(HaveOccurred())
	defer sem.Destroy()

	old := *m.Chain()
	renderPass := m.RenderPass()

	inst.SetSurfaceExtent(1280, 720)
	_, status, err := m.Acquire(sem, driver.Forever)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(driver.StatusOutOfDate))

	g.Expect(m.Recreate(1280, 720)).To(Succeed())
	c := m.Chain()
	g.Expect(c.Extent).To(Equal(driver.Extent2D{Width: 1280, Height: 720}))
	g.Expect(m.RenderPass()).To(Equal(renderPass))

	for i, view := range c.Views {
		ext, ok := dev.ViewExtent(view)
		g.Expect(ok).To(BeTrue())
		g.Expect(ext).To(Equal(c.Extent))

		info, ok := dev.FramebufferInfo(c.Framebuffers[i])
		g.Expect(ok).To(BeTrue())
		g.Expect(info.Width).To(Equal(uint32(1280)))
		g.Expect(info.Height).To(Equal(uint32(720)))
	}
	depth, ok := dev.ViewExtent(c.DepthView)
	g.Expect(ok).To(BeTrue())
	g.Expect(depth).To(Equal(c.Extent))

	g.Expect(dev.Alive(uint64(old.Handle))).To(BeFalse())
	g.Expect(dev.Alive(uint64(old.DepthImage))).To(BeFalse())
	g.Expect(dev.Alive(uint64(old.DepthView))).To(BeFalse())
	for i := range old.Views {
		g.Expect(dev.Alive(uint64(old.Images[i]))).To(BeFalse())
		g.Expect(dev.Alive(uint64(old.Views[i]))).To(BeFalse())
		g.Expect(dev.Alive(uint64(old.Framebuffers[i]))).To(BeFalse())
	}

	swapchainInfo, ok := dev.SwapchainInfo(c.Handle)
	g.Expect(ok).To(BeTrue())
	g.Expect(swapchainInfo.Old).To(Equal(old.Handle))

	_, status, err = m.Acquire(sem, driver.Forever)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(status).To(Equal(driver.StatusSuccess))
	g.Expect(dev.Violations()).To(BeEmpty())
}

func TestRecreateWithZeroExtentKeepsChain(t *testing.T) {
	g := NewWithT(t)
	inst, ld := setup(g, defaultConfig())
	defer ld.Destroy()

	m, err := swapchain.New(inst, ld, 800, 600, nil)
	g.Expect(err).NotTo(HaveOccurred())
	defer m.Destroy()
	handle := m.Chain().Handle

	inst.SetSurfaceExtent(0, 0)
	g.Expect(m.Recreate(0, 0)).To(MatchError(swapchain.ErrZeroExtent))
	g.Expect(m.Chain().Handle).To(Equal(handle))
}

func TestDestroyReleasesChain(t *testing.T) {
	g := NewWithT(t)
	inst, ld := setup(g, defaultConfig())
	defer ld.Destroy()
	dev := inst.Device()

	before := dev.LiveObjects()
	m, err := swapchain.New(inst, ld, 800, 600, nil)
	g.Expect(err).NotTo(HaveOccurred())
	m.Destroy()
	g.Expect(dev.LiveObjects()).To(Equal(before))
}

func TestHeadlessInstanceHasNoSwapchain(t *testing.T) {
	g := NewWithT(t)
	inst, ld := setup(g, fake.InstanceConfig{
		Devices: []driver.PhysicalDeviceInfo{fake.DefaultPhysicalDevice()},
	})
	defer ld.Destroy()

	_, err := swapchain.New(inst, ld, 800, 600, nil)
	g.Expect(err).To(MatchError(driver.ErrNoSurface))
}
