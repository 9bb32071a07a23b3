package device_test

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/command"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/driver/fake"
)

func TestSelectFirstSuitableDevice(t *testing.T) {
	g := NewWithT(t)

	noAniso := fake.DefaultPhysicalDevice()
	noAniso.Handle = 1
	noAniso.Name = "old gpu"
	noAniso.SamplerAnisotropy = false

	second := fake.DefaultPhysicalDevice()
	second.Handle = 2
	third := fake.DefaultPhysicalDevice()
	third.Handle = 3

	inst := fake.NewInstance(fake.InstanceConfig{
		Devices: []driver.PhysicalDeviceInfo{noAniso, second, third},
		Surface: fake.DefaultSurface(),
	})

	sel, err := device.Select(inst, device.Requirements{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.Physical.Handle).To(Equal(driver.PhysicalDevice(2)))
	g.Expect(sel.HasSurface).To(BeTrue())
	g.Expect(sel.Extensions).To(ConsistOf(driver.SwapchainExtension))
	g.Expect(sel.Families.IsComplete()).To(BeTrue())
}

func TestSelectFailsOnUnsupportedExtension(t *testing.T) {
	g := NewWithT(t)

	inst := fake.NewDefaultInstance()
	_, err := device.Select(inst, device.Requirements{
		Extensions: []string{"VK_KHR_ray_tracing_pipeline"},
	})
	g.Expect(err).To(MatchError(device.ErrNoSuitableDevice))
	g.Expect(err.Error()).To(ContainSubstring("VK_KHR_ray_tracing_pipeline"))
}

func TestSelectRejectsInadequateSurface(t *testing.T) {
	g := NewWithT(t)

	surface := fake.DefaultSurface()
	surface.PresentModes = nil
	inst := fake.NewInstance(fake.InstanceConfig{
		Devices: []driver.PhysicalDeviceInfo{fake.DefaultPhysicalDevice()},
		Surface: surface,
	})

	_, err := device.Select(inst, device.Requirements{})
	g.Expect(err).To(MatchError(device.ErrNoSuitableDevice))
}

func TestSelectHeadless(t *testing.T) {
	g := NewWithT(t)

	inst := fake.NewInstance(fake.InstanceConfig{
		Devices: []driver.PhysicalDeviceInfo{fake.DefaultPhysicalDevice()},
	})

	sel, err := device.Select(inst, device.Requirements{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.HasSurface).To(BeFalse())
	g.Expect(sel.Extensions).To(BeEmpty())
	g.Expect(sel.Families.Present.Get()).To(Equal(sel.Families.Graphics.Get()))
}

func newLogical(g *WithT) (*fake.Instance, *device.Logical) {
	inst := fake.NewDefaultInstance()
	sel, err := device.Select(inst, device.Requirements{})
	g.Expect(err).NotTo(HaveOccurred())
	l, err := device.NewLogical(inst, sel, nil)
	g.Expect(err).NotTo(HaveOccurred())
	return inst, l
}

func TestNewLogicalQueues(t *testing.T) {
	g := NewWithT(t)
	_, l := newLogical(g)
	defer l.Destroy()

	g.Expect(l.Graphics.Family()).To(Equal(uint32(0)))
	g.Expect(l.Compute.Family()).To(Equal(uint32(1)))
	g.Expect(l.Transfer.Family()).To(Equal(uint32(2)))
	g.Expect(l.Present.Family()).To(Equal(uint32(0)))

	g.Expect(l.Graphics.Shares(l.Present)).To(BeTrue())
	g.Expect(l.Graphics.Shares(l.Transfer)).To(BeFalse())
	g.Expect(l.Graphics.SupportsGraphics()).To(BeTrue())
	g.Expect(l.Transfer.SupportsGraphics()).To(BeFalse())
	g.Expect(l.Graphics.Pool()).NotTo(BeIdenticalTo(l.Present.Pool()))
}

func TestDestroyReleasesEverything(t *testing.T) {
	g := NewWithT(t)
	inst, l := newLogical(g)

	dev := inst.Device()
	g.Expect(dev.LiveObjects()).To(Equal(4))
	l.Destroy()
	g.Expect(dev.LiveObjects()).To(BeZero())
	g.Expect(dev.Destroyed()).To(BeTrue())
}

func TestDeviceLossReportsCheckpoints(t *testing.T) {
	g := NewWithT(t)
	inst, l := newLogical(g)
	dev := inst.Device()

	submit := func(name string) *command.Fence {
		cb, err := l.Graphics.Pool().AllocateSingleUseBuffer(driver.LevelPrimary, nil)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(l.Graphics.Pool().End(cb)).To(Succeed())
		f, err := command.NewFence(dev, false)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(l.Graphics.Submit(device.Submission{
			CommandBuffers: []driver.CommandBuffer{cb},
			Fence:          f,
			Checkpoints:    []string{name + " begin", name + " end"},
		})).To(Succeed())
		return f
	}

	submit("first")
	dev.CompleteAll()
	submit("second")
	dev.LoseDevice()

	err := l.Graphics.Submit(device.Submission{Checkpoints: []string{"third"}})
	g.Expect(err).To(MatchError(driver.ErrDeviceLost))

	var lost *device.LostError
	g.Expect(errors.As(err, &lost)).To(BeTrue())
	g.Expect(lost.Role).To(Equal(device.Graphics))
	g.Expect(lost.Report.LastReached).To(Equal("first end"))
	g.Expect(lost.Report.Pending).To(Equal([]string{"second begin", "second end"}))
}
