package swapchain

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

func TestChooseSurfaceFormat(t *testing.T) {
	g := NewWithT(t)

	rgba := driver.SurfaceFormat{Format: driver.FormatR8G8B8A8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear}
	bgraOther := driver.SurfaceFormat{Format: driver.FormatB8G8R8A8Srgb, ColorSpace: driver.ColorSpaceOther}
	bgra := driver.SurfaceFormat{Format: driver.FormatB8G8R8A8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear}

	g.Expect(chooseSurfaceFormat([]driver.SurfaceFormat{rgba, bgraOther, bgra})).To(Equal(bgra))
	g.Expect(chooseSurfaceFormat([]driver.SurfaceFormat{rgba, bgraOther})).To(Equal(rgba))
}

func TestChoosePresentMode(t *testing.T) {
	g := NewWithT(t)

	g.Expect(choosePresentMode([]driver.PresentMode{
		driver.PresentModeFifo, driver.PresentModeImmediate, driver.PresentModeMailbox,
	})).To(Equal(driver.PresentModeMailbox))
	g.Expect(choosePresentMode([]driver.PresentMode{
		driver.PresentModeFifo, driver.PresentModeImmediate,
	})).To(Equal(driver.PresentModeImmediate))
	g.Expect(choosePresentMode([]driver.PresentMode{
		driver.PresentModeFifoRelaxed,
	})).To(Equal(driver.PresentModeFifo))
}

func TestChooseExtent(t *testing.T) {
	g := NewWithT(t)

	caps := driver.SurfaceCapabilities{
		CurrentExtent: driver.Extent2D{Width: 640, Height: 480},
		MinExtent:     driver.Extent2D{Width: 100, Height: 100},
		MaxExtent:     driver.Extent2D{Width: 1000, Height: 1000},
	}
	g.Expect(chooseExtent(caps, 5000, 5000)).To(Equal(driver.Extent2D{Width: 640, Height: 480}))

	caps.CurrentExtent = driver.Extent2D{Width: driver.UndefinedExtent, Height: driver.UndefinedExtent}
	g.Expect(chooseExtent(caps, 5000, 10)).To(Equal(driver.Extent2D{Width: 1000, Height: 100}))
	g.Expect(chooseExtent(caps, 800, 600)).To(Equal(driver.Extent2D{Width: 800, Height: 600}))
}

func TestChooseImageCount(t *testing.T) {
	g := NewWithT(t)

	g.Expect(chooseImageCount(driver.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8})).To(Equal(uint32(3)))
	g.Expect(chooseImageCount(driver.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 3})).To(Equal(uint32(3)))
	g.Expect(chooseImageCount(driver.SurfaceCapabilities{MinImageCount: 3})).To(Equal(uint32(4)))
}
