package swapchain

import (
	"cmp"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

// chooseSurfaceFormat prefers 8 bit BGRA, sRGB or unorm, in the sRGB
// nonlinear color space. Otherwise the first available format is used.
func chooseSurfaceFormat(available []driver.SurfaceFormat) driver.SurfaceFormat {
	for _, format := range available {
		if (format.Format == driver.FormatB8G8R8A8Srgb || format.Format == driver.FormatB8G8R8A8Unorm) &&
			format.ColorSpace == driver.ColorSpaceSrgbNonlinear {
			return format
		}
	}

	return available[0]
}

// choosePresentMode prefers mailbox, then immediate. Fifo is always
// available.
func choosePresentMode(available []driver.PresentMode) driver.PresentMode {
	for _, want := range []driver.PresentMode{driver.PresentModeMailbox, driver.PresentModeImmediate} {
		for _, mode := range available {
			if mode == want {
				return mode
			}
		}
	}

	return driver.PresentModeFifo
}

// chooseExtent uses the surface's current extent unless the surface leaves
// it to the swapchain, in which case the window size is clamped to the
// supported range.
func chooseExtent(capabilities driver.SurfaceCapabilities, width, height uint32) driver.Extent2D {
	if capabilities.CurrentExtent.Width != driver.UndefinedExtent {
		return capabilities.CurrentExtent
	}

	return driver.Extent2D{
		Width: clamp(
			width,
			capabilities.MinExtent.Width,
			capabilities.MaxExtent.Width,
		),
		Height: clamp(
			height,
			capabilities.MinExtent.Height,
			capabilities.MaxExtent.Height,
		),
	}
}

// chooseImageCount asks for one image more than the minimum so the driver
// never makes acquire wait, within the maximum. A maximum of 0 means there
// is none.
func chooseImageCount(capabilities driver.SurfaceCapabilities) uint32 {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// depthCandidates in order of preference.
var depthCandidates = []driver.Format{
	driver.FormatD32Sfloat,
	driver.FormatD32SfloatS8Uint,
	driver.FormatD24UnormS8Uint,
}

func findDepthFormat(dev driver.Device) (driver.Format, bool) {
	for _, format := range depthCandidates {
		if dev.FormatSupported(format, driver.FeatureDepthStencilAttachment) {
			return format, true
		}
	}
	return driver.FormatUndefined, false
}

func clamp[T cmp.Ordered](val, min, max T) T {
	if val < min {
		val = min
	}
	if val > max {
		val = max
	}
	return val
}
