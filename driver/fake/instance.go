// Package fake is a deterministic in-memory driver. Submitted work only
// executes when the test advances the GPU or a fence wait needs it, so
// CPU/GPU interleavings can be reproduced exactly. The device keeps an event
// log and records protocol violations such as re-recording a command buffer
// whose submission has not completed.
package fake

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

// Surface configures the presentation surface of an instance.
type Surface struct {
	Capabilities driver.SurfaceCapabilities
	Formats      []driver.SurfaceFormat
	PresentModes []driver.PresentMode
	// PresentFamilies marks families able to present, by index. When nil
	// every graphics capable family can present.
	PresentFamilies []bool
}

// InstanceConfig configures a fake instance.
type InstanceConfig struct {
	Devices []driver.PhysicalDeviceInfo
	// Surface is nil for a headless instance.
	Surface *Surface
	// DepthFormats lists the depth formats usable as attachments. When nil
	// every depth format is.
	DepthFormats []driver.Format
}

// Instance is a fake driver.Instance.
type Instance struct {
	mu         sync.Mutex
	cfg        InstanceConfig
	outOfDate  bool
	suboptimal bool
	destroyed  bool
	devices    []*Device
}

var _ driver.Instance = (*Instance)(nil)

// NewInstance returns a fake instance.
func NewInstance(cfg InstanceConfig) *Instance {
	return &Instance{cfg: cfg}
}

// DefaultPhysicalDevice is a discrete GPU with a graphics family, a compute
// family and a dedicated transfer family.
func DefaultPhysicalDevice() driver.PhysicalDeviceInfo {
	return driver.PhysicalDeviceInfo{
		Handle:     1,
		Name:       "Fake Discrete GPU",
		Type:       driver.DeviceTypeDiscrete,
		Extensions: []string{driver.SwapchainExtension},
		Families: []driver.QueueFamily{
			{Flags: driver.QueueGraphics | driver.QueueCompute | driver.QueueTransfer, Count: 16},
			{Flags: driver.QueueCompute | driver.QueueTransfer, Count: 2},
			{Flags: driver.QueueTransfer, Count: 1},
		},
		SamplerAnisotropy: true,
		MaxAnisotropy:     16,
	}
}

// DefaultSurface is an 800x600 surface offering every present mode.
func DefaultSurface() *Surface {
	return &Surface{
		Capabilities: driver.SurfaceCapabilities{
			MinImageCount: 2,
			MaxImageCount: 8,
			CurrentExtent: driver.Extent2D{Width: 800, Height: 600},
			MinExtent:     driver.Extent2D{Width: 1, Height: 1},
			MaxExtent:     driver.Extent2D{Width: 4096, Height: 4096},
		},
		Formats: []driver.SurfaceFormat{
			{Format: driver.FormatB8G8R8A8Srgb, ColorSpace: driver.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []driver.PresentMode{
			driver.PresentModeFifo,
			driver.PresentModeMailbox,
			driver.PresentModeImmediate,
		},
	}
}

// NewDefaultInstance returns an instance with DefaultPhysicalDevice and
// DefaultSurface.
func NewDefaultInstance() *Instance {
	return NewInstance(InstanceConfig{
		Devices: []driver.PhysicalDeviceInfo{DefaultPhysicalDevice()},
		Surface: DefaultSurface(),
	})
}

// PhysicalDevices implements driver.Instance.
func (i *Instance) PhysicalDevices() ([]driver.PhysicalDeviceInfo, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]driver.PhysicalDeviceInfo(nil), i.cfg.Devices...), nil
}

// HasSurface implements driver.Instance.
func (i *Instance) HasSurface() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cfg.Surface != nil
}

// SurfaceSupport implements driver.Instance.
func (i *Instance) SurfaceSupport(pd driver.PhysicalDevice) (driver.SurfaceSupport, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cfg.Surface == nil {
		return driver.SurfaceSupport{}, driver.ErrNoSurface
	}
	info, ok := i.physical(pd)
	if !ok {
		return driver.SurfaceSupport{}, errors.Errorf("fake: unknown physical device %d", pd)
	}

	s := i.cfg.Surface
	support := driver.SurfaceSupport{
		Capabilities:    s.Capabilities,
		Formats:         append([]driver.SurfaceFormat(nil), s.Formats...),
		PresentModes:    append([]driver.PresentMode(nil), s.PresentModes...),
		PresentFamilies: make([]bool, len(info.Families)),
	}
	for idx, fam := range info.Families {
		if s.PresentFamilies != nil {
			support.PresentFamilies[idx] = idx < len(s.PresentFamilies) && s.PresentFamilies[idx]
			continue
		}
		support.PresentFamilies[idx] = fam.Flags&driver.QueueGraphics != 0
	}
	return support, nil
}

// CreateDevice implements driver.Instance.
func (i *Instance) CreateDevice(
	pd driver.PhysicalDevice,
	info driver.DeviceCreateInfo,
) (driver.Device, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	phys, ok := i.physical(pd)
	if !ok {
		return nil, errors.Errorf("fake: unknown physical device %d", pd)
	}

	have := make(map[string]struct{}, len(phys.Extensions))
	for _, ext := range phys.Extensions {
		have[ext] = struct{}{}
	}
	for _, ext := range info.Extensions {
		if _, ok := have[ext]; !ok {
			return nil, errors.Wrap(driver.ErrExtensionNotPresent, ext)
		}
	}
	if info.SamplerAnisotropy && !phys.SamplerAnisotropy {
		return nil, errors.Wrap(driver.ErrFeatureNotPresent, "samplerAnisotropy")
	}
	for _, q := range info.Queues {
		if int(q.Family) >= len(phys.Families) || q.Count > phys.Families[q.Family].Count {
			return nil, errors.Errorf("fake: invalid queue request %+v", q)
		}
	}

	dev := newDevice(i, phys, info)
	i.devices = append(i.devices, dev)
	return dev, nil
}

// Destroy implements driver.Instance.
func (i *Instance) Destroy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (i *Instance) Destroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyed
}

// Device returns the most recently created device, or nil.
func (i *Instance) Device() *Device {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.devices) == 0 {
		return nil
	}
	return i.devices[len(i.devices)-1]
}

// SetSurfaceExtent resizes the surface. Existing swapchains become out of
// date.
func (i *Instance) SetSurfaceExtent(width, height uint32) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cfg.Surface == nil {
		return
	}
	i.cfg.Surface.Capabilities.CurrentExtent = driver.Extent2D{Width: width, Height: height}
	i.outOfDate = true
}

// SetOutOfDate makes acquire and present report out of date until a new
// swapchain is created.
func (i *Instance) SetOutOfDate() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.outOfDate = true
}

// SetSuboptimal makes present report suboptimal until a new swapchain is
// created.
func (i *Instance) SetSuboptimal() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.suboptimal = true
}

func (i *Instance) physical(pd driver.PhysicalDevice) (driver.PhysicalDeviceInfo, bool) {
	for _, d := range i.cfg.Devices {
		if d.Handle == pd {
			return d, true
		}
	}
	return driver.PhysicalDeviceInfo{}, false
}

func (i *Instance) surfaceState() (outOfDate, suboptimal bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.outOfDate, i.suboptimal
}

func (i *Instance) swapchainCreated() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.outOfDate = false
	i.suboptimal = false
}

func (i *Instance) depthSupported(f driver.Format) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cfg.DepthFormats == nil {
		return true
	}
	for _, df := range i.cfg.DepthFormats {
		if df == f {
			return true
		}
	}
	return false
}
