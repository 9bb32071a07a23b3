// Package vulkan implements the driver interfaces on top of vulkan-go.
//
// Native objects are kept in per-kind handle tables; the uint64 driver
// handles are keys into them. The caller must have loaded the Vulkan loader
// with vk.SetGetInstanceProcAddr before calling NewInstance.
package vulkan

import (
	"context"
	"log/slog"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/logging"
)

const debugReportExtension = "VK_EXT_debug_report"

// ErrValidationUnavailable is returned when validation layers were requested
// but the loader does not offer them.
var ErrValidationUnavailable = errors.New("validation layers requested but not available")

// SurfaceFunc creates the presentation surface for a freshly created
// instance, typically glfw's Window.CreateWindowSurface.
type SurfaceFunc func(instance vk.Instance) (vk.Surface, error)

// Config configures a Vulkan instance.
type Config struct {
	AppName string
	// Extensions are the instance extensions the window system needs.
	Extensions       []string
	ValidationLayers []string
	// Surface is nil for a headless instance.
	Surface SurfaceFunc
	Logger  *slog.Logger
}

// Instance is a driver.Instance backed by a VkInstance.
type Instance struct {
	cfg      Config
	log      *slog.Logger
	instance vk.Instance
	surface  vk.Surface
	debug    vk.DebugReportCallback
	physical table[vk.PhysicalDevice]
	handles  map[vk.PhysicalDevice]driver.PhysicalDevice
}

var _ driver.Instance = (*Instance)(nil)

// NewInstance creates the instance and, when configured, its surface.
func NewInstance(cfg Config) (*Instance, error) {
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "init vulkan")
	}

	i := &Instance{
		cfg:     cfg,
		log:     logging.Or(cfg.Logger),
		surface: vk.NullSurface,
		handles: make(map[vk.PhysicalDevice]driver.PhysicalDevice),
	}

	validation := len(cfg.ValidationLayers) > 0
	if validation && !layersAvailable(cfg.ValidationLayers) {
		return nil, ErrValidationUnavailable
	}

	name := cfg.AppName
	if name == "" {
		name = "bengine"
	}
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   name + "\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "bengine\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion10,
	}

	extensions := cfg.Extensions
	if validation {
		extensions = append(append([]string(nil), extensions...), debugReportExtension)
	}
	extensionNames := cstrings(extensions)
	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: extensionNames,
	}
	if validation {
		layers := cstrings(cfg.ValidationLayers)
		createInfo.EnabledLayerCount = uint32(len(layers))
		createInfo.PpEnabledLayerNames = layers
	}

	var instance vk.Instance
	if err := resultError(vk.CreateInstance(&createInfo, nil, &instance)); err != nil {
		return nil, errors.Wrap(err, "create instance")
	}
	i.instance = instance
	if err := vk.InitInstance(instance); err != nil {
		i.Destroy()
		return nil, errors.Wrap(err, "load instance functions")
	}

	if validation {
		logger := i.log
		res := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType: vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
				vk.DebugReportPerformanceWarningBit),
			PfnCallback: func(flags vk.DebugReportFlags, _ vk.DebugReportObjectType,
				_ uint64, _ uint, code int32, prefix string, msg string, _ unsafe.Pointer) vk.Bool32 {
				level := slog.LevelWarn
				if flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0 {
					level = slog.LevelError
				}
				logger.Log(context.Background(), level, msg, "layer", prefix, "code", code)
				return vk.False
			},
		}, nil, &i.debug)
		if err := resultError(res); err != nil {
			i.Destroy()
			return nil, errors.Wrap(err, "create debug report callback")
		}
	}

	if cfg.Surface != nil {
		surface, err := cfg.Surface(instance)
		if err != nil {
			i.Destroy()
			return nil, errors.Wrap(err, "create surface")
		}
		i.surface = surface
	}

	return i, nil
}

func layersAvailable(wanted []string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, layers) != vk.Success {
		return false
	}

	available := make(map[string]struct{}, count)
	for _, layer := range layers {
		layer.Deref()
		available[vk.ToString(layer.LayerName[:])] = struct{}{}
	}
	for _, name := range wanted {
		if _, ok := available[name]; !ok {
			return false
		}
	}
	return true
}

// PhysicalDevices implements driver.Instance.
func (i *Instance) PhysicalDevices() ([]driver.PhysicalDeviceInfo, error) {
	var count uint32
	if err := resultError(vk.EnumeratePhysicalDevices(i.instance, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "count physical devices")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := resultError(vk.EnumeratePhysicalDevices(i.instance, &count, devices)); err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}

	infos := make([]driver.PhysicalDeviceInfo, 0, count)
	for _, pd := range devices {
		info, err := i.describe(pd)
		if err != nil {
			// A device we cannot query is a device we cannot pick.
			i.log.Warn("skipping physical device", "error", err)
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (i *Instance) describe(pd vk.PhysicalDevice) (driver.PhysicalDeviceInfo, error) {
	handle, ok := i.handles[pd]
	if !ok {
		handle = driver.PhysicalDevice(i.physical.put(pd))
		i.handles[pd] = handle
	}

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()
	properties.Limits.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()

	info := driver.PhysicalDeviceInfo{
		Handle:            handle,
		Name:              vk.ToString(properties.DeviceName[:]),
		Type:              fromDeviceType(properties.DeviceType),
		SamplerAnisotropy: features.SamplerAnisotropy.B(),
		MaxAnisotropy:     properties.Limits.MaxSamplerAnisotropy,
	}

	var extCount uint32
	if err := resultError(vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, nil)); err != nil {
		return info, errors.Wrapf(err, "count extensions of %s", info.Name)
	}
	extensions := make([]vk.ExtensionProperties, extCount)
	if err := resultError(vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, extensions)); err != nil {
		return info, errors.Wrapf(err, "enumerate extensions of %s", info.Name)
	}
	for _, ext := range extensions {
		ext.Deref()
		info.Extensions = append(info.Extensions, vk.ToString(ext.ExtensionName[:]))
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)
	for _, family := range families {
		family.Deref()
		info.Families = append(info.Families, driver.QueueFamily{
			Flags: fromQueueFlags(family.QueueFlags),
			Count: family.QueueCount,
		})
	}

	return info, nil
}

// HasSurface implements driver.Instance.
func (i *Instance) HasSurface() bool {
	return i.surface != vk.NullSurface
}

func (i *Instance) physicalDevice(pd driver.PhysicalDevice) vk.PhysicalDevice {
	return i.physical.get(uint64(pd))
}

func (i *Instance) capabilities(pd vk.PhysicalDevice) (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := resultError(vk.GetPhysicalDeviceSurfaceCapabilities(pd, i.surface, &caps)); err != nil {
		return caps, errors.Wrap(err, "query surface capabilities")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

// SurfaceSupport implements driver.Instance.
func (i *Instance) SurfaceSupport(handle driver.PhysicalDevice) (driver.SurfaceSupport, error) {
	var support driver.SurfaceSupport
	if !i.HasSurface() {
		return support, driver.ErrNoSurface
	}
	pd := i.physicalDevice(handle)

	caps, err := i.capabilities(pd)
	if err != nil {
		return support, err
	}
	support.Capabilities = driver.SurfaceCapabilities{
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
		CurrentExtent: driver.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinExtent:     driver.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxExtent:     driver.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}

	var formatCount uint32
	if err := resultError(vk.GetPhysicalDeviceSurfaceFormats(pd, i.surface, &formatCount, nil)); err != nil {
		return support, errors.Wrap(err, "query surface formats")
	}
	if formatCount != 0 {
		formats := make([]vk.SurfaceFormat, formatCount)
		vk.GetPhysicalDeviceSurfaceFormats(pd, i.surface, &formatCount, formats)
		for _, format := range formats {
			format.Deref()
			f := fromFormat(format.Format)
			if f == driver.FormatUndefined {
				continue
			}
			support.Formats = append(support.Formats, driver.SurfaceFormat{
				Format:     f,
				ColorSpace: fromColorSpace(format.ColorSpace),
			})
		}
	}

	var modeCount uint32
	if err := resultError(vk.GetPhysicalDeviceSurfacePresentModes(pd, i.surface, &modeCount, nil)); err != nil {
		return support, errors.Wrap(err, "query surface present modes")
	}
	if modeCount != 0 {
		modes := make([]vk.PresentMode, modeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(pd, i.surface, &modeCount, modes)
		for _, mode := range modes {
			if m, ok := fromPresentMode(mode); ok {
				support.PresentModes = append(support.PresentModes, m)
			}
		}
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	support.PresentFamilies = make([]bool, familyCount)
	for f := uint32(0); f < familyCount; f++ {
		var present vk.Bool32
		res := vk.GetPhysicalDeviceSurfaceSupport(pd, f, i.surface, &present)
		if err := resultError(res); err != nil {
			return support, errors.Wrapf(err, "query present support of family %d", f)
		}
		support.PresentFamilies[f] = present.B()
	}

	return support, nil
}

// CreateDevice implements driver.Instance.
func (i *Instance) CreateDevice(handle driver.PhysicalDevice, info driver.DeviceCreateInfo) (driver.Device, error) {
	pd := i.physicalDevice(handle)

	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(info.Queues))
	for _, q := range info.Queues {
		priorities := make([]float32, q.Count)
		for p := range priorities {
			priorities[p] = 1
		}
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: q.Family,
			QueueCount:       q.Count,
			PQueuePriorities: priorities,
		})
	}

	features := []vk.PhysicalDeviceFeatures{{
		SamplerAnisotropy: toBool(info.SamplerAnisotropy),
	}}
	extensions := cstrings(info.Extensions)

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PEnabledFeatures:        features,
		PQueueCreateInfos:       queueInfos,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if len(i.cfg.ValidationLayers) > 0 {
		layers := cstrings(i.cfg.ValidationLayers)
		createInfo.EnabledLayerCount = uint32(len(layers))
		createInfo.PpEnabledLayerNames = layers
	}

	var device vk.Device
	if err := resultError(vk.CreateDevice(pd, &createInfo, nil, &device)); err != nil {
		return nil, errors.Wrap(err, "create logical device")
	}

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
	memory.Deref()

	return &Device{
		inst:     i,
		physical: pd,
		device:   device,
		memory:   memory,
		queues:   make(map[uint64]driver.Queue),
	}, nil
}

// Destroy implements driver.Instance. Devices must be destroyed first.
func (i *Instance) Destroy() {
	if i.surface != vk.NullSurface {
		vk.DestroySurface(i.instance, i.surface, nil)
		i.surface = vk.NullSurface
	}
	if i.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.instance, i.debug, nil)
		i.debug = vk.NullDebugReportCallback
	}
	if i.instance != nil {
		vk.DestroyInstance(i.instance, nil)
		i.instance = nil
	}
}
