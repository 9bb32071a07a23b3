// Package device picks a physical device and creates the logical device and
// queues the renderer submits to.
package device

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/logging"
	"github.com/ChewyGumball/bengine-sub000/queues"
)

// ErrNoSuitableDevice is returned when no physical device meets the
// requirements.
var ErrNoSuitableDevice = errors.New("failed to find a suitable GPU")

// Requirements a physical device must meet.
type Requirements struct {
	// Extensions are the device extensions the renderer cannot work
	// without. The swapchain extension is added when the instance has a
	// surface.
	Extensions []string

	Logger *slog.Logger
}

// Selection is the chosen physical device and its queue families. It is
// immutable once returned.
type Selection struct {
	Physical driver.PhysicalDeviceInfo
	Families queues.FamilyIndices

	// Surface is what the device offers for the instance surface. It is
	// empty when HasSurface is false.
	Surface    driver.SurfaceSupport
	HasSurface bool

	// Extensions are the device extensions to enable.
	Extensions []string
}

// Select returns the first physical device, in enumeration order, which
// supports the required extensions, sampler anisotropy, an adequate
// swapchain for the instance surface and every queue role.
func Select(inst driver.Instance, req Requirements) (*Selection, error) {
	log := logging.Or(req.Logger)

	devices, err := inst.PhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}
	if len(devices) == 0 {
		return nil, errors.Wrap(ErrNoSuitableDevice, "no GPUs with Vulkan support")
	}

	extensions := requiredExtensions(req.Extensions, inst.HasSurface())

	var rejected []string
	for _, pd := range devices {
		sel, reason, err := evaluate(inst, pd, extensions)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate %q", pd.Name)
		}
		if reason != "" {
			log.Debug("physical device rejected", "name", pd.Name, "reason", reason)
			rejected = append(rejected, fmt.Sprintf("%s: %s", pd.Name, reason))
			continue
		}

		log.Info("physical device selected",
			"name", pd.Name,
			"type", pd.Type,
			"graphics", sel.Families.Graphics.Get(),
			"compute", sel.Families.Compute.Get(),
			"transfer", sel.Families.Transfer.Get(),
			"present", sel.Families.Present.Get(),
		)
		return sel, nil
	}

	return nil, errors.Wrap(ErrNoSuitableDevice, strings.Join(rejected, "; "))
}

func requiredExtensions(extensions []string, surface bool) []string {
	out := append([]string(nil), extensions...)
	if !surface {
		return out
	}
	for _, ext := range out {
		if ext == driver.SwapchainExtension {
			return out
		}
	}
	return append(out, driver.SwapchainExtension)
}

// evaluate returns a selection for a suitable device, or the reason it is
// not suitable.
func evaluate(
	inst driver.Instance,
	pd driver.PhysicalDeviceInfo,
	extensions []string,
) (*Selection, string, error) {
	if missing := missingExtensions(pd, extensions); len(missing) > 0 {
		return nil, "missing extensions " + strings.Join(missing, ", "), nil
	}
	if !pd.SamplerAnisotropy {
		return nil, "sampler anisotropy not supported", nil
	}

	sel := &Selection{
		Physical:   pd,
		HasSurface: inst.HasSurface(),
		Extensions: extensions,
	}

	var canPresent []bool
	if sel.HasSurface {
		support, err := inst.SurfaceSupport(pd.Handle)
		if err != nil {
			return nil, "", errors.Wrap(err, "query surface support")
		}
		if !support.Adequate() {
			return nil, "no surface formats or present modes", nil
		}
		sel.Surface = support
		canPresent = support.PresentFamilies
		if canPresent == nil {
			canPresent = []bool{}
		}
	}

	sel.Families = queues.Resolve(pd.Families, canPresent)
	if !sel.Families.IsComplete() {
		return nil, "queue families do not cover every role", nil
	}

	return sel, "", nil
}

func missingExtensions(pd driver.PhysicalDeviceInfo, extensions []string) []string {
	required := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		required[ext] = struct{}{}
	}
	for _, ext := range pd.Extensions {
		delete(required, ext)
	}

	var missing []string
	for _, ext := range extensions {
		if _, ok := required[ext]; ok {
			missing = append(missing, ext)
		}
	}
	return missing
}
