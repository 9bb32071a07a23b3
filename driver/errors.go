package driver

import "github.com/pkg/errors"

// Errors reported by drivers. Out of date and suboptimal swapchains are
// reported as Status values, not errors.
var (
	ErrDeviceLost          = errors.New("device lost")
	ErrOutOfHostMemory     = errors.New("out of host memory")
	ErrOutOfDeviceMemory   = errors.New("out of device memory")
	ErrTimeout             = errors.New("timeout")
	ErrLayerNotPresent     = errors.New("layer not present")
	ErrExtensionNotPresent = errors.New("extension not present")
	ErrFeatureNotPresent   = errors.New("feature not present")
	ErrSurfaceLost         = errors.New("surface lost")
	ErrNoSurface           = errors.New("instance has no surface")
	ErrNotHostVisible      = errors.New("buffer is not host visible")
	ErrOutOfRange          = errors.New("range outside of buffer")
	ErrNoMemoryType        = errors.New("no suitable memory type")
)

// Status is the non-error outcome of swapchain acquire and present.
type Status int

const (
	StatusSuccess Status = iota
	// StatusSuboptimal means the swapchain still works but no longer
	// matches the surface exactly.
	StatusSuboptimal
	// StatusOutOfDate means the swapchain can no longer be used.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	default:
		return "unknown status"
	}
}
