// Package renderer submits frames: it ties the device, swapchain, frame
// ring and uploader together behind the Backend interface.
package renderer

import (
	"github.com/ChewyGumball/bengine-sub000/assets"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/transfer"
)

// Status is the outcome of a frame.
type Status int

const (
	// StatusOK means the frame was submitted and presented.
	StatusOK Status = iota
	// StatusRecreateSwapchain means the swapchain no longer matches the
	// surface. Call RecreateSwapchain with the current window size.
	StatusRecreateSwapchain
	// StatusFatal means the device was lost. The error carries the
	// checkpoint report.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRecreateSwapchain:
		return "recreate swapchain"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown status"
	}
}

// Backend is what the rest of the engine renders through.
type Backend interface {
	CreateBuffer(data []byte, usage driver.BufferUsage, visibility driver.Visibility) (*transfer.Buffer, error)
	CreateImage(desc transfer.ImageDesc, pixels []byte) (*transfer.Image, error)
	CreateTexture(tex *assets.Texture) (*transfer.Texture, error)
	CreateMesh(mesh *assets.Mesh) (*transfer.Mesh, error)

	SubmitFrame(list *CommandList) (Status, error)
	RecreateSwapchain(width, height uint32) error

	Destroy() error
}

var _ Backend = (*Renderer)(nil)
