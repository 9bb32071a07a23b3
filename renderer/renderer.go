package renderer

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/assets"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/frame"
	"github.com/ChewyGumball/bengine-sub000/logging"
	"github.com/ChewyGumball/bengine-sub000/pipeline"
	"github.com/ChewyGumball/bengine-sub000/swapchain"
	"github.com/ChewyGumball/bengine-sub000/transfer"
)

// Renderer is the Backend for a native instance with a window surface.
// Frames are submitted from one goroutine; resource creation may happen
// from any.
type Renderer struct {
	cfg Config
	log *slog.Logger

	inst     driver.Instance
	dev      *device.Logical
	swap     *swapchain.Manager
	ring     *frame.Ring
	uploader *transfer.Uploader

	stats Stats
}

// New selects a device, creates the swapchain for the instance surface and
// the per frame resources. Either everything is created or nothing is.
func New(inst driver.Instance, cfg Config) (_ *Renderer, err error) {
	cfg = cfg.withDefaults()
	r := &Renderer{
		cfg:  cfg,
		log:  logging.Or(cfg.Logger),
		inst: inst,
	}
	defer func() {
		if err != nil {
			r.destroy()
		}
	}()

	sel, err := device.Select(inst, device.Requirements{
		Extensions: cfg.DeviceExtensions,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	if r.dev, err = device.NewLogical(inst, sel, cfg.Logger); err != nil {
		return nil, err
	}
	if r.swap, err = swapchain.New(inst, r.dev, cfg.Width, cfg.Height, cfg.Logger); err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}
	r.ring, err = frame.NewRing(r.dev, frame.Config{
		Slots:            cfg.FramesInFlight,
		RecordingThreads: cfg.RecordingThreads,
		FenceTimeout:     cfg.FenceTimeout,
		Logger:           cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	r.uploader = transfer.NewUploader(r.dev, transfer.Config{
		MaxInFlight: cfg.TransferSlots,
		Logger:      cfg.Logger,
	})

	r.log.Info("renderer created",
		"frames_in_flight", cfg.FramesInFlight,
		"recording_threads", cfg.RecordingThreads,
	)
	return r, nil
}

// Device returns the logical device.
func (r *Renderer) Device() *device.Logical { return r.dev }

// Uploader returns the uploader resources are created with.
func (r *Renderer) Uploader() *transfer.Uploader { return r.uploader }

// Swapchain returns the swapchain manager.
func (r *Renderer) Swapchain() *swapchain.Manager { return r.swap }

// Extent returns the size of the swapchain images.
func (r *Renderer) Extent() driver.Extent2D { return r.swap.Chain().Extent }

// FramesInFlight returns the number of frame slots.
func (r *Renderer) FramesInFlight() int { return r.ring.Len() }

// Stats returns counters and timings of the frames submitted so far.
func (r *Renderer) Stats() Stats { return r.stats }

// CreateBuffer implements Backend.
func (r *Renderer) CreateBuffer(data []byte, usage driver.BufferUsage, visibility driver.Visibility) (*transfer.Buffer, error) {
	return r.uploader.CreateBuffer(data, usage, visibility)
}

// CreateImage implements Backend.
func (r *Renderer) CreateImage(desc transfer.ImageDesc, pixels []byte) (*transfer.Image, error) {
	return r.uploader.CreateImage(desc, pixels)
}

// CreateTexture implements Backend.
func (r *Renderer) CreateTexture(tex *assets.Texture) (*transfer.Texture, error) {
	return r.uploader.CreateTexture(tex)
}

// CreateMesh implements Backend.
func (r *Renderer) CreateMesh(mesh *assets.Mesh) (*transfer.Mesh, error) {
	return r.uploader.CreateMesh(mesh)
}

// CreatePipeline builds a pipeline for the swapchain's render pass.
func (r *Renderer) CreatePipeline(shader *assets.Shader, format assets.VertexFormat) (*pipeline.Pipeline, error) {
	return pipeline.New(r.dev.Device, r.swap.RenderPass(), shader, format)
}

// SetRecordingThreads changes the number of goroutines recording each
// frame. It waits for every frame in flight.
func (r *Renderer) SetRecordingThreads(n int) error {
	if err := r.ring.SetRecordingThreads(n); err != nil {
		return r.fatal(err)
	}
	return nil
}

// RecreateSwapchain implements Backend. It rebuilds the swapchain for a
// window of the given size. While the window has no area it returns
// swapchain.ErrZeroExtent and keeps the old swapchain.
func (r *Renderer) RecreateSwapchain(width, height uint32) error {
	if err := r.swap.Recreate(width, height); err != nil {
		return r.fatal(err)
	}
	// Drained by the wait idle above, so nothing can block here.
	if err := r.ring.WaitAll(); err != nil {
		return r.fatal(err)
	}
	r.stats.Recreations++
	return nil
}

// WaitIdle waits for every frame and upload to complete.
func (r *Renderer) WaitIdle() error {
	if err := r.dev.WaitIdle(); err != nil {
		return err
	}
	if err := r.ring.WaitAll(); err != nil {
		return r.fatal(err)
	}
	return r.uploader.ProcessFinishedSubmitResources()
}

// Destroy implements Backend. It waits for the device to go idle and
// destroys everything the renderer created. Resources handed out by the
// Create methods must be destroyed first.
func (r *Renderer) Destroy() error {
	err := r.dev.WaitIdle()
	if err == nil {
		err = r.ring.WaitAll()
	}
	r.destroy()
	return err
}

func (r *Renderer) destroy() {
	// Retiring the slots hands transfer semaphores back to the uploader.
	if r.ring != nil {
		r.ring.Destroy()
		r.ring = nil
	}
	if r.uploader != nil {
		if err := r.uploader.Destroy(); err != nil {
			r.log.Warn("destroying uploader", "error", err)
		}
		r.uploader = nil
	}
	if r.swap != nil {
		r.swap.Destroy()
		r.swap = nil
	}
	if r.dev != nil {
		r.dev.Destroy()
		r.dev = nil
	}
}

// fatal attaches the graphics queue's checkpoint report to a device loss.
func (r *Renderer) fatal(err error) error {
	return r.dev.Graphics.Lost(err)
}
