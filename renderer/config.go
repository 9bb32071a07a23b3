package renderer

import (
	"log/slog"
	"time"

	"github.com/ChewyGumball/bengine-sub000/frame"
	"github.com/ChewyGumball/bengine-sub000/transfer"
)

// Config configures a Renderer. Zero values select the defaults.
type Config struct {
	// FramesInFlight is the number of frames the CPU may record ahead of
	// the GPU.
	FramesInFlight int
	// RecordingThreads is the number of goroutines recording secondary
	// command buffers per frame.
	RecordingThreads int
	// FenceTimeout bounds waits for a frame slot. Zero waits forever.
	FenceTimeout time.Duration
	// TransferSlots bounds the number of unfinished uploads.
	TransferSlots int

	// DeviceExtensions are required in addition to the swapchain
	// extension.
	DeviceExtensions []string

	// Width and Height are the initial size of the window in pixels.
	Width, Height uint32

	ClearColor [4]float32

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.FramesInFlight <= 0 {
		c.FramesInFlight = frame.DefaultSlots
	}
	if c.RecordingThreads <= 0 {
		c.RecordingThreads = 1
	}
	if c.TransferSlots <= 0 {
		c.TransferSlots = transfer.DefaultMaxInFlight
	}
	if c.Width == 0 {
		c.Width = 800
	}
	if c.Height == 0 {
		c.Height = 600
	}
	if c.ClearColor == ([4]float32{}) {
		c.ClearColor = [4]float32{0, 0, 0, 1}
	}
	return c
}
