package frame

import (
	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/command"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
)

const minScratchSize = 64 << 10

// Recorder is a secondary command buffer with a pool of its own, so that
// recorders can be used from different goroutines.
type Recorder struct {
	Pool   *command.Pool
	Buffer driver.CommandBuffer
}

// Slot holds everything one frame in flight needs.
type Slot struct {
	index int
	dev   *device.Logical

	// ImageAvailable is signaled by swapchain acquire.
	ImageAvailable *command.Semaphore
	// RenderFinished is signaled by the frame submission and waited on by
	// present.
	RenderFinished *command.Semaphore
	// InFlight signals when the frame submission completes.
	InFlight *command.Fence

	Pool      *command.Pool
	Primary   driver.CommandBuffer
	Recorders []Recorder

	scratch     driver.Buffer
	scratchSize uint64

	onRetire []func()
}

func newSlot(dev *device.Logical, index, threads int) (s *Slot, err error) {
	s = &Slot{index: index, dev: dev}

	if s.ImageAvailable, err = command.NewSemaphore(dev.Device); err != nil {
		return s, err
	}
	if s.RenderFinished, err = command.NewSemaphore(dev.Device); err != nil {
		return s, err
	}
	// Signaled so the first wait on a fresh slot does not block.
	if s.InFlight, err = command.NewFence(dev.Device, true); err != nil {
		return s, err
	}
	if s.Pool, err = command.NewPool(dev.Device, dev.Graphics.Family(), command.Transient, command.PoolReset); err != nil {
		return s, err
	}
	bufs, err := s.Pool.AllocateBuffers(1, driver.LevelPrimary)
	if err != nil {
		return s, err
	}
	s.Primary = bufs[0]

	return s, s.createRecorders(dev, threads)
}

// Index returns the position of the slot in the ring.
func (s *Slot) Index() int { return s.index }

// OnRetire registers fn to run once the next wait on this slot's fence
// succeeds, that is once the GPU is done with the frame recorded now.
func (s *Slot) OnRetire(fn func()) {
	s.onRetire = append(s.onRetire, fn)
}

func (s *Slot) retired() {
	fns := s.onRetire
	s.onRetire = nil
	for _, fn := range fns {
		fn()
	}
}

// Scratch returns a host visible buffer of at least size bytes usable as a
// copy source and as a vertex buffer. The buffer is only valid until the
// next call and only written while the slot is not in flight.
func (s *Slot) Scratch(size uint64) (driver.Buffer, error) {
	if size <= s.scratchSize {
		return s.scratch, nil
	}

	newSize := uint64(minScratchSize)
	for newSize < size {
		newSize *= 2
	}
	buf, err := s.dev.Device.CreateBuffer(driver.BufferCreateInfo{
		Size:       newSize,
		Usage:      driver.BufferTransferSrc | driver.BufferVertex,
		Visibility: driver.HostVisible,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "create %d byte scratch buffer", newSize)
	}
	if s.scratch != 0 {
		s.dev.Device.DestroyBuffer(s.scratch)
	}
	s.scratch, s.scratchSize = buf, newSize
	return buf, nil
}

func (s *Slot) reset() error {
	if err := s.Pool.Reset(); err != nil {
		return err
	}
	for _, r := range s.Recorders {
		if err := r.Pool.Reset(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Slot) createRecorders(dev *device.Logical, threads int) error {
	for i := 0; i < threads; i++ {
		pool, err := command.NewPool(dev.Device, dev.Graphics.Family(), command.Transient, command.PoolReset)
		if err != nil {
			return err
		}
		bufs, err := pool.AllocateBuffers(1, driver.LevelSecondary)
		if err != nil {
			pool.Destroy()
			return err
		}
		s.Recorders = append(s.Recorders, Recorder{Pool: pool, Buffer: bufs[0]})
	}
	return nil
}

func (s *Slot) destroyRecorders() {
	for _, r := range s.Recorders {
		r.Pool.Destroy()
	}
	s.Recorders = nil
}

func (s *Slot) destroy() {
	s.destroyRecorders()
	if s.Pool != nil {
		s.Pool.Destroy()
	}
	if s.scratch != 0 {
		s.dev.Device.DestroyBuffer(s.scratch)
		s.scratch, s.scratchSize = 0, 0
	}
	s.InFlight.Destroy()
	s.RenderFinished.Destroy()
	s.ImageAvailable.Destroy()
}
