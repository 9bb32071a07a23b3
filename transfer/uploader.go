// Package transfer uploads buffers and images through host visible staging
// memory on the transfer queue. Uploads return at once; staging memory and
// command buffers are released once the GPU has finished with them.
package transfer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/command"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/logging"
)

// DefaultMaxInFlight is the default number of transfer submissions whose
// resources may be awaiting cleanup at once.
const DefaultMaxInFlight = 16

// Config configures an Uploader.
type Config struct {
	// MaxInFlight bounds the number of unfinished transfer submissions.
	// When all slots are taken the next upload waits for the oldest one.
	MaxInFlight int

	Logger *slog.Logger
}

// inflight is one submitted transfer awaiting its fence.
type inflight struct {
	generation uint64
	fence      *command.Fence
	buffers    []driver.CommandBuffer
	staging    []driver.Buffer
	semaphore  *command.Semaphore
	// taken is set once the semaphore was handed to the frame submission,
	// which then owns it.
	taken bool
}

// Uploader creates GPU resources and fills them through the transfer queue.
// It is safe for concurrent use.
type Uploader struct {
	mu sync.Mutex

	dev      *device.Logical
	queue    *device.Queue
	families []uint32
	log      *slog.Logger

	// arena is a ring of in flight submissions ordered by generation. The
	// oldest is at head.
	arena      []inflight
	head       int
	count      int
	generation uint64

	freeSemaphores []*command.Semaphore
}

// NewUploader returns an uploader submitting to the transfer queue of dev.
func NewUploader(dev *device.Logical, cfg Config) *Uploader {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}

	var families []uint32
	if g, t := dev.Graphics.Family(), dev.Transfer.Family(); g != t {
		families = []uint32{g, t}
	}

	return &Uploader{
		dev:      dev,
		queue:    dev.Transfer,
		families: families,
		log:      logging.Or(cfg.Logger),
		arena:    make([]inflight, cfg.MaxInFlight),
	}
}

// InFlight returns the number of submissions awaiting cleanup.
func (u *Uploader) InFlight() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count
}

// Generation returns the number of transfer submissions made so far.
func (u *Uploader) Generation() uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.generation
}

// batch is a transfer command buffer being recorded.
type batch struct {
	u       *Uploader
	cb      driver.CommandBuffer
	staging []driver.Buffer
	steps   []string
}

// begin must be called with u.mu held.
func (u *Uploader) begin() (*batch, error) {
	cb, err := u.queue.Pool().AllocateSingleUseBuffer(driver.LevelPrimary, nil)
	if err != nil {
		return nil, err
	}
	return &batch{u: u, cb: cb}, nil
}

// abort releases everything the batch allocated. It is only valid before
// submission.
func (b *batch) abort() {
	_ = b.u.queue.Pool().End(b.cb)
	b.u.queue.Pool().Free(b.cb)
	for _, s := range b.staging {
		b.u.dev.Device.DestroyBuffer(s)
	}
}

func (b *batch) stage(data []byte) (driver.Buffer, error) {
	d := b.u.dev.Device
	staging, err := d.CreateBuffer(driver.BufferCreateInfo{
		Size:       uint64(len(data)),
		Usage:      driver.BufferTransferSrc,
		Visibility: driver.HostVisible,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "create %d byte staging buffer", len(data))
	}
	b.staging = append(b.staging, staging)

	if err := d.WriteBuffer(staging, 0, data); err != nil {
		return 0, errors.Wrap(err, "fill staging buffer")
	}
	return staging, nil
}

func (b *batch) copyBuffer(dst driver.Buffer, data []byte) error {
	staging, err := b.stage(data)
	if err != nil {
		return err
	}
	b.u.dev.Device.CmdCopyBuffer(b.cb, staging, dst, []driver.BufferCopy{{Size: uint64(len(data))}})
	b.steps = append(b.steps, fmt.Sprintf("copy %d bytes to buffer %d", len(data), dst))
	return nil
}

func (b *batch) copyImage(img *Image, data []byte) error {
	staging, err := b.stage(data)
	if err != nil {
		return err
	}

	d := b.u.dev.Device
	graphics := b.u.queue.SupportsGraphics()

	toDst, err := LayoutBarrier(img.Handle, driver.AspectColor, driver.LayoutUndefined, driver.LayoutTransferDst, graphics)
	if err != nil {
		return err
	}
	toRead, err := LayoutBarrier(img.Handle, driver.AspectColor, driver.LayoutTransferDst, driver.LayoutShaderReadOnly, graphics)
	if err != nil {
		return err
	}

	d.CmdImageBarrier(b.cb, toDst)
	d.CmdCopyBufferToImage(b.cb, staging, img.Handle, driver.LayoutTransferDst, img.Extent())
	d.CmdImageBarrier(b.cb, toRead)
	b.steps = append(b.steps, fmt.Sprintf("copy %d bytes to image %d", len(data), img.Handle))
	return nil
}

// submit ends the batch and submits it, signaling a fence and a semaphore,
// then records it in the arena. It must be called with u.mu held.
func (b *batch) submit() error {
	u := b.u
	if err := u.queue.Pool().End(b.cb); err != nil {
		b.abort()
		return err
	}

	if u.count == len(u.arena) {
		if err := u.retireOldest(); err != nil {
			b.abortEnded()
			return err
		}
	}

	fence, err := command.NewFence(u.dev.Device, false)
	if err != nil {
		b.abortEnded()
		return err
	}
	sem, err := u.semaphore()
	if err != nil {
		fence.Destroy()
		b.abortEnded()
		return err
	}

	u.generation++
	gen := u.generation
	checkpoints := append([]string{fmt.Sprintf("transfer %d begin", gen)}, b.steps...)

	err = u.queue.Submit(device.Submission{
		CommandBuffers: []driver.CommandBuffer{b.cb},
		Signals:        []driver.Semaphore{sem.Handle()},
		Fence:          fence,
		Checkpoints:    checkpoints,
	})
	if err != nil {
		fence.Destroy()
		u.freeSemaphores = append(u.freeSemaphores, sem)
		b.abortEnded()
		return err
	}

	slot := (u.head + u.count) % len(u.arena)
	u.arena[slot] = inflight{
		generation: gen,
		fence:      fence,
		buffers:    []driver.CommandBuffer{b.cb},
		staging:    b.staging,
		semaphore:  sem,
	}
	u.count++

	u.log.Debug("transfer submitted", "generation", gen, "steps", len(b.steps), "in_flight", u.count)
	return nil
}

func (b *batch) abortEnded() {
	b.u.queue.Pool().Free(b.cb)
	for _, s := range b.staging {
		b.u.dev.Device.DestroyBuffer(s)
	}
}

func (u *Uploader) semaphore() (*command.Semaphore, error) {
	if n := len(u.freeSemaphores); n > 0 {
		sem := u.freeSemaphores[n-1]
		u.freeSemaphores = u.freeSemaphores[:n-1]
		return sem, nil
	}
	return command.NewSemaphore(u.dev.Device)
}

// retireOldest blocks until the oldest submission completes and releases
// its resources. It must be called with u.mu held.
func (u *Uploader) retireOldest() error {
	head := &u.arena[u.head]
	u.log.Debug("transfer arena full, waiting for oldest submission", "generation", head.generation)
	if err := head.fence.Wait(driver.Forever); err != nil {
		return errors.Wrapf(err, "wait for transfer %d", head.generation)
	}
	u.pop()
	return nil
}

// pop releases the resources of the head submission. Its fence has
// signaled.
func (u *Uploader) pop() {
	head := u.arena[u.head]
	u.queue.Pool().Free(head.buffers...)
	for _, s := range head.staging {
		u.dev.Device.DestroyBuffer(s)
	}
	head.fence.Destroy()
	if !head.taken {
		// Signaled and never waited on: it cannot be signaled again.
		head.semaphore.Destroy()
	}

	u.arena[u.head] = inflight{}
	u.head = (u.head + 1) % len(u.arena)
	u.count--
	u.log.Debug("transfer retired", "generation", head.generation)
}

// ProcessFinishedSubmitResources releases the resources of every completed
// submission, oldest first, without blocking. It stops at the first
// submission still executing.
func (u *Uploader) ProcessFinishedSubmitResources() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	for u.count > 0 {
		head := &u.arena[u.head]
		done, err := head.fence.Signaled()
		if err != nil {
			return errors.Wrapf(err, "poll transfer %d", head.generation)
		}
		if !done {
			return nil
		}
		u.pop()
	}
	return nil
}

// TakeWaitSemaphores returns the semaphores of submissions made since the
// last call. The caller's next submission must wait on them before using
// uploaded resources, and hand them back with RecycleSemaphores once that
// submission has completed.
func (u *Uploader) TakeWaitSemaphores() []*command.Semaphore {
	u.mu.Lock()
	defer u.mu.Unlock()

	var out []*command.Semaphore
	for i := 0; i < u.count; i++ {
		entry := &u.arena[(u.head+i)%len(u.arena)]
		if entry.taken {
			continue
		}
		entry.taken = true
		out = append(out, entry.semaphore)
	}
	return out
}

// RecycleSemaphores returns semaphores taken with TakeWaitSemaphores whose
// waiting submission has completed.
func (u *Uploader) RecycleSemaphores(sems []*command.Semaphore) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.freeSemaphores = append(u.freeSemaphores, sems...)
}

// Flush waits for every submission and releases its resources.
func (u *Uploader) Flush() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	for u.count > 0 {
		if err := u.retireOldest(); err != nil {
			return err
		}
	}
	return nil
}

// Destroy flushes the uploader and destroys its recycled semaphores. Taken
// semaphores not handed back are the caller's to destroy.
func (u *Uploader) Destroy() error {
	err := u.Flush()

	u.mu.Lock()
	defer u.mu.Unlock()
	for _, s := range u.freeSemaphores {
		s.Destroy()
	}
	u.freeSemaphores = nil
	return err
}
