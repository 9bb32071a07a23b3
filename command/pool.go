// Package command wraps command pools, command buffers and the fences and
// semaphores used to order their execution.
package command

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

// Lifetime hints how long buffers from a pool live.
type Lifetime int

const (
	// Permanent buffers are recorded once or rarely.
	Permanent Lifetime = iota
	// Transient buffers are recorded, submitted and discarded quickly.
	Transient
)

// ResetMode tells whether buffers may be reset one at a time.
type ResetMode int

const (
	// PoolReset only allows resetting all buffers together with Pool.Reset.
	PoolReset ResetMode = iota
	// Resettable lets each buffer be reset when recording begins again.
	Resettable
)

// Pool allocates command buffers for one queue family. The native API does
// not synchronize pools, so every method holds the pool lock.
type Pool struct {
	mu       sync.Mutex
	dev      driver.Device
	handle   driver.CommandPool
	family   uint32
	lifetime Lifetime
	reset    ResetMode
}

// NewPool creates a command pool for the given queue family.
func NewPool(dev driver.Device, family uint32, lifetime Lifetime, reset ResetMode) (*Pool, error) {
	var flags driver.CommandPoolFlags
	if lifetime == Transient {
		flags |= driver.PoolTransient
	}
	if reset == Resettable {
		flags |= driver.PoolResetCommandBuffer
	}

	handle, err := dev.CreateCommandPool(family, flags)
	if err != nil {
		return nil, errors.Wrapf(err, "create command pool for family %d", family)
	}

	return &Pool{
		dev:      dev,
		handle:   handle,
		family:   family,
		lifetime: lifetime,
		reset:    reset,
	}, nil
}

// Handle returns the native pool.
func (p *Pool) Handle() driver.CommandPool { return p.handle }

// Family returns the queue family buffers from this pool are submitted to.
func (p *Pool) Family() uint32 { return p.family }

// Lifetime returns the lifetime hint the pool was created with.
func (p *Pool) Lifetime() Lifetime { return p.lifetime }

// ResetMode returns how buffers of the pool may be reset.
func (p *Pool) ResetMode() ResetMode { return p.reset }

// AllocateBuffers allocates count command buffers of the given level. They
// stay owned by the pool until freed or the pool is destroyed.
func (p *Pool) AllocateBuffers(count uint32, level driver.CommandBufferLevel) ([]driver.CommandBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bufs, err := p.dev.AllocateCommandBuffers(p.handle, level, count)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %d command buffers", count)
	}
	return bufs, nil
}

// AllocateSingleUseBuffer allocates one command buffer and begins recording
// it. Primary buffers are recorded for one time submission. Secondary
// buffers may be submitted simultaneously, and continue the render pass in
// inheritance when one is given.
func (p *Pool) AllocateSingleUseBuffer(
	level driver.CommandBufferLevel,
	inheritance *driver.Inheritance,
) (driver.CommandBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bufs, err := p.dev.AllocateCommandBuffers(p.handle, level, 1)
	if err != nil {
		return 0, errors.Wrap(err, "allocate single use command buffer")
	}
	cb := bufs[0]

	if err := p.dev.BeginCommandBuffer(cb, SingleUseFlags(level, inheritance), inheritance); err != nil {
		p.dev.FreeCommandBuffers(p.handle, bufs)
		return 0, errors.Wrap(err, "begin single use command buffer")
	}
	return cb, nil
}

// SingleUseFlags returns the usage a single use buffer of the given level is
// recorded with.
func SingleUseFlags(level driver.CommandBufferLevel, inheritance *driver.Inheritance) driver.CommandBufferUsage {
	if level == driver.LevelPrimary {
		return driver.UsageOneTimeSubmit
	}
	usage := driver.UsageSimultaneousUse
	if inheritance != nil {
		usage |= driver.UsageRenderPassContinue
	}
	return usage
}

// Free returns buffers to the pool. The caller guarantees none of them is
// still executing.
func (p *Pool) Free(buffers ...driver.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dev.FreeCommandBuffers(p.handle, buffers)
}

// Reset resets every buffer allocated from the pool to the initial state.
func (p *Pool) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.dev.ResetCommandPool(p.handle); err != nil {
		return errors.Wrap(err, "reset command pool")
	}
	return nil
}

// Begin starts recording a buffer allocated from this pool.
func (p *Pool) Begin(
	cb driver.CommandBuffer,
	usage driver.CommandBufferUsage,
	inheritance *driver.Inheritance,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.dev.BeginCommandBuffer(cb, usage, inheritance); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	return nil
}

// End finishes recording a buffer allocated from this pool.
func (p *Pool) End(cb driver.CommandBuffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.dev.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	return nil
}

// Destroy destroys the pool and every buffer allocated from it.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return
	}
	p.dev.DestroyCommandPool(p.handle)
	p.handle = 0
}
