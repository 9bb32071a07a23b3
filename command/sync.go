package command

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

// Fence lets the CPU wait for submitted work. The handle is guarded so
// that queues may poll a fence its owner destroys concurrently.
type Fence struct {
	mu     sync.Mutex
	dev    driver.Device
	handle driver.Fence
}

// NewFence creates a fence, optionally already signaled.
func NewFence(dev driver.Device, signaled bool) (*Fence, error) {
	h, err := dev.CreateFence(signaled)
	if err != nil {
		return nil, errors.Wrap(err, "create fence")
	}
	return &Fence{dev: dev, handle: h}, nil
}

// Handle returns the native fence.
func (f *Fence) Handle() driver.Fence {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handle
}

// Wait blocks until the fence signals or the timeout expires.
func (f *Fence) Wait(timeout time.Duration) error {
	if err := f.dev.WaitForFences([]driver.Fence{f.Handle()}, true, timeout); err != nil {
		return errors.Wrap(err, "wait for fence")
	}
	return nil
}

// Reset returns the fence to the unsignaled state.
func (f *Fence) Reset() error {
	if err := f.dev.ResetFences([]driver.Fence{f.Handle()}); err != nil {
		return errors.Wrap(err, "reset fence")
	}
	return nil
}

// Signaled polls the fence without blocking.
func (f *Fence) Signaled() (bool, error) {
	ok, err := f.dev.FenceSignaled(f.Handle())
	if err != nil {
		return false, errors.Wrap(err, "get fence status")
	}
	return ok, nil
}

// Destroy destroys the fence.
func (f *Fence) Destroy() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handle == 0 {
		return
	}
	f.dev.DestroyFence(f.handle)
	f.handle = 0
}

// Completed reports whether the fence has signaled. A destroyed fence
// counts as completed since owners only destroy fences they waited on.
func (f *Fence) Completed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handle == 0 {
		return true
	}
	ok, err := f.dev.FenceSignaled(f.handle)
	return err == nil && ok
}

// WaitAll blocks until every fence signals.
func WaitAll(dev driver.Device, timeout time.Duration, fences ...*Fence) error {
	if len(fences) == 0 {
		return nil
	}
	handles := make([]driver.Fence, len(fences))
	for i, f := range fences {
		handles[i] = f.Handle()
	}
	if err := dev.WaitForFences(handles, true, timeout); err != nil {
		return errors.Wrapf(err, "wait for %d fences", len(fences))
	}
	return nil
}

// Semaphore orders work between GPU submissions.
type Semaphore struct {
	dev    driver.Device
	handle driver.Semaphore
}

// NewSemaphore creates a semaphore.
func NewSemaphore(dev driver.Device) (*Semaphore, error) {
	h, err := dev.CreateSemaphore()
	if err != nil {
		return nil, errors.Wrap(err, "create semaphore")
	}
	return &Semaphore{dev: dev, handle: h}, nil
}

// Handle returns the native semaphore.
func (s *Semaphore) Handle() driver.Semaphore {
	if s == nil {
		return 0
	}
	return s.handle
}

// Destroy destroys the semaphore.
func (s *Semaphore) Destroy() {
	if s == nil || s.handle == 0 {
		return
	}
	s.dev.DestroySemaphore(s.handle)
	s.handle = 0
}
