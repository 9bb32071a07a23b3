// Package frame implements the ring of per-frame resources which lets the
// CPU record frame n+1 while the GPU still renders frame n.
package frame

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/command"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/logging"
)

// DefaultSlots is the number of frames in flight.
const DefaultSlots = 3

// Config configures a Ring.
type Config struct {
	// Slots is the number of frames in flight. Zero means DefaultSlots.
	Slots int

	// RecordingThreads is the number of secondary command buffers, each
	// with its own pool, recorded in parallel per frame. Zero means one.
	RecordingThreads int

	// FenceTimeout bounds the wait for a slot to come back from the GPU.
	// Zero waits forever.
	FenceTimeout time.Duration

	Logger *slog.Logger
}

// Ring is a fixed ring of frame slots. Slot i is only reused after the fence
// of its previous submission has signaled.
type Ring struct {
	dev     *device.Logical
	slots   []*Slot
	index   int
	frame   uint64
	timeout time.Duration
	log     *slog.Logger
}

// NewRing creates every slot up front.
func NewRing(dev *device.Logical, cfg Config) (r *Ring, err error) {
	if cfg.Slots <= 0 {
		cfg.Slots = DefaultSlots
	}
	if cfg.RecordingThreads <= 0 {
		cfg.RecordingThreads = 1
	}
	timeout := cfg.FenceTimeout
	if timeout == 0 {
		timeout = driver.Forever
	}

	r = &Ring{
		dev:     dev,
		timeout: timeout,
		log:     logging.Or(cfg.Logger),
	}
	defer func() {
		if err != nil {
			r.Destroy()
			r = nil
		}
	}()

	for i := 0; i < cfg.Slots; i++ {
		var s *Slot
		s, err = newSlot(dev, i, cfg.RecordingThreads)
		if s != nil {
			r.slots = append(r.slots, s)
		}
		if err != nil {
			return r, errors.Wrapf(err, "create frame slot %d", i)
		}
	}

	r.log.Debug("frame ring created", "slots", cfg.Slots, "threads", cfg.RecordingThreads)
	return r, nil
}

// Len returns the number of slots.
func (r *Ring) Len() int { return len(r.slots) }

// Index returns the index of the current slot.
func (r *Ring) Index() int { return r.index }

// Frame returns how many times the ring has advanced.
func (r *Ring) Frame() uint64 { return r.frame }

// Current returns the current slot.
func (r *Ring) Current() *Slot { return r.slots[r.index] }

// Slot returns slot i.
func (r *Ring) Slot(i int) *Slot { return r.slots[i] }

// RecordingThreads returns the number of secondary recorders per slot.
func (r *Ring) RecordingThreads() int { return len(r.slots[0].Recorders) }

// Begin waits until the current slot's previous submission has completed,
// runs the slot's retire callbacks and resets its command pools. The slot's
// fence stays signaled: it is reset right before the next submission.
func (r *Ring) Begin() (*Slot, error) {
	s := r.Current()
	if err := s.InFlight.Wait(r.timeout); err != nil {
		return nil, errors.Wrapf(err, "wait for frame slot %d", s.index)
	}
	s.retired()
	if err := s.reset(); err != nil {
		return nil, errors.Wrapf(err, "reset frame slot %d", s.index)
	}
	return s, nil
}

// Advance moves to the next slot.
func (r *Ring) Advance() {
	r.index = (r.index + 1) % len(r.slots)
	r.frame++
}

// WaitAll waits for the fences of every slot and runs their retire
// callbacks.
func (r *Ring) WaitAll() error {
	fences := make([]*command.Fence, 0, len(r.slots))
	for _, s := range r.slots {
		fences = append(fences, s.InFlight)
	}
	if err := command.WaitAll(r.dev.Device, r.timeout, fences...); err != nil {
		return errors.Wrap(err, "wait for frame slots")
	}
	for _, s := range r.slots {
		s.retired()
	}
	return nil
}

// SetRecordingThreads rebuilds the secondary recorders of every slot. It
// waits for all slots first.
func (r *Ring) SetRecordingThreads(n int) error {
	if n <= 0 {
		n = 1
	}
	if err := r.WaitAll(); err != nil {
		return err
	}
	for _, s := range r.slots {
		s.destroyRecorders()
		if err := s.createRecorders(r.dev, n); err != nil {
			return errors.Wrapf(err, "create recorders for frame slot %d", s.index)
		}
	}
	r.log.Debug("recording threads changed", "threads", n)
	return nil
}

// Destroy destroys every slot. The device must be idle.
func (r *Ring) Destroy() {
	for _, s := range r.slots {
		s.retired()
		s.destroy()
	}
	r.slots = nil
}
