package device

import (
	"log/slog"
	"sort"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/command"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/logging"
)

// Logical is the logical device with one queue per role. Roles resolved to
// the same family share a native queue.
type Logical struct {
	Device    driver.Device
	Selection *Selection

	Graphics *Queue
	Compute  *Queue
	Transfer *Queue
	Present  *Queue

	natives []*nativeQueue
	log     *slog.Logger
}

// NewLogical creates the logical device for a selection. Either everything
// is created or nothing is left behind.
func NewLogical(inst driver.Instance, sel *Selection, logger *slog.Logger) (l *Logical, err error) {
	families := sel.Families.Unique()
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })

	info := driver.DeviceCreateInfo{
		Extensions:        sel.Extensions,
		SamplerAnisotropy: true,
	}
	for _, f := range families {
		info.Queues = append(info.Queues, driver.QueueCreateInfo{Family: f, Count: 1})
	}

	dev, err := inst.CreateDevice(sel.Physical.Handle, info)
	if err != nil {
		return nil, errors.Wrap(err, "create logical device")
	}

	l = &Logical{
		Device:    dev,
		Selection: sel,
		log:       logging.Or(logger),
	}
	defer func() {
		if err != nil {
			l.Destroy()
			l = nil
		}
	}()

	natives := make(map[uint32]*nativeQueue, len(families))
	for _, f := range families {
		nq := &nativeQueue{handle: dev.Queue(f, 0)}
		natives[f] = nq
		l.natives = append(l.natives, nq)
	}

	roles := []struct {
		role   Role
		family uint32
		dst    **Queue
	}{
		{Graphics, sel.Families.Graphics.Get(), &l.Graphics},
		{Compute, sel.Families.Compute.Get(), &l.Compute},
		{Transfer, sel.Families.Transfer.Get(), &l.Transfer},
		{Present, sel.Families.Present.Get(), &l.Present},
	}
	for _, r := range roles {
		var pool *command.Pool
		if pool, err = command.NewPool(dev, r.family, command.Transient, command.Resettable); err != nil {
			return l, errors.Wrapf(err, "create %s queue pool", r.role)
		}
		*r.dst = &Queue{
			role:   r.role,
			dev:    dev,
			family: r.family,
			flags:  sel.Physical.Families[r.family].Flags,
			native: natives[r.family],
			pool:   pool,
		}
	}

	l.log.Info("logical device created", "queues", len(families), "extensions", sel.Extensions)
	return l, nil
}

// Queues returns the queue of every role.
func (l *Logical) Queues() []*Queue {
	return []*Queue{l.Graphics, l.Compute, l.Transfer, l.Present}
}

// WaitIdle blocks until the device has no work left. Every native queue is
// locked for the duration.
func (l *Logical) WaitIdle() error {
	for _, nq := range l.natives {
		nq.mu.Lock()
	}
	defer func() {
		for _, nq := range l.natives {
			nq.mu.Unlock()
		}
	}()

	err := l.Device.WaitIdle()
	if errors.Is(err, driver.ErrDeviceLost) {
		return l.Graphics.lost(err)
	}
	if err != nil {
		return errors.Wrap(err, "wait for device idle")
	}
	return nil
}

// Destroy destroys the queue pools and the device. The device must be idle.
func (l *Logical) Destroy() {
	for _, q := range l.Queues() {
		if q != nil && q.pool != nil {
			q.pool.Destroy()
		}
	}
	if l.Device != nil {
		l.Device.Destroy()
		l.Device = nil
	}
}
