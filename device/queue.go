package device

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/command"
	"github.com/ChewyGumball/bengine-sub000/driver"
)

// Role is what a queue is used for.
type Role int

const (
	Graphics Role = iota
	Compute
	Transfer
	Present
)

func (r Role) String() string {
	switch r {
	case Graphics:
		return "graphics"
	case Compute:
		return "compute"
	case Transfer:
		return "transfer"
	case Present:
		return "present"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Submission is one batch of command buffers for Queue.Submit.
type Submission struct {
	Waits          []driver.SemaphoreWait
	CommandBuffers []driver.CommandBuffer
	Signals        []driver.Semaphore
	// Fence, if not nil, signals when the batch completes.
	Fence *command.Fence
	// Checkpoints name the stages of the recorded work, in order. They are
	// reported if the device is lost.
	Checkpoints []string
}

// nativeQueue is shared by every role resolved to the same family.
type nativeQueue struct {
	mu      sync.Mutex
	handle  driver.Queue
	history checkpointHistory
}

// Queue is a role bound to a native queue, with a command pool dedicated to
// that role.
type Queue struct {
	role   Role
	dev    driver.Device
	family uint32
	flags  driver.QueueFlags
	native *nativeQueue
	pool   *command.Pool
}

// Role returns what the queue is used for.
func (q *Queue) Role() Role { return q.role }

// Family returns the queue family index.
func (q *Queue) Family() uint32 { return q.family }

// Handle returns the native queue.
func (q *Queue) Handle() driver.Queue { return q.native.handle }

// Pool returns the command pool dedicated to this queue. It is transient
// and its buffers are individually resettable.
func (q *Queue) Pool() *command.Pool { return q.pool }

// SupportsGraphics reports whether the family can run graphics work.
func (q *Queue) SupportsGraphics() bool { return q.flags&driver.QueueGraphics != 0 }

// Shares reports whether two roles submit to the same native queue.
func (q *Queue) Shares(other *Queue) bool { return q.native == other.native }

// Submit submits one batch. Submissions to a native queue are serialized.
func (q *Queue) Submit(s Submission) error {
	q.native.mu.Lock()
	defer q.native.mu.Unlock()

	q.native.history.poll()

	batch := driver.SubmitInfo{
		Waits:          s.Waits,
		CommandBuffers: s.CommandBuffers,
		Signals:        s.Signals,
	}
	err := q.dev.Submit(q.native.handle, []driver.SubmitInfo{batch}, s.Fence.Handle())
	if errors.Is(err, driver.ErrDeviceLost) {
		return q.lost(err)
	}
	if err != nil {
		return errors.Wrapf(err, "submit to %s queue", q.role)
	}

	q.native.history.record(s.Fence, s.Checkpoints)
	return nil
}

// Present queues a swapchain image for presentation.
func (q *Queue) Present(info driver.PresentInfo) (driver.Status, error) {
	q.native.mu.Lock()
	defer q.native.mu.Unlock()

	status, err := q.dev.Present(q.native.handle, info)
	if errors.Is(err, driver.ErrDeviceLost) {
		return status, q.lost(err)
	}
	if err != nil {
		return status, errors.Wrapf(err, "present on %s queue", q.role)
	}
	return status, nil
}

// Checkpoints reports how far recent submissions to the queue got.
func (q *Queue) Checkpoints() CheckpointReport {
	q.native.mu.Lock()
	defer q.native.mu.Unlock()
	q.native.history.poll()
	return q.native.history.report()
}

// Lost attaches the checkpoint report of q to a device loss observed
// outside a submission, such as a fence wait. Other errors and errors
// already carrying a report are returned unchanged.
func (q *Queue) Lost(err error) error {
	var le *LostError
	if !errors.Is(err, driver.ErrDeviceLost) || errors.As(err, &le) {
		return err
	}
	q.native.mu.Lock()
	defer q.native.mu.Unlock()
	return q.lost(err)
}

// lost must be called with the native queue locked.
func (q *Queue) lost(err error) error {
	q.native.history.poll()
	return &LostError{
		Role:   q.role,
		Report: q.native.history.report(),
		err:    err,
	}
}

// LostError is returned when the device is lost during a submission or
// present. It unwraps to driver.ErrDeviceLost.
type LostError struct {
	Role   Role
	Report CheckpointReport
	err    error
}

func (e *LostError) Error() string {
	return fmt.Sprintf("%s queue: %v (%s)", e.Role, e.err, e.Report)
}

func (e *LostError) Unwrap() error { return e.err }

// CheckpointReport is a best-effort account of GPU progress. Checkpoints are
// tracked in software: a submission counts as reached once its fence has
// been observed signaled.
type CheckpointReport struct {
	// LastReached is the last checkpoint of the newest submission known to
	// have completed.
	LastReached string
	// Pending are the checkpoints of submissions not known to have
	// completed, oldest first.
	Pending []string
}

func (r CheckpointReport) String() string {
	last := r.LastReached
	if last == "" {
		last = "none"
	}
	return fmt.Sprintf("last reached checkpoint: %s; pending: [%s]", last, strings.Join(r.Pending, ", "))
}

const historyLength = 16

type checkpointEntry struct {
	fence       *command.Fence
	checkpoints []string
	reached     bool
}

type checkpointHistory struct {
	entries []checkpointEntry
}

func (h *checkpointHistory) record(fence *command.Fence, checkpoints []string) {
	if len(h.entries) == historyLength {
		h.entries = append(h.entries[:0], h.entries[1:]...)
	}
	h.entries = append(h.entries, checkpointEntry{
		fence:       fence,
		checkpoints: append([]string(nil), checkpoints...),
	})
}

// poll marks entries whose fences have signaled. Submissions on one queue
// complete in order, so everything before a reached entry is reached too.
func (h *checkpointHistory) poll() {
	newest := -1
	for i := len(h.entries) - 1; i >= 0; i-- {
		e := h.entries[i]
		if e.reached {
			break
		}
		if e.fence == nil {
			continue
		}
		if e.fence.Completed() {
			newest = i
			break
		}
	}
	for i := 0; i <= newest; i++ {
		h.entries[i].reached = true
	}
}

func (h *checkpointHistory) report() CheckpointReport {
	var r CheckpointReport
	for _, e := range h.entries {
		if e.reached {
			if len(e.checkpoints) > 0 {
				r.LastReached = e.checkpoints[len(e.checkpoints)-1]
			}
			continue
		}
		r.Pending = append(r.Pending, e.checkpoints...)
	}
	return r
}
