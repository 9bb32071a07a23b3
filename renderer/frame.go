package renderer

import (
	"fmt"
	"time"

	"github.com/loov/hrtime"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ChewyGumball/bengine-sub000/command"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/frame"
	"github.com/ChewyGumball/bengine-sub000/pipeline"
	"github.com/ChewyGumball/bengine-sub000/transfer"
	"github.com/ChewyGumball/bengine-sub000/unsafer"
)

var (
	// ErrIncompleteDraw is returned for draws without a pipeline or mesh.
	ErrIncompleteDraw = errors.New("draw needs a pipeline and a mesh")
	// ErrInstanceData is returned when a draw and its pipeline disagree
	// about per instance data.
	ErrInstanceData = errors.New("instance data does not match pipeline")
	// ErrUnknownSubMesh is returned for sub mesh names the mesh lacks.
	ErrUnknownSubMesh = errors.New("mesh has no sub mesh with that name")
	// ErrUploadTarget is returned for raw uploads into buffers that cannot
	// be copied into.
	ErrUploadTarget = errors.New("raw upload destination lacks transfer destination usage")
)

const (
	scratchAlignment = 16
	instanceSize     = 64
)

// Frame is a frame between BeginFrame and EndFrame.
type Frame struct {
	Slot       *frame.Slot
	ImageIndex uint32
	Extent     driver.Extent2D
	Number     uint64

	framebuffer driver.Framebuffer
	suboptimal  bool
	start       time.Duration
}

// item is a command with its offset in the scratch buffer.
type item struct {
	cmd    Command
	offset uint64
}

func (r *Renderer) timeout() time.Duration {
	if r.cfg.FenceTimeout == 0 {
		return driver.Forever
	}
	return r.cfg.FenceTimeout
}

// status classifies an error ending a frame. Device loss is fatal; any
// other error only drops the frame.
func (r *Renderer) status(err error) (Status, error) {
	if errors.Is(err, driver.ErrDeviceLost) {
		return StatusFatal, r.fatal(err)
	}
	r.stats.Dropped++
	return StatusOK, err
}

// SubmitFrame implements Backend. It renders list into the next swapchain
// image and presents it.
func (r *Renderer) SubmitFrame(list *CommandList) (Status, error) {
	f, status, err := r.BeginFrame()
	if f == nil {
		return status, err
	}
	return r.EndFrame(f, list)
}

// BeginFrame waits for the current slot to come back from the GPU and
// acquires a swapchain image. It returns a nil frame when the frame cannot
// be rendered: the status then tells whether to recreate the swapchain or
// give up.
func (r *Renderer) BeginFrame() (*Frame, Status, error) {
	start := hrtime.Now()

	slot, err := r.ring.Begin()
	if err != nil {
		status, err := r.status(err)
		return nil, status, err
	}

	idx, acquired, err := r.swap.Acquire(slot.ImageAvailable, r.timeout())
	if err != nil {
		status, err := r.status(err)
		return nil, status, err
	}
	if acquired == driver.StatusOutOfDate {
		// The slot's fence is still signaled and the ring does not move, so
		// the next attempt reuses the slot without waiting.
		r.log.Debug("swapchain out of date on acquire", "frame", r.ring.Frame())
		r.stats.Dropped++
		return nil, StatusRecreateSwapchain, nil
	}

	chain := r.swap.Chain()
	f := &Frame{
		Slot:        slot,
		ImageIndex:  idx,
		Extent:      chain.Extent,
		Number:      r.ring.Frame(),
		framebuffer: chain.Framebuffers[idx],
		suboptimal:  acquired == driver.StatusSuboptimal,
		start:       start,
	}

	if err := r.uploader.ProcessFinishedSubmitResources(); err != nil {
		status, err := r.abandon(f, err)
		return nil, status, err
	}
	return f, StatusOK, nil
}

// EndFrame records list into the frame, submits it and presents the image.
func (r *Renderer) EndFrame(f *Frame, list *CommandList) (Status, error) {
	items, scratch, err := r.stage(f.Slot, list)
	if err != nil {
		return r.abandon(f, err)
	}
	secondaries, err := r.recordSecondaries(f, items, scratch)
	if err != nil {
		return r.abandon(f, err)
	}
	if err := r.recordPrimary(f, items, scratch, secondaries); err != nil {
		return r.abandon(f, err)
	}

	sems := r.uploader.TakeWaitSemaphores()
	waits := make([]driver.SemaphoreWait, 0, len(sems)+1)
	waits = append(waits, driver.SemaphoreWait{Semaphore: f.Slot.ImageAvailable.Handle(), Stage: driver.StageColorAttachmentOutput})
	for _, s := range sems {
		waits = append(waits, driver.SemaphoreWait{Semaphore: s.Handle(), Stage: driver.StageAllCommands})
	}

	checkpoints := []string{
		fmt.Sprintf("frame %d begin", f.Number),
		fmt.Sprintf("frame %d: %d commands in %d secondaries", f.Number, len(items), len(secondaries)),
		fmt.Sprintf("frame %d end", f.Number),
	}
	if err := r.submit(f, waits, []driver.CommandBuffer{f.Slot.Primary}, checkpoints); err != nil {
		return StatusFatal, r.fatal(err)
	}
	if len(sems) > 0 {
		f.Slot.OnRetire(func() { r.uploader.RecycleSemaphores(sems) })
	}

	return r.present(f)
}

// submit resets the slot fence and submits to the graphics queue. Once the
// fence is reset a failed submission leaves the slot unusable, so any error
// is fatal.
func (r *Renderer) submit(f *Frame, waits []driver.SemaphoreWait, cbs []driver.CommandBuffer, checkpoints []string) error {
	if err := f.Slot.InFlight.Reset(); err != nil {
		return err
	}
	return r.dev.Graphics.Submit(device.Submission{
		Waits:          waits,
		CommandBuffers: cbs,
		Signals:        []driver.Semaphore{f.Slot.RenderFinished.Handle()},
		Fence:          f.Slot.InFlight,
		Checkpoints:    checkpoints,
	})
}

func (r *Renderer) present(f *Frame) (Status, error) {
	presented, err := r.swap.Present(f.Slot.RenderFinished, f.ImageIndex)
	r.ring.Advance()
	r.stats.record(hrtime.Since(f.start))
	if err != nil {
		return r.status(err)
	}
	if presented != driver.StatusSuccess || f.suboptimal {
		r.log.Debug("swapchain needs recreation after present", "status", presented, "frame", f.Number)
		return StatusRecreateSwapchain, nil
	}
	return StatusOK, nil
}

// abandon gives up on a frame whose image was acquired. The acquire
// semaphore is consumed and the image presented unchanged so that the slot
// and the swapchain stay usable.
func (r *Renderer) abandon(f *Frame, cause error) (Status, error) {
	if errors.Is(cause, driver.ErrDeviceLost) {
		return StatusFatal, r.fatal(cause)
	}
	r.log.Warn("frame abandoned", "frame", f.Number, "error", cause)

	waits := []driver.SemaphoreWait{{Semaphore: f.Slot.ImageAvailable.Handle(), Stage: driver.StageColorAttachmentOutput}}
	if err := r.submit(f, waits, nil, []string{fmt.Sprintf("frame %d abandoned", f.Number)}); err != nil {
		return StatusFatal, r.fatal(err)
	}
	status, err := r.present(f)
	r.stats.Frames--
	r.stats.Dropped++
	if err != nil {
		return status, err
	}
	return status, cause
}

func align(n uint64) uint64 {
	return (n + scratchAlignment - 1) &^ (scratchAlignment - 1)
}

// stage lays out instance data and raw uploads in the slot's scratch
// buffer and writes them.
func (r *Renderer) stage(slot *frame.Slot, list *CommandList) ([]item, driver.Buffer, error) {
	if list.Len() == 0 {
		return nil, 0, nil
	}

	items := make([]item, len(list.Commands))
	var size uint64
	for i, c := range list.Commands {
		items[i].cmd = c
		switch c := c.(type) {
		case DrawInstancedMesh:
			size = align(size)
			items[i].offset = size
			size += uint64(len(c.Instances)) * instanceSize
		case RawUpload:
			if c.Dst == nil {
				return nil, 0, errors.New("raw upload without destination")
			}
			if c.Dst.Usage&driver.BufferTransferDst == 0 {
				return nil, 0, errors.Wrapf(ErrUploadTarget, "buffer with usage %v", c.Dst.Usage)
			}
			if c.Offset+uint64(len(c.Data)) > c.Dst.Size {
				return nil, 0, errors.Wrapf(driver.ErrOutOfRange, "upload %d bytes at %d into %d byte buffer", len(c.Data), c.Offset, c.Dst.Size)
			}
			size = align(size)
			items[i].offset = size
			size += uint64(len(c.Data))
		}
	}
	if size == 0 {
		return items, 0, nil
	}

	scratch, err := slot.Scratch(size)
	if err != nil {
		return nil, 0, err
	}
	d := r.dev.Device
	for _, it := range items {
		var data []byte
		switch c := it.cmd.(type) {
		case DrawInstancedMesh:
			data = unsafer.SliceToBytes(c.Instances)
		case RawUpload:
			data = c.Data
		}
		if len(data) == 0 {
			continue
		}
		if err := d.WriteBuffer(scratch, it.offset, data); err != nil {
			return nil, 0, errors.Wrap(err, "write scratch buffer")
		}
	}
	return items, scratch, nil
}

// recordSecondaries splits the draws of the frame into contiguous chunks,
// one per recorder, and records them in parallel.
func (r *Renderer) recordSecondaries(f *Frame, items []item, scratch driver.Buffer) ([]driver.CommandBuffer, error) {
	draws := make([]item, 0, len(items))
	for _, it := range items {
		if _, ok := it.cmd.(RawUpload); !ok {
			draws = append(draws, it)
		}
	}
	if len(draws) == 0 {
		return nil, nil
	}

	recorders := f.Slot.Recorders
	chunks := len(recorders)
	if chunks > len(draws) {
		chunks = len(draws)
	}
	per := (len(draws) + chunks - 1) / chunks

	var g errgroup.Group
	out := make([]driver.CommandBuffer, 0, chunks)
	for i := 0; i < chunks; i++ {
		lo, hi := i*per, (i+1)*per
		if lo >= len(draws) {
			break
		}
		if hi > len(draws) {
			hi = len(draws)
		}
		rec, part := recorders[i], draws[lo:hi]
		out = append(out, rec.Buffer)
		g.Go(func() error {
			return r.recordSecondary(f, rec, part, scratch)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Renderer) recordSecondary(f *Frame, rec frame.Recorder, items []item, scratch driver.Buffer) error {
	inh := &driver.Inheritance{
		RenderPass:  r.swap.RenderPass(),
		Subpass:     0,
		Framebuffer: f.framebuffer,
	}
	if err := rec.Pool.Begin(rec.Buffer, command.SingleUseFlags(driver.LevelSecondary, inh), inh); err != nil {
		return err
	}

	d := r.dev.Device
	cb := rec.Buffer
	chain := r.swap.Chain()
	d.CmdSetViewport(cb, chain.Viewport)
	d.CmdSetScissor(cb, chain.Scissor)

	var bound *pipeline.Pipeline
	for _, it := range items {
		var err error
		switch c := it.cmd.(type) {
		case DrawMesh:
			err = r.draw(cb, &bound, c.Pipeline, c.Mesh, c.Sets, c.SubMesh, 1, 0, 0)
		case DrawInstancedMesh:
			if len(c.Instances) == 0 {
				continue
			}
			err = r.draw(cb, &bound, c.Pipeline, c.Mesh, c.Sets, c.SubMesh, uint32(len(c.Instances)), scratch, it.offset)
		case Custom:
			if c.Record != nil {
				err = c.Record(d, cb)
			}
			bound = nil
		}
		if err != nil {
			return err
		}
	}
	return rec.Pool.End(cb)
}

func (r *Renderer) draw(
	cb driver.CommandBuffer,
	bound **pipeline.Pipeline,
	p *pipeline.Pipeline,
	m *transfer.Mesh,
	sets []driver.DescriptorSet,
	subMesh string,
	instances uint32,
	instanceBuf driver.Buffer,
	instanceOffset uint64,
) error {
	if p == nil || m == nil {
		return ErrIncompleteDraw
	}
	if p.Instanced != (instanceBuf != 0) {
		return errors.Wrapf(ErrInstanceData, "instanced pipeline %t", p.Instanced)
	}
	if m.Vertices == nil || m.Vertices.Size == 0 {
		return nil
	}

	first, count := uint32(0), m.IndexCount
	if subMesh != "" {
		rng, ok := m.SubMeshes[subMesh]
		if !ok {
			return errors.Wrapf(ErrUnknownSubMesh, "%q", subMesh)
		}
		first, count = rng.First, rng.Count
	}

	d := r.dev.Device
	if *bound != p {
		d.CmdBindPipeline(cb, p.Handle)
		*bound = p
	}
	if len(sets) > 0 {
		d.CmdBindDescriptorSets(cb, p.Layout, 0, sets)
	}
	if instanceBuf != 0 {
		d.CmdBindVertexBuffers(cb, pipeline.VertexBinding,
			[]driver.Buffer{m.Vertices.Handle, instanceBuf},
			[]uint64{0, instanceOffset})
	} else {
		d.CmdBindVertexBuffers(cb, pipeline.VertexBinding, []driver.Buffer{m.Vertices.Handle}, []uint64{0})
	}

	if m.IndexCount > 0 {
		d.CmdBindIndexBuffer(cb, m.Indices.Handle, 0)
		d.CmdDrawIndexed(cb, count, instances, first, 0, 0)
	} else {
		d.CmdDraw(cb, m.VertexCount, instances, 0, 0)
	}
	return nil
}

func (r *Renderer) recordPrimary(f *Frame, items []item, scratch driver.Buffer, secondaries []driver.CommandBuffer) error {
	slot := f.Slot
	cb := slot.Primary
	if err := slot.Pool.Begin(cb, driver.UsageOneTimeSubmit, nil); err != nil {
		return err
	}

	d := r.dev.Device
	uploads := 0
	for _, it := range items {
		c, ok := it.cmd.(RawUpload)
		if !ok || len(c.Data) == 0 {
			continue
		}
		d.CmdCopyBuffer(cb, scratch, c.Dst.Handle, []driver.BufferCopy{{
			SrcOffset: it.offset,
			DstOffset: c.Offset,
			Size:      uint64(len(c.Data)),
		}})
		uploads++
	}
	if uploads > 0 {
		d.CmdMemoryBarrier(cb, driver.MemoryBarrier{
			SrcAccess: driver.AccessTransferWrite,
			DstAccess: driver.AccessIndexRead | driver.AccessVertexAttributeRead | driver.AccessUniformRead | driver.AccessShaderRead,
			SrcStage:  driver.StageTransfer,
			DstStage:  driver.StageVertexInput | driver.StageVertexShader | driver.StageFragmentShader,
		})
	}

	contents := driver.ContentsInline
	if len(secondaries) > 0 {
		contents = driver.ContentsSecondary
	}
	d.CmdBeginRenderPass(cb, driver.RenderPassBeginInfo{
		RenderPass:  r.swap.RenderPass(),
		Framebuffer: f.framebuffer,
		Extent:      f.Extent,
		ClearColor:  r.cfg.ClearColor,
		ClearDepth:  1,
	}, contents)
	if len(secondaries) > 0 {
		d.CmdExecuteCommands(cb, secondaries)
	}
	d.CmdEndRenderPass(cb)

	return slot.Pool.End(cb)
}
