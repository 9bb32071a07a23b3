package fake

import (
	"github.com/ChewyGumball/bengine-sub000/driver"
)

// Command is one recorded command.
type Command struct {
	Op string

	Src, Dst    uint64
	Regions     []driver.BufferCopy
	Layout      driver.ImageLayout
	Extent      driver.Extent2D
	Barrier     driver.ImageBarrier
	Memory      driver.MemoryBarrier
	RenderPass  driver.RenderPassBeginInfo
	Contents    driver.SubpassContents
	Secondaries []driver.CommandBuffer
	Pipeline    driver.Pipeline
	Buffers     []driver.Buffer
	Offsets     []uint64
	Sets        []driver.DescriptorSet
	Viewport    driver.Viewport
	Scissor     driver.Rect2D
	// Count and Instances are the element and instance counts of draws.
	Count     uint32
	Instances uint32
}

// Recorded command operations.
const (
	CmdCopyBuffer        = "copy-buffer"
	CmdCopyBufferToImage = "copy-buffer-to-image"
	CmdBarrier           = "barrier"
	CmdMemoryBarrier     = "memory-barrier"
	CmdBeginRenderPass   = "begin-render-pass"
	CmdEndRenderPass     = "end-render-pass"
	CmdExecuteCommands   = "execute-commands"
	CmdBindPipeline      = "bind-pipeline"
	CmdSetViewport       = "set-viewport"
	CmdSetScissor        = "set-scissor"
	CmdBindVertexBuffers = "bind-vertex-buffers"
	CmdBindIndexBuffer   = "bind-index-buffer"
	CmdBindDescriptors   = "bind-descriptor-sets"
	CmdDraw              = "draw"
	CmdDrawIndexed       = "draw-indexed"
)

// Recorded returns the commands recorded into a command buffer.
func (d *Device) Recorded(h driver.CommandBuffer) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.cbs[h]
	if !ok {
		return nil
	}
	return append([]Command(nil), cb.cmds...)
}

func (d *Device) record(h driver.CommandBuffer, c Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.cbs[h]
	if !ok {
		d.violate("%s recorded into unknown command buffer %d", c.Op, h)
		return
	}
	if cb.state != cbRecording {
		d.violate("%s recorded into command buffer %d which is not recording", c.Op, h)
	}
	cb.cmds = append(cb.cmds, c)
}

// CmdCopyBuffer implements driver.Recorder.
func (d *Device) CmdCopyBuffer(cb driver.CommandBuffer, src, dst driver.Buffer, regions []driver.BufferCopy) {
	d.record(cb, Command{
		Op:      CmdCopyBuffer,
		Src:     uint64(src),
		Dst:     uint64(dst),
		Regions: append([]driver.BufferCopy(nil), regions...),
	})
}

// CmdCopyBufferToImage implements driver.Recorder.
func (d *Device) CmdCopyBufferToImage(
	cb driver.CommandBuffer,
	src driver.Buffer,
	dst driver.Image,
	layout driver.ImageLayout,
	extent driver.Extent2D,
) {
	d.record(cb, Command{
		Op:     CmdCopyBufferToImage,
		Src:    uint64(src),
		Dst:    uint64(dst),
		Layout: layout,
		Extent: extent,
	})
}

// CmdImageBarrier implements driver.Recorder.
func (d *Device) CmdImageBarrier(cb driver.CommandBuffer, barrier driver.ImageBarrier) {
	d.record(cb, Command{Op: CmdBarrier, Dst: uint64(barrier.Image), Barrier: barrier})
}

// CmdMemoryBarrier implements driver.Recorder.
func (d *Device) CmdMemoryBarrier(cb driver.CommandBuffer, barrier driver.MemoryBarrier) {
	d.record(cb, Command{Op: CmdMemoryBarrier, Memory: barrier})
}

// CmdBeginRenderPass implements driver.Recorder.
func (d *Device) CmdBeginRenderPass(cb driver.CommandBuffer, info driver.RenderPassBeginInfo, contents driver.SubpassContents) {
	d.record(cb, Command{
		Op:         CmdBeginRenderPass,
		Dst:        uint64(info.Framebuffer),
		RenderPass: info,
		Contents:   contents,
	})
}

// CmdEndRenderPass implements driver.Recorder.
func (d *Device) CmdEndRenderPass(cb driver.CommandBuffer) {
	d.record(cb, Command{Op: CmdEndRenderPass})
}

// CmdExecuteCommands implements driver.Recorder.
func (d *Device) CmdExecuteCommands(cb driver.CommandBuffer, secondaries []driver.CommandBuffer) {
	d.mu.Lock()
	for _, s := range secondaries {
		sec, ok := d.cbs[s]
		switch {
		case !ok:
			d.violate("unknown secondary command buffer %d executed", s)
		case sec.level != driver.LevelSecondary:
			d.violate("primary command buffer %d executed as secondary", s)
		case sec.state != cbExecutable && sec.state != cbPending:
			d.violate("secondary command buffer %d executed while not executable", s)
		}
	}
	d.mu.Unlock()
	d.record(cb, Command{Op: CmdExecuteCommands, Secondaries: append([]driver.CommandBuffer(nil), secondaries...)})
}

// CmdBindPipeline implements driver.Recorder.
func (d *Device) CmdBindPipeline(cb driver.CommandBuffer, p driver.Pipeline) {
	d.record(cb, Command{Op: CmdBindPipeline, Pipeline: p})
}

// CmdSetViewport implements driver.Recorder.
func (d *Device) CmdSetViewport(cb driver.CommandBuffer, viewport driver.Viewport) {
	d.record(cb, Command{Op: CmdSetViewport, Viewport: viewport})
}

// CmdSetScissor implements driver.Recorder.
func (d *Device) CmdSetScissor(cb driver.CommandBuffer, scissor driver.Rect2D) {
	d.record(cb, Command{Op: CmdSetScissor, Scissor: scissor})
}

// CmdBindVertexBuffers implements driver.Recorder.
func (d *Device) CmdBindVertexBuffers(cb driver.CommandBuffer, first uint32, buffers []driver.Buffer, offsets []uint64) {
	d.record(cb, Command{
		Op:      CmdBindVertexBuffers,
		Count:   first,
		Buffers: append([]driver.Buffer(nil), buffers...),
		Offsets: append([]uint64(nil), offsets...),
	})
}

// CmdBindIndexBuffer implements driver.Recorder.
func (d *Device) CmdBindIndexBuffer(cb driver.CommandBuffer, buf driver.Buffer, offset uint64) {
	d.record(cb, Command{Op: CmdBindIndexBuffer, Buffers: []driver.Buffer{buf}, Offsets: []uint64{offset}})
}

// CmdBindDescriptorSets implements driver.Recorder.
func (d *Device) CmdBindDescriptorSets(cb driver.CommandBuffer, _ driver.PipelineLayout, first uint32, sets []driver.DescriptorSet) {
	d.record(cb, Command{Op: CmdBindDescriptors, Count: first, Sets: append([]driver.DescriptorSet(nil), sets...)})
}

// CmdDraw implements driver.Recorder.
func (d *Device) CmdDraw(cb driver.CommandBuffer, vertexCount, instanceCount, _, _ uint32) {
	d.record(cb, Command{Op: CmdDraw, Count: vertexCount, Instances: instanceCount})
}

// CmdDrawIndexed implements driver.Recorder.
func (d *Device) CmdDrawIndexed(cb driver.CommandBuffer, indexCount, instanceCount, _ uint32, _ int32, _ uint32) {
	d.record(cb, Command{Op: CmdDrawIndexed, Count: indexCount, Instances: instanceCount})
}

// execute runs the transfer commands of a command buffer against device
// memory. Everything else only changes image layouts.
func (d *Device) execute(h driver.CommandBuffer) {
	cb, ok := d.cbs[h]
	if !ok {
		return
	}
	for _, c := range cb.cmds {
		switch c.Op {
		case CmdCopyBuffer:
			src, dst := d.buffers[driver.Buffer(c.Src)], d.buffers[driver.Buffer(c.Dst)]
			if src == nil || dst == nil {
				d.violate("copy between destroyed buffers %d and %d", c.Src, c.Dst)
				continue
			}
			if src.info.Usage&driver.BufferTransferSrc == 0 {
				d.violate("copy from buffer %d without transfer source usage", c.Src)
			}
			if dst.info.Usage&driver.BufferTransferDst == 0 {
				d.violate("copy into buffer %d without transfer destination usage", c.Dst)
			}
			if src.transferWritten {
				d.violate("copy reads buffer %d before a barrier covers the transfer that wrote it", c.Src)
			}
			dst.transferWritten = true
			for _, r := range c.Regions {
				if r.SrcOffset+r.Size > uint64(len(src.data)) || r.DstOffset+r.Size > uint64(len(dst.data)) {
					d.violate("copy region %+v out of range", r)
					continue
				}
				copy(dst.data[r.DstOffset:r.DstOffset+r.Size], src.data[r.SrcOffset:r.SrcOffset+r.Size])
			}
		case CmdCopyBufferToImage:
			src, dst := d.buffers[driver.Buffer(c.Src)], d.images[driver.Image(c.Dst)]
			if src == nil || dst == nil {
				d.violate("copy from buffer %d to image %d after destruction", c.Src, c.Dst)
				continue
			}
			if src.info.Usage&driver.BufferTransferSrc == 0 {
				d.violate("copy from buffer %d without transfer source usage", c.Src)
			}
			if dst.layout != driver.LayoutTransferDst || c.Layout != driver.LayoutTransferDst {
				d.violate("copy to image %d in layout %s", c.Dst, dst.layout)
			}
			copy(dst.data, src.data)
		case CmdBarrier:
			img := d.images[c.Barrier.Image]
			if img == nil {
				d.violate("barrier on destroyed image %d", c.Barrier.Image)
				continue
			}
			if c.Barrier.OldLayout != driver.LayoutUndefined && c.Barrier.OldLayout != img.layout {
				d.violate("barrier on image %d expects layout %s but it is %s",
					c.Barrier.Image, c.Barrier.OldLayout, img.layout)
			}
			img.layout = c.Barrier.NewLayout
		case CmdMemoryBarrier:
			if c.Memory.SrcAccess&driver.AccessTransferWrite != 0 {
				for _, b := range d.buffers {
					b.transferWritten = false
				}
			}
		case CmdExecuteCommands:
			for _, s := range c.Secondaries {
				d.execute(s)
			}
		}
	}
}

// referencedLocked reports whether a pending submission records a command
// touching the buffer or image handle h.
func (d *Device) referencedLocked(h uint64) bool {
	for _, sub := range d.queue {
		for _, b := range sub.batches {
			for _, cb := range b.CommandBuffers {
				if d.references(cb, h) {
					return true
				}
			}
		}
	}
	return false
}

func (d *Device) references(h driver.CommandBuffer, target uint64) bool {
	cb, ok := d.cbs[h]
	if !ok {
		return false
	}
	for _, c := range cb.cmds {
		if c.Src == target || c.Dst == target {
			return true
		}
		for _, b := range c.Buffers {
			if uint64(b) == target {
				return true
			}
		}
		for _, s := range c.Secondaries {
			if d.references(s, target) {
				return true
			}
		}
	}
	return false
}
