package vulkan

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

// CmdCopyBuffer implements driver.Recorder.
func (d *Device) CmdCopyBuffer(cb driver.CommandBuffer, src, dst driver.Buffer, regions []driver.BufferCopy) {
	if len(regions) == 0 {
		return
	}
	native := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		native[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(
		d.commandBuffer(cb),
		d.buffers.get(uint64(src)).buf,
		d.buffers.get(uint64(dst)).buf,
		uint32(len(native)),
		native,
	)
}

// CmdCopyBufferToImage implements driver.Recorder.
func (d *Device) CmdCopyBufferToImage(cb driver.CommandBuffer, src driver.Buffer, dst driver.Image, layout driver.ImageLayout, extent driver.Extent2D) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
	}

	vk.CmdCopyBufferToImage(
		d.commandBuffer(cb),
		d.buffers.get(uint64(src)).buf,
		d.images.get(uint64(dst)).img,
		toLayout(layout),
		1,
		[]vk.BufferImageCopy{region},
	)
}

// CmdImageBarrier implements driver.Recorder.
func (d *Device) CmdImageBarrier(cb driver.CommandBuffer, b driver.ImageBarrier) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           toLayout(b.OldLayout),
		NewLayout:           toLayout(b.NewLayout),
		SrcQueueFamilyIndex: b.SrcQueueFamily,
		DstQueueFamilyIndex: b.DstQueueFamily,
		Image:               d.images.get(uint64(b.Image)).img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     toAspect(b.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: toAccess(b.SrcAccess),
		DstAccessMask: toAccess(b.DstAccess),
	}

	vk.CmdPipelineBarrier(
		d.commandBuffer(cb),
		toStages(b.SrcStage), toStages(b.DstStage),
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier},
	)
}

// CmdMemoryBarrier implements driver.Recorder.
func (d *Device) CmdMemoryBarrier(cb driver.CommandBuffer, b driver.MemoryBarrier) {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: toAccess(b.SrcAccess),
		DstAccessMask: toAccess(b.DstAccess),
	}

	vk.CmdPipelineBarrier(
		d.commandBuffer(cb),
		toStages(b.SrcStage), toStages(b.DstStage),
		0,
		1, []vk.MemoryBarrier{barrier},
		0, nil,
		0, nil,
	)
}

// CmdBeginRenderPass implements driver.Recorder. The clear values cover a
// color and a depth attachment.
func (d *Device) CmdBeginRenderPass(cb driver.CommandBuffer, info driver.RenderPassBeginInfo, contents driver.SubpassContents) {
	var clearValues [2]vk.ClearValue
	clearValues[0].SetColor(info.ClearColor[:])
	clearValues[1].SetDepthStencil(info.ClearDepth, 0)

	renderPassInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  d.renderPass.get(uint64(info.RenderPass)),
		Framebuffer: d.framebuffer.get(uint64(info.Framebuffer)),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues[:],
	}

	subpass := vk.SubpassContentsInline
	if contents == driver.ContentsSecondary {
		subpass = vk.SubpassContentsSecondaryCommandBuffers
	}
	vk.CmdBeginRenderPass(d.commandBuffer(cb), &renderPassInfo, subpass)
}

// CmdEndRenderPass implements driver.Recorder.
func (d *Device) CmdEndRenderPass(cb driver.CommandBuffer) {
	vk.CmdEndRenderPass(d.commandBuffer(cb))
}

// CmdExecuteCommands implements driver.Recorder.
func (d *Device) CmdExecuteCommands(cb driver.CommandBuffer, secondaries []driver.CommandBuffer) {
	if len(secondaries) == 0 {
		return
	}
	native := make([]vk.CommandBuffer, len(secondaries))
	for i, s := range secondaries {
		native[i] = d.commandBuffer(s)
	}
	vk.CmdExecuteCommands(d.commandBuffer(cb), uint32(len(native)), native)
}

// CmdBindPipeline implements driver.Recorder.
func (d *Device) CmdBindPipeline(cb driver.CommandBuffer, p driver.Pipeline) {
	vk.CmdBindPipeline(d.commandBuffer(cb), vk.PipelineBindPointGraphics, d.pipelines.get(uint64(p)))
}

// CmdSetViewport implements driver.Recorder.
func (d *Device) CmdSetViewport(cb driver.CommandBuffer, v driver.Viewport) {
	viewport := vk.Viewport{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}
	vk.CmdSetViewport(d.commandBuffer(cb), 0, 1, []vk.Viewport{viewport})
}

// CmdSetScissor implements driver.Recorder.
func (d *Device) CmdSetScissor(cb driver.CommandBuffer, r driver.Rect2D) {
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Extent.Width, Height: r.Extent.Height},
	}
	vk.CmdSetScissor(d.commandBuffer(cb), 0, 1, []vk.Rect2D{scissor})
}

// CmdBindVertexBuffers implements driver.Recorder.
func (d *Device) CmdBindVertexBuffers(cb driver.CommandBuffer, first uint32, buffers []driver.Buffer, offsets []uint64) {
	native := make([]vk.Buffer, len(buffers))
	nativeOffsets := make([]vk.DeviceSize, len(buffers))
	for i, b := range buffers {
		native[i] = d.buffers.get(uint64(b)).buf
		if i < len(offsets) {
			nativeOffsets[i] = vk.DeviceSize(offsets[i])
		}
	}
	vk.CmdBindVertexBuffers(d.commandBuffer(cb), first, uint32(len(native)), native, nativeOffsets)
}

// CmdBindIndexBuffer implements driver.Recorder.
func (d *Device) CmdBindIndexBuffer(cb driver.CommandBuffer, buf driver.Buffer, offset uint64) {
	vk.CmdBindIndexBuffer(d.commandBuffer(cb), d.buffers.get(uint64(buf)).buf, vk.DeviceSize(offset), vk.IndexTypeUint32)
}

// CmdBindDescriptorSets implements driver.Recorder.
func (d *Device) CmdBindDescriptorSets(cb driver.CommandBuffer, layout driver.PipelineLayout, first uint32, sets []driver.DescriptorSet) {
	if len(sets) == 0 {
		return
	}
	native := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		native[i] = d.sets.get(uint64(s))
	}
	vk.CmdBindDescriptorSets(
		d.commandBuffer(cb),
		vk.PipelineBindPointGraphics,
		d.layouts.get(uint64(layout)),
		first,
		uint32(len(native)),
		native,
		0,
		nil,
	)
}

// CmdDraw implements driver.Recorder.
func (d *Device) CmdDraw(cb driver.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(d.commandBuffer(cb), vertexCount, instanceCount, firstVertex, firstInstance)
}

// CmdDrawIndexed implements driver.Recorder.
func (d *Device) CmdDrawIndexed(cb driver.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(d.commandBuffer(cb), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
