package framevk

import (
	vk "github.com/vulkan-go/vulkan"
)

// Geometry is the combined vertex and index buffer pair drawn every frame.
type Geometry struct {
	Vertices   *Buffer
	Indices    *Buffer
	IndexCount uint32
}

// CommandRecorder re-records a slot's command buffer from scratch for every
// frame, since the target image and the dynamic state change per call.
type CommandRecorder struct {
	RenderPass vk.RenderPass
	Pipeline   *Pipeline
	Geometry   Geometry
	ClearColor [4]float32
}

func (r *CommandRecorder) clearValues() []vk.ClearValue {
	return []vk.ClearValue{
		vk.NewClearValue(r.ClearColor[:]),
		vk.NewClearDepthStencil(1, 0),
	}
}

// RecordFrame records the full draw of one frame into slot.Command, targeting
// swapchain image imageIndex of st. The buffer must have been reset.
func (r *CommandRecorder) RecordFrame(slot *FrameSlot, st *SwapchainState, imageIndex uint32) error {
	cmd := slot.Command
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := newError(ret, ErrResourceCreation, "vkBeginCommandBuffer"); err != nil {
		return err
	}

	image := st.Images[imageIndex]
	colorFormat := st.Format.Format
	if err := enterAttachments(cmd, image, colorFormat, st.Depth); err != nil {
		return err
	}
	r.beginPass(cmd, st.Framebuffers[imageIndex], st.Extent)

	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, r.Pipeline.Handle)
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{r.Geometry.Vertices.Handle}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(cmd, r.Geometry.Indices.Handle, 0, vk.IndexTypeUint32)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, r.Pipeline.Layout,
		0, 1, []vk.DescriptorSet{slot.Descriptor}, 0, nil)

	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(st.Extent.Width),
		Height:   float32(st.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: st.Extent,
	}})

	vk.CmdDrawIndexed(cmd, r.Geometry.IndexCount, 1, 0, 0, 0)
	vk.CmdEndRenderPass(cmd)

	if err := leaveAttachments(cmd, image, colorFormat); err != nil {
		return err
	}
	return newError(vk.EndCommandBuffer(cmd), ErrResourceCreation, "vkEndCommandBuffer")
}

// enterAttachments moves the color target and the depth image into their
// attachment layouts. Previous contents are discarded.
func enterAttachments(cmd vk.CommandBuffer, color vk.Image, colorFormat vk.Format, depth *Image) error {
	if err := TransitionImage(cmd, color, colorFormat,
		vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal); err != nil {
		return err
	}
	return TransitionImage(cmd, depth.Handle, depth.Format,
		vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal)
}

func leaveAttachments(cmd vk.CommandBuffer, color vk.Image, colorFormat vk.Format) error {
	return TransitionImage(cmd, color, colorFormat,
		vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc)
}

func (r *CommandRecorder) beginPass(cmd vk.CommandBuffer, fb vk.Framebuffer, extent vk.Extent2D) {
	clearValues := r.clearValues()
	vk.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  r.RenderPass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)
}
