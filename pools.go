package framevk

import (
	vk "github.com/vulkan-go/vulkan"
)

// CommandPool allocates command buffers for one queue family and submits
// one-shot work to a queue of that family.
type CommandPool struct {
	device vk.Device
	queue  vk.Queue
	pool   vk.CommandPool
}

func NewCommandPool(device vk.Device, familyIndex uint32, queue vk.Queue) (*CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: familyIndex,
		// ResetCommandBufferBit allows command buffers to be reset individually.
		Flags: vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if err := newError(ret, ErrResourceCreation, "vkCreateCommandPool"); err != nil {
		return nil, err
	}
	return &CommandPool{device: device, queue: queue, pool: pool}, nil
}

// Allocate returns count primary command buffers.
func (c *CommandPool) Allocate(count int) ([]vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(c.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, buffers)
	if err := newError(ret, ErrResourceCreation, "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	return buffers, nil
}

func (c *CommandPool) Free(buffers []vk.CommandBuffer) {
	if len(buffers) > 0 {
		vk.FreeCommandBuffers(c.device, c.pool, uint32(len(buffers)), buffers)
	}
}

func (c *CommandPool) Destroy() {
	if c.pool != vk.CommandPool(vk.NullHandle) {
		vk.DestroyCommandPool(c.device, c.pool, nil)
		c.pool = vk.CommandPool(vk.NullHandle)
	}
}

// OneShot is a transient command buffer. Record into Buffer, then call Submit,
// which always blocks until the queue is idle and always frees the buffer.
// Release frees a OneShot that will not be submitted.
type OneShot struct {
	pool *CommandPool
	cmd  vk.CommandBuffer
}

// BeginOneShot allocates a command buffer and begins recording.
func (c *CommandPool) BeginOneShot() (*OneShot, error) {
	buffers, err := c.Allocate(1)
	if err != nil {
		return nil, err
	}
	o := &OneShot{pool: c, cmd: buffers[0]}
	ret := vk.BeginCommandBuffer(o.cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := newError(ret, ErrResourceCreation, "vkBeginCommandBuffer"); err != nil {
		o.Release()
		return nil, err
	}
	return o, nil
}

func (o *OneShot) Buffer() vk.CommandBuffer {
	return o.cmd
}

// Submit ends recording, submits and waits for the queue to drain.
func (o *OneShot) Submit() error {
	defer o.Release()

	ret := vk.EndCommandBuffer(o.cmd)
	if err := newError(ret, ErrResourceCreation, "vkEndCommandBuffer"); err != nil {
		return err
	}
	ret = vk.QueueSubmit(o.pool.queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{o.cmd},
	}}, vk.NullFence)
	if err := newError(ret, ErrResourceCreation, "vkQueueSubmit"); err != nil {
		return err
	}
	ret = vk.QueueWaitIdle(o.pool.queue)
	return newError(ret, ErrResourceCreation, "vkQueueWaitIdle")
}

// Release frees the command buffer. Calling it more than once is harmless.
func (o *OneShot) Release() {
	if o.cmd != nil {
		o.pool.Free([]vk.CommandBuffer{o.cmd})
		o.cmd = nil
	}
}
