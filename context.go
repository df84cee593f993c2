package framevk

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

// Context carries the device, queues and allocator into every component that
// records or submits GPU work. It holds references only; the Platform owns the
// device and the Renderer owns the pool and allocator.
type Context struct {
	Device        vk.Device
	GPU           vk.PhysicalDevice
	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	Pool          *CommandPool
	Alloc         *Allocator
	Log           *slog.Logger
}

// FrameSlot holds what one frame in flight needs. Nothing in it may be touched
// by the CPU while InFlight is unsignaled.
type FrameSlot struct {
	Index          int
	Command        vk.CommandBuffer
	ImageAvailable vk.Semaphore
	RenderFinished vk.Semaphore
	InFlight       vk.Fence
	Uniform        *Buffer
	Descriptor     vk.DescriptorSet
}

// newFrameSlots creates count slots, each with its own command buffer, sync
// objects and mapped uniform buffer, and points descriptor set i at slot i's
// uniform buffer and the shared texture.
func newFrameSlots(ctx *Context, desc *DescriptorManager, texture vk.ImageView, sampler vk.Sampler) (slots []*FrameSlot, err error) {
	count := desc.Count()
	defer func() {
		if err != nil {
			destroyFrameSlots(ctx, slots)
			slots = nil
		}
	}()

	cmds, err := ctx.Pool.Allocate(count)
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		slot := &FrameSlot{
			Index:          i,
			Command:        cmds[i],
			ImageAvailable: vk.NullSemaphore,
			RenderFinished: vk.NullSemaphore,
			InFlight:       vk.NullFence,
			Descriptor:     desc.Set(i),
		}
		slots = append(slots, slot)

		if slot.ImageAvailable, err = newSemaphore(ctx.Device); err != nil {
			return slots, err
		}
		if slot.RenderFinished, err = newSemaphore(ctx.Device); err != nil {
			return slots, err
		}
		// Signaled so that the first wait on every slot returns at once.
		if slot.InFlight, err = newFence(ctx.Device, true); err != nil {
			return slots, err
		}
		slot.Uniform, err = ctx.Alloc.CreateBuffer(vk.DeviceSize(UniformSize),
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
		if err != nil {
			return slots, err
		}
		if _, err = ctx.Alloc.Map(slot.Uniform); err != nil {
			return slots, err
		}
		desc.Write(i, slot.Uniform, texture, sampler)
	}
	return slots, nil
}

// writeUniforms copies data into the slot's persistently mapped uniform buffer.
func (s *FrameSlot) writeUniforms(data *UniformData) {
	dst := unsafe.Slice((*byte)(s.Uniform.Mapped()), UniformSize)
	copy(dst, bytesOf(data))
}

func destroyFrameSlots(ctx *Context, slots []*FrameSlot) {
	var cmds []vk.CommandBuffer
	for _, slot := range slots {
		if slot.Command != nil {
			cmds = append(cmds, slot.Command)
		}
		if slot.ImageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(ctx.Device, slot.ImageAvailable, nil)
		}
		if slot.RenderFinished != vk.NullSemaphore {
			vk.DestroySemaphore(ctx.Device, slot.RenderFinished, nil)
		}
		if slot.InFlight != vk.NullFence {
			vk.DestroyFence(ctx.Device, slot.InFlight, nil)
		}
		ctx.Alloc.DestroyBuffer(slot.Uniform)
	}
	if len(cmds) > 0 {
		ctx.Pool.Free(cmds)
	}
}

func newSemaphore(device vk.Device) (vk.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := newError(ret, ErrResourceCreation, "vkCreateSemaphore"); err != nil {
		return vk.NullSemaphore, err
	}
	return sem, nil
}

func newFence(device vk.Device, signaled bool) (vk.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(device, &info, nil, &fence)
	if err := newError(ret, ErrResourceCreation, "vkCreateFence"); err != nil {
		return vk.NullFence, err
	}
	return fence, nil
}
