package framevk

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Buffer is a GPU buffer and the memory bound to it. Both are owned by the
// Allocator that created the buffer; everything else holds plain references.
type Buffer struct {
	Handle vk.Buffer
	Size   vk.DeviceSize
	Usage  vk.BufferUsageFlags

	memory vk.DeviceMemory
	mapped unsafe.Pointer
}

// Mapped returns the persistent host mapping, nil when the buffer was never mapped.
func (b *Buffer) Mapped() unsafe.Pointer {
	return b.mapped
}

// Allocator creates and destroys buffers and images and owns their memory.
// It is not safe for concurrent use.
type Allocator struct {
	device vk.Device
	props  vk.PhysicalDeviceMemoryProperties
	pool   *CommandPool

	liveBuffers int
	liveImages  int
}

// NewAllocator uses pool for the one-shot copies of the staging upload path.
func NewAllocator(device vk.Device, props vk.PhysicalDeviceMemoryProperties, pool *CommandPool) *Allocator {
	return &Allocator{
		device: device,
		props:  props,
		pool:   pool,
	}
}

// Live reports how many buffers and images are still alive.
func (a *Allocator) Live() (buffers, images int) {
	return a.liveBuffers, a.liveImages
}

// FindMemoryType returns the lowest memory type index allowed by typeBits whose
// property flags include all of flags.
func FindMemoryType(props vk.PhysicalDeviceMemoryProperties, typeBits uint32, flags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < props.MemoryTypeCount && i < vk.MaxMemoryTypes; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		memType := props.MemoryTypes[i]
		memType.Deref()
		if memType.PropertyFlags&flags == flags {
			return i, nil
		}
	}
	return 0, errors.WithMessagef(ErrMemoryTypeNotFound, "type bits %#x, flags %#x", typeBits, uint32(flags))
}

func (a *Allocator) allocate(reqs vk.MemoryRequirements, flags vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	memType, err := FindMemoryType(a.props, reqs.MemoryTypeBits, flags)
	if err != nil {
		return vk.DeviceMemory(vk.NullHandle), err
	}
	var memory vk.DeviceMemory
	ret := vk.AllocateMemory(a.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &memory)
	if err := newError(ret, ErrResourceCreation, "vkAllocateMemory"); err != nil {
		return vk.DeviceMemory(vk.NullHandle), err
	}
	return memory, nil
}

// CreateBuffer creates a buffer with memory satisfying flags bound to it.
func (a *Allocator) CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags, flags vk.MemoryPropertyFlags) (*Buffer, error) {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(a.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if err := newError(ret, ErrResourceCreation, "vkCreateBuffer"); err != nil {
		return nil, err
	}

	// Ask device about its memory requirements.
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(a.device, buffer, &reqs)
	reqs.Deref()

	memory, err := a.allocate(reqs, flags)
	if err != nil {
		vk.DestroyBuffer(a.device, buffer, nil)
		return nil, err
	}
	ret = vk.BindBufferMemory(a.device, buffer, memory, 0)
	if err := newError(ret, ErrResourceCreation, "vkBindBufferMemory"); err != nil {
		vk.DestroyBuffer(a.device, buffer, nil)
		vk.FreeMemory(a.device, memory, nil)
		return nil, err
	}
	a.liveBuffers++
	return &Buffer{Handle: buffer, Size: size, Usage: usage, memory: memory}, nil
}

// DestroyBuffer unmaps, destroys and frees b. A nil buffer is ignored.
func (a *Allocator) DestroyBuffer(b *Buffer) {
	if b == nil || b.Handle == vk.Buffer(vk.NullHandle) {
		return
	}
	if b.mapped != nil {
		vk.UnmapMemory(a.device, b.memory)
		b.mapped = nil
	}
	vk.DestroyBuffer(a.device, b.Handle, nil)
	vk.FreeMemory(a.device, b.memory, nil)
	b.Handle = vk.Buffer(vk.NullHandle)
	b.memory = vk.DeviceMemory(vk.NullHandle)
	a.liveBuffers--
}

// Map maps the whole buffer and keeps it mapped until the buffer is destroyed.
// The buffer must live in host visible memory.
func (a *Allocator) Map(b *Buffer) (unsafe.Pointer, error) {
	if b.mapped != nil {
		return b.mapped, nil
	}
	var data unsafe.Pointer
	ret := vk.MapMemory(a.device, b.memory, 0, b.Size, 0, &data)
	if err := newError(ret, ErrResourceCreation, "vkMapMemory"); err != nil {
		return nil, err
	}
	b.mapped = data
	return data, nil
}

// newStaging creates a host visible, coherent buffer holding data. Coherent
// memory needs no explicit flush after the copy.
func (a *Allocator) newStaging(data []byte) (*Buffer, error) {
	staging, err := a.CreateBuffer(vk.DeviceSize(len(data)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	var ptr unsafe.Pointer
	ret := vk.MapMemory(a.device, staging.memory, 0, staging.Size, 0, &ptr)
	if err := newError(ret, ErrResourceCreation, "vkMapMemory"); err != nil {
		a.DestroyBuffer(staging)
		return nil, err
	}
	if n := vk.Memcopy(ptr, data); n != len(data) {
		vk.UnmapMemory(a.device, staging.memory)
		a.DestroyBuffer(staging)
		return nil, errors.WithMessagef(ErrResourceCreation, "staging copy %d of %d bytes", n, len(data))
	}
	vk.UnmapMemory(a.device, staging.memory)
	return staging, nil
}

// UploadBuffer copies data into a new device local buffer through a staging buffer.
// The call blocks until the copy finished on the GPU.
func (a *Allocator) UploadBuffer(data []byte, usage vk.BufferUsageFlags) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errors.WithMessage(ErrResourceCreation, "upload of zero bytes")
	}
	staging, err := a.newStaging(data)
	if err != nil {
		return nil, err
	}
	defer a.DestroyBuffer(staging)

	dst, err := a.CreateBuffer(staging.Size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}

	cmd, err := a.pool.BeginOneShot()
	if err != nil {
		a.DestroyBuffer(dst)
		return nil, err
	}
	vk.CmdCopyBuffer(cmd.Buffer(), staging.Handle, dst.Handle, 1, []vk.BufferCopy{{
		Size: staging.Size,
	}})
	if err := cmd.Submit(); err != nil {
		a.DestroyBuffer(dst)
		return nil, err
	}
	return dst, nil
}

// ReadBuffer copies the contents of b back to host memory through a second
// staging buffer. b needs transfer source usage.
func (a *Allocator) ReadBuffer(b *Buffer) ([]byte, error) {
	staging, err := a.CreateBuffer(b.Size,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer a.DestroyBuffer(staging)

	cmd, err := a.pool.BeginOneShot()
	if err != nil {
		return nil, err
	}
	vk.CmdCopyBuffer(cmd.Buffer(), b.Handle, staging.Handle, 1, []vk.BufferCopy{{
		Size: b.Size,
	}})
	if err := cmd.Submit(); err != nil {
		return nil, err
	}
	return a.readStaging(staging)
}

func (a *Allocator) readStaging(staging *Buffer) ([]byte, error) {
	var ptr unsafe.Pointer
	ret := vk.MapMemory(a.device, staging.memory, 0, staging.Size, 0, &ptr)
	if err := newError(ret, ErrResourceCreation, "vkMapMemory"); err != nil {
		return nil, err
	}
	out := make([]byte, staging.Size)
	copy(out, unsafe.Slice((*byte)(ptr), int(staging.Size)))
	vk.UnmapMemory(a.device, staging.memory)
	return out, nil
}
