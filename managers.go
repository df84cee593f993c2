package framevk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// releaseStack keeps cleanups of acquired resources and runs them in reverse
// order of acquisition, so dependents always go before what they depend on.
type releaseStack struct {
	fns []func()
}

func (s *releaseStack) push(fn func()) {
	s.fns = append(s.fns, fn)
}

// release runs and forgets every registered cleanup. It is safe to call repeatedly.
func (s *releaseStack) release() {
	for i := len(s.fns) - 1; i >= 0; i-- {
		s.fns[i]()
	}
	s.fns = nil
}

const (
	BindingUniform = 0
	BindingTexture = 1
	BindingSampler = 2
)

// DescriptorManager owns the set layout, a fixed size pool and one descriptor
// set per frame in flight. The pool never grows.
type DescriptorManager struct {
	device vk.Device
	layout vk.DescriptorSetLayout
	pool   vk.DescriptorPool
	sets   []vk.DescriptorSet
}

func descriptorBindings() []vk.DescriptorSetLayoutBinding {
	return []vk.DescriptorSetLayoutBinding{{
		Binding:         BindingUniform,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}, {
		Binding:         BindingTexture,
		DescriptorType:  vk.DescriptorTypeSampledImage,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}, {
		Binding:         BindingSampler,
		DescriptorType:  vk.DescriptorTypeSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}}
}

func descriptorPoolSizes(count int) []vk.DescriptorPoolSize {
	sizes := make([]vk.DescriptorPoolSize, 0, 3)
	for _, b := range descriptorBindings() {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            b.DescriptorType,
			DescriptorCount: b.DescriptorCount * uint32(count),
		})
	}
	return sizes
}

// NewDescriptorManager creates the layout, a pool for exactly count sets and allocates them.
func NewDescriptorManager(device vk.Device, count int) (m *DescriptorManager, err error) {
	if count < 1 {
		return nil, errors.WithMessagef(ErrResourceCreation, "descriptor set count %d", count)
	}
	m = &DescriptorManager{device: device}
	defer func() {
		if err != nil {
			m.Destroy()
			m = nil
		}
	}()

	bindings := descriptorBindings()
	ret := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &m.layout)
	if err := newError(ret, ErrResourceCreation, "vkCreateDescriptorSetLayout"); err != nil {
		return m, err
	}

	sizes := descriptorPoolSizes(count)
	ret = vk.CreateDescriptorPool(device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(count),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &m.pool)
	if err := newError(ret, ErrResourceCreation, "vkCreateDescriptorPool"); err != nil {
		return m, err
	}

	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = m.layout
	}
	m.sets = make([]vk.DescriptorSet, count)
	ret = vk.AllocateDescriptorSets(device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     m.pool,
		DescriptorSetCount: uint32(count),
		PSetLayouts:        layouts,
	}, &m.sets[0])
	if err := newError(ret, ErrResourceCreation, "vkAllocateDescriptorSets"); err != nil {
		return m, err
	}
	return m, nil
}

func (m *DescriptorManager) Layout() vk.DescriptorSetLayout { return m.layout }

func (m *DescriptorManager) Set(i int) vk.DescriptorSet { return m.sets[i] }

func (m *DescriptorManager) Count() int { return len(m.sets) }

// Write points set i at its own uniform buffer and at the shared texture view and sampler.
func (m *DescriptorManager) Write(i int, uniform *Buffer, view vk.ImageView, sampler vk.Sampler) {
	writes := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          m.sets[i],
		DstBinding:      BindingUniform,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: uniform.Handle,
			Range:  uniform.Size,
		}},
	}, {
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          m.sets[i],
		DstBinding:      BindingTexture,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeSampledImage,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}, {
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          m.sets[i],
		DstBinding:      BindingSampler,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler: sampler,
		}},
	}}
	vk.UpdateDescriptorSets(m.device, uint32(len(writes)), writes, 0, nil)
}

// Destroy frees the pool, which releases its sets, and then the layout.
func (m *DescriptorManager) Destroy() {
	if m.pool != vk.DescriptorPool(vk.NullHandle) {
		vk.DestroyDescriptorPool(m.device, m.pool, nil)
		m.pool = vk.DescriptorPool(vk.NullHandle)
	}
	if m.layout != vk.DescriptorSetLayout(vk.NullHandle) {
		vk.DestroyDescriptorSetLayout(m.device, m.layout, nil)
		m.layout = vk.DescriptorSetLayout(vk.NullHandle)
	}
	m.sets = nil
}
