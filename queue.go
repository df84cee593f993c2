package framevk

import vk "github.com/vulkan-go/vulkan"

//QueueFamilyIndices holds the first graphics capable family and the first
//family able to present to the target surface. They may differ.
type QueueFamilyIndices struct {
	Graphics    uint32
	Present     uint32
	HasGraphics bool
	HasPresent  bool
}

// Complete reports whether every needed family was found. Without a surface only graphics is needed.
func (q QueueFamilyIndices) Complete(needsPresent bool) bool {
	return q.HasGraphics && (!needsPresent || q.HasPresent)
}

// FindQueueFamilies scans the families once in order and stops as soon as both
// slots are filled. A nil present func means presentation is not required.
// A better present family listed after a family that already filled both slots is never considered.
func FindQueueFamilies(flags []vk.QueueFlags, present func(family uint32) bool) QueueFamilyIndices {
	var q QueueFamilyIndices
	for i, f := range flags {
		family := uint32(i)
		if !q.HasGraphics && f&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			q.Graphics, q.HasGraphics = family, true
		}
		if present != nil && !q.HasPresent && present(family) {
			q.Present, q.HasPresent = family, true
		}
		if q.Complete(present != nil) {
			break
		}
	}
	if present == nil && q.HasGraphics {
		q.Present = q.Graphics
	}
	return q
}

//Gets device queue create infos with a single queue for every distinct family in use.
func (q QueueFamilyIndices) createInfos() []vk.DeviceQueueCreateInfo {
	infos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: q.Graphics,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	if q.HasPresent && q.Present != q.Graphics {
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: q.Present,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}
	return infos
}

func queueFamilyFlags(gpu vk.PhysicalDevice) []vk.QueueFlags {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)
	flags := make([]vk.QueueFlags, count)
	for i := range props[:count] {
		props[i].Deref()
		flags[i] = props[i].QueueFlags
	}
	return flags
}
