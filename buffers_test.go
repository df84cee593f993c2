package framevk

import (
	"testing"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func memoryProperties(flags ...vk.MemoryPropertyFlagBits) vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = uint32(len(flags))
	for i, f := range flags {
		props.MemoryTypes[i] = vk.MemoryType{PropertyFlags: vk.MemoryPropertyFlags(f)}
	}
	return props
}

func TestFindMemoryType(t *testing.T) {
	props := memoryProperties(
		vk.MemoryPropertyDeviceLocalBit,
		vk.MemoryPropertyHostVisibleBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit|vk.MemoryPropertyHostCachedBit,
	)
	hostCoherent := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

	tests := []struct {
		name     string
		typeBits uint32
		flags    vk.MemoryPropertyFlags
		want     uint32
	}{
		{"device local", 0xf, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), 0},
		{"lowest superset", 0xf, hostCoherent, 2},
		{"masked out", 0x8, hostCoherent, 3},
		{"no flags", 0x6, 0, 1},
	}
	for _, tt := range tests {
		have, err := FindMemoryType(props, tt.typeBits, tt.flags)
		if err != nil || have != tt.want {
			t.Errorf("%s: have %d %v, want %d", tt.name, have, err, tt.want)
		}
	}
}

func TestFindMemoryTypeNotFound(t *testing.T) {
	props := memoryProperties(vk.MemoryPropertyDeviceLocalBit, vk.MemoryPropertyHostVisibleBit)
	_, err := FindMemoryType(props, 0x1,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	if !errors.Is(err, ErrMemoryTypeNotFound) || !errors.Is(err, ErrUnsupportedCapability) {
		t.Errorf("have %v, want %v", err, ErrMemoryTypeNotFound)
	}
	// Types beyond MemoryTypeCount are never considered.
	_, err = FindMemoryType(props, 0x4, 0)
	if !errors.Is(err, ErrMemoryTypeNotFound) {
		t.Errorf("have %v, want %v", err, ErrMemoryTypeNotFound)
	}
}
