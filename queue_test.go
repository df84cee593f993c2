package framevk

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

const (
	graphicsFlags = vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueTransferBit)
	computeFlags  = vk.QueueFlags(vk.QueueComputeBit)
)

func TestFindQueueFamilies(t *testing.T) {
	tests := []struct {
		name     string
		flags    []vk.QueueFlags
		present  []bool
		want     QueueFamilyIndices
		probes   int
		complete bool
	}{{
		name:     "same family",
		flags:    []vk.QueueFlags{graphicsFlags, graphicsFlags},
		present:  []bool{true, true},
		want:     QueueFamilyIndices{Graphics: 0, Present: 0, HasGraphics: true, HasPresent: true},
		probes:   1,
		complete: true,
	}, {
		name:     "separate families",
		flags:    []vk.QueueFlags{computeFlags, graphicsFlags, computeFlags},
		present:  []bool{false, false, true},
		want:     QueueFamilyIndices{Graphics: 1, Present: 2, HasGraphics: true, HasPresent: true},
		probes:   3,
		complete: true,
	}, {
		// Family 1 would serve both, but family 0 already filled present.
		name:     "scan stops early",
		flags:    []vk.QueueFlags{computeFlags, graphicsFlags, graphicsFlags},
		present:  []bool{true, true, true},
		want:     QueueFamilyIndices{Graphics: 1, Present: 0, HasGraphics: true, HasPresent: true},
		probes:   1,
		complete: true,
	}, {
		name:    "no present",
		flags:   []vk.QueueFlags{graphicsFlags, computeFlags},
		present: []bool{false, false},
		want:    QueueFamilyIndices{Graphics: 0, HasGraphics: true},
		probes:  2,
	}, {
		name:    "no graphics",
		flags:   []vk.QueueFlags{computeFlags},
		present: []bool{true},
		want:    QueueFamilyIndices{Present: 0, HasPresent: true},
		probes:  1,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probes := 0
			have := FindQueueFamilies(tt.flags, func(family uint32) bool {
				probes++
				return tt.present[family]
			})
			if have != tt.want {
				t.Errorf("have %+v, want %+v", have, tt.want)
			}
			if probes != tt.probes {
				t.Errorf("have %d present probes, want %d", probes, tt.probes)
			}
			if have.Complete(true) != tt.complete {
				t.Errorf("have complete %v, want %v", have.Complete(true), tt.complete)
			}
		})
	}
}

func TestFindQueueFamiliesHeadless(t *testing.T) {
	have := FindQueueFamilies([]vk.QueueFlags{computeFlags, graphicsFlags}, nil)
	if !have.Complete(false) || have.Graphics != 1 || have.Present != 1 || have.HasPresent {
		t.Errorf("have %+v", have)
	}
	if n := len(have.createInfos()); n != 1 {
		t.Errorf("have %d queue create infos, want 1", n)
	}
}

func TestQueueCreateInfos(t *testing.T) {
	q := QueueFamilyIndices{Graphics: 0, Present: 2, HasGraphics: true, HasPresent: true}
	infos := q.createInfos()
	if len(infos) != 2 || infos[0].QueueFamilyIndex != 0 || infos[1].QueueFamilyIndex != 2 {
		t.Errorf("have %+v", infos)
	}
}
