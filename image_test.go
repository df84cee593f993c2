package framevk

import (
	"testing"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func formatQuery(optimal map[vk.Format]vk.FormatFeatureFlagBits, queried *[]vk.Format) func(vk.Format) vk.FormatProperties {
	return func(f vk.Format) vk.FormatProperties {
		*queried = append(*queried, f)
		return vk.FormatProperties{OptimalTilingFeatures: vk.FormatFeatureFlags(optimal[f])}
	}
}

func TestFindSupportedFormat(t *testing.T) {
	depth := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	optimal := map[vk.Format]vk.FormatFeatureFlagBits{
		vk.FormatD32Sfloat:       vk.FormatFeatureSampledImageBit,
		vk.FormatD32SfloatS8Uint: vk.FormatFeatureDepthStencilAttachmentBit | vk.FormatFeatureSampledImageBit,
		vk.FormatD24UnormS8Uint:  vk.FormatFeatureDepthStencilAttachmentBit,
	}
	var queried []vk.Format
	have, err := FindSupportedFormat(DepthFormats, vk.ImageTilingOptimal, depth, formatQuery(optimal, &queried))
	if err != nil || have != vk.FormatD32SfloatS8Uint {
		t.Errorf("have %d %v, want D32SfloatS8Uint", have, err)
	}
	if len(queried) != 2 {
		t.Errorf("have %d probes, want the search to stop at the first match", len(queried))
	}

	// Linear tiling looks at the other feature set.
	queried = nil
	_, err = FindSupportedFormat(DepthFormats, vk.ImageTilingLinear, depth, formatQuery(optimal, &queried))
	if !errors.Is(err, ErrFormatUnsupported) || !errors.Is(err, ErrUnsupportedCapability) {
		t.Errorf("have %v, want %v", err, ErrFormatUnsupported)
	}
	if len(queried) != len(DepthFormats) {
		t.Errorf("have %d probes, want %d", len(queried), len(DepthFormats))
	}
}

func TestBarrierFor(t *testing.T) {
	const depthTests = vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
	tests := []struct {
		name     string
		from, to vk.ImageLayout
		want     transition
	}{{
		"upload",
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		transition{vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit, 0, vk.AccessTransferWriteBit},
	}, {
		"shader read",
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
		transition{vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit, vk.AccessTransferWriteBit, vk.AccessShaderReadBit},
	}, {
		"color attachment",
		vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal,
		transition{vk.PipelineStageColorAttachmentOutputBit, vk.PipelineStageColorAttachmentOutputBit, 0, vk.AccessColorAttachmentWriteBit},
	}, {
		"present",
		vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc,
		transition{vk.PipelineStageColorAttachmentOutputBit, vk.PipelineStageBottomOfPipeBit, vk.AccessColorAttachmentWriteBit, 0},
	}, {
		"depth attachment",
		vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal,
		transition{depthTests, depthTests, vk.AccessDepthStencilAttachmentWriteBit,
			vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit},
	}, {
		"readback texture",
		vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutTransferSrcOptimal,
		transition{vk.PipelineStageFragmentShaderBit, vk.PipelineStageTransferBit, vk.AccessShaderReadBit, vk.AccessTransferReadBit},
	}, {
		"readback depth",
		vk.ImageLayoutDepthStencilAttachmentOptimal, vk.ImageLayoutTransferSrcOptimal,
		transition{vk.PipelineStageLateFragmentTestsBit, vk.PipelineStageTransferBit, vk.AccessDepthStencilAttachmentWriteBit, vk.AccessTransferReadBit},
	}, {
		"readback frame",
		vk.ImageLayoutPresentSrc, vk.ImageLayoutTransferSrcOptimal,
		transition{vk.PipelineStageColorAttachmentOutputBit, vk.PipelineStageTransferBit, vk.AccessColorAttachmentWriteBit, vk.AccessTransferReadBit},
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			have, err := barrierFor(tt.from, tt.to)
			if err != nil {
				t.Fatal(err)
			}
			if have != tt.want {
				t.Errorf("have %+v, want %+v", have, tt.want)
			}
			// The consumer must wait on every stage the producer wrote in.
			if tt.want.srcAccess != 0 && have.srcStage == vk.PipelineStageTopOfPipeBit {
				t.Errorf("write access %d scoped to top of pipe", have.srcAccess)
			}
		})
	}
}

func TestBarrierForUnsupported(t *testing.T) {
	_, err := barrierFor(vk.ImageLayoutPresentSrc, vk.ImageLayoutTransferDstOptimal)
	if !errors.Is(err, ErrUnsupportedCapability) {
		t.Errorf("have %v, want %v", err, ErrUnsupportedCapability)
	}
}

func TestAspects(t *testing.T) {
	color := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	depth := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	depthStencil := vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	tests := []struct {
		format        vk.Format
		barrier, view vk.ImageAspectFlags
	}{
		{vk.FormatR8g8b8a8Srgb, color, color},
		{vk.FormatD32Sfloat, depth, depth},
		{vk.FormatD24UnormS8Uint, depthStencil, depth},
	}
	for _, tt := range tests {
		if have := aspectFor(tt.format); have != tt.barrier {
			t.Errorf("format %d: barrier aspect %d, want %d", tt.format, have, tt.barrier)
		}
		if have := viewAspectFor(tt.format); have != tt.view {
			t.Errorf("format %d: view aspect %d, want %d", tt.format, have, tt.view)
		}
	}
}
