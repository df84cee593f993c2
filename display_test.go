package framevk

import (
	"testing"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	unorm := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	rgba := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	tests := []struct {
		formats []vk.SurfaceFormat
		want    vk.SurfaceFormat
	}{
		{[]vk.SurfaceFormat{unorm, preferred}, preferred},
		{[]vk.SurfaceFormat{rgba, unorm}, rgba},
		{[]vk.SurfaceFormat{unorm}, unorm},
	}
	for _, tt := range tests {
		have, err := ChooseSurfaceFormat(tt.formats)
		if err != nil || have != tt.want {
			t.Errorf("%v: have %v %v, want %v", tt.formats, have, err, tt.want)
		}
	}
	if _, err := ChooseSurfaceFormat(nil); !errors.Is(err, ErrFormatUnsupported) {
		t.Errorf("no formats: have %v, want %v", err, ErrFormatUnsupported)
	}
}

func TestChoosePresentMode(t *testing.T) {
	withMailbox := []vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo, vk.PresentModeMailbox}
	fifoOnly := []vk.PresentMode{vk.PresentModeFifo}

	if have := ChoosePresentMode(withMailbox, true); have != vk.PresentModeMailbox {
		t.Errorf("have %d, want mailbox", have)
	}
	if have := ChoosePresentMode(withMailbox, false); have != vk.PresentModeFifo {
		t.Errorf("mailbox not preferred: have %d, want fifo", have)
	}
	if have := ChoosePresentMode(fifoOnly, true); have != vk.PresentModeFifo {
		t.Errorf("have %d, want fifo", have)
	}
}

func TestChooseExtent(t *testing.T) {
	fixed := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: 1024, Height: 768},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}
	if have := ChooseExtent(fixed, 200, 100); have != fixed.CurrentExtent {
		t.Errorf("have %v, want the current extent %v", have, fixed.CurrentExtent)
	}

	open := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: vk.MaxUint32, Height: vk.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 64, Height: 48},
		MaxImageExtent: vk.Extent2D{Width: 1920, Height: 1080},
	}
	tests := []struct {
		w, h int
		want vk.Extent2D
	}{
		{800, 600, vk.Extent2D{Width: 800, Height: 600}},
		{10, 5000, vk.Extent2D{Width: 64, Height: 1080}},
		{-1, 0, vk.Extent2D{Width: 64, Height: 48}},
		{4000, 20, vk.Extent2D{Width: 1920, Height: 48}},
	}
	for _, tt := range tests {
		have := ChooseExtent(open, tt.w, tt.h)
		if have != tt.want {
			t.Errorf("%dx%d: have %v, want %v", tt.w, tt.h, have, tt.want)
		}
	}

	// Componentwise clamping holds for any framebuffer size.
	for w := -8; w < 2200; w += 97 {
		for h := -8; h < 1300; h += 89 {
			e := ChooseExtent(open, w, h)
			if e.Width < 64 || e.Width > 1920 || e.Height < 48 || e.Height > 1080 {
				t.Fatalf("%dx%d: %v outside the supported range", w, h, e)
			}
		}
	}
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		min, max uint32
		want     uint32
	}{
		{2, 0, 3},
		{2, 8, 3},
		{3, 3, 3},
		{1, 2, 2},
	}
	for _, tt := range tests {
		caps := vk.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
		if have := ChooseImageCount(caps); have != tt.want {
			t.Errorf("min %d max %d: have %d, want %d", tt.min, tt.max, have, tt.want)
		}
	}
}

func TestChooseCompositeAlpha(t *testing.T) {
	supported := vk.CompositeAlphaFlags(vk.CompositeAlphaInheritBit | vk.CompositeAlphaPreMultipliedBit)
	if have := chooseCompositeAlpha(supported); have != vk.CompositeAlphaPreMultipliedBit {
		t.Errorf("have %d, want pre-multiplied", have)
	}
}
