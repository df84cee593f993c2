package framevk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// SurfaceSupport is what a physical device reports for a surface.
type SurfaceSupport struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func QuerySurfaceSupport(gpu vk.PhysicalDevice, surface vk.Surface) (SurfaceSupport, error) {
	var s SurfaceSupport
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &s.Capabilities)
	if err := newError(ret, ErrInitialization, "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return s, err
	}
	s.Capabilities.Deref()
	s.Capabilities.CurrentExtent.Deref()
	s.Capabilities.MinImageExtent.Deref()
	s.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &formatCount, nil)
	s.Formats = make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &formatCount, s.Formats)
	for i := range s.Formats {
		s.Formats[i].Deref()
	}

	var modeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &modeCount, nil)
	s.PresentModes = make([]vk.PresentMode, modeCount)
	vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &modeCount, s.PresentModes)
	return s, nil
}

// ChooseSurfaceFormat prefers 8-bit BGRA sRGB with the non-linear sRGB color
// space, otherwise the first reported format is used.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, errors.WithMessage(ErrFormatUnsupported, "surface reports no formats")
	}
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f, nil
		}
	}
	return formats[0], nil
}

// ChoosePresentMode picks mailbox when preferred and available, otherwise FIFO which every device supports.
func ChoosePresentMode(modes []vk.PresentMode, preferMailbox bool) vk.PresentMode {
	if preferMailbox {
		for _, m := range modes {
			if m == vk.PresentModeMailbox {
				return m
			}
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent returns the surface's current extent, or the framebuffer size
// clamped into the supported range when the surface leaves the choice to the application.
func ChooseExtent(caps vk.SurfaceCapabilities, fbWidth, fbHeight int) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clamp(toUint32(fbWidth), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(toUint32(fbHeight), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image above the minimum. A zero maximum means unbounded.
func ChooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func chooseCompositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	for _, bit := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if supported&vk.CompositeAlphaFlags(bit) != 0 {
			return bit
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func choosePreTransform(caps vk.SurfaceCapabilities) vk.SurfaceTransformFlagBits {
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		return vk.SurfaceTransformIdentityBit
	}
	return caps.CurrentTransform
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toUint32(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}
