package framevk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const (
	ValidationLayerName    = "VK_LAYER_KHRONOS_validation"
	DebugReportExtension   = "VK_EXT_debug_report"
	SwapchainExtensionName = "VK_KHR_swapchain"
)

// InstanceExtensions gets a list of instance extensions available on the platform.
func InstanceExtensions() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	if err := newError(ret, ErrInitialization, "vkEnumerateInstanceExtensionProperties"); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	if err := newError(ret, ErrInitialization, "vkEnumerateInstanceExtensionProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// DeviceExtensions gets a list of extensions available on the provided physical device.
func DeviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)
	if err := newError(ret, ErrInitialization, "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)
	if err := newError(ret, ErrInitialization, "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// ValidationLayers gets a list of validation layers available on the platform.
func ValidationLayers() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	if err := newError(ret, ErrInitialization, "vkEnumerateInstanceLayerProperties"); err != nil {
		return nil, err
	}
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	if err := newError(ret, ErrInitialization, "vkEnumerateInstanceLayerProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range list[:count] {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// ExtensionSet resolves required and wanted names against the names the platform reports.
type ExtensionSet struct {
	Required []string
	Wanted   []string
	Actual   []string
}

// Missing lists the required names the platform does not report.
func (e ExtensionSet) Missing() []string {
	var missing []string
	for _, req := range e.Required {
		if !contains(e.Actual, req) {
			missing = append(missing, req)
		}
	}
	return missing
}

// Enabled returns every available required or wanted name once, null-terminated, in declaration order.
func (e ExtensionSet) Enabled() []string {
	var out []string
	for _, list := range [][]string{e.Required, e.Wanted} {
		have, _ := checkExisting(e.Actual, list)
		for _, name := range have {
			if !contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

func contains(list []string, name string) bool {
	name = safeString(name)
	for _, s := range list {
		if safeString(s) == name {
			return true
		}
	}
	return false
}

// selectLayers returns the layers to enable. Requesting validation on a
// platform without the Khronos layer is an initialization failure.
func selectLayers(available []string, validation bool) ([]string, error) {
	if !validation {
		return nil, nil
	}
	if !contains(available, ValidationLayerName) {
		return nil, errors.WithMessage(ErrLayerMissing, ValidationLayerName)
	}
	return []string{safeString(ValidationLayerName)}, nil
}
