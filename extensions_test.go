package framevk

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestExtensionSet(t *testing.T) {
	set := ExtensionSet{
		Required: []string{"VK_KHR_surface", "VK_KHR_xcb_surface", "VK_KHR_surface\x00"},
		Wanted:   []string{DebugReportExtension, "VK_EXT_missing"},
		Actual:   []string{"VK_KHR_surface", DebugReportExtension},
	}
	if have, want := set.Missing(), []string{"VK_KHR_xcb_surface"}; !reflect.DeepEqual(have, want) {
		t.Errorf("Missing: have %q, want %q", have, want)
	}
	want := []string{"VK_KHR_surface\x00", safeString(DebugReportExtension)}
	if have := set.Enabled(); !reflect.DeepEqual(have, want) {
		t.Errorf("Enabled: have %q, want %q", have, want)
	}
}

func TestSelectLayers(t *testing.T) {
	layers, err := selectLayers(nil, false)
	if err != nil || len(layers) != 0 {
		t.Errorf("without validation: have %q %v", layers, err)
	}

	layers, err = selectLayers([]string{"VK_LAYER_other", ValidationLayerName}, true)
	if err != nil || !reflect.DeepEqual(layers, []string{safeString(ValidationLayerName)}) {
		t.Errorf("with validation: have %q %v", layers, err)
	}

	_, err = selectLayers([]string{"VK_LAYER_other"}, true)
	if !errors.Is(err, ErrLayerMissing) || !errors.Is(err, ErrInitialization) {
		t.Errorf("missing layer: have %v", err)
	}
}
