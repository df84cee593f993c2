package framevk

import (
	"bytes"
	"strings"
	"testing"

	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

func TestWarnIdle(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(slog.NewTextHandler(&out, nil))

	warnIdle(log, vk.Success, "drain")
	if out.Len() != 0 {
		t.Fatalf("success logged: %q", out.String())
	}

	warnIdle(log, vk.ErrorDeviceLost, "destroy")
	have := out.String()
	for _, want := range []string{"level=WARN", "during=destroy", "vkDeviceWaitIdle"} {
		if !strings.Contains(have, want) {
			t.Errorf("have %q, missing %q", have, want)
		}
	}
}
