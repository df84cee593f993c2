package window

import (
	"context"
	"runtime"
	"testing"

	"github.com/pkg/errors"

	"github.com/andewx/framevk"
	"github.com/andewx/framevk/loader"
)

var (
	_ framevk.Window   = (*Window)(nil)
	_ framevk.KeyState = (*Window)(nil)
)

func init() {
	runtime.LockOSThread()
}

func newTestWindow(t *testing.T) *Window {
	t.Helper()
	if testing.Short() {
		t.Skip("needs a display")
	}
	if err := Init(); err != nil {
		t.Skipf("glfw or vulkan unavailable: %v", err)
	}
	t.Cleanup(Terminate)

	cfg := framevk.DefaultConfig().Window
	cfg.Width, cfg.Height = 320, 240
	w, err := New(cfg)
	if err != nil {
		t.Skipf("cannot create window: %v", err)
	}
	t.Cleanup(w.Destroy)
	return w
}

func TestResizeFlag(t *testing.T) {
	w := newTestWindow(t)
	if w.ResizePending() {
		t.Fatal("fresh window reports a pending resize")
	}
	w.resized = true
	w.ClearResize()
	if w.ResizePending() {
		t.Error("ClearResize left the flag set")
	}
	if w.Pressed(framevk.Key(99)) {
		t.Error("unmapped key reported as pressed")
	}
}

func TestRender(t *testing.T) {
	w := newTestWindow(t)

	assets, err := loader.Load(context.Background(), framevk.AssetConfig{})
	if err != nil {
		t.Fatalf("load default assets: %v", err)
	}

	cfg := framevk.DefaultConfig()
	r, err := framevk.NewRenderer(cfg, w, assets, nil, nil)
	if errors.Is(err, framevk.ErrInitialization) {
		t.Skipf("no usable device: %v", err)
	}
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	defer r.Destroy()

	const frames = 10
	for i := 0; i < frames; i++ {
		w.PollEvents()
		if err := r.DrawFrame(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if have := r.Stats(); have.Frames+have.Dropped < frames || have.Generation == 0 {
		t.Errorf("have stats %+v after %d frames", have, frames)
	}
}
