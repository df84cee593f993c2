// Package window adapts a GLFW window to the renderer's platform layer.
package window

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/framevk"
)

// Window is a GLFW window without a client API. It must be created and used
// on the main thread after glfw.Init.
type Window struct {
	win     *glfw.Window
	resized bool
}

var keyMap = map[framevk.Key]glfw.Key{
	framevk.KeyLeft:    glfw.KeyLeft,
	framevk.KeyRight:   glfw.KeyRight,
	framevk.KeyUp:      glfw.KeyUp,
	framevk.KeyDown:    glfw.KeyDown,
	framevk.KeyZoomIn:  glfw.KeyW,
	framevk.KeyZoomOut: glfw.KeyS,
}

// Init initializes GLFW and points the Vulkan loader at GLFW's instance proc address.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "glfw init")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "vulkan init")
	}
	return nil
}

func Terminate() {
	glfw.Terminate()
}

func New(cfg framevk.WindowConfig) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	resizable := glfw.False
	if cfg.Resizable {
		resizable = glfw.True
	}
	glfw.WindowHint(glfw.Resizable, resizable)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	w := &Window{win: win}
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, _, _ int) {
		w.resized = true
	})
	return w, nil
}

func (w *Window) FramebufferSize() (int, int) {
	return w.win.GetFramebufferSize()
}

func (w *Window) WaitEvents() { glfw.WaitEvents() }

func (w *Window) PollEvents() { glfw.PollEvents() }

func (w *Window) ShouldClose() bool { return w.win.ShouldClose() }

func (w *Window) ResizePending() bool { return w.resized }

func (w *Window) ClearResize() { w.resized = false }

func (w *Window) RequiredInstanceExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.win.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

// Pressed reports whether the key mapped to k is held down.
func (w *Window) Pressed(k framevk.Key) bool {
	key, ok := keyMap[k]
	if !ok {
		return false
	}
	return w.win.GetKey(key) == glfw.Press
}

func (w *Window) Destroy() {
	if w.win != nil {
		w.win.Destroy()
		w.win = nil
	}
}
