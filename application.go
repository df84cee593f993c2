package framevk

import vk "github.com/vulkan-go/vulkan"

// Window is the platform layer consumed by the renderer.
type Window interface {
	// FramebufferSize reports the drawable size in pixels. A minimized window reports 0x0.
	FramebufferSize() (width, height int)
	// WaitEvents blocks until the platform delivers at least one event.
	WaitEvents()
	// PollEvents processes pending events without blocking.
	PollEvents()
	ShouldClose() bool
	// ResizePending is set by the platform when the framebuffer changed size.
	ResizePending() bool
	// ClearResize is called once the swapchain was rebuilt for the pending resize.
	ClearResize()
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

// KeyState is implemented by windows offering raw key queries. It drives the
// camera only.
type KeyState interface {
	Pressed(key Key) bool
}

type Key int

const (
	KeyLeft Key = iota
	KeyRight
	KeyUp
	KeyDown
	KeyZoomIn
	KeyZoomOut
)

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityPerformance
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityPerformance:
		return "performance"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

// DiagnosticsFunc receives every validation message. It must not call back into the renderer.
type DiagnosticsFunc func(severity Severity, category, message string)

// ModelImporter returns the meshes of a model file. Indices of each mesh are 0-based into its own vertices.
type ModelImporter interface {
	Import(path string) ([]Mesh, error)
}

// ImageDecoder returns RGBA8 pixels for an image file.
type ImageDecoder interface {
	Decode(path string) (*TextureData, error)
}

type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageFragment
)

// ShaderCompiler turns a shader source file into SPIR-V for the given stage.
type ShaderCompiler interface {
	Compile(path string, stage ShaderStage) (ShaderCode, error)
}

type TextureData struct {
	Width  int
	Height int
	// Pixels holds Width*Height tightly packed RGBA8 texels.
	Pixels []byte
}

type ShaderCode struct {
	SPIRV []byte
	Entry string
}

var (
	DefaultAppVersion = vk.MakeVersion(1, 0, 0)
	DefaultAPIVersion = vk.MakeVersion(1, 0, 0)
)
