package framevk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

// ErrWindowClosed is returned by a rebuild that was waiting for a minimized window which then closed.
var ErrWindowClosed = errors.New("window closed")

// SwapchainState is one generation of the swapchain and everything sized after
// it. It is created and destroyed as a unit, never patched in place.
type SwapchainState struct {
	Handle       vk.Swapchain
	Images       []vk.Image
	Views        []vk.ImageView
	Framebuffers []vk.Framebuffer
	Depth        *Image
	Format       vk.SurfaceFormat
	PresentMode  vk.PresentMode
	Extent       vk.Extent2D
	Generation   uint64
}

// swapchainBackend performs the GPU side of the rebuild protocol.
type swapchainBackend interface {
	waitIdle() error
	create(width, height int) (*SwapchainState, error)
	destroy(st *SwapchainState)
}

// SwapchainManager owns the current SwapchainState and rebuilds it on resize or staleness.
type SwapchainManager struct {
	backend    swapchainBackend
	window     Window
	log        *slog.Logger
	state      *SwapchainState
	generation uint64
}

func newSwapchainManager(backend swapchainBackend, window Window, log *slog.Logger) *SwapchainManager {
	return &SwapchainManager{backend: backend, window: window, log: log}
}

// State returns the current generation, nil before Create or after Destroy.
func (m *SwapchainManager) State() *SwapchainState {
	return m.state
}

// Create builds the first generation.
func (m *SwapchainManager) Create() error {
	if m.state != nil {
		return errors.WithMessage(ErrResourceCreation, "swapchain already created")
	}
	return m.build()
}

// Recreate drains the GPU, destroys the current generation and builds the
// next one. While the window is minimized it blocks on platform events.
func (m *SwapchainManager) Recreate() error {
	if err := m.backend.waitIdle(); err != nil {
		return err
	}
	m.Destroy()
	return m.build()
}

func (m *SwapchainManager) build() error {
	width, height := m.window.FramebufferSize()
	for width == 0 || height == 0 {
		if m.window.ShouldClose() {
			return ErrWindowClosed
		}
		m.window.WaitEvents()
		width, height = m.window.FramebufferSize()
	}
	st, err := m.backend.create(width, height)
	if err != nil {
		return err
	}
	m.generation++
	st.Generation = m.generation
	m.state = st
	m.log.Debug("swapchain built",
		slog.Uint64("generation", st.Generation),
		slog.Int("images", len(st.Images)),
		slog.Int("width", int(st.Extent.Width)),
		slog.Int("height", int(st.Extent.Height)))
	return nil
}

// Destroy releases the current generation. The GPU must be idle.
func (m *SwapchainManager) Destroy() {
	if m.state != nil {
		m.backend.destroy(m.state)
		m.state = nil
	}
}

// vkSwapchain builds swapchain generations on a real device. Formats are fixed
// at startup because the render pass was created for them.
type vkSwapchain struct {
	device        vk.Device
	gpu           vk.PhysicalDevice
	surface       vk.Surface
	alloc         *Allocator
	renderPass    vk.RenderPass
	format        vk.SurfaceFormat
	depthFormat   vk.Format
	preferMailbox bool
	families      []uint32
}

func (b *vkSwapchain) waitIdle() error {
	return newError(vk.DeviceWaitIdle(b.device), ErrInitialization, "vkDeviceWaitIdle")
}

func (b *vkSwapchain) create(width, height int) (st *SwapchainState, err error) {
	support, err := QuerySurfaceSupport(b.gpu, b.surface)
	if err != nil {
		return nil, err
	}
	caps := support.Capabilities

	st = &SwapchainState{
		Format:      b.format,
		PresentMode: ChoosePresentMode(support.PresentModes, b.preferMailbox),
		Extent:      ChooseExtent(caps, width, height),
	}
	defer func() {
		if err != nil {
			b.destroy(st)
			st = nil
		}
	}()

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          b.surface,
		MinImageCount:    ChooseImageCount(caps),
		ImageFormat:      b.format.Format,
		ImageColorSpace:  b.format.ColorSpace,
		ImageExtent:      st.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     choosePreTransform(caps),
		CompositeAlpha:   chooseCompositeAlpha(caps.SupportedCompositeAlpha),
		PresentMode:      st.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if len(b.families) > 1 {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = uint32(len(b.families))
		info.PQueueFamilyIndices = b.families
	}
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(b.device, &info, nil, &swapchain)
	if err := newError(ret, ErrResourceCreation, "vkCreateSwapchainKHR"); err != nil {
		return st, err
	}
	st.Handle = swapchain

	var count uint32
	ret = vk.GetSwapchainImages(b.device, swapchain, &count, nil)
	if err := newError(ret, ErrResourceCreation, "vkGetSwapchainImagesKHR"); err != nil {
		return st, err
	}
	st.Images = make([]vk.Image, count)
	ret = vk.GetSwapchainImages(b.device, swapchain, &count, st.Images)
	if err := newError(ret, ErrResourceCreation, "vkGetSwapchainImagesKHR"); err != nil {
		return st, err
	}

	for _, image := range st.Images {
		view, err := createImageView(b.device, image, b.format.Format)
		if err != nil {
			return st, err
		}
		st.Views = append(st.Views, view)
	}

	st.Depth, err = b.alloc.CreateImage(ImageInfo{
		Extent:     st.Extent,
		Format:     b.depthFormat,
		Usage:      vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		Properties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	})
	if err != nil {
		return st, err
	}

	for _, view := range st.Views {
		fb, err := newFramebuffer(b.device, b.renderPass, st.Extent, view, st.Depth.View)
		if err != nil {
			return st, err
		}
		st.Framebuffers = append(st.Framebuffers, fb)
	}
	return st, nil
}

func newFramebuffer(device vk.Device, pass vk.RenderPass, extent vk.Extent2D, attachments ...vk.ImageView) (vk.Framebuffer, error) {
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}, nil, &fb)
	if err := newError(ret, ErrResourceCreation, "vkCreateFramebuffer"); err != nil {
		return vk.Framebuffer(vk.NullHandle), err
	}
	return fb, nil
}

// destroy releases framebuffers, views, the depth image and finally the swapchain.
// It accepts partially built states.
func (b *vkSwapchain) destroy(st *SwapchainState) {
	for _, fb := range st.Framebuffers {
		vk.DestroyFramebuffer(b.device, fb, nil)
	}
	st.Framebuffers = nil
	for _, view := range st.Views {
		vk.DestroyImageView(b.device, view, nil)
	}
	st.Views = nil
	b.alloc.DestroyImage(st.Depth)
	st.Depth = nil
	if st.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(b.device, st.Handle, nil)
		st.Handle = vk.NullSwapchain
	}
	st.Images = nil
}
