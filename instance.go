package framevk

import (
	"context"
	"math"
	"time"

	"github.com/loov/hrtime"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

// spinRate is the model rotation in radians per second when the window has no key queries.
const spinRate = math.Pi / 4

// Renderer sequences device negotiation, resource creation and the frame loop.
// Everything it acquires is registered on a release stack and torn down in
// reverse order.
type Renderer struct {
	cfg    Config
	log    *slog.Logger
	window Window

	platform *Platform
	ctx      *Context
	stack    releaseStack

	chain *SwapchainManager
	slots []*FrameSlot
	sched *Scheduler

	camera *Camera
	start  time.Duration
	last   time.Duration
}

// NewRenderer builds the whole rendering stack for window from already loaded
// assets. diag may be nil. On failure everything built so far is released.
func NewRenderer(cfg Config, window Window, assets *Assets, log *slog.Logger, diag DiagnosticsFunc) (r *Renderer, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = discardLogger()
	}
	r = &Renderer{
		cfg:    cfg,
		log:    log,
		window: window,
		camera: NewCamera(),
	}
	defer func() {
		if err != nil {
			r.stack.release()
			r = nil
		}
	}()

	r.platform, err = NewPlatform(PlatformOptions{
		AppName:            cfg.AppName,
		Validation:         cfg.Validation,
		InstanceExtensions: window.RequiredInstanceExtensions(),
		Diagnostics:        diag,
		Log:                log,
	}, window)
	if err != nil {
		return nil, err
	}
	r.stack.push(r.platform.Destroy)

	device := r.platform.Device()
	pool, err := NewCommandPool(device, r.platform.GraphicsQueueFamilyIndex(), r.platform.GraphicsQueue())
	if err != nil {
		return nil, err
	}
	r.stack.push(pool.Destroy)

	alloc := NewAllocator(device, r.platform.MemoryProperties(), pool)
	r.ctx = &Context{
		Device:        device,
		GPU:           r.platform.PhysicalDevice(),
		GraphicsQueue: r.platform.GraphicsQueue(),
		PresentQueue:  r.platform.PresentQueue(),
		Pool:          pool,
		Alloc:         alloc,
		Log:           log,
	}
	r.stack.push(func() {
		if buffers, images := alloc.Live(); buffers != 0 || images != 0 {
			log.Warn("resources alive after teardown", slog.Int("buffers", buffers), slog.Int("images", images))
		}
	})

	support, err := QuerySurfaceSupport(r.ctx.GPU, r.platform.Surface())
	if err != nil {
		return nil, err
	}
	surfaceFormat, err := ChooseSurfaceFormat(support.Formats)
	if err != nil {
		return nil, err
	}
	depthFormat, err := FindDepthFormat(r.ctx.GPU)
	if err != nil {
		return nil, err
	}

	renderPass, err := NewRenderPass(device, surfaceFormat.Format, depthFormat)
	if err != nil {
		return nil, err
	}
	r.stack.push(func() { vk.DestroyRenderPass(device, renderPass, nil) })

	geometry, err := r.uploadGeometry(assets.Meshes)
	if err != nil {
		return nil, err
	}

	texture, err := alloc.UploadImage(assets.Texture)
	if err != nil {
		return nil, err
	}
	r.stack.push(func() { alloc.DestroyImage(texture) })
	sampler, err := alloc.CreateSampler()
	if err != nil {
		return nil, err
	}
	r.stack.push(func() { alloc.DestroySampler(sampler) })

	desc, err := NewDescriptorManager(device, cfg.FramesInFlight)
	if err != nil {
		return nil, err
	}
	r.stack.push(desc.Destroy)

	pipeline, err := r.buildPipeline(renderPass, desc.Layout(), assets)
	if err != nil {
		return nil, err
	}
	r.stack.push(pipeline.Destroy)

	r.slots, err = newFrameSlots(r.ctx, desc, texture.View, sampler)
	if err != nil {
		return nil, err
	}
	r.stack.push(func() { destroyFrameSlots(r.ctx, r.slots) })

	families := []uint32{r.platform.GraphicsQueueFamilyIndex()}
	if r.platform.HasSeparatePresentQueue() {
		families = append(families, r.platform.PresentQueueFamilyIndex())
	}
	r.chain = newSwapchainManager(&vkSwapchain{
		device:        device,
		gpu:           r.ctx.GPU,
		surface:       r.platform.Surface(),
		alloc:         alloc,
		renderPass:    renderPass,
		format:        surfaceFormat,
		depthFormat:   depthFormat,
		preferMailbox: cfg.prefersMailbox(),
		families:      families,
	}, window, log)
	if err := r.chain.Create(); err != nil {
		return nil, err
	}
	r.stack.push(r.chain.Destroy)

	recorder := &CommandRecorder{
		RenderPass: renderPass,
		Pipeline:   pipeline,
		Geometry:   geometry,
		ClearColor: cfg.ClearColor,
	}
	r.sched = newScheduler(&vkFrameOps{
		ctx:      r.ctx,
		slots:    r.slots,
		chain:    r.chain,
		recorder: recorder,
		uniforms: r.uniforms,
	}, cfg.FramesInFlight, window, r.chain.Recreate, log)
	r.sched.SetTimeout(time.Duration(cfg.FenceTimeout))

	r.start = hrtime.Now()
	r.last = r.start
	log.Info("renderer ready",
		slog.String("device", r.platform.Choice().Name),
		slog.Int("frames_in_flight", cfg.FramesInFlight),
		slog.Int("indices", int(geometry.IndexCount)),
		slog.Bool("validation", cfg.Validation))
	return r, nil
}

func (r *Renderer) uploadGeometry(meshes []Mesh) (Geometry, error) {
	vertices, indices, err := CombineMeshes(meshes)
	if err != nil {
		return Geometry{}, err
	}
	alloc := r.ctx.Alloc
	vbuf, err := alloc.UploadBuffer(sliceBytes(vertices), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return Geometry{}, err
	}
	r.stack.push(func() { alloc.DestroyBuffer(vbuf) })
	ibuf, err := alloc.UploadBuffer(sliceBytes(indices), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		return Geometry{}, err
	}
	r.stack.push(func() { alloc.DestroyBuffer(ibuf) })
	return Geometry{Vertices: vbuf, Indices: ibuf, IndexCount: uint32(len(indices))}, nil
}

// buildPipeline creates the shader modules only for the duration of pipeline creation.
func (r *Renderer) buildPipeline(renderPass vk.RenderPass, layout vk.DescriptorSetLayout, assets *Assets) (*Pipeline, error) {
	modules, err := NewShaderModules(r.ctx.Device, assets.Vertex, assets.Fragment)
	if err != nil {
		return nil, err
	}
	defer modules.Destroy()
	return NewPipelineBuilder(modules).Build(r.ctx.Device, renderPass, layout)
}

func (r *Renderer) uniforms(st *SwapchainState) UniformData {
	now := hrtime.Now()
	dt := float32((now - r.last).Seconds())
	r.last = now

	keys, ok := r.window.(KeyState)
	if ok {
		r.camera.Update(keys, dt)
		return r.camera.Uniforms(st.Extent, 0)
	}
	spin := float32(math.Mod((now-r.start).Seconds()*spinRate, 2*math.Pi))
	return r.camera.Uniforms(st.Extent, spin)
}

// DrawFrame draws one frame. It returns ErrWindowClosed when a rebuild was
// waiting for a minimized window that was closed.
func (r *Renderer) DrawFrame() error {
	return r.sched.DrawFrame()
}

// Run draws frames until the window asks to close or ctx is done, then drains the device.
func (r *Renderer) Run(ctx context.Context) error {
	defer r.drain()
	for !r.window.ShouldClose() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		r.window.PollEvents()
		err := r.sched.DrawFrame()
		switch {
		case err == nil:
		case errors.Is(err, ErrWindowClosed):
			return nil
		case errors.Is(err, ErrFrameTimeout):
			r.log.Warn("frame dropped", slog.Any("error", err))
		default:
			return err
		}
	}
	return nil
}

func (r *Renderer) drain() {
	warnIdle(r.log, vk.DeviceWaitIdle(r.ctx.Device), "drain")
	st := r.Stats()
	r.log.Info("render loop finished",
		slog.Uint64("frames", st.Frames),
		slog.Uint64("dropped", st.Dropped),
		slog.Uint64("rebuilds", st.Rebuilds),
		slog.Uint64("generation", st.Generation))
}

// Stats reports the frame counters and the current swapchain generation.
func (r *Renderer) Stats() FrameStats {
	st := r.sched.Stats()
	if cur := r.chain.State(); cur != nil {
		st.Generation = cur.Generation
	}
	return st
}

// Destroy waits for the device to go idle and releases everything in reverse
// order of creation. Later calls do nothing.
func (r *Renderer) Destroy() {
	if r.ctx == nil {
		return
	}
	warnIdle(r.log, vk.DeviceWaitIdle(r.ctx.Device), "destroy")
	r.stack.release()
	r.ctx = nil
}

// warnIdle logs a failed vkDeviceWaitIdle. Teardown goes on regardless.
func warnIdle(log *slog.Logger, ret vk.Result, during string) {
	if err := newError(ret, ErrInitialization, "vkDeviceWaitIdle"); err != nil {
		log.Warn("device did not go idle", slog.String("during", during), slog.Any("error", err))
	}
}
