package framevk

import (
	"time"

	"github.com/loov/hrtime"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

// frameOps is the GPU side of one frame, addressed by slot index.
type frameOps interface {
	// ready reports whether a swapchain generation exists to draw into.
	ready() bool
	waitFence(slot int, timeout uint64) vk.Result
	acquire(slot int, timeout uint64) (uint32, vk.Result)
	resetFence(slot int) error
	record(slot int, image uint32) error
	updateUniforms(slot int)
	submit(slot int) error
	present(slot int, image uint32) vk.Result
}

// FrameStats counts what the scheduler did since startup.
type FrameStats struct {
	Frames     uint64
	Dropped    uint64
	Rebuilds   uint64
	Generation uint64
	LastFrame  time.Duration
}

// Scheduler drives all frames in flight from one goroutine. Slot i is reused
// every N frames and its fence wait is the only thing keeping the CPU off
// resources the GPU may still be reading.
type Scheduler struct {
	ops     frameOps
	window  Window
	rebuild func() error
	log     *slog.Logger

	frames  int
	current int
	timeout uint64
	stats   FrameStats
}

func newScheduler(ops frameOps, frames int, window Window, rebuild func() error, log *slog.Logger) *Scheduler {
	return &Scheduler{
		ops:     ops,
		window:  window,
		rebuild: rebuild,
		log:     log,
		frames:  frames,
		timeout: vk.MaxUint64,
	}
}

// SetTimeout bounds the fence wait and the image acquire. Zero restores unbounded waits.
func (s *Scheduler) SetTimeout(d time.Duration) {
	if d <= 0 {
		s.timeout = vk.MaxUint64
		return
	}
	s.timeout = uint64(d.Nanoseconds())
}

// Current is the slot the next DrawFrame uses.
func (s *Scheduler) Current() int {
	return s.current
}

func (s *Scheduler) Stats() FrameStats {
	return s.stats
}

// DrawFrame produces one frame on the current slot. A stale surface drops the
// frame and rebuilds the swapchain; the returned error is then whatever the
// rebuild returned. A timed out wait returns ErrFrameTimeout and leaves the
// slot untouched. When an earlier rebuild left no swapchain the rebuild is
// retried and no frame is drawn.
func (s *Scheduler) DrawFrame() error {
	if !s.ops.ready() {
		return s.doRebuild("no swapchain")
	}
	start := hrtime.Now()
	slot := s.current

	if ret := s.ops.waitFence(slot, s.timeout); ret != vk.Success {
		return s.waitError(ret, "vkWaitForFences")
	}

	image, ret := s.ops.acquire(slot, s.timeout)
	switch ret {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		s.stats.Dropped++
		return s.doRebuild("acquire out of date")
	default:
		return s.waitError(ret, "vkAcquireNextImageKHR")
	}

	if err := s.ops.resetFence(slot); err != nil {
		return err
	}
	if err := s.ops.record(slot, image); err != nil {
		return err
	}
	s.ops.updateUniforms(slot)
	if err := s.ops.submit(slot); err != nil {
		return err
	}

	ret = s.ops.present(slot, image)
	stale := false
	switch ret {
	case vk.Success:
	case vk.ErrorOutOfDate, vk.Suboptimal:
		stale = true
	default:
		return newError(ret, ErrInitialization, "vkQueuePresentKHR")
	}

	s.current = (s.current + 1) % s.frames
	s.stats.Frames++
	s.stats.LastFrame = hrtime.Since(start)

	resized := s.window.ResizePending()
	if stale || resized {
		s.window.ClearResize()
		reason := "present out of date"
		if resized {
			reason = "resize"
		}
		return s.doRebuild(reason)
	}
	return nil
}

func (s *Scheduler) doRebuild(reason string) error {
	s.stats.Rebuilds++
	s.log.Debug("rebuilding swapchain",
		slog.String("reason", reason),
		slog.Uint64("frames", s.stats.Frames),
		slog.Uint64("dropped", s.stats.Dropped),
		slog.Uint64("rebuilds", s.stats.Rebuilds))
	return s.rebuild()
}

func (s *Scheduler) waitError(ret vk.Result, op string) error {
	switch ret {
	case vk.Timeout, vk.NotReady:
		return errors.Wrap(ErrFrameTimeout, op)
	}
	return newError(ret, ErrInitialization, op)
}

// vkFrameOps runs frames on the real device against the current swapchain generation.
type vkFrameOps struct {
	ctx      *Context
	slots    []*FrameSlot
	chain    *SwapchainManager
	recorder *CommandRecorder
	uniforms func(st *SwapchainState) UniformData
}

func (o *vkFrameOps) ready() bool {
	return o.chain.State() != nil
}

func (o *vkFrameOps) waitFence(slot int, timeout uint64) vk.Result {
	fences := []vk.Fence{o.slots[slot].InFlight}
	return vk.WaitForFences(o.ctx.Device, 1, fences, vk.True, timeout)
}

func (o *vkFrameOps) acquire(slot int, timeout uint64) (uint32, vk.Result) {
	var image uint32
	ret := vk.AcquireNextImage(o.ctx.Device, o.chain.State().Handle, timeout,
		o.slots[slot].ImageAvailable, vk.NullFence, &image)
	return image, ret
}

func (o *vkFrameOps) resetFence(slot int) error {
	fences := []vk.Fence{o.slots[slot].InFlight}
	return newError(vk.ResetFences(o.ctx.Device, 1, fences), ErrInitialization, "vkResetFences")
}

func (o *vkFrameOps) record(slot int, image uint32) error {
	s := o.slots[slot]
	if err := newError(vk.ResetCommandBuffer(s.Command, 0), ErrResourceCreation, "vkResetCommandBuffer"); err != nil {
		return err
	}
	return o.recorder.RecordFrame(s, o.chain.State(), image)
}

func (o *vkFrameOps) updateUniforms(slot int) {
	data := o.uniforms(o.chain.State())
	o.slots[slot].writeUniforms(&data)
}

func (o *vkFrameOps) submit(slot int) error {
	s := o.slots[slot]
	infos := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{s.ImageAvailable},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{s.Command},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{s.RenderFinished},
	}}
	ret := vk.QueueSubmit(o.ctx.GraphicsQueue, 1, infos, s.InFlight)
	return newError(ret, ErrResourceCreation, "vkQueueSubmit")
}

func (o *vkFrameOps) present(slot int, image uint32) vk.Result {
	return vk.QueuePresent(o.ctx.PresentQueue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{o.slots[slot].RenderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{o.chain.State().Handle},
		PImageIndices:      []uint32{image},
	})
}
