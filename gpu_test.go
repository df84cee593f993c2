package framevk

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

var (
	loaderOnce sync.Once
	loaderErr  error
)

// gpuHarness is a headless device with a command pool and an allocator.
type gpuHarness struct {
	platform *Platform
	pool     *CommandPool
	alloc    *Allocator
}

func newGPU(t *testing.T) *gpuHarness {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping GPU test in short mode")
	}
	loaderOnce.Do(func() {
		if loaderErr = vk.SetDefaultGetInstanceProcAddr(); loaderErr != nil {
			return
		}
		loaderErr = vk.Init()
	})
	if loaderErr != nil {
		t.Skipf("no Vulkan loader: %v", loaderErr)
	}

	p, err := NewHeadlessPlatform(PlatformOptions{AppName: "framevk-test"})
	if err != nil {
		t.Skipf("no usable device: %v", err)
	}
	t.Cleanup(p.Destroy)

	pool, err := NewCommandPool(p.Device(), p.GraphicsQueueFamilyIndex(), p.GraphicsQueue())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Destroy)

	h := &gpuHarness{
		platform: p,
		pool:     pool,
		alloc:    NewAllocator(p.Device(), p.MemoryProperties(), pool),
	}
	t.Cleanup(func() {
		if buffers, images := h.alloc.Live(); buffers != 0 || images != 0 {
			t.Errorf("leaked %d buffers and %d images", buffers, images)
		}
	})
	return h
}

func TestBufferRoundTrip(t *testing.T) {
	gpu := newGPU(t)

	want := make([]byte, 4096)
	for i := range want {
		want[i] = byte(i * 7)
	}
	buf, err := gpu.alloc.UploadBuffer(want, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit|vk.BufferUsageVertexBufferBit))
	if err != nil {
		t.Fatal(err)
	}
	defer gpu.alloc.DestroyBuffer(buf)

	have, err := gpu.alloc.ReadBuffer(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(have, want) {
		t.Fatal("buffer contents differ after round trip")
	}
}

func TestBufferEmptyUpload(t *testing.T) {
	gpu := newGPU(t)
	if _, err := gpu.alloc.UploadBuffer(nil, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)); !errors.Is(err, ErrResourceCreation) {
		t.Fatalf("have %v, want resource creation error", err)
	}
}

func TestTextureRoundTrip(t *testing.T) {
	gpu := newGPU(t)

	tex := &TextureData{Width: 4, Height: 3, Pixels: make([]byte, 4*3*4)}
	for i := range tex.Pixels {
		tex.Pixels[i] = byte(i * 13)
	}
	img, err := gpu.alloc.UploadImage(tex)
	if err != nil {
		t.Fatal(err)
	}
	defer gpu.alloc.DestroyImage(img)

	have, err := gpu.alloc.ReadImage(img, vk.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(have, tex.Pixels) {
		t.Fatal("texels differ after upload and readback")
	}
}

func TestDepthClearReadback(t *testing.T) {
	gpu := newGPU(t)
	format := floatDepth(t, gpu)
	img, err := gpu.alloc.CreateImage(ImageInfo{
		Extent:     vk.Extent2D{Width: 8, Height: 8},
		Format:     format,
		Usage:      vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit),
		Properties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer gpu.alloc.DestroyImage(img)

	cmd, err := gpu.pool.BeginOneShot()
	if err != nil {
		t.Fatal(err)
	}
	if err := TransitionImage(cmd.Buffer(), img.Handle, format, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		cmd.Release()
		t.Fatal(err)
	}
	vk.CmdClearDepthStencilImage(cmd.Buffer(), img.Handle, vk.ImageLayoutTransferDstOptimal,
		&vk.ClearDepthStencilValue{Depth: 0.25}, 1, []vk.ImageSubresourceRange{{
			AspectMask: aspectFor(format),
			LevelCount: 1,
			LayerCount: 1,
		}})
	if err := TransitionImage(cmd.Buffer(), img.Handle, format, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutDepthStencilAttachmentOptimal); err != nil {
		cmd.Release()
		t.Fatal(err)
	}
	if err := cmd.Submit(); err != nil {
		t.Fatal(err)
	}

	data, err := gpu.alloc.ReadImage(img, vk.ImageLayoutDepthStencilAttachmentOptimal)
	if err != nil {
		t.Fatal(err)
	}
	checkDepth(t, data, 8*8, 0.25)
}

func floatDepth(t *testing.T, gpu *gpuHarness) vk.Format {
	t.Helper()
	format, err := FindDepthFormat(gpu.platform.PhysicalDevice())
	if err != nil {
		t.Skip(err)
	}
	if format != vk.FormatD32Sfloat && format != vk.FormatD32SfloatS8Uint {
		t.Skipf("depth format %d is not float", format)
	}
	return format
}

func checkDepth(t *testing.T, data []byte, texels int, want float32) {
	t.Helper()
	if len(data) != texels*4 {
		t.Fatalf("have %d bytes, want %d", len(data), texels*4)
	}
	for i := 0; i < len(data); i += 4 {
		if have := math.Float32frombits(binary.LittleEndian.Uint32(data[i:])); have != want {
			t.Fatalf("texel %d: have depth %v, want %v", i/4, have, want)
		}
	}
}

// TestOffscreenFrame runs the per frame barriers and the render pass clear
// against offscreen targets and checks what they leave in both attachments.
func TestOffscreenFrame(t *testing.T) {
	gpu := newGPU(t)
	device := gpu.platform.Device()
	depthFormat := floatDepth(t, gpu)
	extent := vk.Extent2D{Width: 8, Height: 8}

	color, err := gpu.alloc.CreateImage(ImageInfo{
		Extent:     extent,
		Format:     vk.FormatR8g8b8a8Unorm,
		Usage:      vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit),
		Properties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer gpu.alloc.DestroyImage(color)
	depth, err := gpu.alloc.CreateImage(ImageInfo{
		Extent:     extent,
		Format:     depthFormat,
		Usage:      vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageTransferSrcBit),
		Properties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer gpu.alloc.DestroyImage(depth)

	pass, err := NewRenderPass(device, color.Format, depthFormat)
	if err != nil {
		t.Fatal(err)
	}
	defer vk.DestroyRenderPass(device, pass, nil)
	fb, err := newFramebuffer(device, pass, extent, color.View, depth.View)
	if err != nil {
		t.Fatal(err)
	}
	defer vk.DestroyFramebuffer(device, fb, nil)

	rec := &CommandRecorder{RenderPass: pass, ClearColor: [4]float32{0, 0.2, 0.6, 1}}
	cmd, err := gpu.pool.BeginOneShot()
	if err != nil {
		t.Fatal(err)
	}
	if err := enterAttachments(cmd.Buffer(), color.Handle, color.Format, depth); err != nil {
		cmd.Release()
		t.Fatal(err)
	}
	rec.beginPass(cmd.Buffer(), fb, extent)
	vk.CmdEndRenderPass(cmd.Buffer())
	if err := leaveAttachments(cmd.Buffer(), color.Handle, color.Format); err != nil {
		cmd.Release()
		t.Fatal(err)
	}
	if err := cmd.Submit(); err != nil {
		t.Fatal(err)
	}

	pixels, err := gpu.alloc.ReadImage(color, vk.ImageLayoutPresentSrc)
	if err != nil {
		t.Fatal(err)
	}
	if len(pixels) != 8*8*4 {
		t.Fatalf("have %d bytes, want %d", len(pixels), 8*8*4)
	}
	want := [4]int{0, 51, 153, 255}
	for i := 0; i < len(pixels); i += 4 {
		for c := 0; c < 4; c++ {
			if d := int(pixels[i+c]) - want[c]; d < -1 || d > 1 {
				t.Fatalf("texel %d: have %v, want %v", i/4, pixels[i:i+4], want)
			}
		}
	}

	data, err := gpu.alloc.ReadImage(depth, vk.ImageLayoutDepthStencilAttachmentOptimal)
	if err != nil {
		t.Fatal(err)
	}
	checkDepth(t, data, 8*8, 1)
}
