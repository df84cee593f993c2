package framevk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Image is a 2D GPU image with its memory and a default view. Owned by the Allocator.
type Image struct {
	Handle vk.Image
	View   vk.ImageView
	Format vk.Format
	Extent vk.Extent2D
	Usage  vk.ImageUsageFlags

	memory vk.DeviceMemory
}

// ImageInfo describes an image to create.
type ImageInfo struct {
	Extent     vk.Extent2D
	Format     vk.Format
	Usage      vk.ImageUsageFlags
	Properties vk.MemoryPropertyFlags
}

//Depth candidates in order of preference
var DepthFormats = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// FindSupportedFormat returns the first candidate whose features for the given tiling include all of features.
func FindSupportedFormat(candidates []vk.Format, tiling vk.ImageTiling, features vk.FormatFeatureFlags,
	query func(vk.Format) vk.FormatProperties) (vk.Format, error) {

	for _, format := range candidates {
		props := query(format)
		have := props.OptimalTilingFeatures
		if tiling == vk.ImageTilingLinear {
			have = props.LinearTilingFeatures
		}
		if have&features == features {
			return format, nil
		}
	}
	return vk.FormatUndefined, errors.WithMessagef(ErrFormatUnsupported, "none of %d candidates", len(candidates))
}

// FindDepthFormat probes DepthFormats for optimal tiling depth attachment support.
func FindDepthFormat(gpu vk.PhysicalDevice) (vk.Format, error) {
	return FindSupportedFormat(DepthFormats, vk.ImageTilingOptimal,
		vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit),
		func(format vk.Format) vk.FormatProperties {
			var props vk.FormatProperties
			vk.GetPhysicalDeviceFormatProperties(gpu, format, &props)
			props.Deref()
			return props
		})
}

func isDepthFormat(format vk.Format) bool {
	switch format {
	case vk.FormatD16Unorm, vk.FormatD32Sfloat,
		vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint:
		return true
	}
	return false
}

func hasStencil(format vk.Format) bool {
	switch format {
	case vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// aspectFor returns the aspects a barrier on an image of format must cover.
func aspectFor(format vk.Format) vk.ImageAspectFlags {
	if !isDepthFormat(format) {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	if hasStencil(format) {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
}

// viewAspectFor is aspectFor without stencil, views and copies address depth only.
func viewAspectFor(format vk.Format) vk.ImageAspectFlags {
	if isDepthFormat(format) {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func texelSize(format vk.Format) (int, error) {
	switch format {
	case vk.FormatR8g8b8a8Unorm, vk.FormatR8g8b8a8Srgb, vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb,
		vk.FormatD32Sfloat, vk.FormatD32SfloatS8Uint, vk.FormatD24UnormS8Uint:
		return 4, nil
	}
	return 0, errors.WithMessagef(ErrFormatUnsupported, "no readback for format %d", format)
}

// CreateImage creates a single mip, single layer, optimally tiled 2D image and a view of it.
func (a *Allocator) CreateImage(info ImageInfo) (*Image, error) {
	var image vk.Image
	ret := vk.CreateImage(a.device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        info.Format,
		Extent:        vk.Extent3D{Width: info.Extent.Width, Height: info.Extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         info.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	if err := newError(ret, ErrResourceCreation, "vkCreateImage"); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(a.device, image, &reqs)
	reqs.Deref()

	memory, err := a.allocate(reqs, info.Properties)
	if err != nil {
		vk.DestroyImage(a.device, image, nil)
		return nil, err
	}
	ret = vk.BindImageMemory(a.device, image, memory, 0)
	if err := newError(ret, ErrResourceCreation, "vkBindImageMemory"); err != nil {
		vk.DestroyImage(a.device, image, nil)
		vk.FreeMemory(a.device, memory, nil)
		return nil, err
	}

	view, err := createImageView(a.device, image, info.Format)
	if err != nil {
		vk.DestroyImage(a.device, image, nil)
		vk.FreeMemory(a.device, memory, nil)
		return nil, err
	}
	a.liveImages++
	return &Image{
		Handle: image,
		View:   view,
		Format: info.Format,
		Extent: info.Extent,
		Usage:  info.Usage,
		memory: memory,
	}, nil
}

// DestroyImage destroys the view, then the image, then frees its memory. A nil image is ignored.
func (a *Allocator) DestroyImage(img *Image) {
	if img == nil || img.Handle == vk.Image(vk.NullHandle) {
		return
	}
	if img.View != vk.NullImageView {
		vk.DestroyImageView(a.device, img.View, nil)
		img.View = vk.NullImageView
	}
	vk.DestroyImage(a.device, img.Handle, nil)
	vk.FreeMemory(a.device, img.memory, nil)
	img.Handle = vk.Image(vk.NullHandle)
	img.memory = vk.DeviceMemory(vk.NullHandle)
	a.liveImages--
}

func createImageView(device vk.Device, image vk.Image, format vk.Format) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: viewAspectFor(format),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := newError(ret, ErrResourceCreation, "vkCreateImageView"); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

// transition is the dependency a layout change has to express.
type transition struct {
	srcStage  vk.PipelineStageFlagBits
	dstStage  vk.PipelineStageFlagBits
	srcAccess vk.AccessFlagBits
	dstAccess vk.AccessFlagBits
}

// barrierFor returns the producer and consumer scopes for a supported layout pair.
func barrierFor(oldLayout, newLayout vk.ImageLayout) (transition, error) {
	const depthTests = vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
	const depthAccess = vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit

	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		return transition{vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit, 0, vk.AccessTransferWriteBit}, nil
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		return transition{vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit, vk.AccessTransferWriteBit, vk.AccessShaderReadBit}, nil
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutDepthStencilAttachmentOptimal:
		// Orders against depth writes of the previous frame using the same image.
		return transition{depthTests, depthTests, vk.AccessDepthStencilAttachmentWriteBit, depthAccess}, nil
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutColorAttachmentOptimal:
		return transition{vk.PipelineStageColorAttachmentOutputBit, vk.PipelineStageColorAttachmentOutputBit, 0, vk.AccessColorAttachmentWriteBit}, nil
	case oldLayout == vk.ImageLayoutColorAttachmentOptimal && newLayout == vk.ImageLayoutPresentSrc:
		return transition{vk.PipelineStageColorAttachmentOutputBit, vk.PipelineStageBottomOfPipeBit, vk.AccessColorAttachmentWriteBit, 0}, nil
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutDepthStencilAttachmentOptimal:
		return transition{vk.PipelineStageTransferBit, depthTests, vk.AccessTransferWriteBit, depthAccess}, nil
	case oldLayout == vk.ImageLayoutShaderReadOnlyOptimal && newLayout == vk.ImageLayoutTransferSrcOptimal:
		return transition{vk.PipelineStageFragmentShaderBit, vk.PipelineStageTransferBit, vk.AccessShaderReadBit, vk.AccessTransferReadBit}, nil
	case oldLayout == vk.ImageLayoutDepthStencilAttachmentOptimal && newLayout == vk.ImageLayoutTransferSrcOptimal:
		return transition{vk.PipelineStageLateFragmentTestsBit, vk.PipelineStageTransferBit, vk.AccessDepthStencilAttachmentWriteBit, vk.AccessTransferReadBit}, nil
	case oldLayout == vk.ImageLayoutPresentSrc && newLayout == vk.ImageLayoutTransferSrcOptimal:
		return transition{vk.PipelineStageColorAttachmentOutputBit, vk.PipelineStageTransferBit, vk.AccessColorAttachmentWriteBit, vk.AccessTransferReadBit}, nil
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutTransferSrcOptimal:
		return transition{vk.PipelineStageTransferBit, vk.PipelineStageTransferBit, vk.AccessTransferWriteBit, vk.AccessTransferReadBit}, nil
	}
	return transition{}, errors.WithMessagef(ErrUnsupportedCapability, "layout transition %d -> %d", oldLayout, newLayout)
}

// TransitionImage records a pipeline barrier moving image from oldLayout to newLayout.
func TransitionImage(cmd vk.CommandBuffer, image vk.Image, format vk.Format, oldLayout, newLayout vk.ImageLayout) error {
	t, err := barrierFor(oldLayout, newLayout)
	if err != nil {
		return err
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(t.srcStage), vk.PipelineStageFlags(t.dstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(t.srcAccess),
			DstAccessMask:       vk.AccessFlags(t.dstAccess),
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: aspectFor(format),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
	return nil
}

// UploadImage creates a sampled RGBA8 sRGB texture from tex through a staging
// buffer and leaves it in the shader read-only layout.
func (a *Allocator) UploadImage(tex *TextureData) (*Image, error) {
	if err := tex.validate(); err != nil {
		return nil, err
	}
	staging, err := a.newStaging(tex.Pixels)
	if err != nil {
		return nil, err
	}
	defer a.DestroyBuffer(staging)

	img, err := a.CreateImage(ImageInfo{
		Extent: vk.Extent2D{Width: uint32(tex.Width), Height: uint32(tex.Height)},
		Format: vk.FormatR8g8b8a8Srgb,
		Usage: vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit |
			vk.ImageUsageSampledBit),
		Properties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	})
	if err != nil {
		return nil, err
	}

	cmd, err := a.pool.BeginOneShot()
	if err != nil {
		a.DestroyImage(img)
		return nil, err
	}
	err = TransitionImage(cmd.Buffer(), img.Handle, img.Format, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	if err == nil {
		vk.CmdCopyBufferToImage(cmd.Buffer(), staging.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1,
			[]vk.BufferImageCopy{imageCopyRegion(img)})
		err = TransitionImage(cmd.Buffer(), img.Handle, img.Format, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	}
	if err != nil {
		cmd.Release()
		a.DestroyImage(img)
		return nil, err
	}
	if err := cmd.Submit(); err != nil {
		a.DestroyImage(img)
		return nil, err
	}
	return img, nil
}

// ReadImage transitions img from layout to the transfer source layout and copies
// its texels back to host memory. The image is left in the transfer source layout.
func (a *Allocator) ReadImage(img *Image, layout vk.ImageLayout) ([]byte, error) {
	texel, err := texelSize(img.Format)
	if err != nil {
		return nil, err
	}
	size := vk.DeviceSize(int(img.Extent.Width) * int(img.Extent.Height) * texel)
	staging, err := a.CreateBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer a.DestroyBuffer(staging)

	cmd, err := a.pool.BeginOneShot()
	if err != nil {
		return nil, err
	}
	if err := TransitionImage(cmd.Buffer(), img.Handle, img.Format, layout, vk.ImageLayoutTransferSrcOptimal); err != nil {
		cmd.Release()
		return nil, err
	}
	vk.CmdCopyImageToBuffer(cmd.Buffer(), img.Handle, vk.ImageLayoutTransferSrcOptimal, staging.Handle, 1,
		[]vk.BufferImageCopy{imageCopyRegion(img)})
	if err := cmd.Submit(); err != nil {
		return nil, err
	}
	return a.readStaging(staging)
}

func imageCopyRegion(img *Image) vk.BufferImageCopy {
	return vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: viewAspectFor(img.Format),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: img.Extent.Width, Height: img.Extent.Height, Depth: 1},
	}
}

// CreateSampler creates the linear, repeating sampler shared by every descriptor set.
func (a *Allocator) CreateSampler() (vk.Sampler, error) {
	var sampler vk.Sampler
	ret := vk.CreateSampler(a.device, &vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     vk.FilterLinear,
		MinFilter:     vk.FilterLinear,
		MipmapMode:    vk.SamplerMipmapModeLinear,
		AddressModeU:  vk.SamplerAddressModeRepeat,
		AddressModeV:  vk.SamplerAddressModeRepeat,
		AddressModeW:  vk.SamplerAddressModeRepeat,
		MaxAnisotropy: 1,
		CompareOp:     vk.CompareOpAlways,
		BorderColor:   vk.BorderColorIntOpaqueBlack,
	}, nil, &sampler)
	if err := newError(ret, ErrResourceCreation, "vkCreateSampler"); err != nil {
		return vk.Sampler(vk.NullHandle), err
	}
	return sampler, nil
}

func (a *Allocator) DestroySampler(sampler vk.Sampler) {
	if sampler != vk.Sampler(vk.NullHandle) {
		vk.DestroySampler(a.device, sampler, nil)
	}
}
