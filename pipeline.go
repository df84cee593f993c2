package framevk

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Pipeline is the graphics pipeline drawing the combined mesh and its layout.
type Pipeline struct {
	device vk.Device
	Handle vk.Pipeline
	Layout vk.PipelineLayout
}

func (p *Pipeline) Destroy() {
	if p.Handle != vk.NullPipeline {
		vk.DestroyPipeline(p.device, p.Handle, nil)
		p.Handle = vk.NullPipeline
	}
	if p.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(p.device, p.Layout, nil)
		p.Layout = vk.NullPipelineLayout
	}
}

type PipelineBuilder struct {
	_shaderStages         []vk.PipelineShaderStageCreateInfo
	_vertexBindings       []vk.VertexInputBindingDescription
	_vertexAttributes     []vk.VertexInputAttributeDescription
	_inputAssembly        vk.PipelineInputAssemblyStateCreateInfo
	_rasterizer           vk.PipelineRasterizationStateCreateInfo
	_colorBlendAttachment vk.PipelineColorBlendAttachmentState
	_multisampling        vk.PipelineMultisampleStateCreateInfo
	_depthStencil         vk.PipelineDepthStencilStateCreateInfo
	_dynamicStates        []vk.DynamicState
}

func vertexBindings() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}}
}

func vertexAttributes() []vk.VertexInputAttributeDescription {
	var v Vertex
	return []vk.VertexInputAttributeDescription{{
		Location: 0,
		Binding:  0,
		Format:   vk.FormatR32g32b32Sfloat,
		Offset:   uint32(unsafe.Offsetof(v.Pos)),
	}, {
		Location: 1,
		Binding:  0,
		Format:   vk.FormatR32g32b32Sfloat,
		Offset:   uint32(unsafe.Offsetof(v.Normal)),
	}, {
		Location: 2,
		Binding:  0,
		Format:   vk.FormatR32g32Sfloat,
		Offset:   uint32(unsafe.Offsetof(v.UV)),
	}}
}

//Mesh pipeline: indexed triangle lists, back face culling, depth test less, dynamic viewport and scissor
func NewPipelineBuilder(modules *ShaderModules) *PipelineBuilder {
	pb := PipelineBuilder{}

	pb._shaderStages = []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: modules.Vertex,
		PName:  safeString(modules.VertexEntry),
	}, {
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFragmentBit,
		Module: modules.Fragment,
		PName:  safeString(modules.FragmentEntry),
	}}

	pb._vertexBindings = vertexBindings()
	pb._vertexAttributes = vertexAttributes()

	pb._inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pb._rasterizer = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}

	pb._multisampling = vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}

	pb._colorBlendAttachment = vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable: vk.False,
	}

	pb._depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MaxDepthBounds:        1.0,
	}

	pb._dynamicStates = []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	return &pb
}

// Build creates the pipeline layout over setLayout and the pipeline for subpass 0 of renderPass.
func (p *PipelineBuilder) Build(device vk.Device, renderPass vk.RenderPass, setLayout vk.DescriptorSetLayout) (*Pipeline, error) {
	out := &Pipeline{device: device, Handle: vk.NullPipeline, Layout: vk.NullPipelineLayout}

	setLayouts := []vk.DescriptorSetLayout{setLayout}
	ret := vk.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}, nil, &out.Layout)
	if err := newError(ret, ErrResourceCreation, "vkCreatePipelineLayout"); err != nil {
		return nil, err
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(p._vertexBindings)),
		PVertexBindingDescriptions:      p._vertexBindings,
		VertexAttributeDescriptionCount: uint32(len(p._vertexAttributes)),
		PVertexAttributeDescriptions:    p._vertexAttributes,
	}

	//Viewport and scissor are set while recording each frame
	viewport := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(p._dynamicStates)),
		PDynamicStates:    p._dynamicStates,
	}

	attachments := []vk.PipelineColorBlendAttachmentState{p._colorBlendAttachment}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
	}

	infos := []vk.GraphicsPipelineCreateInfo{{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(p._shaderStages)),
		PStages:             p._shaderStages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &p._inputAssembly,
		PViewportState:      &viewport,
		PRasterizationState: &p._rasterizer,
		PMultisampleState:   &p._multisampling,
		PDepthStencilState:  &p._depthStencil,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              out.Layout,
		RenderPass:          renderPass,
		Subpass:             0,
	}}

	pipelines := []vk.Pipeline{vk.NullPipeline}
	ret = vk.CreateGraphicsPipelines(device, vk.PipelineCache(vk.NullHandle), 1, infos, nil, pipelines)
	if err := newError(ret, ErrResourceCreation, "vkCreateGraphicsPipelines"); err != nil {
		out.Destroy()
		return nil, err
	}
	out.Handle = pipelines[0]
	return out, nil
}
