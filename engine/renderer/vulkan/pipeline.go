package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline. The layout is shared by every pipeline and
 * owned by the device.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
}

type VulkanPipelineConfig struct {
	/** @brief A pointer to the renderpass to associate with the pipeline. */
	Renderpass *VulkanRenderpass
	/** @brief The stride of the vertex data to be used. */
	Stride uint32
	/** @brief An array of attributes. */
	Attributes []vk.VertexInputAttributeDescription
	/** @brief The shared layout the pipeline is created against. */
	Layout vk.PipelineLayout
	/** @brief An array of stages. */
	Stages []vk.PipelineShaderStageCreateInfo
	/** @brief The face cull mode. */
	CullMode metadata.FaceCullMode
	/** @brief Indicates if this pipeline should use wireframe mode. */
	IsWireframe bool
	Topology    metadata.PrimitiveTopology
}

func attributeFormat(components uint32) (vk.Format, error) {
	switch components {
	case 1:
		return vk.FormatR32Sfloat, nil
	case 2:
		return vk.FormatR32g32Sfloat, nil
	case 3:
		return vk.FormatR32g32b32Sfloat, nil
	case 4:
		return vk.FormatR32g32b32a32Sfloat, nil
	}
	return vk.FormatUndefined, fmt.Errorf("attribute with %d components", components)
}

func vertexAttributes(attributes []metadata.VertexAttribute) ([]vk.VertexInputAttributeDescription, error) {
	out := make([]vk.VertexInputAttributeDescription, len(attributes))
	for i, a := range attributes {
		format, err := attributeFormat(a.Components)
		if err != nil {
			return nil, err
		}
		out[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   format,
			Offset:   a.Offset,
		}
	}
	return out, nil
}

func primitiveTopology(topology metadata.PrimitiveTopology) vk.PrimitiveTopology {
	switch topology {
	case metadata.PrimitiveTopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.PrimitiveTopologyLineList:
		return vk.PrimitiveTopologyLineList
	}
	return vk.PrimitiveTopologyTriangleList
}

func cullModeFlags(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	}
	return vk.CullModeFlags(vk.CullModeBackBit)
}

func NewGraphicsPipeline(context *VulkanContext, locks *VulkanLockPool, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{
		PipelineLayout: config.Layout,
	}

	// Viewport and scissor are dynamic, set at the start of every pass.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer. Shapes are wound clockwise.
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                cullModeFlags(config.CullMode),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
	}
	if config.IsWireframe {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		PSampleMask:           nil,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}

	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0, // Binding index
		Stride:    config.Stride,
		InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
	}

	// Attributes
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(config.Attributes)),
		PVertexAttributeDescriptions:    config.Attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               primitiveTopology(config.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		PTessellationState:  nil,
		Layout:              config.Layout,
		RenderPass:          config.Renderpass.Handle,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)

	if err := locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(
			context.Device.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pPipelines)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkCreateGraphicsPipelines", result)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if pPipelines[0] == nil {
		return nil, core.NewFatalDeviceError("NewGraphicsPipeline", fmt.Errorf("vulkan pipeline handle is nil"))
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline created!")
	return outPipeline, nil
}

// Destroy releases the pipeline. The shared layout stays with the device.
func (pipeline *VulkanPipeline) Destroy(context *VulkanContext, locks *VulkanLockPool) {
	if pipeline.Handle == nil {
		return
	}
	_ = locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = nil
		return nil
	})
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer, bindPoint vk.PipelineBindPoint) {
	vk.CmdBindPipeline(commandBuffer.Handle, bindPoint, pipeline.Handle)
}

// Pipeline is the device level handle for a compiled shape pipeline.
type Pipeline struct {
	device *Device
	desc   metadata.PipelineDescriptor
	native *VulkanPipeline
}

func (d *Device) CreatePipeline(desc metadata.PipelineDescriptor) (metadata.Pipeline, error) {
	if len(desc.VertexShader) == 0 || len(desc.FragmentShader) == 0 {
		return nil, core.NewFatalDeviceError("CreatePipeline", fmt.Errorf("pipeline %s is missing shader code", desc.Name))
	}
	if desc.Wireframe && !d.context.Device.SupportsWireframe {
		return nil, core.NewFatalDeviceError("CreatePipeline", fmt.Errorf("pipeline %s needs fillModeNonSolid", desc.Name))
	}
	attributes, err := vertexAttributes(desc.Attributes)
	if err != nil {
		return nil, core.NewFatalDeviceError("CreatePipeline", err)
	}

	vertex, err := NewShaderModule(d.context, desc.VertexShader, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, err
	}
	defer vertex.Destroy(d.context)
	fragment, err := NewShaderModule(d.context, desc.FragmentShader, vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, err
	}
	defer fragment.Destroy(d.context)

	pipeline, err := NewGraphicsPipeline(d.context, d.locks, &VulkanPipelineConfig{
		Renderpass:  d.context.MainRenderpass,
		Stride:      desc.VertexStride,
		Attributes:  attributes,
		Layout:      d.pipelineLayout,
		Stages:      []vk.PipelineShaderStageCreateInfo{vertex.ShaderStageCreateInfo, fragment.ShaderStageCreateInfo},
		CullMode:    desc.CullMode,
		IsWireframe: desc.Wireframe,
		Topology:    desc.Topology,
	})
	if err != nil {
		return nil, err
	}
	core.LogInfo("pipeline %s created (wireframe %t)", desc.Name, desc.Wireframe)
	return &Pipeline{device: d, desc: desc, native: pipeline}, nil
}

func (p *Pipeline) Name() string {
	return p.desc.Name
}

func (p *Pipeline) Destroy() {
	p.native.Destroy(p.device.context, p.device.locks)
}

// PipelineLayoutCreate builds the layout shared by all pipelines: one
// constant buffer set per slot.
func PipelineLayoutCreate(context *VulkanContext, setLayout vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	setLayouts := make([]vk.DescriptorSetLayout, VULKAN_CONSTANT_BUFFER_SLOTS)
	for i := range setLayouts {
		setLayouts[i] = setLayout
	}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &pipelineLayoutCreateInfo, context.Allocator, &layout); res != vk.Success {
		return nil, resultError("vkCreatePipelineLayout", res)
	}
	return layout, nil
}
