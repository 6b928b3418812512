// Package pipeline builds the opaque and transparent mesh pipelines
// with dynamic rendering targets, push-constant layout and
// dynamic-viewport/scissor state. Grounded on the reference engine's
// pipeline.go (PipelineBuilder), generalized to dynamic rendering
// (no VkRenderPass/VkFramebuffer) per spec.md §4.6.
package pipeline

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

// ColorFormat is the offscreen HDR draw image format.
const ColorFormat = vk.FormatR16g16b16a16Sfloat

// PushConstants is the vertex-stage per-draw push constant:
// worldMatrix at offset 0, vertex buffer device address following it.
type PushConstants struct {
	WorldMatrix [16]float32
	VertexBufferAddress uint64
}

const PushConstantSize = 4*16 + 8

// Variant selects opaque or transparent blend/depth-write state.
type Variant int

const (
	Opaque Variant = iota
	Transparent
)

// Set is the pair of pipelines sharing one layout, built once per
// material pass.
type Set struct {
	Layout      vk.PipelineLayout
	Opaque      vk.Pipeline
	Transparent vk.Pipeline
}

// Builder assembles a Set from compiled vertex/fragment shader
// modules, a descriptor set layout array and the probed depth format.
type Builder struct {
	device      vk.Device
	depthFormat vk.Format
}

func New(device vk.Device, depthFormat vk.Format) *Builder {
	return &Builder{device: device, depthFormat: depthFormat}
}

// Build constructs the layout (push constant + given descriptor set
// layouts) and both pipeline variants using vertex/fragment modules.
func (b *Builder) Build(vertex, fragment vk.ShaderModule, setLayouts []vk.DescriptorSetLayout) (*Set, error) {
	pushRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       PushConstantSize,
	}

	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(b.device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}, nil, &layout)
	if err := vkerr.CheckResult(vkerr.KindInit, "pipeline.Builder.Build.layout", ret); err != nil {
		return nil, err
	}

	opaquePipeline, err := b.buildVariant(vertex, fragment, layout, Opaque)
	if err != nil {
		vk.DestroyPipelineLayout(b.device, layout, nil)
		return nil, err
	}
	transparentPipeline, err := b.buildVariant(vertex, fragment, layout, Transparent)
	if err != nil {
		vk.DestroyPipeline(b.device, opaquePipeline, nil)
		vk.DestroyPipelineLayout(b.device, layout, nil)
		return nil, err
	}

	return &Set{Layout: layout, Opaque: opaquePipeline, Transparent: transparentPipeline}, nil
}

func (b *Builder) buildVariant(vertex, fragment vk.ShaderModule, layout vk.PipelineLayout, variant Variant) (vk.Pipeline, error) {
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertex,
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragment,
			PName:  "main\x00",
		},
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{SType: vk.StructureTypePipelineVertexInputStateCreateInfo}

	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	colorBlend := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthCompareOp:   vk.CompareOpGreaterOrEqual,
		DepthBoundsTestEnable: vk.False,
	}

	switch variant {
	case Opaque:
		colorBlend.BlendEnable = vk.False
		depthStencil.DepthWriteEnable = vk.True
	case Transparent:
		colorBlend.BlendEnable = vk.True
		colorBlend.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlend.DstColorBlendFactor = vk.BlendFactorOne
		colorBlend.ColorBlendOp = vk.BlendOpAdd
		colorBlend.SrcAlphaBlendFactor = vk.BlendFactorOne
		colorBlend.DstAlphaBlendFactor = vk.BlendFactorZero
		colorBlend.AlphaBlendOp = vk.BlendOpAdd
		depthStencil.DepthWriteEnable = vk.False
	}

	colorBlendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlend},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	colorFormats := []vk.Format{ColorFormat}
	renderingInfo := vk.PipelineRenderingCreateInfo{
		SType:                   vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount:    1,
		PColorAttachmentFormats: colorFormats,
		DepthAttachmentFormat:   b.depthFormat,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               unsafe.Pointer(&renderingInfo),
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &assembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PColorBlendState:    &colorBlendState,
		PDepthStencilState:  &depthStencil,
		PDynamicState:       &dynamicState,
		Layout:              layout,
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(b.device, nil, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines)
	if err := vkerr.CheckResult(vkerr.KindInit, "pipeline.Builder.buildVariant", ret); err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

// Destroy releases both pipelines and the shared layout.
func (s *Set) Destroy(device vk.Device) {
	vk.DestroyPipeline(device, s.Opaque, nil)
	vk.DestroyPipeline(device, s.Transparent, nil)
	vk.DestroyPipelineLayout(device, s.Layout, nil)
}
