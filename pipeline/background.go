// Background builds the compute "background" effects (gradient, sky)
// the frame driver dispatches against the draw image before the
// geometry pass. Grounded on original_source/vk_types.h
// (ComputePushConstants, ComputeEffect) and vk_engine.cpp
// (init_background_pipelines/init_descriptors), translated to dynamic
// rendering's storage-image draw target per spec.md §4.4 step 5.
package pipeline

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/descriptor"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/math32"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

// BackgroundPushConstants is the compute-stage push constant: four
// vec4 (64 B) at offset 0, per spec.md §6 "Bit-layout contracts".
type BackgroundPushConstants struct {
	Data1, Data2, Data3, Data4 math32.Vec4
}

const BackgroundPushConstantSize = 4 * 4 * 4

// Effect names one compute pipeline sharing BackgroundLayout plus the
// push-constant values it dispatches with.
type Effect struct {
	Name string
	Pipeline vk.Pipeline
	Data     BackgroundPushConstants
}

// Background holds the shared descriptor layout/set and pipeline
// layout for every compute background effect, plus the built effect
// list selected by index at draw time.
type Background struct {
	DescriptorLayout *descriptor.Layout
	DescriptorSet    vk.DescriptorSet
	Layout           vk.PipelineLayout
	Effects          []Effect
}

// DefaultGradientEffect mirrors the reference engine's seeded gradient
// constants (top color red, bottom color blue).
func DefaultGradientEffect() BackgroundPushConstants {
	return BackgroundPushConstants{
		Data1: math32.Vec4{1, 0, 0, 1},
		Data2: math32.Vec4{0, 0, 1, 1},
	}
}

// DefaultSkyEffect mirrors the reference engine's seeded sky constants
// (horizon tint packed into Data1).
func DefaultSkyEffect() BackgroundPushConstants {
	return BackgroundPushConstants{
		Data1: math32.Vec4{0.1, 0.2, 0.4, 0.97},
	}
}

// BuildBackground allocates the storage-image descriptor set layout
// and set, builds the shared pipeline layout, and compiles one
// pipeline per supplied compute shader module. The draw image view is
// written into binding 0 immediately since the set never rebinds a
// different image except on swapchain resize (RebindImage).
func BuildBackground(device vk.Device, allocator *descriptor.GrowableAllocator, drawImageView vk.ImageView, gradient, sky vk.ShaderModule) (*Background, error) {
	var lb descriptor.LayoutBuilder
	lb.AddBinding(0, vk.DescriptorTypeStorageImage)
	layout, err := lb.Build(device, vk.ShaderStageFlags(vk.ShaderStageComputeBit))
	if err != nil {
		return nil, err
	}

	set, err := allocator.Allocate(layout.Handle)
	if err != nil {
		vk.DestroyDescriptorSetLayout(device, layout.Handle, nil)
		return nil, err
	}

	var writer descriptor.Writer
	writer.WriteImage(0, drawImageView, vk.NullSampler, vk.ImageLayoutGeneral, vk.DescriptorTypeStorageImage)
	writer.UpdateSet(device, set)

	pushRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		Offset:     0,
		Size:       BackgroundPushConstantSize,
	}
	setLayouts := []vk.DescriptorSetLayout{layout.Handle}

	var pipelineLayout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}, nil, &pipelineLayout)
	if err := vkerr.CheckResult(vkerr.KindInit, "pipeline.BuildBackground.layout", ret); err != nil {
		vk.DestroyDescriptorSetLayout(device, layout.Handle, nil)
		return nil, err
	}

	gradientPipeline, err := buildComputePipeline(device, pipelineLayout, gradient)
	if err != nil {
		vk.DestroyPipelineLayout(device, pipelineLayout, nil)
		vk.DestroyDescriptorSetLayout(device, layout.Handle, nil)
		return nil, err
	}
	skyPipeline, err := buildComputePipeline(device, pipelineLayout, sky)
	if err != nil {
		vk.DestroyPipeline(device, gradientPipeline, nil)
		vk.DestroyPipelineLayout(device, pipelineLayout, nil)
		vk.DestroyDescriptorSetLayout(device, layout.Handle, nil)
		return nil, err
	}

	return &Background{
		DescriptorLayout: layout,
		DescriptorSet:    set,
		Layout:           pipelineLayout,
		Effects: []Effect{
			{Name: "gradient", Pipeline: gradientPipeline, Data: DefaultGradientEffect()},
			{Name: "sky", Pipeline: skyPipeline, Data: DefaultSkyEffect()},
		},
	}, nil
}

func buildComputePipeline(device vk.Device, layout vk.PipelineLayout, module vk.ShaderModule) (vk.Pipeline, error) {
	createInfo := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: module,
			PName:  "main\x00",
		},
		Layout: layout,
	}
	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateComputePipelines(device, nil, 1, []vk.ComputePipelineCreateInfo{createInfo}, nil, pipelines)
	if err := vkerr.CheckResult(vkerr.KindInit, "pipeline.buildComputePipeline", ret); err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

// RebindImage re-writes binding 0 to a freshly recreated draw image,
// run after swapchain resize rebuilds the offscreen images.
func (b *Background) RebindImage(device vk.Device, drawImageView vk.ImageView) {
	var writer descriptor.Writer
	writer.WriteImage(0, drawImageView, vk.NullSampler, vk.ImageLayoutGeneral, vk.DescriptorTypeStorageImage)
	writer.UpdateSet(device, b.DescriptorSet)
}

// Dispatch records the bind/push/dispatch sequence for the effect at
// index against the draw image (already transitioned to General by
// the caller), rounding the workgroup count up per the reference
// engine's 16x16 compute shader local size.
func (b *Background) Dispatch(cmd vk.CommandBuffer, index int, width, height uint32) {
	effect := b.Effects[index]
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, effect.Pipeline)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, b.Layout, 0, 1,
		[]vk.DescriptorSet{b.DescriptorSet}, 0, nil)
	vk.CmdPushConstants(cmd, b.Layout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0,
		BackgroundPushConstantSize, unsafe.Pointer(&effect.Data))
	vk.CmdDispatch(cmd, (width+15)/16, (height+15)/16, 1)
}

// Destroy releases both pipelines, the shared layout and the
// descriptor set layout. The descriptor set itself is owned by the
// allocator it was written from and freed on pool reset/destroy.
func (b *Background) Destroy(device vk.Device) {
	for _, e := range b.Effects {
		vk.DestroyPipeline(device, e.Pipeline, nil)
	}
	vk.DestroyPipelineLayout(device, b.Layout, nil)
	vk.DestroyDescriptorSetLayout(device, b.DescriptorLayout.Handle, nil)
}
