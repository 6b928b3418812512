// Package engine is the top-level frame driver: it owns the
// swapchain, frame ring, offscreen draw/depth images, pipeline sets
// and the camera, and runs the eleven-step per-frame sequence of
// spec.md §4.9. Grounded on the reference engine's instance.go
// (Update/submit_pipeline/present_image/acquire_next_image) and
// original_source/vk_engine.h (draw/draw_background/draw_geometry/
// get_current_frame), generalized to dynamic rendering.
package engine

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/alloc"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/config"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/descriptor"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/device"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/external"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/frame"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/material"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/math32"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/pipeline"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/rlog"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/scene"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/swapchain"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

// Shared is the resource bundle every draw-time collaborator needs.
// It is passed by value (as a pointer) rather than each collaborator
// holding a back-pointer to Engine, avoiding the cyclic ownership the
// teacher's CoreRenderInstance/CorePipeline pair has (SPEC_FULL.md §10
// item 6).
type Shared struct {
	Device   *device.Context
	Alloc    *alloc.Allocator
	Material *material.Registry
	Defaults *material.Defaults
	Pipeline *pipeline.Set
}

// GPUSceneData is the std140-compatible scene uniform (spec.md §6
// "Bit-layout contracts").
type GPUSceneData struct {
	View              math32.Mat4
	Proj              math32.Mat4
	ViewProj          math32.Mat4
	AmbientColor      math32.Vec4
	SunlightDirection math32.Vec4
	SunlightColor     math32.Vec4
}

// NewSceneLayout builds the global scene-uniform descriptor set layout
// (set 0): one vertex+fragment uniform buffer binding, bound once per
// pipeline change ahead of any material set. Grounded on the reference
// engine's _gpuSceneDataDescriptorLayout (original_source/vk_engine.cpp
// init_descriptors, built once at startup and reused every frame).
func NewSceneLayout(dev vk.Device) (*descriptor.Layout, error) {
	var b descriptor.LayoutBuilder
	b.AddBinding(0, vk.DescriptorTypeUniformBuffer)
	return b.Build(dev, vk.ShaderStageFlags(vk.ShaderStageVertexBit)|vk.ShaderStageFlags(vk.ShaderStageFragmentBit))
}

// Camera holds the view parameters the frame driver recomputes
// view/proj from every frame.
type Camera struct {
	Eye, Center, Up math32.Vec3
	Fovy, Near, Far float32
}

// ViewProj computes view, proj and their product for the given aspect
// ratio, using reverse-Z projection (spec.md §4.6, §9).
func (c Camera) ViewProj(aspect float32) (view, proj, viewProj math32.Mat4) {
	math32.LookAt(&view, c.Eye, c.Center, c.Up)
	math32.PerspectiveReverseZ(&proj, c.Fovy, aspect, c.Near, c.Far)
	math32.Mul(&viewProj, &proj, &view)
	return
}

// Engine drives the frame ring against one swapchain and scene graph.
type Engine struct {
	shared *Shared
	log    *rlog.Loggers
	cfg    config.Config

	window      external.Window
	overlay     external.Overlay
	swap        *swapchain.Swapchain
	ring        *frame.Ring
	frameNumber uint64

	drawImage  *alloc.Image
	depthImage *alloc.Image

	sceneLayout *descriptor.Layout

	background      *pipeline.Background
	backgroundAlloc *descriptor.GrowableAllocator
	// BackgroundEffect selects which compiled Background.Effects entry
	// DrawFrame dispatches (0 = gradient, 1 = sky), per spec.md §4.4
	// step 5's "choice of gradient or sky effect".
	BackgroundEffect int

	// sceneUniforms holds one persistent host-visible uniform buffer per
	// frame slot, indexed the same way the ring is (frameNumber % F), so
	// update_scene can write directly into this frame's buffer without
	// an allocation every frame (spec.md §4.9 step 1).
	sceneUniforms []*alloc.Buffer

	graphicsQueue vk.Queue
	presentQueue  vk.Queue

	Scene  *scene.Graph
	Camera Camera

	resizePending bool
}

// New assembles the engine's persistent state: swapchain, frame ring
// and offscreen draw/depth images sized to the current framebuffer.
func New(shared *Shared, win external.Window, overlay external.Overlay, swap *swapchain.Swapchain, sceneLayout *descriptor.Layout, graphicsFamily uint32, graphicsQueue, presentQueue vk.Queue, cfg config.Config, logs *rlog.Loggers, backgroundGradient, backgroundSky vk.ShaderModule) (*Engine, error) {
	ring, err := frame.NewRing(shared.Device.Logical, graphicsFamily, cfg.MaxFramesInFlight)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		shared:        shared,
		log:           logs,
		cfg:           cfg,
		window:        win,
		overlay:       overlay,
		swap:          swap,
		ring:          ring,
		sceneLayout:   sceneLayout,
		graphicsQueue: graphicsQueue,
		presentQueue:  presentQueue,
		Scene:         &scene.Graph{},
	}

	if err := e.createDrawImages(); err != nil {
		return nil, err
	}

	e.backgroundAlloc = descriptor.NewGrowableAllocator(shared.Device.Logical, 1, []descriptor.PoolSizeRatio{
		{Type: vk.DescriptorTypeStorageImage, Ratio: 1},
	})
	background, err := pipeline.BuildBackground(shared.Device.Logical, e.backgroundAlloc, e.drawImage.View, backgroundGradient, backgroundSky)
	if err != nil {
		return nil, err
	}
	e.background = background

	e.sceneUniforms = make([]*alloc.Buffer, ring.Len())
	for i := range e.sceneUniforms {
		buf, err := shared.Alloc.CreateHostBuffer(vk.DeviceSize(unsafe.Sizeof(GPUSceneData{})), vk.BufferUsageUniformBufferBit)
		if err != nil {
			return nil, err
		}
		e.sceneUniforms[i] = buf
	}
	return e, nil
}

func (e *Engine) createDrawImages() error {
	extent := e.swap.Extent()
	drawImage, err := e.shared.Alloc.CreateImage(
		vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		pipeline.ColorFormat,
		vk.ImageUsageColorAttachmentBit|vk.ImageUsageTransferSrcBit|vk.ImageUsageTransferDstBit|vk.ImageUsageStorageBit,
		1,
	)
	if err != nil {
		return err
	}
	e.drawImage = drawImage

	depthFormat, err := e.shared.Device.SupportedDepthFormat()
	if err != nil {
		e.shared.Alloc.DestroyImage(drawImage)
		return err
	}
	depthImage, err := e.shared.Alloc.CreateImage(
		vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		depthFormat,
		vk.ImageUsageDepthStencilAttachmentBit,
		1,
	)
	if err != nil {
		e.shared.Alloc.DestroyImage(drawImage)
		return err
	}
	e.depthImage = depthImage
	return nil
}

// RequestResize marks the swapchain and draw images for recreation on
// the next DrawFrame call (spec.md §4.9 step 3, step 11).
func (e *Engine) RequestResize() { e.resizePending = true }

func (e *Engine) recreate() error {
	w, h := e.window.FramebufferSize()
	swap, err := swapchain.Recreate(e.shared.Device.Logical, e.swap, vk.Extent2D{Width: uint32(w), Height: uint32(h)}, e.cfg)
	if err != nil {
		return err
	}
	e.swap = swap

	e.shared.Alloc.DestroyImage(e.drawImage)
	e.shared.Alloc.DestroyImage(e.depthImage)
	if err := e.createDrawImages(); err != nil {
		return err
	}
	e.background.RebindImage(e.shared.Device.Logical, e.drawImage.View)
	e.resizePending = false
	return nil
}

// DrawFrame runs the eleven-step sequence of spec.md §4.9. A
// KindTransient error (out-of-date/suboptimal) is absorbed by
// scheduling a recreate and returning nil; every other non-nil error
// is fatal per spec.md §7.
func (e *Engine) DrawFrame() error {
	if e.resizePending {
		if err := e.recreate(); err != nil {
			return err
		}
	}

	slot := e.ring.Slot(e.frameNumber)

	extent := e.swap.Extent()
	aspect := float32(extent.Width) / float32(extent.Height)
	view, proj, viewProj := e.Camera.ViewProj(aspect)
	e.Scene.RefreshTransforms()
	drawCtx := e.Scene.BuildDrawContext(viewProj, pipelineIDForPass, materialIDForResources)

	if err := slot.BeginRecording(); err != nil {
		return err
	}

	var imageIndex uint32
	ret := vk.AcquireNextImage(e.shared.Device.Logical, e.swap.Handle(), uint64(frame.FenceTimeout.Nanoseconds()), slot.ImageAvailable, nil, &imageIndex)
	if ret == vk.ErrorOutOfDate || ret == vk.Suboptimal {
		e.RequestResize()
		return nil
	}
	if err := vkerr.CheckResult(vkerr.KindResource, "engine.Engine.DrawFrame.acquire", ret); err != nil {
		return err
	}

	cmd := slot.CommandBuffer

	alloc.TransitionImage(cmd, e.drawImage.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutGeneral, 0, 1)
	e.background.Dispatch(cmd, e.BackgroundEffect, extent.Width, extent.Height)
	alloc.TransitionImage(cmd, e.drawImage.Handle, vk.ImageLayoutGeneral, vk.ImageLayoutColorAttachmentOptimal, 0, 1)
	alloc.TransitionImage(cmd, e.depthImage.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutDepthAttachmentOptimal, 0, 1)

	sceneUniform := e.sceneUniforms[int(e.frameNumber)%len(e.sceneUniforms)]
	*(*GPUSceneData)(sceneUniform.Mapped) = GPUSceneData{
		View: view, Proj: proj, ViewProj: viewProj,
		AmbientColor:      math32.Vec4{0.1, 0.1, 0.1, 1},
		SunlightDirection: math32.Vec4{0, -1, 0, 1},
		SunlightColor:     math32.Vec4{1, 1, 1, 1},
	}

	sceneSet, err := e.writeSceneDescriptor(slot.Descriptors, sceneUniform)
	if err != nil {
		return err
	}

	if err := e.bindMaterials(slot, &drawCtx); err != nil {
		return err
	}

	e.recordGeometryPass(cmd, &drawCtx, sceneSet)

	alloc.TransitionImage(cmd, e.drawImage.Handle, vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutTransferSrcOptimal, 0, 1)
	alloc.TransitionImage(cmd, e.swap.Image(int(imageIndex)), vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal, 0, 1)
	blitDrawToSwapchain(cmd, e.drawImage, e.swap.Image(int(imageIndex)), e.swap.Extent())
	alloc.TransitionImage(cmd, e.swap.Image(int(imageIndex)), vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutColorAttachmentOptimal, 0, 1)

	e.recordOverlayPass(cmd, imageIndex)

	alloc.TransitionImage(cmd, e.swap.Image(int(imageIndex)), vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc, 0, 1)

	if err := slot.Submit(e.graphicsQueue); err != nil {
		return err
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.RenderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{e.swap.Handle()},
		PImageIndices:      []uint32{imageIndex},
	}
	ret = vk.QueuePresent(e.presentQueue, &presentInfo)
	if ret == vk.ErrorOutOfDate || ret == vk.Suboptimal {
		e.RequestResize()
	} else if err := vkerr.CheckResult(vkerr.KindResource, "engine.Engine.DrawFrame.present", ret); err != nil {
		return err
	}

	e.frameNumber++
	return nil
}

// pipelineIDForPass and materialIDForResources are the sort-key
// functions scene.Graph.BuildDrawContext uses to group draws by
// pipeline then material (spec.md §4.8). Resources pointers are
// loaded once and never move, so their address is a stable surrogate
// sort key without requiring vk handles to be ordered.
func pipelineIDForPass(pass material.Pass) uint64 { return uint64(pass) }

func materialIDForResources(res *material.Resources) uint64 {
	return uint64(uintptr(unsafe.Pointer(res)))
}

// writeSceneDescriptor allocates and writes this frame's set-0 global
// scene-uniform descriptor set, bound once per pipeline change rather
// than once per material (spec.md §4.9 step 6; original_source/
// vk_engine.cpp init_descriptors/draw()'s single per-frame
// writer.write_buffer(0, gpuSceneDataBuffer.buffer, ...)).
func (e *Engine) writeSceneDescriptor(frameAllocator *descriptor.GrowableAllocator, sceneUniform *alloc.Buffer) (vk.DescriptorSet, error) {
	set, err := frameAllocator.Allocate(e.sceneLayout.Handle)
	if err != nil {
		return vk.NullDescriptorSet, err
	}
	var w descriptor.Writer
	w.WriteBuffer(0, sceneUniform.Handle, vk.DeviceSize(unsafe.Sizeof(GPUSceneData{})), 0, vk.DescriptorTypeUniformBuffer)
	w.UpdateSet(e.shared.Device.Logical, set)
	return set, nil
}

// bindMaterials is update_scene's descriptor half (spec.md §4.9 step 1):
// for every distinct Resources referenced this frame, write one fresh
// set-1 material descriptor set from the frame-scoped allocator, then
// stamp the set onto every RenderObject that shares it. Distinct
// Resources are deduplicated so a material reused by many nodes costs
// one allocation, not one per node.
func (e *Engine) bindMaterials(slot *frame.Slot, ctx *scene.DrawContext) error {
	sets := make(map[*material.Resources]vk.DescriptorSet)
	bind := func(objs []scene.RenderObject) error {
		for i := range objs {
			res := objs[i].Resources
			if res == nil {
				continue
			}
			set, ok := sets[res]
			if !ok {
				inst, err := e.shared.Material.Write(slot.Descriptors, objs[i].Pass, *res)
				if err != nil {
					return err
				}
				set = inst.Set
				sets[res] = set
			}
			objs[i].Set = set
		}
		return nil
	}
	if err := bind(ctx.Opaque); err != nil {
		return err
	}
	return bind(ctx.Transparent)
}

func (e *Engine) recordGeometryPass(cmd vk.CommandBuffer, ctx *scene.DrawContext, sceneSet vk.DescriptorSet) {
	extent := e.swap.Extent()
	colorAttach := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   e.drawImage.View,
		ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
		LoadOp:      vk.AttachmentLoadOpLoad,
		StoreOp:     vk.AttachmentStoreOpStore,
	}
	depthAttach := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   e.depthImage.View,
		ImageLayout: vk.ImageLayoutDepthAttachmentOptimal,
		LoadOp:      vk.AttachmentLoadOpClear,
		StoreOp:     vk.AttachmentStoreOpStore,
	}
	depthAttach.ClearValue.SetDepthStencil(0, 0) // reverse-Z: far clears to 0.0

	vk.CmdBeginRendering(cmd, &vk.RenderingInfo{
		SType:                vk.StructureTypeRenderingInfo,
		RenderArea:           vk.Rect2D{Extent: extent},
		LayerCount:           1,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.RenderingAttachmentInfo{colorAttach},
		PDepthAttachment:     &depthAttach,
	})

	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{{
		Width: float32(extent.Width), Height: float32(extent.Height), MinDepth: 0, MaxDepth: 1,
	}})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{{Extent: extent}})

	var lastPipeline vk.Pipeline
	var lastMaterial, zeroSet vk.DescriptorSet
	var lastIndexBuffer vk.Buffer

	draw := func(obj scene.RenderObject, variant pipeline.Variant) {
		var p vk.Pipeline
		if variant == pipeline.Opaque {
			p = e.shared.Pipeline.Opaque
		} else {
			p = e.shared.Pipeline.Transparent
		}
		if p != lastPipeline {
			vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, p)
			vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, e.shared.Pipeline.Layout, 0, 1,
				[]vk.DescriptorSet{sceneSet}, 0, nil)
			lastPipeline = p
		}
		if obj.Set != zeroSet && obj.Set != lastMaterial {
			vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, e.shared.Pipeline.Layout, 1, 1,
				[]vk.DescriptorSet{obj.Set}, 0, nil)
			lastMaterial = obj.Set
		}
		if obj.IndexBuffer != lastIndexBuffer {
			vk.CmdBindIndexBuffer(cmd, obj.IndexBuffer, 0, vk.IndexTypeUint32)
			lastIndexBuffer = obj.IndexBuffer
		}

		push := pipeline.PushConstants{VertexBufferAddress: uint64(obj.VertexBufferAddress)}
		copyMat4(push.WorldMatrix[:], obj.Transform)
		vk.CmdPushConstants(cmd, e.shared.Pipeline.Layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, pipeline.PushConstantSize, unsafe.Pointer(&push))

		vk.CmdDrawIndexed(cmd, obj.IndexCount, 1, obj.FirstIndex, 0, 0)
	}

	for _, obj := range ctx.Opaque {
		draw(obj, pipeline.Opaque)
	}
	for _, obj := range ctx.Transparent {
		draw(obj, pipeline.Transparent)
	}

	vk.CmdEndRendering(cmd)
}

func (e *Engine) recordOverlayPass(cmd vk.CommandBuffer, imageIndex uint32) {
	extent := e.swap.Extent()
	colorAttach := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   e.swap.View(int(imageIndex)),
		ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
		LoadOp:      vk.AttachmentLoadOpLoad,
		StoreOp:     vk.AttachmentStoreOpStore,
	}
	vk.CmdBeginRendering(cmd, &vk.RenderingInfo{
		SType:                vk.StructureTypeRenderingInfo,
		RenderArea:           vk.Rect2D{Extent: extent},
		LayerCount:           1,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.RenderingAttachmentInfo{colorAttach},
	})
	if e.overlay != nil {
		e.overlay.RecordDraws(cmd)
	}
	vk.CmdEndRendering(cmd)
}

func blitDrawToSwapchain(cmd vk.CommandBuffer, src *alloc.Image, dst vk.Image, dstExtent vk.Extent2D) {
	blit := vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LayerCount: 1},
		DstSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LayerCount: 1},
	}
	blit.SrcOffsets[1] = vk.Offset3D{X: int32(src.Extent.Width), Y: int32(src.Extent.Height), Z: 1}
	blit.DstOffsets[1] = vk.Offset3D{X: int32(dstExtent.Width), Y: int32(dstExtent.Height), Z: 1}
	vk.CmdBlitImage(cmd, src.Handle, vk.ImageLayoutTransferSrcOptimal, dst, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{blit}, vk.FilterLinear)
}

func copyMat4(dst []float32, m math32.Mat4) {
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			dst[c*4+r] = m[c][r]
		}
	}
}

// Destroy flushes every frame slot's deletion queue (each in LIFO
// order), then tears down the frame ring, offscreen images and
// persistent scene uniform buffers, per spec.md §5 shutdown ordering.
// Callers wait for device idle before calling this.
func (e *Engine) Destroy() {
	for i := 0; i < e.ring.Len(); i++ {
		e.ring.Slot(uint64(i)).Deletions.Flush(e.shared.Device.Logical)
	}
	e.ring.Destroy()
	for _, buf := range e.sceneUniforms {
		e.shared.Alloc.DestroyBuffer(buf)
	}
	e.background.Destroy(e.shared.Device.Logical)
	e.backgroundAlloc.DestroyPools()
	vk.DestroyDescriptorSetLayout(e.shared.Device.Logical, e.sceneLayout.Handle, nil)
	e.shared.Alloc.DestroyImage(e.drawImage)
	e.shared.Alloc.DestroyImage(e.depthImage)
	e.swap.Destroy()
}

// DescriptorAllocatorFor exposes the descriptor sub-allocator of the
// frame slot that frameNumber maps to, the kind of allocator
// material.Registry.Write takes.
func (e *Engine) DescriptorAllocatorFor(frameNumber uint64) *descriptor.GrowableAllocator {
	return e.ring.Slot(frameNumber).Descriptors
}
