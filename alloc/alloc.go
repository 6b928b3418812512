// Package alloc owns device/host buffer and image creation, the
// staging upload paths for meshes and textures, mip-chain generation
// and the fixed layout-transition table. Grounded on the reference
// engine's extensions.go (CreateBuffer, FindRequiredMemoryType) and
// original_source/vk_images.cpp + vk_engine.cpp (create_image,
// transition_image, immediate_submit), translated to an explicit
// lookup table per spec.md §4.4.
package alloc

import (
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

// Buffer is a device allocation paired with its bound memory. Mapped
// is non-nil only for host-visible buffers created with persistent
// mapping.
type Buffer struct {
	Handle  vk.Buffer
	Memory  vk.DeviceMemory
	Size    vk.DeviceSize
	Address vk.DeviceAddress
	Mapped  unsafe.Pointer
}

// Image is a device-local image with its default full-mip view.
type Image struct {
	Handle    vk.Image
	View      vk.ImageView
	Memory    vk.DeviceMemory
	Extent    vk.Extent3D
	Format    vk.Format
	MipLevels uint32
}

// ImmediateSubmitTimeout bounds the staging-upload fence wait
// (spec.md §5).
const ImmediateSubmitTimeout = 10 * time.Second

// Allocator creates buffers and images and drives the dedicated
// immediate-submit command buffer used by both upload paths.
type Allocator struct {
	device      vk.Device
	memProps    vk.PhysicalDeviceMemoryProperties
	queue       vk.Queue
	pool        vk.CommandPool
	cmd         vk.CommandBuffer
	fence       vk.Fence
}

// New builds the allocator and its immediate-submit command buffer,
// drawn from queueFamily/queue (normally the graphics queue).
func New(device vk.Device, memProps vk.PhysicalDeviceMemoryProperties, queueFamily uint32, queue vk.Queue) (*Allocator, error) {
	a := &Allocator{device: device, memProps: memProps, queue: queue}

	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: queueFamily,
	}, nil, &pool)
	if err := vkerr.CheckResult(vkerr.KindInit, "alloc.New.pool", ret); err != nil {
		return nil, err
	}
	a.pool = pool

	buffers := make([]vk.CommandBuffer, 1)
	ret = vk.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := vkerr.CheckResult(vkerr.KindInit, "alloc.New.buffer", ret); err != nil {
		return nil, err
	}
	a.cmd = buffers[0]

	var fence vk.Fence
	ret = vk.CreateFence(device, &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}, nil, &fence)
	if err := vkerr.CheckResult(vkerr.KindInit, "alloc.New.fence", ret); err != nil {
		return nil, err
	}
	a.fence = fence

	return a, nil
}

// Destroy releases the immediate-submit command pool and fence. It
// does not own any Buffer/Image it created; callers queue those
// through a deletion.Queue.
func (a *Allocator) Destroy() {
	vk.DestroyFence(a.device, a.fence, nil)
	vk.DestroyCommandPool(a.device, a.pool, nil)
}

func (a *Allocator) memoryTypeIndex(typeBits uint32, want vk.MemoryPropertyFlagBits) (uint32, bool) {
	a.memProps.Deref()
	for i := uint32(0); i < a.memProps.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		a.memProps.MemoryTypes[i].Deref()
		if a.memProps.MemoryTypes[i].PropertyFlags&vk.MemoryPropertyFlags(want) == vk.MemoryPropertyFlags(want) {
			return i, true
		}
	}
	return 0, false
}

// CreateDeviceBuffer allocates a device-local buffer with no host
// mapping (index, vertex, uniform, storage). If usage includes
// ShaderDeviceAddress the buffer's address is queried and recorded on
// the returned Buffer (spec.md §4.4 path 1).
func (a *Allocator) CreateDeviceBuffer(size vk.DeviceSize, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	b, err := a.createBuffer(size, usage, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return nil, err
	}
	if usage&vk.BufferUsageFlagBits(vk.BufferUsageShaderDeviceAddressBit) != 0 {
		b.Address = vk.GetBufferDeviceAddress(a.device, &vk.BufferDeviceAddressInfo{
			SType:  vk.StructureTypeBufferDeviceAddressInfo,
			Buffer: b.Handle,
		})
	}
	return b, nil
}

// CreateHostBuffer allocates a host-visible, host-coherent buffer,
// mapped persistently for the caller's lifetime of use (spec.md §4.4
// path 2).
func (a *Allocator) CreateHostBuffer(size vk.DeviceSize, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	b, err := a.createBuffer(size, usage, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, err
	}
	var mapped unsafe.Pointer
	ret := vk.MapMemory(a.device, b.Memory, 0, size, 0, &mapped)
	if err := vkerr.CheckResult(vkerr.KindResource, "alloc.CreateHostBuffer.map", ret); err != nil {
		return nil, err
	}
	b.Mapped = mapped
	return b, nil
}

func (a *Allocator) createBuffer(size vk.DeviceSize, usage vk.BufferUsageFlagBits, memFlags vk.MemoryPropertyFlagBits) (*Buffer, error) {
	var handle vk.Buffer
	ret := vk.CreateBuffer(a.device, &vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  size,
		Usage: vk.BufferUsageFlags(usage),
	}, nil, &handle)
	if err := vkerr.CheckResult(vkerr.KindResource, "alloc.createBuffer", ret); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(a.device, handle, &reqs)
	reqs.Deref()

	typeIndex, ok := a.memoryTypeIndex(reqs.MemoryTypeBits, memFlags)
	if !ok {
		vk.DestroyBuffer(a.device, handle, nil)
		return nil, vkerr.New(vkerr.KindResource, "alloc.createBuffer", vk.ErrorOutOfDeviceMemory, nil)
	}

	allocFlags := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIndex,
	}
	if usage&vk.BufferUsageFlagBits(vk.BufferUsageShaderDeviceAddressBit) != 0 {
		flagsInfo := vk.MemoryAllocateFlagsInfo{
			SType: vk.StructureTypeMemoryAllocateFlagsInfo,
			Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
		}
		allocFlags.PNext = unsafe.Pointer(&flagsInfo)
	}

	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(a.device, &allocFlags, nil, &memory)
	if err := vkerr.CheckResult(vkerr.KindResource, "alloc.createBuffer.allocate", ret); err != nil {
		vk.DestroyBuffer(a.device, handle, nil)
		return nil, err
	}
	vk.BindBufferMemory(a.device, handle, memory, 0)

	return &Buffer{Handle: handle, Memory: memory, Size: size}, nil
}

// DestroyBuffer unmaps (if mapped) and releases a buffer immediately.
// Callers that need LIFO-ordered teardown push to a deletion.Queue
// instead.
func (a *Allocator) DestroyBuffer(b *Buffer) {
	if b.Mapped != nil {
		vk.UnmapMemory(a.device, b.Memory)
	}
	vk.DestroyBuffer(a.device, b.Handle, nil)
	vk.FreeMemory(a.device, b.Memory, nil)
}

// CreateImage allocates a device-local image and its default view
// (aspect mask derived from format, full mip range). A mipLevels of 0
// is treated as 1 (spec.md §4.4 path 3).
func (a *Allocator) CreateImage(extent vk.Extent3D, format vk.Format, usage vk.ImageUsageFlagBits, mipLevels uint32) (*Image, error) {
	if mipLevels == 0 {
		mipLevels = 1
	}

	var handle vk.Image
	ret := vk.CreateImage(a.device, &vk.ImageCreateInfo{
		SType:       vk.StructureTypeImageCreateInfo,
		ImageType:   vk.ImageType2d,
		Format:      format,
		Extent:      extent,
		MipLevels:   mipLevels,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &handle)
	if err := vkerr.CheckResult(vkerr.KindResource, "alloc.CreateImage", ret); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(a.device, handle, &reqs)
	reqs.Deref()
	typeIndex, ok := a.memoryTypeIndex(reqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if !ok {
		vk.DestroyImage(a.device, handle, nil)
		return nil, vkerr.New(vkerr.KindResource, "alloc.CreateImage", vk.ErrorOutOfDeviceMemory, nil)
	}

	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(a.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if err := vkerr.CheckResult(vkerr.KindResource, "alloc.CreateImage.allocate", ret); err != nil {
		vk.DestroyImage(a.device, handle, nil)
		return nil, err
	}
	vk.BindImageMemory(a.device, handle, memory, 0)

	aspect := vk.ImageAspectColorBit
	if format == vk.FormatD32Sfloat || format == vk.FormatD32SfloatS8Uint || format == vk.FormatD24UnormS8Uint {
		aspect = vk.ImageAspectDepthBit
	}

	var view vk.ImageView
	ret = vk.CreateImageView(a.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: mipLevels,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := vkerr.CheckResult(vkerr.KindResource, "alloc.CreateImage.view", ret); err != nil {
		vk.FreeMemory(a.device, memory, nil)
		vk.DestroyImage(a.device, handle, nil)
		return nil, err
	}

	return &Image{Handle: handle, View: view, Memory: memory, Extent: extent, Format: format, MipLevels: mipLevels}, nil
}

// DestroyImage releases a view, image and its memory immediately.
func (a *Allocator) DestroyImage(img *Image) {
	vk.DestroyImageView(a.device, img.View, nil)
	vk.DestroyImage(a.device, img.Handle, nil)
	vk.FreeMemory(a.device, img.Memory, nil)
}

// ImmediateSubmit resets the dedicated fence and command buffer,
// records fn, submits and waits up to ImmediateSubmitTimeout
// (spec.md §5). fn's own error short-circuits recording.
func (a *Allocator) ImmediateSubmit(fn func(cmd vk.CommandBuffer) error) error {
	fences := []vk.Fence{a.fence}
	vk.ResetFences(a.device, 1, fences)
	vk.ResetCommandBuffer(a.cmd, vk.CommandBufferResetFlags(0))

	ret := vk.BeginCommandBuffer(a.cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := vkerr.CheckResult(vkerr.KindResource, "alloc.ImmediateSubmit.begin", ret); err != nil {
		return err
	}

	if err := fn(a.cmd); err != nil {
		return err
	}

	ret = vk.EndCommandBuffer(a.cmd)
	if err := vkerr.CheckResult(vkerr.KindResource, "alloc.ImmediateSubmit.end", ret); err != nil {
		return err
	}

	ret = vk.QueueSubmit(a.queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{a.cmd},
	}}, a.fence)
	if err := vkerr.CheckResult(vkerr.KindResource, "alloc.ImmediateSubmit.submit", ret); err != nil {
		return err
	}

	ret = vk.WaitForFences(a.device, 1, fences, vk.True, uint64(ImmediateSubmitTimeout.Nanoseconds()))
	if ret == vk.Timeout {
		return vkerr.New(vkerr.KindDeviceLost, "alloc.ImmediateSubmit.wait", ret, nil)
	}
	return vkerr.CheckResult(vkerr.KindDeviceLost, "alloc.ImmediateSubmit.wait", ret)
}

// UploadMesh builds one staging buffer sized len(vertexData)+
// len(indexData) bytes, copies vertex data at offset 0 and index data
// at offset len(vertexData), then issues an immediate submit with two copyBuffer
// regions into freshly created device-local destinations (spec.md
// §4.4 "Upload path (mesh)"). The vertex buffer carries
// ShaderDeviceAddressBit for bindless fetch.
func (a *Allocator) UploadMesh(vertexData, indexData []byte) (vertexBuf, indexBuf *Buffer, err error) {
	total := vk.DeviceSize(len(vertexData) + len(indexData))
	staging, err := a.CreateHostBuffer(total, vk.BufferUsageTransferSrcBit)
	if err != nil {
		return nil, nil, err
	}
	defer a.DestroyBuffer(staging)

	dst := unsafe.Slice((*byte)(staging.Mapped), total)
	copy(dst[:len(vertexData)], vertexData)
	copy(dst[len(vertexData):], indexData)

	vertexBuf, err = a.CreateDeviceBuffer(vk.DeviceSize(len(vertexData)),
		vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit|vk.BufferUsageShaderDeviceAddressBit|vk.BufferUsageStorageBufferBit)
	if err != nil {
		return nil, nil, err
	}
	indexBuf, err = a.CreateDeviceBuffer(vk.DeviceSize(len(indexData)), vk.BufferUsageIndexBufferBit|vk.BufferUsageTransferDstBit)
	if err != nil {
		a.DestroyBuffer(vertexBuf)
		return nil, nil, err
	}

	err = a.ImmediateSubmit(func(cmd vk.CommandBuffer) error {
		vk.CmdCopyBuffer(cmd, staging.Handle, vertexBuf.Handle, 1, []vk.BufferCopy{{
			SrcOffset: 0, DstOffset: 0, Size: vk.DeviceSize(len(vertexData)),
		}})
		vk.CmdCopyBuffer(cmd, staging.Handle, indexBuf.Handle, 1, []vk.BufferCopy{{
			SrcOffset: vk.DeviceSize(len(vertexData)), DstOffset: 0, Size: vk.DeviceSize(len(indexData)),
		}})
		return nil
	})
	if err != nil {
		a.DestroyBuffer(vertexBuf)
		a.DestroyBuffer(indexBuf)
		return nil, nil, err
	}
	return vertexBuf, indexBuf, nil
}

// UploadTexture stages w*h*4 RGBA8 bytes, transitions the destination
// image Undefined->TransferDst, copies buffer to image level 0,
// generates the mip chain by iterative blits, then transitions every
// level to ShaderReadOnlyOptimal (spec.md §4.4 "Texture upload").
// mipmapped selects whether a full mip chain is generated.
func (a *Allocator) UploadTexture(pixels []byte, width, height uint32, format vk.Format, usage vk.ImageUsageFlagBits, mipmapped bool) (*Image, error) {
	mipLevels := uint32(1)
	if mipmapped {
		mipLevels = mipChainLength(width, height)
	}

	staging, err := a.CreateHostBuffer(vk.DeviceSize(len(pixels)), vk.BufferUsageTransferSrcBit)
	if err != nil {
		return nil, err
	}
	defer a.DestroyBuffer(staging)
	copy(unsafe.Slice((*byte)(staging.Mapped), len(pixels)), pixels)

	img, err := a.CreateImage(vk.Extent3D{Width: width, Height: height, Depth: 1}, format,
		usage|vk.ImageUsageFlagBits(vk.ImageUsageTransferDstBit)|vk.ImageUsageFlagBits(vk.ImageUsageTransferSrcBit), mipLevels)
	if err != nil {
		return nil, err
	}

	err = a.ImmediateSubmit(func(cmd vk.CommandBuffer) error {
		TransitionImage(cmd, img.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal, 0, 1)
		vk.CmdCopyBufferToImage(cmd, staging.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:   0,
				LayerCount: 1,
			},
			ImageExtent: img.Extent,
		}})
		if mipLevels > 1 {
			return generateMipChain(cmd, img)
		}
		TransitionImage(cmd, img.Handle, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal, 0, 1)
		return nil
	})
	if err != nil {
		a.DestroyImage(img)
		return nil, err
	}
	return img, nil
}

func mipChainLength(w, h uint32) uint32 {
	m := w
	if h > m {
		m = h
	}
	levels := uint32(1)
	for m > 1 {
		m /= 2
		levels++
	}
	return levels
}

// generateMipChain blits level i into level i+1 (each dimension
// halved, clamped at 1), transitioning the source level to
// TransferSrc before each blit, finally transitioning every level to
// ShaderReadOnlyOptimal.
func generateMipChain(cmd vk.CommandBuffer, img *Image) error {
	w, h := int32(img.Extent.Width), int32(img.Extent.Height)
	for level := uint32(0); level < img.MipLevels-1; level++ {
		TransitionImage(cmd, img.Handle, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal, level, 1)

		nextW, nextH := w/2, h/2
		if nextW < 1 {
			nextW = 1
		}
		if nextH < 1 {
			nextH = 1
		}

		blit := vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), MipLevel: level, LayerCount: 1},
			DstSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), MipLevel: level + 1, LayerCount: 1},
		}
		blit.SrcOffsets[1] = vk.Offset3D{X: w, Y: h, Z: 1}
		blit.DstOffsets[1] = vk.Offset3D{X: nextW, Y: nextH, Z: 1}

		vk.CmdBlitImage(cmd, img.Handle, vk.ImageLayoutTransferSrcOptimal, img.Handle, vk.ImageLayoutTransferDstOptimal,
			1, []vk.ImageBlit{blit}, vk.FilterLinear)

		w, h = nextW, nextH
	}

	for level := uint32(0); level < img.MipLevels-1; level++ {
		TransitionImage(cmd, img.Handle, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal, level, 1)
	}
	TransitionImage(cmd, img.Handle, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal, img.MipLevels-1, 1)
	return nil
}

type transitionKey struct {
	old, new vk.ImageLayout
}

type transitionMasks struct {
	srcStage  vk.PipelineStageFlags2
	srcAccess vk.AccessFlags2
	dstStage  vk.PipelineStageFlags2
	dstAccess vk.AccessFlags2
}

// transitionTable is the fixed (old, new) -> (stage, access) lookup
// spec.md §4.4 requires; any unhandled pair is a programming error.
var transitionTable = map[transitionKey]transitionMasks{
	{vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal}: {
		srcStage: vk.PipelineStageFlags2(vk.PipelineStageTopOfPipeBit), srcAccess: 0,
		dstStage: vk.PipelineStageFlags2(vk.PipelineStageTransferBit), dstAccess: vk.AccessFlags2(vk.AccessTransferWriteBit),
	},
	{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal}: {
		srcStage: vk.PipelineStageFlags2(vk.PipelineStageTransferBit), srcAccess: vk.AccessFlags2(vk.AccessTransferWriteBit),
		dstStage: vk.PipelineStageFlags2(vk.PipelineStageFragmentShaderBit) | vk.PipelineStageFlags2(vk.PipelineStageComputeShaderBit),
		dstAccess: vk.AccessFlags2(vk.AccessShaderReadBit),
	},
	{vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal}: {
		srcStage: vk.PipelineStageFlags2(vk.PipelineStageTransferBit), srcAccess: vk.AccessFlags2(vk.AccessTransferReadBit),
		dstStage: vk.PipelineStageFlags2(vk.PipelineStageFragmentShaderBit) | vk.PipelineStageFlags2(vk.PipelineStageComputeShaderBit),
		dstAccess: vk.AccessFlags2(vk.AccessShaderReadBit),
	},
	{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal}: {
		srcStage: vk.PipelineStageFlags2(vk.PipelineStageTransferBit), srcAccess: vk.AccessFlags2(vk.AccessTransferWriteBit),
		dstStage: vk.PipelineStageFlags2(vk.PipelineStageTransferBit), dstAccess: vk.AccessFlags2(vk.AccessTransferReadBit),
	},
	{vk.ImageLayoutUndefined, vk.ImageLayoutGeneral}: {
		srcStage: vk.PipelineStageFlags2(vk.PipelineStageTopOfPipeBit), srcAccess: 0,
		dstStage: vk.PipelineStageFlags2(vk.PipelineStageComputeShaderBit), dstAccess: vk.AccessFlags2(vk.AccessShaderWriteBit),
	},
	{vk.ImageLayoutGeneral, vk.ImageLayoutColorAttachmentOptimal}: {
		srcStage: vk.PipelineStageFlags2(vk.PipelineStageComputeShaderBit), srcAccess: vk.AccessFlags2(vk.AccessShaderWriteBit),
		dstStage: vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit),
		dstAccess: vk.AccessFlags2(vk.AccessColorAttachmentWriteBit) | vk.AccessFlags2(vk.AccessColorAttachmentReadBit),
	},
	{vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutTransferSrcOptimal}: {
		srcStage: vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit), srcAccess: vk.AccessFlags2(vk.AccessColorAttachmentWriteBit),
		dstStage: vk.PipelineStageFlags2(vk.PipelineStageTransferBit), dstAccess: vk.AccessFlags2(vk.AccessTransferReadBit),
	},
	{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutColorAttachmentOptimal}: {
		srcStage: vk.PipelineStageFlags2(vk.PipelineStageTransferBit), srcAccess: vk.AccessFlags2(vk.AccessTransferWriteBit),
		dstStage: vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit),
		dstAccess: vk.AccessFlags2(vk.AccessColorAttachmentWriteBit) | vk.AccessFlags2(vk.AccessColorAttachmentReadBit),
	},
	{vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc}: {
		srcStage: vk.PipelineStageFlags2(vk.PipelineStageColorAttachmentOutputBit), srcAccess: vk.AccessFlags2(vk.AccessColorAttachmentWriteBit),
		dstStage: vk.PipelineStageFlags2(vk.PipelineStageBottomOfPipeBit), dstAccess: 0,
	},
	{vk.ImageLayoutUndefined, vk.ImageLayoutDepthAttachmentOptimal}: {
		srcStage: vk.PipelineStageFlags2(vk.PipelineStageTopOfPipeBit), srcAccess: 0,
		dstStage: vk.PipelineStageFlags2(vk.PipelineStageEarlyFragmentTestsBit) | vk.PipelineStageFlags2(vk.PipelineStageLateFragmentTestsBit),
		dstAccess: vk.AccessFlags2(vk.AccessDepthStencilAttachmentWriteBit),
	},
}

// TransitionImage records a pipeline barrier moving image (levels
// [baseMip, baseMip+levelCount)) from old to new layout, with
// src/dst stage and access masks resolved from the fixed table. Any
// pair absent from the table is a programming error (spec.md §4.4).
func TransitionImage(cmd vk.CommandBuffer, image vk.Image, old, new vk.ImageLayout, baseMip, levelCount uint32) {
	masks, ok := transitionTable[transitionKey{old, new}]
	if !ok {
		panic(vkerr.New(vkerr.KindProgramming, "alloc.TransitionImage", vk.ErrorUnknown, nil).Error())
	}

	aspect := vk.ImageAspectColorBit
	if new == vk.ImageLayoutDepthAttachmentOptimal || new == vk.ImageLayoutDepthStencilAttachmentOptimal {
		aspect = vk.ImageAspectDepthBit
	}

	barrier := vk.ImageMemoryBarrier2{
		SType:               vk.StructureTypeImageMemoryBarrier2,
		SrcStageMask:        masks.srcStage,
		SrcAccessMask:       masks.srcAccess,
		DstStageMask:        masks.dstStage,
		DstAccessMask:       masks.dstAccess,
		OldLayout:           old,
		NewLayout:           new,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			BaseMipLevel:   baseMip,
			LevelCount:     levelCount,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	vk.CmdPipelineBarrier2(cmd, &vk.DependencyInfo{
		SType:                   vk.StructureTypeDependencyInfo,
		ImageMemoryBarrierCount: 1,
		PImageMemoryBarriers:    []vk.ImageMemoryBarrier2{barrier},
	})
}
