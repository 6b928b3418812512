// Package frame implements the fixed-size ring of per-frame state:
// command pool + primary command buffer, image-available semaphore,
// render-finished semaphore, in-flight fence, a per-frame descriptor
// sub-allocator and a deletion queue scoped to the frame. Grounded on
// the reference engine's instance.go PerFrame/init_per_frame, recast
// as an explicit state machine per spec.md §4.3.
package frame

import (
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/deletion"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/descriptor"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

// State is one of the three positions in a slot's lifecycle.
type State int

const (
	Idle State = iota
	Recording
	Submitted
)

// FenceTimeout is the bounded wait on a slot's fence before the driver
// reports a device-lost error (spec.md §4.3, §5).
const FenceTimeout = 1 * time.Second

// Slot is one element of the frame ring.
type Slot struct {
	state State

	device        vk.Device
	CommandPool   vk.CommandPool
	CommandBuffer vk.CommandBuffer

	ImageAvailable vk.Semaphore
	RenderFinished vk.Semaphore
	InFlightFence  vk.Fence

	Descriptors *descriptor.GrowableAllocator
	Deletions   deletion.Queue
}

// NewSlot allocates the command pool/buffer, the two semaphores and
// the fence (created signaled, spec.md §3 "Frame slot" and §8
// "First frame: slot fences start signaled").
func NewSlot(device vk.Device, queueFamily uint32) (*Slot, error) {
	s := &Slot{device: device, state: Idle}

	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: queueFamily,
	}, nil, &pool)
	if err := vkerr.CheckResult(vkerr.KindInit, "frame.NewSlot.pool", ret); err != nil {
		return nil, err
	}
	s.CommandPool = pool

	buffers := make([]vk.CommandBuffer, 1)
	ret = vk.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := vkerr.CheckResult(vkerr.KindInit, "frame.NewSlot.buffer", ret); err != nil {
		return nil, err
	}
	s.CommandBuffer = buffers[0]

	var imageAvail, renderDone vk.Semaphore
	ret = vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &imageAvail)
	if err := vkerr.CheckResult(vkerr.KindInit, "frame.NewSlot.semaphore", ret); err != nil {
		return nil, err
	}
	ret = vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &renderDone)
	if err := vkerr.CheckResult(vkerr.KindInit, "frame.NewSlot.semaphore", ret); err != nil {
		return nil, err
	}
	s.ImageAvailable = imageAvail
	s.RenderFinished = renderDone

	var fence vk.Fence
	ret = vk.CreateFence(device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}, nil, &fence)
	if err := vkerr.CheckResult(vkerr.KindInit, "frame.NewSlot.fence", ret); err != nil {
		return nil, err
	}
	s.InFlightFence = fence

	s.Descriptors = descriptor.NewGrowableAllocator(device, 1000, descriptor.DefaultPoolRatios())

	return s, nil
}

// State reports the slot's current lifecycle position.
func (s *Slot) State() State { return s.state }

// BeginRecording waits on the slot's fence (bounded by FenceTimeout),
// resets it, flushes the slot's deletion queue, resets its descriptor
// allocator, resets the command buffer and begins one-time-submit
// recording. This implements the transition Idle -> Recording from
// spec.md §4.3.
func (s *Slot) BeginRecording() error {
	fences := []vk.Fence{s.InFlightFence}
	ret := vk.WaitForFences(s.device, 1, fences, vk.True, uint64(FenceTimeout.Nanoseconds()))
	if ret == vk.Timeout {
		return vkerr.New(vkerr.KindDeviceLost, "frame.Slot.BeginRecording", ret, nil)
	}
	if err := vkerr.CheckResult(vkerr.KindDeviceLost, "frame.Slot.BeginRecording", ret); err != nil {
		return err
	}
	vk.ResetFences(s.device, 1, fences)

	s.Deletions.Flush(s.device)
	s.Descriptors.ResetPools()

	vk.ResetCommandBuffer(s.CommandBuffer, vk.CommandBufferResetFlags(0))
	ret = vk.BeginCommandBuffer(s.CommandBuffer, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := vkerr.CheckResult(vkerr.KindResource, "frame.Slot.BeginRecording", ret); err != nil {
		return err
	}

	s.state = Recording
	return nil
}

// Submit ends command-buffer recording and submits, waiting on
// ImageAvailable at ColorAttachmentOutput and signaling RenderFinished
// and InFlightFence on completion (spec.md §4.9 step 10).
func (s *Slot) Submit(queue vk.Queue) error {
	ret := vk.EndCommandBuffer(s.CommandBuffer)
	if err := vkerr.CheckResult(vkerr.KindResource, "frame.Slot.Submit", ret); err != nil {
		return err
	}

	waitStage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	ret = vk.QueueSubmit(queue, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{s.ImageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{waitStage},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{s.CommandBuffer},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{s.RenderFinished},
	}}, s.InFlightFence)
	if err := vkerr.CheckResult(vkerr.KindResource, "frame.Slot.Submit", ret); err != nil {
		return err
	}

	s.state = Submitted
	return nil
}

// MarkIdle transitions Submitted -> Idle once the caller has observed
// the fence signaled (the next BeginRecording call also waits on it,
// so this is informational bookkeeping for callers that inspect State()).
func (s *Slot) MarkIdle() { s.state = Idle }

// Destroy releases every Vulkan handle owned directly by the slot and
// destroys its descriptor allocator's pools. It does not flush the
// slot's deletion queue; the caller does that first (spec.md §5
// shutdown LIFO flush).
func (s *Slot) Destroy() {
	vk.DestroyFence(s.device, s.InFlightFence, nil)
	vk.DestroySemaphore(s.device, s.RenderFinished, nil)
	vk.DestroySemaphore(s.device, s.ImageAvailable, nil)
	vk.DestroyCommandPool(s.device, s.CommandPool, nil)
	s.Descriptors.DestroyPools()
}

// Ring is the fixed-size array of frame slots.
type Ring struct {
	slots []*Slot
}

// NewRing builds count slots (config.MaxFramesInFlight, default 2).
func NewRing(device vk.Device, queueFamily uint32, count int) (*Ring, error) {
	r := &Ring{slots: make([]*Slot, count)}
	for i := 0; i < count; i++ {
		s, err := NewSlot(device, queueFamily)
		if err != nil {
			return nil, err
		}
		r.slots[i] = s
	}
	return r, nil
}

// Len returns the ring's size F.
func (r *Ring) Len() int { return len(r.slots) }

// Slot returns the slot for frame number n (n mod F).
func (r *Ring) Slot(frameNumber uint64) *Slot {
	return r.slots[int(frameNumber)%len(r.slots)]
}

// Destroy tears down every slot.
func (r *Ring) Destroy() {
	for _, s := range r.slots {
		s.Destroy()
	}
}
