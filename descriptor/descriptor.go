// Package descriptor implements the layout builder, growable pool
// allocator and write batcher of spec.md §4.5. Grounded on
// original_source/vk_descriptors.h (DescriptorLayoutBuilder,
// DescriptorAllocatorGrowable, DescriptorWriter), translated to Go and
// named to match the reference Go engine's pools.go register.
package descriptor

import (
	"container/list"

	vk "github.com/vulkan-go/vulkan"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

// Layout is an immutable, cached descriptor set layout.
type Layout struct {
	Handle   vk.DescriptorSetLayout
	Bindings []vk.DescriptorSetLayoutBinding
}

// LayoutBuilder accumulates (binding, kind) entries before yielding an
// immutable Layout with a specified stage mask.
type LayoutBuilder struct {
	bindings []vk.DescriptorSetLayoutBinding
}

// AddBinding appends one binding entry.
func (b *LayoutBuilder) AddBinding(binding uint32, kind vk.DescriptorType) {
	b.bindings = append(b.bindings, vk.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorType:  kind,
		DescriptorCount: 1,
	})
}

// Clear empties the builder so it can be reused.
func (b *LayoutBuilder) Clear() {
	b.bindings = b.bindings[:0]
}

// Build finalizes the layout with the given shader stage mask applied
// to every accumulated binding.
func (b *LayoutBuilder) Build(device vk.Device, stages vk.ShaderStageFlags) (*Layout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(b.bindings))
	copy(bindings, b.bindings)
	for i := range bindings {
		bindings[i].StageFlags = stages
	}

	var handle vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &handle)
	if err := vkerr.CheckResult(vkerr.KindInit, "descriptor.LayoutBuilder.Build", ret); err != nil {
		return nil, err
	}
	return &Layout{Handle: handle, Bindings: bindings}, nil
}

// PoolSizeRatio is one entry of a pool's size-ratio table: `ratio *
// setsPerPool` descriptors of `Type` are reserved per pool.
type PoolSizeRatio struct {
	Type  vk.DescriptorType
	Ratio float32
}

// DefaultPoolRatios is the ratio table used by the per-frame
// descriptor allocator (scene uniform + material images dominate).
func DefaultPoolRatios() []PoolSizeRatio {
	return []PoolSizeRatio{
		{vk.DescriptorTypeUniformBuffer, 2},
		{vk.DescriptorTypeCombinedImageSampler, 4},
		{vk.DescriptorTypeStorageBuffer, 1},
	}
}

const maxSetsPerPoolCap = 4092

// GrowableAllocator owns ready/full pool lists and grows setsPerPool by
// 1.5x per reallocation, capped at 4092 (spec.md §4.5).
type GrowableAllocator struct {
	device       vk.Device
	ratios       []PoolSizeRatio
	ready        []vk.DescriptorPool
	full         []vk.DescriptorPool
	setsPerPool  uint32
}

// NewGrowableAllocator seeds the allocator with one pool sized for
// initialSets descriptor sets.
func NewGrowableAllocator(device vk.Device, initialSets uint32, ratios []PoolSizeRatio) *GrowableAllocator {
	a := &GrowableAllocator{device: device, ratios: ratios}
	pool := a.createPool(initialSets)
	a.ready = append(a.ready, pool)
	grown := uint32(float64(initialSets) * 1.5)
	if grown > maxSetsPerPoolCap {
		grown = maxSetsPerPoolCap
	}
	a.setsPerPool = grown
	return a
}

func (a *GrowableAllocator) createPool(setCount uint32) vk.DescriptorPool {
	sizes := make([]vk.DescriptorPoolSize, len(a.ratios))
	for i, r := range a.ratios {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            r.Type,
			DescriptorCount: uint32(r.Ratio * float32(setCount)),
		}
	}
	var pool vk.DescriptorPool
	vk.CreateDescriptorPool(a.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       setCount,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	return pool
}

func (a *GrowableAllocator) getPool() vk.DescriptorPool {
	if len(a.ready) > 0 {
		pool := a.ready[len(a.ready)-1]
		a.ready = a.ready[:len(a.ready)-1]
		return pool
	}
	pool := a.createPool(a.setsPerPool)
	grown := uint32(float64(a.setsPerPool) * 1.5)
	if grown > maxSetsPerPoolCap {
		grown = maxSetsPerPoolCap
	}
	a.setsPerPool = grown
	return pool
}

// Allocate returns a descriptor set of the given layout, growing the
// pool list on OutOfPoolMemory/FragmentedPool and retrying once per
// freshly created pool (spec.md §4.5).
func (a *GrowableAllocator) Allocate(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	pool := a.getPool()
	layouts := []vk.DescriptorSetLayout{layout}
	sets := make([]vk.DescriptorSet, 1)

	ret := vk.AllocateDescriptorSets(a.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        layouts,
	}, sets)

	if ret == vk.ErrorOutOfPoolMemory || ret == vk.ErrorFragmentedPool {
		a.full = append(a.full, pool)
		pool = a.getPool()
		ret = vk.AllocateDescriptorSets(a.device, &vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     pool,
			DescriptorSetCount: 1,
			PSetLayouts:        layouts,
		}, sets)
	}
	if err := vkerr.CheckResult(vkerr.KindResource, "descriptor.GrowableAllocator.Allocate", ret); err != nil {
		return vk.NullDescriptorSet, err
	}
	a.ready = append(a.ready, pool)
	return sets[0], nil
}

// ResetPools returns all full pools to ready and resets every pool,
// run on entering Recording for a frame slot (spec.md §4.3).
func (a *GrowableAllocator) ResetPools() {
	for _, p := range a.ready {
		vk.ResetDescriptorPool(a.device, p, 0)
	}
	for _, p := range a.full {
		vk.ResetDescriptorPool(a.device, p, 0)
		a.ready = append(a.ready, p)
	}
	a.full = a.full[:0]
}

// DestroyPools disposes every pool the allocator owns.
func (a *GrowableAllocator) DestroyPools() {
	for _, p := range a.ready {
		vk.DestroyDescriptorPool(a.device, p, nil)
	}
	for _, p := range a.full {
		vk.DestroyDescriptorPool(a.device, p, nil)
	}
	a.ready = nil
	a.full = nil
}

// Writer accumulates image and buffer writes in order, then commits
// them to a single descriptor set. Image/buffer info structs are kept
// in a container/list so appending never invalidates a previously
// taken pointer, mirroring the std::deque stability the original
// DescriptorWriter relies on.
type Writer struct {
	imageInfos  list.List
	bufferInfos list.List
	writes      []vk.WriteDescriptorSet
}

// WriteImage appends an image/sampler write for binding.
func (w *Writer) WriteImage(binding uint32, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout, kind vk.DescriptorType) {
	info := &vk.DescriptorImageInfo{Sampler: sampler, ImageView: view, ImageLayout: layout}
	elem := w.imageInfos.PushBack(info)
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  kind,
		PImageInfo:      []vk.DescriptorImageInfo{*(elem.Value.(*vk.DescriptorImageInfo))},
	})
}

// WriteBuffer appends a buffer-range write for binding.
func (w *Writer) WriteBuffer(binding uint32, buffer vk.Buffer, size, offset vk.DeviceSize, kind vk.DescriptorType) {
	info := &vk.DescriptorBufferInfo{Buffer: buffer, Offset: offset, Range: size}
	elem := w.bufferInfos.PushBack(info)
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  kind,
		PBufferInfo:     []vk.DescriptorBufferInfo{*(elem.Value.(*vk.DescriptorBufferInfo))},
	})
}

// Clear empties all pending writes.
func (w *Writer) Clear() {
	w.imageInfos.Init()
	w.bufferInfos.Init()
	w.writes = w.writes[:0]
}

// Len reports the number of pending writes, used by tests to verify
// append-only accumulation without a real device.
func (w *Writer) Len() int { return len(w.writes) }

// UpdateSet commits every pending write to set and clears the batch.
func (w *Writer) UpdateSet(device vk.Device, set vk.DescriptorSet) {
	writes := make([]vk.WriteDescriptorSet, len(w.writes))
	copy(writes, w.writes)
	for i := range writes {
		writes[i].DstSet = set
	}
	vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)
}
