// Package deletion replaces the reference engine's closure-based
// DeletionQueue (a deque of type-erased std::function<void()>) with a
// queue of tagged destroy-records, interpreted by a single switch on
// flush. See SPEC_FULL.md §10 item 3.
package deletion

import vk "github.com/vulkan-go/vulkan"

// Kind tags which Vulkan handle kind a Record names.
type Kind int

const (
	KindBuffer Kind = iota
	KindImage
	KindImageView
	KindPipeline
	KindPipelineLayout
	KindDescriptorSetLayout
	KindDescriptorPool
	KindSampler
	KindSemaphore
	KindFence
	KindCommandPool
)

// Record is one destroy entry: a tagged Vulkan handle.
type Record struct {
	Kind   Kind
	Handle uint64
}

// Queue is a LIFO list of destroy records scoped to some lifetime
// (a frame slot, the immediate-submit path, or engine shutdown).
type Queue struct {
	records []Record
}

// Push appends a record to the end of the queue (flushed last-in-first-out).
func (q *Queue) Push(kind Kind, handle uint64) {
	q.records = append(q.records, Record{Kind: kind, Handle: handle})
}

// Len reports the number of pending records.
func (q *Queue) Len() int { return len(q.records) }

// Flush destroys every pending record in LIFO order against device,
// then empties the queue. Every Destroy* call is made with nil
// allocation callbacks.
func (q *Queue) Flush(device vk.Device) {
	for i := len(q.records) - 1; i >= 0; i-- {
		r := q.records[i]
		switch r.Kind {
		case KindBuffer:
			vk.DestroyBuffer(device, vk.Buffer(r.Handle), nil)
		case KindImage:
			vk.DestroyImage(device, vk.Image(r.Handle), nil)
		case KindImageView:
			vk.DestroyImageView(device, vk.ImageView(r.Handle), nil)
		case KindPipeline:
			vk.DestroyPipeline(device, vk.Pipeline(r.Handle), nil)
		case KindPipelineLayout:
			vk.DestroyPipelineLayout(device, vk.PipelineLayout(r.Handle), nil)
		case KindDescriptorSetLayout:
			vk.DestroyDescriptorSetLayout(device, vk.DescriptorSetLayout(r.Handle), nil)
		case KindDescriptorPool:
			vk.DestroyDescriptorPool(device, vk.DescriptorPool(r.Handle), nil)
		case KindSampler:
			vk.DestroySampler(device, vk.Sampler(r.Handle), nil)
		case KindSemaphore:
			vk.DestroySemaphore(device, vk.Semaphore(r.Handle), nil)
		case KindFence:
			vk.DestroyFence(device, vk.Fence(r.Handle), nil)
		case KindCommandPool:
			vk.DestroyCommandPool(device, vk.CommandPool(r.Handle), nil)
		}
	}
	q.records = q.records[:0]
}
