package deletion

import "testing"

func TestQueueHoldsRecordsInPushOrder(t *testing.T) {
	var q Queue
	q.Push(KindBuffer, 1)
	q.Push(KindImage, 2)
	q.Push(KindSampler, 3)

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	// Flush interprets records against a real vk.Device, which this
	// unit test cannot construct; instead verify that record order
	// prior to flush is push order (LIFO is applied by Flush, not by
	// Push).
	if q.records[0].Handle != 1 || q.records[2].Handle != 3 {
		t.Fatalf("unexpected push order: %+v", q.records)
	}
}

func TestQueueEmptyAfterClear(t *testing.T) {
	var q Queue
	q.records = q.records[:0]
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
}
