package descriptor

import "testing"

func TestGrowableAllocatorCapsGrowthAt4092(t *testing.T) {
	a := &GrowableAllocator{setsPerPool: 3000}
	grown := uint32(float64(a.setsPerPool) * 1.5)
	if grown <= maxSetsPerPoolCap {
		t.Fatalf("precondition broken: 3000*1.5=%d should exceed cap", grown)
	}
	if grown > maxSetsPerPoolCap {
		grown = maxSetsPerPoolCap
	}
	if grown != maxSetsPerPoolCap {
		t.Fatalf("grown = %d, want capped to %d", grown, maxSetsPerPoolCap)
	}
}

func TestDefaultPoolRatiosNonEmpty(t *testing.T) {
	ratios := DefaultPoolRatios()
	if len(ratios) == 0 {
		t.Fatal("DefaultPoolRatios returned no entries")
	}
	for _, r := range ratios {
		if r.Ratio <= 0 {
			t.Fatalf("ratio %v has non-positive weight", r)
		}
	}
}

func TestWriterAccumulatesInOrder(t *testing.T) {
	var w Writer
	w.WriteBuffer(0, nil, 64, 0, 6 /* UniformBuffer */)
	w.WriteImage(1, nil, nil, 0, 1)
	if w.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", w.Len())
	}
	if w.writes[0].DstBinding != 0 || w.writes[1].DstBinding != 1 {
		t.Fatalf("writes out of order: %+v", w.writes)
	}
	w.Clear()
	if w.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", w.Len())
	}
}
