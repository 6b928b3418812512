package frame

import "testing"

func TestRingSlotWrapsByFrameNumber(t *testing.T) {
	a, b, c := &Slot{}, &Slot{}, &Slot{}
	r := &Ring{slots: []*Slot{a, b, c}}

	cases := []struct {
		frameNumber uint64
		want        *Slot
	}{
		{0, a}, {1, b}, {2, c}, {3, a}, {4, b}, {6, a}, {100, b},
	}
	for _, tc := range cases {
		if got := r.Slot(tc.frameNumber); got != tc.want {
			t.Errorf("Slot(%d) = %p, want %p", tc.frameNumber, got, tc.want)
		}
	}
}

func TestRingLenReportsSlotCount(t *testing.T) {
	r := &Ring{slots: []*Slot{{}, {}}}
	if got := r.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestSlotStateTransitions(t *testing.T) {
	s := &Slot{state: Idle}
	if s.State() != Idle {
		t.Fatalf("new slot state = %v, want Idle", s.State())
	}
	s.state = Recording
	if s.State() != Recording {
		t.Fatalf("state = %v, want Recording", s.State())
	}
	s.state = Submitted
	s.MarkIdle()
	if s.State() != Idle {
		t.Fatalf("MarkIdle left state = %v, want Idle", s.State())
	}
}
