package material

import (
	"testing"
	"unsafe"
)

func TestCheckerboardPixelsAlternates(t *testing.T) {
	pixels := checkerboardPixels()
	if len(pixels) != 16*16*4 {
		t.Fatalf("len = %d, want %d", len(pixels), 16*16*4)
	}
	// (0,0) block is magenta, the adjacent 2x2 block at x=2 is black.
	if pixels[0] != 255 || pixels[1] != 0 || pixels[2] != 255 {
		t.Fatalf("origin block = %v, want magenta", pixels[:4])
	}
	idx := (0*16 + 2) * 4
	if pixels[idx] != 0 || pixels[idx+1] != 0 || pixels[idx+2] != 0 {
		t.Fatalf("second block = %v, want black", pixels[idx:idx+4])
	}
}

func TestConstantsMatchesStd140MinimumSize(t *testing.T) {
	var c Constants
	size := 4*4 + 4*4 + 14*4*4 // ColorFactors + MetalRoughFactors + padding, all float32
	got := int(unsafe.Sizeof(c))
	if got != size {
		t.Fatalf("Constants size = %d bytes, want %d", got, size)
	}
}
