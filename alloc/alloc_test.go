package alloc

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestMipChainLengthPowerOfTwo(t *testing.T) {
	cases := map[[2]uint32]uint32{
		{1, 1}:      1,
		{2, 2}:      2,
		{16, 16}:    5,
		{1024, 1024}: 11,
		{1024, 1}:   11,
	}
	for dims, want := range cases {
		got := mipChainLength(dims[0], dims[1])
		if got != want {
			t.Errorf("mipChainLength(%d,%d) = %d, want %d", dims[0], dims[1], got, want)
		}
	}
}

func TestTransitionTableHasRequiredPairs(t *testing.T) {
	required := []transitionKey{
		{vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal},
		{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal},
		{vk.ImageLayoutUndefined, vk.ImageLayoutGeneral},
		{vk.ImageLayoutGeneral, vk.ImageLayoutColorAttachmentOptimal},
		{vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutTransferSrcOptimal},
		{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutColorAttachmentOptimal},
		{vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc},
	}
	for _, k := range required {
		if _, ok := transitionTable[k]; !ok {
			t.Errorf("transition table missing required pair %v -> %v", k.old, k.new)
		}
	}
}

func TestTransitionImagePanicsOnUnknownPair(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unhandled layout pair")
		}
	}()
	TransitionImage(nil, nil, vk.ImageLayoutPreinitialized, vk.ImageLayoutPreinitialized, 0, 1)
}
