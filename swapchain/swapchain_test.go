package swapchain

import (
	vk "github.com/vulkan-go/vulkan"
	"testing"
)

func TestClampExtentWithinBounds(t *testing.T) {
	min := vk.Extent2D{Width: 1, Height: 1}
	max := vk.Extent2D{Width: 4096, Height: 4096}

	got := clampExtent(vk.Extent2D{Width: 1280, Height: 720}, min, max)
	if got.Width != 1280 || got.Height != 720 {
		t.Fatalf("clampExtent within bounds changed value: %+v", got)
	}
}

func TestClampExtentClampsBelowMinAndAboveMax(t *testing.T) {
	min := vk.Extent2D{Width: 64, Height: 64}
	max := vk.Extent2D{Width: 1024, Height: 1024}

	got := clampExtent(vk.Extent2D{Width: 1, Height: 2048}, min, max)
	if got.Width != 64 {
		t.Fatalf("Width = %d, want clamped to min 64", got.Width)
	}
	if got.Height != 1024 {
		t.Fatalf("Height = %d, want clamped to max 1024", got.Height)
	}
}
