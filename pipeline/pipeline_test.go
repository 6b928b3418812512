package pipeline

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestPushConstantSizeMatchesBitLayoutContract(t *testing.T) {
	if PushConstantSize != 72 {
		t.Fatalf("PushConstantSize = %d, want 72 (64B matrix + 8B address)", PushConstantSize)
	}
}

func TestColorFormatIsHDR(t *testing.T) {
	if ColorFormat != vk.FormatR16g16b16a16Sfloat {
		t.Fatalf("ColorFormat = %v, want R16G16B16A16_SFLOAT", ColorFormat)
	}
}

func TestBackgroundPushConstantSizeMatchesBitLayoutContract(t *testing.T) {
	if BackgroundPushConstantSize != 64 {
		t.Fatalf("BackgroundPushConstantSize = %d, want 64 (four vec4)", BackgroundPushConstantSize)
	}
}

func TestDefaultEffectsSeedDistinctData(t *testing.T) {
	gradient := DefaultGradientEffect()
	sky := DefaultSkyEffect()
	if gradient == sky {
		t.Fatal("gradient and sky defaults must seed distinct push-constant data")
	}
	if gradient.Data1 == (gradient.Data2) {
		t.Fatal("gradient's two color stops must differ")
	}
}

func TestBackgroundDispatchRoundsWorkgroupCountUp(t *testing.T) {
	cases := []struct{ extent, want uint32 }{
		{16, 1}, {17, 2}, {32, 2}, {1280, 80}, {721, 46},
	}
	for _, tc := range cases {
		if got := (tc.extent + 15) / 16; got != tc.want {
			t.Errorf("workgroup count for extent %d = %d, want %d", tc.extent, got, tc.want)
		}
	}
}
