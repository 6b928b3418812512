package device

import "testing"

func TestRequiredInstanceExtensionsAddsDebugReportOnlyWhenValidation(t *testing.T) {
	base := []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}

	withoutValidation := RequiredInstanceExtensions(base, false)
	if len(withoutValidation) != 2 {
		t.Fatalf("without validation: got %v, want len 2", withoutValidation)
	}

	withValidation := RequiredInstanceExtensions(base, true)
	if len(withValidation) != 3 {
		t.Fatalf("with validation: got %v, want len 3", withValidation)
	}
	if withValidation[2] != "VK_EXT_debug_report" {
		t.Fatalf("with validation: got %v, want last element VK_EXT_debug_report", withValidation)
	}

	// base slice must not have been mutated by append aliasing.
	if len(base) != 2 {
		t.Fatalf("base mutated: %v", base)
	}
}

func TestRequiredDeviceExtensionsMatchesSpec(t *testing.T) {
	want := map[string]bool{
		"VK_KHR_swapchain":              true,
		"VK_KHR_dynamic_rendering":      true,
		"VK_KHR_synchronization2":       true,
		"VK_KHR_buffer_device_address":  true,
		"VK_EXT_descriptor_indexing":    true,
	}
	if len(RequiredDeviceExtensions) != len(want) {
		t.Fatalf("got %d required extensions, want %d", len(RequiredDeviceExtensions), len(want))
	}
	for _, ext := range RequiredDeviceExtensions {
		if !want[ext] {
			t.Fatalf("unexpected required extension %q", ext)
		}
	}
}
