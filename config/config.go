// Package config holds the engine's configuration struct: the fixed,
// typed set of recognized options, replacing the reference engine's
// free-form, linked-chain Usage properties map with a closed set of
// fields once the option surface is known.
package config

// PresentMode is the set of swapchain present modes this engine
// recognizes as a configuration preference.
type PresentMode int

const (
	PresentModeMailbox PresentMode = iota
	PresentModeFifo
)

// Config is the engine-wide configuration struct.
type Config struct {
	// EnableValidation turns on the Khronos validation layer.
	EnableValidation bool
	// EnableDynamicRendering requires VK_KHR_dynamic_rendering.
	EnableDynamicRendering bool
	// PreferredPresentMode is tried first; the swapchain manager
	// falls back to Fifo when it is unsupported by the surface.
	PreferredPresentMode PresentMode
	// MaxFramesInFlight sizes the frame ring. Must be >= 1.
	MaxFramesInFlight int
	// LogDir is where info.log/warn.log/error.log are written.
	LogDir string
	// ShaderDir is where SPIR-V modules are resolved from.
	ShaderDir string
}

// Default returns the configuration spec.md §9 describes as the
// recognized default: dynamic rendering on, two frames in flight,
// validation off. Synchronization2 is not a recognized option here:
// spec.md §4.1 lists it as a required feature, not a preference, so
// the device layer enables it unconditionally (device.NewLogicalDevice).
func Default() Config {
	return Config{
		EnableValidation:       false,
		EnableDynamicRendering: true,
		PreferredPresentMode:   PresentModeMailbox,
		MaxFramesInFlight:      2,
		LogDir:                 ".",
		ShaderDir:              "shaders",
	}
}
