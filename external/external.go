// Package external defines the engine's collaborator boundaries
// (windowing, asset loading, shader source, overlay) and a concrete
// GLFW-backed Window. Grounded on the reference engine's platform.go
// (instance/surface bootstrap contract) and display.go/shader.go
// (CoreDisplay.GetVulkanSurface/GetSize, CoreShader.LoadShaderModule),
// per spec.md §6.
package external

import (
	"fmt"
	"io/ioutil"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/math32"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

// Window is the windowing collaborator contract (spec.md §6): surface
// creation, framebuffer size, event pumping, and a sticky resize
// signal the frame driver clears after acting on it.
type Window interface {
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	FramebufferSize() (width, height int)
	PollEvents()
	ShouldClose() bool
	ConsumeResize() bool
	RequiredInstanceExtensions() []string
}

// GLFWWindow implements Window over a *glfw.Window.
type GLFWWindow struct {
	window  *glfw.Window
	resized bool
}

// NewGLFWWindow creates a Vulkan-capable, resizable window and wires
// its framebuffer-resize callback to set the sticky resize flag.
func NewGLFWWindow(width, height int, title string) (*GLFWWindow, error) {
	if err := glfw.Init(); err != nil {
		return nil, vkerr.New(vkerr.KindInit, "external.NewGLFWWindow", vk.ErrorInitializationFailed, err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	w, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, vkerr.New(vkerr.KindInit, "external.NewGLFWWindow", vk.ErrorInitializationFailed, err)
	}

	gw := &GLFWWindow{window: w}
	w.SetFramebufferSizeCallback(func(_ *glfw.Window, _, _ int) {
		gw.resized = true
	})
	return gw, nil
}

// CreateSurface creates a VkSurfaceKHR bound to the window.
func (w *GLFWWindow) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surfacePtr, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, vkerr.New(vkerr.KindInit, "external.GLFWWindow.CreateSurface", vk.ErrorSurfaceLostKhr, err)
	}
	return vk.SurfaceFromPointer(surfacePtr), nil
}

// FramebufferSize returns the current drawable size in pixels.
func (w *GLFWWindow) FramebufferSize() (int, int) {
	return w.window.GetFramebufferSize()
}

// PollEvents pumps the platform event queue and handles Escape-to-exit
// (spec.md §6).
func (w *GLFWWindow) PollEvents() {
	glfw.PollEvents()
	if w.window.GetKey(glfw.KeyEscape) == glfw.Press {
		w.window.SetShouldClose(true)
	}
}

// ShouldClose reports whether the user requested the window close.
func (w *GLFWWindow) ShouldClose() bool {
	return w.window.ShouldClose()
}

// ConsumeResize returns and clears the sticky resize flag.
func (w *GLFWWindow) ConsumeResize() bool {
	if w.resized {
		w.resized = false
		return true
	}
	return false
}

// RequiredInstanceExtensions returns the platform's GLFW-required
// Vulkan instance extensions.
func (w *GLFWWindow) RequiredInstanceExtensions() []string {
	return glfw.GetRequiredInstanceExtensions()
}

// Destroy releases the underlying GLFW window.
func (w *GLFWWindow) Destroy() {
	w.window.Destroy()
	glfw.Terminate()
}

// SceneLoader supplies scene trees: meshes with the common interleaved
// vertex record, materials with PBR factors and resolved RGBA8 pixel
// buffers, and per-node local transforms (spec.md §6).
type SceneLoader interface {
	Load(path string) (LoadedScene, error)
}

// Vertex is the common interleaved vertex record.
type Vertex struct {
	Position math32.Vec3
	UVx      float32
	Normal   math32.Vec3
	UVy      float32
	Color    math32.Vec4
}

// LoadedMesh is one decoded mesh ready for alloc.Allocator.UploadMesh.
type LoadedMesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// LoadedMaterial carries PBR factors and resolved RGBA8 pixel buffers
// (nil when the reference is absent, falling back to material.Defaults).
type LoadedMaterial struct {
	ColorFactors      [4]float32
	MetalRoughFactors [4]float32
	ColorPixels       []byte
	ColorWidth        uint32
	ColorHeight       uint32
	MetalRoughPixels  []byte
	MetalRoughWidth   uint32
	MetalRoughHeight  uint32
	Transparent       bool
}

// LoadedNode is one node's local transform (matrix form) plus an
// index into Meshes/Materials (-1 when the node carries no mesh).
type LoadedNode struct {
	Parent    int
	Local     math32.Mat4
	MeshIndex int
}

// LoadedScene is everything a loader produces for one scene/variant.
type LoadedScene struct {
	Meshes    []LoadedMesh
	Materials []LoadedMaterial
	Nodes     []LoadedNode
}

// ShaderSource resolves SPIR-V bytecode blobs from the shader
// directory (spec.md §6: paths resolved under "shaders/" relative to
// the working directory).
type ShaderSource interface {
	Load(name string) ([]byte, error)
}

// FileShaderSource reads precompiled SPIR-V files from a directory
// root, grounded on the reference engine's shader.go
// (CoreShader.LoadShaderModule reading raw bytes from disk).
type FileShaderSource struct {
	Dir string
}

func (s FileShaderSource) Load(name string) ([]byte, error) {
	data, err := ioutil.ReadFile(fmt.Sprintf("%s/%s", s.Dir, name))
	if err != nil {
		return nil, vkerr.New(vkerr.KindInit, "external.FileShaderSource.Load", vk.ErrorInitializationFailed, err)
	}
	return data, nil
}

// CreateShaderModule builds a vk.ShaderModule from SPIR-V bytes,
// grounded on the reference engine's extensions.go LoadShaderModule
// (ReadFile, reinterpret as uint32 words, vkCreateShaderModule).
func CreateShaderModule(device vk.Device, code []byte) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module)
	if err := vkerr.CheckResult(vkerr.KindResource, "external.CreateShaderModule", ret); err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}

// sliceUint32 reinterprets SPIR-V bytes as little-endian uint32 words,
// the layout vk.ShaderModuleCreateInfo.PCode expects.
func sliceUint32(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
	}
	return out
}

// Overlay records UI draws into the swapchain-bound dynamic rendering
// pass opened after the geometry pass (spec.md §4.9 step 8). A nil
// Overlay is valid: the engine simply records nothing.
type Overlay interface {
	RecordDraws(cmd vk.CommandBuffer)
}
