// Package material implements the canonical three-binding material
// layout, default substitute textures/samplers, and the registry that
// writes per-material descriptor sets. Grounded on
// original_source/vk_loader.h (GLTFMetallic_Roughness,
// MaterialInstance, MaterialConstants, MaterialResources).
package material

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/alloc"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/descriptor"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

// Pass distinguishes how a material is drawn in the frame driver.
type Pass int

const (
	MainColor Pass = iota
	TransparentPass
)

// Constants is the material uniform buffer contents, padded to a
// round 256-byte uniform-buffer-friendly size (std140).
type Constants struct {
	ColorFactors      [4]float32
	MetalRoughFactors [4]float32
	_                 [14][4]float32 // padding, see original_source/vk_loader.h
}

// Resources names the three bindings a material instance's set (set 1)
// draws from: its own factor-constants uniform range, and the
// base-color/metal-rough image+sampler pairs. The global scene uniform
// (set 0) is bound separately by the frame driver once per pipeline
// change, not per material (spec.md §4.9 step 6).
type Resources struct {
	ColorImage        *alloc.Image
	ColorSampler      vk.Sampler
	MetalRoughImage   *alloc.Image
	MetalRoughSampler vk.Sampler
	ConstantsBuffer   *alloc.Buffer
	ConstantsOffset   vk.DeviceSize
}

// Instance is a bound material ready for the draw list: the pass that
// selects its pipeline variant and the descriptor set carrying its
// resources.
type Instance struct {
	Pass   Pass
	Set    vk.DescriptorSet
}

// Defaults holds the substitute textures and samplers used when a
// material references a missing or failed texture (spec.md §4.7).
type Defaults struct {
	White, Grey, Black, Checkerboard *alloc.Image
	LinearSampler, NearestSampler    vk.Sampler
}

// Registry owns the canonical descriptor set layout and builds
// Instances for loaded materials.
type Registry struct {
	device *alloc.Allocator
	dev    vk.Device
	Layout *descriptor.Layout
}

// New builds the canonical three-binding material layout (set 1):
// factor constants, base-color image+sampler, metal-rough
// image+sampler, all visible to the vertex and fragment stages. Grounded on
// original_source/vk_loader.cpp write_material's materialLayout
// (binding 0 = MaterialConstants, 1 = color, 2 = metal-rough) — the
// global scene-uniform layout (set 0) is a separate layout the frame
// driver owns (engine.NewSceneLayout), not this one.
func New(dev vk.Device, alc *alloc.Allocator) (*Registry, error) {
	var b descriptor.LayoutBuilder
	b.AddBinding(0, vk.DescriptorTypeUniformBuffer)
	b.AddBinding(1, vk.DescriptorTypeCombinedImageSampler)
	b.AddBinding(2, vk.DescriptorTypeCombinedImageSampler)
	layout, err := b.Build(dev, vk.ShaderStageFlags(vk.ShaderStageVertexBit)|vk.ShaderStageFlags(vk.ShaderStageFragmentBit))
	if err != nil {
		return nil, err
	}
	return &Registry{device: alc, dev: dev, Layout: layout}, nil
}

// UploadConstants creates a host-visible uniform buffer holding c and
// returns it ready to use as Resources.ConstantsBuffer (offset 0).
// vk_loader.cpp packs every material's MaterialConstants into one
// shared buffer sized to a whole glTF file's material count; since
// materials here are not batch-loaded from a single file, each
// material instance gets its own small buffer instead.
func (r *Registry) UploadConstants(c Constants) (*alloc.Buffer, error) {
	buf, err := r.device.CreateHostBuffer(vk.DeviceSize(unsafe.Sizeof(Constants{})), vk.BufferUsageUniformBufferBit)
	if err != nil {
		return nil, err
	}
	*(*Constants)(buf.Mapped) = c
	return buf, nil
}

// BuildDefaults uploads the four substitute textures (1x1 white,
// grey, black, and a 16x16 magenta/black checkerboard) and creates
// the linear-anisotropic and nearest samplers.
func (r *Registry) BuildDefaults() (*Defaults, error) {
	white := [4]byte{255, 255, 255, 255}
	grey := [4]byte{128, 128, 128, 255}
	black := [4]byte{0, 0, 0, 255}

	d := &Defaults{}
	var err error
	if d.White, err = r.device.UploadTexture(white[:], 1, 1, vk.FormatR8g8b8a8Unorm, vk.ImageUsageSampledBit, false); err != nil {
		return nil, err
	}
	if d.Grey, err = r.device.UploadTexture(grey[:], 1, 1, vk.FormatR8g8b8a8Unorm, vk.ImageUsageSampledBit, false); err != nil {
		return nil, err
	}
	if d.Black, err = r.device.UploadTexture(black[:], 1, 1, vk.FormatR8g8b8a8Unorm, vk.ImageUsageSampledBit, false); err != nil {
		return nil, err
	}
	if d.Checkerboard, err = r.device.UploadTexture(checkerboardPixels(), 16, 16, vk.FormatR8g8b8a8Unorm, vk.ImageUsageSampledBit, false); err != nil {
		return nil, err
	}

	ret := vk.CreateSampler(r.dev, &vk.SamplerCreateInfo{
		SType:           vk.StructureTypeSamplerCreateInfo,
		MagFilter:       vk.FilterLinear,
		MinFilter:       vk.FilterLinear,
		MipmapMode:      vk.SamplerMipmapModeLinear,
		AnisotropyEnable: vk.True,
		MaxAnisotropy:   16,
		MaxLod:          vk.LodClampNone,
	}, nil, &d.LinearSampler)
	if err := vkerr.CheckResult(vkerr.KindInit, "material.Registry.BuildDefaults.linear", ret); err != nil {
		return nil, err
	}

	ret = vk.CreateSampler(r.dev, &vk.SamplerCreateInfo{
		SType:      vk.StructureTypeSamplerCreateInfo,
		MagFilter:  vk.FilterNearest,
		MinFilter:  vk.FilterNearest,
		MipmapMode: vk.SamplerMipmapModeNearest,
	}, nil, &d.NearestSampler)
	if err := vkerr.CheckResult(vkerr.KindInit, "material.Registry.BuildDefaults.nearest", ret); err != nil {
		return nil, err
	}

	return d, nil
}

func checkerboardPixels() []byte {
	const n = 16
	pixels := make([]byte, n*n*4)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := (y*n + x) * 4
			if (x/2+y/2)%2 == 0 {
				pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 255, 0, 255, 255
			} else {
				pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 0, 0, 0, 255
			}
		}
	}
	return pixels
}

// Write allocates a set-1 descriptor set for the material's pass and
// writes its three canonical bindings (factor constants, base-color,
// metal-rough), returning the ready-to-draw instance. The global scene
// uniform (set 0) is not this registry's concern; the frame driver
// binds it separately (engine.Engine.writeSceneDescriptor).
func (r *Registry) Write(frameAllocator *descriptor.GrowableAllocator, pass Pass, res Resources) (*Instance, error) {
	set, err := frameAllocator.Allocate(r.Layout.Handle)
	if err != nil {
		return nil, err
	}

	var w descriptor.Writer
	w.WriteBuffer(0, res.ConstantsBuffer.Handle, vk.DeviceSize(unsafe.Sizeof(Constants{})), res.ConstantsOffset, vk.DescriptorTypeUniformBuffer)
	w.WriteImage(1, res.ColorImage.View, res.ColorSampler, vk.ImageLayoutShaderReadOnlyOptimal, vk.DescriptorTypeCombinedImageSampler)
	w.WriteImage(2, res.MetalRoughImage.View, res.MetalRoughSampler, vk.ImageLayoutShaderReadOnlyOptimal, vk.DescriptorTypeCombinedImageSampler)
	w.UpdateSet(r.dev, set)

	return &Instance{Pass: pass, Set: set}, nil
}

// Destroy releases the default textures and samplers. The canonical
// descriptor set layout (Registry.Layout) is not destroyed here; the
// registry's owner destroys it separately.
func (d *Defaults) Destroy(alc *alloc.Allocator, dev vk.Device) {
	alc.DestroyImage(d.White)
	alc.DestroyImage(d.Grey)
	alc.DestroyImage(d.Black)
	alc.DestroyImage(d.Checkerboard)
	vk.DestroySampler(dev, d.LinearSampler, nil)
	vk.DestroySampler(dev, d.NearestSampler, nil)
}
