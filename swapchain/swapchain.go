// Package swapchain owns the surface-bound image ring, per-image
// views, current extent/format, and recreation on resize/out-of-date.
// Grounded on the reference engine's swapchain.go (surface capability,
// format and present-mode selection, oldSwapchain handling), adapted
// to drop the VkFramebuffer/VkRenderPass pairing (this engine uses
// dynamic rendering per spec.md §4.6) and to prefer mailbox present
// mode per spec.md §4.2.
package swapchain

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/config"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

// Swapchain is the surface-bound image ring and its per-image views.
type Swapchain struct {
	handle      vk.Swapchain
	device      vk.Device
	physical    vk.PhysicalDevice
	surface     vk.Surface
	format      vk.SurfaceFormat
	presentMode vk.PresentMode
	extent      vk.Extent2D
	images      []vk.Image
	views       []vk.ImageView

	graphicsFamily uint32
	presentFamily  uint32
}

// Format returns the selected swapchain image format.
func (s *Swapchain) Format() vk.Format { return s.format.Format }

// Extent returns the current swapchain extent.
func (s *Swapchain) Extent() vk.Extent2D { return s.extent }

// ImageCount returns the number of images in the ring.
func (s *Swapchain) ImageCount() int { return len(s.images) }

// Image returns the image handle at index i.
func (s *Swapchain) Image(i int) vk.Image { return s.images[i] }

// View returns the image view at index i.
func (s *Swapchain) View(i int) vk.ImageView { return s.views[i] }

// Handle returns the underlying vk.Swapchain.
func (s *Swapchain) Handle() vk.Swapchain { return s.handle }

// New selects format, present mode, extent and image count from the
// surface's capabilities and builds the image ring (spec.md §4.2).
// windowExtent is used when the surface capabilities report the
// "use window extent" sentinel (CurrentExtent.Width == MaxUint32).
func New(device vk.Device, physical vk.PhysicalDevice, surface vk.Surface, graphicsFamily, presentFamily uint32, windowExtent vk.Extent2D, cfg config.Config, old vk.Swapchain) (*Swapchain, error) {
	s := &Swapchain{
		device:         device,
		physical:       physical,
		surface:        surface,
		graphicsFamily: graphicsFamily,
		presentFamily:  presentFamily,
	}

	var caps vk.SurfaceCapabilities
	vk.GetPhysicalDeviceSurfaceCapabilities(physical, surface, &caps)
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	format, err := chooseSurfaceFormat(physical, surface)
	if err != nil {
		return nil, err
	}
	s.format = format

	s.presentMode = choosePresentMode(physical, surface, cfg.PreferredPresentMode)

	if caps.CurrentExtent.Width != vk.MaxUint32 {
		s.extent = caps.CurrentExtent
	} else {
		s.extent = clampExtent(windowExtent, caps.MinImageExtent, caps.MaxImageExtent)
	}

	imageCount := caps.MinImageCount + 1
	if imageCount < 3 {
		imageCount = 3
	}
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	sharingMode := vk.SharingModeExclusive
	var familyIndices []uint32
	if graphicsFamily != presentFamily {
		sharingMode = vk.SharingModeConcurrent
		familyIndices = []uint32{graphicsFamily, presentFamily}
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      s.format.Format,
		ImageColorSpace:  s.format.ColorSpace,
		ImageExtent:      s.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) | vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		ImageSharingMode: sharingMode,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      s.presentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	if len(familyIndices) > 0 {
		createInfo.QueueFamilyIndexCount = uint32(len(familyIndices))
		createInfo.PQueueFamilyIndices = familyIndices
	}

	var handle vk.Swapchain
	ret := vk.CreateSwapchain(device, &createInfo, nil, &handle)
	if err := vkerr.CheckResult(vkerr.KindInit, "swapchain.New", ret); err != nil {
		return nil, err
	}
	s.handle = handle

	var count uint32
	vk.GetSwapchainImages(device, handle, &count, nil)
	s.images = make([]vk.Image, count)
	vk.GetSwapchainImages(device, handle, &count, s.images)

	s.views = make([]vk.ImageView, count)
	for i := range s.images {
		view, err := createView(device, s.images[i], s.format.Format)
		if err != nil {
			return nil, err
		}
		s.views[i] = view
	}

	return s, nil
}

func createView(device vk.Device, image vk.Image, format vk.Format) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := vkerr.CheckResult(vkerr.KindInit, "swapchain.createView", ret); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

// Destroy releases the image views and the swapchain handle. It does
// not destroy the surface (owned by device.Context).
func (s *Swapchain) Destroy() {
	for _, v := range s.views {
		vk.DestroyImageView(s.device, v, nil)
	}
	s.views = nil
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.device, s.handle, nil)
		s.handle = vk.NullSwapchain
	}
}

// Recreate implements the recreation procedure of spec.md §4.2: wait
// for device idle, destroy views, destroy the swapchain (the old
// handle is not reused, simplifying ownership), then rebuild.
func Recreate(device vk.Device, old *Swapchain, windowExtent vk.Extent2D, cfg config.Config) (*Swapchain, error) {
	vk.DeviceWaitIdle(device)
	physical, surface := old.physical, old.surface
	graphicsFamily, presentFamily := old.graphicsFamily, old.presentFamily
	old.Destroy()
	return New(device, physical, surface, graphicsFamily, presentFamily, windowExtent, cfg, vk.NullSwapchain)
}

func chooseSurfaceFormat(physical vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceFormat, error) {
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &count, nil)
	if count == 0 {
		return vk.SurfaceFormat{}, vkerr.New(vkerr.KindInit, "swapchain.chooseSurfaceFormat", vk.ErrorFormatNotSupported, fmt.Errorf("no surface formats"))
	}
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &count, formats)

	for _, f := range formats {
		f.Deref()
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f, nil
		}
	}
	formats[0].Deref()
	return formats[0], nil
}

func choosePresentMode(physical vk.PhysicalDevice, surface vk.Surface, preferred config.PresentMode) vk.PresentMode {
	var count uint32
	vk.GetPhysicalDeviceSurfacePresentModes(physical, surface, &count, nil)
	modes := make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(physical, surface, &count, modes)

	want := vk.PresentModeFifo
	if preferred == config.PresentModeMailbox {
		want = vk.PresentModeMailbox
	}
	for _, m := range modes {
		if m == want {
			return m
		}
	}
	return vk.PresentModeFifo
}

func clampExtent(want, min, max vk.Extent2D) vk.Extent2D {
	clamp := func(v, lo, hi uint32) uint32 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return vk.Extent2D{
		Width:  clamp(want.Width, min.Width, max.Width),
		Height: clamp(want.Height, min.Height, max.Height),
	}
}
