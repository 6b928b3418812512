// Command engine boots the renderer against a window and runs the
// frame loop until the user closes it or presses Escape. It accepts
// one optional positional integer choosing which built-in demo scene
// to load, since no concrete glTF loader is wired in (out of scope,
// spec.md §1/§6). Bootstrap order is grounded on the reference
// engine's platform.go (NewPlatform instance/surface/device sequence).
package main

import (
	"fmt"
	"os"
	"strconv"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/alloc"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/config"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/device"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/engine"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/external"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/material"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/math32"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/pipeline"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/rlog"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/scene"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/swapchain"
	"github.com/FedericoCos/PathTracer-GaussianSplatting-sub000/vkerr"
)

func main() {
	variant := 0
	if len(os.Args) > 1 {
		v, err := strconv.Atoi(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "engine: scene/variant index must be an integer: %v\n", err)
			os.Exit(1)
		}
		variant = v
	}

	cfg := config.Default()
	logs, err := rlog.Open(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: cannot open logs: %v\n", err)
		os.Exit(1)
	}

	if err := run(variant, cfg, logs); err != nil {
		if verr, ok := err.(*vkerr.Error); ok {
			logs.Fatalf(verr.Op, "%s", verr.Error())
		}
		logs.Fatalf("main", "%v", err)
	}
}

func run(variant int, cfg config.Config, logs *rlog.Loggers) error {
	win, err := external.NewGLFWWindow(1280, 720, "frame-graph")
	if err != nil {
		return err
	}
	defer win.Destroy()

	instanceExt := device.RequiredInstanceExtensions(win.RequiredInstanceExtensions(), cfg.EnableValidation)
	var layers []string
	if cfg.EnableValidation {
		layers = device.RequiredValidationLayers
	}
	instance, err := device.NewInstance("frame-graph", instanceExt, layers)
	if err != nil {
		return err
	}
	defer vk.DestroyInstance(instance, nil)

	surface, err := win.CreateSurface(instance)
	if err != nil {
		return err
	}
	defer vk.DestroySurface(instance, surface, nil)

	physical, props, err := device.SelectPhysicalDevice(instance)
	if err != nil {
		return err
	}

	queues, err := device.FindQueueFamilies(physical, surface)
	if err != nil {
		return err
	}

	logical, err := device.NewLogicalDevice(physical, queues, cfg)
	if err != nil {
		return err
	}
	defer vk.DestroyDevice(logical, nil)

	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(logical, queues.GraphicsFamily, 0, &graphicsQueue)
	vk.GetDeviceQueue(logical, queues.PresentFamily, 0, &presentQueue)
	queues.Graphics, queues.Present = graphicsQueue, presentQueue

	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physical, &memProps)

	dev := &device.Context{
		Instance:      instance,
		Physical:      physical,
		Properties:    props,
		MemProperties: memProps,
		Logical:       logical,
		Queues:        queues,
		Surface:       surface,
	}

	w, h := win.FramebufferSize()
	swap, err := swapchain.New(logical, physical, surface, queues.GraphicsFamily, queues.PresentFamily,
		vk.Extent2D{Width: uint32(w), Height: uint32(h)}, cfg, nil)
	if err != nil {
		return err
	}

	alc, err := alloc.New(logical, memProps, queues.GraphicsFamily, graphicsQueue)
	if err != nil {
		return err
	}
	defer alc.Destroy()

	matRegistry, err := material.New(logical, alc)
	if err != nil {
		return err
	}
	defer vk.DestroyDescriptorSetLayout(logical, matRegistry.Layout.Handle, nil)

	defaults, err := matRegistry.BuildDefaults()
	if err != nil {
		return err
	}
	defer defaults.Destroy(alc, logical)

	shaderSrc := external.FileShaderSource{Dir: cfg.ShaderDir}
	vertexCode, err := shaderSrc.Load("mesh.vert.spv")
	if err != nil {
		return err
	}
	fragmentCode, err := shaderSrc.Load("mesh.frag.spv")
	if err != nil {
		return err
	}
	vertexModule, err := external.CreateShaderModule(logical, vertexCode)
	if err != nil {
		return err
	}
	defer vk.DestroyShaderModule(logical, vertexModule, nil)
	fragmentModule, err := external.CreateShaderModule(logical, fragmentCode)
	if err != nil {
		return err
	}
	defer vk.DestroyShaderModule(logical, fragmentModule, nil)

	gradientCode, err := shaderSrc.Load("gradient.comp.spv")
	if err != nil {
		return err
	}
	skyCode, err := shaderSrc.Load("sky.comp.spv")
	if err != nil {
		return err
	}
	gradientModule, err := external.CreateShaderModule(logical, gradientCode)
	if err != nil {
		return err
	}
	defer vk.DestroyShaderModule(logical, gradientModule, nil)
	skyModule, err := external.CreateShaderModule(logical, skyCode)
	if err != nil {
		return err
	}
	defer vk.DestroyShaderModule(logical, skyModule, nil)

	sceneLayout, err := engine.NewSceneLayout(logical)
	if err != nil {
		return err
	}

	depthFormat, err := dev.SupportedDepthFormat()
	if err != nil {
		return err
	}
	pipelineSet, err := pipeline.New(logical, depthFormat).Build(vertexModule, fragmentModule,
		[]vk.DescriptorSetLayout{sceneLayout.Handle, matRegistry.Layout.Handle})
	if err != nil {
		return err
	}
	defer pipelineSet.Destroy(logical)

	shared := &engine.Shared{Device: dev, Alloc: alc, Material: matRegistry, Defaults: defaults, Pipeline: pipelineSet}

	eng, err := engine.New(shared, win, nil, swap, sceneLayout, queues.GraphicsFamily, graphicsQueue, presentQueue, cfg, logs,
		gradientModule, skyModule)
	if err != nil {
		return err
	}

	demoScene, constantsBuffers, err := buildDemoScene(alc, matRegistry, defaults, variant)
	if err != nil {
		return err
	}
	for _, buf := range constantsBuffers {
		defer alc.DestroyBuffer(buf)
	}
	eng.Scene = demoScene
	eng.Camera = engine.Camera{
		Eye: math32.Vec3{0, 0, 3}, Center: math32.Vec3{0, 0, 0}, Up: math32.Vec3{0, 1, 0},
		Fovy: 70 * 3.14159265 / 180, Near: 0.1, Far: 100,
	}
	if variant >= 1 {
		eng.BackgroundEffect = 1
	}

	for !win.ShouldClose() {
		win.PollEvents()
		if win.ConsumeResize() {
			eng.RequestResize()
		}
		if err := eng.DrawFrame(); err != nil {
			return err
		}
	}

	vk.DeviceWaitIdle(logical)
	eng.Destroy()
	return nil
}

// buildDemoScene assembles the end-to-end triangle scenario of
// spec.md §8 scenario 1: a single opaque white triangle. Variant 1
// and above adds a second, transparent triangle behind it so the
// opaque/transparent split (scenario 5) has something to exercise.
// Each surface gets its own factor-constants buffer (matRegistry.
// UploadConstants), returned so the caller can release them once the
// engine and its frame ring have gone idle.
func buildDemoScene(alc *alloc.Allocator, matRegistry *material.Registry, defaults *material.Defaults, variant int) (*scene.Graph, []*alloc.Buffer, error) {
	g := &scene.Graph{}
	var constantsBuffers []*alloc.Buffer

	opaqueMesh, err := uploadTriangle(alc, []external.Vertex{
		{Position: math32.Vec3{-1, -1, 0}, Color: math32.Vec4{1, 1, 1, 1}},
		{Position: math32.Vec3{1, -1, 0}, Color: math32.Vec4{1, 1, 1, 1}},
		{Position: math32.Vec3{0, 1, 0}, Color: math32.Vec4{1, 1, 1, 1}},
	}, 1)
	if err != nil {
		return nil, nil, err
	}
	opaqueConstants, err := matRegistry.UploadConstants(material.Constants{
		ColorFactors:      [4]float32{1, 1, 1, 1},
		MetalRoughFactors: [4]float32{0, 0.5, 0, 0},
	})
	if err != nil {
		return nil, nil, err
	}
	constantsBuffers = append(constantsBuffers, opaqueConstants)
	opaqueMesh.Surfaces = []scene.GeoSurface{{
		StartIndex: 0, IndexCount: 3, Pass: material.MainColor,
		Resources: &material.Resources{
			ColorImage: defaults.White, ColorSampler: defaults.LinearSampler,
			MetalRoughImage: defaults.Grey, MetalRoughSampler: defaults.LinearSampler,
			ConstantsBuffer: opaqueConstants, ConstantsOffset: 0,
		},
		Bounds: scene.Bounds{Origin: math32.Vec3{0, 0, 0}, Extents: math32.Vec3{1, 1, 0.01}},
	}}

	var identity math32.Mat4
	math32.Identity(&identity)
	g.Insert(scene.NilNode, identity, opaqueMesh)

	if variant >= 1 {
		transparentMesh, err := uploadTriangle(alc, []external.Vertex{
			{Position: math32.Vec3{-1.5, -1.5, -1}, Color: math32.Vec4{1, 0, 0, 0.4}},
			{Position: math32.Vec3{1.5, -1.5, -1}, Color: math32.Vec4{1, 0, 0, 0.4}},
			{Position: math32.Vec3{0, 1.5, -1}, Color: math32.Vec4{1, 0, 0, 0.4}},
		}, 2)
		if err != nil {
			return nil, nil, err
		}
		transparentConstants, err := matRegistry.UploadConstants(material.Constants{
			ColorFactors:      [4]float32{1, 0, 0, 0.4},
			MetalRoughFactors: [4]float32{0, 0.5, 0, 0},
		})
		if err != nil {
			return nil, nil, err
		}
		constantsBuffers = append(constantsBuffers, transparentConstants)
		transparentMesh.Surfaces = []scene.GeoSurface{{
			StartIndex: 0, IndexCount: 3, Pass: material.TransparentPass,
			Resources: &material.Resources{
				ColorImage: defaults.Checkerboard, ColorSampler: defaults.NearestSampler,
				MetalRoughImage: defaults.Grey, MetalRoughSampler: defaults.LinearSampler,
				ConstantsBuffer: transparentConstants, ConstantsOffset: 0,
			},
			Bounds: scene.Bounds{Origin: math32.Vec3{0, 0, -1}, Extents: math32.Vec3{1.5, 1.5, 0.01}},
		}}
		g.Insert(scene.NilNode, identity, transparentMesh)
	}

	return g, constantsBuffers, nil
}

func uploadTriangle(alc *alloc.Allocator, vertices []external.Vertex, id uint64) (*scene.MeshAsset, error) {
	indices := []uint32{0, 1, 2}
	vertexBuf, indexBuf, err := alc.UploadMesh(vertexBytes(vertices), indexBytes(indices))
	if err != nil {
		return nil, err
	}
	return &scene.MeshAsset{
		ID:                  id,
		Name:                "triangle",
		VertexBuffer:        vertexBuf.Handle,
		IndexBuffer:         indexBuf.Handle,
		VertexBufferAddress: vertexBuf.Address,
	}, nil
}

func vertexBytes(v []external.Vertex) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*int(unsafe.Sizeof(v[0])))
}

func indexBytes(idx []uint32) []byte {
	if len(idx) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&idx[0])), len(idx)*4)
}
