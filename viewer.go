package main

import (
	"log/slog"
	"os"
	"time"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/linmath"

	"github.com/ChewyGumball/bengine-sub000/assets"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/driver/vulkan"
	"github.com/ChewyGumball/bengine-sub000/pipeline"
	"github.com/ChewyGumball/bengine-sub000/renderer"
	"github.com/ChewyGumball/bengine-sub000/transfer"
	"github.com/ChewyGumball/bengine-sub000/unsafer"
)

// ViewerApp draws one textured model spinning in a window.
type ViewerApp struct {
	width  int
	height int
	log    *slog.Logger

	window             *glfw.Window
	frameBufferResized bool

	instance *vulkan.Instance
	renderer *renderer.Renderer

	pipeline *pipeline.Pipeline
	mesh     *transfer.Mesh
	texture  *transfer.Texture

	// One uniform buffer and descriptor set per frame slot, so the CPU never
	// writes a buffer the GPU may still be reading.
	uniformBuffers []*transfer.Buffer
	sets           []driver.DescriptorSet

	startTime time.Time
}

// UniformBufferObject is the layout of the vertex shader's "ubo" uniform.
type UniformBufferObject struct {
	model linmath.Mat4x4
	view  linmath.Mat4x4
	proj  linmath.Mat4x4
}

// Run runs the viewer until the window closes.
func (a *ViewerApp) Run() error {
	if err := a.initWindow(); err != nil {
		return errors.Wrap(err, "initWindow")
	}
	defer a.cleanWindow()

	if err := a.initRenderer(); err != nil {
		a.cleanRenderer()
		return errors.Wrap(err, "initRenderer")
	}
	defer a.cleanRenderer()

	if err := a.loadScene(); err != nil {
		return errors.Wrap(err, "loadScene")
	}

	if err := a.mainLoop(); err != nil {
		return errors.Wrap(err, "mainLoop")
	}
	return nil
}

func (a *ViewerApp) initWindow() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "glfw.Init")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	window, err := glfw.CreateWindow(a.width, a.height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "creating window")
	}

	window.SetFramebufferSizeCallback(a.frameBufferResizeCallback)

	a.window = window
	return nil
}

func (a *ViewerApp) frameBufferResizeCallback(
	w *glfw.Window,
	width int,
	height int,
) {
	a.frameBufferResized = true
}

func (a *ViewerApp) cleanWindow() {
	a.window.Destroy()
	glfw.Terminate()
}

func (a *ViewerApp) initRenderer() error {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())

	cfg := vulkan.Config{
		AppName:    title,
		Extensions: a.window.GetRequiredInstanceExtensions(),
		Surface:    a.createSurface,
		Logger:     a.log,
	}
	if args.debug {
		cfg.ValidationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	}

	instance, err := vulkan.NewInstance(cfg)
	if err != nil {
		return errors.Wrap(err, "creating instance")
	}
	a.instance = instance

	width, height := a.window.GetFramebufferSize()
	r, err := renderer.New(instance, renderer.Config{
		FramesInFlight:   args.inFlight,
		RecordingThreads: args.threads,
		Width:            uint32(width),
		Height:           uint32(height),
		ClearColor:       [4]float32{0, 0, 0, 1},
		Logger:           a.log,
	})
	if err != nil {
		return errors.Wrap(err, "creating renderer")
	}
	a.renderer = r
	return nil
}

func (a *ViewerApp) createSurface(instance vk.Instance) (vk.Surface, error) {
	surfacePtr, err := a.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "cannot create surface within GLFW window")
	}
	return vk.SurfaceFromPointer(surfacePtr), nil
}

func (a *ViewerApp) loadScene() error {
	shader, err := loadShader(args.vert, args.frag)
	if err != nil {
		return err
	}

	fh, err := os.Open(args.model)
	if err != nil {
		return errors.Wrap(err, "opening model")
	}
	model, err := assets.DecodeOBJ(fh)
	fh.Close()
	if err != nil {
		return err
	}

	fh, err = os.Open(args.texture)
	if err != nil {
		return errors.Wrap(err, "opening texture")
	}
	tex, err := assets.DecodeTexture(fh)
	fh.Close()
	if err != nil {
		return err
	}

	if a.pipeline, err = a.renderer.CreatePipeline(shader, model.Format); err != nil {
		return errors.Wrap(err, "creating pipeline")
	}
	if a.mesh, err = a.renderer.CreateMesh(model); err != nil {
		return errors.Wrap(err, "uploading model")
	}
	if a.texture, err = a.renderer.CreateTexture(tex); err != nil {
		return errors.Wrap(err, "uploading texture")
	}

	slots := a.renderer.FramesInFlight()
	if a.sets, err = a.pipeline.AllocateSets(slots); err != nil {
		return errors.Wrap(err, "allocating descriptor sets")
	}
	for _, set := range a.sets {
		ubo, err := a.renderer.Uploader().CreateUniformBuffer(uint64(unsafe.Sizeof(UniformBufferObject{})))
		if err != nil {
			return errors.Wrap(err, "creating uniform buffer")
		}
		a.uniformBuffers = append(a.uniformBuffers, ubo)

		if err := a.pipeline.BindBuffer(set, "ubo", ubo); err != nil {
			return err
		}
		if err := a.pipeline.BindTexture(set, "texSampler", a.texture); err != nil {
			return err
		}
	}

	a.log.Info("scene loaded",
		"vertices", model.VertexCount(),
		"indices", len(model.Indices),
		"texture", args.texture,
	)
	return nil
}

// loadShader reads the vertex and fragment SPIR-V and describes the
// resources they use.
func loadShader(vertPath, fragPath string) (*assets.Shader, error) {
	vertShaderCode, err := os.ReadFile(vertPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading vertex shader")
	}
	fragShaderCode, err := os.ReadFile(fragPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading fragment shader")
	}

	return &assets.Shader{
		Name: "textured",
		Stages: []assets.StageCode{
			{Stage: assets.StageVertex, Code: vertShaderCode, EntryPoint: "main"},
			{Stage: assets.StageFragment, Code: fragShaderCode, EntryPoint: "main"},
		},
		Uniforms: map[string]assets.Uniform{
			"ubo": {
				Binding: 0,
				Stage:   assets.StageVertex,
				Type:    assets.BufferLayout{Size: uint32(unsafe.Sizeof(UniformBufferObject{}))},
			},
			"texSampler": {
				Binding: 1,
				Stage:   assets.StageFragment,
				Type:    assets.SamplerLayout{},
			},
		},
		Inputs: map[string]assets.VertexInput{
			assets.AttributePosition: {Location: 0},
			assets.AttributeTexCoord: {Location: 1},
		},
	}, nil
}

func (a *ViewerApp) mainLoop() error {
	a.log.Info("main loop")
	a.startTime = time.Now()

	var frames uint64
	for !a.window.ShouldClose() {
		if args.frames > 0 && frames >= args.frames {
			break
		}

		status, err := a.drawFrame()
		switch status {
		case renderer.StatusFatal:
			return errors.Wrap(err, "drawing a frame")
		case renderer.StatusRecreateSwapchain:
			if err := a.recreateSwapChain(); err != nil {
				return errors.Wrap(err, "recreateSwapChain")
			}
		default:
			if err != nil {
				a.log.Warn("frame dropped", "error", err)
			}
			frames++
		}

		if a.frameBufferResized {
			a.frameBufferResized = false
			if err := a.recreateSwapChain(); err != nil {
				return errors.Wrap(err, "recreateSwapChain")
			}
		}

		glfw.PollEvents()
	}

	stats := a.renderer.Stats()
	a.log.Info("main loop done",
		"frames", frames,
		"dropped", stats.Dropped,
		"recreations", stats.Recreations,
		"average", stats.AverageFrame(),
	)
	return a.renderer.WaitIdle()
}

func (a *ViewerApp) drawFrame() (renderer.Status, error) {
	f, status, err := a.renderer.BeginFrame()
	if f == nil {
		return status, err
	}

	slot := f.Slot.Index()
	if err := a.updateUniformBuffer(slot, f.Extent); err != nil {
		// EndFrame with an empty list still presents the acquired image.
		a.log.Warn("updating uniform buffer", "error", err)
		return a.renderer.EndFrame(f, &renderer.CommandList{})
	}

	var list renderer.CommandList
	list.Add(renderer.DrawMesh{
		Pipeline: a.pipeline,
		Mesh:     a.mesh,
		Sets:     []driver.DescriptorSet{a.sets[slot]},
	})
	return a.renderer.EndFrame(f, &list)
}

func (a *ViewerApp) updateUniformBuffer(slot int, extent driver.Extent2D) error {
	frameTime := time.Since(a.startTime)
	ubo := UniformBufferObject{}

	ubo.model.Identity()
	ubo.model.RotateZ(&ubo.model, float32(frameTime.Seconds()))
	ubo.view.LookAt(
		&linmath.Vec3{2, 2, 2},
		&linmath.Vec3{0, 0, 0},
		&linmath.Vec3{0, 0, 1},
	)

	aspectR := float32(extent.Width) / float32(extent.Height)
	ubo.proj.Perspective(45, aspectR, 0.1, 10)

	ubo.proj[1][1] *= -1

	return a.renderer.Uploader().WriteBuffer(a.uniformBuffers[slot], 0, unsafer.StructToBytes(&ubo))
}

func (a *ViewerApp) recreateSwapChain() error {
	for {
		width, height := a.window.GetFramebufferSize()
		if width != 0 && height != 0 {
			return a.renderer.RecreateSwapchain(uint32(width), uint32(height))
		}
		if a.window.ShouldClose() {
			return nil
		}

		glfw.WaitEvents()
	}
}

func (a *ViewerApp) cleanRenderer() {
	if a.renderer != nil {
		if err := a.renderer.WaitIdle(); err != nil {
			a.log.Warn("waiting for the device", "error", err)
		}
		for _, ubo := range a.uniformBuffers {
			ubo.Destroy()
		}
		if a.texture != nil {
			a.texture.Destroy()
		}
		if a.mesh != nil {
			a.mesh.Destroy()
		}
		if a.pipeline != nil {
			a.pipeline.Destroy()
		}
		if err := a.renderer.Destroy(); err != nil {
			a.log.Warn("destroying renderer", "error", err)
		}
	}
	if a.instance != nil {
		a.instance.Destroy()
	}
}
