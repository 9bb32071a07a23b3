package renderer_test

import (
	"errors"

	"github.com/gogpu/gputypes"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/xlab/linmath"

	"github.com/ChewyGumball/bengine-sub000/assets"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/driver/fake"
	"github.com/ChewyGumball/bengine-sub000/renderer"
	"github.com/ChewyGumball/bengine-sub000/swapchain"
)

func ops(cmds []fake.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Op
	}
	return out
}

func quad() *assets.Mesh {
	vertices := make([]byte, 4*20)
	return &assets.Mesh{
		Format:    assets.PositionTexCoordFormat,
		Vertices:  vertices,
		Indices:   []uint32{0, 1, 2, 2, 3, 0},
		SubMeshes: map[string]assets.IndexRange{"first": {First: 0, Count: 3}},
	}
}

func flatShader(instanced bool) *assets.Shader {
	s := &assets.Shader{
		Name: "flat",
		Stages: []assets.StageCode{
			{Stage: assets.StageVertex, Code: make([]byte, 8)},
			{Stage: assets.StageFragment, Code: make([]byte, 8)},
		},
		Uniforms: map[string]assets.Uniform{
			"ubo": {Binding: 0, Stage: assets.StageVertex, Type: assets.BufferLayout{Size: 64}},
		},
		Inputs: map[string]assets.VertexInput{
			assets.AttributePosition: {Location: 0},
		},
	}
	if instanced {
		s.Name = "instanced"
		s.Instance = &assets.InstanceLayout{Stride: 64, Inputs: map[string]assets.InstanceInput{}}
		for col := uint32(0); col < 4; col++ {
			name := string(rune('a' + col))
			s.Instance.Inputs[name] = assets.InstanceInput{Location: 1 + col, Offset: 16 * col, Format: gputypes.VertexFormatFloat32x4}
		}
	}
	return s
}

var _ = Describe("Renderer", func() {
	var (
		inst *fake.Instance
		dev  *fake.Device
		r    *renderer.Renderer
		cfg  renderer.Config
	)

	BeforeEach(func() {
		cfg = renderer.Config{}
	})

	JustBeforeEach(func() {
		inst = fake.NewDefaultInstance()
		var err error
		r, err = renderer.New(inst, cfg)
		Expect(err).NotTo(HaveOccurred())
		dev = inst.Device()
	})

	AfterEach(func() {
		if r != nil {
			_ = r.Destroy()
		}
	})

	It("submits frames through three slots, reusing each only after its fence", func() {
		list := &renderer.CommandList{}
		for i := 0; i < 5; i++ {
			status, err := r.SubmitFrame(list)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(renderer.StatusOK))
		}

		Expect(r.FramesInFlight()).To(Equal(3))
		// Frames 3 and 4 waited for frames 0 and 1; 2, 3 and 4 are in flight.
		Expect(dev.Pending()).To(Equal(3))
		Expect(r.Stats().Frames).To(Equal(uint64(5)))
		Expect(r.Stats().MaxFrame).To(BeNumerically(">=", r.Stats().LastFrame))
		Expect(dev.Violations()).To(BeEmpty())
	})

	It("records the primary as uploads, then a render pass of secondaries", func() {
		f, status, err := r.BeginFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(renderer.StatusOK))
		Expect(f.Number).To(BeZero())

		status, err = r.EndFrame(f, &renderer.CommandList{})
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(renderer.StatusOK))

		primary := dev.Recorded(f.Slot.Primary)
		Expect(ops(primary)).To(Equal([]string{fake.CmdBeginRenderPass, fake.CmdEndRenderPass}))
		Expect(primary[0].Contents).To(Equal(driver.ContentsInline))
		Expect(primary[0].RenderPass.Extent).To(Equal(driver.Extent2D{Width: 800, Height: 600}))
		Expect(primary[0].RenderPass.ClearDepth).To(Equal(float32(1)))
	})

	Context("with two recording threads", func() {
		BeforeEach(func() {
			cfg.RecordingThreads = 2
		})

		It("records draws, instances, raw uploads and custom commands", func() {
			mesh, err := r.CreateMesh(quad())
			Expect(err).NotTo(HaveOccurred())
			defer mesh.Destroy()

			flat, err := r.CreatePipeline(flatShader(false), assets.PositionTexCoordFormat)
			Expect(err).NotTo(HaveOccurred())
			defer flat.Destroy()
			instanced, err := r.CreatePipeline(flatShader(true), assets.PositionTexCoordFormat)
			Expect(err).NotTo(HaveOccurred())
			defer instanced.Destroy()

			ubo, err := r.CreateBuffer(make([]byte, 64), driver.BufferUniform, driver.DeviceLocal)
			Expect(err).NotTo(HaveOccurred())
			defer ubo.Destroy()
			set, err := flat.AllocateSet()
			Expect(err).NotTo(HaveOccurred())
			Expect(flat.BindBuffer(set, "ubo", ubo)).To(Succeed())

			var identity linmath.Mat4x4
			identity.Identity()
			custom := 0

			list := &renderer.CommandList{}
			list.Add(
				renderer.DrawMesh{Pipeline: flat, Mesh: mesh, Sets: []driver.DescriptorSet{set}, SubMesh: "first"},
				renderer.RawUpload{Dst: ubo, Offset: 8, Data: []byte{1, 2, 3, 4}},
				renderer.DrawInstancedMesh{Pipeline: instanced, Mesh: mesh, Instances: []linmath.Mat4x4{identity, identity}},
				renderer.Custom{Record: func(rec driver.Recorder, cb driver.CommandBuffer) error {
					custom++
					rec.CmdDraw(cb, 3, 1, 0, 0)
					return nil
				}},
			)

			f, status, err := r.BeginFrame()
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(renderer.StatusOK))
			status, err = r.EndFrame(f, list)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(renderer.StatusOK))
			Expect(custom).To(Equal(1))

			primary := dev.Recorded(f.Slot.Primary)
			Expect(ops(primary)).To(Equal([]string{
				fake.CmdCopyBuffer,
				fake.CmdMemoryBarrier,
				fake.CmdBeginRenderPass,
				fake.CmdExecuteCommands,
				fake.CmdEndRenderPass,
			}))
			Expect(primary[0].Dst).To(Equal(uint64(ubo.Handle)))
			Expect(primary[0].Regions[0].DstOffset).To(Equal(uint64(8)))
			Expect(primary[2].Contents).To(Equal(driver.ContentsSecondary))

			secondaries := primary[3].Secondaries
			Expect(secondaries).To(HaveLen(2))

			first := dev.Recorded(secondaries[0])
			Expect(ops(first)).To(Equal([]string{
				fake.CmdSetViewport,
				fake.CmdSetScissor,
				fake.CmdBindPipeline,
				fake.CmdBindDescriptors,
				fake.CmdBindVertexBuffers,
				fake.CmdBindIndexBuffer,
				fake.CmdDrawIndexed,
				fake.CmdBindPipeline,
				fake.CmdBindVertexBuffers,
				fake.CmdBindIndexBuffer,
				fake.CmdDrawIndexed,
			}))
			Expect(first[6].Count).To(Equal(uint32(3)))
			Expect(first[6].Instances).To(Equal(uint32(1)))
			Expect(first[8].Buffers).To(HaveLen(2))
			Expect(first[10].Count).To(Equal(uint32(6)))
			Expect(first[10].Instances).To(Equal(uint32(2)))

			second := dev.Recorded(secondaries[1])
			Expect(ops(second)).To(Equal([]string{fake.CmdSetViewport, fake.CmdSetScissor, fake.CmdDraw}))

			Expect(r.WaitIdle()).To(Succeed())
			got, err := r.Uploader().Download(ubo)
			Expect(err).NotTo(HaveOccurred())
			Expect(got[8:12]).To(Equal([]byte{1, 2, 3, 4}))
			Expect(dev.Violations()).To(BeEmpty())
		})
	})

	It("abandons frames with invalid draws and keeps going", func() {
		list := &renderer.CommandList{}
		list.Add(renderer.DrawMesh{})

		status, err := r.SubmitFrame(list)
		Expect(err).To(MatchError(renderer.ErrIncompleteDraw))
		Expect(status).To(Equal(renderer.StatusOK))
		Expect(r.Stats().Dropped).To(Equal(uint64(1)))

		status, err = r.SubmitFrame(&renderer.CommandList{})
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(renderer.StatusOK))
		Expect(dev.Violations()).To(BeEmpty())
	})

	It("refuses raw uploads into buffers that cannot be copied into", func() {
		vertices, err := r.CreateBuffer(make([]byte, 16), driver.BufferVertex, driver.HostVisible)
		Expect(err).NotTo(HaveOccurred())
		defer vertices.Destroy()

		list := &renderer.CommandList{}
		list.Add(renderer.RawUpload{Dst: vertices, Data: []byte{1, 2, 3, 4}})
		status, err := r.SubmitFrame(list)
		Expect(err).To(MatchError(renderer.ErrUploadTarget))
		Expect(status).To(Equal(renderer.StatusOK))

		ubo, err := r.Uploader().CreateUniformBuffer(16)
		Expect(err).NotTo(HaveOccurred())
		defer ubo.Destroy()
		empty, err := r.CreateBuffer(nil, driver.BufferUniform, driver.DeviceLocal)
		Expect(err).NotTo(HaveOccurred())
		defer empty.Destroy()
		Expect(empty.Usage & driver.BufferTransferDst).NotTo(BeZero())

		list.Reset()
		list.Add(renderer.RawUpload{Dst: ubo, Offset: 4, Data: []byte{5, 6, 7, 8}})
		Expect(r.SubmitFrame(list)).To(Equal(renderer.StatusOK))
		Expect(r.WaitIdle()).To(Succeed())

		got := make([]byte, 4)
		Expect(r.Uploader().ReadBuffer(ubo, 4, got)).To(Succeed())
		Expect(got).To(Equal([]byte{5, 6, 7, 8}))
		Expect(dev.Violations()).To(BeEmpty())
	})

	It("asks for recreation when acquire is out of date and renders at the new size after", func() {
		Expect(r.SubmitFrame(&renderer.CommandList{})).To(Equal(renderer.StatusOK))
		old := r.Swapchain().Chain()

		inst.SetSurfaceExtent(1024, 768)
		status, err := r.SubmitFrame(&renderer.CommandList{})
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(renderer.StatusRecreateSwapchain))

		Expect(r.RecreateSwapchain(1024, 768)).To(Succeed())
		Expect(r.Extent()).To(Equal(driver.Extent2D{Width: 1024, Height: 768}))
		Expect(dev.Alive(uint64(old.Handle))).To(BeFalse())
		for _, fb := range old.Framebuffers {
			Expect(dev.Alive(uint64(fb))).To(BeFalse())
		}

		f, status, err := r.BeginFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(renderer.StatusOK))
		Expect(f.Extent).To(Equal(driver.Extent2D{Width: 1024, Height: 768}))
		Expect(r.EndFrame(f, &renderer.CommandList{})).To(Equal(renderer.StatusOK))

		Expect(r.Stats().Recreations).To(Equal(uint64(1)))
		Expect(dev.Violations()).To(BeEmpty())
	})

	It("asks for recreation after presenting a suboptimal frame", func() {
		inst.SetSuboptimal()
		status, err := r.SubmitFrame(&renderer.CommandList{})
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(renderer.StatusRecreateSwapchain))
		Expect(r.Stats().Frames).To(Equal(uint64(1)))
	})

	It("keeps the swapchain while the window is minimized", func() {
		inst.SetSurfaceExtent(0, 0)
		Expect(r.RecreateSwapchain(0, 0)).To(MatchError(swapchain.ErrZeroExtent))
		Expect(r.Extent()).To(Equal(driver.Extent2D{Width: 800, Height: 600}))
	})

	It("reports device loss as fatal with checkpoints", func() {
		Expect(r.SubmitFrame(&renderer.CommandList{})).To(Equal(renderer.StatusOK))
		dev.LoseDevice()

		var status renderer.Status
		var err error
		for i := 0; i < 3 && err == nil; i++ {
			status, err = r.SubmitFrame(&renderer.CommandList{})
		}
		Expect(status).To(Equal(renderer.StatusFatal))
		Expect(err).To(MatchError(driver.ErrDeviceLost))

		var lost *device.LostError
		Expect(errors.As(err, &lost)).To(BeTrue())
		Expect(lost.Report.Pending).To(ContainElement("frame 0 end"))
	})

	It("releases every object it created", func() {
		mesh, err := r.CreateMesh(quad())
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 4; i++ {
			Expect(r.SubmitFrame(&renderer.CommandList{})).To(Equal(renderer.StatusOK))
		}
		Expect(r.WaitIdle()).To(Succeed())
		mesh.Destroy()

		Expect(r.Destroy()).To(Succeed())
		r = nil
		Expect(dev.LiveObjects()).To(BeZero())
		Expect(dev.Destroyed()).To(BeTrue())
		Expect(dev.Violations()).To(BeEmpty())
	})
})

var _ = Describe("New", func() {
	It("needs a surface", func() {
		inst := fake.NewInstance(fake.InstanceConfig{
			Devices: []driver.PhysicalDeviceInfo{fake.DefaultPhysicalDevice()},
		})
		_, err := renderer.New(inst, renderer.Config{})
		Expect(err).To(MatchError(driver.ErrNoSurface))
	})

	It("releases the logical device when a later step fails", func() {
		inst := fake.NewInstance(fake.InstanceConfig{
			Devices: []driver.PhysicalDeviceInfo{fake.DefaultPhysicalDevice()},
		})
		r, err := renderer.New(inst, renderer.Config{})
		Expect(err).To(HaveOccurred())
		Expect(r).To(BeNil())

		dev := inst.Device()
		Expect(dev).NotTo(BeNil())
		Expect(dev.LiveObjects()).To(BeZero())
		Expect(dev.Destroyed()).To(BeTrue())
	})

	It("fails on a missing device extension", func() {
		_, err := renderer.New(fake.NewDefaultInstance(), renderer.Config{
			DeviceExtensions: []string{"VK_EXT_mesh_shader"},
		})
		Expect(err).To(MatchError(device.ErrNoSuitableDevice))
	})
})
