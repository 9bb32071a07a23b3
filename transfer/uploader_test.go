package transfer_test

import (
	"bytes"

	"github.com/gogpu/gputypes"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/assets"
	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/driver/fake"
	"github.com/ChewyGumball/bengine-sub000/transfer"
)

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + 3)
	}
	return out
}

var _ = Describe("Uploader", func() {
	var (
		inst     *fake.Instance
		dev      *fake.Device
		ld       *device.Logical
		up       *transfer.Uploader
		baseline int
	)

	BeforeEach(func() {
		inst = fake.NewDefaultInstance()
		sel, err := device.Select(inst, device.Requirements{})
		Expect(err).NotTo(HaveOccurred())
		ld, err = device.NewLogical(inst, sel, nil)
		Expect(err).NotTo(HaveOccurred())
		dev = inst.Device()
		baseline = dev.LiveObjects()

		up = transfer.NewUploader(ld, transfer.Config{})
	})

	AfterEach(func() {
		Expect(up.Destroy()).To(Succeed())
		Expect(dev.Violations()).To(BeEmpty())
		ld.Destroy()
	})

	Describe("buffers", func() {
		DescribeTable("round trips device local data",
			func(size int) {
				data := pattern(size)
				buf, err := up.CreateBuffer(data, driver.BufferVertex, driver.DeviceLocal)
				Expect(err).NotTo(HaveOccurred())
				defer buf.Destroy()

				Expect(buf.Size).To(Equal(uint64(size)))
				Expect(buf.Usage & driver.BufferTransferDst).NotTo(BeZero())
				Expect(buf.Usage & driver.BufferTransferSrc).NotTo(BeZero())

				// The download reads what an earlier transfer wrote, so it
				// has to be ordered behind a barrier.
				got, err := up.Download(buf)
				Expect(err).NotTo(HaveOccurred())
				Expect(bytes.Equal(got, data)).To(BeTrue())
				Expect(dev.Violations()).To(BeEmpty())
			},
			Entry("one byte", 1),
			Entry("one page", 4096),
			Entry("several pages", 3*4096+7),
		)

		It("creates empty buffers without submitting", func() {
			buf, err := up.CreateBuffer(nil, driver.BufferIndex, driver.DeviceLocal)
			Expect(err).NotTo(HaveOccurred())
			defer buf.Destroy()

			Expect(buf.Size).To(BeZero())
			Expect(up.Generation()).To(BeZero())
			Expect(dev.Pending()).To(BeZero())

			got, err := up.Download(buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})

		It("writes host visible buffers directly", func() {
			data := pattern(64)
			buf, err := up.CreateBuffer(data, driver.BufferUniform, driver.HostVisible)
			Expect(err).NotTo(HaveOccurred())
			defer buf.Destroy()

			Expect(up.Generation()).To(BeZero())
			got := make([]byte, 16)
			Expect(up.ReadBuffer(buf, 8, got)).To(Succeed())
			Expect(got).To(Equal(data[8:24]))
		})

		It("shares buffers between the graphics and transfer families", func() {
			buf, err := up.CreateBuffer(pattern(4), driver.BufferVertex, driver.DeviceLocal)
			Expect(err).NotTo(HaveOccurred())
			defer buf.Destroy()

			info, ok := dev.BufferInfo(buf.Handle)
			Expect(ok).To(BeTrue())
			Expect(info.Families).To(Equal([]uint32{0, 2}))
		})

		It("creates buffers from typed slices", func() {
			buf, err := transfer.CreateBufferFrom(up, []uint32{1, 2, 3}, driver.BufferIndex, driver.DeviceLocal)
			Expect(err).NotTo(HaveOccurred())
			defer buf.Destroy()
			Expect(buf.Size).To(Equal(uint64(12)))
		})

		It("bounds checks uniform writes", func() {
			buf, err := up.CreateUniformBuffer(16)
			Expect(err).NotTo(HaveOccurred())
			defer buf.Destroy()
			Expect(buf.Usage & driver.BufferTransferDst).NotTo(BeZero())

			Expect(up.WriteBuffer(buf, 0, pattern(16))).To(Succeed())
			Expect(up.WriteBuffer(buf, 8, pattern(16))).To(MatchError(driver.ErrOutOfRange))
		})

		It("refuses host access to device local buffers", func() {
			buf, err := up.CreateBuffer(pattern(4), driver.BufferVertex, driver.DeviceLocal)
			Expect(err).NotTo(HaveOccurred())
			defer buf.Destroy()
			Expect(up.WriteBuffer(buf, 0, pattern(4))).To(MatchError(driver.ErrNotHostVisible))
		})
	})

	Describe("cleanup", func() {
		It("keeps staging resources until the fence signals", func() {
			buf, err := up.CreateBuffer(pattern(32), driver.BufferVertex, driver.DeviceLocal)
			Expect(err).NotTo(HaveOccurred())
			defer buf.Destroy()

			// Buffer, staging buffer, fence and semaphore.
			Expect(dev.LiveObjects()).To(Equal(baseline + 4))

			Expect(up.ProcessFinishedSubmitResources()).To(Succeed())
			Expect(up.InFlight()).To(Equal(1))
			Expect(dev.LiveObjects()).To(Equal(baseline + 4))

			dev.CompleteAll()
			Expect(up.ProcessFinishedSubmitResources()).To(Succeed())
			Expect(up.InFlight()).To(BeZero())
			Expect(dev.LiveObjects()).To(Equal(baseline + 1))
		})

		It("retires submissions in order and stops at the first unfinished one", func() {
			var bufs []*transfer.Buffer
			for i := 0; i < 3; i++ {
				buf, err := up.CreateBuffer(pattern(8), driver.BufferVertex, driver.DeviceLocal)
				Expect(err).NotTo(HaveOccurred())
				bufs = append(bufs, buf)
			}
			Expect(up.InFlight()).To(Equal(3))

			dev.Complete(2)
			Expect(up.ProcessFinishedSubmitResources()).To(Succeed())
			Expect(up.InFlight()).To(Equal(1))

			dev.CompleteAll()
			Expect(up.ProcessFinishedSubmitResources()).To(Succeed())
			Expect(up.InFlight()).To(BeZero())

			for _, b := range bufs {
				b.Destroy()
			}
			Expect(dev.LiveObjects()).To(Equal(baseline))
		})

		It("waits for the oldest submission when the arena is full", func() {
			Expect(up.Destroy()).To(Succeed())
			up = transfer.NewUploader(ld, transfer.Config{MaxInFlight: 2})

			var bufs []*transfer.Buffer
			for i := 0; i < 3; i++ {
				buf, err := up.CreateBuffer(pattern(8), driver.BufferVertex, driver.DeviceLocal)
				Expect(err).NotTo(HaveOccurred())
				bufs = append(bufs, buf)
			}
			Expect(up.Generation()).To(Equal(uint64(3)))
			Expect(up.InFlight()).To(Equal(2))
			Expect(dev.Pending()).To(Equal(2))

			Expect(up.Flush()).To(Succeed())
			Expect(up.InFlight()).To(BeZero())
			for _, b := range bufs {
				b.Destroy()
			}
		})

		It("hands semaphores to the next frame once and recycles them", func() {
			buf, err := up.CreateBuffer(pattern(8), driver.BufferVertex, driver.DeviceLocal)
			Expect(err).NotTo(HaveOccurred())
			defer buf.Destroy()

			sems := up.TakeWaitSemaphores()
			Expect(sems).To(HaveLen(1))
			Expect(up.TakeWaitSemaphores()).To(BeEmpty())

			// A frame waits on the semaphore.
			pool := ld.Graphics.Pool()
			cb, err := pool.AllocateSingleUseBuffer(driver.LevelPrimary, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(pool.End(cb)).To(Succeed())
			Expect(ld.Graphics.Submit(device.Submission{
				Waits:          []driver.SemaphoreWait{{Semaphore: sems[0].Handle(), Stage: driver.StageAllCommands}},
				CommandBuffers: []driver.CommandBuffer{cb},
			})).To(Succeed())
			Expect(ld.WaitIdle()).To(Succeed())
			pool.Free(cb)

			Expect(up.ProcessFinishedSubmitResources()).To(Succeed())
			Expect(dev.Alive(uint64(sems[0].Handle()))).To(BeTrue())
			up.RecycleSemaphores(sems)

			again, err := up.CreateBuffer(pattern(8), driver.BufferVertex, driver.DeviceLocal)
			Expect(err).NotTo(HaveOccurred())
			defer again.Destroy()
			Expect(up.TakeWaitSemaphores()).To(ConsistOf(BeIdenticalTo(sems[0])))
			Expect(up.Flush()).To(Succeed())
		})

		It("destroys semaphores nobody waited on", func() {
			buf, err := up.CreateBuffer(pattern(8), driver.BufferVertex, driver.DeviceLocal)
			Expect(err).NotTo(HaveOccurred())
			defer buf.Destroy()

			Expect(up.Flush()).To(Succeed())
			Expect(up.TakeWaitSemaphores()).To(BeEmpty())
			Expect(dev.LiveObjects()).To(Equal(baseline + 1))
		})
	})

	Describe("images", func() {
		It("uploads pixels and leaves the image readable by shaders", func() {
			pixels := pattern(4 * 4 * 4)
			img, err := up.CreateImage(transfer.ImageDesc{Width: 4, Height: 4, Format: driver.FormatR8G8B8A8Unorm}, pixels)
			Expect(err).NotTo(HaveOccurred())
			defer img.Destroy()

			Expect(img.Usage & driver.ImageTransferDst).NotTo(BeZero())
			Expect(img.Usage & driver.ImageSampled).NotTo(BeZero())

			Expect(up.Flush()).To(Succeed())
			Expect(dev.ImageContents(img.Handle)).To(Equal(pixels))
			Expect(dev.ImageLayout(img.Handle)).To(Equal(driver.LayoutShaderReadOnly))
			extent, ok := dev.ViewExtent(img.View)
			Expect(ok).To(BeTrue())
			Expect(extent).To(Equal(img.Extent()))
		})

		It("rejects pixel data of the wrong size", func() {
			_, err := up.CreateImage(transfer.ImageDesc{Width: 4, Height: 4, Format: driver.FormatR8G8B8A8Unorm}, pattern(10))
			Expect(err).To(MatchError(transfer.ErrPixelSize))
			Expect(dev.LiveObjects()).To(Equal(baseline))
		})

		It("creates textures with a sampler", func() {
			tex, err := up.CreateTexture(&assets.Texture{
				Width:  2,
				Height: 2,
				Format: gputypes.TextureFormatRGBA8Unorm,
				Pixels: pattern(16),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(tex.Sampler).NotTo(BeZero())
			Expect(tex.Format).To(Equal(driver.FormatR8G8B8A8Unorm))

			Expect(up.Flush()).To(Succeed())
			tex.Destroy()
			Expect(dev.LiveObjects()).To(Equal(baseline))
		})

		It("rejects texture formats without a native equivalent", func() {
			_, err := up.CreateTexture(&assets.Texture{
				Width:  1,
				Height: 1,
				Format: gputypes.TextureFormatUndefined,
				Pixels: pattern(4),
			})
			Expect(err).To(MatchError(transfer.ErrUnsupportedFormat))
		})
	})

	It("uploads a mesh in one submission", func() {
		mesh := &assets.Mesh{
			Format:   assets.PositionTexCoordFormat,
			Vertices: pattern(3 * 20),
			Indices:  []uint32{0, 1, 2},
			SubMeshes: map[string]assets.IndexRange{
				"tri": {First: 0, Count: 3},
			},
		}
		m, err := up.CreateMesh(mesh)
		Expect(err).NotTo(HaveOccurred())
		defer m.Destroy()

		Expect(up.Generation()).To(Equal(uint64(1)))
		Expect(m.VertexCount).To(Equal(uint32(3)))
		Expect(m.IndexCount).To(Equal(uint32(3)))

		got, err := up.Download(m.Vertices)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(mesh.Vertices))

		idx, err := up.Download(m.Indices)
		Expect(err).NotTo(HaveOccurred())
		Expect(idx).To(Equal([]byte{0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0}))
	})
})
