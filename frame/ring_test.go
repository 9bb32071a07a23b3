package frame_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/device"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/driver/fake"
	"github.com/ChewyGumball/bengine-sub000/frame"
)

var _ = Describe("Ring", func() {
	var (
		inst *fake.Instance
		dev  *fake.Device
		ld   *device.Logical
		ring *frame.Ring
	)

	BeforeEach(func() {
		inst = fake.NewDefaultInstance()
		sel, err := device.Select(inst, device.Requirements{})
		Expect(err).NotTo(HaveOccurred())
		ld, err = device.NewLogical(inst, sel, nil)
		Expect(err).NotTo(HaveOccurred())
		dev = inst.Device()

		ring, err = frame.NewRing(ld, frame.Config{})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(ld.WaitIdle()).To(Succeed())
		ring.Destroy()
		ld.Destroy()
	})

	// submit records an empty primary into the slot and submits it the way
	// the renderer does.
	submit := func(s *frame.Slot) {
		Expect(s.Pool.Begin(s.Primary, driver.UsageOneTimeSubmit, nil)).To(Succeed())
		Expect(s.Pool.End(s.Primary)).To(Succeed())
		Expect(s.InFlight.Reset()).To(Succeed())
		Expect(ld.Graphics.Submit(device.Submission{
			CommandBuffers: []driver.CommandBuffer{s.Primary},
			Fence:          s.InFlight,
		})).To(Succeed())
	}

	It("defaults to three slots with one recorder each", func() {
		Expect(ring.Len()).To(Equal(3))
		Expect(ring.RecordingThreads()).To(Equal(1))
		Expect(ring.Index()).To(Equal(0))
	})

	It("reuses slot 0 at frame 3 only after waiting on its fence", func() {
		var order []int
		for f := 0; f < 5; f++ {
			s, err := ring.Begin()
			Expect(err).NotTo(HaveOccurred())
			order = append(order, s.Index())
			submit(s)
			ring.Advance()
		}
		Expect(order).To(Equal([]int{0, 1, 2, 0, 1}))
		Expect(ring.Frame()).To(Equal(uint64(5)))

		slot0 := ring.Slot(0)
		fence := uint64(slot0.InFlight.Handle())
		primary := uint64(slot0.Primary)

		var begins, waitBeforeSecondBegin int
		waited := false
		for _, e := range dev.Events() {
			switch {
			case e.Op == fake.OpComplete && e.Handle == fence && begins == 1:
				waited = true
			case e.Op == fake.OpBegin && e.Handle == primary:
				begins++
				if begins == 2 && waited {
					waitBeforeSecondBegin++
				}
			}
		}
		Expect(begins).To(Equal(2))
		Expect(waitBeforeSecondBegin).To(Equal(1))
		Expect(dev.Violations()).To(BeEmpty())
	})

	It("keeps the fence signaled when a frame is abandoned", func() {
		s, err := ring.Begin()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.InFlight.Signaled()).To(BeTrue())

		s, err = ring.Begin()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Index()).To(Equal(0))
	})

	It("runs retire callbacks once the slot comes back", func() {
		s, err := ring.Begin()
		Expect(err).NotTo(HaveOccurred())
		retired := 0
		s.OnRetire(func() { retired++ })
		submit(s)
		ring.Advance()
		Expect(retired).To(BeZero())

		for i := 0; i < ring.Len(); i++ {
			s, err = ring.Begin()
			Expect(err).NotTo(HaveOccurred())
			submit(s)
			ring.Advance()
		}
		Expect(retired).To(Equal(1))
	})

	It("grows the scratch buffer only when needed", func() {
		s := ring.Current()
		small, err := s.Scratch(16)
		Expect(err).NotTo(HaveOccurred())
		same, err := s.Scratch(1024)
		Expect(err).NotTo(HaveOccurred())
		Expect(same).To(Equal(small))

		big, err := s.Scratch(1 << 20)
		Expect(err).NotTo(HaveOccurred())
		Expect(big).NotTo(Equal(small))
		Expect(dev.Alive(uint64(small))).To(BeFalse())

		info, ok := dev.BufferInfo(big)
		Expect(ok).To(BeTrue())
		Expect(info.Visibility).To(Equal(driver.HostVisible))
		Expect(info.Size).To(BeNumerically(">=", 1<<20))
	})

	It("rebuilds recorders when the thread count changes", func() {
		s, err := ring.Begin()
		Expect(err).NotTo(HaveOccurred())
		submit(s)
		old := s.Recorders[0].Buffer

		Expect(ring.SetRecordingThreads(4)).To(Succeed())
		Expect(ring.RecordingThreads()).To(Equal(4))
		Expect(dev.Alive(uint64(old))).To(BeFalse())
		Expect(dev.Violations()).To(BeEmpty())
	})
})
