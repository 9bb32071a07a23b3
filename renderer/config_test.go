package renderer

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestConfigDefaults(t *testing.T) {
	g := NewWithT(t)

	c := Config{}.withDefaults()
	g.Expect(c.FramesInFlight).To(Equal(3))
	g.Expect(c.RecordingThreads).To(Equal(1))
	g.Expect(c.TransferSlots).To(Equal(16))
	g.Expect(c.FenceTimeout).To(BeZero())
	g.Expect(c.Width).To(Equal(uint32(800)))
	g.Expect(c.Height).To(Equal(uint32(600)))
	g.Expect(c.ClearColor).To(Equal([4]float32{0, 0, 0, 1}))

	c = Config{FramesInFlight: 2, RecordingThreads: 4, ClearColor: [4]float32{1, 0, 0, 1}}.withDefaults()
	g.Expect(c.FramesInFlight).To(Equal(2))
	g.Expect(c.RecordingThreads).To(Equal(4))
	g.Expect(c.ClearColor).To(Equal([4]float32{1, 0, 0, 1}))
}

func TestAlign(t *testing.T) {
	g := NewWithT(t)
	g.Expect(align(0)).To(Equal(uint64(0)))
	g.Expect(align(1)).To(Equal(uint64(16)))
	g.Expect(align(16)).To(Equal(uint64(16)))
	g.Expect(align(17)).To(Equal(uint64(32)))
}
