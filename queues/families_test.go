package queues_test

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/queues"
)

const (
	all      = driver.QueueGraphics | driver.QueueCompute | driver.QueueTransfer
	compute  = driver.QueueCompute | driver.QueueTransfer
	transfer = driver.QueueTransfer
)

func TestResolvePrefersDistinctFamilies(t *testing.T) {
	g := NewWithT(t)

	f := queues.Resolve([]driver.QueueFamily{
		{Flags: all, Count: 16},
		{Flags: compute, Count: 2},
		{Flags: transfer, Count: 1},
	}, []bool{true, false, false})

	g.Expect(f.IsComplete()).To(BeTrue())
	g.Expect(f.Graphics.Get()).To(Equal(uint32(0)))
	g.Expect(f.Present.Get()).To(Equal(uint32(0)))
	g.Expect(f.Compute.Get()).To(Equal(uint32(1)))
	g.Expect(f.Transfer.Get()).To(Equal(uint32(2)))
	g.Expect(f.Unique()).To(Equal([]uint32{0, 1, 2}))
}

func TestResolveSingleFamilyServesEveryRole(t *testing.T) {
	g := NewWithT(t)

	f := queues.Resolve([]driver.QueueFamily{{Flags: all, Count: 1}}, []bool{true})

	g.Expect(f.IsComplete()).To(BeTrue())
	g.Expect(f.Unique()).To(Equal([]uint32{0}))
}

func TestResolvePrefersSharedGraphicsPresentFamily(t *testing.T) {
	g := NewWithT(t)

	f := queues.Resolve([]driver.QueueFamily{
		{Flags: all, Count: 1},
		{Flags: all, Count: 1},
	}, []bool{false, true})

	g.Expect(f.Graphics.Get()).To(Equal(uint32(1)))
	g.Expect(f.Present.Get()).To(Equal(uint32(1)))
	g.Expect(f.Compute.Get()).To(Equal(uint32(0)))
}

func TestResolveSeparatePresentFamily(t *testing.T) {
	g := NewWithT(t)

	f := queues.Resolve([]driver.QueueFamily{
		{Flags: all, Count: 1},
		{Flags: transfer, Count: 1},
	}, []bool{false, true})

	g.Expect(f.Graphics.Get()).To(Equal(uint32(0)))
	g.Expect(f.Present.Get()).To(Equal(uint32(1)))
}

func TestResolveWithoutSurfaceAliasesPresentToGraphics(t *testing.T) {
	g := NewWithT(t)

	f := queues.Resolve([]driver.QueueFamily{{Flags: all, Count: 1}}, nil)

	g.Expect(f.IsComplete()).To(BeTrue())
	g.Expect(f.Present.Get()).To(Equal(f.Graphics.Get()))
}

func TestResolveIncompleteWithoutGraphics(t *testing.T) {
	g := NewWithT(t)

	f := queues.Resolve([]driver.QueueFamily{{Flags: compute, Count: 1}}, []bool{true})

	g.Expect(f.IsComplete()).To(BeFalse())
	g.Expect(f.Graphics.HasValue()).To(BeFalse())
}
