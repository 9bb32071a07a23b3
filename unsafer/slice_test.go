package unsafer_test

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/unsafer"
)

func TestSliceToBytesSharesMemory(t *testing.T) {
	g := NewWithT(t)

	in := []uint16{0x0102, 0x0304}
	out := unsafer.SliceToBytes(in)
	g.Expect(out).To(HaveLen(4))

	out[0] = 0xff
	g.Expect(in[0] & 0xff).To(Equal(uint16(0xff)))
	g.Expect(unsafer.SliceToBytes([]uint32(nil))).To(BeEmpty())
}

func TestStructToBytes(t *testing.T) {
	g := NewWithT(t)

	v := struct{ A, B uint32 }{1, 2}
	g.Expect(unsafer.StructToBytes(&v)).To(HaveLen(8))
}

func TestBytesToUint32Pads(t *testing.T) {
	g := NewWithT(t)

	words := unsafer.BytesToUint32([]byte{1, 0, 0, 0, 2})
	g.Expect(words).To(HaveLen(2))
	g.Expect(words[0]).To(Equal(uint32(1)))
	g.Expect(words[1]).To(Equal(uint32(2)))
}
