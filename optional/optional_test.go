package optional_test

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/optional"
)

func TestOptionalZeroValueIsUnset(t *testing.T) {
	g := NewWithT(t)

	var o optional.Optional[uint32]
	g.Expect(o.HasValue()).To(BeFalse())
	g.Expect(o.Get()).To(BeZero())
}

func TestOptionalSetAndClear(t *testing.T) {
	g := NewWithT(t)

	var o optional.Optional[uint32]
	o.Set(0)
	g.Expect(o.HasValue()).To(BeTrue())
	g.Expect(o.Get()).To(Equal(uint32(0)))

	o.Clear()
	g.Expect(o.HasValue()).To(BeFalse())

	g.Expect(optional.Of("x").Get()).To(Equal("x"))
}
