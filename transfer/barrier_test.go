package transfer

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

func TestLayoutBarrierMasks(t *testing.T) {
	g := NewWithT(t)

	toDst, err := LayoutBarrier(7, driver.AspectColor, driver.LayoutUndefined, driver.LayoutTransferDst, false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(toDst.SrcAccess).To(Equal(driver.AccessNone))
	g.Expect(toDst.DstAccess).To(Equal(driver.AccessTransferWrite))
	g.Expect(toDst.SrcStage).To(Equal(driver.StageTopOfPipe))
	g.Expect(toDst.DstStage).To(Equal(driver.StageTransfer))
	g.Expect(toDst.SrcQueueFamily).To(Equal(driver.IgnoredFamily))
	g.Expect(toDst.DstQueueFamily).To(Equal(driver.IgnoredFamily))

	toRead, err := LayoutBarrier(7, driver.AspectColor, driver.LayoutTransferDst, driver.LayoutShaderReadOnly, true)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(toRead.SrcAccess).To(Equal(driver.AccessTransferWrite))
	g.Expect(toRead.DstAccess).To(Equal(driver.AccessShaderRead))
	g.Expect(toRead.SrcStage).To(Equal(driver.StageTransfer))
	g.Expect(toRead.DstStage).To(Equal(driver.StageFragmentShader))
}

func TestLayoutBarrierOnTransferOnlyQueue(t *testing.T) {
	g := NewWithT(t)

	b, err := LayoutBarrier(7, driver.AspectColor, driver.LayoutTransferDst, driver.LayoutShaderReadOnly, false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(b.DstAccess).To(Equal(driver.AccessNone))
	g.Expect(b.DstStage).To(Equal(driver.StageBottomOfPipe))
}

func TestLayoutBarrierUnsupported(t *testing.T) {
	g := NewWithT(t)

	_, err := LayoutBarrier(7, driver.AspectColor, driver.LayoutShaderReadOnly, driver.LayoutPresentSrc, true)
	g.Expect(err).To(MatchError(ErrUnsupportedTransition))
}
