package vulkan

import (
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	vk "github.com/vulkan-go/vulkan"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

func TestTableHandlesAreNeverZero(t *testing.T) {
	g := NewWithT(t)

	var tbl table[string]
	a := tbl.put("a")
	b := tbl.put("b")
	g.Expect(a).NotTo(BeZero())
	g.Expect(b).NotTo(Equal(a))
	g.Expect(tbl.get(b)).To(Equal("b"))

	v, ok := tbl.take(a)
	g.Expect(ok).To(BeTrue())
	g.Expect(v).To(Equal("a"))

	_, ok = tbl.take(a)
	g.Expect(ok).To(BeFalse())
	g.Expect(tbl.get(a)).To(BeEmpty())

	// Released handles are not reused.
	g.Expect(tbl.put("c")).To(BeNumerically(">", b))
}

func TestResultError(t *testing.T) {
	g := NewWithT(t)

	g.Expect(resultError(vk.Success)).To(Succeed())
	g.Expect(errors.Is(resultError(vk.ErrorDeviceLost), driver.ErrDeviceLost)).To(BeTrue())
	g.Expect(errors.Is(resultError(vk.Timeout), driver.ErrTimeout)).To(BeTrue())
	g.Expect(errors.Is(resultError(vk.ErrorOutOfDeviceMemory), driver.ErrOutOfDeviceMemory)).To(BeTrue())
	g.Expect(errors.Is(resultError(vk.ErrorExtensionNotPresent), driver.ErrExtensionNotPresent)).To(BeTrue())
	g.Expect(resultError(vk.ErrorInitializationFailed)).To(HaveOccurred())
}

func TestTimeoutNanos(t *testing.T) {
	g := NewWithT(t)

	g.Expect(timeoutNanos(driver.Forever)).To(Equal(uint64(math.MaxUint64)))
	g.Expect(timeoutNanos(0)).To(BeZero())
	g.Expect(timeoutNanos(2 * time.Millisecond)).To(Equal(uint64(2000000)))
}

func TestFormatsRoundTrip(t *testing.T) {
	g := NewWithT(t)

	for f := range formats {
		g.Expect(fromFormat(toFormat(f))).To(Equal(f))
	}
	g.Expect(fromFormat(vk.FormatR16g16b16a16Sfloat)).To(Equal(driver.FormatUndefined))
}

func TestMaskConversions(t *testing.T) {
	g := NewWithT(t)

	g.Expect(toStages(driver.StageTransfer | driver.StageFragmentShader)).To(Equal(
		vk.PipelineStageFlags(vk.PipelineStageTransferBit) |
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)))
	g.Expect(toAccess(driver.AccessNone)).To(BeZero())
	g.Expect(toAccess(driver.AccessTransferWrite)).To(Equal(vk.AccessFlags(vk.AccessTransferWriteBit)))
	g.Expect(toAspect(driver.AspectDepth | driver.AspectStencil)).To(Equal(
		vk.ImageAspectFlags(vk.ImageAspectDepthBit) | vk.ImageAspectFlags(vk.ImageAspectStencilBit)))
	g.Expect(toBufferUsage(driver.BufferVertex | driver.BufferTransferDst)).To(Equal(
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit) |
			vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)))
	g.Expect(fromQueueFlags(vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueTransferBit))).To(Equal(
		driver.QueueGraphics | driver.QueueTransfer))
}

func TestSharing(t *testing.T) {
	g := NewWithT(t)

	mode, families := sharing([]uint32{0})
	g.Expect(mode).To(Equal(vk.SharingModeExclusive))
	g.Expect(families).To(BeNil())

	mode, families = sharing([]uint32{0, 2})
	g.Expect(mode).To(Equal(vk.SharingModeConcurrent))
	g.Expect(families).To(Equal([]uint32{0, 2}))
}
