package transfer

import (
	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/driver"
)

// ErrUnsupportedTransition is returned for layout transitions the uploader
// does not know the masks for.
var ErrUnsupportedTransition = errors.New("unsupported layout transition")

// LayoutBarrier returns the barrier moving img between two layouts. On a
// queue without graphics support the fragment shader stage does not exist,
// so the final transition only completes by the bottom of the pipe and the
// semaphore the graphics queue waits on carries the dependency onwards.
func LayoutBarrier(
	img driver.Image,
	aspect driver.ImageAspect,
	oldLayout, newLayout driver.ImageLayout,
	graphicsQueue bool,
) (driver.ImageBarrier, error) {
	barrier := driver.ImageBarrier{
		Image:          img,
		Aspect:         aspect,
		OldLayout:      oldLayout,
		NewLayout:      newLayout,
		SrcQueueFamily: driver.IgnoredFamily,
		DstQueueFamily: driver.IgnoredFamily,
	}

	switch {
	case oldLayout == driver.LayoutUndefined && newLayout == driver.LayoutTransferDst:
		barrier.SrcAccess = driver.AccessNone
		barrier.DstAccess = driver.AccessTransferWrite
		barrier.SrcStage = driver.StageTopOfPipe
		barrier.DstStage = driver.StageTransfer

	case oldLayout == driver.LayoutTransferDst && newLayout == driver.LayoutShaderReadOnly:
		barrier.SrcAccess = driver.AccessTransferWrite
		barrier.SrcStage = driver.StageTransfer
		if graphicsQueue {
			barrier.DstAccess = driver.AccessShaderRead
			barrier.DstStage = driver.StageFragmentShader
		} else {
			barrier.DstAccess = driver.AccessNone
			barrier.DstStage = driver.StageBottomOfPipe
		}

	default:
		return driver.ImageBarrier{}, errors.Wrapf(ErrUnsupportedTransition, "%s to %s", oldLayout, newLayout)
	}

	return barrier, nil
}
