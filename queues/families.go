package queues

import (
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/optional"
)

// FamilyIndices holds the indexes of the queue families used for each queue
// role.
type FamilyIndices struct {

	// Graphics is the index of the graphics queue family.
	Graphics optional.Optional[uint32]

	// Compute is the index of the queue family used for compute work.
	Compute optional.Optional[uint32]

	// Transfer is the index of the queue family used for uploads.
	Transfer optional.Optional[uint32]

	// Present is the index of the queue family used for presenting to the drawing
	// surface.
	Present optional.Optional[uint32]
}

// IsComplete returns true if all families have been set.
func (f *FamilyIndices) IsComplete() bool {
	return f.Graphics.HasValue() && f.Compute.HasValue() &&
		f.Transfer.HasValue() && f.Present.HasValue()
}

// Unique returns the distinct families in role order: graphics, compute,
// transfer, present. Unset roles are skipped.
func (f *FamilyIndices) Unique() []uint32 {
	var out []uint32
	seen := make(map[uint32]struct{})
	for _, o := range []optional.Optional[uint32]{f.Graphics, f.Compute, f.Transfer, f.Present} {
		if !o.HasValue() {
			continue
		}
		if _, ok := seen[o.Get()]; ok {
			continue
		}
		seen[o.Get()] = struct{}{}
		out = append(out, o.Get())
	}
	return out
}

// Resolve assigns queue families to roles.
//
// Graphics and present prefer a single family able to do both. Compute and
// transfer prefer families other than the graphics one so that their work
// can overlap rendering, and transfer prefers a dedicated transfer only
// family above all. Graphics and compute families are always transfer
// capable.
//
// canPresent has one entry per family. A nil canPresent means there is no
// surface and the present role uses the graphics family.
func Resolve(families []driver.QueueFamily, canPresent []bool) FamilyIndices {
	var indices FamilyIndices

	for i, fam := range families {
		if fam.Count == 0 || fam.Flags&driver.QueueGraphics == 0 {
			continue
		}
		if canPresent == nil || presents(canPresent, i) {
			indices.Graphics.Set(uint32(i))
			indices.Present.Set(uint32(i))
			break
		}
		if !indices.Graphics.HasValue() {
			indices.Graphics.Set(uint32(i))
		}
	}
	if !indices.Present.HasValue() {
		for i, fam := range families {
			if fam.Count > 0 && presents(canPresent, i) {
				indices.Present.Set(uint32(i))
				break
			}
		}
	}

	isGraphics := func(i int) bool {
		return indices.Graphics.HasValue() && indices.Graphics.Get() == uint32(i)
	}

	indices.Compute = pick(families, func(i int, fam driver.QueueFamily) bool {
		return fam.Flags&driver.QueueCompute != 0 && !isGraphics(i)
	}, func(_ int, fam driver.QueueFamily) bool {
		return fam.Flags&driver.QueueCompute != 0
	})

	isCompute := func(i int) bool {
		return indices.Compute.HasValue() && indices.Compute.Get() == uint32(i)
	}

	indices.Transfer = pick(families, func(_ int, fam driver.QueueFamily) bool {
		return fam.Flags&(driver.QueueGraphics|driver.QueueCompute) == 0 && transfers(fam)
	}, func(i int, fam driver.QueueFamily) bool {
		return transfers(fam) && !isGraphics(i) && !isCompute(i)
	}, func(i int, fam driver.QueueFamily) bool {
		return transfers(fam) && !isGraphics(i)
	}, func(_ int, fam driver.QueueFamily) bool {
		return transfers(fam)
	})

	return indices
}

func presents(canPresent []bool, i int) bool {
	return i < len(canPresent) && canPresent[i]
}

func transfers(fam driver.QueueFamily) bool {
	return fam.Flags&(driver.QueueGraphics|driver.QueueCompute|driver.QueueTransfer) != 0
}

// pick returns the first family accepted by the earliest predicate that
// accepts any.
func pick(
	families []driver.QueueFamily,
	preferences ...func(int, driver.QueueFamily) bool,
) optional.Optional[uint32] {
	var out optional.Optional[uint32]
	for _, accept := range preferences {
		for i, fam := range families {
			if fam.Count > 0 && accept(i, fam) {
				out.Set(uint32(i))
				return out
			}
		}
	}
	return out
}
