package transfer

import (
	"github.com/ChewyGumball/bengine-sub000/assets"
	"github.com/ChewyGumball/bengine-sub000/driver"
)

// Buffer is a GPU buffer created by an Uploader. The creator owns it and
// destroys it explicitly once no submitted work uses it.
type Buffer struct {
	Handle     driver.Buffer
	Size       uint64
	Usage      driver.BufferUsage
	Visibility driver.Visibility
	// Families the buffer is concurrently shared between. Empty means
	// exclusive to the family it is first used on.
	Families []uint32

	dev driver.Device
}

// Destroy destroys the buffer.
func (b *Buffer) Destroy() {
	if b == nil || b.Handle == 0 {
		return
	}
	b.dev.DestroyBuffer(b.Handle)
	b.Handle = 0
}

// Image is a 2D GPU image and a view of it. Uploaded images end in the
// shader read only layout.
type Image struct {
	Handle        driver.Image
	View          driver.ImageView
	Width, Height uint32
	Format        driver.Format
	Usage         driver.ImageUsage
	Families      []uint32

	dev driver.Device
}

// Extent returns the size of the image.
func (i *Image) Extent() driver.Extent2D {
	return driver.Extent2D{Width: i.Width, Height: i.Height}
}

// Destroy destroys the view and the image.
func (i *Image) Destroy() {
	if i == nil || i.Handle == 0 {
		return
	}
	if i.View != 0 {
		i.dev.DestroyImageView(i.View)
		i.View = 0
	}
	i.dev.DestroyImage(i.Handle)
	i.Handle = 0
}

// Texture is a sampled image.
type Texture struct {
	*Image
	Sampler driver.Sampler
}

// Destroy destroys the sampler and the image.
func (t *Texture) Destroy() {
	if t == nil {
		return
	}
	if t.Sampler != 0 {
		t.dev.DestroySampler(t.Sampler)
		t.Sampler = 0
	}
	t.Image.Destroy()
}

// Mesh is an uploaded vertex and index buffer pair.
type Mesh struct {
	Vertices    *Buffer
	Indices     *Buffer
	VertexCount uint32
	IndexCount  uint32
	Format      assets.VertexFormat
	SubMeshes   map[string]assets.IndexRange
}

// Destroy destroys both buffers.
func (m *Mesh) Destroy() {
	if m == nil {
		return
	}
	m.Vertices.Destroy()
	m.Indices.Destroy()
}

// ImageDesc describes an image to create.
type ImageDesc struct {
	Width, Height uint32
	Format        driver.Format
	// Usage is extended with transfer destination and sampled usage.
	Usage driver.ImageUsage
}
