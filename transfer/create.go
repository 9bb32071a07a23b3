package transfer

import (
	"github.com/gogpu/gputypes"
	"github.com/pkg/errors"

	"github.com/ChewyGumball/bengine-sub000/assets"
	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/unsafer"
)

var (
	// ErrPixelSize is returned when pixel data does not match the image.
	ErrPixelSize = errors.New("pixel data does not match image size")
	// ErrUnsupportedFormat is returned for texture formats with no native
	// equivalent.
	ErrUnsupportedFormat = errors.New("unsupported texture format")
)

// CreateBuffer creates a buffer holding data.
//
// Host visible buffers are written directly. Device local buffers are
// filled from a staging buffer on the transfer queue; the copy is ordered
// before the next frame through TakeWaitSemaphores. An empty buffer has
// Size 0 and is not submitted anywhere.
//
// Device local buffers can always be copied into and out of, so they take
// RawUpload commands and Download.
func (u *Uploader) CreateBuffer(data []byte, usage driver.BufferUsage, visibility driver.Visibility) (*Buffer, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.createBuffer(data, usage, visibility)
}

func (u *Uploader) createBuffer(data []byte, usage driver.BufferUsage, visibility driver.Visibility) (*Buffer, error) {
	if visibility == driver.DeviceLocal {
		usage |= driver.BufferTransferSrc | driver.BufferTransferDst
	}
	buf, err := u.allocate(uint64(len(data)), usage, visibility)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return buf, nil
	}

	if visibility == driver.HostVisible {
		if err := u.dev.Device.WriteBuffer(buf.Handle, 0, data); err != nil {
			buf.Destroy()
			return nil, errors.Wrap(err, "write buffer")
		}
		return buf, nil
	}

	b, err := u.begin()
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	if err := b.copyBuffer(buf.Handle, data); err != nil {
		b.abort()
		buf.Destroy()
		return nil, err
	}
	if err := b.submit(); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

// allocate creates an unfilled buffer. Native buffers cannot be empty, so a
// zero size allocates one byte.
func (u *Uploader) allocate(size uint64, usage driver.BufferUsage, visibility driver.Visibility) (*Buffer, error) {
	native := size
	if native == 0 {
		native = 1
	}
	h, err := u.dev.Device.CreateBuffer(driver.BufferCreateInfo{
		Size:       native,
		Usage:      usage,
		Visibility: visibility,
		Families:   u.families,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %d byte buffer", size)
	}
	return &Buffer{
		Handle:     h,
		Size:       size,
		Usage:      usage,
		Visibility: visibility,
		Families:   u.families,
		dev:        u.dev.Device,
	}, nil
}

// CreateBufferFrom creates a buffer holding the elements of data. T must
// not contain pointers.
func CreateBufferFrom[T any](u *Uploader, data []T, usage driver.BufferUsage, visibility driver.Visibility) (*Buffer, error) {
	return u.CreateBuffer(unsafer.SliceToBytes(data), usage, visibility)
}

// CreateUniformBuffer creates a host visible uniform buffer of the given
// size, to be updated with WriteBuffer or a RawUpload.
func (u *Uploader) CreateUniformBuffer(size uint64) (*Buffer, error) {
	return u.allocate(size, driver.BufferUniform|driver.BufferTransferDst, driver.HostVisible)
}

// WriteBuffer writes data into a host visible buffer at offset.
func (u *Uploader) WriteBuffer(buf *Buffer, offset uint64, data []byte) error {
	if buf.Visibility != driver.HostVisible {
		return errors.Wrap(driver.ErrNotHostVisible, "write buffer")
	}
	if offset+uint64(len(data)) > buf.Size {
		return errors.Wrapf(driver.ErrOutOfRange, "write %d bytes at %d into %d byte buffer", len(data), offset, buf.Size)
	}
	if err := u.dev.Device.WriteBuffer(buf.Handle, offset, data); err != nil {
		return errors.Wrap(err, "write buffer")
	}
	return nil
}

// ReadBuffer reads len(data) bytes at offset from a host visible buffer.
func (u *Uploader) ReadBuffer(buf *Buffer, offset uint64, data []byte) error {
	if buf.Visibility != driver.HostVisible {
		return errors.Wrap(driver.ErrNotHostVisible, "read buffer")
	}
	if offset+uint64(len(data)) > buf.Size {
		return errors.Wrapf(driver.ErrOutOfRange, "read %d bytes at %d from %d byte buffer", len(data), offset, buf.Size)
	}
	if err := u.dev.Device.ReadBuffer(buf.Handle, offset, data); err != nil {
		return errors.Wrap(err, "read buffer")
	}
	return nil
}

// Download copies the contents of any buffer back to the host. It waits for
// the copy and for every earlier transfer, so it is meant for tools and
// tests rather than the frame loop.
func (u *Uploader) Download(buf *Buffer) ([]byte, error) {
	out := make([]byte, buf.Size)
	if buf.Size == 0 {
		return out, nil
	}
	if buf.Visibility == driver.HostVisible {
		return out, u.ReadBuffer(buf, 0, out)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	d := u.dev.Device
	readback, err := d.CreateBuffer(driver.BufferCreateInfo{
		Size:       buf.Size,
		Usage:      driver.BufferTransferDst,
		Visibility: driver.HostVisible,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create readback buffer")
	}
	defer d.DestroyBuffer(readback)

	b, err := u.begin()
	if err != nil {
		return nil, err
	}
	// Earlier submissions may have written buf with transfers.
	d.CmdMemoryBarrier(b.cb, driver.MemoryBarrier{
		SrcAccess: driver.AccessTransferWrite,
		DstAccess: driver.AccessTransferRead,
		SrcStage:  driver.StageTransfer,
		DstStage:  driver.StageTransfer,
	})
	d.CmdCopyBuffer(b.cb, buf.Handle, readback, []driver.BufferCopy{{Size: buf.Size}})
	b.steps = append(b.steps, "download")
	if err := b.submit(); err != nil {
		return nil, err
	}
	for u.count > 0 {
		if err := u.retireOldest(); err != nil {
			return nil, err
		}
	}

	if err := d.ReadBuffer(readback, 0, out); err != nil {
		return nil, errors.Wrap(err, "read back buffer")
	}
	return out, nil
}

// CreateImage creates an image and uploads pixels into it. The image ends
// in the shader read only layout. Without pixels the image is left
// undefined and nothing is submitted.
func (u *Uploader) CreateImage(desc ImageDesc, pixels []byte) (*Image, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.createImage(desc, pixels)
}

func (u *Uploader) createImage(desc ImageDesc, pixels []byte) (*Image, error) {
	if pixels != nil {
		want := uint64(desc.Width) * uint64(desc.Height) * uint64(desc.Format.Size())
		if uint64(len(pixels)) != want {
			return nil, errors.Wrapf(ErrPixelSize, "%d bytes for %dx%d %v", len(pixels), desc.Width, desc.Height, desc.Format)
		}
		desc.Usage |= driver.ImageTransferDst
	}
	desc.Usage |= driver.ImageSampled

	d := u.dev.Device
	h, err := d.CreateImage(driver.ImageCreateInfo{
		Width:    desc.Width,
		Height:   desc.Height,
		Format:   desc.Format,
		Usage:    desc.Usage,
		Families: u.families,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %dx%d image", desc.Width, desc.Height)
	}
	img := &Image{
		Handle:   h,
		Width:    desc.Width,
		Height:   desc.Height,
		Format:   desc.Format,
		Usage:    desc.Usage,
		Families: u.families,
		dev:      d,
	}

	img.View, err = d.CreateImageView(h, desc.Format, driver.AspectColor)
	if err != nil {
		img.Destroy()
		return nil, errors.Wrap(err, "create image view")
	}
	if pixels == nil {
		return img, nil
	}

	b, err := u.begin()
	if err != nil {
		img.Destroy()
		return nil, err
	}
	if err := b.copyImage(img, pixels); err != nil {
		b.abort()
		img.Destroy()
		return nil, err
	}
	if err := b.submit(); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// textureFormat maps an asset texture format to the native one.
func textureFormat(f gputypes.TextureFormat) (driver.Format, error) {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return driver.FormatR8G8B8A8Unorm, nil
	case gputypes.TextureFormatBGRA8Unorm:
		return driver.FormatB8G8R8A8Unorm, nil
	case gputypes.TextureFormatR8Unorm:
		return driver.FormatR8Unorm, nil
	}
	return driver.FormatUndefined, errors.Wrapf(ErrUnsupportedFormat, "%v", f)
}

// CreateTexture uploads a decoded texture and creates an anisotropic
// sampler for it.
func (u *Uploader) CreateTexture(tex *assets.Texture) (*Texture, error) {
	format, err := textureFormat(tex.Format)
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	img, err := u.createImage(ImageDesc{Width: tex.Width, Height: tex.Height, Format: format}, tex.Pixels)
	if err != nil {
		return nil, err
	}

	sampler, err := u.dev.Device.CreateSampler(driver.SamplerCreateInfo{
		Anisotropy:    true,
		MaxAnisotropy: u.dev.Selection.Physical.MaxAnisotropy,
	})
	if err != nil {
		// The upload may still be executing.
		u.deferDestroy(img)
		return nil, errors.Wrap(err, "create texture sampler")
	}
	return &Texture{Image: img, Sampler: sampler}, nil
}

// deferDestroy destroys img once every submitted transfer has completed.
func (u *Uploader) deferDestroy(img *Image) {
	for u.count > 0 {
		if err := u.retireOldest(); err != nil {
			u.log.Warn("leaking image after failed wait", "image", img.Handle, "error", err)
			return
		}
	}
	img.Destroy()
}

// CreateMesh uploads the vertices and indices of a mesh in one transfer
// submission.
func (u *Uploader) CreateMesh(mesh *assets.Mesh) (*Mesh, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	indices := unsafer.SliceToBytes(mesh.Indices)
	vertices, err := u.allocate(uint64(len(mesh.Vertices)), driver.BufferVertex|driver.BufferTransferDst, driver.DeviceLocal)
	if err != nil {
		return nil, err
	}
	idx, err := u.allocate(uint64(len(indices)), driver.BufferIndex|driver.BufferTransferDst, driver.DeviceLocal)
	if err != nil {
		vertices.Destroy()
		return nil, err
	}
	out := &Mesh{
		Vertices:    vertices,
		Indices:     idx,
		VertexCount: mesh.VertexCount(),
		IndexCount:  uint32(len(mesh.Indices)),
		Format:      mesh.Format,
		SubMeshes:   mesh.SubMeshes,
	}
	if len(mesh.Vertices) == 0 && len(indices) == 0 {
		return out, nil
	}

	b, err := u.begin()
	if err != nil {
		out.Destroy()
		return nil, err
	}
	for _, c := range []struct {
		dst  *Buffer
		data []byte
	}{{vertices, mesh.Vertices}, {idx, indices}} {
		if len(c.data) == 0 {
			continue
		}
		if err := b.copyBuffer(c.dst.Handle, c.data); err != nil {
			b.abort()
			out.Destroy()
			return nil, err
		}
	}
	if err := b.submit(); err != nil {
		out.Destroy()
		return nil, err
	}
	return out, nil
}
