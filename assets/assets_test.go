package assets_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/assets"
)

const quad = `
o Quad
v -0.5 -0.5 0
v 0.5 -0.5 0
v 0.5 0.5 0
v -0.5 0.5 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

func TestDecodeOBJFansAndSharesVertices(t *testing.T) {
	g := NewWithT(t)

	mesh, err := assets.DecodeOBJ(strings.NewReader(quad))
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(mesh.VertexCount()).To(Equal(uint32(4)))
	g.Expect(mesh.Indices).To(Equal([]uint32{0, 1, 2, 0, 2, 3}))
	g.Expect(mesh.SubMeshes).To(HaveKeyWithValue("Quad", assets.IndexRange{First: 0, Count: 6}))

	// second vertex: position (0.5, -0.5, 0), flipped texture coordinate (1, 1)
	second := mesh.Vertices[mesh.Format.Stride : 2*mesh.Format.Stride]
	floats := make([]float32, 5)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(second[4*i:]))
	}
	g.Expect(floats).To(Equal([]float32{0.5, -0.5, 0, 1, 1}))
}

const twoTriangles = `
o Part
v 0 0 0
v 1 0 0
v 1 1 0
f 1 2 3
o Part
v 0 0 1
v 1 0 1
v 1 1 1
f 4 5 6
`

func TestDecodeOBJKeepsRepeatedObjectNames(t *testing.T) {
	g := NewWithT(t)

	mesh, err := assets.DecodeOBJ(strings.NewReader(twoTriangles))
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(mesh.SubMeshes).To(HaveLen(2))
	g.Expect(mesh.SubMeshes).To(HaveKeyWithValue("Part", assets.IndexRange{First: 0, Count: 3}))
	g.Expect(mesh.SubMeshes).To(HaveKeyWithValue("Part#2", assets.IndexRange{First: 3, Count: 3}))
}

func TestVertexFormat(t *testing.T) {
	g := NewWithT(t)

	f := assets.PositionTexCoordFormat
	g.Expect(f.Attributes[assets.AttributePosition].Format).To(Equal(gputypes.VertexFormatFloat32x3))
	g.Expect(f.Attributes[assets.AttributeTexCoord].Offset).To(Equal(uint32(12)))

	var empty assets.Mesh
	g.Expect(empty.VertexCount()).To(BeZero())
}

func TestDecodeTexture(t *testing.T) {
	g := NewWithT(t)

	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	g.Expect(png.Encode(&buf, img)).To(Succeed())

	tex, err := assets.DecodeTexture(&buf)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(tex.Width).To(Equal(uint32(2)))
	g.Expect(tex.Height).To(Equal(uint32(1)))
	g.Expect(tex.Format).To(Equal(gputypes.TextureFormatRGBA8Unorm))
	g.Expect(tex.Pixels).To(Equal([]byte{255, 0, 0, 255, 0, 0, 255, 255}))
}

func TestDecodeTextureRejectsGarbage(t *testing.T) {
	g := NewWithT(t)

	_, err := assets.DecodeTexture(strings.NewReader("not an image"))
	g.Expect(err).To(HaveOccurred())
}
