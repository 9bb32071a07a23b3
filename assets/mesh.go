package assets

import (
	"github.com/gogpu/gputypes"
)

// Attribute is one named vertex attribute.
type Attribute struct {
	Offset uint32
	Format gputypes.VertexFormat
}

// VertexFormat is the layout of one vertex.
type VertexFormat struct {
	Stride     uint32
	Attributes map[string]Attribute
}

// IndexRange is a range of the index buffer.
type IndexRange struct {
	First, Count uint32
}

// Mesh is interleaved vertex data with 32 bit indices.
type Mesh struct {
	Format   VertexFormat
	Vertices []byte
	Indices  []uint32
	// SubMeshes name ranges of Indices.
	SubMeshes map[string]IndexRange
}

// VertexCount returns the number of vertices in the mesh.
func (m *Mesh) VertexCount() uint32 {
	if m.Format.Stride == 0 {
		return 0
	}
	return uint32(len(m.Vertices)) / m.Format.Stride
}

// Attribute names used by the OBJ decoder.
const (
	AttributePosition = "position"
	AttributeTexCoord = "texCoord"
)

// PositionTexCoordFormat is three float positions followed by two float
// texture coordinates.
var PositionTexCoordFormat = VertexFormat{
	Stride: 20,
	Attributes: map[string]Attribute{
		AttributePosition: {Offset: 0, Format: gputypes.VertexFormatFloat32x3},
		AttributeTexCoord: {Offset: 12, Format: gputypes.VertexFormatFloat32x2},
	},
}
