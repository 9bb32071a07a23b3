package assets

import (
	"encoding/binary"
	"io"
	"math"
	"strconv"

	"github.com/mokiat/go-data-front/decoder/obj"
	"github.com/pkg/errors"
)

type objVertex struct {
	pos [3]float32
	uv  [2]float32
}

// DecodeOBJ decodes a Wavefront OBJ model into a mesh in
// PositionTexCoordFormat. Identical vertices are shared, faces with more
// than three corners are fanned into triangles and every object becomes a
// sub mesh. A repeated object name gets a "#2", "#3", ... suffix. Texture
// coordinates are flipped vertically.
func DecodeOBJ(r io.Reader) (*Mesh, error) {
	decoder := obj.NewDecoder(obj.DefaultLimits())
	model, err := decoder.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode obj model")
	}

	mesh := &Mesh{
		Format:    PositionTexCoordFormat,
		SubMeshes: make(map[string]IndexRange),
	}
	unique := make(map[objVertex]uint32)
	hasTexCoords := len(model.TexCoords) > 0

	for _, object := range model.Objects {
		first := uint32(len(mesh.Indices))

		for _, m := range object.Meshes {
			for _, face := range m.Faces {
				if len(face.References) < 3 {
					return nil, errors.Errorf("decode obj model: face with %d corners", len(face.References))
				}

				corners := make([]uint32, len(face.References))
				for i, reference := range face.References {
					position := model.GetVertexFromReference(reference)
					v := objVertex{
						pos: [3]float32{float32(position.X), float32(position.Y), float32(position.Z)},
					}
					if hasTexCoords {
						texCoord := model.GetTexCoordFromReference(reference)
						v.uv = [2]float32{float32(texCoord.U), 1 - float32(texCoord.V)}
					}

					idx, ok := unique[v]
					if !ok {
						idx = mesh.VertexCount()
						unique[v] = idx
						mesh.Vertices = appendVertex(mesh.Vertices, v)
					}
					corners[i] = idx
				}

				for i := 1; i+1 < len(corners); i++ {
					mesh.Indices = append(mesh.Indices, corners[0], corners[i], corners[i+1])
				}
			}
		}

		mesh.SubMeshes[uniqueName(mesh.SubMeshes, object.Name)] = IndexRange{
			First: first,
			Count: uint32(len(mesh.Indices)) - first,
		}
	}

	return mesh, nil
}

func uniqueName(taken map[string]IndexRange, name string) string {
	if _, ok := taken[name]; !ok {
		return name
	}
	for i := 2; ; i++ {
		candidate := name + "#" + strconv.Itoa(i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

func appendVertex(dst []byte, v objVertex) []byte {
	for _, f := range v.pos {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	for _, f := range v.uv {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}
