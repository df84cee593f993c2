package framevk

import (
	"github.com/pkg/errors"
)

// Vertex is the layout of the combined vertex buffer: location 0 position,
// location 1 normal, location 2 texture coordinate.
type Vertex struct {
	Pos    [3]float32
	Normal [3]float32
	UV     [2]float32
}

// Mesh holds vertices and 0-based indices into its own vertex range.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// CombineMeshes concatenates all meshes into one vertex and one index list.
// Each mesh's indices are rebased by the number of vertices that precede it.
func CombineMeshes(meshes []Mesh) ([]Vertex, []uint32, error) {
	var nv, ni int
	for _, m := range meshes {
		nv += len(m.Vertices)
		ni += len(m.Indices)
	}
	vertices := make([]Vertex, 0, nv)
	indices := make([]uint32, 0, ni)
	for i, m := range meshes {
		base := uint32(len(vertices))
		for _, idx := range m.Indices {
			if int(idx) >= len(m.Vertices) {
				return nil, nil, errors.WithMessagef(ErrResourceCreation,
					"mesh %d: index %d out of range of %d vertices", i, idx, len(m.Vertices))
			}
			indices = append(indices, base+idx)
		}
		vertices = append(vertices, m.Vertices...)
	}
	if len(indices) == 0 {
		return nil, nil, errors.WithMessage(ErrResourceCreation, "meshes contain no triangles")
	}
	return vertices, indices, nil
}
