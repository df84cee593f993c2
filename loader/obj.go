package loader

import (
	"math"
	"os"
	"strings"

	"github.com/g3n/engine/loader/obj"
	"github.com/pkg/errors"

	"github.com/andewx/framevk"
)

// OBJImporter reads Wavefront OBJ files, one mesh per object. An empty path yields a unit cube.
type OBJImporter struct{}

type vertexKey struct {
	pos, uv, normal int
}

func (OBJImporter) Import(path string) ([]framevk.Mesh, error) {
	if path == "" {
		return []framevk.Mesh{Cube()}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	mtl := strings.NewReader("")
	dec, err := obj.DecodeReader(f, mtl)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	var meshes []framevk.Mesh
	for i := range dec.Objects {
		mesh, err := buildMesh(dec, &dec.Objects[i])
		if err != nil {
			return nil, errors.Wrapf(err, "%s: object %q", path, dec.Objects[i].Name)
		}
		if len(mesh.Indices) > 0 {
			meshes = append(meshes, mesh)
		}
	}
	if len(meshes) == 0 {
		return nil, errors.Errorf("%s: no faces", path)
	}
	return meshes, nil
}

func buildMesh(dec *obj.Decoder, o *obj.Object) (framevk.Mesh, error) {
	var mesh framevk.Mesh
	unique := make(map[vertexKey]uint32)

	add := func(face *obj.Face, corner int) error {
		key := vertexKey{pos: face.Vertices[corner], uv: -1, normal: -1}
		if corner < len(face.Uvs) {
			key.uv = face.Uvs[corner]
		}
		if corner < len(face.Normals) {
			key.normal = face.Normals[corner]
		}
		if idx, ok := unique[key]; ok {
			mesh.Indices = append(mesh.Indices, idx)
			return nil
		}

		var v framevk.Vertex
		if key.pos < 0 || key.pos*3+2 >= len(dec.Vertices) {
			return errors.Errorf("vertex index %d out of range", key.pos)
		}
		copy(v.Pos[:], dec.Vertices[key.pos*3:key.pos*3+3])
		if key.uv >= 0 && key.uv*2+1 < len(dec.Uvs) {
			v.UV = [2]float32{dec.Uvs[key.uv*2], 1 - dec.Uvs[key.uv*2+1]}
		}
		if key.normal >= 0 && key.normal*3+2 < len(dec.Normals) {
			copy(v.Normal[:], dec.Normals[key.normal*3:key.normal*3+3])
		} else {
			v.Normal = faceNormal(dec, face)
		}

		idx := uint32(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, v)
		mesh.Indices = append(mesh.Indices, idx)
		unique[key] = idx
		return nil
	}

	for fi := range o.Faces {
		face := &o.Faces[fi]
		// Fan triangulation.
		for i := 2; i < len(face.Vertices); i++ {
			for _, corner := range [3]int{0, i - 1, i} {
				if err := add(face, corner); err != nil {
					return mesh, err
				}
			}
		}
	}
	return mesh, nil
}

// faceNormal is the normal of the plane through the first three corners.
func faceNormal(dec *obj.Decoder, face *obj.Face) [3]float32 {
	if len(face.Vertices) < 3 {
		return [3]float32{0, 0, 1}
	}
	var p [3][3]float32
	for i := 0; i < 3; i++ {
		vi := face.Vertices[i]
		if vi < 0 || vi*3+2 >= len(dec.Vertices) {
			return [3]float32{0, 0, 1}
		}
		copy(p[i][:], dec.Vertices[vi*3:vi*3+3])
	}
	a := [3]float32{p[1][0] - p[0][0], p[1][1] - p[0][1], p[1][2] - p[0][2]}
	b := [3]float32{p[2][0] - p[0][0], p[2][1] - p[0][1], p[2][2] - p[0][2]}
	n := [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
	l := float32(math.Sqrt(float64(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])))
	if l == 0 {
		return [3]float32{0, 0, 1}
	}
	return [3]float32{n[0] / l, n[1] / l, n[2] / l}
}

// Cube is a unit cube centred on the origin with per face normals and UVs.
func Cube() framevk.Mesh {
	faces := []struct {
		normal [3]float32
		u, v   [3]float32
	}{
		{[3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{0, 0, -1}, [3]float32{-1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{1, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0}},
		{[3]float32{-1, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0}},
		{[3]float32{0, 1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, -1}},
		{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	var mesh framevk.Mesh
	for _, f := range faces {
		base := uint32(len(mesh.Vertices))
		for _, c := range corners {
			var v framevk.Vertex
			for k := 0; k < 3; k++ {
				v.Pos[k] = 0.5 * (f.normal[k] + c[0]*f.u[k] + c[1]*f.v[k])
			}
			v.Normal = f.normal
			v.UV = [2]float32{(c[0] + 1) / 2, 1 - (c[1]+1)/2}
			mesh.Vertices = append(mesh.Vertices, v)
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return mesh
}
