package framevk

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/pkg/errors"
)

func quad(z float32) Mesh {
	return Mesh{
		Vertices: []Vertex{
			{Pos: [3]float32{0, 0, z}},
			{Pos: [3]float32{1, 0, z}},
			{Pos: [3]float32{1, 1, z}},
			{Pos: [3]float32{0, 1, z}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestCombineMeshes(t *testing.T) {
	tri := Mesh{
		Vertices: []Vertex{{Pos: [3]float32{0, 0, 5}}, {Pos: [3]float32{1, 0, 5}}, {Pos: [3]float32{0, 1, 5}}},
		Indices:  []uint32{2, 1, 0},
	}
	vertices, indices, err := CombineMeshes([]Mesh{quad(0), tri, quad(1)})
	if err != nil {
		t.Fatal(err)
	}
	if len(vertices) != 11 {
		t.Fatalf("have %d vertices, want 11", len(vertices))
	}
	want := []uint32{0, 1, 2, 0, 2, 3, 6, 5, 4, 7, 8, 9, 7, 9, 10}
	if !reflect.DeepEqual(indices, want) {
		t.Errorf("have indices %v, want %v", indices, want)
	}
	if vertices[4].Pos[2] != 5 || vertices[7].Pos[2] != 1 {
		t.Errorf("vertices out of order: %v", vertices)
	}
}

func TestCombineMeshesInvalid(t *testing.T) {
	bad := quad(0)
	bad.Indices = append(bad.Indices, 4)
	if _, _, err := CombineMeshes([]Mesh{quad(0), bad}); !errors.Is(err, ErrResourceCreation) {
		t.Errorf("out of range index: have %v, want %v", err, ErrResourceCreation)
	}
	if _, _, err := CombineMeshes([]Mesh{{}}); !errors.Is(err, ErrResourceCreation) {
		t.Errorf("empty meshes: have %v, want %v", err, ErrResourceCreation)
	}
}

func TestVertexLayout(t *testing.T) {
	var v Vertex
	if have := unsafe.Sizeof(v); have != 32 {
		t.Errorf("have vertex size %d, want 32", have)
	}
	attrs := vertexAttributes()
	wantOffsets := []uint32{0, 12, 24}
	for i, a := range attrs {
		if a.Location != uint32(i) || a.Offset != wantOffsets[i] {
			t.Errorf("attribute %d: have location %d offset %d", i, a.Location, a.Offset)
		}
	}
	if b := vertexBindings(); len(b) != 1 || b[0].Stride != 32 {
		t.Errorf("have bindings %+v", b)
	}
}
