package framevk

import (
	"math"
	"testing"

	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

func transform(m *lin.Mat4x4, v lin.Vec4) lin.Vec4 {
	var out lin.Vec4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[row] += m[col][row] * v[col]
		}
	}
	return out
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestVulkanProjectionMat(t *testing.T) {
	const n, f = 0.1, 100
	var gl, vkProj lin.Mat4x4
	gl.Perspective(lin.DegreesToRadians(60), 1.5, n, f)
	VulkanProjectionMat(&vkProj, &gl)

	tests := []struct {
		name  string
		point lin.Vec4
		z     float32
	}{
		{"near plane", lin.Vec4{0, 0, -n, 1}, 0},
		{"far plane", lin.Vec4{0, 0, -f, 1}, 1},
	}
	for _, tt := range tests {
		clip := transform(&vkProj, tt.point)
		if z := clip[2] / clip[3]; !near(z, tt.z) {
			t.Errorf("%s: have depth %f, want %f", tt.name, z, tt.z)
		}
	}

	// Up in view space is negative y in Vulkan clip space.
	up := transform(&vkProj, lin.Vec4{0, 1, -1, 1})
	glUp := transform(&gl, lin.Vec4{0, 1, -1, 1})
	if up[1] >= 0 || !near(up[1], -glUp[1]) {
		t.Errorf("have y %f, want %f", up[1], -glUp[1])
	}
}

func TestUniformSize(t *testing.T) {
	if UniformSize != 3*16*4 {
		t.Errorf("have %d, want 192", UniformSize)
	}
}

type heldKeys map[Key]bool

func (k heldKeys) Pressed(key Key) bool { return k[key] }

func TestCameraUpdate(t *testing.T) {
	c := NewCamera()
	start := *c
	c.Update(heldKeys{KeyRight: true, KeyZoomIn: true}, 0.5)
	if !near(c.Yaw, start.Yaw+0.75) {
		t.Errorf("have yaw %f, want %f", c.Yaw, start.Yaw+0.75)
	}
	if !near(c.Distance, start.Distance-1.5) {
		t.Errorf("have distance %f, want %f", c.Distance, start.Distance-1.5)
	}

	c.Update(heldKeys{KeyUp: true, KeyZoomIn: true}, 100)
	if c.Pitch != maxPitch || c.Distance != 2*c.Near {
		t.Errorf("not clamped: pitch %f distance %f", c.Pitch, c.Distance)
	}

	c.Update(nil, 1)
	if c.Pitch != maxPitch {
		t.Error("nil key state moved the camera")
	}
}

func TestCameraUniforms(t *testing.T) {
	c := NewCamera()
	u := c.Uniforms(vk.Extent2D{Width: 800, Height: 600}, 0)
	var identity lin.Mat4x4
	identity.Identity()
	for col := range identity {
		for row := range identity[col] {
			if !near(u.Model[col][row], identity[col][row]) {
				t.Fatalf("zero spin: model %v is not the identity", u.Model)
			}
		}
	}

	// The origin lies in front of the camera, between the clip planes.
	clip := transform(&u.Proj, transform(&u.View, lin.Vec4{0, 0, 0, 1}))
	if z := clip[2] / clip[3]; z <= 0 || z >= 1 {
		t.Errorf("origin depth %f outside (0, 1)", z)
	}
	if !near(clip[0]/clip[3], 0) || !near(clip[1]/clip[3], 0) {
		t.Errorf("origin not centred: %v", clip)
	}
}
