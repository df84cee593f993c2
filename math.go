package framevk

import (
	"math"
	"unsafe"

	lin "github.com/xlab/linmath"
	vk "github.com/vulkan-go/vulkan"
)

// VulkanProjectionMat converts an OpenGL style projection matrix to Vulkan style projection matrix.
// Vulkan has a topLeft clipSpace with [0, 1] depth range instead of [-1, 1].
//
// linmath outputs projection matrices in GL style clipSpace,
// perform a simple fixup step to change the projection to Vulkan style.
func VulkanProjectionMat(m *lin.Mat4x4, proj *lin.Mat4x4) {
	var clip lin.Mat4x4
	clip.Identity()
	// Flip Y in clipspace. X = -1, Y = -1 is topLeft in Vulkan.
	clip[1][1] = -1
	// Z depth is [0, 1] range instead of [-1, 1].
	clip[2][2] = 0.5
	clip[3][2] = 0.5
	m.Mult(&clip, proj)
}

// UniformData mirrors the vertex shader's Transforms block: three column-major mat4.
type UniformData struct {
	Model lin.Mat4x4
	View  lin.Mat4x4
	Proj  lin.Mat4x4
}

// UniformSize is the byte size of UniformData, 192.
const UniformSize = unsafe.Sizeof(UniformData{})

//Camera orbits the origin. Arrow keys turn it, zoom keys move it along the view ray.
type Camera struct {
	Yaw      float32
	Pitch    float32
	Distance float32
	Fov      float32
	Near     float32
	Far      float32
}

func NewCamera() *Camera {
	return &Camera{
		Pitch:    0.4,
		Distance: 4,
		Fov:      45,
		Near:     0.1,
		Far:      100,
	}
}

const (
	cameraTurnRate = 1.5 // radians per second
	cameraZoomRate = 3.0 // units per second
	maxPitch       = 1.5
)

// Update applies the pressed keys over dt seconds.
func (c *Camera) Update(keys KeyState, dt float32) {
	if keys == nil {
		return
	}
	if keys.Pressed(KeyLeft) {
		c.Yaw -= cameraTurnRate * dt
	}
	if keys.Pressed(KeyRight) {
		c.Yaw += cameraTurnRate * dt
	}
	if keys.Pressed(KeyUp) {
		c.Pitch += cameraTurnRate * dt
	}
	if keys.Pressed(KeyDown) {
		c.Pitch -= cameraTurnRate * dt
	}
	if keys.Pressed(KeyZoomIn) {
		c.Distance -= cameraZoomRate * dt
	}
	if keys.Pressed(KeyZoomOut) {
		c.Distance += cameraZoomRate * dt
	}
	c.Pitch = clampf(c.Pitch, -maxPitch, maxPitch)
	c.Distance = clampf(c.Distance, c.Near*2, c.Far/2)
}

func (c *Camera) Eye() lin.Vec3 {
	cp, sp := math.Cos(float64(c.Pitch)), math.Sin(float64(c.Pitch))
	cy, sy := math.Cos(float64(c.Yaw)), math.Sin(float64(c.Yaw))
	d := float64(c.Distance)
	return lin.Vec3{float32(d * cp * sy), float32(d * sp), float32(d * cp * cy)}
}

// Uniforms computes the transforms for the given extent with the model
// rotated by spin radians around the Y axis.
func (c *Camera) Uniforms(extent vk.Extent2D, spin float32) UniformData {
	var u UniformData
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}

	var identity lin.Mat4x4
	identity.Identity()
	u.Model.Rotate(&identity, 0, 1, 0, spin)

	eye := c.Eye()
	u.View.LookAt(&eye, &lin.Vec3{0, 0, 0}, &lin.Vec3{0, 1, 0})

	var proj lin.Mat4x4
	proj.Perspective(lin.DegreesToRadians(c.Fov), aspect, c.Near, c.Far)
	VulkanProjectionMat(&u.Proj, &proj)
	return u
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
