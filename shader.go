package framevk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// ShaderModules holds the vertex and fragment modules of the mesh program.
// Modules may be destroyed once the pipeline was built.
type ShaderModules struct {
	device        vk.Device
	Vertex        vk.ShaderModule
	Fragment      vk.ShaderModule
	VertexEntry   string
	FragmentEntry string
}

func NewShaderModules(device vk.Device, vertex, fragment ShaderCode) (*ShaderModules, error) {
	s := &ShaderModules{
		device:        device,
		Vertex:        vk.NullShaderModule,
		Fragment:      vk.NullShaderModule,
		VertexEntry:   entryOrMain(vertex.Entry),
		FragmentEntry: entryOrMain(fragment.Entry),
	}
	var err error
	if s.Vertex, err = LoadShaderModule(device, vertex.SPIRV); err != nil {
		return nil, errors.WithMessage(err, "vertex shader")
	}
	if s.Fragment, err = LoadShaderModule(device, fragment.SPIRV); err != nil {
		s.Destroy()
		return nil, errors.WithMessage(err, "fragment shader")
	}
	return s, nil
}

func entryOrMain(entry string) string {
	if entry == "" {
		return "main"
	}
	return entry
}

//Vulkan expects to receive SPIR-V as uint32 words
func LoadShaderModule(device vk.Device, data []byte) (vk.ShaderModule, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return vk.NullShaderModule, errors.WithMessagef(ErrResourceCreation, "SPIR-V size %d is not a word multiple", len(data))
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    sliceUint32(data),
	}, nil, &module)
	if err := newError(ret, ErrResourceCreation, "vkCreateShaderModule"); err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}

func (s *ShaderModules) Destroy() {
	if s.Vertex != vk.NullShaderModule {
		vk.DestroyShaderModule(s.device, s.Vertex, nil)
		s.Vertex = vk.NullShaderModule
	}
	if s.Fragment != vk.NullShaderModule {
		vk.DestroyShaderModule(s.device, s.Fragment, nil)
		s.Fragment = vk.NullShaderModule
	}
}
