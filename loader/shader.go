package loader

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gogpu/naga"
	"github.com/pkg/errors"

	"github.com/andewx/framevk"
)

//go:embed shaders/mesh.wgsl
var meshShader string

// Entry points of WGSL sources. A WGSL file carries both stages.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
	spirvEntry    = "main"
)

// ShaderCompiler compiles .wgsl files with naga and passes .spv files through.
// Compiled output is cached per path so both stages of one WGSL file compile once.
// An empty path uses the built in mesh shader.
type ShaderCompiler struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewShaderCompiler() *ShaderCompiler {
	return &ShaderCompiler{cache: make(map[string][]byte)}
}

func (c *ShaderCompiler) Compile(path string, stage framevk.ShaderStage) (framevk.ShaderCode, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".spv" {
		data, err := os.ReadFile(path)
		if err != nil {
			return framevk.ShaderCode{}, errors.WithStack(err)
		}
		if len(data) == 0 || len(data)%4 != 0 {
			return framevk.ShaderCode{}, errors.Errorf("%s: %d bytes is not SPIR-V", path, len(data))
		}
		return framevk.ShaderCode{SPIRV: data, Entry: spirvEntry}, nil
	}
	if path != "" && ext != ".wgsl" {
		return framevk.ShaderCode{}, errors.Errorf("%s: unknown shader type %q", path, ext)
	}

	spirv, err := c.compileWGSL(path)
	if err != nil {
		return framevk.ShaderCode{}, err
	}
	entry := VertexEntry
	if stage == framevk.StageFragment {
		entry = FragmentEntry
	}
	return framevk.ShaderCode{SPIRV: spirv, Entry: entry}, nil
}

func (c *ShaderCompiler) compileWGSL(path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[string][]byte)
	}
	if spirv, ok := c.cache[path]; ok {
		return spirv, nil
	}

	source := meshShader
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		source = string(data)
	}
	spirv, err := naga.Compile(source)
	if err != nil {
		name := path
		if name == "" {
			name = "built in mesh shader"
		}
		return nil, errors.Wrapf(err, "compile %s", name)
	}
	c.cache[path] = spirv
	return spirv, nil
}
