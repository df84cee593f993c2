package framevk

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Assets is everything the renderer consumes from the asset collaborators.
type Assets struct {
	Meshes   []Mesh
	Texture  *TextureData
	Vertex   ShaderCode
	Fragment ShaderCode
}

// LoadAssets runs the model import, texture decode and both shader compilations concurrently.
// The first failure cancels the others.
func LoadAssets(ctx context.Context, cfg AssetConfig, models ModelImporter, images ImageDecoder, shaders ShaderCompiler) (*Assets, error) {
	var a Assets
	g, ctx := errgroup.WithContext(ctx)

	fragmentPath := cfg.FragmentShader
	if fragmentPath == "" {
		fragmentPath = cfg.VertexShader
	}

	g.Go(func() error {
		meshes, err := models.Import(cfg.Model)
		if err != nil {
			return withClass(err, ErrResourceCreation, "import model %q", cfg.Model)
		}
		if len(meshes) == 0 {
			return errors.WithMessagef(ErrResourceCreation, "model %q has no meshes", cfg.Model)
		}
		a.Meshes = meshes
		return ctx.Err()
	})
	g.Go(func() error {
		tex, err := images.Decode(cfg.Texture)
		if err != nil {
			return withClass(err, ErrResourceCreation, "decode texture %q", cfg.Texture)
		}
		if err := tex.validate(); err != nil {
			return err
		}
		a.Texture = tex
		return ctx.Err()
	})
	g.Go(func() error {
		code, err := shaders.Compile(cfg.VertexShader, StageVertex)
		if err != nil {
			return withClass(err, ErrResourceCreation, "compile vertex shader %q", cfg.VertexShader)
		}
		a.Vertex = code
		return ctx.Err()
	})
	g.Go(func() error {
		code, err := shaders.Compile(fragmentPath, StageFragment)
		if err != nil {
			return withClass(err, ErrResourceCreation, "compile fragment shader %q", fragmentPath)
		}
		a.Fragment = code
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *TextureData) validate() error {
	if t == nil || t.Width <= 0 || t.Height <= 0 {
		return errors.WithMessage(ErrResourceCreation, "texture has no pixels")
	}
	if len(t.Pixels) != t.Width*t.Height*4 {
		return errors.WithMessagef(ErrResourceCreation, "texture %dx%d carries %d bytes", t.Width, t.Height, len(t.Pixels))
	}
	return nil
}
