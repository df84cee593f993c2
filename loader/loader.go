// Package loader provides the asset collaborators of the renderer: an OBJ
// model importer, an image decoder and a WGSL shader compiler.
package loader

import (
	"context"

	"github.com/andewx/framevk"
)

// Load reads every asset named by cfg with the default collaborators.
func Load(ctx context.Context, cfg framevk.AssetConfig) (*framevk.Assets, error) {
	return framevk.LoadAssets(ctx, cfg, OBJImporter{}, ImageDecoder{}, NewShaderCompiler())
}
