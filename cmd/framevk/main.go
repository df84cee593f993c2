package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"time"

	"golang.org/x/exp/slog"

	"github.com/andewx/framevk"
	"github.com/andewx/framevk/loader"
	"github.com/andewx/framevk/window"
)

func init() {
	// GLFW and the swapchain must stay on the main thread.
	runtime.LockOSThread()
}

var (
	configPath = flag.String("config", "", "JSON configuration file")
	model      = flag.String("model", "", "OBJ model, built in cube when empty")
	texture    = flag.String("texture", "", "texture image, built in checker when empty")
	vertPath   = flag.String("vert", "", "vertex shader (.wgsl or .spv)")
	fragPath   = flag.String("frag", "", "fragment shader, defaults to -vert")
	validate   = flag.Bool("validate", false, "enable the Khronos validation layer")
	frames     = flag.Int("frames", 2, "frames in flight (1..3)")
	timeout    = flag.Duration("timeout", 0, "fence and acquire timeout, 0 waits forever")
	logLevel   = flag.String("log-level", "info", "debug, info, warn or error")
	logFile    = flag.String("log-file", "", "append JSON log records to this file")
)

// loadConfig reads the config file, if any, and applies the flags that were set explicitly.
func loadConfig() (framevk.Config, error) {
	cfg := framevk.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = framevk.LoadConfig(*configPath); err != nil {
			return cfg, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.Assets.Model = *model
		case "texture":
			cfg.Assets.Texture = *texture
		case "vert":
			cfg.Assets.VertexShader = *vertPath
		case "frag":
			cfg.Assets.FragmentShader = *fragPath
		case "validate":
			cfg.Validation = *validate
		case "frames":
			cfg.FramesInFlight = *frames
		case "timeout":
			cfg.FenceTimeout = framevk.Duration(*timeout)
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-file":
			cfg.Log.File = *logFile
		}
	})
	return cfg, cfg.Validate()
}

func main() {
	flag.Parse()
	boot := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig()
	framevk.Fatal(boot, err)

	log, logCloser, err := framevk.NewLogger(cfg.Log, os.Stderr)
	framevk.Fatal(boot, err)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	assets, err := loader.Load(ctx, cfg.Assets)
	framevk.Fatal(log, err, func() { logCloser.Close() })
	log.Info("assets loaded", slog.Int("meshes", len(assets.Meshes)), slog.Duration("took", time.Since(start)))

	framevk.Fatal(log, window.Init(), func() { logCloser.Close() })
	defer window.Terminate()

	win, err := window.New(cfg.Window)
	framevk.Fatal(log, err, window.Terminate, func() { logCloser.Close() })
	defer win.Destroy()

	renderer, err := framevk.NewRenderer(cfg, win, assets, log, nil)
	framevk.Fatal(log, err, win.Destroy, window.Terminate, func() { logCloser.Close() })
	defer renderer.Destroy()

	if err := renderer.Run(ctx); err != nil {
		framevk.Fatal(log, err, renderer.Destroy, win.Destroy, window.Terminate, func() { logCloser.Close() })
	}
}
