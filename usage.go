package framevk

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	PresentMailbox = "mailbox"
	PresentFIFO    = "fifo"

	MaxFramesInFlight = 3
)

//Config defines the renderer usage properties. It corresponds to a JSON document
//overlaid on DefaultConfig, command line flags are applied on top of it.
//FenceTimeout bounds the per-frame fence wait and image acquisition, zero waits forever.
type Config struct {
	AppName               string       `json:"app_name"`
	Window                WindowConfig `json:"window"`
	FramesInFlight        int          `json:"frames_in_flight"`
	Validation            bool         `json:"validation"`
	Assets                AssetConfig  `json:"assets"`
	ClearColor            [4]float32   `json:"clear_color"`
	FenceTimeout          Duration     `json:"fence_timeout"`
	PresentModePreference string       `json:"present_mode_preference"`
	Log                   LogConfig    `json:"log"`
}

type WindowConfig struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Title     string `json:"title"`
	Resizable bool   `json:"resizable"`
}

// AssetConfig names the files handed to the asset collaborators. Empty paths select built-in assets.
type AssetConfig struct {
	Model          string `json:"model"`
	Texture        string `json:"texture"`
	VertexShader   string `json:"vertex_shader"`
	FragmentShader string `json:"fragment_shader"`
}

type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// Duration is a time.Duration written as a Go duration string in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(time.Duration(x))
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", x)
		}
		*d = Duration(parsed)
	default:
		return errors.Errorf("invalid duration %s", string(data))
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		AppName: "framevk",
		Window: WindowConfig{
			Width:     800,
			Height:    600,
			Title:     "Vulkan",
			Resizable: true,
		},
		FramesInFlight:        2,
		ClearColor:            [4]float32{0, 0, 0, 1},
		PresentModePreference: PresentMailbox,
		Log:                   LogConfig{Level: "info"},
	}
}

// LoadConfig reads a JSON file over the defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, withClass(err, ErrInitialization, "open config")
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, withClass(err, ErrInitialization, "decode config %s", path)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return errors.WithMessagef(ErrInitialization, "config: window size %dx%d", c.Window.Width, c.Window.Height)
	case c.FramesInFlight < 1 || c.FramesInFlight > MaxFramesInFlight:
		return errors.WithMessagef(ErrInitialization, "config: frames_in_flight %d not in [1,%d]", c.FramesInFlight, MaxFramesInFlight)
	case c.FenceTimeout < 0:
		return errors.WithMessagef(ErrInitialization, "config: negative fence_timeout %s", time.Duration(c.FenceTimeout))
	}
	switch strings.ToLower(c.PresentModePreference) {
	case PresentMailbox, PresentFIFO:
	default:
		return errors.WithMessagef(ErrInitialization, "config: unknown present mode %q", c.PresentModePreference)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (c Config) prefersMailbox() bool {
	return strings.ToLower(c.PresentModePreference) != PresentFIFO
}
