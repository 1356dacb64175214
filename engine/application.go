package engine

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/math"
	"github.com/spaghettifunk/anima-shapes/engine/renderer"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/components"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/vulkan"
)

type WindowConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight int        `toml:"frames_in_flight"`
	ClearColour    [4]float32 `toml:"clear_colour"`
	Wireframe      bool       `toml:"wireframe"`
	VSync          bool       `toml:"vsync"`
	Validation     bool       `toml:"validation"`
	ShaderDir      string     `toml:"shader_dir"`
	Shader         string     `toml:"shader"`
}

// CameraConfig holds the orbit camera. Angles are in degrees.
type CameraConfig struct {
	FovY      float32 `toml:"fov"`
	NearZ     float32 `toml:"near"`
	FarZ      float32 `toml:"far"`
	Radius    float32 `toml:"radius"`
	MinRadius float32 `toml:"min_radius"`
	MaxRadius float32 `toml:"max_radius"`
	Theta     float32 `toml:"theta"`
	Phi       float32 `toml:"phi"`
}

type SceneConfig struct {
	Animate bool   `toml:"animate"`
	Rows    uint32 `toml:"rows"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type ApplicationConfig struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Camera   CameraConfig   `toml:"camera"`
	Scene    SceneConfig    `toml:"scene"`
	Log      LogConfig      `toml:"log"`

	LogLevel core.LogLevel `toml:"-"`
}

// DefaultApplicationConfig is the configuration used for every field the
// file leaves out.
func DefaultApplicationConfig() ApplicationConfig {
	return ApplicationConfig{
		Window: WindowConfig{
			Name:        "Shapes",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
		},
		Renderer: RendererConfig{
			FramesInFlight: 3,
			ClearColour:    [4]float32{0.690196, 0.768627, 0.870588, 1},
			VSync:          true,
			ShaderDir:      "shaders",
			Shader:         "shapes",
		},
		Camera: CameraConfig{
			FovY:      45,
			NearZ:     1,
			FarZ:      1000,
			Radius:    15,
			MinRadius: 3,
			MaxRadius: 15,
			Theta:     270,
			Phi:       45,
		},
		Scene: SceneConfig{
			Animate: true,
			Rows:    5,
		},
		Log: LogConfig{
			Level: "info",
		},
		LogLevel: core.InfoLevel,
	}
}

// LoadApplicationConfig reads a toml file on top of the defaults. An empty
// path returns the defaults.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	config := DefaultApplicationConfig()
	if path == "" {
		return &config, config.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		err = fmt.Errorf("failed to parse config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := config.Validate(); err != nil {
		err = fmt.Errorf("invalid config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	return &config, nil
}

// Validate checks the values the engine cannot run with and resolves the log
// level.
func (c *ApplicationConfig) Validate() error {
	if c.Window.StartWidth == 0 || c.Window.StartHeight == 0 {
		return fmt.Errorf("window size %dx%d", c.Window.StartWidth, c.Window.StartHeight)
	}
	if c.Renderer.FramesInFlight < 1 || c.Renderer.FramesInFlight > int(vulkan.VULKAN_MAX_FRAMES_IN_FLIGHT) {
		return fmt.Errorf("frames_in_flight must be in [1, %d], got %d", vulkan.VULKAN_MAX_FRAMES_IN_FLIGHT, c.Renderer.FramesInFlight)
	}
	if c.Renderer.Shader == "" {
		return fmt.Errorf("renderer shader name is empty")
	}
	if c.Camera.FovY <= 0 || c.Camera.FovY >= 180 {
		return fmt.Errorf("camera fov %f out of (0, 180)", c.Camera.FovY)
	}
	if c.Camera.NearZ <= 0 || c.Camera.FarZ <= c.Camera.NearZ {
		return fmt.Errorf("camera planes near %f far %f", c.Camera.NearZ, c.Camera.FarZ)
	}
	if c.Camera.MinRadius <= 0 || c.Camera.MaxRadius < c.Camera.MinRadius {
		return fmt.Errorf("camera radius bounds [%f, %f]", c.Camera.MinRadius, c.Camera.MaxRadius)
	}
	if c.Scene.Rows == 0 {
		return fmt.Errorf("scene needs at least one row")
	}
	level, err := core.ParseLogLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	c.LogLevel = level
	return nil
}

// RendererConfig converts the file layout into the renderer's.
func (c *ApplicationConfig) RendererConfig() renderer.Config {
	return renderer.Config{
		FramesInFlight: c.Renderer.FramesInFlight,
		ClearColour:    c.Renderer.ClearColour,
		Wireframe:      c.Renderer.Wireframe,
		Animate:        c.Scene.Animate,
		ShaderName:     c.Renderer.Shader,
		Camera: components.OrbitCameraConfig{
			Theta:     math.DegToRad(c.Camera.Theta),
			Phi:       math.DegToRad(c.Camera.Phi),
			Radius:    math.Clamp(c.Camera.Radius, c.Camera.MinRadius, c.Camera.MaxRadius),
			MinRadius: c.Camera.MinRadius,
			MaxRadius: c.Camera.MaxRadius,
			FovY:      math.DegToRad(c.Camera.FovY),
			NearZ:     c.Camera.NearZ,
			FarZ:      c.Camera.FarZ,
		},
		AmbientLight: math.NewVec4(0.25, 0.25, 0.35, 1),
		KeyLight: renderer.Light{
			Strength:  math.NewVec3(0.6, 0.6, 0.6),
			Direction: math.NewVec3(0.57735, -0.57735, 0.57735),
		},
	}
}
