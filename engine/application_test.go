package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/anima-shapes/engine/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadApplicationConfigDefaults(t *testing.T) {
	config, err := LoadApplicationConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if config.Renderer.FramesInFlight != 3 {
		t.Errorf("frames in flight = %d, want 3", config.Renderer.FramesInFlight)
	}
	if config.LogLevel != core.InfoLevel {
		t.Errorf("log level = %v", config.LogLevel)
	}
}

func TestLoadApplicationConfigOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
[window]
name = "test"
width = 800

[renderer]
frames_in_flight = 2
wireframe = true

[scene]
rows = 3

[log]
level = "debug"
`)
	config, err := LoadApplicationConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if config.Window.Name != "test" || config.Window.StartWidth != 800 {
		t.Errorf("window = %+v", config.Window)
	}
	// Fields the file leaves out keep their default.
	if config.Window.StartHeight != 720 {
		t.Errorf("height = %d, want the default 720", config.Window.StartHeight)
	}
	if config.Renderer.FramesInFlight != 2 || !config.Renderer.Wireframe {
		t.Errorf("renderer = %+v", config.Renderer)
	}
	if config.Scene.Rows != 3 {
		t.Errorf("rows = %d", config.Scene.Rows)
	}
	if config.LogLevel != core.DebugLevel {
		t.Errorf("log level = %v", config.LogLevel)
	}
}

func TestLoadApplicationConfigRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"frames", "[renderer]\nframes_in_flight = 0\n", "frames_in_flight"},
		{"too many frames", "[renderer]\nframes_in_flight = 9\n", "frames_in_flight"},
		{"radius", "[camera]\nmin_radius = 10\nmax_radius = 5\n", "radius"},
		{"planes", "[camera]\nnear = 5\nfar = 1\n", "planes"},
		{"rows", "[scene]\nrows = 0\n", "row"},
		{"level", "[log]\nlevel = \"loud\"\n", "log level"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadApplicationConfig(writeConfig(t, c.body))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("error %q does not mention %q", err, c.want)
			}
		})
	}
}

func TestLoadApplicationConfigBadToml(t *testing.T) {
	if _, err := LoadApplicationConfig(writeConfig(t, "[window\n")); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestRendererConfigConvertsDegrees(t *testing.T) {
	config := DefaultApplicationConfig()
	config.Camera.Radius = 100
	rc := config.RendererConfig()
	if rc.Camera.Radius != config.Camera.MaxRadius {
		t.Errorf("radius = %f, want it clamped to %f", rc.Camera.Radius, config.Camera.MaxRadius)
	}
	if rc.Camera.FovY < 0.78 || rc.Camera.FovY > 0.79 {
		t.Errorf("fov = %f rad, want about pi/4", rc.Camera.FovY)
	}
	if rc.FramesInFlight != config.Renderer.FramesInFlight {
		t.Errorf("frames = %d", rc.FramesInFlight)
	}
}

func TestLoadApplicationConfigAcceptsMaxFrames(t *testing.T) {
	config, err := LoadApplicationConfig(writeConfig(t, "[renderer]\nframes_in_flight = 8\n"))
	if err != nil {
		t.Fatal(err)
	}
	if config.Renderer.FramesInFlight != 8 {
		t.Errorf("frames in flight = %d", config.Renderer.FramesInFlight)
	}
}
