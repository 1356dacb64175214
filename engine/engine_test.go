package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima-shapes/engine/core"
)

func newHeadlessEngine(t *testing.T, frames uint64) *Engine {
	t.Helper()
	config := DefaultApplicationConfig()
	config.Renderer.ShaderDir = filepath.Join(t.TempDir(), "missing")
	config.Scene.Rows = 2
	config.Window.StartWidth = 320
	config.Window.StartHeight = 240

	e, err := New(&config, Options{Headless: true, HeadlessFrames: frames})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := e.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return e
}

func TestHeadlessRunDrawsFrames(t *testing.T) {
	e := newHeadlessEngine(t, 12)
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := e.Renderer().FrameCount(); got != 12 {
		t.Errorf("drew %d frames, want 12", got)
	}
	if e.Renderer().FenceValue() < 12 {
		t.Errorf("fence value %d is behind the frame count", e.Renderer().FenceValue())
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	e := newHeadlessEngine(t, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if got := e.Renderer().FrameCount(); got != 0 {
		t.Errorf("drew %d frames after cancel", got)
	}
}

func TestKeyEvents(t *testing.T) {
	e := newHeadlessEngine(t, 1)
	e.isRunning.Store(true)

	core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_1}})
	core.ProcessEvents()
	if !e.Renderer().Wireframe() {
		t.Error("KEY_1 should turn wireframe on")
	}

	// Releases are ignored.
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_RELEASED, Data: &core.KeyEvent{KeyCode: core.KEY_1}})
	core.ProcessEvents()
	if !e.Renderer().Wireframe() {
		t.Error("a release should not toggle wireframe")
	}

	core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_ESCAPE}})
	core.ProcessEvents()
	if e.isRunning.Load() {
		t.Error("escape should stop the loop")
	}
}

func TestResizeSuspendsAndResumes(t *testing.T) {
	e := newHeadlessEngine(t, 1)

	core.EventFire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{}})
	core.ProcessEvents()
	if !e.isSuspended {
		t.Fatal("a zero size should suspend the engine")
	}

	core.EventFire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 640, WindowHeight: 480}})
	core.ProcessEvents()
	if e.isSuspended {
		t.Fatal("a non zero size should resume the engine")
	}
	if e.eventErr != nil {
		t.Fatal(e.eventErr)
	}
	if w, h := e.device.Size(); w != 640 || h != 480 {
		t.Errorf("device size = %dx%d", w, h)
	}
	if w, h := e.GetFramebufferSize(); w != 640 || h != 480 {
		t.Errorf("framebuffer size = %dx%d", w, h)
	}
}

func TestAssetChangedRequestsReload(t *testing.T) {
	e := newHeadlessEngine(t, 1)
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_ASSET_CHANGED, Data: &core.AssetEvent{Path: "shapes.vert"}})
	core.ProcessEvents()
	if !e.reloadShaders {
		t.Error("an asset change should request a shader reload")
	}
	// The loop rebuilds the pipelines before drawing.
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.reloadShaders {
		t.Error("the reload request was not consumed")
	}
}
