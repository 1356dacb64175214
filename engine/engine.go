package engine

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-shapes/engine/assets"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/platform"
	"github.com/spaghettifunk/anima-shapes/engine/renderer"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/headless"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-shapes/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// How often the frame metrics are logged, in seconds.
const metricsLogInterval float64 = 5.0

type Options struct {
	// Headless renders on the CPU device without opening a window.
	Headless bool
	// HeadlessFrames is how many frames a headless run draws.
	HeadlessFrames uint64
}

type Engine struct {
	currentStage Stage
	config       *ApplicationConfig
	options      Options

	isRunning   atomic.Bool
	isSuspended bool

	platform     *platform.Platform
	assetManager *assets.AssetManager
	device       metadata.Device
	renderer     *renderer.Renderer

	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64

	width         uint32
	height        uint32
	reloadShaders bool
	// first fatal error raised inside an event handler
	eventErr error
	ctx      context.Context
}

func New(config *ApplicationConfig, options Options) (*Engine, error) {
	if config == nil {
		return nil, fmt.Errorf("engine needs a configuration")
	}
	if options.Headless && options.HeadlessFrames == 0 {
		options.HeadlessFrames = 300
	}
	core.SetLogLevel(config.LogLevel)

	e := &Engine{
		currentStage: EngineStageUninitialized,
		config:       config,
		options:      options,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        config.Window.StartWidth,
		height:       config.Window.StartHeight,
		ctx:          context.Background(),
	}
	return e, nil
}

func (e *Engine) Initialize(ctx context.Context) error {
	e.currentStage = EngineStageInitializing

	// initialize input
	if err := core.InputInitialize(); err != nil {
		return err
	}

	// initialize events
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	// register some events
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	core.EventRegister(core.EVENT_CODE_KEY_RELEASED, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)
	core.EventRegister(core.EVENT_CODE_BUTTON_PRESSED, e.onMouse)
	core.EventRegister(core.EVENT_CODE_BUTTON_RELEASED, e.onMouse)
	core.EventRegister(core.EVENT_CODE_MOUSE_MOVED, e.onMouse)
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, e.onAssetChanged)

	shaders, err := e.initializeAssets()
	if err != nil {
		return err
	}

	if e.options.Headless {
		e.device = headless.NewDevice(headless.Options{
			Width:   e.width,
			Height:  e.height,
			Latency: e.config.Renderer.FramesInFlight - 1,
		})
	} else {
		if err := e.initializeWindow(); err != nil {
			return err
		}
	}

	scene, err := systems.BuildShapesScene(e.config.Scene.Rows)
	if err != nil {
		return err
	}

	e.renderer = renderer.New(e.device, shaders, e.config.RendererConfig())
	if err := e.renderer.Initialize(ctx, scene); err != nil {
		err = fmt.Errorf("failed to initialize the renderer: %w", err)
		core.LogError(err.Error())
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// initializeAssets starts the shader watcher. A headless run without a shader
// directory renders with empty pipelines.
func (e *Engine) initializeAssets() (renderer.ShaderLoader, error) {
	dir := e.config.Renderer.ShaderDir
	if _, err := os.Stat(dir); err != nil {
		if e.options.Headless {
			core.LogWarn("shader directory %s not found, headless pipelines get no bytecode", dir)
			return nil, nil
		}
		err = fmt.Errorf("shader directory %s: %w", dir, err)
		core.LogError(err.Error())
		return nil, err
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		return nil, err
	}
	if err := am.Initialize(dir); err != nil {
		return nil, err
	}
	e.assetManager = am
	return am, nil
}

func (e *Engine) initializeWindow() error {
	p, err := platform.New()
	if err != nil {
		return err
	}
	if err := p.Startup(e.config.Window.Name,
		e.config.Window.StartPosX,
		e.config.Window.StartPosY,
		e.config.Window.StartWidth,
		e.config.Window.StartHeight); err != nil {
		return err
	}
	e.platform = p

	// The drawable may be larger than the window on high density displays.
	e.width, e.height = p.FramebufferSize()

	device, err := vulkan.NewDevice(p, vulkan.Options{
		ApplicationName: e.config.Window.Name,
		Width:           e.width,
		Height:          e.height,
		FramesInFlight:  uint32(e.config.Renderer.FramesInFlight),
		VSync:           e.config.Renderer.VSync,
		Validation:      e.config.Renderer.Validation,
	})
	if err != nil {
		err = fmt.Errorf("failed to create the vulkan device: %w", err)
		core.LogError(err.Error())
		return err
	}
	e.device = device
	return nil
}

func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var sinceLog float64
	for e.isRunning.Load() {
		if ctx.Err() != nil {
			break
		}
		if e.platform != nil && !e.platform.PumpMessages() {
			e.isRunning.Store(false)
		}

		// events fired by callbacks and the asset watcher are delivered here
		core.ProcessEvents()
		if e.eventErr != nil {
			return e.eventErr
		}
		if e.reloadShaders {
			e.reloadShaders = false
			if err := e.renderer.ReloadShaders(ctx); err != nil {
				core.LogError("shader reload failed: %s", err)
				return err
			}
		}

		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.renderer.DrawFrame(ctx, delta); err != nil {
			core.LogError("frame %d failed, shutting down.", e.renderer.FrameCount())
			return err
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - currentTime)
		sinceLog += delta
		if sinceLog >= metricsLogInterval {
			sinceLog = 0
			fps, frameTime := e.metrics.Frame()
			core.LogInfo("%.0f fps, %.3f ms/frame, fence %d", fps, frameTime, e.renderer.FenceValue())
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		core.InputUpdate(delta)

		e.lastTime = currentTime

		if e.options.Headless && e.renderer.FrameCount() >= e.options.HeadlessFrames {
			e.isRunning.Store(false)
		}
	}
	return nil
}

// Stop asks the frame loop to finish the current frame and return.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown(ctx context.Context) error {
	e.currentStage = EngineStageShuttingDown
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.renderer != nil {
		keep(e.renderer.Shutdown(ctx))
	}
	if e.device != nil {
		keep(e.device.Destroy())
	}
	if e.assetManager != nil {
		keep(e.assetManager.Shutdown())
	}
	keep(core.EventSystemShutdown())
	keep(core.InputShutdown())
	if e.platform != nil {
		keep(e.platform.Shutdown())
	}
	e.currentStage = EngineStageUninitialized
	return firstErr
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) onEvent(context core.EventContext) {
	if context.Type == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
	}
}

func (e *Engine) onKey(context core.EventContext) {
	if context.Type != core.EVENT_CODE_KEY_PRESSED {
		return
	}
	ev, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return
	}
	switch ev.KeyCode {
	case core.KEY_ESCAPE:
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	case core.KEY_1:
		wireframe := !e.renderer.Wireframe()
		e.renderer.SetWireframe(wireframe)
		core.LogInfo("wireframe %t", wireframe)
	}
}

func (e *Engine) onResized(context core.EventContext) {
	ev, ok := context.Data.(*core.SystemEvent)
	if !ok {
		return
	}
	if ev.WindowWidth == e.width && ev.WindowHeight == e.height {
		return
	}
	e.width = ev.WindowWidth
	e.height = ev.WindowHeight

	// Minimized
	if e.width == 0 || e.height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.renderer.Resize(e.ctx, e.width, e.height); err != nil && e.eventErr == nil {
		e.eventErr = err
	}
}

func (e *Engine) onMouse(context core.EventContext) {
	ev, ok := context.Data.(*core.MouseEvent)
	if !ok {
		return
	}
	switch context.Type {
	case core.EVENT_CODE_BUTTON_PRESSED:
		e.renderer.OnMouseDown(ev.Button, ev.PosX, ev.PosY)
	case core.EVENT_CODE_BUTTON_RELEASED:
		e.renderer.OnMouseUp(ev.Button, ev.PosX, ev.PosY)
	case core.EVENT_CODE_MOUSE_MOVED:
		e.renderer.OnMouseMove(ev.Buttons, ev.PosX, ev.PosY)
	}
}

func (e *Engine) onAssetChanged(context core.EventContext) {
	if ev, ok := context.Data.(*core.AssetEvent); ok {
		core.LogInfo("shader %s changed, rebuilding pipelines", ev.Path)
	}
	e.reloadShaders = true
}
