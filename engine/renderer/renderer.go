package renderer

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/math"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/components"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

const (
	PipelineOpaque          = "opaque"
	PipelineOpaqueWireframe = "opaque_wireframe"

	// Constant buffer slots as seen by the shaders.
	ObjectConstantsSlot uint32 = 0
	PassConstantsSlot   uint32 = 1
)

// ShaderLoader supplies compiled shader bytecode.
type ShaderLoader interface {
	LoadShader(name string) (vertex []byte, fragment []byte, err error)
}

type Config struct {
	FramesInFlight int
	ClearColour    [4]float32
	Wireframe      bool
	Animate        bool
	ShaderName     string
	Camera         components.OrbitCameraConfig
	AmbientLight   math.Vec4
	KeyLight       Light
}

type animatedItem struct {
	item  *RenderItem
	base  math.Mat4
	speed float32
}

// Renderer drives the per frame sequence: it rotates the frame resource ring,
// refreshes constants, records the command list, submits and presents.
type Renderer struct {
	device  metadata.Device
	shaders ShaderLoader
	config  Config

	fence      metadata.Fence
	fenceValue uint64

	setupAlloc metadata.CommandAllocator
	cmd        metadata.CommandList

	ring     *FrameResourceRing
	meshes   *MeshRegistry
	items    *RenderItemList
	animated []animatedItem

	pipelines map[string]metadata.Pipeline
	camera    *components.OrbitCamera
	mainPass  PassConstants

	totalTime  float64
	frameCount uint64

	lastMouseX int32
	lastMouseY int32
}

func New(device metadata.Device, shaders ShaderLoader, config Config) *Renderer {
	if config.FramesInFlight < 1 {
		config.FramesInFlight = 1
	}
	width, height := device.Size()
	return &Renderer{
		device:    device,
		shaders:   shaders,
		config:    config,
		meshes:    NewMeshRegistry(device),
		items:     NewRenderItemList(config.FramesInFlight),
		pipelines: make(map[string]metadata.Pipeline),
		camera:    components.NewOrbitCamera(config.Camera, aspectRatio(width, height)),
	}
}

func aspectRatio(width, height uint32) float32 {
	if height == 0 {
		return 1
	}
	return float32(width) / float32(height)
}

// Initialize uploads the scene geometry, waits for the upload, then creates
// the frame resources and pipelines.
func (r *Renderer) Initialize(ctx context.Context, scene *metadata.SceneConfig) error {
	var err error
	r.fence, err = r.device.CreateFence(0)
	if err != nil {
		err = fmt.Errorf("failed to create frame fence: %w", err)
		core.LogError(err.Error())
		return err
	}

	r.setupAlloc, err = r.device.CreateCommandAllocator()
	if err != nil {
		err = fmt.Errorf("failed to create setup command allocator: %w", err)
		core.LogError(err.Error())
		return err
	}
	r.cmd, err = r.device.CreateCommandList(r.setupAlloc)
	if err != nil {
		err = fmt.Errorf("failed to create command list: %w", err)
		core.LogError(err.Error())
		return err
	}

	if err := r.cmd.Reset(r.setupAlloc, nil); err != nil {
		err = fmt.Errorf("failed to reset setup command list: %w", err)
		core.LogError(err.Error())
		return err
	}
	if err := r.buildGeometry(scene); err != nil {
		return err
	}
	if err := r.cmd.Close(); err != nil {
		err = fmt.Errorf("failed to close setup command list: %w", err)
		core.LogError(err.Error())
		return err
	}
	if err := r.device.Execute(r.cmd); err != nil {
		err = fmt.Errorf("failed to execute setup command list: %w", err)
		core.LogError(err.Error())
		return err
	}
	if err := r.Flush(ctx); err != nil {
		return err
	}

	r.buildRenderItems(scene)

	r.ring, err = NewFrameResourceRing(r.device, r.fence, r.config.FramesInFlight, uint32(max(r.items.Len(), 1)))
	if err != nil {
		return err
	}

	if r.pipelines, err = r.buildPipelines(); err != nil {
		return err
	}

	core.LogInfo("renderer initialized: %d render items, %d frames in flight", r.items.Len(), r.config.FramesInFlight)
	return nil
}

func (r *Renderer) buildGeometry(scene *metadata.SceneConfig) error {
	for _, mc := range scene.Meshes {
		vertexData, err := binary.Append(nil, binary.LittleEndian, mc.Vertices)
		if err != nil {
			return fmt.Errorf("failed to encode vertices of %s: %w", mc.Name, err)
		}
		if _, err := r.meshes.Register(r.cmd, mc.Name, vertexData, metadata.VertexByteStride, mc.Indices); err != nil {
			return err
		}
		for _, rc := range mc.Ranges {
			r.meshes.AddSubRange(mc.Name, rc.Name, rc.IndexCount, rc.StartIndexLocation, rc.BaseVertexLocation)
		}
	}
	return nil
}

func (r *Renderer) buildRenderItems(scene *metadata.SceneConfig) {
	for _, ic := range scene.Items {
		item := r.items.Add(NewRenderItem(ic.Name, ic.World, r.meshes.Lookup(ic.Mesh), ic.Range))
		if ic.Spin != 0 {
			r.animated = append(r.animated, animatedItem{item: item, base: ic.World, speed: ic.Spin})
		}
	}
}

// buildPipelines compiles the solid and wireframe pipelines. On failure the
// pipelines created so far are destroyed and nothing is returned.
func (r *Renderer) buildPipelines() (map[string]metadata.Pipeline, error) {
	var vertex, fragment []byte
	if r.shaders != nil {
		var err error
		vertex, fragment, err = r.shaders.LoadShader(r.config.ShaderName)
		if err != nil {
			err = fmt.Errorf("failed to load shader %s: %w", r.config.ShaderName, err)
			core.LogError(err.Error())
			return nil, err
		}
	}

	pipelines := make(map[string]metadata.Pipeline, 2)
	for _, wireframe := range []bool{false, true} {
		name := PipelineOpaque
		if wireframe {
			name = PipelineOpaqueWireframe
		}
		p, err := r.device.CreatePipeline(metadata.PipelineDescriptor{
			Name:           name,
			VertexShader:   vertex,
			FragmentShader: fragment,
			VertexStride:   metadata.VertexByteStride,
			Attributes:     metadata.VertexAttributes,
			Topology:       metadata.PrimitiveTopologyTriangleList,
			CullMode:       metadata.FaceCullModeBack,
			Wireframe:      wireframe,
		})
		if err != nil {
			destroyPipelines(pipelines)
			err = fmt.Errorf("failed to create pipeline %s: %w", name, err)
			core.LogError(err.Error())
			return nil, err
		}
		pipelines[name] = p
	}
	return pipelines, nil
}

func destroyPipelines(pipelines map[string]metadata.Pipeline) {
	for name, p := range pipelines {
		p.Destroy()
		delete(pipelines, name)
	}
}

// ReloadShaders rebuilds the pipelines once the device is idle. When the new
// shaders fail to build the previous pipelines stay in use and only a device
// failure during the flush is returned.
func (r *Renderer) ReloadShaders(ctx context.Context) error {
	if err := r.Flush(ctx); err != nil {
		return err
	}
	pipelines, err := r.buildPipelines()
	if err != nil {
		core.LogWarn("shader %s rejected, keeping the previous pipelines", r.config.ShaderName)
		return nil
	}
	destroyPipelines(r.pipelines)
	r.pipelines = pipelines
	core.LogInfo("shader %s reloaded", r.config.ShaderName)
	return nil
}

func (r *Renderer) currentPipeline() metadata.Pipeline {
	if r.config.Wireframe {
		return r.pipelines[PipelineOpaqueWireframe]
	}
	return r.pipelines[PipelineOpaque]
}

// DrawFrame renders one frame. The only CPU wait happens inside Acquire when
// the next frame resource is still in use by the device.
func (r *Renderer) DrawFrame(ctx context.Context, deltaTime float64) error {
	r.totalTime += deltaTime

	r.camera.Update()

	index := r.ring.Advance()
	fr, err := r.ring.Acquire(ctx, index)
	if err != nil {
		return err
	}

	r.animate()
	r.items.RefreshConstants(fr)

	r.updateMainPass(fr, deltaTime)

	if err := r.recordFrame(fr); err != nil {
		r.ring.Release(index)
		if isSwapchainTransient(err) {
			core.LogDebug("frame %d skipped: %s", r.frameCount, err.Error())
			return nil
		}
		return err
	}

	if err := r.device.Execute(r.cmd); err != nil {
		r.ring.Release(index)
		err = fmt.Errorf("failed to execute frame %d: %w", r.frameCount, err)
		core.LogError(err.Error())
		return err
	}
	presentErr := r.device.Present()
	if presentErr != nil {
		if isSwapchainTransient(presentErr) {
			core.LogDebug("present skipped: %s", presentErr.Error())
			presentErr = nil
		} else {
			presentErr = fmt.Errorf("failed to present frame %d: %w", r.frameCount, presentErr)
			core.LogError(presentErr.Error())
		}
	}

	// The commands are queued whether or not the present went through, so
	// the slot still gets the fence value that retires them.
	r.fenceValue++
	if err := r.device.Signal(r.fence, r.fenceValue); err != nil {
		// Nothing will ever retire this slot. It stays Recording and the
		// ring is unusable until the renderer is shut down.
		err = fmt.Errorf("failed to signal fence %d: %w", r.fenceValue, err)
		core.LogError(err.Error())
		return err
	}
	r.ring.Stamp(index, r.fenceValue)
	r.frameCount++
	return presentErr
}

func isSwapchainTransient(err error) bool {
	return errors.Is(err, core.ErrSwapchainBooting) || errors.Is(err, core.ErrOutOfDate)
}

func (r *Renderer) animate() {
	if !r.config.Animate {
		return
	}
	for _, a := range r.animated {
		spin := math.NewMat4EulerY(a.speed * float32(r.totalTime))
		r.items.SetWorld(a.item, spin.Mul(a.base))
	}
}

func (r *Renderer) updateMainPass(fr *FrameResource, deltaTime float64) {
	view := r.camera.GetView()
	proj := r.camera.GetProjection()
	viewProj := view.Mul(proj)

	width, height := r.device.Size()

	r.mainPass.View = math.NewMat4Transposed(view)
	r.mainPass.InvView = math.NewMat4Transposed(view.Inverse())
	r.mainPass.Proj = math.NewMat4Transposed(proj)
	r.mainPass.InvProj = math.NewMat4Transposed(proj.Inverse())
	r.mainPass.ViewProj = math.NewMat4Transposed(viewProj)
	r.mainPass.InvViewProj = math.NewMat4Transposed(viewProj.Inverse())
	r.mainPass.EyePosW = r.camera.GetPosition()
	r.mainPass.RenderTargetSize = math.Vec2{X: float32(width), Y: float32(height)}
	if width > 0 && height > 0 {
		r.mainPass.InvRenderTargetSize = math.Vec2{X: 1 / float32(width), Y: 1 / float32(height)}
	}
	r.mainPass.NearZ = r.camera.NearZ
	r.mainPass.FarZ = r.camera.FarZ
	r.mainPass.TotalTime = float32(r.totalTime)
	r.mainPass.DeltaTime = float32(deltaTime)
	r.mainPass.AmbientLight = r.config.AmbientLight
	r.mainPass.Lights[0] = r.config.KeyLight

	fr.PassCB.CopyData(0, &r.mainPass)
}

func (r *Renderer) recordFrame(fr *FrameResource) error {
	pipeline := r.currentPipeline()
	if err := r.cmd.Reset(fr.CmdListAlloc, pipeline); err != nil {
		err = fmt.Errorf("failed to reset command list: %w", err)
		core.LogError(err.Error())
		return err
	}

	clear := metadata.ClearValues{
		Colour:  r.config.ClearColour,
		Depth:   1.0,
		Stencil: 0,
	}
	if err := r.cmd.BeginRenderPass(clear); err != nil {
		// the list must still be closed before it can be reset again
		r.cmd.Close()
		return err
	}
	r.cmd.SetPipeline(pipeline)
	r.cmd.SetConstantBuffer(PassConstantsSlot, fr.PassCB.Resource(), 0)

	r.items.Draw(fr, r.cmd)

	r.cmd.EndRenderPass()

	if err := r.cmd.Close(); err != nil {
		err = fmt.Errorf("failed to close command list: %w", err)
		core.LogError(err.Error())
		return err
	}
	return nil
}

// Flush blocks until the device reached the last signalled fence value.
func (r *Renderer) Flush(ctx context.Context) error {
	r.fenceValue++
	if err := r.device.Signal(r.fence, r.fenceValue); err != nil {
		err = fmt.Errorf("failed to signal flush fence %d: %w", r.fenceValue, err)
		core.LogError(err.Error())
		return err
	}
	if err := r.fence.Wait(ctx, r.fenceValue); err != nil {
		err = fmt.Errorf("failed to wait for flush fence %d: %w", r.fenceValue, err)
		core.LogError(err.Error())
		return err
	}
	if r.ring != nil {
		return r.ring.Flush(ctx)
	}
	return nil
}

// Resize flushes in flight frames before the swapchain is rebuilt.
func (r *Renderer) Resize(ctx context.Context, width, height uint32) error {
	if err := r.Flush(ctx); err != nil {
		return err
	}
	if err := r.device.Resize(width, height); err != nil {
		err = fmt.Errorf("failed to resize to %dx%d: %w", width, height, err)
		core.LogError(err.Error())
		return err
	}
	r.camera.SetLens(r.camera.FovY, aspectRatio(width, height), r.camera.NearZ, r.camera.FarZ)
	core.LogDebug("renderer resized to %dx%d", width, height)
	return nil
}

func (r *Renderer) OnMouseDown(button core.Button, x, y int32) {
	r.lastMouseX = x
	r.lastMouseY = y
}

func (r *Renderer) OnMouseUp(button core.Button, x, y int32) {}

// OnMouseMove orbits on a left drag and dollies on a right drag.
func (r *Renderer) OnMouseMove(buttons core.ButtonMask, x, y int32) {
	dx := float32(x - r.lastMouseX)
	dy := float32(y - r.lastMouseY)
	if buttons.Has(core.BUTTON_LEFT) {
		r.camera.Orbit(dx, dy)
	} else if buttons.Has(core.BUTTON_RIGHT) {
		r.camera.Dolly(dx, dy)
	}
	r.lastMouseX = x
	r.lastMouseY = y
}

func (r *Renderer) SetWireframe(enabled bool) {
	r.config.Wireframe = enabled
}

func (r *Renderer) Wireframe() bool {
	return r.config.Wireframe
}

func (r *Renderer) Camera() *components.OrbitCamera {
	return r.camera
}

func (r *Renderer) Items() *RenderItemList {
	return r.items
}

func (r *Renderer) Meshes() *MeshRegistry {
	return r.meshes
}

func (r *Renderer) Ring() *FrameResourceRing {
	return r.ring
}

func (r *Renderer) FrameCount() uint64 {
	return r.frameCount
}

func (r *Renderer) FenceValue() uint64 {
	return r.fenceValue
}

// Shutdown waits once for the device and releases every resource.
func (r *Renderer) Shutdown(ctx context.Context) error {
	var err error
	if r.fence != nil {
		if ferr := r.Flush(ctx); ferr != nil {
			err = ferr
		}
	}
	destroyPipelines(r.pipelines)
	if r.ring != nil {
		r.ring.Destroy()
		r.ring = nil
	}
	r.meshes.Destroy()
	if r.setupAlloc != nil {
		r.setupAlloc.Destroy()
		r.setupAlloc = nil
	}
	if r.fence != nil {
		r.fence.Destroy()
		r.fence = nil
	}
	core.LogInfo("renderer shut down after %d frames", r.frameCount)
	return err
}
