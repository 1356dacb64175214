// Package vulkan implements the renderer device on top of Vulkan. The device
// presents into a glfw window and emulates monotonically increasing fences
// with binary ones.
package vulkan

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/platform"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

type Options struct {
	ApplicationName string
	Width           uint32
	Height          uint32
	// FramesInFlight sizes the acquire and present semaphore rings.
	FramesInFlight uint32
	VSync          bool
	// Validation enables VK_LAYER_KHRONOS_validation and the debug report
	// callback.
	Validation bool
}

type Device struct {
	platform *platform.Platform
	options  Options
	context  *VulkanContext
	locks    *VulkanLockPool

	// Latest size requested through Resize.
	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	constantBufferLayout vk.DescriptorSetLayout
	constantBufferPool   vk.DescriptorPool
	pipelineLayout       vk.PipelineLayout

	fenceMu   sync.Mutex
	fencePool []*VulkanFence

	// Set once a list that renders into the acquired image was submitted.
	frameSubmitted bool
	liveBuffers    atomic.Int32
}

func NewDevice(p *platform.Platform, options Options) (*Device, error) {
	if options.FramesInFlight == 0 {
		options.FramesInFlight = 3
	}
	d := &Device{
		platform: p,
		options:  options,
		locks:    NewVulkanLockPool(),
		context: &VulkanContext{
			FramebufferWidth:  options.Width,
			FramebufferHeight: options.Height,
			Allocator:         nil,
			MaxFramesInFlight: MathClamp(options.FramesInFlight, 1, VULKAN_MAX_FRAMES_IN_FLIGHT),
		},
		cachedFramebufferWidth:  options.Width,
		cachedFramebufferHeight: options.Height,
	}
	if err := d.initialize(); err != nil {
		return nil, err
	}
	core.LogInfo("Vulkan device initialized successfully.")
	return d, nil
}

func (d *Device) initialize() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return core.NewFatalDeviceError("NewDevice", errors.New("GetInstanceProcAddress is nil"))
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return core.NewFatalDeviceError("vk.Init", err)
	}

	if err := d.createInstance(); err != nil {
		return err
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := d.platform.Window.CreateWindowSurface(d.context.Instance, nil)
	if err != nil {
		return core.NewFatalDeviceError("CreateWindowSurface", err)
	}
	d.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	// Device creation
	if err := DeviceCreate(d.context); err != nil {
		return err
	}

	// Swapchain
	sc, err := SwapchainCreate(d.context, d.context.FramebufferWidth, d.context.FramebufferHeight, d.options.VSync)
	if err != nil {
		return err
	}
	d.context.Swapchain = sc
	d.context.FramebufferWidth = sc.Extent.Width
	d.context.FramebufferHeight = sc.Extent.Height

	rp, err := RenderpassCreate(d.context, 0, 0, float32(d.context.FramebufferWidth), float32(d.context.FramebufferHeight))
	if err != nil {
		return err
	}
	d.context.MainRenderpass = rp

	// Swapchain framebuffers.
	if err := d.regenerateFramebuffers(); err != nil {
		return err
	}

	// Create sync objects.
	if err := d.createSyncObjects(); err != nil {
		return err
	}

	// Constant buffer bindings.
	if d.constantBufferLayout, err = ConstantBufferSetLayoutCreate(d.context); err != nil {
		return err
	}
	if d.constantBufferPool, err = ConstantBufferPoolCreate(d.context, VULKAN_MAX_CONSTANT_BUFFERS); err != nil {
		return err
	}
	if d.pipelineLayout, err = PipelineLayoutCreate(d.context, d.constantBufferLayout); err != nil {
		return err
	}
	return nil
}

func (d *Device) createInstance() error {
	// Setup Vulkan instance.
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(d.options.ApplicationName),
		PEngineName:        VulkanSafeString("Anima Shapes"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"} // Generic surface extension
	requiredExtensions = append(requiredExtensions, d.platform.GetRequiredExtensionNames()...)

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	if d.options.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	core.LogInfo("Required extensions:")
	for _, name := range requiredExtensions {
		core.LogInfo(name)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers.
	requiredValidationLayerNames := []string{}
	if d.options.Validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkValidationLayers(requiredValidationLayerNames); err != nil {
			return err
		}
	}

	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	if res := vk.CreateInstance(&createInfo, d.context.Allocator, &d.context.Instance); res != vk.Success {
		return resultError("vkCreateInstance", res)
	}
	if err := vk.InitInstance(d.context.Instance); err != nil {
		return core.NewFatalDeviceError("vk.InitInstance", err)
	}
	core.LogInfo("Vulkan Instance created.")

	// Debugger
	if d.options.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(d.context.Instance, &debugCreateInfo, d.context.Allocator, &dbg); res != vk.Success {
			return resultError("vkCreateDebugReportCallbackEXT", res)
		}
		d.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func checkValidationLayers(required []string) error {
	// Obtain a list of available validation layers
	var availableLayerCount uint32
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}
	availableLayers := make([]vk.LayerProperties, availableLayerCount)
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}

	// Verify all required layers are available.
	for _, name := range required {
		core.LogInfo("Searching for layer: %s...", name)
		found := false
		for j := range availableLayers {
			availableLayers[j].Deref()
			end := FindFirstZeroInByteArray(availableLayers[j].LayerName[:])
			if name == string(availableLayers[j].LayerName[:end]) {
				found = true
				core.LogInfo("Found.")
				break
			}
		}
		if !found {
			return core.NewFatalDeviceError("checkValidationLayers", errors.Newf("required validation layer is missing: %s", name))
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func (d *Device) createSyncObjects() error {
	ctx := d.context
	ctx.ImageAvailableSemaphores = make([]vk.Semaphore, ctx.MaxFramesInFlight)
	ctx.QueueCompleteSemaphores = make([]vk.Semaphore, ctx.MaxFramesInFlight)
	ctx.InFlightFences = make([]*VulkanFence, ctx.MaxFramesInFlight)

	for i := 0; i < int(ctx.MaxFramesInFlight); i++ {
		semaphoreCreateInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if res := vk.CreateSemaphore(ctx.Device.LogicalDevice, &semaphoreCreateInfo, ctx.Allocator, &ctx.ImageAvailableSemaphores[i]); res != vk.Success {
			return resultError("vkCreateSemaphore", res)
		}
		if res := vk.CreateSemaphore(ctx.Device.LogicalDevice, &semaphoreCreateInfo, ctx.Allocator, &ctx.QueueCompleteSemaphores[i]); res != vk.Success {
			return resultError("vkCreateSemaphore", res)
		}

		// Created signalled so the first acquire of each slot does not block.
		f, err := NewFence(ctx, true)
		if err != nil {
			return err
		}
		ctx.InFlightFences[i] = f
	}
	return nil
}

func (d *Device) regenerateFramebuffers() error {
	ctx := d.context
	swapchain := ctx.Swapchain
	swapchain.Framebuffers = make([]*VulkanFramebuffer, swapchain.ImageCount)
	for i := 0; i < int(swapchain.ImageCount); i++ {
		attachments := []vk.ImageView{
			swapchain.Views[i],
			swapchain.DepthAttachment.View,
		}
		fb, err := FramebufferCreate(ctx, ctx.MainRenderpass, ctx.FramebufferWidth, ctx.FramebufferHeight, attachments)
		if err != nil {
			return err
		}
		swapchain.Framebuffers[i] = fb
	}
	return nil
}

func (d *Device) recreateSwapchain() error {
	ctx := d.context
	if ctx.RecreatingSwapchain {
		core.LogDebug("recreateSwapchain called when already recreating. Booting.")
		return nil
	}
	if d.cachedFramebufferWidth == 0 || d.cachedFramebufferHeight == 0 {
		core.LogDebug("recreateSwapchain called when window is < 1 in a dimension. Booting.")
		return nil
	}

	ctx.RecreatingSwapchain = true
	defer func() {
		ctx.RecreatingSwapchain = false
	}()

	if err := d.WaitIdle(); err != nil {
		return err
	}

	if err := DeviceQuerySwapchainSupport(ctx.Device.PhysicalDevice, ctx.Surface, ctx.Device.SwapchainSupport); err != nil {
		return err
	}

	sc, err := ctx.Swapchain.SwapchainRecreate(ctx, d.cachedFramebufferWidth, d.cachedFramebufferHeight, d.options.VSync)
	if err != nil {
		return err
	}
	ctx.Swapchain = sc
	ctx.FramebufferWidth = sc.Extent.Width
	ctx.FramebufferHeight = sc.Extent.Height
	ctx.FramebufferSizeLastGeneration = ctx.FramebufferSizeGeneration
	ctx.ImageAcquired = false

	ctx.MainRenderpass.X = 0
	ctx.MainRenderpass.Y = 0
	ctx.MainRenderpass.W = float32(ctx.FramebufferWidth)
	ctx.MainRenderpass.H = float32(ctx.FramebufferHeight)

	return d.regenerateFramebuffers()
}

// acquireNextImage makes sure an image is acquired for the current frame. A
// pending resize or a minimised window boots the frame, an out of date
// swapchain is rebuilt and reported.
func (d *Device) acquireNextImage() error {
	ctx := d.context
	if ctx.ImageAcquired {
		return nil
	}
	if ctx.RecreatingSwapchain {
		return errors.Wrap(core.ErrSwapchainBooting, "recreating swapchain")
	}
	if d.cachedFramebufferWidth == 0 || d.cachedFramebufferHeight == 0 {
		return errors.Wrapf(core.ErrSwapchainBooting, "framebuffer is %dx%d", d.cachedFramebufferWidth, d.cachedFramebufferHeight)
	}
	if ctx.FramebufferSizeGeneration != ctx.FramebufferSizeLastGeneration {
		if err := d.recreateSwapchain(); err != nil {
			return err
		}
		core.LogInfo("Resized, booting.")
		return errors.Wrap(core.ErrSwapchainBooting, "resized")
	}

	if _, err := ctx.InFlightFences[ctx.CurrentFrame].FenceWait(ctx, math.MaxUint64); err != nil {
		return err
	}

	imageIndex, res := ctx.Swapchain.SwapchainAcquireNextImageIndex(ctx, math.MaxUint64, ctx.ImageAvailableSemaphores[ctx.CurrentFrame])
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		if err := d.recreateSwapchain(); err != nil {
			return err
		}
		return errors.Wrap(core.ErrOutOfDate, "acquire")
	default:
		return resultError("vkAcquireNextImageKHR", res)
	}
	ctx.ImageIndex = imageIndex
	ctx.ImageAcquired = true
	return nil
}

func (d *Device) Execute(lists ...metadata.CommandList) error {
	ctx := d.context
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok || cl.current == nil {
			return core.NewFatalDeviceError("Execute", fmt.Errorf("list %T was never recorded", l))
		}
		if cl.current.State != COMMAND_BUFFER_STATE_RECORDING_ENDED {
			return core.NewFatalDeviceError("Execute", errors.New("command list is not closed"))
		}

		submitInfo := vk.SubmitInfo{
			SType:              vk.StructureTypeSubmitInfo,
			CommandBufferCount: 1,
			PCommandBuffers:    []vk.CommandBuffer{cl.current.Handle},
		}
		fence := vk.NullFence
		waitsOnImage := cl.usesSwapchain && ctx.ImageAcquired && !d.frameSubmitted
		if waitsOnImage {
			submitInfo.WaitSemaphoreCount = 1
			submitInfo.PWaitSemaphores = []vk.Semaphore{ctx.ImageAvailableSemaphores[ctx.CurrentFrame]}
			submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
			submitInfo.SignalSemaphoreCount = 1
			submitInfo.PSignalSemaphores = []vk.Semaphore{ctx.QueueCompleteSemaphores[ctx.CurrentFrame]}

			inFlight := ctx.InFlightFences[ctx.CurrentFrame]
			if err := inFlight.FenceReset(ctx); err != nil {
				return err
			}
			fence = inFlight.Handle
		}

		if err := d.locks.SafeCall(QueueManagement, func() error {
			if res := vk.QueueSubmit(ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
				return resultError("vkQueueSubmit", res)
			}
			return nil
		}); err != nil {
			return err
		}
		cl.current.UpdateSubmitted()
		if waitsOnImage {
			d.frameSubmitted = true
		}
	}
	return nil
}

func (d *Device) Signal(fence metadata.Fence, value uint64) error {
	f, ok := fence.(*Fence)
	if !ok {
		return core.NewFatalDeviceError("Signal", fmt.Errorf("foreign fence %T", fence))
	}
	return d.locks.SafeCall(QueueManagement, func() error {
		return f.signal(value)
	})
}

// Present hands the acquired image back to the swapchain. Without an image
// or a submitted frame there is nothing to present.
func (d *Device) Present() error {
	ctx := d.context
	if !ctx.ImageAcquired || !d.frameSubmitted {
		return nil
	}

	var res vk.Result
	_ = d.locks.SafeCall(QueueManagement, func() error {
		res = ctx.Swapchain.SwapchainPresent(ctx, ctx.Device.PresentQueue, ctx.QueueCompleteSemaphores[ctx.CurrentFrame], ctx.ImageIndex)
		return nil
	})
	ctx.ImageAcquired = false
	d.frameSubmitted = false
	ctx.CurrentFrame = (ctx.CurrentFrame + 1) % ctx.MaxFramesInFlight

	switch res {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		if err := d.recreateSwapchain(); err != nil {
			return err
		}
		return errors.Wrapf(core.ErrOutOfDate, "present returned %s", VulkanResultString(res))
	}
	return resultError("vkQueuePresentKHR", res)
}

func (d *Device) Resize(width, height uint32) error {
	d.cachedFramebufferWidth = width
	d.cachedFramebufferHeight = height
	d.context.FramebufferSizeGeneration++

	core.LogInfo("Vulkan device resized: w/h/gen: %d/%d/%d", width, height, d.context.FramebufferSizeGeneration)
	return nil
}

func (d *Device) Size() (uint32, uint32) {
	return d.cachedFramebufferWidth, d.cachedFramebufferHeight
}

func (d *Device) WaitIdle() error {
	return d.locks.SafeCall(QueueManagement, func() error {
		if res := vk.DeviceWaitIdle(d.context.Device.LogicalDevice); !VulkanResultIsSuccess(res) {
			return resultError("vkDeviceWaitIdle", res)
		}
		return nil
	})
}

// acquireFence hands out an unsignalled binary fence, recycling retired ones.
func (d *Device) acquireFence() (*VulkanFence, error) {
	d.fenceMu.Lock()
	n := len(d.fencePool)
	if n == 0 {
		d.fenceMu.Unlock()
		return NewFence(d.context, false)
	}
	f := d.fencePool[n-1]
	d.fencePool = d.fencePool[:n-1]
	d.fenceMu.Unlock()

	if err := f.FenceReset(d.context); err != nil {
		return nil, err
	}
	return f, nil
}

func (d *Device) releaseFence(f *VulkanFence) {
	d.fenceMu.Lock()
	d.fencePool = append(d.fencePool, f)
	d.fenceMu.Unlock()
}

// Destroy fails while buffers created by the device are still alive.
func (d *Device) Destroy() error {
	if n := d.liveBuffers.Load(); n != 0 {
		return core.NewFatalDeviceError("Destroy", fmt.Errorf("%d buffers still alive", n))
	}
	if err := d.WaitIdle(); err != nil {
		return err
	}
	ctx := d.context

	// Destroy in the opposite order of creation.
	for _, f := range d.fencePool {
		f.FenceDestroy(ctx)
	}
	d.fencePool = nil

	if d.pipelineLayout != nil {
		vk.DestroyPipelineLayout(ctx.Device.LogicalDevice, d.pipelineLayout, ctx.Allocator)
		d.pipelineLayout = nil
	}
	if d.constantBufferPool != nil {
		vk.DestroyDescriptorPool(ctx.Device.LogicalDevice, d.constantBufferPool, ctx.Allocator)
		d.constantBufferPool = nil
	}
	if d.constantBufferLayout != nil {
		vk.DestroyDescriptorSetLayout(ctx.Device.LogicalDevice, d.constantBufferLayout, ctx.Allocator)
		d.constantBufferLayout = nil
	}

	// Sync objects
	for i := 0; i < int(ctx.MaxFramesInFlight); i++ {
		if ctx.ImageAvailableSemaphores[i] != nil {
			vk.DestroySemaphore(ctx.Device.LogicalDevice, ctx.ImageAvailableSemaphores[i], ctx.Allocator)
			ctx.ImageAvailableSemaphores[i] = nil
		}
		if ctx.QueueCompleteSemaphores[i] != nil {
			vk.DestroySemaphore(ctx.Device.LogicalDevice, ctx.QueueCompleteSemaphores[i], ctx.Allocator)
			ctx.QueueCompleteSemaphores[i] = nil
		}
		if ctx.InFlightFences[i] != nil {
			ctx.InFlightFences[i].FenceDestroy(ctx)
		}
	}
	ctx.ImageAvailableSemaphores = nil
	ctx.QueueCompleteSemaphores = nil
	ctx.InFlightFences = nil

	// Framebuffers go with the swapchain.
	ctx.Swapchain.SwapchainDestroy(ctx)
	ctx.MainRenderpass.RenderpassDestroy(ctx)

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(ctx)

	core.LogDebug("Destroying Vulkan surface...")
	if ctx.Surface != vk.NullSurface {
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}

	if ctx.debugMessenger != nil {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
		ctx.debugMessenger = nil
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(ctx.Instance, ctx.Allocator)
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
