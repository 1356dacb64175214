// Package headless implements the renderer device on the CPU. Command lists
// execute at submission, while fence completion is deferred by a configurable
// latency or driven by hand, which makes frame pacing observable in tests.
package headless

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

var (
	ErrNotMappable    = errors.New("buffer is not host visible")
	ErrAllocatorInUse = errors.New("command allocator reset while its commands are in flight")
	ErrListState      = errors.New("command list in wrong state")
	ErrNeverSignaled  = errors.New("fence value was never signaled")
	ErrInjected       = errors.New("injected failure")
)

type Options struct {
	Width  uint32
	Height uint32
	// Latency is how many later signals must be queued before a signal
	// completes on its own. Zero completes every signal at once.
	Latency int
	// Manual disables automatic completion; fences only advance through
	// Complete or CompleteAll.
	Manual bool
}

// DrawCall is a draw as the device executed it, with the constants it read.
type DrawCall struct {
	Pipeline     string
	IndexCount   uint32
	StartIndex   uint32
	BaseVertex   int32
	ObjectOffset uint64
	Object       []byte
	Pass         []byte
}

type Frame struct {
	Clear metadata.ClearValues
	Draws []DrawCall
}

type Device struct {
	mu      sync.Mutex
	options Options
	width   uint32
	height  uint32

	fences     []*Fence
	unsignaled []*CommandAllocator
	failures   map[string]bool

	liveBuffers int
	executed    uint64
	presents    uint64
	recording   *Frame
	lastFrame   *Frame
}

func NewDevice(options Options) *Device {
	if options.Width == 0 {
		options.Width = 1280
	}
	if options.Height == 0 {
		options.Height = 720
	}
	core.LogInfo("headless device created (%dx%d, latency %d, manual %t)", options.Width, options.Height, options.Latency, options.Manual)
	return &Device{
		options:  options,
		width:    options.Width,
		height:   options.Height,
		failures: make(map[string]bool),
	}
}

// InjectFailure makes the next call of op fail with a fatal device error.
func (d *Device) InjectFailure(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = true
}

func (d *Device) fail(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures[op] {
		delete(d.failures, op)
		return core.NewFatalDeviceError(op, ErrInjected)
	}
	return nil
}

// SetManual switches between automatic and hand driven fence completion.
func (d *Device) SetManual(manual bool) {
	d.mu.Lock()
	d.options.Manual = manual
	d.mu.Unlock()
}

func (d *Device) manual() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.options.Manual
}

func (d *Device) CreateBuffer(desc metadata.BufferDescriptor) (metadata.Buffer, error) {
	if err := d.fail("CreateBuffer"); err != nil {
		return nil, err
	}
	if desc.Size == 0 {
		return nil, core.NewFatalDeviceError("CreateBuffer", fmt.Errorf("buffer %s has zero size", desc.Name))
	}
	d.mu.Lock()
	d.liveBuffers++
	d.mu.Unlock()
	return &Buffer{
		device: d,
		desc:   desc,
		data:   make([]byte, desc.Size),
	}, nil
}

func (d *Device) CreateCommandAllocator() (metadata.CommandAllocator, error) {
	if err := d.fail("CreateCommandAllocator"); err != nil {
		return nil, err
	}
	return &CommandAllocator{device: d}, nil
}

func (d *Device) CreateCommandList(allocator metadata.CommandAllocator) (metadata.CommandList, error) {
	if err := d.fail("CreateCommandList"); err != nil {
		return nil, err
	}
	alloc, ok := allocator.(*CommandAllocator)
	if !ok {
		return nil, core.NewFatalDeviceError("CreateCommandList", fmt.Errorf("foreign allocator %T", allocator))
	}
	return &CommandList{device: d, allocator: alloc, closed: true}, nil
}

func (d *Device) CreateFence(initialValue uint64) (metadata.Fence, error) {
	if err := d.fail("CreateFence"); err != nil {
		return nil, err
	}
	f := newFence(d, initialValue)
	d.mu.Lock()
	d.fences = append(d.fences, f)
	d.mu.Unlock()
	return f, nil
}

func (d *Device) CreatePipeline(desc metadata.PipelineDescriptor) (metadata.Pipeline, error) {
	if err := d.fail("CreatePipeline"); err != nil {
		return nil, err
	}
	if desc.VertexStride == 0 || len(desc.Attributes) == 0 {
		return nil, core.NewFatalDeviceError("CreatePipeline", fmt.Errorf("pipeline %s has no vertex layout", desc.Name))
	}
	return &Pipeline{desc: desc}, nil
}

// Execute runs the closed lists immediately. Their allocators stay in use
// until the next Signal on any fence completes.
func (d *Device) Execute(lists ...metadata.CommandList) error {
	if err := d.fail("Execute"); err != nil {
		return err
	}
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return core.NewFatalDeviceError("Execute", fmt.Errorf("foreign command list %T", l))
		}
		if !cl.closed {
			return core.NewFatalDeviceError("Execute", fmt.Errorf("%w: list is still recording", ErrListState))
		}
		if err := cl.run(); err != nil {
			return core.NewFatalDeviceError("Execute", err)
		}
		d.mu.Lock()
		cl.allocator.pending = true
		d.unsignaled = append(d.unsignaled, cl.allocator)
		d.executed++
		d.mu.Unlock()
	}
	return nil
}

// Signal queues value on fence behind every executed list.
func (d *Device) Signal(fence metadata.Fence, value uint64) error {
	if err := d.fail("Signal"); err != nil {
		return err
	}
	f, ok := fence.(*Fence)
	if !ok {
		return core.NewFatalDeviceError("Signal", fmt.Errorf("foreign fence %T", fence))
	}
	d.mu.Lock()
	for _, a := range d.unsignaled {
		a.retireAt = value
		a.fence = f
	}
	d.unsignaled = d.unsignaled[:0]
	latency := d.options.Latency
	manual := d.options.Manual
	d.mu.Unlock()

	f.enqueue(value)
	if !manual {
		f.completeBeyond(latency)
	}
	return nil
}

func (d *Device) Present() error {
	if err := d.fail("Present"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presents++
	if d.recording != nil {
		d.lastFrame = d.recording
		d.recording = nil
	}
	return nil
}

func (d *Device) Resize(width, height uint32) error {
	if err := d.fail("Resize"); err != nil {
		return err
	}
	d.mu.Lock()
	d.width = width
	d.height = height
	d.mu.Unlock()
	return nil
}

func (d *Device) Size() (uint32, uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

// WaitIdle completes every signaled value.
func (d *Device) WaitIdle() error {
	d.CompleteAll()
	return nil
}

func (d *Device) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.liveBuffers != 0 {
		return core.NewFatalDeviceError("Destroy", fmt.Errorf("%d buffers still alive", d.liveBuffers))
	}
	core.LogInfo("headless device destroyed after %d submissions", d.executed)
	return nil
}

// Complete marks every signaled value up to value as reached on all fences.
func (d *Device) Complete(value uint64) {
	d.mu.Lock()
	fences := append([]*Fence(nil), d.fences...)
	d.mu.Unlock()
	for _, f := range fences {
		f.completeUpTo(value)
	}
}

func (d *Device) CompleteAll() {
	d.Complete(^uint64(0))
}

func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveBuffers
}

func (d *Device) Presents() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presents
}

func (d *Device) Submissions() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executed
}

// LastFrame returns the most recently presented frame.
func (d *Device) LastFrame() *Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastFrame
}
