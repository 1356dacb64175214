package headless

import (
	"fmt"

	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

type commandType uint8

const (
	cmdCopyBuffer commandType = iota
	cmdBeginRenderPass
	cmdSetPipeline
	cmdSetConstantBuffer
	cmdSetVertexBuffer
	cmdSetIndexBuffer
	cmdSetTopology
	cmdDrawIndexed
	cmdEndRenderPass
)

type command struct {
	kind     commandType
	dst, src *Buffer
	size     uint64
	offset   uint64
	slot     uint32
	clear    metadata.ClearValues
	pipeline *Pipeline

	indexCount, startIndex uint32
	baseVertex             int32
}

// CommandList records commands and replays them on Execute.
type CommandList struct {
	device    *Device
	allocator *CommandAllocator
	commands  []command
	closed    bool
	inPass    bool
	err       error
}

func (c *CommandList) Reset(allocator metadata.CommandAllocator, pipeline metadata.Pipeline) error {
	if !c.closed {
		return fmt.Errorf("%w: reset while recording", ErrListState)
	}
	alloc, ok := allocator.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("%w: foreign allocator %T", ErrListState, allocator)
	}
	c.allocator = alloc
	c.commands = c.commands[:0]
	c.closed = false
	c.inPass = false
	c.err = nil
	if pipeline != nil {
		c.SetPipeline(pipeline)
	}
	return nil
}

func (c *CommandList) record(cmd command) {
	if c.closed {
		c.err = fmt.Errorf("%w: recording into a closed list", ErrListState)
		return
	}
	c.commands = append(c.commands, cmd)
}

func asBuffer(b metadata.Buffer) *Buffer {
	hb, _ := b.(*Buffer)
	return hb
}

func (c *CommandList) CopyBuffer(dst, src metadata.Buffer, size uint64) {
	c.record(command{kind: cmdCopyBuffer, dst: asBuffer(dst), src: asBuffer(src), size: size})
}

func (c *CommandList) BeginRenderPass(clear metadata.ClearValues) error {
	if c.inPass {
		return fmt.Errorf("%w: nested render pass", ErrListState)
	}
	c.inPass = true
	c.record(command{kind: cmdBeginRenderPass, clear: clear})
	return nil
}

func (c *CommandList) SetPipeline(pipeline metadata.Pipeline) {
	p, _ := pipeline.(*Pipeline)
	c.record(command{kind: cmdSetPipeline, pipeline: p})
}

func (c *CommandList) SetConstantBuffer(slot uint32, buffer metadata.Buffer, offset uint64) {
	c.record(command{kind: cmdSetConstantBuffer, slot: slot, src: asBuffer(buffer), offset: offset})
}

func (c *CommandList) SetVertexBuffer(buffer metadata.Buffer, stride uint32) {
	c.record(command{kind: cmdSetVertexBuffer, src: asBuffer(buffer), size: uint64(stride)})
}

func (c *CommandList) SetIndexBuffer(buffer metadata.Buffer, format metadata.IndexFormat) {
	c.record(command{kind: cmdSetIndexBuffer, src: asBuffer(buffer), size: uint64(format.Size())})
}

func (c *CommandList) SetPrimitiveTopology(topology metadata.PrimitiveTopology) {
	c.record(command{kind: cmdSetTopology, size: uint64(topology)})
}

func (c *CommandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	c.record(command{kind: cmdDrawIndexed, indexCount: indexCount, startIndex: startIndex, baseVertex: baseVertex})
}

func (c *CommandList) EndRenderPass() {
	c.inPass = false
	c.record(command{kind: cmdEndRenderPass})
}

func (c *CommandList) Close() error {
	if c.closed {
		return fmt.Errorf("%w: closed twice", ErrListState)
	}
	c.closed = true
	if c.inPass {
		return fmt.Errorf("%w: closed inside a render pass", ErrListState)
	}
	return c.err
}

type binding struct {
	buffer *Buffer
	offset uint64
}

// run replays the list against simulated device memory.
func (c *CommandList) run() error {
	var (
		pipeline *Pipeline
		cbs      = map[uint32]binding{}
		vb, ib   *Buffer
		frame    *Frame
	)
	for _, cmd := range c.commands {
		switch cmd.kind {
		case cmdCopyBuffer:
			if cmd.dst == nil || cmd.src == nil || cmd.size > cmd.dst.Size() || cmd.size > cmd.src.Size() {
				return fmt.Errorf("invalid copy of %d bytes", cmd.size)
			}
			copy(cmd.dst.data[:cmd.size], cmd.src.data[:cmd.size])
		case cmdBeginRenderPass:
			frame = &Frame{Clear: cmd.clear}
		case cmdSetPipeline:
			pipeline = cmd.pipeline
		case cmdSetConstantBuffer:
			cbs[cmd.slot] = binding{buffer: cmd.src, offset: cmd.offset}
		case cmdSetVertexBuffer:
			vb = cmd.src
		case cmdSetIndexBuffer:
			ib = cmd.src
		case cmdDrawIndexed:
			if frame == nil || pipeline == nil || vb == nil || ib == nil {
				return fmt.Errorf("draw outside a fully bound render pass")
			}
			draw := DrawCall{
				Pipeline:   pipeline.Name(),
				IndexCount: cmd.indexCount,
				StartIndex: cmd.startIndex,
				BaseVertex: cmd.baseVertex,
			}
			if b, ok := cbs[0]; ok {
				draw.ObjectOffset = b.offset
				draw.Object = readElement(b)
			}
			if b, ok := cbs[1]; ok {
				draw.Pass = readElement(b)
			}
			frame.Draws = append(frame.Draws, draw)
		case cmdEndRenderPass:
			if frame != nil {
				c.device.mu.Lock()
				c.device.recording = frame
				c.device.mu.Unlock()
			}
		}
	}
	return nil
}

func readElement(b binding) []byte {
	if b.buffer == nil || b.offset >= b.buffer.Size() {
		return nil
	}
	size := b.buffer.desc.ElementSize
	if size == 0 || b.offset+size > b.buffer.Size() {
		size = b.buffer.Size() - b.offset
	}
	out := make([]byte, size)
	copy(out, b.buffer.data[b.offset:b.offset+size])
	return out
}
