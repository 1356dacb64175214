package headless

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

func TestFenceLatency(t *testing.T) {
	d := NewDevice(Options{Latency: 2})
	f, _ := d.CreateFence(0)
	hf := f.(*Fence)

	for v := uint64(1); v <= 4; v++ {
		if err := d.Signal(f, v); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.CompletedValue(); got != 2 {
		t.Fatalf("completed = %d, want 2", got)
	}
	if hf.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", hf.Pending())
	}
	// automatic mode finishes outstanding work on wait
	if err := f.Wait(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
	if err := f.Wait(context.Background(), 5); !core.IsFatalDeviceError(err) {
		t.Fatalf("expected fatal error for a value never signaled, got %v", err)
	}
}

func TestManualFenceWait(t *testing.T) {
	d := NewDevice(Options{Manual: true})
	f, _ := d.CreateFence(0)
	d.Signal(f, 1)
	d.Signal(f, 2)

	done := make(chan error, 1)
	go func() { done <- f.Wait(context.Background(), 2) }()

	d.Complete(1)
	select {
	case err := <-done:
		t.Fatalf("wait returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	d.Complete(2)
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("wait never returned")
	}
}

func TestManualFenceWaitCancelled(t *testing.T) {
	d := NewDevice(Options{Manual: true})
	f, _ := d.CreateFence(0)
	d.Signal(f, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.Wait(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAllocatorResetWhileInFlight(t *testing.T) {
	d := NewDevice(Options{Manual: true})
	f, _ := d.CreateFence(0)
	alloc, _ := d.CreateCommandAllocator()
	cmd, _ := d.CreateCommandList(alloc)

	if err := cmd.Reset(alloc, nil); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Execute(cmd); err != nil {
		t.Fatal(err)
	}
	if err := alloc.Reset(); !errors.Is(err, ErrAllocatorInUse) {
		t.Fatalf("expected ErrAllocatorInUse before signal, got %v", err)
	}
	d.Signal(f, 1)
	if err := alloc.Reset(); !errors.Is(err, ErrAllocatorInUse) {
		t.Fatalf("expected ErrAllocatorInUse before completion, got %v", err)
	}
	d.Complete(1)
	if err := alloc.Reset(); err != nil {
		t.Fatalf("reset after completion: %v", err)
	}
}

func TestExecuteCopiesAndRecordsDraws(t *testing.T) {
	d := NewDevice(Options{})
	alloc, _ := d.CreateCommandAllocator()
	cmd, _ := d.CreateCommandList(alloc)

	src, _ := d.CreateBuffer(metadata.BufferDescriptor{Name: "src", Size: 4, Heap: metadata.HeapTypeUpload})
	dst, _ := d.CreateBuffer(metadata.BufferDescriptor{Name: "dst", Size: 4, Heap: metadata.HeapTypeDefault})
	cb, _ := d.CreateBuffer(metadata.BufferDescriptor{Name: "cb", Size: 512, Heap: metadata.HeapTypeUpload, ElementSize: 256})
	p, _ := d.CreatePipeline(metadata.PipelineDescriptor{Name: "opaque", VertexStride: 24, Attributes: metadata.VertexAttributes})

	mapped, _ := src.Map()
	copy(mapped, []byte{1, 2, 3, 4})
	cbBytes, _ := cb.Map()
	cbBytes[256] = 0xAB

	if _, err := dst.Map(); !errors.Is(err, ErrNotMappable) {
		t.Fatalf("default heap buffers must not map, got %v", err)
	}

	cmd.Reset(alloc, p)
	cmd.CopyBuffer(dst, src, 4)
	cmd.BeginRenderPass(metadata.ClearValues{Colour: [4]float32{1, 0, 0, 1}, Depth: 1})
	cmd.SetVertexBuffer(dst, 24)
	cmd.SetIndexBuffer(dst, metadata.IndexFormatUint16)
	cmd.SetConstantBuffer(0, cb, 256)
	cmd.DrawIndexedInstanced(36, 1, 6, 8, 0)
	cmd.EndRenderPass()
	if err := cmd.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Execute(cmd); err != nil {
		t.Fatal(err)
	}
	d.Present()

	if got := dst.(*Buffer).Contents(); got[0] != 1 || got[3] != 4 {
		t.Fatalf("copy not applied: %v", got)
	}
	frame := d.LastFrame()
	if frame == nil || len(frame.Draws) != 1 {
		t.Fatalf("expected one draw, got %+v", frame)
	}
	draw := frame.Draws[0]
	if draw.Pipeline != "opaque" || draw.IndexCount != 36 || draw.StartIndex != 6 || draw.BaseVertex != 8 {
		t.Fatalf("unexpected draw %+v", draw)
	}
	if draw.ObjectOffset != 256 || len(draw.Object) != 256 || draw.Object[0] != 0xAB {
		t.Fatalf("object constants not read at offset: %+v", draw)
	}
	if frame.Clear.Colour[0] != 1 {
		t.Fatalf("clear colour lost: %+v", frame.Clear)
	}
}

func TestInjectedFailureIsFatal(t *testing.T) {
	d := NewDevice(Options{})
	d.InjectFailure("CreateBuffer")
	if _, err := d.CreateBuffer(metadata.BufferDescriptor{Name: "x", Size: 1}); !core.IsFatalDeviceError(err) {
		t.Fatalf("expected fatal device error, got %v", err)
	}
	if _, err := d.CreateBuffer(metadata.BufferDescriptor{Name: "x", Size: 1}); err != nil {
		t.Fatalf("failure must only fire once, got %v", err)
	}
}

func TestDestroyReportsLeaks(t *testing.T) {
	d := NewDevice(Options{})
	b, _ := d.CreateBuffer(metadata.BufferDescriptor{Name: "leak", Size: 8})
	if err := d.Destroy(); err == nil {
		t.Fatal("expected leak error")
	}
	b.Destroy()
	if err := d.Destroy(); err != nil {
		t.Fatal(err)
	}
}
