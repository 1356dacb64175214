package vulkan

import (
	"sync"
	"testing"
)

func TestLockPoolSerialisesGroup(t *testing.T) {
	pool := NewVulkanLockPool()

	var wg sync.WaitGroup
	inside := 0
	maxInside := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.SafeCall(QueueManagement, func() error {
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				inside--
				return nil
			})
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected one caller at a time, saw %d", maxInside)
	}
}

func TestLockPoolReturnsCallbackError(t *testing.T) {
	pool := NewVulkanLockPool()
	want := errTest("boom")
	if err := pool.SafeCall(DescriptorManagement, func() error { return want }); err != want {
		t.Fatalf("expected callback error, got %v", err)
	}
	// the group must be usable again
	if err := pool.SafeCall(DescriptorManagement, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
