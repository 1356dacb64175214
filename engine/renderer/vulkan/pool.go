package vulkan

import "sync"

type LockGroup string

// Vulkan requires external synchronisation on queues and pools. Each group
// serialises the calls that touch one of them.
const (
	QueueManagement           LockGroup = "queue_management"
	DescriptorManagement      LockGroup = "descriptor_management"
	SynchronizationManagement LockGroup = "synchronization_management"
	PipelineManagement        LockGroup = "pipeline_management"
)

// Mutex pool
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

// Get or create the mutex of a group.
func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.locks[group]; !exists {
		vs.locks[group] = &sync.Mutex{}
	}
	return vs.locks[group]
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}
