package vulkan

/**
 * @brief Max number of constant buffers alive at once. Each one owns a
 * descriptor set with a single dynamic uniform binding.
 */
const VULKAN_MAX_CONSTANT_BUFFERS uint32 = 64

/**
 * @brief Max number of frames the device keeps acquire and present
 * semaphores for.
 */
const VULKAN_MAX_FRAMES_IN_FLIGHT uint32 = 8

/** @brief How long a fence wait blocks before checking its context again. */
const VULKAN_FENCE_WAIT_SLICE_NS uint64 = 2_000_000

/** @brief Number of constant buffer slots visible to the shaders. */
const VULKAN_CONSTANT_BUFFER_SLOTS uint32 = 2
