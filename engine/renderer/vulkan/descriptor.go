package vulkan

import (
	vk "github.com/goki/vulkan"
)

/**
 * @brief Creates the set layout every constant buffer uses: a single dynamic
 * uniform buffer at binding 0, visible to the vertex and fragment stages.
 */
func ConstantBufferSetLayoutCreate(context *VulkanContext) (vk.DescriptorSetLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
		},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		return nil, resultError("vkCreateDescriptorSetLayout", res)
	}
	return layout, nil
}

/**
 * @brief Creates the pool constant buffer descriptor sets are allocated from.
 * Sets are freed individually when their buffer is destroyed.
 */
func ConstantBufferPoolCreate(context *VulkanContext, maxSets uint32) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{
			Type:            vk.DescriptorTypeUniformBufferDynamic,
			DescriptorCount: maxSets,
		},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		return nil, resultError("vkCreateDescriptorPool", res)
	}
	return pool, nil
}

// ConstantBufferSetAllocate allocates a set from pool and points it at the
// first elementSize bytes of buffer. The dynamic offset picks the element.
func ConstantBufferSetAllocate(context *VulkanContext, pool vk.DescriptorPool, layout vk.DescriptorSetLayout, buffer vk.Buffer, elementSize uint64) (vk.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &sets[0]); res != vk.Success {
		return nil, resultError("vkAllocateDescriptorSets", res)
	}

	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: buffer,
		Offset: 0,
		Range:  vk.DeviceSize(elementSize),
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          sets[0],
		DstBinding:      0,
		DstArrayElement: 0,
		DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
		DescriptorCount: 1,
		PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return sets[0], nil
}

func ConstantBufferSetFree(context *VulkanContext, pool vk.DescriptorPool, set vk.DescriptorSet) error {
	if res := vk.FreeDescriptorSets(context.Device.LogicalDevice, pool, 1, &set); res != vk.Success {
		return resultError("vkFreeDescriptorSets", res)
	}
	return nil
}
