package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-shapes/engine/core"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// spirvWords reinterprets a SPIR-V binary as the little endian words
// vkCreateShaderModule expects.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("spir-v code size %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	if _, err := binary.Decode(code, binary.LittleEndian, words); err != nil {
		return nil, err
	}
	return words, nil
}

func NewShaderModule(context *VulkanContext, code []byte, stage vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	words, err := spirvWords(code)
	if err != nil {
		return nil, core.NewFatalDeviceError("NewShaderModule", err)
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	outStage := &VulkanShaderStage{}
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &outStage.Handle); res != vk.Success {
		return nil, resultError("vkCreateShaderModule", res)
	}

	outStage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: outStage.Handle,
		PName:  VulkanSafeString("main"),
	}
	return outStage, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != nil {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = nil
	}
}
