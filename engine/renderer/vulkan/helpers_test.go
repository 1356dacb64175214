package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

func TestAttributeFormat(t *testing.T) {
	want := map[uint32]vk.Format{
		1: vk.FormatR32Sfloat,
		2: vk.FormatR32g32Sfloat,
		3: vk.FormatR32g32b32Sfloat,
		4: vk.FormatR32g32b32a32Sfloat,
	}
	for components, format := range want {
		got, err := attributeFormat(components)
		if err != nil || got != format {
			t.Errorf("attributeFormat(%d) = %d, %v", components, got, err)
		}
	}
	if _, err := attributeFormat(5); err == nil {
		t.Error("5 components should be rejected")
	}
}

func TestVertexAttributesKeepLayout(t *testing.T) {
	attrs, err := vertexAttributes(metadata.VertexAttributes)
	if err != nil {
		t.Fatal(err)
	}
	if len(attrs) != len(metadata.VertexAttributes) {
		t.Fatalf("got %d attributes", len(attrs))
	}
	for i, a := range attrs {
		if a.Location != metadata.VertexAttributes[i].Location || a.Offset != metadata.VertexAttributes[i].Offset || a.Binding != 0 {
			t.Errorf("attribute %d = %+v", i, a)
		}
	}
}

func TestBufferUsageFlags(t *testing.T) {
	got := bufferUsageFlags(metadata.BufferUsageVertex | metadata.BufferUsageTransferDst)
	want := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit)
	if got != want {
		t.Errorf("usage flags = %x, want %x", got, want)
	}
	if bufferUsageFlags(metadata.BufferUsageConstant) != vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit) {
		t.Error("constant usage should map to a uniform buffer")
	}
}

func TestHeapMemoryFlags(t *testing.T) {
	upload := heapMemoryFlags(metadata.HeapTypeUpload)
	if upload&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) == 0 {
		t.Error("upload heap must be host visible")
	}
	if heapMemoryFlags(metadata.HeapTypeDefault) != vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) {
		t.Error("default heap must be device local")
	}
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 2 || words[0] != 0x07230203 || words[1] != 0x00010000 {
		t.Errorf("words = %x", words)
	}
	if _, err := spirvWords([]byte{1, 2, 3}); err == nil {
		t.Error("unaligned code should be rejected")
	}
	if _, err := spirvWords(nil); err == nil {
		t.Error("empty code should be rejected")
	}
}

func TestPrimitiveTopologyAndCull(t *testing.T) {
	if primitiveTopology(metadata.PrimitiveTopologyLineList) != vk.PrimitiveTopologyLineList {
		t.Error("line list")
	}
	if primitiveTopology(metadata.PrimitiveTopologyTriangleList) != vk.PrimitiveTopologyTriangleList {
		t.Error("triangle list")
	}
	if cullModeFlags(metadata.FaceCullModeNone) != vk.CullModeFlags(vk.CullModeNone) {
		t.Error("cull none")
	}
	if cullModeFlags(metadata.FaceCullModeBack) != vk.CullModeFlags(vk.CullModeBackBit) {
		t.Error("cull back")
	}
}

func TestUtils(t *testing.T) {
	if MathClamp(5, 1, 3) != 3 || MathClamp(0, 1, 3) != 1 || MathClamp(2, 1, 3) != 2 {
		t.Error("MathClamp")
	}
	if VulkanResultString(vk.ErrorOutOfDate) != "VK_ERROR_OUT_OF_DATE_KHR" {
		t.Error("result name")
	}
	if VulkanResultString(vk.Result(-12345)) != "VkResult(-12345)" {
		t.Error("unknown result name")
	}
	if !VulkanResultIsSuccess(vk.Suboptimal) || VulkanResultIsSuccess(vk.ErrorDeviceLost) {
		t.Error("VulkanResultIsSuccess")
	}
	if VulkanSafeString("main") != "main\x00" || VulkanSafeString("x\x00") != "x\x00" {
		t.Error("VulkanSafeString")
	}
	if FindFirstZeroInByteArray([]byte{'a', 'b', 0, 'c'}) != 2 || FindFirstZeroInByteArray([]byte("abc")) != 3 {
		t.Error("FindFirstZeroInByteArray")
	}
}
