package loaders

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

// ShaderLoader reads compiled SPIR-V bytecode.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("shader %s: %d bytes is not a whole number of SPIR-V words", path, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data); magic != SPIRVMagic {
		return nil, fmt.Errorf("shader %s: bad SPIR-V magic 0x%08x", path, magic)
	}
	return &Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

func (sl *ShaderLoader) Unload(r *Resource) error {
	r.Data = nil
	r.DataSize = 0
	return nil
}
