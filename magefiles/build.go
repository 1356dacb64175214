//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderStages = []string{"shaders/shapes.vert", "shaders/shapes.frag"}

// Compiles every GLSL stage into SPIR-V next to its source.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the shapes binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Build engine...")
	if _, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "shapes"), "."), withStream()); err != nil {
		return err
	}
	return nil
}

func buildShaders() error {
	for _, src := range shaderStages {
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}
