//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and opens the shapes window.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "config.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Draws a few hundred frames on the CPU device, no window or GPU needed.
func (Run) Headless() error {
	fmt.Println("Run headless...")
	if _, err := executeCmd("go", withArgs("run", ".", "-headless", "-frames", "300"), withStream()); err != nil {
		return err
	}
	return nil
}

type Test mg.Namespace

// Runs every package test with the race detector.
func (Test) All() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./engine/..."), withStream()); err != nil {
		return err
	}
	return nil
}
