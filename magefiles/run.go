//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the clear-screen renderer with framekit.toml.
func (Run) Renderer() error {
	fmt.Println("Run renderer...")
	if _, err := executeCmd("go", withArgs("run", "main.go", "-config", "framekit.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Same as Renderer with the validation layers on. Needs the Vulkan SDK.
func (Run) Validation() error {
	mg.Deps(Build.Binary)
	if _, err := executeCmd("bin/framekit", withArgs("-config", validationConfig()), withStream()); err != nil {
		return err
	}
	return nil
}

func validationConfig() string {
	if p := os.Getenv("FRAMEKIT_CONFIG"); p != "" {
		return p
	}
	return "framekit.validation.toml"
}
