//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

// Build compiles askdata-api and askdatactl into bin/.
func Build() error {
	fmt.Println("Building...")
	if err := os.MkdirAll("bin", 0o755); err != nil {
		return err
	}
	if err := sh.Run("go", "build", "-o", "bin/askdata-api", "./cmd/askdata-api"); err != nil {
		return err
	}
	return sh.Run("go", "build", "-o", "bin/askdatactl", "./cmd/askdatactl")
}

// Test runs the unit tests.
func Test() error {
	fmt.Println("Running tests...")
	return sh.Run("go", "test", "./...")
}

// Integration runs tests against a live object store configured by ASKDATA_TEST_S3_* variables.
func Integration() error {
	fmt.Println("Running integration tests...")
	return sh.Run("go", "test", "-tags", "integration", "./internal/storage/...")
}

func Check() error {
	mg.Deps(Fmt, Vet)
	return nil
}

func Fmt() error {
	return sh.Run("gofmt", "-l", "-w", "cmd", "internal")
}

func Vet() error {
	return sh.Run("go", "vet", "./...")
}

func Tidy() error {
	return sh.Run("go", "mod", "tidy")
}

// Clean removes build output.
func Clean() error {
	return os.RemoveAll("bin")
}
