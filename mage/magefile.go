//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

const (
	BIN_DIR     = "../bin"
	SERVER_BIN  = "../bin/roomchat-server"
	CLIENT_BIN  = "../bin/roomchat-client"
	SERVER_PATH = "../cmd/server"
	CLIENT_PATH = "../cmd/client"
)

// Build compiles the server and client binaries.
func Build() error {
	mg.Deps(Vet)
	fmt.Println("Building binaries...")
	if err := runCmd("go", "build", "-o", SERVER_BIN, SERVER_PATH); err != nil {
		return err
	}
	return runCmd("go", "build", "-o", CLIENT_BIN, CLIENT_PATH)
}

// Test runs every package test with the race detector.
func Test() error {
	fmt.Println("Running tests...")
	return runCmd("go", "test", "-race", "-count=1", "../...")
}

func Vet() error {
	fmt.Println("Vetting...")
	return runCmd("go", "vet", "../...")
}

// Run starts the server with its default configuration.
func Run() error {
	mg.Deps(Build)
	return runCmd(SERVER_BIN)
}

func Clean() {
	fmt.Println("Cleaning up...")
	os.RemoveAll(BIN_DIR)
}

func runCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
