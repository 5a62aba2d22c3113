//go:build !windows

package main

import (
	"fmt"
	"os"
)

// The injectable module only exists on Windows. framehook-demo simulates
// it in-process elsewhere.
func main() {
	fmt.Fprintln(os.Stderr, "framehook: the injectable module is only built for windows")
	os.Exit(1)
}
