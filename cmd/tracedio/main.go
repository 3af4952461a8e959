// Command tracedio times openat, fstat and read syscalls and prints the
// accumulated latency totals.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
