//go:build !windows

package runner

import (
	"os"

	"golang.org/x/sys/unix"
)

// sendInterrupt raises SIGINT for this process once raw mode swallowed Ctrl+C.
func sendInterrupt() {
	_ = unix.Kill(os.Getpid(), unix.SIGINT)
}
