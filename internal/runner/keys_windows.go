//go:build windows

package runner

import "syscall"

var (
	kernel32                     = syscall.NewLazyDLL("kernel32.dll")
	procGenerateConsoleCtrlEvent = kernel32.NewProc("GenerateConsoleCtrlEvent")
)

// sendInterrupt sends CTRL_C_EVENT to the current process group.
func sendInterrupt() {
	procGenerateConsoleCtrlEvent.Call(0, 0)
}

// Console output processing is not affected by raw input mode on Windows.
func fixOutputProcessing(fd int) {}
