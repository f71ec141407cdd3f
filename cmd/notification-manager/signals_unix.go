//go:build !windows

package main

import (
	"os"
	"syscall"
)

// SIGTSTP (Ctrl+Z) stops the poller gracefully instead of suspending it.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGTSTP}
