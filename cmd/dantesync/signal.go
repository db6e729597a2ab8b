package main

import (
	"os"
	"os/signal"
	"syscall"
)

// waitForShutdownSignal blocks until the process receives an interrupt or
// terminate signal, then returns so the caller can begin its under-2s
// shutdown sequence.
func waitForShutdownSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	signal.Stop(ch)
}
