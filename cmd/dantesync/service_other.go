//go:build !windows

package main

// runAsService exists only so main.go compiles on every target; --service
// is rejected before this point is ever reached on a non-Windows build.
func runAsService(iface, ntpServer string, skipNTP bool, configPath string) {
	log.Fatal("--service is only supported on Windows")
}
