//go:build linux

package status

import (
	"net"
	"os"
)

const SocketPath = "/run/dantesync.sock"

// NewListener binds the Unix-domain socket the IPC server accepts
// connections on, removing any stale socket file left behind by a prior
// crashed instance.
func NewListener(path string) (net.Listener, error) {
	if path == "" {
		path = SocketPath
	}
	_ = os.Remove(path)
	return net.Listen("unix", path)
}
