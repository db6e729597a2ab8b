//go:build linux

package clock

import (
	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/timebase"
)

// New constructs the platform clock adapter. Its signature is identical on
// every build target so cmd/dantesync can call it without OS-specific code.
func New(log *zap.Logger) (timebase.LocalClock, error) {
	return NewSystemClock(log), nil
}
