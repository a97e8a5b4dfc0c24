package sentryutil

import (
	"errors"
	"testing"
)

// Capture helpers must be safe no-ops when Init was never called or the DSN
// is empty, so startup notices never crash an unconfigured deployment.
func TestCaptureWithoutDSN(t *testing.T) {
	Init("", "test")
	CaptureMessage("started", map[string]string{"version": "dev"})
	CaptureMessage("no tags", nil)
	CaptureError(errors.New("boom"), map[string]string{"where": "test"})
	CaptureError(nil, nil)
	Flush()
}
