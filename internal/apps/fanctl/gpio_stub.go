//go:build !linux || (!arm && !arm64)

package fanctl

import "fmt"

// openFan is unsupported off Linux/ARM; the fanctl app still loads, it just
// fails its own Init and never gets started by the host.
func openFan(pin int) (fanDriver, error) {
	return nil, fmt.Errorf("fanctl: gpio unsupported on this platform")
}
