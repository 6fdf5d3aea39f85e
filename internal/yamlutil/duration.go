// Package yamlutil holds small YAML decoding helpers shared by every
// config-like package in the module (internal/config, internal/simreplay):
// gopkg.in/yaml.v3 has no built-in support for human-readable durations, so
// every one of them would otherwise need to hand-roll the same
// time.ParseDuration plumbing.
package yamlutil

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("5s", "250ms") or a bare integer number of nanoseconds.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("yamlutil: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("yamlutil: duration must be a string or integer nanosecond count")
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
