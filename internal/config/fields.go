package config

import (
	"fmt"
	"strings"
	"time"
)

// The config surface carries three duration knobs (telegram.poll_timeout,
// storage.busy_timeout, watch.idle_interval) as Go duration strings so the
// YAML stays readable ("8s", "1m30s"). An empty string means "not set" and
// resolves to the owning component's default.

// ParseDuration validates one duration field; path names the field in error
// text so a bad value is attributable without a stack trace.
func ParseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// DurationOrDefault resolves an optional duration field, substituting def
// for an unset field.
func DurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDuration(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
