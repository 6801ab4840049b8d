// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/camsync/internal/log"
)

// EnvPrefix namespaces every environment variable read by the loader.
const EnvPrefix = "CAMSYNC_"

// lookup reads key from the environment and converts it with parse. Empty
// or malformed values fall back to defaultValue; the choice is logged at
// debug level (warn for malformed input) without echoing secrets.
func lookup[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Err(err).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitiveKey(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", v)
	}
	ev.Msg("using environment variable")
	return parsed
}

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	return lookup(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt reads an integer from environment variable or returns default value.
func ParseInt(key string, defaultValue int) int {
	return lookup(key, defaultValue, strconv.Atoi)
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return lookup(key, defaultValue, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// ParseDuration reads a duration in Go duration format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return lookup(key, defaultValue, time.ParseDuration)
}

// ParseBool accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return lookup(key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean %q", s)
	})
}

// ParseList reads a comma separated list, trimming blanks.
func ParseList(key string, defaultValue []string) []string {
	return lookup(key, defaultValue, func(s string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty list")
		}
		return out, nil
	})
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range []string{"password", "secret", "token"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
