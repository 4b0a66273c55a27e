package featureflags

import (
	"os"
	"strconv"
	"strings"
)

// Flag names. Each is read from FLAG_<NAME>.
const (
	// FastVerification shortens the simulated stage delays to a few milliseconds
	FastVerification = "fast_verification"
	// VerificationChaos fails a share of verification stages on purpose
	VerificationChaos = "verification_chaos"
)

var lookup = os.Getenv

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes/on (case-insensitive)
func Enabled(name string) bool {
	v := lookup("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Float returns the numeric setting FLAG_<NAME>_VALUE, or def when unset or invalid
func Float(name string, def float64) float64 {
	v := lookup("FLAG_" + strings.ToUpper(name) + "_VALUE")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// Snapshot reports every known flag, for startup logging
func Snapshot() map[string]bool {
	return map[string]bool{
		FastVerification:  Enabled(FastVerification),
		VerificationChaos: Enabled(VerificationChaos),
	}
}
