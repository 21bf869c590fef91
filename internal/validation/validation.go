package validation

import (
	"math"
)

// IsValidDelta reports whether dt can advance a simulation clock.
func IsValidDelta(dt float64) bool {
	return IsFinite(dt) && dt >= 0
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ClampAmmo bounds n to [0, limit].
func ClampAmmo(n, limit int) int {
	if limit < 0 {
		limit = 0
	}
	return max(0, min(n, limit))
}

func IsValidPlayerID(id uint8, maxPlayers int) bool {
	return int(id) < maxPlayers
}

func IsValidTickRate(hz int) bool {
	return hz >= 1 && hz <= 1000
}

func IsValidPort(port int) bool {
	return port > 0 && port <= 65535
}
