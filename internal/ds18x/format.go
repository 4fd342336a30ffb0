package ds18x

import (
	"strconv"

	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
)

// FormatTemperature renders a reading for publication with exactly four
// decimal places. The disconnected sentinel renders as the empty string so
// that no value is published for a sensor that has never been read.
func FormatTemperature(celsius float64) string {
	if celsius == onewire.DisconnectedC {
		return ""
	}
	return strconv.FormatFloat(celsius, 'f', 4, 64)
}
