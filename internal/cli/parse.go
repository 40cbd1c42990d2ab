package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tessro/cassette/internal/core"
)

// parsePosition parses a seek target as m:ss, h:mm:ss or milliseconds.
func parsePosition(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ":") {
		ms, err := strconv.Atoi(s)
		if err != nil || ms < 0 {
			return 0, fmt.Errorf("invalid position %q: use m:ss or milliseconds", s)
		}
		return ms, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid position %q: use m:ss or milliseconds", s)
	}
	seconds := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, fmt.Errorf("invalid position %q: use m:ss or milliseconds", s)
		}
		seconds = seconds*60 + n
	}
	return seconds * 1000, nil
}

// parseSwitch parses on/off style arguments.
func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid value %q: use on or off", s)
	}
}

// parseRepeat parses a repeat mode argument.
func parseRepeat(s string) (core.RepeatMode, error) {
	switch mode := core.RepeatMode(strings.ToLower(s)); mode {
	case core.RepeatOff, core.RepeatContext, core.RepeatTrack:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid repeat mode %q: use off, context or track", s)
	}
}

// parseVolume parses a volume percentage.
func parseVolume(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
	if err != nil || v < 0 || v > 100 {
		return 0, fmt.Errorf("volume must be between 0 and 100")
	}
	return v, nil
}
