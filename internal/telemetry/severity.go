package telemetry

import (
	"strconv"

	"github.com/rs/zerolog"
)

// Severity is the level attached to a /log record.
type Severity int

const (
	SeverityInfo Severity = iota + 1
	SeverityError
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "severity(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseSeverity is the inverse of String for the three wire values.
func ParseSeverity(raw string) (Severity, bool) {
	switch raw {
	case "info":
		return SeverityInfo, true
	case "warn":
		return SeverityWarning, true
	case "error":
		return SeverityError, true
	default:
		return 0, false
	}
}

// Level is the zerolog level a record of this severity is logged at.
func (s Severity) Level() zerolog.Level {
	switch s {
	case SeverityWarning:
		return zerolog.WarnLevel
	case SeverityError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
