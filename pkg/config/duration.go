package config

import (
	"time"

	"github.com/sosodev/duration"
)

// ParseDuration parses an ISO 8601 duration ("PT15M"), falling back to Go syntax ("15m")
func ParseDuration(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
