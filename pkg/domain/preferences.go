package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock parses an "HH:mm" time of day.
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time %q must be HH:mm", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time %q has invalid hour", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q has invalid minute", value)
	}
	return hour, minute, nil
}

// Validate checks the day-of-week range and the time-of-day format.
func (p DigestPreference) Validate() error {
	if p.DayOfWeek < 0 || p.DayOfWeek > 6 {
		return ValidationError{Field: "digest_preference.day_of_week", Reason: "must be between 0 and 6"}
	}
	if _, _, err := ParseClock(p.Time); err != nil {
		return ValidationError{Field: "digest_preference.time", Reason: err.Error()}
	}
	return nil
}
