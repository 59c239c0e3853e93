package scheduler

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimeOfDay parses "HH:MM" (24h) into hour and minute
func ParseTimeOfDay(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hour, minute, nil
}

// DailySpec converts "HH:MM" into a seconds-precision cron spec
func DailySpec(timeOfDay string) (string, error) {
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

// DailySpecs converts a list of times, dropping duplicates
func DailySpecs(times []string) ([]string, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("no times given")
	}

	seen := make(map[string]bool, len(times))
	specs := make([]string, 0, len(times))
	for _, t := range times {
		spec, err := DailySpec(t)
		if err != nil {
			return nil, err
		}
		if seen[spec] {
			continue
		}
		seen[spec] = true
		specs = append(specs, spec)
	}
	return specs, nil
}
