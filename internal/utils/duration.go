package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseShortDuration understands the moderation time grammar used in
// commands: 30s, 4m, 3h, 6d, 5w. Plain digits are treated as minutes.
func ParseShortDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	unit := time.Minute
	num := s
	switch s[len(s)-1] {
	case 's':
		unit, num = time.Second, s[:len(s)-1]
	case 'm':
		unit, num = time.Minute, s[:len(s)-1]
	case 'h':
		unit, num = time.Hour, s[:len(s)-1]
	case 'd':
		unit, num = 24*time.Hour, s[:len(s)-1]
	case 'w':
		unit, num = 7*24*time.Hour, s[:len(s)-1]
	}

	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration %q: expected something like 4m, 3h, 6d or 5w", s)
	}
	return time.Duration(n) * unit, nil
}

// ReadableDuration renders a duration the way admins expect to read it in
// replies: whole days, then hours, then minutes.
func ReadableDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	case d >= time.Hour:
		return fmt.Sprintf("%d hour(s)", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}
