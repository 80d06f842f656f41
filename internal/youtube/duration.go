package youtube

import (
	"regexp"
	"strconv"
)

var iso8601Duration = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// ParseISO8601Duration converts a Data API duration like "PT1H2M3S" to
// seconds. Malformed input parses to 0.
func ParseISO8601Duration(duration string) int {
	if duration == "" {
		return 0
	}
	matches := iso8601Duration.FindStringSubmatch(duration)
	if len(matches) == 0 {
		return 0
	}
	total := 0
	for i, mult := range []int{3600, 60, 1} {
		if matches[i+1] == "" {
			continue
		}
		if v, err := strconv.Atoi(matches[i+1]); err == nil {
			total += v * mult
		}
	}
	return total
}
