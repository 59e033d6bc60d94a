package session

import (
	"net/url"
	"strconv"
)

// ParseTargetIndex reads the "index" query parameter. Missing, malformed or
// negative values select target 0.
func ParseTargetIndex(query url.Values) int {
	raw := query.Get("index")
	if raw == "" {
		return 0
	}
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		return 0
	}
	return i
}
