package sampler

import (
	"net/http"
	"strconv"
	"strings"
)

var snapshotHeaders = []string{"cf-cache-status", "x-cache", "age", "cache-control", "via"}

// detectCacheHit classifies a response as a cache hit using cf-cache-status,
// then x-cache, then a positive age. Nil means no header said anything.
func detectCacheHit(h http.Header) (*bool, map[string]*string) {
	snapshot := make(map[string]*string, len(snapshotHeaders))
	for _, name := range snapshotHeaders {
		snapshot[name] = headerValue(h, name)
	}

	var hit *bool
	switch {
	case nonEmpty(snapshot["cf-cache-status"]):
		hit = boolPtr(strings.Contains(strings.ToUpper(*snapshot["cf-cache-status"]), "HIT"))
	case nonEmpty(snapshot["x-cache"]):
		hit = boolPtr(strings.Contains(strings.ToUpper(*snapshot["x-cache"]), "HIT"))
	case nonEmpty(snapshot["age"]):
		age, err := strconv.ParseFloat(strings.TrimSpace(*snapshot["age"]), 64)
		hit = boolPtr(err == nil && age > 0)
	}
	return hit, snapshot
}

func headerValue(h http.Header, name string) *string {
	values := h.Values(name)
	if len(values) == 0 {
		return nil
	}
	joined := strings.Join(values, ", ")
	return &joined
}

func nonEmpty(v *string) bool {
	return v != nil && *v != ""
}

func boolPtr(v bool) *bool { return &v }
