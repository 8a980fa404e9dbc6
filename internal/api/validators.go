package api

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/spleefx/spleefx/internal/domain"
)

// parseLimit parses and validates a limit parameter with default and max values
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			return parsed
		}
	}
	return defaultLimit
}

// parsePlayerID parses a player UUID from the URL path
func parsePlayerID(req *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(req.PathValue(param))
}

// parseMode returns the mode query parameter, defaulting to the first
// configured mode. ok is false for modes no arena uses.
func (r *Router) parseMode(req *http.Request) (string, bool) {
	mode := req.URL.Query().Get("mode")
	if mode == "" {
		if len(r.modes) == 0 {
			return "", false
		}
		return r.modes[0], true
	}
	return mode, slices.Contains(r.modes, mode)
}

// validateStatistic checks if a leaderboard statistic is valid
func validateStatistic(stat string) bool {
	return domain.ValidStatistic(stat)
}
