// Package matcher reconciles a recorded log entry with the actions the rules
// engine offered at the same point.
package matcher

import "quardsview/internal/match"

// Match returns the first valid candidate that corresponds to the historical
// entry, or nil. Candidate order is the server's enumeration order.
func Match(candidates []match.Action, entry match.LogEntry) *match.Action {
	for i := range candidates {
		if Matches(candidates[i], entry) {
			return &candidates[i]
		}
	}
	return nil
}

// Matches reports whether a single candidate corresponds to the entry.
func Matches(candidate match.Action, entry match.LogEntry) bool {
	if !candidate.Valid {
		return false
	}
	if string(candidate.Type) != entry.Action {
		return false
	}
	if candidate.Parameters.Has("card_id") && entry.Parameters.Has("card_id") {
		sameCard := candidate.Parameters.String("card_id") == entry.Parameters.String("card_id")
		if candidate.Type == match.PlayCard &&
			candidate.Parameters.Has("cost") && entry.Parameters.Has("cost") {
			// cards with alternate costs are only distinguished by cost
			return sameCard && candidate.Parameters.String("cost") == entry.Parameters.String("cost")
		}
		return sameCard
	}
	return candidate.Type == match.Pass
}
