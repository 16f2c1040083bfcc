package log

// LevelPredicate reports whether a record's tag set is accepted by a
// configured level threshold.
type LevelPredicate func(tags []string) bool

// acceptAtOrAbove builds a predicate that accepts a record iff it
// carries a well-known level tag ranked at or above (i.e. rank <=)
// threshold. Rank 0 (Fatal) is the most severe.
func acceptAtOrAbove(threshold int) LevelPredicate {
	return func(tags []string) bool {
		for _, t := range tags {
			if rank, ok := levelRank[t]; ok && rank <= threshold {
				return true
			}
		}
		return false
	}
}

// acceptAll is LogAll's predicate: it accepts every record regardless of
// tags, including records that carry no recognised level tag at all —
// LogAsync.h documents this explicitly ("allows everything to be logged,
// even if no logging level tags are provided").
func acceptAll(tags []string) bool { return true }

// levelPredicates holds the six precomputed forms from §4.9, indexed by
// the well-known level tag naming the threshold.
var levelPredicates = map[string]LevelPredicate{
	LogFatal: acceptAtOrAbove(levelRank[LogFatal]),
	LogError: acceptAtOrAbove(levelRank[LogError]),
	LogWarn:  acceptAtOrAbove(levelRank[LogWarn]),
	LogInfo:  acceptAtOrAbove(levelRank[LogInfo]),
	LogDebug: acceptAtOrAbove(levelRank[LogDebug]),
	LogAll:   acceptAll,
}

// LevelFilterFor resolves the precomputed predicate for a configured
// level tag, defaulting to LogAll (accept everything) for an unknown or
// empty value — the default predicate of §4.9.
func LevelFilterFor(level string) LevelPredicate {
	if p, ok := levelPredicates[level]; ok {
		return p
	}
	return acceptAll
}
