package dedupe

import (
	"strings"
	"time"
)

// MaxSummaryLen bounds entity summaries. Folding drops the oldest detail
// first.
const MaxSummaryLen = 2000

// FoldMention appends a new mention to a node summary, trimming whole leading
// sentences once the bound is exceeded.
func FoldMention(summary, mention string) string {
	mention = strings.TrimSpace(mention)
	if mention == "" {
		return summary
	}
	if summary == "" {
		summary = mention
	} else if !strings.Contains(summary, mention) {
		summary = summary + " " + mention
	}

	for len(summary) > MaxSummaryLen {
		cut := strings.Index(summary, ". ")
		if cut == -1 || cut+2 >= len(summary) {
			summary = summary[len(summary)-MaxSummaryLen:]
			break
		}
		summary = summary[cut+2:]
	}
	return summary
}

// MergeAttributes folds newly extracted attributes into the existing set.
// Confirmed values are kept unless the new mention is more recent than the
// node and explicitly carries a different value.
func MergeAttributes(existing, incoming map[string]interface{}, nodeUpdatedAt, mentionTime time.Time) map[string]interface{} {
	if len(incoming) == 0 {
		return existing
	}
	merged := make(map[string]interface{}, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	newerMention := mentionTime.After(nodeUpdatedAt)
	for k, v := range incoming {
		if _, confirmed := merged[k]; !confirmed || newerMention {
			merged[k] = v
		}
	}
	return merged
}
