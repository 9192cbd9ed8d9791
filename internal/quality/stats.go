package quality

import (
	"sort"

	"github.com/starford/ansuz/internal/tree"
)

// StatsCollector aggregates rejected candidates for one node: one entry
// per distinct norm key, counting repeats and accumulating every distinct
// rejection reason. Entries keep first-occurrence order.
type StatsCollector struct {
	order []string
	byKey map[string]*tree.RejectedCandidateStat
	raw   []string
}

// NewStatsCollector creates an empty collector.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{byKey: make(map[string]*tree.RejectedCandidateStat)}
}

// Record adds one rejection. canonical is the canonicalized text,
// normKey its dedup key, reason the rejection reason code.
func (c *StatsCollector) Record(canonical, normKey, reason string) {
	c.raw = append(c.raw, canonical)
	stat, ok := c.byKey[normKey]
	if !ok {
		stat = &tree.RejectedCandidateStat{Text: canonical, Count: 0}
		c.byKey[normKey] = stat
		c.order = append(c.order, normKey)
	}
	stat.Count++
	stat.Reasons = insertReason(stat.Reasons, reason)
}

// insertReason keeps reasons sorted and duplicate-free.
func insertReason(reasons []string, reason string) []string {
	i := sort.SearchStrings(reasons, reason)
	if i < len(reasons) && reasons[i] == reason {
		return reasons
	}
	reasons = append(reasons, "")
	copy(reasons[i+1:], reasons[i:])
	reasons[i] = reason
	return reasons
}

// Stats returns the aggregated entries in first-occurrence order.
func (c *StatsCollector) Stats() []tree.RejectedCandidateStat {
	out := make([]tree.RejectedCandidateStat, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, *c.byKey[k])
	}
	return out
}

// Rejected returns every rejected canonical text in recording order,
// including repeats. This feeds the legacy rejected_candidates field.
func (c *StatsCollector) Rejected() []string {
	return append([]string(nil), c.raw...)
}

// Empty reports whether nothing was rejected.
func (c *StatsCollector) Empty() bool { return len(c.order) == 0 }
