package refresher

type cycleMetrics struct {
	total   int
	cached  int
	fetched int
	broken  int
	fresh   int
}

// logArgs builds structured-log pairs, omitting zero counters.
func (m *cycleMetrics) logArgs() []any {
	args := make([]any, 0)
	if m.cached != 0 {
		args = append(args, "cached", m.cached)
	}
	if m.fetched != 0 {
		args = append(args, "fetched", m.fetched)
	}
	if m.broken != 0 {
		args = append(args, "broken", m.broken)
	}
	if m.fresh != 0 {
		args = append(args, "fresh", m.fresh)
	}
	return args
}
