package availability

// Span is a booked interval on one day: a start label and a length in minutes.
type Span struct {
	Start           string
	DurationMinutes int
}

// BlockedSlots returns the catalog slots whose start lies in
// [start, start+duration). The slot at exactly start+duration stays free so
// bookings can run back to back. A start label outside the catalog blocks
// nothing.
func (c *Catalog) BlockedSlots(start string, durationMinutes int) []string {
	blocked := make([]string, 0)
	i, ok := c.index[start]
	if !ok || durationMinutes <= 0 {
		return blocked
	}
	startMin := c.minutes[i]
	endMin := startMin + durationMinutes
	for j := i; j < len(c.minutes) && c.minutes[j] < endMin; j++ {
		blocked = append(blocked, c.labels[j])
	}
	return blocked
}

// Blocked is the union of BlockedSlots over spans, in catalog order.
func (c *Catalog) Blocked(spans []Span) []string {
	taken := c.taken(spans)
	blocked := make([]string, 0)
	for i, label := range c.labels {
		if taken[i] {
			blocked = append(blocked, label)
		}
	}
	return blocked
}

// Available is the catalog minus Blocked(spans), in catalog order.
func (c *Catalog) Available(spans []Span) []string {
	taken := c.taken(spans)
	free := make([]string, 0, len(c.labels))
	for i, label := range c.labels {
		if !taken[i] {
			free = append(free, label)
		}
	}
	return free
}

// Conflicts returns the slots that candidate would block and that spans
// already block.
func (c *Catalog) Conflicts(candidate Span, spans []Span) []string {
	taken := c.taken(spans)
	conflicts := make([]string, 0)
	for _, label := range c.BlockedSlots(candidate.Start, candidate.DurationMinutes) {
		if taken[c.index[label]] {
			conflicts = append(conflicts, label)
		}
	}
	return conflicts
}

func (c *Catalog) taken(spans []Span) []bool {
	taken := make([]bool, len(c.labels))
	for _, s := range spans {
		for _, label := range c.BlockedSlots(s.Start, s.DurationMinutes) {
			taken[c.index[label]] = true
		}
	}
	return taken
}
