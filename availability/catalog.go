package availability

import (
	"errors"
	"fmt"
	"time"
)

const clockLayout = "15:04"

var (
	ErrUnknownService = errors.New("unknown service")
	ErrInvalidClock   = errors.New("invalid time, expected HH:MM")
	ErrEmptyCatalog   = errors.New("slot catalog is empty")
)

// Service is a named unit of work with a fixed duration.
type Service struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

var serviceCatalog = []Service{
	{Name: "Corte de cabelo", DurationMinutes: 30},
	{Name: "Barba", DurationMinutes: 15},
	{Name: "Coloração", DurationMinutes: 60},
	{Name: "Escova", DurationMinutes: 45},
	{Name: "Hidratação", DurationMinutes: 45},
	{Name: "Manicure", DurationMinutes: 30},
}

// Services returns a copy of the service catalog in display order.
func Services() []Service {
	return append([]Service(nil), serviceCatalog...)
}

// LookupService finds a catalog entry by its exact label.
func LookupService(name string) (Service, bool) {
	for _, s := range serviceCatalog {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// TotalDuration sums the durations of the named services. Services run back
// to back with no gap, so selection order does not matter.
func TotalDuration(names ...string) (int, error) {
	total := 0
	for _, name := range names {
		s, ok := LookupService(name)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownService, name)
		}
		total += s.DurationMinutes
	}
	return total, nil
}

// Catalog is the ordered list of bookable slot labels for a day.
type Catalog struct {
	labels  []string
	minutes []int
	index   map[string]int
}

// NewCatalog builds slot labels from start to end inclusive, every step.
func NewCatalog(start, end string, step time.Duration) (*Catalog, error) {
	startMin, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	stepMin := int(step / time.Minute)
	if stepMin <= 0 || endMin < startMin {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{index: make(map[string]int)}
	for m := startMin; m <= endMin; m += stepMin {
		label := FormatClock(m)
		c.index[label] = len(c.labels)
		c.labels = append(c.labels, label)
		c.minutes = append(c.minutes, m)
	}
	return c, nil
}

// DefaultCatalog is the 12:00..20:00 window at 15 minute resolution.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog("12:00", "20:00", 15*time.Minute)
	if err != nil {
		panic(err)
	}
	return c
}

// Labels returns a copy of the slot labels.
func (c *Catalog) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Contains reports whether label is one of the catalog slots.
func (c *Catalog) Contains(label string) bool {
	_, ok := c.index[label]
	return ok
}

func (c *Catalog) Len() int { return len(c.labels) }

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(label string) (int, error) {
	t, err := time.Parse(clockLayout, label)
	if err != nil || len(label) != len(clockLayout) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, label)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
