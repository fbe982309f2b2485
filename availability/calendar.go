package availability

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar day format used as schedule key.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// ClosedWeekdays are the first two days of the week; no booking is taken on
// them whatever the slot.
var ClosedWeekdays = []time.Weekday{time.Sunday, time.Monday}

// Calendar combines the slot catalog with the weekly day policy.
type Calendar struct {
	Slots  *Catalog
	Closed []time.Weekday
}

func NewCalendar(slots *Catalog) *Calendar {
	if slots == nil {
		slots = DefaultCatalog()
	}
	return &Calendar{
		Slots:  slots,
		Closed: append([]time.Weekday(nil), ClosedWeekdays...),
	}
}

// ParseDate validates a YYYY-MM-DD day label.
func ParseDate(date string) (time.Time, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return d, nil
}

// IsClosed reports whether date falls on a closed weekday.
func (c *Calendar) IsClosed(date string) (bool, error) {
	d, err := ParseDate(date)
	if err != nil {
		return false, err
	}
	for _, wd := range c.Closed {
		if d.Weekday() == wd {
			return true, nil
		}
	}
	return false, nil
}
