// Package booking owns a user's schedule: the appointments booked per day and
// the session through which they are created, listed and cancelled.
package booking

import (
	"sort"
	"time"
)

// Appointment is one confirmed booking. It is created on confirm and removed
// on cancel; it is never edited in place.
type Appointment struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	Services        []string  `json:"services"`
	DurationMinutes int       `json:"durationMinutes"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Schedule maps a YYYY-MM-DD day to its appointments in booking order.
// A day with no appointments has no key.
type Schedule map[string][]Appointment

// Add appends a to its day.
func (s Schedule) Add(a Appointment) {
	s[a.Date] = append(s[a.Date], a)
}

// Remove deletes the appointment with the given id and drops its day once
// the day is empty. It reports whether anything was removed.
func (s Schedule) Remove(id string) (Appointment, bool) {
	for date, list := range s {
		for i, a := range list {
			if a.ID != id {
				continue
			}
			rest := make([]Appointment, 0, len(list)-1)
			rest = append(rest, list[:i]...)
			rest = append(rest, list[i+1:]...)
			if len(rest) == 0 {
				delete(s, date)
			} else {
				s[date] = rest
			}
			return a, true
		}
	}
	return Appointment{}, false
}

// Find looks an appointment up by id.
func (s Schedule) Find(id string) (Appointment, bool) {
	for _, list := range s {
		for _, a := range list {
			if a.ID == id {
				return a, true
			}
		}
	}
	return Appointment{}, false
}

// On returns a copy of the appointments booked for date.
func (s Schedule) On(date string) []Appointment {
	return append([]Appointment{}, s[date]...)
}

// Dates lists the days holding appointments, earliest first.
func (s Schedule) Dates() []string {
	dates := make([]string, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Len counts appointments over all days.
func (s Schedule) Len() int {
	n := 0
	for _, list := range s {
		n += len(list)
	}
	return n
}

// Clone returns a deep copy so a failed write can be rolled back.
func (s Schedule) Clone() Schedule {
	out := make(Schedule, len(s))
	for d, list := range s {
		cp := make([]Appointment, len(list))
		for i, a := range list {
			a.Services = append([]string(nil), a.Services...)
			cp[i] = a
		}
		out[d] = cp
	}
	return out
}
