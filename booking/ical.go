package booking

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const productID = "-//agendamento//PT"

// ErrNothingToExport is returned for a schedule without appointments; an
// iCalendar object needs at least one component.
var ErrNothingToExport = errors.New("no appointments to export")

// WriteICS encodes sched as an iCalendar document with one VEVENT per
// appointment. Times are interpreted in loc.
func WriteICS(w io.Writer, username string, sched Schedule, loc *time.Location) error {
	if sched.Len() == 0 {
		return ErrNothingToExport
	}
	if loc == nil {
		loc = time.Local
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, date := range sched.Dates() {
		for _, a := range sched[date] {
			ev, err := toEvent(username, a, loc)
			if err != nil {
				return err
			}
			cal.Children = append(cal.Children, ev)
		}
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode schedule to iCal format: %w", err)
	}
	return nil
}

func toEvent(username string, a Appointment, loc *time.Location) (*ical.Component, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
	if err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	end := start.Add(time.Duration(a.DurationMinutes) * time.Minute)

	stamp := a.CreatedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	ev := ical.NewComponent(ical.CompEvent)
	ev.Props.SetText(ical.PropUID, a.ID)
	ev.Props.SetText(ical.PropSummary, strings.Join(a.Services, " + "))
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	if username != "" {
		ev.Props.SetText(ical.PropDescription, "Agendado por "+username)
	}
	return ev, nil
}
