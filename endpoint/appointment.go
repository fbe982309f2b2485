package endpoint

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariebrainware/agendamento/booking"
	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
)

// ListAppointments returns the caller's whole schedule, or the appointments
// of one day with ?date=.
func ListAppointments(c *gin.Context) {
	sess, ok := openSessionOrRespond(c)
	if !ok {
		return
	}
	defer sess.Close()

	if date := c.Query("date"); date != "" {
		list, err := sess.Appointments(date)
		if err != nil {
			respondBookingError(c, "Failed to list appointments", err)
			return
		}
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointments retrieved", Data: list})
		return
	}

	sched, err := sess.Schedule()
	if err != nil {
		respondBookingError(c, "Failed to list appointments", err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointments retrieved", Data: sched})
}

// CreateAppointment books the requested services at a date and time.
func CreateAppointment(c *gin.Context) {
	var req booking.BookRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	sess, ok := openSessionOrRespond(c)
	if !ok {
		return
	}
	defer sess.Close()

	appt, err := sess.Book(c.Request.Context(), req)
	if err != nil {
		respondBookingError(c, "Failed to book appointment", err)
		return
	}

	util.LogBookingEvent(util.EventBookingCreated, sess.Username(), c.ClientIP(), map[string]interface{}{
		"id":       appt.ID,
		"date":     appt.Date,
		"time":     appt.Time,
		"services": appt.Services,
	})
	util.CallSuccessCreated(c, util.APISuccessParams{
		Msg:  "Appointment booked",
		Data: appt,
	})
}

// CancelAppointment removes the appointment named by :id.
func CancelAppointment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		util.CallUserError(c, util.APIErrorParams{Msg: "Appointment id is required", Err: fmt.Errorf("empty id")})
		return
	}

	sess, ok := openSessionOrRespond(c)
	if !ok {
		return
	}
	defer sess.Close()

	appt, err := sess.Cancel(c.Request.Context(), id)
	if err != nil {
		respondBookingError(c, "Failed to cancel appointment", err)
		return
	}

	util.LogBookingEvent(util.EventBookingCancelled, sess.Username(), c.ClientIP(), map[string]interface{}{
		"id":   appt.ID,
		"date": appt.Date,
		"time": appt.Time,
	})
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Appointment cancelled",
		Data: appt,
	})
}

// ExportAppointments writes the caller's schedule as an iCalendar file.
func ExportAppointments(c *gin.Context) {
	sess, ok := openSessionOrRespond(c)
	if !ok {
		return
	}
	defer sess.Close()

	sched, err := sess.Schedule()
	if err != nil {
		respondBookingError(c, "Failed to export appointments", err)
		return
	}

	var buf bytes.Buffer
	if err := booking.WriteICS(&buf, sess.Username(), sched, time.Local); err != nil {
		if errors.Is(err, booking.ErrNothingToExport) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "No appointments to export", Err: err})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to export appointments", Err: err})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.Username()+".ics"))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}
