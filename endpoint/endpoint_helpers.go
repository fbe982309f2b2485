package endpoint

import (
	"errors"
	"fmt"

	"github.com/ariebrainware/agendamento/account"
	"github.com/ariebrainware/agendamento/availability"
	"github.com/ariebrainware/agendamento/booking"
	"github.com/ariebrainware/agendamento/middleware"
	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
)

type clientInfo struct {
	IP    string
	Agent string
}

func clientOf(c *gin.Context) clientInfo {
	return clientInfo{IP: c.ClientIP(), Agent: c.Request.UserAgent()}
}

func bindJSONOrRespond(c *gin.Context, dst interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: msg, Err: err})
		return false
	}
	return true
}

func depsOrRespond(c *gin.Context) (*middleware.Deps, bool) {
	deps := middleware.GetDeps(c)
	if deps == nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Services not available", Err: fmt.Errorf("deps is nil")})
		return nil, false
	}
	return deps, true
}

func usernameOrRespond(c *gin.Context) (string, bool) {
	username, ok := middleware.GetUsername(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "User not authenticated",
			Err: fmt.Errorf("username not found in context"),
		})
		return "", false
	}
	return username, true
}

// openSessionOrRespond loads the caller's schedule into a booking session.
// The caller closes the session.
func openSessionOrRespond(c *gin.Context) (*booking.Session, bool) {
	deps, ok := depsOrRespond(c)
	if !ok {
		return nil, false
	}
	username, ok := usernameOrRespond(c)
	if !ok {
		return nil, false
	}
	sess, err := deps.Booking.Open(c.Request.Context(), username)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load schedule", Err: err})
		return nil, false
	}
	return sess, true
}

// respondBookingError maps booking and availability errors to the response
// envelope: validation problems are 400, a taken slot 409, an unknown
// appointment 404, anything else 500.
func respondBookingError(c *gin.Context, msg string, err error) {
	params := util.APIErrorParams{Msg: msg, Err: err}
	switch {
	case errors.Is(err, booking.ErrSlotUnavailable):
		util.CallConflict(c, params)
	case errors.Is(err, booking.ErrAppointmentNotFound):
		util.CallErrorNotFound(c, params)
	case errors.Is(err, booking.ErrNoServices),
		errors.Is(err, booking.ErrDuplicateService),
		errors.Is(err, account.ErrReservedUsername),
		errors.Is(err, booking.ErrInvalidTime),
		errors.Is(err, booking.ErrClosedDay),
		errors.Is(err, availability.ErrUnknownService),
		errors.Is(err, availability.ErrInvalidDate):
		util.CallUserError(c, params)
	default:
		util.CallServerError(c, params)
	}
}
