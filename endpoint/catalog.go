package endpoint

import (
	"fmt"

	"github.com/ariebrainware/agendamento/availability"
	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
)

// ListServices returns the service catalog with each service's duration.
func ListServices(c *gin.Context) {
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Services retrieved",
		Data: availability.Services(),
	})
}

// ListSlots partitions the slot catalog of ?date= into blocked and
// available slots for the caller.
func ListSlots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Query parameter date is required",
			Err: fmt.Errorf("%w: empty", availability.ErrInvalidDate),
		})
		return
	}

	sess, ok := openSessionOrRespond(c)
	if !ok {
		return
	}
	defer sess.Close()

	slots, err := sess.Slots(date)
	if err != nil {
		respondBookingError(c, "Failed to list slots", err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Slots retrieved",
		Data: slots,
	})
}
