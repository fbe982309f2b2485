package endpoint

import (
	"context"
	"errors"
	"time"

	"github.com/ariebrainware/agendamento/store"
	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

var errNoStore = errors.New("no key-value store configured")

// Health reports whether the key-value store answers. Backends without a
// Ping are assumed ready.
func Health(c *gin.Context) {
	deps, ok := depsOrRespond(c)
	if !ok {
		return
	}
	if deps.Store == nil {
		util.CallServiceUnavailable(c, util.APIErrorParams{Msg: "Store unavailable", Err: errNoStore})
		return
	}

	if p, ok := deps.Store.(store.Pinger); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			util.CallServiceUnavailable(c, util.APIErrorParams{Msg: "Store unavailable", Err: err})
			return
		}
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "OK", Data: map[string]string{"status": "ready"}})
}
