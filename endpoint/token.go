package endpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariebrainware/agendamento/account"
	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
)

type TokenInfo struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ValidateToken reports whether the session-token header names a live
// session.
func ValidateToken(c *gin.Context) {
	sessionToken := c.GetHeader("session-token")
	if sessionToken == "" {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Invalid session token",
			Err: fmt.Errorf("session token not provided"),
		})
		c.Abort()
		return
	}

	deps, ok := depsOrRespond(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	rec, err := deps.Sessions.Validate(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, util.ErrInvalidToken) || errors.Is(err, account.ErrSessionNotFound) || errors.Is(err, account.ErrSessionExpired) {
			util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Session not found", Err: err})
			c.Abort()
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to validate session", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Valid session token",
		Data: TokenInfo{
			Username:    rec.Username,
			DisplayName: displayNameOf(ctx, deps.Accounts, rec.Username),
			ExpiresAt:   rec.ExpiresAt,
		},
	})
}

func displayNameOf(ctx context.Context, accounts *account.Store, username string) string {
	return util.GetDisplayName(username, func(u string) (string, error) {
		return accounts.DisplayName(ctx, u)
	})
}
