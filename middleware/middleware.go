package middleware

import (
	"errors"
	"net/http"

	"github.com/ariebrainware/agendamento/account"
	"github.com/ariebrainware/agendamento/booking"
	"github.com/ariebrainware/agendamento/store"
	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
)

const (
	UsernameKey     = "username"
	SessionTokenKey = "session_token"
	depsKey         = "deps"
)

var errMissingSessionToken = errors.New("missing session token")

// Deps are the shared services every handler reaches through the context.
type Deps struct {
	Store    store.KV
	Accounts *account.Store
	Sessions *account.Sessions
	Booking  *booking.Service
}

func setCorsHeaders(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Authorization, session-token")
	c.Writer.Header().Set("Access-Control-Max-Age", "86400")
	c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
}

// CORSMiddleware configures CORS headers for incoming requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		setCorsHeaders(c)

		// For preflight requests, respond with 204 and abort further processing.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// DepsMiddleware stores deps in the context for GetDeps.
func DepsMiddleware(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(depsKey, deps)
		c.Next()
	}
}

// GetDeps returns the services set by DepsMiddleware, or nil.
func GetDeps(c *gin.Context) *Deps {
	v, ok := c.Get(depsKey)
	if !ok {
		return nil
	}
	deps, _ := v.(*Deps)
	return deps
}

// GetUsername returns the user authenticated by RequireSession.
func GetUsername(c *gin.Context) (string, bool) {
	v, ok := c.Get(UsernameKey)
	if !ok {
		return "", false
	}
	username, ok := v.(string)
	return username, ok && username != ""
}

// GetSessionToken returns the raw token RequireSession accepted.
func GetSessionToken(c *gin.Context) string {
	return c.GetString(SessionTokenKey)
}

// RequireSession rejects requests without a valid session-token header and
// puts the session's username in the context.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := c.GetHeader("session-token")
		if token == "" {
			util.LogUnauthorizedAccess(c.ClientIP(), c.Request.URL.Path, "missing session token")
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Unauthorized",
				Err: errMissingSessionToken,
			})
			c.Abort()
			return
		}

		deps := GetDeps(c)
		if deps == nil || deps.Sessions == nil {
			util.CallServerError(c, util.APIErrorParams{
				Msg: "Session store not available",
				Err: errors.New("session store not set in context"),
			})
			c.Abort()
			return
		}

		rec, err := deps.Sessions.Validate(c.Request.Context(), token)
		if err != nil {
			if !isSessionRejection(err) {
				util.CallServerError(c, util.APIErrorParams{
					Msg: "Failed to validate session",
					Err: err,
				})
				c.Abort()
				return
			}
			util.LogUnauthorizedAccess(c.ClientIP(), c.Request.URL.Path, err.Error())
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Unauthorized",
				Err: err,
			})
			c.Abort()
			return
		}

		c.Set(UsernameKey, rec.Username)
		c.Set(SessionTokenKey, token)
		c.Next()
	}
}

func isSessionRejection(err error) bool {
	return errors.Is(err, util.ErrInvalidToken) ||
		errors.Is(err, account.ErrSessionNotFound) ||
		errors.Is(err, account.ErrSessionExpired)
}
