package endpoint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariebrainware/agendamento/account"
	"github.com/ariebrainware/agendamento/middleware"
	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token       string    `json:"token"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Register creates a credential. An existing username is rejected and the
// stored credential is left untouched.
func Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	deps, ok := depsOrRespond(c)
	if !ok {
		return
	}

	err := deps.Accounts.Register(c.Request.Context(), req.Username, req.Password, req.DisplayName)
	switch {
	case errors.Is(err, account.ErrUserExists):
		util.CallUserError(c, util.APIErrorParams{Msg: "Username already exists", Err: err})
		return
	case errors.Is(err, account.ErrMissingField):
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid request payload", Err: err})
		return
	case errors.Is(err, account.ErrReservedUsername):
		util.CallUserError(c, util.APIErrorParams{Msg: "Username is not allowed", Err: err})
		return
	case err != nil:
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to register user", Err: err})
		return
	}

	username := strings.TrimSpace(req.Username)
	ci := clientOf(c)
	util.LogSignup(util.AuthEventParams{Username: username, IP: ci.IP, UserAgent: ci.Agent})
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Registration successful",
		Data: map[string]string{"username": username},
	})
}

// Login authenticates the user and opens a session. Unknown users and wrong
// passwords get the same answer.
func Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	deps, ok := depsOrRespond(c)
	if !ok {
		return
	}

	ci := clientOf(c)
	ctx := c.Request.Context()
	cred, err := deps.Accounts.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) || errors.Is(err, account.ErrMissingField) {
			util.LogLoginFailure(util.AuthEventParams{Username: req.Username, IP: ci.IP, UserAgent: ci.Agent, Reason: "invalid credentials"})
			util.CallUserError(c, util.APIErrorParams{Msg: "Invalid username or password", Err: account.ErrInvalidCredentials})
			return
		}
		util.LogLoginFailure(util.AuthEventParams{Username: req.Username, IP: ci.IP, UserAgent: ci.Agent, Reason: "storage error"})
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to authenticate", Err: err})
		return
	}

	token, rec, err := deps.Sessions.Create(ctx, cred.Username)
	if err != nil {
		util.LogLoginFailure(util.AuthEventParams{Username: cred.Username, IP: ci.IP, UserAgent: ci.Agent, Reason: "session creation failed"})
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create session", Err: err})
		return
	}

	// A successful login clears the client's failed attempts.
	_ = middleware.ResetRateLimit(ctx, ci.IP, c.Request.URL.Path)

	displayName := cred.DisplayName
	if displayName == "" {
		displayName = cred.Username
	}
	util.DisplayNameCacheSet(cred.Username, displayName)

	util.LogLoginSuccess(util.AuthEventParams{Username: cred.Username, IP: ci.IP, UserAgent: ci.Agent})
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: fmt.Sprintf("Welcome, %s", displayName),
		Data: LoginResponse{
			Token:       token,
			Username:    cred.Username,
			DisplayName: displayName,
			ExpiresAt:   rec.ExpiresAt,
		},
	})
}

// Logout discards the caller's session. With ?all=true every session of the
// user tracked in Redis is discarded too.
func Logout(c *gin.Context) {
	deps, ok := depsOrRespond(c)
	if !ok {
		return
	}
	username, ok := usernameOrRespond(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := deps.Sessions.Revoke(ctx, username, middleware.GetSessionToken(c)); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete session", Err: err})
		return
	}
	if c.Query("all") == "true" {
		if err := deps.Sessions.RevokeAll(ctx, username); err != nil {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete sessions", Err: err})
			return
		}
	}

	ci := clientOf(c)
	util.LogLogout(util.AuthEventParams{Username: username, IP: ci.IP, UserAgent: ci.Agent})
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Logout successful"})
}
