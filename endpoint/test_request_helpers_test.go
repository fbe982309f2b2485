package endpoint

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariebrainware/agendamento/account"
	"github.com/ariebrainware/agendamento/availability"
	"github.com/ariebrainware/agendamento/booking"
	"github.com/ariebrainware/agendamento/config"
	"github.com/ariebrainware/agendamento/middleware"
	"github.com/ariebrainware/agendamento/store"
	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requestParams groups HTTP request parameters to reduce function arguments
type requestParams struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
}

type apiResp struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// doRequest executes an HTTP request with the given parameters and returns the response recorder
func doRequest(r http.Handler, params requestParams) *httptest.ResponseRecorder {
	var body []byte
	switch v := params.body.(type) {
	case nil:
	case string:
		body = []byte(v)
	default:
		body, _ = json.Marshal(v)
	}
	req := httptest.NewRequest(params.method, params.path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range params.headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeResp(t *testing.T, rr *httptest.ResponseRecorder, data interface{}) apiResp {
	t.Helper()
	var resp apiResp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data), string(resp.Data))
	}
	return resp
}

// setupEndpointTest returns a router with every route registered over a
// private SQLite-backed store.
func setupEndpointTest(t *testing.T) (*gin.Engine, *middleware.Deps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	t.Setenv("APPENV", "test")
	util.SetJWTSecret("test-secret-123")
	config.ResetRedisClientForTest()
	util.InitDisplayNameCache(10)

	db, err := config.ConnectMySQL()
	if err != nil {
		t.Fatalf("failed to connect test DB: %v", err)
	}
	kv, err := store.NewGormStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	deps := &middleware.Deps{
		Store:    kv,
		Accounts: account.NewStore(kv),
		Sessions: account.NewSessions(kv, time.Hour),
		Booking:  booking.NewService(kv, availability.NewCalendar(nil)),
	}

	r := gin.New()
	r.Use(middleware.DepsMiddleware(deps))
	r.GET("/healthz", Health)
	r.POST("/register", Register)
	r.POST("/login", Login)
	r.GET("/token/validate", ValidateToken)
	r.GET("/services", ListServices)

	auth := r.Group("/")
	auth.Use(middleware.RequireSession())
	{
		auth.DELETE("/logout", Logout)
		auth.GET("/slots", ListSlots)
		auth.GET("/appointments", ListAppointments)
		auth.POST("/appointments", CreateAppointment)
		auth.GET("/appointments/export.ics", ExportAppointments)
		auth.DELETE("/appointments/:id", CancelAppointment)
	}
	return r, deps
}

// registerAndLogin creates a user and returns a session token for it.
func registerAndLogin(t *testing.T, r http.Handler, username, password string) string {
	t.Helper()
	rr := doRequest(r, requestParams{method: "POST", path: "/register", body: map[string]string{
		"username": username, "password": password,
	}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doRequest(r, requestParams{method: "POST", path: "/login", body: map[string]string{
		"username": username, "password": password,
	}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var data LoginResponse
	decodeResp(t, rr, &data)
	require.NotEmpty(t, data.Token)
	return data.Token
}

func authHeader(token string) map[string]string {
	return map[string]string{"session-token": token}
}

// assertStatus asserts that the response HTTP status code matches the expected value
func assertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, w.Code, w.Body.String())
}

// newTestRouter returns a new Gin engine configured for tests.
// Use this for tests that don't need services injected.
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
