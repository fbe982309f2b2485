package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
)

// EndpointCallLogger records one ENDPOINT_CALL security event per request,
// tagged with the session's username and the appointment id when the route
// carries one. CORS preflights are not recorded.
func EndpointCallLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		username, _ := GetUsername(c)

		details := map[string]interface{}{
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			details["query"] = q
		}
		if id := c.Param("id"); id != "" {
			details["appointment_id"] = id
		}

		util.LogSecurityEvent(util.SecurityEvent{
			EventType: util.EventEndpointCall,
			Username:  username,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Message:   fmt.Sprintf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, status),
			Details:   details,
		})
	}
}
