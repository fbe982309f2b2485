package util

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ariebrainware/agendamento/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SecurityEventType represents different types of security events
type SecurityEventType string

const (
	EventLoginSuccess       SecurityEventType = "LOGIN_SUCCESS"
	EventLoginFailure       SecurityEventType = "LOGIN_FAILURE"
	EventSignupSuccess      SecurityEventType = "SIGNUP_SUCCESS"
	EventLogout             SecurityEventType = "LOGOUT"
	EventPasswordUpgraded   SecurityEventType = "PASSWORD_UPGRADED"
	EventUnauthorizedAccess SecurityEventType = "UNAUTHORIZED_ACCESS"
	EventRateLimitExceeded  SecurityEventType = "RATE_LIMIT_EXCEEDED"
	EventSuspiciousActivity SecurityEventType = "SUSPICIOUS_ACTIVITY"
	EventEndpointCall       SecurityEventType = "ENDPOINT_CALL"
	EventBookingCreated     SecurityEventType = "BOOKING_CREATED"
	EventBookingCancelled   SecurityEventType = "BOOKING_CANCELLED"
)

// SecurityEvent represents a security event to be logged
type SecurityEvent struct {
	EventType SecurityEventType
	Username  string
	IP        string
	UserAgent string
	Message   string
	Details   map[string]interface{}
}

// AuthEventParams groups the client fields shared by the auth event helpers.
type AuthEventParams struct {
	Username  string
	IP        string
	UserAgent string
	Reason    string
}

var securityLogger *log.Logger
var securityDB *gorm.DB

// SetSecurityLoggerDB sets a gorm DB instance used by the security logger.
// Call this during application startup after DB initialization.
func SetSecurityLoggerDB(db *gorm.DB) {
	securityDB = db
}

func init() {
	securityLogger = log.New(os.Stdout, "[SECURITY] ", log.LstdFlags|log.Lmsgprefix)
}

// sanitizeLogValue removes newlines and other characters that could break log parsing
func sanitizeLogValue(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\t", " ")
	if len(value) > 200 {
		value = value[:200] + "..."
	}
	return value
}

// LogSecurityEvent logs a security event
func LogSecurityEvent(event SecurityEvent) {
	msg := fmt.Sprintf("Event=%s Username=%s IP=%s UserAgent=%s Message=%s",
		sanitizeLogValue(string(event.EventType)),
		sanitizeLogValue(event.Username),
		sanitizeLogValue(event.IP),
		sanitizeLogValue(event.UserAgent),
		sanitizeLogValue(event.Message),
	)

	if len(event.Details) > 0 {
		// Details go to the database only; the log line carries the count.
		msg = fmt.Sprintf("%s DetailsCount=%d", msg, len(event.Details))
	}

	securityLogger.Println(msg)

	if securityDB == nil {
		return
	}

	var details datatypes.JSON
	if event.Details != nil {
		if b, err := json.Marshal(event.Details); err == nil {
			details = datatypes.JSON(b)
		}
	}
	entry := model.SecurityLog{
		EventType: string(event.EventType),
		Username:  sanitizeLogValue(event.Username),
		IP:        sanitizeLogValue(event.IP),
		UserAgent: sanitizeLogValue(event.UserAgent),
		Message:   sanitizeLogValue(event.Message),
		Details:   details,
	}

	// best-effort write; the request never fails because of it
	if err := securityDB.Create(&entry).Error; err != nil {
		securityLogger.Printf("Failed to persist security event: %v", err)
	}
}

func logAuthEvent(eventType SecurityEventType, p AuthEventParams, message string) {
	LogSecurityEvent(SecurityEvent{
		EventType: eventType,
		Username:  p.Username,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		Message:   message,
	})
}

func LogSignup(p AuthEventParams) {
	logAuthEvent(EventSignupSuccess, p, "Account registered")
}

func LogLoginSuccess(p AuthEventParams) {
	logAuthEvent(EventLoginSuccess, p, "Session opened")
}

// LogLoginFailure records p.Reason only in the log; the client always sees
// the same message for unknown users and wrong passwords.
func LogLoginFailure(p AuthEventParams) {
	logAuthEvent(EventLoginFailure, p, fmt.Sprintf("Login failed: %s", p.Reason))
}

func LogLogout(p AuthEventParams) {
	logAuthEvent(EventLogout, p, "Session closed")
}

// LogUnauthorizedAccess logs unauthorized access attempts
func LogUnauthorizedAccess(ip, resource, reason string) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventUnauthorizedAccess,
		IP:        ip,
		Message:   fmt.Sprintf("Unauthorized access to %s: %s", resource, reason),
	})
}

// LogRateLimitExceeded logs when rate limit is exceeded
func LogRateLimitExceeded(ip, endpoint string) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventRateLimitExceeded,
		IP:        ip,
		Message:   fmt.Sprintf("Rate limit exceeded for endpoint: %s", endpoint),
	})
}

// LogBookingEvent logs a booking created or cancelled by username
func LogBookingEvent(eventType SecurityEventType, username, ip string, details map[string]interface{}) {
	LogSecurityEvent(SecurityEvent{
		EventType: eventType,
		Username:  username,
		IP:        ip,
		Message:   strings.ToLower(strings.ReplaceAll(string(eventType), "_", " ")),
		Details:   details,
	})
}

// SetSecurityLoggerForTest sets a custom logger for testing purposes
func SetSecurityLoggerForTest(logger *log.Logger) {
	securityLogger = logger
}

// GetSecurityLoggerForTest returns the current logger so a test can restore it
func GetSecurityLoggerForTest() *log.Logger {
	return securityLogger
}
