package meross

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredentials   = errors.New("meross: email or password missing")
	ErrAuthenticationFailed = errors.New("meross: authentication failed")
	ErrNotAuthenticated     = errors.New("meross: not authenticated")
	ErrNoDataConnection     = errors.New("meross: device has no data connection available")
	ErrTimeout              = errors.New("meross: timeout waiting for device response")
	ErrMalformedFrame       = errors.New("meross: malformed frame")
	ErrUnknownDevice        = errors.New("meross: unknown device")
)

var apiStatusMessages = map[int]string{
	500:  "The selected timezone is not supported",
	1001: "Wrong or missing password",
	1002: "Account does not exist",
	1003: "This account has been disabled or deleted",
	1004: "Wrong email or password",
	1005: "Invalid email address",
	1006: "Bad password format",
	1008: "This email is not registered",
	1019: "Token expired",
	1200: "Token has expired",
	1255: "The number of remote control boards exceeded the limit",
	1301: "Too many tokens have been issued",
	5000: "Unknown or generic error",
	5001: "Unknown or generic error",
	5002: "Unknown or generic error",
	5003: "Unknown or generic error",
	5004: "Unknown or generic error",
	5020: "Infrared Remote device is busy",
	5021: "Infrared record timeout",
	5022: "Infrared record invalid",
}

// StatusMessage returns the human readable text for an upstream apiStatus code.
func StatusMessage(code int) string {
	if msg, ok := apiStatusMessages[code]; ok {
		return msg
	}
	return "Unknown error"
}

// APIError is returned when the cloud API answers with a non-zero apiStatus.
type APIError struct {
	Status int
	Info   string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d (%s)", e.Status, StatusMessage(e.Status))
	if e.Info != "" {
		msg += " - " + e.Info
	}
	return msg
}

// TokenExpired reports whether the upstream rejected the session token.
func (e *APIError) TokenExpired() bool {
	return e.Status == 1019 || e.Status == 1200
}
