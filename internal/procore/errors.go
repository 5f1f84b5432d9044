package procore

import "fmt"

// Error is a typed integration failure. Status is the HTTP status the API
// layer answers with; Message is shown to the user verbatim.
type Error struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so wrapped copies still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotConnected   = &Error{Code: "PROCORE_NOT_CONNECTED", Status: 404, Message: "No Procore connection found"}
	ErrAuthExpired    = &Error{Code: "PROCORE_AUTH_EXPIRED", Status: 401, Message: "Procore authorization expired"}
	ErrOAuth          = &Error{Code: "PROCORE_OAUTH_ERROR", Status: 400, Message: "Procore OAuth error"}
	ErrInvalidState   = &Error{Code: "PROCORE_INVALID_STATE", Status: 400, Message: "Invalid state parameter"}
	ErrUpstream       = &Error{Code: "UPSTREAM_ERROR", Status: 502, Message: "Upstream service error"}
	ErrRemoteNotFound = &Error{Code: "PROCORE_NOT_FOUND", Status: 404, Message: "Procore resource not found"}
	ErrRateLimited    = &Error{Code: "PROCORE_RATE_LIMITED", Status: 429, Message: "Procore rate limited"}
	ErrSyncInProgress = &Error{Code: "PROCORE_SYNC_IN_PROGRESS", Status: 409, Message: "Sync already in progress"}
	ErrNoCompanies    = &Error{Code: "PROCORE_NO_COMPANIES", Status: 400, Message: "No Procore companies found"}
)

// wrap returns a copy of base with an optional message override and cause.
func wrap(base *Error, msg string, cause error) *Error {
	e := *base
	if msg != "" {
		e.Message = msg
	}
	e.Err = cause
	return &e
}
