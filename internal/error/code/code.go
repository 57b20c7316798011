package code

// HTTP status codes.
const (
	// StatusOK - 200: success.
	StatusOK = 200
	// StatusBadRequest - 400: bad request parameters.
	StatusBadRequest = 400
	// StatusUnauthorized - 401: unauthorized.
	StatusUnauthorized = 401
	// StatusForbidden - 403: forbidden.
	StatusForbidden = 403
	// StatusNotFound - 404: resource not found.
	StatusNotFound = 404
	// StatusConflict - 409: conflicting state.
	StatusConflict = 409
	// StatusInternalServerError - 500: internal server error.
	StatusInternalServerError = 500
	// StatusBadGateway - 502: upstream gateway failure.
	StatusBadGateway = 502
)

// Common error codes (100xxx).
const (
	// ErrSuccess - 200: success.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: unknown error.
	ErrUnknown
	// ErrBind - 400: request parameter binding error.
	ErrBind
	// ErrValidation - 400: request parameter validation error.
	ErrValidation
	// ErrTokenInvalid - 401: invalid authentication token.
	ErrTokenInvalid
)

// User error codes (101xxx).
const (
	// ErrUserNotFound - 404: user does not exist.
	ErrUserNotFound int = iota + 101000
	// ErrUserAlreadyExist - 400: user already exists.
	ErrUserAlreadyExist
	// ErrUserPasswordIncorrect - 401: incorrect password.
	ErrUserPasswordIncorrect
)

// Terminal error codes (102xxx).
const (
	// ErrTerminalNotFound - 404: terminal does not exist.
	ErrTerminalNotFound int = iota + 102000
	// ErrTerminalAlreadyExist - 400: terminal already exists.
	ErrTerminalAlreadyExist
	// ErrTerminalOffline - 400: terminal is offline.
	ErrTerminalOffline
)

// Alert error codes (103xxx).
const (
	// ErrAlertNotFound - 404: alert does not exist.
	ErrAlertNotFound int = iota + 103000
	// ErrAlertAlreadyOpen - 409: terminal already has an open alert.
	ErrAlertAlreadyOpen
	// ErrAlertAlreadyClaimed - 409: alert already claimed by another dispatcher.
	ErrAlertAlreadyClaimed
	// ErrAlertInvalidTransition - 409: requested status transition is not allowed.
	ErrAlertInvalidTransition
	// ErrAlertInvalidStatus - 400: status value outside the alert state set.
	ErrAlertInvalidStatus
)

// Downlink error codes (104xxx).
const (
	// ErrDownlinkFailed - 502: radio gateway rejected or unreachable.
	ErrDownlinkFailed int = iota + 104000
)

// Database error codes (105xxx).
const (
	// ErrDatabase - 500: database error.
	ErrDatabase int = iota + 105000
	// ErrRecordNotFound - 404: record not found.
	ErrRecordNotFound
	// ErrAllocatorConflict - 500: identifier allocation race, retryable.
	ErrAllocatorConflict
)
