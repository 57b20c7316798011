package code

// Error code to message mapping
var codeMessageMap = map[int]string{
	// Common
	ErrSuccess:      "success",
	ErrUnknown:      "unknown error",
	ErrBind:         "failed to bind request parameters",
	ErrValidation:   "request parameter validation failed",
	ErrTokenInvalid: "invalid authentication token",

	// Users
	ErrUserNotFound:          "user does not exist",
	ErrUserAlreadyExist:      "user already exists",
	ErrUserPasswordIncorrect: "incorrect password",

	// Terminals
	ErrTerminalNotFound:     "terminal does not exist",
	ErrTerminalAlreadyExist: "terminal already exists",
	ErrTerminalOffline:      "terminal is currently offline",

	// Alerts
	ErrAlertNotFound:          "alert does not exist",
	ErrAlertAlreadyOpen:       "terminal already has an open alert",
	ErrAlertAlreadyClaimed:    "alert has already been claimed",
	ErrAlertInvalidTransition: "alert status transition not allowed",
	ErrAlertInvalidStatus:     "invalid alert status",

	// Downlink
	ErrDownlinkFailed: "downlink delivery failed",

	// Database
	ErrDatabase:          "database error",
	ErrRecordNotFound:    "record not found",
	ErrAllocatorConflict: "identifier allocation conflict",
}

// Error code to HTTP status mapping
var codeStatusMap = map[int]int{
	// Common
	ErrSuccess:      StatusOK,
	ErrUnknown:      StatusInternalServerError,
	ErrBind:         StatusBadRequest,
	ErrValidation:   StatusBadRequest,
	ErrTokenInvalid: StatusUnauthorized,

	// Users
	ErrUserNotFound:          StatusNotFound,
	ErrUserAlreadyExist:      StatusBadRequest,
	ErrUserPasswordIncorrect: StatusUnauthorized,

	// Terminals
	ErrTerminalNotFound:     StatusNotFound,
	ErrTerminalAlreadyExist: StatusBadRequest,
	ErrTerminalOffline:      StatusBadRequest,

	// Alerts
	ErrAlertNotFound:          StatusNotFound,
	ErrAlertAlreadyOpen:       StatusConflict,
	ErrAlertAlreadyClaimed:    StatusConflict,
	ErrAlertInvalidTransition: StatusConflict,
	ErrAlertInvalidStatus:     StatusBadRequest,

	// Downlink
	ErrDownlinkFailed: StatusBadGateway,

	// Database
	ErrDatabase:          StatusInternalServerError,
	ErrRecordNotFound:    StatusNotFound,
	ErrAllocatorConflict: StatusInternalServerError,
}

// GetMessage returns the message for an error code
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return "unknown error"
}

// GetStatus returns the HTTP status for an error code
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}
