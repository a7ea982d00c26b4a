package errors

import "errors"

// Sentinels a CLIError unwraps to.
var (
	// ErrCredentialsRejected means a collaborator (store, broker, tracker or
	// this server) refused the configured credentials.
	ErrCredentialsRejected = errors.New("credentials rejected")

	ErrPermissionDenied = errors.New("permission denied")

	// ErrConnectionFailed means a collaborator could not be reached.
	ErrConnectionFailed = errors.New("connection failed")

	ErrInvalidConfig = errors.New("invalid configuration")
)
