package publish

import "errors"

// Publication errors.
var (
	// ErrNoPublisher indicates publication is disabled.
	ErrNoPublisher = errors.New("no publisher configured")

	// ErrUnknownProvider indicates an unsupported publish_provider value.
	ErrUnknownProvider = errors.New("unknown publish provider")

	// ErrRepoNotFound indicates the repository or project does not exist or
	// the token cannot see it.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrUnauthorized indicates the token was rejected.
	ErrUnauthorized = errors.New("publish token rejected")
)
