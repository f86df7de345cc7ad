package git

import (
	"fmt"
	"strings"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
)

// AuthError is an authentication failure against a remote.
type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError is a repository or revision that does not exist.
type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// classifyCloneError wraps go-git clone failures into classified errors.
func classifyCloneError(url string, err error) error {
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password"):
		return derrors.GitError("authentication failed").
			WithCause(&AuthError{Op: "clone", URL: url, Err: err}).
			WithContext("url", url).
			UserAction().
			Build()
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist") || strings.Contains(l, "reference not found"):
		return derrors.RepositoryNotFound(url, &NotFoundError{Op: "clone", URL: url, Err: err})
	case strings.Contains(l, "timeout") || strings.Contains(l, "connection refused"):
		return derrors.NewError(derrors.CategoryNetwork, "failed to reach repository").
			Fatal().
			Retryable().
			WithCause(err).
			WithContext("url", url).
			Build()
	default:
		return derrors.GitError("failed to clone repository").WithCause(err).WithContext("url", url).Build()
	}
}
