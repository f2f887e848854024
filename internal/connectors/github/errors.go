package github

import (
	"errors"
	"fmt"
)

const serviceName = "github"

// GitHub-specific errors.
var (
	// ErrInvalidRepository indicates a repository reference that is not owner/repo.
	ErrInvalidRepository = errors.New("github: repository must be owner/repo[@ref]")

	// ErrRepoNotFound indicates the repository was not found or is not accessible.
	ErrRepoNotFound = errors.New("github: repository not found")
)

// APIError represents a GitHub API error response. It unwraps to the
// domain sentinel matching its status code, if any.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
	Err        error
}

func (e *APIError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("github: API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return errors.Is(err, ErrRepoNotFound)
}
