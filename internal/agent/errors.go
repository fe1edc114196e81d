package agent

import (
	"fmt"
	"strings"
)

const maxLoggedBodyBytes = 1024

// HTTPError represents an HTTP response with an error status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}
