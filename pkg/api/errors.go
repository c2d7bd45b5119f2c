package api

import "fmt"

// StatusError is a non-2xx server response.
type StatusError struct {
	Code   int
	Body   string
	Method string
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: server returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}
