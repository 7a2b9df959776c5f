package hydrate

import "fmt"

// HydrationError records a failed lookup. It is never returned to callers as a
// fatal error; the list falls back to its literal items instead.
type HydrationError struct {
	ListID   string
	Attempts int
	Err      error
}

func (e *HydrationError) Error() string {
	return fmt.Sprintf("hydrate list %s: failed after %d attempt(s): %v", e.ListID, e.Attempts, e.Err)
}

func (e *HydrationError) Unwrap() error {
	return e.Err
}
